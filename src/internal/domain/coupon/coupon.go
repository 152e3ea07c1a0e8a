package coupon

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/merchant"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/points"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// CodePrefix 優惠碼前綴
const CodePrefix = "LOYALTY-"

// CouponMarker 是 CouponID 的標記類型
type CouponMarker struct{}

// CouponID 優惠券 ID；同時作為 REDEEM_COUPON 交易的關聯參照
type CouponID = shared.EntityID[CouponMarker]

func NewCouponID() CouponID {
	return shared.NewEntityID[CouponMarker]()
}

func CouponIDFromString(s string) (CouponID, error) {
	return shared.EntityIDFromString[CouponMarker](s, ErrInvalidCouponID)
}

// ExternalStatus 外部平台優惠碼的建立狀態
type ExternalStatus string

const (
	ExternalPending ExternalStatus = "pending"
	ExternalIssuing ExternalStatus = "issuing" // 已被某個呼叫者認領，外部呼叫進行中
	ExternalCreated ExternalStatus = "created"
	ExternalFailed  ExternalStatus = "failed"
	ExternalSkipped ExternalStatus = "skipped" // 商家沒有可用的 access token
)

// ===========================
// Coupon 聚合根
// ===========================

// Coupon 兌換產生的折扣券
//
// 生命週期：
// 1. 與 REDEEM_COUPON 扣減在同一事務中建立（externalStatus = pending）
// 2. 提交後認領（issuing）並在外部平台建立優惠碼（成功 created / 失敗 failed，可重試）
// 3. 結帳時由外部平台確認使用（MarkUsed），或到期未使用
//
// 外部狀態只是附加資訊，失敗不退還積分
type Coupon struct {
	couponID       CouponID
	merchantID     merchant.MerchantID
	accountID      points.AccountID
	code           string
	discountAmount decimal.Decimal
	pointsUsed     int
	expiresAt      time.Time
	used           bool
	usedAt         *time.Time

	externalStatus   ExternalStatus
	externalRef      string
	externalError    string
	externalAttempts int

	createdAt time.Time
	updatedAt time.Time
}

// NewCoupon 建立兌換券
func NewCoupon(
	merchantID merchant.MerchantID,
	accountID points.AccountID,
	pointsUsed points.PointsAmount,
	discountAmount decimal.Decimal,
	expiresAt time.Time,
	now time.Time,
) (*Coupon, error) {
	if pointsUsed.Value() <= 0 {
		return nil, points.ErrInvalidAmount.WithContext("points_used", pointsUsed.Value())
	}
	if accountID.IsEmpty() {
		return nil, points.ErrInvalidAccountID
	}
	return &Coupon{
		couponID:       NewCouponID(),
		merchantID:     merchantID,
		accountID:      accountID,
		code:           NewCouponCode(),
		discountAmount: discountAmount,
		pointsUsed:     pointsUsed.Value(),
		expiresAt:      expiresAt,
		externalStatus: ExternalPending,
		createdAt:      now,
		updatedAt:      now,
	}, nil
}

// NewCouponCode 產生 LOYALTY-XXXXXXXX 格式的優惠碼
func NewCouponCode() string {
	raw := strings.ReplaceAll(uuid.New().String(), "-", "")
	return CodePrefix + strings.ToUpper(raw[:8])
}

// ReconstructCoupon 從持久化存儲重建（僅供 Repository 使用）
func ReconstructCoupon(
	couponID CouponID,
	merchantID merchant.MerchantID,
	accountID points.AccountID,
	code string,
	discountAmount decimal.Decimal,
	pointsUsed int,
	expiresAt time.Time,
	used bool,
	usedAt *time.Time,
	externalStatus ExternalStatus,
	externalRef string,
	externalError string,
	externalAttempts int,
	createdAt time.Time,
	updatedAt time.Time,
) (*Coupon, error) {
	if couponID.IsEmpty() {
		return nil, ErrInvalidCouponID.WithContext("reason", "empty coupon id in database")
	}
	return &Coupon{
		couponID:         couponID,
		merchantID:       merchantID,
		accountID:        accountID,
		code:             code,
		discountAmount:   discountAmount,
		pointsUsed:       pointsUsed,
		expiresAt:        expiresAt,
		used:             used,
		usedAt:           usedAt,
		externalStatus:   externalStatus,
		externalRef:      externalRef,
		externalError:    externalError,
		externalAttempts: externalAttempts,
		createdAt:        createdAt,
		updatedAt:        updatedAt,
	}, nil
}

// MarkUsed 結帳時確認使用
func (c *Coupon) MarkUsed(now time.Time) error {
	if c.used {
		return ErrCouponAlreadyUsed.WithContext("code", c.code)
	}
	if now.After(c.expiresAt) {
		return ErrCouponExpired.WithContext("code", c.code, "expires_at", c.expiresAt)
	}
	c.used = true
	c.usedAt = &now
	c.updatedAt = now
	return nil
}

// BeginExternalAttempt 認領一次外部建立嘗試；次數在呼叫前累加
func (c *Coupon) BeginExternalAttempt(now time.Time) {
	c.externalStatus = ExternalIssuing
	c.externalAttempts++
	c.updatedAt = now
}

// RecordExternalSuccess 外部平台建立成功
func (c *Coupon) RecordExternalSuccess(ref string, now time.Time) {
	c.externalStatus = ExternalCreated
	c.externalRef = ref
	c.externalError = ""
	c.updatedAt = now
}

// RecordExternalFailure 外部平台建立失敗（可由背景派送器重試）
func (c *Coupon) RecordExternalFailure(reason string, now time.Time) {
	c.externalStatus = ExternalFailed
	if len(reason) > 500 {
		reason = reason[:500]
	}
	c.externalError = reason
	c.updatedAt = now
}

// SkipExternal 不需要建立外部優惠碼
func (c *Coupon) SkipExternal(reason string, now time.Time) {
	c.externalStatus = ExternalSkipped
	c.externalError = reason
	c.updatedAt = now
}

// NeedsExternalIssue 是否仍需在外部平台建立
//
// issuing 只有在 staleBefore 之前就停止更新時才視為中斷（例如進程在呼叫中途結束）
func (c *Coupon) NeedsExternalIssue(maxAttempts int, staleBefore time.Time) bool {
	switch c.externalStatus {
	case ExternalPending, ExternalFailed:
	case ExternalIssuing:
		if !c.updatedAt.Before(staleBefore) {
			return false
		}
	default:
		return false
	}
	return maxAttempts <= 0 || c.externalAttempts < maxAttempts
}

// Correlation 對應 REDEEM_COUPON 交易的關聯參照
func (c *Coupon) Correlation() points.CorrelationRef {
	return points.MustCorrelationRef(c.couponID.String())
}

func (c *Coupon) CouponID() CouponID              { return c.couponID }
func (c *Coupon) MerchantID() merchant.MerchantID { return c.merchantID }
func (c *Coupon) AccountID() points.AccountID     { return c.accountID }
func (c *Coupon) Code() string                    { return c.code }
func (c *Coupon) DiscountAmount() decimal.Decimal { return c.discountAmount }
func (c *Coupon) PointsUsed() int                 { return c.pointsUsed }
func (c *Coupon) ExpiresAt() time.Time            { return c.expiresAt }
func (c *Coupon) IsUsed() bool                    { return c.used }
func (c *Coupon) UsedAt() *time.Time              { return c.usedAt }
func (c *Coupon) ExternalStatus() ExternalStatus  { return c.externalStatus }
func (c *Coupon) ExternalRef() string             { return c.externalRef }
func (c *Coupon) ExternalError() string           { return c.externalError }
func (c *Coupon) ExternalAttempts() int           { return c.externalAttempts }
func (c *Coupon) CreatedAt() time.Time            { return c.createdAt }
func (c *Coupon) UpdatedAt() time.Time            { return c.updatedAt }
