package coupon

import (
	"time"

	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/coupon"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/merchant"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/points"
	"github.com/shopspring/decimal"
)

// CouponGORM 兌換券資料表模型
//
// 資料庫約束：
// - coupon_id: 主鍵，同時是 REDEEM_COUPON 交易的 correlation
// - (merchant_id, code): 唯一索引
// - (external_status, external_attempts): 背景派送器的掃描索引
type CouponGORM struct {
	CouponID       string          `gorm:"column:coupon_id;type:varchar(36);primaryKey"`
	MerchantID     string          `gorm:"column:merchant_id;type:varchar(36);not null;uniqueIndex:idx_coupons_merchant_code,priority:1;index:idx_coupons_merchant_created,priority:1"`
	AccountID      string          `gorm:"column:account_id;type:varchar(36);not null;index"`
	Code           string          `gorm:"column:code;type:varchar(32);not null;uniqueIndex:idx_coupons_merchant_code,priority:2"`
	DiscountAmount decimal.Decimal `gorm:"column:discount_amount;type:numeric(18,4);not null"`
	PointsUsed     int             `gorm:"column:points_used;not null;check:points_used > 0"`
	ExpiresAt      time.Time       `gorm:"column:expires_at;not null"`
	Used           bool            `gorm:"column:used;not null;default:false"`
	UsedAt         *time.Time      `gorm:"column:used_at"`

	ExternalStatus   string `gorm:"column:external_status;type:varchar(16);not null;index:idx_coupons_external,priority:1"`
	ExternalRef      string `gorm:"column:external_ref;type:varchar(128)"`
	ExternalError    string `gorm:"column:external_error;type:varchar(500)"`
	ExternalAttempts int    `gorm:"column:external_attempts;not null;default:0;index:idx_coupons_external,priority:2"`

	CreatedAt time.Time `gorm:"column:created_at;not null;index:idx_coupons_merchant_created,priority:2"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

// TableName 指定資料表名稱
func (CouponGORM) TableName() string {
	return "loyalty_coupons"
}

func (g *CouponGORM) toDomain() (*coupon.Coupon, error) {
	couponID, err := coupon.CouponIDFromString(g.CouponID)
	if err != nil {
		return nil, err
	}
	merchantID, err := merchant.MerchantIDFromString(g.MerchantID)
	if err != nil {
		return nil, err
	}
	accountID, err := points.AccountIDFromString(g.AccountID)
	if err != nil {
		return nil, err
	}
	return coupon.ReconstructCoupon(
		couponID,
		merchantID,
		accountID,
		g.Code,
		g.DiscountAmount,
		g.PointsUsed,
		g.ExpiresAt,
		g.Used,
		g.UsedAt,
		coupon.ExternalStatus(g.ExternalStatus),
		g.ExternalRef,
		g.ExternalError,
		g.ExternalAttempts,
		g.CreatedAt,
		g.UpdatedAt,
	)
}

func toGORM(c *coupon.Coupon) *CouponGORM {
	var usedAt *time.Time
	if c.UsedAt() != nil {
		u := c.UsedAt().UTC()
		usedAt = &u
	}
	return &CouponGORM{
		CouponID:         c.CouponID().String(),
		MerchantID:       c.MerchantID().String(),
		AccountID:        c.AccountID().String(),
		Code:             c.Code(),
		DiscountAmount:   c.DiscountAmount(),
		PointsUsed:       c.PointsUsed(),
		ExpiresAt:        c.ExpiresAt().UTC(),
		Used:             c.IsUsed(),
		UsedAt:           usedAt,
		ExternalStatus:   string(c.ExternalStatus()),
		ExternalRef:      c.ExternalRef(),
		ExternalError:    c.ExternalError(),
		ExternalAttempts: c.ExternalAttempts(),
		CreatedAt:        c.CreatedAt().UTC(),
		UpdatedAt:        c.UpdatedAt().UTC(),
	}
}
