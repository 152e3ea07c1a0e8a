package redemption

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/coupon"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/merchant"
)

// ===========================
// 外部優惠碼建立
// ===========================

// 外部建立的結果（供 metrics 使用）
const (
	OutcomeCreated = "created"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

var (
	// errNoAccessToken 商家沒有可用的 access token，不呼叫外部平台
	errNoAccessToken = errors.New("merchant has no access token")

	// errExternalInFlight 優惠券已被其他呼叫者認領或完成
	errExternalInFlight = errors.New("external coupon issue already claimed")
)

// externalIssuer 呼叫外部平台並把結果寫回優惠券
//
// 只在帳本事務提交後調用；任何失敗都不影響已扣減的積分。
// 呼叫前以條件式 UPDATE 認領（pending / failed → issuing），同一張優惠券同時只有一個外部呼叫；
// 結果只寫入 external_* 欄位，不會覆寫呼叫期間的結帳使用狀態。
type externalIssuer struct {
	issuer  coupon.ExternalIssuer
	coupons coupon.CouponRepository
	timeout time.Duration
	clock   func() time.Time
	logger  *slog.Logger
	observe func(outcome string)
}

// issue 返回外部平台的錯誤（成功或略過時為 nil）；未能認領時返回 errExternalInFlight
func (x *externalIssuer) issue(ctx context.Context, m *merchant.Merchant, c *coupon.Coupon) error {
	prevStatus, prevAttempts := c.ExternalStatus(), c.ExternalAttempts()

	if x.issuer == nil || m.AccessToken() == "" {
		c.SkipExternal(errNoAccessToken.Error(), x.clock())
		if _, err := x.persist(c, prevStatus, prevAttempts); err != nil {
			return err
		}
		x.record(OutcomeSkipped)
		return nil
	}

	c.BeginExternalAttempt(x.clock())
	claimed, err := x.persist(c, prevStatus, prevAttempts)
	if err != nil {
		return err
	}
	if !claimed {
		return errExternalInFlight
	}

	outcome, externalErr := x.call(ctx, m, c)
	x.record(outcome)

	ok, err := x.persist(c, coupon.ExternalIssuing, c.ExternalAttempts())
	if err == nil && !ok {
		x.logger.Warn("external coupon status changed during call",
			"coupon_id", c.CouponID().String(),
			"status", string(c.ExternalStatus()),
		)
	}
	return externalErr
}

// persist 條件式寫入外部狀態；失敗時記錄日誌
func (x *externalIssuer) persist(c *coupon.Coupon, expectStatus coupon.ExternalStatus, expectAttempts int) (bool, error) {
	ok, err := x.coupons.UpdateExternal(nil, c, expectStatus, expectAttempts)
	if err != nil {
		x.logger.Error("persist external coupon status failed",
			"coupon_id", c.CouponID().String(),
			"status", string(c.ExternalStatus()),
			"error", err,
		)
	}
	return ok, err
}

func (x *externalIssuer) record(outcome string) {
	if x.observe != nil {
		x.observe(outcome)
	}
}

func (x *externalIssuer) call(ctx context.Context, m *merchant.Merchant, c *coupon.Coupon) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, x.timeout)
	defer cancel()

	ref, err := x.issuer.CreateCoupon(callCtx, coupon.ExternalCouponRequest{
		StoreID:     m.ExternalStoreID(),
		AccessToken: m.AccessToken(),
		Code:        c.Code(),
		Amount:      c.DiscountAmount(),
		StartsAt:    c.CreatedAt(),
		ExpiresAt:   c.ExpiresAt(),
	})
	if err != nil {
		c.RecordExternalFailure(err.Error(), x.clock())
		x.logger.Warn("external coupon creation failed",
			"coupon_id", c.CouponID().String(),
			"merchant_id", m.MerchantID().String(),
			"attempts", c.ExternalAttempts(),
			"error", err,
		)
		return OutcomeFailed, fmt.Errorf("create external coupon: %w", err)
	}

	c.RecordExternalSuccess(ref, x.clock())
	return OutcomeCreated, nil
}
