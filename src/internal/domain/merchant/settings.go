package merchant

import (
	"time"

	"github.com/shopspring/decimal"
)

// ===========================
// LoyaltySettings 值對象
// ===========================

// LoyaltySettings 商家的忠誠度計畫設定
//
// 值對象：整體替換，不做欄位級更新。驗證由 Validate 負責，
// Merchant.UpdateSettings 在替換前必定調用。
type LoyaltySettings struct {
	Enabled     bool
	ProgramName string

	// 賺取規則
	PointsPerCurrencyUnit decimal.Decimal // 每 1 元貨幣可得積分
	MinOrderAmount        decimal.Decimal // 低於此金額的訂單不給積分
	PointsExpiryDays      int             // 0 = 永不過期

	// 兌換規則
	PointsPerDiscountUnit int // 多少積分折抵 1 元
	MinRedeemPoints       int
	MaxRedeemPoints       int // 0 = 不限
	CouponValidityDays    int

	// 獎勵
	SignupBonus   int
	ReferralBonus int // 推薦人獲得
	ReferredBonus int // 被推薦人獲得
}

// DefaultLoyaltySettings 新安裝商家的預設設定
func DefaultLoyaltySettings() LoyaltySettings {
	return LoyaltySettings{
		Enabled:               true,
		ProgramName:           "Loyalty Program",
		PointsPerCurrencyUnit: decimal.NewFromInt(1),
		MinOrderAmount:        decimal.Zero,
		PointsExpiryDays:      365,
		PointsPerDiscountUnit: 100,
		MinRedeemPoints:       100,
		MaxRedeemPoints:       0,
		CouponValidityDays:    30,
		SignupBonus:           50,
		ReferralBonus:         100,
		ReferredBonus:         50,
	}
}

// Validate 檢查設定的業務約束
func (s LoyaltySettings) Validate() error {
	invalid := func(field string, value interface{}) error {
		return ErrInvalidLoyaltySettings.WithContext("field", field, "value", value)
	}

	if s.PointsPerCurrencyUnit.IsNegative() {
		return invalid("points_per_currency_unit", s.PointsPerCurrencyUnit.String())
	}
	if s.MinOrderAmount.IsNegative() {
		return invalid("min_order_amount", s.MinOrderAmount.String())
	}
	if s.PointsExpiryDays < 0 {
		return invalid("points_expiry_days", s.PointsExpiryDays)
	}
	if s.PointsPerDiscountUnit <= 0 {
		return invalid("points_per_discount_unit", s.PointsPerDiscountUnit)
	}
	if s.MinRedeemPoints < 0 {
		return invalid("min_redeem_points", s.MinRedeemPoints)
	}
	if s.MaxRedeemPoints < 0 || (s.MaxRedeemPoints > 0 && s.MaxRedeemPoints < s.MinRedeemPoints) {
		return invalid("max_redeem_points", s.MaxRedeemPoints)
	}
	if s.CouponValidityDays <= 0 {
		return invalid("coupon_validity_days", s.CouponValidityDays)
	}
	if s.SignupBonus < 0 {
		return invalid("signup_bonus", s.SignupBonus)
	}
	if s.ReferralBonus < 0 {
		return invalid("referral_bonus", s.ReferralBonus)
	}
	if s.ReferredBonus < 0 {
		return invalid("referred_bonus", s.ReferredBonus)
	}
	return nil
}

// ExpiryFrom 計算在 now 賺取的積分何時過期；永不過期時返回 nil
func (s LoyaltySettings) ExpiryFrom(now time.Time) *time.Time {
	if s.PointsExpiryDays <= 0 {
		return nil
	}
	t := now.AddDate(0, 0, s.PointsExpiryDays)
	return &t
}

// CouponExpiryFrom 計算在 now 兌換的優惠券到期時間
func (s LoyaltySettings) CouponExpiryFrom(now time.Time) time.Time {
	return now.AddDate(0, 0, s.CouponValidityDays)
}
