package coupon

import (
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/merchant"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/points"
	"github.com/shopspring/decimal"
)

// ===========================
// Redemption Calculator
// ===========================

// RedemptionPolicy 積分兌換折扣的規則（純值，無 I/O）
type RedemptionPolicy struct {
	PointsPerDiscountUnit int
	MinRedeemPoints       int
	MaxRedeemPoints       int // 0 = 不限
}

// PolicyFromSettings 由商家設定取出兌換規則
func PolicyFromSettings(s merchant.LoyaltySettings) RedemptionPolicy {
	return RedemptionPolicy{
		PointsPerDiscountUnit: s.PointsPerDiscountUnit,
		MinRedeemPoints:       s.MinRedeemPoints,
		MaxRedeemPoints:       s.MaxRedeemPoints,
	}
}

// CalculateDiscount discount = points / pointsPerDiscountUnit
//
// 返回精確的 decimal，不做預先四捨五入；呈現時再取兩位小數。
// 帳本只儲存整數積分。
func (p RedemptionPolicy) CalculateDiscount(pts points.PointsAmount) (decimal.Decimal, error) {
	if p.PointsPerDiscountUnit <= 0 {
		return decimal.Zero, ErrInvalidRedemptionPolicy.WithContext("points_per_discount_unit", p.PointsPerDiscountUnit)
	}
	return decimal.NewFromInt(int64(pts.Value())).
		DivRound(decimal.NewFromInt(int64(p.PointsPerDiscountUnit)), 8), nil
}

// Validate 在任何帳本異動前檢查兌換請求
//
// 檢查順序：數量 > 0、最低門檻、上限、可用餘額
func (p RedemptionPolicy) Validate(requested, current points.PointsAmount) error {
	if requested.Value() <= 0 {
		return points.ErrInvalidAmount.WithContext("amount", requested.Value())
	}
	if requested.Value() < p.MinRedeemPoints {
		return ErrBelowMinimumRedemption.WithContext(
			"requested", requested.Value(),
			"minimum", p.MinRedeemPoints,
		)
	}
	if p.MaxRedeemPoints > 0 && requested.Value() > p.MaxRedeemPoints {
		return ErrAboveMaximumRedemption.WithContext(
			"requested", requested.Value(),
			"maximum", p.MaxRedeemPoints,
		)
	}
	if requested.GreaterThan(current) {
		return points.ErrInsufficientBalance.WithContext(
			"requested", requested.Value(),
			"available", current.Value(),
		)
	}
	return nil
}
