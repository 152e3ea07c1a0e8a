package points

import (
	"math"

	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/merchant"
	"github.com/shopspring/decimal"
)

// ===========================
// PointsCalculationService 領域服務
// ===========================

// PointsCalculationService 購物積分計算領域服務
//
// 協調 LoyaltySettings（商家設定）與等級倍數，產出 PointsAmount。
// 無狀態，可在多個 goroutine 中共享。
type PointsCalculationService struct{}

func NewPointsCalculationService() *PointsCalculationService {
	return &PointsCalculationService{}
}

// CalculateOrderPoints 計算訂單可得積分
//
// 業務規則：
// - orderAmount < minOrderAmount 時為 0（不是錯誤）
// - base = floor(orderAmount × pointsPerCurrencyUnit)
// - points = floor(base × tierMultiplier)
// - 負數金額返回 0
//
// 返回 0 時調用者應跳過 Earn（Earn 不接受 0）
func (s *PointsCalculationService) CalculateOrderPoints(
	orderAmount decimal.Decimal,
	settings merchant.LoyaltySettings,
	tierMultiplier decimal.Decimal,
) (PointsAmount, error) {
	if !orderAmount.IsPositive() || orderAmount.LessThan(settings.MinOrderAmount) {
		return newPointsAmountUnchecked(0), nil
	}
	if tierMultiplier.IsZero() {
		tierMultiplier = decimal.NewFromInt(1)
	}

	base := orderAmount.Mul(settings.PointsPerCurrencyUnit).Floor()
	result := base.Mul(tierMultiplier).Floor()

	if result.IsNegative() {
		return newPointsAmountUnchecked(0), nil
	}
	if result.GreaterThan(decimal.NewFromInt(math.MaxInt32)) {
		return PointsAmount{}, ErrPointsOverflow.WithContext("order_amount", orderAmount.String())
	}
	return NewPointsAmount(int(result.IntPart()))
}
