package coupon

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ExternalCouponRequest 在外部商務平台建立優惠碼的請求
type ExternalCouponRequest struct {
	StoreID     string
	AccessToken string
	Code        string
	Amount      decimal.Decimal
	StartsAt    time.Time
	ExpiresAt   time.Time
}

// ExternalIssuer 外部優惠碼建立能力（由 Infrastructure 實作）
//
// 一律在帳本事務提交後調用，失敗不影響帳本狀態
type ExternalIssuer interface {
	// CreateCoupon 返回外部平台的優惠碼參照
	CreateCoupon(ctx context.Context, req ExternalCouponRequest) (string, error)
}
