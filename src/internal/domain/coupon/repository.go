package coupon

import (
	"time"

	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/merchant"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/points"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/shared"
)

// CouponRepository 優惠券倉儲接口
type CouponRepository interface {
	Save(ctx shared.TransactionContext, c *Coupon) error

	// UpdateUsage 只寫入使用狀態；資料庫中已標記使用時返回 ErrCouponAlreadyUsed
	UpdateUsage(ctx shared.TransactionContext, c *Coupon) error

	// UpdateExternal 只寫入外部建立狀態，條件是資料庫中的狀態與次數仍為 expectStatus / expectAttempts。
	// 返回 false 表示已被其他呼叫者改變（未寫入）
	UpdateExternal(ctx shared.TransactionContext, c *Coupon, expectStatus ExternalStatus, expectAttempts int) (bool, error)

	FindByID(ctx shared.TransactionContext, id CouponID) (*Coupon, error)
	FindByCode(ctx shared.TransactionContext, merchantID merchant.MerchantID, code string) (*Coupon, error)

	ListByMerchant(ctx shared.TransactionContext, merchantID merchant.MerchantID, offset, limit int) ([]*Coupon, int64, error)
	ListByAccount(ctx shared.TransactionContext, accountID points.AccountID, offset, limit int) ([]*Coupon, int64, error)

	// CountByMerchant 商家的優惠券總數，以及在 now 時未使用且未到期的數量
	CountByMerchant(ctx shared.TransactionContext, merchantID merchant.MerchantID, now time.Time) (total int64, active int64, err error)

	// ListPendingExternal 外部狀態為 pending / failed（或 staleBefore 前中斷的 issuing）且嘗試次數 < maxAttempts 的優惠券
	ListPendingExternal(ctx shared.TransactionContext, maxAttempts int, staleBefore time.Time, limit int) ([]*Coupon, error)
}
