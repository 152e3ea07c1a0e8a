package merchant

import "github.com/jackyeh168/loyalty_ledger/src/internal/domain/shared"

// MerchantRepository 商家倉儲接口
//
// 寫操作（Save / Update）ctx 必須 non-nil；讀操作 ctx 可為 nil
type MerchantRepository interface {
	// Save 保存新商家；externalStoreID 重複時返回 ErrMerchantAlreadyExists
	Save(ctx shared.TransactionContext, m *Merchant) error

	// Update 更新既有商家（含設定）；不存在時返回 ErrMerchantNotFound
	Update(ctx shared.TransactionContext, m *Merchant) error

	FindByID(ctx shared.TransactionContext, id MerchantID) (*Merchant, error)
	FindByExternalStoreID(ctx shared.TransactionContext, externalStoreID string) (*Merchant, error)
}
