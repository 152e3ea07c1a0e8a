package tier

import (
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/merchant"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/shared"
)

// TierRepository 等級倉儲接口
//
// Ledger Engine 只調用 ListByMerchant（唯讀），其餘方法由商家管理用例使用
type TierRepository interface {
	// Save 保存新等級；(merchant, minPoints) 唯一約束衝突時返回 ErrDuplicateThreshold
	Save(ctx shared.TransactionContext, t *Tier) error
	Update(ctx shared.TransactionContext, t *Tier) error
	Delete(ctx shared.TransactionContext, id TierID) error

	FindByID(ctx shared.TransactionContext, id TierID) (*Tier, error)
	ListByMerchant(ctx shared.TransactionContext, merchantID merchant.MerchantID) ([]*Tier, error)
}
