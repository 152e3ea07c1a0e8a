package customer

import (
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/merchant"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/shared"
)

// ===========================
// CustomerRepository Interface
// ===========================

// CustomerRepository 顧客倉儲接口
//
// 事務管理策略：
//
// Write Operations - ctx 必須 non-nil：
//   - Save(): 新增或更新（Upsert，基於 CustomerID）
//
// Read Operations - ctx 可為 nil：
//   - FindByExternalID(): 依 (merchant, externalID) 查詢
//
// 使用場景：
//
//	txManager.InTransaction(ctx, func(tx shared.TransactionContext) error {
//	    c, err := repo.FindByExternalID(tx, merchantID, externalID)
//	    if errors.Is(err, customer.ErrCustomerNotFound) {
//	        c, _ = customer.NewCustomer(merchantID, externalID, profile)
//	    }
//	    return repo.Save(tx, c)
//	})
type CustomerRepository interface {
	// Save 保存顧客（新增或更新）
	// 錯誤：ErrCustomerAlreadyExists（(merchant, externalID) 唯一約束衝突）
	Save(ctx shared.TransactionContext, c *Customer) error

	FindByID(ctx shared.TransactionContext, id CustomerID) (*Customer, error)
	FindByExternalID(ctx shared.TransactionContext, merchantID merchant.MerchantID, externalID ExternalCustomerID) (*Customer, error)
}
