package customer

import (
	"errors"
	"fmt"

	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/customer"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/merchant"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/shared"
	"github.com/jackyeh168/loyalty_ledger/src/internal/infrastructure/persistence"
	"gorm.io/gorm"
)

// ===========================
// CustomerRepositoryImpl
// ===========================

// CustomerRepositoryImpl 顧客倉儲實現（GORM）
type CustomerRepositoryImpl struct {
	db *gorm.DB
}

// NewCustomerRepository 創建新的顧客倉儲實例
func NewCustomerRepository(db *gorm.DB) customer.CustomerRepository {
	return &CustomerRepositoryImpl{db: db}
}

// Save 保存顧客（Upsert 模式）
//
// 實作邏輯：
// 1. 將 Domain 模型轉換為 GORM 模型
// 2. 使用 GORM Save (Upsert: 存在則更新，不存在則新增)
// 3. 處理唯一約束衝突錯誤
//
// 錯誤處理：
// - UNIQUE constraint 違反（並發建立同一外部顧客）→ ErrCustomerAlreadyExists
func (r *CustomerRepositoryImpl) Save(ctx shared.TransactionContext, c *customer.Customer) error {
	db := r.getDB(ctx)

	if err := db.Save(toGORM(c)).Error; err != nil {
		if persistence.IsUniqueConstraintError(err) {
			return customer.ErrCustomerAlreadyExists.WithContext(
				"merchant_id", c.MerchantID().String(),
				"external_id", c.ExternalID().String(),
			)
		}
		return fmt.Errorf("save customer: %w", err)
	}
	return nil
}

// FindByID 根據顧客 ID 查找
func (r *CustomerRepositoryImpl) FindByID(ctx shared.TransactionContext, id customer.CustomerID) (*customer.Customer, error) {
	var gormModel CustomerGORM

	result := r.getDB(ctx).Where("customer_id = ?", id.String()).First(&gormModel)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, customer.ErrCustomerNotFound.WithContext("customer_id", id.String())
		}
		return nil, fmt.Errorf("query customer: %w", result.Error)
	}
	return gormModel.toDomain()
}

// FindByExternalID 根據 (merchant, 外部顧客 ID) 查找
func (r *CustomerRepositoryImpl) FindByExternalID(ctx shared.TransactionContext, merchantID merchant.MerchantID, externalID customer.ExternalCustomerID) (*customer.Customer, error) {
	var gormModel CustomerGORM

	result := r.getDB(ctx).
		Where("merchant_id = ? AND external_id = ?", merchantID.String(), externalID.String()).
		First(&gormModel)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, customer.ErrCustomerNotFound.WithContext("external_id", externalID.String())
		}
		return nil, fmt.Errorf("query customer: %w", result.Error)
	}
	return gormModel.toDomain()
}

// getDB 可選事務參與：ctx 為 nil 時使用 auto-commit 模式
func (r *CustomerRepositoryImpl) getDB(ctx shared.TransactionContext) *gorm.DB {
	return persistence.ResolveDB(ctx, r.db)
}
