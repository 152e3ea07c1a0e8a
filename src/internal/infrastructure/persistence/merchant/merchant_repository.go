package merchant

import (
	"errors"
	"fmt"

	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/merchant"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/shared"
	"github.com/jackyeh168/loyalty_ledger/src/internal/infrastructure/persistence"
	"gorm.io/gorm"
)

// MerchantRepositoryImpl 商家倉儲實現（GORM）
type MerchantRepositoryImpl struct {
	db *gorm.DB
}

// NewMerchantRepository 創建商家倉儲實例
func NewMerchantRepository(db *gorm.DB) merchant.MerchantRepository {
	return &MerchantRepositoryImpl{db: db}
}

// Save 保存新商家
//
// 錯誤處理：
// - UNIQUE constraint 違反（external_store_id 重複）→ ErrMerchantAlreadyExists
func (r *MerchantRepositoryImpl) Save(ctx shared.TransactionContext, m *merchant.Merchant) error {
	if err := r.getDB(ctx).Create(toGORM(m)).Error; err != nil {
		if persistence.IsUniqueConstraintError(err) {
			return merchant.ErrMerchantAlreadyExists.WithContext("external_store_id", m.ExternalStoreID())
		}
		return fmt.Errorf("insert merchant: %w", err)
	}
	return nil
}

// Update 更新商家（含設定）
//
// 明確 Select 欄位，讓 active = false 等零值也被寫入
func (r *MerchantRepositoryImpl) Update(ctx shared.TransactionContext, m *merchant.Merchant) error {
	model := toGORM(m)
	result := r.getDB(ctx).Model(&MerchantGORM{}).
		Where("merchant_id = ?", model.MerchantID).
		Select("store_name", "access_token", "active", "settings", "updated_at").
		Updates(model)
	if result.Error != nil {
		return fmt.Errorf("update merchant: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return merchant.ErrMerchantNotFound.WithContext("merchant_id", model.MerchantID)
	}
	return nil
}

func (r *MerchantRepositoryImpl) FindByID(ctx shared.TransactionContext, id merchant.MerchantID) (*merchant.Merchant, error) {
	return r.findOne(r.getDB(ctx).Where("merchant_id = ?", id.String()), "merchant_id", id.String())
}

// FindByExternalStoreID 依外部商店 ID 查找（webhook 事件路由）
func (r *MerchantRepositoryImpl) FindByExternalStoreID(ctx shared.TransactionContext, externalStoreID string) (*merchant.Merchant, error) {
	return r.findOne(r.getDB(ctx).Where("external_store_id = ?", externalStoreID), "external_store_id", externalStoreID)
}

func (r *MerchantRepositoryImpl) findOne(db *gorm.DB, key, value string) (*merchant.Merchant, error) {
	var model MerchantGORM
	if err := db.First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, merchant.ErrMerchantNotFound.WithContext(key, value)
		}
		return nil, fmt.Errorf("query merchant: %w", err)
	}
	return model.toDomain()
}

func (r *MerchantRepositoryImpl) getDB(ctx shared.TransactionContext) *gorm.DB {
	return persistence.ResolveDB(ctx, r.db)
}
