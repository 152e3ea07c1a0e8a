package tier

import (
	"errors"
	"fmt"

	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/merchant"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/shared"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/tier"
	"github.com/jackyeh168/loyalty_ledger/src/internal/infrastructure/persistence"
	"gorm.io/gorm"
)

// TierRepositoryImpl 等級倉儲實現（GORM）
type TierRepositoryImpl struct {
	db *gorm.DB
}

// NewTierRepository 創建等級倉儲實例
func NewTierRepository(db *gorm.DB) tier.TierRepository {
	return &TierRepositoryImpl{db: db}
}

// Save 保存新等級
//
// 錯誤處理：
// - UNIQUE constraint 違反（同商家相同門檻）→ ErrDuplicateThreshold
func (r *TierRepositoryImpl) Save(ctx shared.TransactionContext, t *tier.Tier) error {
	if err := r.getDB(ctx).Create(toGORM(t)).Error; err != nil {
		return r.mapWriteError(err, t)
	}
	return nil
}

// Update 更新等級定義
func (r *TierRepositoryImpl) Update(ctx shared.TransactionContext, t *tier.Tier) error {
	model := toGORM(t)
	result := r.getDB(ctx).Model(&TierGORM{}).
		Where("tier_id = ?", model.TierID).
		Updates(map[string]interface{}{
			"name":       model.Name,
			"min_points": model.MinPoints,
			"multiplier": model.Multiplier,
			"sort_order": model.SortOrder,
			"benefits":   model.Benefits,
			"color":      model.Color,
			"updated_at": model.UpdatedAt,
		})
	if result.Error != nil {
		return r.mapWriteError(result.Error, t)
	}
	if result.RowsAffected == 0 {
		return tier.ErrTierNotFound.WithContext("tier_id", model.TierID)
	}
	return nil
}

// Delete 刪除等級（既有帳戶的 tier_id 於下一次重新分類時更新）
func (r *TierRepositoryImpl) Delete(ctx shared.TransactionContext, id tier.TierID) error {
	result := r.getDB(ctx).Where("tier_id = ?", id.String()).Delete(&TierGORM{})
	if result.Error != nil {
		return fmt.Errorf("delete tier: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return tier.ErrTierNotFound.WithContext("tier_id", id.String())
	}
	return nil
}

func (r *TierRepositoryImpl) FindByID(ctx shared.TransactionContext, id tier.TierID) (*tier.Tier, error) {
	var model TierGORM
	if err := r.getDB(ctx).Where("tier_id = ?", id.String()).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, tier.ErrTierNotFound.WithContext("tier_id", id.String())
		}
		return nil, fmt.Errorf("query tier: %w", err)
	}
	return model.toDomain()
}

// ListByMerchant 列出商家所有等級（依門檻升序）
func (r *TierRepositoryImpl) ListByMerchant(ctx shared.TransactionContext, merchantID merchant.MerchantID) ([]*tier.Tier, error) {
	var models []TierGORM
	err := r.getDB(ctx).
		Where("merchant_id = ?", merchantID.String()).
		Order("min_points").Order("sort_order").Order("created_at").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("list tiers: %w", err)
	}

	tiers := make([]*tier.Tier, 0, len(models))
	for i := range models {
		t, err := models[i].toDomain()
		if err != nil {
			return nil, err
		}
		tiers = append(tiers, t)
	}
	return tiers, nil
}

func (r *TierRepositoryImpl) mapWriteError(err error, t *tier.Tier) error {
	if persistence.IsUniqueConstraintError(err) {
		return tier.ErrDuplicateThreshold.WithContext(
			"merchant_id", t.MerchantID().String(),
			"min_points", t.MinPoints(),
		)
	}
	return fmt.Errorf("write tier: %w", err)
}

func (r *TierRepositoryImpl) getDB(ctx shared.TransactionContext) *gorm.DB {
	return persistence.ResolveDB(ctx, r.db)
}
