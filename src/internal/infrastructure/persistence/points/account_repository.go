package points

import (
	"errors"
	"fmt"

	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/merchant"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/points"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/shared"
	"github.com/jackyeh168/loyalty_ledger/src/internal/infrastructure/persistence"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ===========================
// AccountRepositoryImpl
// ===========================

// AccountRepositoryImpl 積分帳戶倉儲實現（GORM）
//
// 設計原則：
// - 實作 points.AccountRepository 接口
// - 處理 Domain 與 GORM 模型轉換
// - 將 GORM 錯誤轉換為 Domain 錯誤
// - 以 version 欄位實作樂觀鎖，並在支援的資料庫上使用 FOR UPDATE 行鎖
type AccountRepositoryImpl struct {
	db *gorm.DB
}

// NewAccountRepository 創建新的積分帳戶倉儲實例
func NewAccountRepository(db *gorm.DB) points.AccountRepository {
	return &AccountRepositoryImpl{db: db}
}

// Save 保存新的積分帳戶
//
// 錯誤處理：
// - UNIQUE constraint 違反（(merchant, customer_ref) 或推薦碼重複）→ ErrAccountAlreadyExists
// - 其他資料庫錯誤 → 包裝後返回
func (r *AccountRepositoryImpl) Save(ctx shared.TransactionContext, account *points.Account) error {
	db := r.getDB(ctx)

	if err := db.Create(toAccountGORM(account)).Error; err != nil {
		if persistence.IsUniqueConstraintError(err) {
			return points.ErrAccountAlreadyExists.WithContext(
				"merchant_id", account.MerchantID().String(),
				"customer_ref", account.CustomerRef(),
			)
		}
		return fmt.Errorf("insert account: %w", err)
	}

	account.MarkPersisted()
	return nil
}

// Update 以樂觀鎖更新積分帳戶
//
// 實作邏輯：
// 1. 無變更時直接返回
// 2. UPDATE ... WHERE account_id = ? AND version = ExpectedVersion
// 3. 影響 0 列 → 區分「不存在」與「版本衝突」
//
// 使用 map 更新：積分可能降為 0，Updates(struct) 會忽略零值字段
func (r *AccountRepositoryImpl) Update(ctx shared.TransactionContext, account *points.Account) error {
	if !account.HasChanges() {
		return nil
	}
	db := r.getDB(ctx)

	model := toAccountGORM(account)
	result := db.Model(&AccountGORM{}).
		Where("account_id = ? AND version = ?", model.AccountID, account.ExpectedVersion()).
		Updates(map[string]interface{}{
			"total_points":   model.TotalPoints,
			"used_points":    model.UsedPoints,
			"current_points": model.CurrentPoints,
			"tier_id":        model.TierID,
			"version":        model.Version,
			"updated_at":     model.UpdatedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("update account: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		var count int64
		if err := db.Model(&AccountGORM{}).Where("account_id = ?", model.AccountID).Count(&count).Error; err != nil {
			return fmt.Errorf("check account existence: %w", err)
		}
		if count == 0 {
			return points.ErrAccountNotFound.WithContext("account_id", model.AccountID)
		}
		return points.ErrConcurrentModification.WithContext(
			"account_id", model.AccountID,
			"expected_version", account.ExpectedVersion(),
		)
	}

	account.MarkPersisted()
	return nil
}

// FindByID 根據帳戶 ID 查找積分帳戶
func (r *AccountRepositoryImpl) FindByID(ctx shared.TransactionContext, accountID points.AccountID) (*points.Account, error) {
	return r.findOne(r.getDB(ctx), "account_id = ?", []interface{}{accountID.String()}, "account_id", accountID.String())
}

// FindByIDForUpdate 讀取並鎖定帳戶列（SELECT ... FOR UPDATE）
//
// SQLite 不支援行鎖，驅動會忽略 Locking 子句；此時寫入由單一連線序列化
func (r *AccountRepositoryImpl) FindByIDForUpdate(ctx shared.TransactionContext, accountID points.AccountID) (*points.Account, error) {
	db := r.getDB(ctx).Clauses(clause.Locking{Strength: "UPDATE"})
	return r.findOne(db, "account_id = ?", []interface{}{accountID.String()}, "account_id", accountID.String())
}

// FindByMerchantCustomer 依 (merchant, customerRef) 查找
func (r *AccountRepositoryImpl) FindByMerchantCustomer(ctx shared.TransactionContext, merchantID merchant.MerchantID, customerRef string) (*points.Account, error) {
	return r.findOne(r.getDB(ctx),
		"merchant_id = ? AND customer_ref = ?", []interface{}{merchantID.String(), customerRef},
		"customer_ref", customerRef,
	)
}

// FindByReferralCode 依推薦碼查找（同商家內）
func (r *AccountRepositoryImpl) FindByReferralCode(ctx shared.TransactionContext, merchantID merchant.MerchantID, code string) (*points.Account, error) {
	return r.findOne(r.getDB(ctx),
		"merchant_id = ? AND referral_code = ?", []interface{}{merchantID.String(), code},
		"referral_code", code,
	)
}

// ListByMerchant 分頁列出商家的帳戶（新到舊）
func (r *AccountRepositoryImpl) ListByMerchant(ctx shared.TransactionContext, merchantID merchant.MerchantID, offset, limit int) ([]*points.Account, int64, error) {
	db := r.getDB(ctx)

	var total int64
	if err := db.Model(&AccountGORM{}).Where("merchant_id = ?", merchantID.String()).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count accounts: %w", err)
	}

	var models []AccountGORM
	err := db.Where("merchant_id = ?", merchantID.String()).
		Order("created_at DESC").Order("account_id").
		Offset(offset).Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list accounts: %w", err)
	}

	accounts := make([]*points.Account, 0, len(models))
	for i := range models {
		account, err := models[i].toDomain()
		if err != nil {
			return nil, 0, err
		}
		accounts = append(accounts, account)
	}
	return accounts, total, nil
}

// ListIDsByMerchant 列出商家所有帳戶 ID（等級批次重新分類）
func (r *AccountRepositoryImpl) ListIDsByMerchant(ctx shared.TransactionContext, merchantID merchant.MerchantID) ([]points.AccountID, error) {
	var raw []string
	err := r.getDB(ctx).Model(&AccountGORM{}).
		Where("merchant_id = ?", merchantID.String()).
		Order("created_at").
		Pluck("account_id", &raw).Error
	if err != nil {
		return nil, fmt.Errorf("list account ids: %w", err)
	}

	ids := make([]points.AccountID, 0, len(raw))
	for _, s := range raw {
		id, err := points.AccountIDFromString(s)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// TopByMerchant 累積積分最高的帳戶
func (r *AccountRepositoryImpl) TopByMerchant(ctx shared.TransactionContext, merchantID merchant.MerchantID, limit int) ([]*points.Account, error) {
	var models []AccountGORM
	err := r.getDB(ctx).Where("merchant_id = ?", merchantID.String()).
		Order("total_points DESC").Order("created_at").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("list top accounts: %w", err)
	}

	accounts := make([]*points.Account, 0, len(models))
	for i := range models {
		account, err := models[i].toDomain()
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, nil
}

// CountByTier 依 tier_id 分組計數；NULL 計在 ""
func (r *AccountRepositoryImpl) CountByTier(ctx shared.TransactionContext, merchantID merchant.MerchantID) (map[string]int64, error) {
	var rows []struct {
		TierID *string
		Count  int64
	}
	err := r.getDB(ctx).Model(&AccountGORM{}).
		Select("tier_id, COUNT(*) AS count").
		Where("merchant_id = ?", merchantID.String()).
		Group("tier_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count accounts by tier: %w", err)
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		key := ""
		if row.TierID != nil {
			key = *row.TierID
		}
		counts[key] += row.Count
	}
	return counts, nil
}

// ===========================
// Helper Methods
// ===========================

func (r *AccountRepositoryImpl) findOne(db *gorm.DB, query string, args []interface{}, key, value string) (*points.Account, error) {
	var model AccountGORM
	if err := db.Where(query, args...).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, points.ErrAccountNotFound.WithContext(key, value)
		}
		return nil, fmt.Errorf("query account: %w", err)
	}
	return model.toDomain()
}

// getDB 獲取 GORM DB 實例（ctx 為 nil 時使用 auto-commit 模式）
func (r *AccountRepositoryImpl) getDB(ctx shared.TransactionContext) *gorm.DB {
	return persistence.ResolveDB(ctx, r.db)
}
