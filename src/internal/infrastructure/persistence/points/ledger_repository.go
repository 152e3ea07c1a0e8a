package points

import (
	"errors"
	"fmt"
	"time"

	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/merchant"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/points"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/shared"
	"github.com/jackyeh168/loyalty_ledger/src/internal/infrastructure/persistence"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// earnKinds 可被過期掃描的交易類型
var earnKinds = []string{
	points.KindEarnPurchase.String(),
	points.KindEarnSignup.String(),
	points.KindEarnReferral.String(),
	points.KindEarnBonus.String(),
}

// ===========================
// LedgerRepositoryImpl
// ===========================

// LedgerRepositoryImpl 帳本交易倉儲實現（GORM，Append-only）
//
// 寫入只有兩種：
// - Append：INSERT 新交易
// - MarkSwept：UPDATE swept_at / expired_points（WHERE swept_at IS NULL）
type LedgerRepositoryImpl struct {
	db *gorm.DB
}

// NewLedgerRepository 創建帳本倉儲實例
func NewLedgerRepository(db *gorm.DB) points.LedgerRepository {
	return &LedgerRepositoryImpl{db: db}
}

// Append 寫入新交易
//
// 錯誤處理：
// - UNIQUE constraint 違反（idx_ledger_idempotency）→ ErrDuplicateEvent
func (r *LedgerRepositoryImpl) Append(ctx shared.TransactionContext, entry *points.LedgerTransaction) error {
	if err := r.getDB(ctx).Create(toLedgerEntryGORM(entry)).Error; err != nil {
		if persistence.IsUniqueConstraintError(err) {
			return points.ErrDuplicateEvent.WithContext(
				"account_id", entry.AccountID().String(),
				"kind", entry.Kind().String(),
				"correlation", entry.Correlation().String(),
			)
		}
		return fmt.Errorf("append ledger entry: %w", err)
	}
	return nil
}

// MarkSwept 寫入過期處理標記（寫一次）
func (r *LedgerRepositoryImpl) MarkSwept(ctx shared.TransactionContext, entry *points.LedgerTransaction) error {
	if entry.SweptAt() == nil {
		return fmt.Errorf("mark ledger entry swept: %s has no swept_at", entry.TransactionID().String())
	}
	db := r.getDB(ctx)

	id := entry.TransactionID().String()
	result := db.Model(&LedgerEntryGORM{}).
		Where("transaction_id = ? AND swept_at IS NULL", id).
		Updates(map[string]interface{}{
			"swept_at":       entry.SweptAt().UTC(),
			"expired_points": entry.ExpiredPoints(),
		})
	if result.Error != nil {
		return fmt.Errorf("mark ledger entry swept: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := db.Model(&LedgerEntryGORM{}).Where("transaction_id = ?", id).Count(&count).Error; err != nil {
			return fmt.Errorf("check ledger entry existence: %w", err)
		}
		if count == 0 {
			return points.ErrTransactionNotFound.WithContext("transaction_id", id)
		}
		return points.ErrAlreadySwept.WithContext("transaction_id", id)
	}
	return nil
}

func (r *LedgerRepositoryImpl) FindByID(ctx shared.TransactionContext, id points.TransactionID) (*points.LedgerTransaction, error) {
	return r.findOne(r.getDB(ctx).Where("transaction_id = ?", id.String()), "transaction_id", id.String())
}

// FindByIDForUpdate 過期掃描時鎖定單筆交易
func (r *LedgerRepositoryImpl) FindByIDForUpdate(ctx shared.TransactionContext, id points.TransactionID) (*points.LedgerTransaction, error) {
	db := r.getDB(ctx).Clauses(clause.Locking{Strength: "UPDATE"})
	return r.findOne(db.Where("transaction_id = ?", id.String()), "transaction_id", id.String())
}

// FindByCorrelation 依 (account, kind, correlation) 查找（冪等性檢查）
func (r *LedgerRepositoryImpl) FindByCorrelation(ctx shared.TransactionContext, accountID points.AccountID, kind points.TransactionKind, correlation points.CorrelationRef) (*points.LedgerTransaction, error) {
	if correlation.IsZero() {
		return nil, points.ErrInvalidCorrelation.WithContext("reason", "empty correlation")
	}
	db := r.getDB(ctx).Where("account_id = ? AND kind = ? AND correlation = ?",
		accountID.String(), kind.String(), correlation.String())
	return r.findOne(db, "correlation", correlation.String())
}

// FindByMerchantCorrelation 依 (merchant, kind, correlation) 查找最早的一筆
func (r *LedgerRepositoryImpl) FindByMerchantCorrelation(ctx shared.TransactionContext, merchantID merchant.MerchantID, kind points.TransactionKind, correlation points.CorrelationRef) (*points.LedgerTransaction, error) {
	if correlation.IsZero() {
		return nil, points.ErrInvalidCorrelation.WithContext("reason", "empty correlation")
	}
	db := r.getDB(ctx).
		Where("merchant_id = ? AND kind = ? AND correlation = ?",
			merchantID.String(), kind.String(), correlation.String()).
		Order("created_at")
	return r.findOne(db, "correlation", correlation.String())
}

// ListByAccount 分頁列出帳戶交易（新到舊）
func (r *LedgerRepositoryImpl) ListByAccount(ctx shared.TransactionContext, accountID points.AccountID, offset, limit int) ([]*points.LedgerTransaction, int64, error) {
	db := r.getDB(ctx)

	var total int64
	if err := db.Model(&LedgerEntryGORM{}).Where("account_id = ?", accountID.String()).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count ledger entries: %w", err)
	}

	var models []LedgerEntryGORM
	err := db.Where("account_id = ?", accountID.String()).
		Order("created_at DESC").Order("transaction_id DESC").
		Offset(offset).Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list ledger entries: %w", err)
	}

	entries, err := toDomainList(models)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// ListByMerchant 分頁列出商家的交易（新到舊），可依帳戶與類型篩選
func (r *LedgerRepositoryImpl) ListByMerchant(
	ctx shared.TransactionContext,
	merchantID merchant.MerchantID,
	filter points.LedgerFilter,
	offset, limit int,
) ([]*points.LedgerTransaction, int64, error) {
	scope := func(db *gorm.DB) *gorm.DB {
		db = db.Where("merchant_id = ?", merchantID.String())
		if !filter.AccountID.IsEmpty() {
			db = db.Where("account_id = ?", filter.AccountID.String())
		}
		if filter.Kind != "" {
			db = db.Where("kind = ?", filter.Kind.String())
		}
		return db
	}

	var total int64
	if err := r.getDB(ctx).Model(&LedgerEntryGORM{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count merchant ledger entries: %w", err)
	}

	var models []LedgerEntryGORM
	err := r.getDB(ctx).Scopes(scope).
		Order("created_at DESC").Order("transaction_id DESC").
		Offset(offset).Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list merchant ledger entries: %w", err)
	}

	entries, err := toDomainList(models)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// SumByAccount 由帳本重放積分：earned = Σ amount>0，used = Σ |amount<0|
func (r *LedgerRepositoryImpl) SumByAccount(ctx shared.TransactionContext, accountID points.AccountID) (int, int, error) {
	var row struct {
		Earned int64
		Used   int64
	}
	err := r.getDB(ctx).Model(&LedgerEntryGORM{}).
		Select("COALESCE(SUM(CASE WHEN amount > 0 THEN amount ELSE 0 END), 0) AS earned, " +
			"COALESCE(SUM(CASE WHEN amount < 0 THEN -amount ELSE 0 END), 0) AS used").
		Where("account_id = ?", accountID.String()).
		Scan(&row).Error
	if err != nil {
		return 0, 0, fmt.Errorf("sum ledger entries: %w", err)
	}
	return int(row.Earned), int(row.Used), nil
}

// SumByMerchant 商家在 [from, to) 期間的 earned / used
func (r *LedgerRepositoryImpl) SumByMerchant(ctx shared.TransactionContext, merchantID merchant.MerchantID, from, to time.Time) (int, int, error) {
	var row struct {
		Earned int64
		Used   int64
	}
	db := r.getDB(ctx).Model(&LedgerEntryGORM{}).
		Select("COALESCE(SUM(CASE WHEN amount > 0 THEN amount ELSE 0 END), 0) AS earned, " +
			"COALESCE(SUM(CASE WHEN amount < 0 THEN -amount ELSE 0 END), 0) AS used").
		Where("merchant_id = ?", merchantID.String())
	if !from.IsZero() {
		db = db.Where("created_at >= ?", from.UTC())
	}
	if !to.IsZero() {
		db = db.Where("created_at < ?", to.UTC())
	}
	if err := db.Scan(&row).Error; err != nil {
		return 0, 0, fmt.Errorf("sum merchant ledger entries: %w", err)
	}
	return int(row.Earned), int(row.Used), nil
}

// FindExpiryCandidates 到期且未處理的獲得交易（依 expires_at, created_at, transaction_id 升序）
//
// after 為鍵集分頁位置：本輪失敗或略過的交易仍未標記，掃描以位置前進而不是排除清單
func (r *LedgerRepositoryImpl) FindExpiryCandidates(ctx shared.TransactionContext, now time.Time, after *points.ExpiryCursor, limit int) ([]*points.LedgerTransaction, error) {
	db := r.getDB(ctx).
		Where("kind IN ?", earnKinds).
		Where("swept_at IS NULL").
		Where("expires_at IS NOT NULL AND expires_at <= ?", now.UTC())

	if after != nil {
		expiresAt, createdAt := after.ExpiresAt.UTC(), after.CreatedAt.UTC()
		db = db.Where(
			"(expires_at > ? OR (expires_at = ? AND (created_at > ? OR (created_at = ? AND transaction_id > ?))))",
			expiresAt, expiresAt, createdAt, createdAt, after.TransactionID.String(),
		)
	}

	var models []LedgerEntryGORM
	err := db.Order("expires_at").Order("created_at").Order("transaction_id").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("find expiry candidates: %w", err)
	}
	return toDomainList(models)
}

// ===========================
// Helper Methods
// ===========================

func (r *LedgerRepositoryImpl) findOne(db *gorm.DB, key, value string) (*points.LedgerTransaction, error) {
	var model LedgerEntryGORM
	if err := db.First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, points.ErrTransactionNotFound.WithContext(key, value)
		}
		return nil, fmt.Errorf("query ledger entry: %w", err)
	}
	return model.toDomain()
}

func toDomainList(models []LedgerEntryGORM) ([]*points.LedgerTransaction, error) {
	entries := make([]*points.LedgerTransaction, 0, len(models))
	for i := range models {
		entry, err := models[i].toDomain()
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (r *LedgerRepositoryImpl) getDB(ctx shared.TransactionContext) *gorm.DB {
	return persistence.ResolveDB(ctx, r.db)
}
