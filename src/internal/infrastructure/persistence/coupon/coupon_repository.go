package coupon

import (
	"errors"
	"fmt"
	"time"

	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/coupon"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/merchant"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/points"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/shared"
	"github.com/jackyeh168/loyalty_ledger/src/internal/infrastructure/persistence"
	"gorm.io/gorm"
)

// CouponRepositoryImpl 兌換券倉儲實現（GORM）
type CouponRepositoryImpl struct {
	db *gorm.DB
}

// NewCouponRepository 創建兌換券倉儲實例
func NewCouponRepository(db *gorm.DB) coupon.CouponRepository {
	return &CouponRepositoryImpl{db: db}
}

// Save 保存新兌換券（與 REDEEM_COUPON 扣減在同一事務中）
func (r *CouponRepositoryImpl) Save(ctx shared.TransactionContext, c *coupon.Coupon) error {
	if err := r.getDB(ctx).Create(toGORM(c)).Error; err != nil {
		return fmt.Errorf("insert coupon: %w", err)
	}
	return nil
}

// UpdateUsage 結帳確認使用；以 used = false 為條件，避免覆寫外部建立狀態
func (r *CouponRepositoryImpl) UpdateUsage(ctx shared.TransactionContext, c *coupon.Coupon) error {
	model := toGORM(c)
	result := r.getDB(ctx).Model(&CouponGORM{}).
		Where("coupon_id = ? AND used = ?", model.CouponID, false).
		Updates(map[string]interface{}{
			"used":       model.Used,
			"used_at":    model.UsedAt,
			"updated_at": model.UpdatedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("update coupon usage: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		if _, err := r.FindByID(ctx, c.CouponID()); err != nil {
			return err
		}
		return coupon.ErrCouponAlreadyUsed.WithContext("code", model.Code)
	}
	return nil
}

// UpdateExternal 條件式寫入外部建立狀態（compare-and-set）
//
// 只更新 external_* 與 updated_at，使用狀態永遠不會被外部呼叫的結果覆寫
func (r *CouponRepositoryImpl) UpdateExternal(
	ctx shared.TransactionContext,
	c *coupon.Coupon,
	expectStatus coupon.ExternalStatus,
	expectAttempts int,
) (bool, error) {
	model := toGORM(c)
	result := r.getDB(ctx).Model(&CouponGORM{}).
		Where("coupon_id = ? AND external_status = ? AND external_attempts = ?",
			model.CouponID, string(expectStatus), expectAttempts).
		Updates(map[string]interface{}{
			"external_status":   model.ExternalStatus,
			"external_ref":      model.ExternalRef,
			"external_error":    model.ExternalError,
			"external_attempts": model.ExternalAttempts,
			"updated_at":        model.UpdatedAt,
		})
	if result.Error != nil {
		return false, fmt.Errorf("update coupon external status: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (r *CouponRepositoryImpl) FindByID(ctx shared.TransactionContext, id coupon.CouponID) (*coupon.Coupon, error) {
	return r.findOne(r.getDB(ctx).Where("coupon_id = ?", id.String()), "coupon_id", id.String())
}

// FindByCode 依優惠碼查找（同商家內）
func (r *CouponRepositoryImpl) FindByCode(ctx shared.TransactionContext, merchantID merchant.MerchantID, code string) (*coupon.Coupon, error) {
	db := r.getDB(ctx).Where("merchant_id = ? AND code = ?", merchantID.String(), code)
	return r.findOne(db, "code", code)
}

// ListByMerchant 商家的兌換券（新到舊）
func (r *CouponRepositoryImpl) ListByMerchant(ctx shared.TransactionContext, merchantID merchant.MerchantID, offset, limit int) ([]*coupon.Coupon, int64, error) {
	return r.list(r.getDB(ctx), "merchant_id = ?", merchantID.String(), offset, limit)
}

// ListByAccount 顧客的兌換券（新到舊）
func (r *CouponRepositoryImpl) ListByAccount(ctx shared.TransactionContext, accountID points.AccountID, offset, limit int) ([]*coupon.Coupon, int64, error) {
	return r.list(r.getDB(ctx), "account_id = ?", accountID.String(), offset, limit)
}

// CountByMerchant 總數與可用數（未使用、未到期）
func (r *CouponRepositoryImpl) CountByMerchant(ctx shared.TransactionContext, merchantID merchant.MerchantID, now time.Time) (int64, int64, error) {
	var total, active int64
	db := r.getDB(ctx)
	if err := db.Model(&CouponGORM{}).Where("merchant_id = ?", merchantID.String()).Count(&total).Error; err != nil {
		return 0, 0, fmt.Errorf("count coupons: %w", err)
	}
	err := db.Model(&CouponGORM{}).
		Where("merchant_id = ? AND used = ? AND expires_at >= ?", merchantID.String(), false, now.UTC()).
		Count(&active).Error
	if err != nil {
		return 0, 0, fmt.Errorf("count active coupons: %w", err)
	}
	return total, active, nil
}

// ListPendingExternal 尚需在外部平台建立的兌換券（舊到新）
func (r *CouponRepositoryImpl) ListPendingExternal(ctx shared.TransactionContext, maxAttempts int, staleBefore time.Time, limit int) ([]*coupon.Coupon, error) {
	db := r.getDB(ctx).Where(
		"(external_status IN ? OR (external_status = ? AND updated_at < ?))",
		[]string{string(coupon.ExternalPending), string(coupon.ExternalFailed)},
		string(coupon.ExternalIssuing), staleBefore.UTC(),
	)
	if maxAttempts > 0 {
		db = db.Where("external_attempts < ?", maxAttempts)
	}

	var models []CouponGORM
	if err := db.Order("created_at").Limit(limit).Find(&models).Error; err != nil {
		return nil, fmt.Errorf("list pending coupons: %w", err)
	}
	return toDomainList(models)
}

// ===========================
// Helper Methods
// ===========================

func (r *CouponRepositoryImpl) list(db *gorm.DB, query string, arg string, offset, limit int) ([]*coupon.Coupon, int64, error) {
	var total int64
	if err := db.Model(&CouponGORM{}).Where(query, arg).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count coupons: %w", err)
	}

	var models []CouponGORM
	err := db.Where(query, arg).
		Order("created_at DESC").Order("coupon_id").
		Offset(offset).Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list coupons: %w", err)
	}

	coupons, err := toDomainList(models)
	if err != nil {
		return nil, 0, err
	}
	return coupons, total, nil
}

func (r *CouponRepositoryImpl) findOne(db *gorm.DB, key, value string) (*coupon.Coupon, error) {
	var model CouponGORM
	if err := db.First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, coupon.ErrCouponNotFound.WithContext(key, value)
		}
		return nil, fmt.Errorf("query coupon: %w", err)
	}
	return model.toDomain()
}

func toDomainList(models []CouponGORM) ([]*coupon.Coupon, error) {
	coupons := make([]*coupon.Coupon, 0, len(models))
	for i := range models {
		c, err := models[i].toDomain()
		if err != nil {
			return nil, err
		}
		coupons = append(coupons, c)
	}
	return coupons, nil
}

func (r *CouponRepositoryImpl) getDB(ctx shared.TransactionContext) *gorm.DB {
	return persistence.ResolveDB(ctx, r.db)
}
