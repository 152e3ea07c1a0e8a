package persistence

import (
	"context"
	"fmt"

	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/shared"
	"gorm.io/gorm"
)

// ===========================
// GORMTransactionManager
// ===========================

// GORMTransactionManager 以 GORM 實作 shared.TransactionManager
//
// 保證：
// 1. fn 返回錯誤 → 回滾，原錯誤原樣返回（errors.Is 仍可判斷領域錯誤）
// 2. fn panic → 回滾後重新 panic
// 3. fn 返回 nil → 提交
//
// ctx 透過 WithContext 綁定到事務連線：取消或逾時會中止進行中的 SQL
type GORMTransactionManager struct {
	db *gorm.DB
}

// NewGORMTransactionManager 創建事務管理器
func NewGORMTransactionManager(db *gorm.DB) *GORMTransactionManager {
	return &GORMTransactionManager{db: db}
}

// InTransaction 在單一資料庫事務中執行 fn
func (m *GORMTransactionManager) InTransaction(ctx context.Context, fn func(tx shared.TransactionContext) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// gorm.DB.Transaction 已處理 panic 回滾並重新拋出
	var fnErr error
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		fnErr = fn(NewGORMTransactionContext(tx))
		return fnErr
	})
	if err == nil {
		return nil
	}
	if fnErr != nil {
		return fnErr
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return fmt.Errorf("transaction failed: %w", err)
}

// DB 返回底層連線（供健康檢查使用）
func (m *GORMTransactionManager) DB() *gorm.DB {
	return m.db
}
