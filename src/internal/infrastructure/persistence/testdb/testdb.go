// Package testdb 提供整合測試用的 SQLite in-memory 資料庫
package testdb

import (
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ===========================
// 測試輔助函數
// ===========================

// New 創建測試用的 SQLite in-memory 資料庫並遷移指定模型
// 使用場景：整合測試，測試 Repository 與真實資料庫的互動
//
// 設計原則：
// 1. 隔離性：每個測試使用獨立的 in-memory DB
// 2. 速度：SQLite in-memory 快速，適合測試
// 3. 真實性：使用真實 SQL 引擎，而非 Mock
//
// 連線池固定為 1：in-memory 資料庫只存在於單一連線，並發測試也因此共用同一份資料
// 測試結束時自動關閉（t.Cleanup）
func New(t *testing.T, models ...interface{}) *gorm.DB {
	t.Helper()

	// 1. 建立 SQLite in-memory 資料庫
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent), // 測試時靜音
	})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	// 2. 自動遷移（創建測試表）
	if len(models) > 0 {
		if err := db.AutoMigrate(models...); err != nil {
			t.Fatalf("Failed to migrate test database: %v", err)
		}
	}

	// 3. 註冊清理函數（SQLite in-memory 資料庫會在連接關閉時自動清理）
	t.Cleanup(func() {
		sqlDB.Close()
	})

	return db
}
