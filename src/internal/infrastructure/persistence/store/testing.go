package store

import (
	"testing"

	"github.com/jackyeh168/loyalty_ledger/src/internal/infrastructure/persistence/testdb"
)

// NewForTest 使用 in-memory SQLite 建立完整的儲存層（僅供測試）
func NewForTest(t *testing.T) *Store {
	t.Helper()
	return New(testdb.New(t, Models()...))
}
