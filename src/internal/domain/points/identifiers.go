package points

import (
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/shared"
)

// ===========================
// 實體 ID 類型定義
// ===========================

// AccountMarker 是 AccountID 的標記類型
type AccountMarker struct{}

// AccountID 積分帳戶的唯一標識符
type AccountID = shared.EntityID[AccountMarker]

// NewAccountID 生成新的積分帳戶 ID（UUID v4）
func NewAccountID() AccountID {
	return shared.NewEntityID[AccountMarker]()
}

// AccountIDFromString 從字串解析積分帳戶 ID
//
// 使用場景：
// - 從數據庫讀取 ID
// - 從 HTTP 路徑或 JWT claim 解析 ID
func AccountIDFromString(s string) (AccountID, error) {
	return shared.EntityIDFromString[AccountMarker](s, ErrInvalidAccountID)
}

// TransactionMarker 是 TransactionID 的標記類型
type TransactionMarker struct{}

// TransactionID 帳本交易的唯一標識符
type TransactionID = shared.EntityID[TransactionMarker]

func NewTransactionID() TransactionID {
	return shared.NewEntityID[TransactionMarker]()
}

func TransactionIDFromString(s string) (TransactionID, error) {
	return shared.EntityIDFromString[TransactionMarker](s, ErrInvalidTransactionID)
}
