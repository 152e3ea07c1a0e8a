package customer

import (
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/shared"
)

// CustomerMarker 顧客 ID 標記類型
type CustomerMarker struct{}

// CustomerID 顧客資料的內部 ID（與積分帳戶 ID 分開）
type CustomerID = shared.EntityID[CustomerMarker]

// NewCustomerID 生成新的顧客 ID
func NewCustomerID() CustomerID {
	return shared.NewEntityID[CustomerMarker]()
}

// CustomerIDFromString 從字串解析顧客 ID
func CustomerIDFromString(s string) (CustomerID, error) {
	return shared.EntityIDFromString[CustomerMarker](s, ErrInvalidCustomerID)
}
