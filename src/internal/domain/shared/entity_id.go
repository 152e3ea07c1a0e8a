package shared

import (
	"github.com/google/uuid"
)

// ===========================
// EntityID[T] 泛型實體 ID
// ===========================

// EntityID 泛型實體 ID 值對象
//
// 設計原則：
// 1. 類型安全：EntityID[AccountMarker] 與 EntityID[TierMarker] 是不同類型，不能混用
// 2. 不可變性（unexported field）
// 3. 自我驗證（FromString 檢查 UUID 格式）
//
// 使用範例：
//   type AccountMarker struct{}
//   type AccountID = shared.EntityID[AccountMarker]
//
//   id := shared.NewEntityID[AccountMarker]()
//   parsed, err := shared.EntityIDFromString[AccountMarker](s, ErrInvalidAccountID)
type EntityID[T any] struct {
	value uuid.UUID
}

// NewEntityID 生成新的實體 ID（UUID v4）
func NewEntityID[T any]() EntityID[T] {
	return EntityID[T]{value: uuid.New()}
}

// EntityIDFromString 從字串解析實體 ID
//
// 參數：
//   s - UUID 字串
//   errTemplate - 解析失敗時返回的錯誤（由各 bounded context 提供）
//
// 如果 errTemplate 支援 WithContext，會附加輸入值與解析錯誤
func EntityIDFromString[T any](s string, errTemplate error) (EntityID[T], error) {
	id, err := uuid.Parse(s)
	if err != nil {
		if domainErr, ok := errTemplate.(interface {
			WithContext(keyValues ...interface{}) error
		}); ok {
			return EntityID[T]{}, domainErr.WithContext(
				"input", s,
				"parse_error", err.Error(),
			)
		}
		return EntityID[T]{}, errTemplate
	}
	if id == uuid.Nil {
		// 全零 UUID 代表「未設定」，不是合法的實體 ID
		if domainErr, ok := errTemplate.(interface {
			WithContext(keyValues ...interface{}) error
		}); ok {
			return EntityID[T]{}, domainErr.WithContext("input", s, "reason", "nil uuid")
		}
		return EntityID[T]{}, errTemplate
	}
	return EntityID[T]{value: id}, nil
}

// String 轉換為字串表示（小寫 UUID）
func (e EntityID[T]) String() string {
	return e.value.String()
}

// Equals 比較兩個同類型 ID 是否相等
func (e EntityID[T]) Equals(other EntityID[T]) bool {
	return e.value == other.value
}

// IsEmpty 判斷是否為空 ID（零值）
//
// 空 ID 的場景：
// - 未初始化的結構體字段
// - 可為 null 的參照（例如帳戶尚未達到任何等級）
func (e EntityID[T]) IsEmpty() bool {
	return e.value == uuid.Nil
}
