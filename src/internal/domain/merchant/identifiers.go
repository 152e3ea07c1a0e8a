package merchant

import "github.com/jackyeh168/loyalty_ledger/src/internal/domain/shared"

// MerchantMarker 是 MerchantID 的標記類型
type MerchantMarker struct{}

// MerchantID 商家（外部商店安裝）的唯一標識符
type MerchantID = shared.EntityID[MerchantMarker]

// NewMerchantID 生成新的商家 ID
func NewMerchantID() MerchantID {
	return shared.NewEntityID[MerchantMarker]()
}

// MerchantIDFromString 從字串解析商家 ID
func MerchantIDFromString(s string) (MerchantID, error) {
	return shared.EntityIDFromString[MerchantMarker](s, ErrInvalidMerchantID)
}
