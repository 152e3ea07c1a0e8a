package merchant

import "github.com/jackyeh168/loyalty_ledger/src/internal/domain/shared"

// ===========================
// Merchant Domain 錯誤定義
// ===========================

const (
	ErrCodeInvalidMerchantID      shared.ErrorCode = "MERCHANT_ID_INVALID"
	ErrCodeInvalidStoreID         shared.ErrorCode = "MERCHANT_STORE_ID_INVALID"
	ErrCodeMerchantNotFound       shared.ErrorCode = "MERCHANT_NOT_FOUND"
	ErrCodeMerchantAlreadyExists  shared.ErrorCode = "MERCHANT_ALREADY_EXISTS"
	ErrCodeMerchantInactive       shared.ErrorCode = "MERCHANT_INACTIVE"
	ErrCodeInvalidLoyaltySettings shared.ErrorCode = "SETTINGS_INVALID"
)

var (
	ErrInvalidMerchantID = shared.NewDomainError(ErrCodeInvalidMerchantID, "無效的商家 ID")

	// ErrInvalidStoreID 外部商店 ID 為空
	ErrInvalidStoreID = shared.NewDomainError(ErrCodeInvalidStoreID, "外部商店 ID 不能為空")

	ErrMerchantNotFound      = shared.NewDomainError(ErrCodeMerchantNotFound, "商家不存在")
	ErrMerchantAlreadyExists = shared.NewDomainError(ErrCodeMerchantAlreadyExists, "商家已存在")

	// ErrMerchantInactive 商家已解除安裝應用
	ErrMerchantInactive = shared.NewDomainError(ErrCodeMerchantInactive, "商家已停用")

	// ErrInvalidLoyaltySettings 忠誠度設定驗證失敗（Context 中包含欄位名稱）
	ErrInvalidLoyaltySettings = shared.NewDomainError(ErrCodeInvalidLoyaltySettings, "無效的忠誠度設定")
)
