package customer

import "github.com/jackyeh168/loyalty_ledger/src/internal/domain/shared"

// ===========================
// Customer Domain 錯誤定義
// ===========================

const (
	ErrCodeInvalidCustomerID         shared.ErrorCode = "CUSTOMER_ID_INVALID"
	ErrCodeInvalidExternalCustomerID shared.ErrorCode = "CUSTOMER_EXTERNAL_ID_INVALID"
	ErrCodeInvalidPhoneNumberFormat  shared.ErrorCode = "INVALID_PHONE_NUMBER_FORMAT"
	ErrCodeCustomerNotFound          shared.ErrorCode = "CUSTOMER_NOT_FOUND"
	ErrCodeCustomerAlreadyExists     shared.ErrorCode = "CUSTOMER_ALREADY_EXISTS"
)

var (
	ErrInvalidCustomerID = shared.NewDomainError(ErrCodeInvalidCustomerID, "無效的顧客 ID")

	// ErrInvalidExternalCustomerID 外部顧客 ID 格式無效
	//
	// 觸發條件：
	// - 空字串
	// - 包含空白字元
	// - 超過 128 字元
	ErrInvalidExternalCustomerID = shared.NewDomainError(ErrCodeInvalidExternalCustomerID, "外部顧客 ID 格式無效")

	// ErrInvalidPhoneNumberFormat 手機號碼格式無效（8 到 15 位數字，可有 + 前綴）
	ErrInvalidPhoneNumberFormat = shared.NewDomainError(ErrCodeInvalidPhoneNumberFormat, "手機號碼格式無效")

	ErrCustomerNotFound      = shared.NewDomainError(ErrCodeCustomerNotFound, "顧客不存在")
	ErrCustomerAlreadyExists = shared.NewDomainError(ErrCodeCustomerAlreadyExists, "顧客已存在")
)
