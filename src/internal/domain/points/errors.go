package points

import "github.com/jackyeh168/loyalty_ledger/src/internal/domain/shared"

// ===========================
// 錯誤代碼定義
// ===========================

const (
	// 積分數量相關
	ErrCodeNegativePointsAmount shared.ErrorCode = "POINTS_NEGATIVE"
	ErrCodeInvalidAmount        shared.ErrorCode = "POINTS_INVALID_AMOUNT"
	ErrCodeInsufficientBalance  shared.ErrorCode = "POINTS_INSUFFICIENT"
	ErrCodePointsOverflow       shared.ErrorCode = "POINTS_OVERFLOW"

	// 帳本相關
	ErrCodeInvalidKind          shared.ErrorCode = "LEDGER_INVALID_KIND"
	ErrCodeInvalidCorrelation   shared.ErrorCode = "LEDGER_INVALID_CORRELATION"
	ErrCodeDuplicateEvent       shared.ErrorCode = "LEDGER_DUPLICATE_EVENT"
	ErrCodeTransactionNotFound  shared.ErrorCode = "LEDGER_TRANSACTION_NOT_FOUND"
	ErrCodeInvalidTransactionID shared.ErrorCode = "LEDGER_TRANSACTION_ID_INVALID"
	ErrCodeAlreadySwept         shared.ErrorCode = "LEDGER_ALREADY_SWEPT"
	ErrCodeCorruptedTransaction shared.ErrorCode = "LEDGER_CORRUPTED_TRANSACTION"

	// 帳戶相關
	ErrCodeInvalidAccountID        shared.ErrorCode = "ACCOUNT_ID_INVALID"
	ErrCodeInvalidCustomerRef      shared.ErrorCode = "ACCOUNT_CUSTOMER_REF_INVALID"
	ErrCodeAccountNotFound         shared.ErrorCode = "ACCOUNT_NOT_FOUND"
	ErrCodeAccountAlreadyExists    shared.ErrorCode = "ACCOUNT_ALREADY_EXISTS"
	ErrCodeConcurrentModification  shared.ErrorCode = "ACCOUNT_CONCURRENT_MODIFICATION"
	ErrCodeInvariantViolation      shared.ErrorCode = "ACCOUNT_INVARIANT_VIOLATION"
	ErrCodeAccountMerchantMismatch shared.ErrorCode = "ACCOUNT_MERCHANT_MISMATCH"
)

// ===========================
// 預定義錯誤
// ===========================

// 積分數量相關錯誤
var (
	ErrNegativePointsAmount = shared.NewDomainError(ErrCodeNegativePointsAmount, "積分數量不能為負數")

	// ErrInvalidAmount 積分異動數量必須 > 0（本地驗證，不重試）
	ErrInvalidAmount = shared.NewDomainError(ErrCodeInvalidAmount, "積分數量必須大於 0")

	// ErrInsufficientBalance 可用積分不足（業務規則拒絕，原樣回報給調用者）
	ErrInsufficientBalance = shared.NewDomainError(ErrCodeInsufficientBalance, "積分餘額不足")

	ErrPointsOverflow = shared.NewDomainError(ErrCodePointsOverflow, "積分數量溢位")
)

// 帳本相關錯誤
var (
	ErrInvalidKind        = shared.NewDomainError(ErrCodeInvalidKind, "交易類型不適用於此操作")
	ErrInvalidCorrelation = shared.NewDomainError(ErrCodeInvalidCorrelation, "關聯參照格式無效")

	// ErrDuplicateEvent 相同 (帳戶, 類型, 關聯參照) 的交易已存在
	//
	// Ledger Engine 會吸收此錯誤並返回既有交易，不會傳給調用者
	ErrDuplicateEvent = shared.NewDomainError(ErrCodeDuplicateEvent, "重複的帳本事件")

	ErrTransactionNotFound  = shared.NewDomainError(ErrCodeTransactionNotFound, "帳本交易不存在")
	ErrInvalidTransactionID = shared.NewDomainError(ErrCodeInvalidTransactionID, "無效的交易 ID")
	ErrAlreadySwept         = shared.NewDomainError(ErrCodeAlreadySwept, "交易已處理過期")
	ErrCorruptedTransaction = shared.NewDomainError(ErrCodeCorruptedTransaction, "資料庫中的交易資料損壞")
)

// 帳戶相關錯誤
var (
	ErrInvalidAccountID   = shared.NewDomainError(ErrCodeInvalidAccountID, "無效的帳戶 ID")
	ErrInvalidCustomerRef = shared.NewDomainError(ErrCodeInvalidCustomerRef, "無效的顧客參照")
	ErrAccountNotFound    = shared.NewDomainError(ErrCodeAccountNotFound, "積分帳戶不存在")

	ErrAccountAlreadyExists = shared.NewDomainError(ErrCodeAccountAlreadyExists, "積分帳戶已存在")

	// ErrConcurrentModification 樂觀鎖版本衝突（Ledger Engine 會有限次重試）
	ErrConcurrentModification = shared.NewDomainError(ErrCodeConcurrentModification, "帳戶已被並發修改")

	// ErrInvariantViolation currentPoints != totalPoints - usedPoints 或為負數
	ErrInvariantViolation = shared.NewDomainError(ErrCodeInvariantViolation, "帳戶不變條件被違反")

	ErrAccountMerchantMismatch = shared.NewDomainError(ErrCodeAccountMerchantMismatch, "帳戶不屬於此商家")
)
