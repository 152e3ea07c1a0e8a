package tier

import "github.com/jackyeh168/loyalty_ledger/src/internal/domain/shared"

const (
	ErrCodeInvalidTierID      shared.ErrorCode = "TIER_ID_INVALID"
	ErrCodeTierNotFound       shared.ErrorCode = "TIER_NOT_FOUND"
	ErrCodeDuplicateThreshold shared.ErrorCode = "TIER_DUPLICATE_THRESHOLD"
	ErrCodeInvalidTierName    shared.ErrorCode = "TIER_INVALID_NAME"
	ErrCodeInvalidThreshold   shared.ErrorCode = "TIER_INVALID_THRESHOLD"
	ErrCodeInvalidMultiplier  shared.ErrorCode = "TIER_INVALID_MULTIPLIER"
)

var (
	ErrInvalidTierID = shared.NewDomainError(ErrCodeInvalidTierID, "無效的等級 ID")
	ErrTierNotFound  = shared.NewDomainError(ErrCodeTierNotFound, "等級不存在")

	// ErrDuplicateThreshold 同一商家已有相同門檻的等級
	//
	// 相同門檻會讓分類結果依賴排序細節，因此在建立/修改時拒絕
	ErrDuplicateThreshold = shared.NewDomainError(ErrCodeDuplicateThreshold, "同一商家的等級門檻不能重複")

	ErrInvalidTierName   = shared.NewDomainError(ErrCodeInvalidTierName, "等級名稱不能為空")
	ErrInvalidThreshold  = shared.NewDomainError(ErrCodeInvalidThreshold, "等級門檻不能為負數")
	ErrInvalidMultiplier = shared.NewDomainError(ErrCodeInvalidMultiplier, "等級倍數必須大於 0")
)
