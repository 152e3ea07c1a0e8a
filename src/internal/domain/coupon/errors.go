package coupon

import "github.com/jackyeh168/loyalty_ledger/src/internal/domain/shared"

const (
	ErrCodeInvalidCouponID         shared.ErrorCode = "COUPON_ID_INVALID"
	ErrCodeCouponNotFound          shared.ErrorCode = "COUPON_NOT_FOUND"
	ErrCodeCouponAlreadyUsed       shared.ErrorCode = "COUPON_ALREADY_USED"
	ErrCodeCouponExpired           shared.ErrorCode = "COUPON_EXPIRED"
	ErrCodeBelowMinimumRedemption  shared.ErrorCode = "REDEMPTION_BELOW_MINIMUM"
	ErrCodeAboveMaximumRedemption  shared.ErrorCode = "REDEMPTION_ABOVE_MAXIMUM"
	ErrCodeExternalCreationFailed  shared.ErrorCode = "COUPON_EXTERNAL_CREATION_FAILED"
	ErrCodeInvalidRedemptionPolicy shared.ErrorCode = "REDEMPTION_POLICY_INVALID"
)

var (
	ErrInvalidCouponID   = shared.NewDomainError(ErrCodeInvalidCouponID, "無效的優惠券 ID")
	ErrCouponNotFound    = shared.NewDomainError(ErrCodeCouponNotFound, "優惠券不存在")
	ErrCouponAlreadyUsed = shared.NewDomainError(ErrCodeCouponAlreadyUsed, "優惠券已使用")
	ErrCouponExpired     = shared.NewDomainError(ErrCodeCouponExpired, "優惠券已過期")

	// ErrBelowMinimumRedemption 兌換積分低於商家設定的最低門檻
	ErrBelowMinimumRedemption = shared.NewDomainError(ErrCodeBelowMinimumRedemption, "兌換積分低於最低門檻")

	// ErrAboveMaximumRedemption 兌換積分高於商家設定的上限
	ErrAboveMaximumRedemption = shared.NewDomainError(ErrCodeAboveMaximumRedemption, "兌換積分超過上限")

	// ErrExternalCreationFailed 外部平台建立優惠碼失敗
	//
	// 只作為警告回報，帳本扣減不受影響
	ErrExternalCreationFailed = shared.NewDomainError(ErrCodeExternalCreationFailed, "外部平台建立優惠碼失敗")

	ErrInvalidRedemptionPolicy = shared.NewDomainError(ErrCodeInvalidRedemptionPolicy, "無效的兌換規則")
)
