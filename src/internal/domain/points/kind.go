package points

// TransactionKind 帳本交易類型
type TransactionKind string

const (
	KindEarnPurchase TransactionKind = "EARN_PURCHASE"
	KindEarnSignup   TransactionKind = "EARN_SIGNUP"
	KindEarnReferral TransactionKind = "EARN_REFERRAL"
	KindEarnBonus    TransactionKind = "EARN_BONUS"

	KindRedeemCoupon TransactionKind = "REDEEM_COUPON"
	KindDeductManual TransactionKind = "DEDUCT_MANUAL"
	KindExpired      TransactionKind = "EXPIRED"
)

// IsEarn 是否為獲得積分類型（amount 為正）
func (k TransactionKind) IsEarn() bool {
	switch k {
	case KindEarnPurchase, KindEarnSignup, KindEarnReferral, KindEarnBonus:
		return true
	}
	return false
}

// IsDeduction 是否為扣減類型（amount 為負）
func (k TransactionKind) IsDeduction() bool {
	switch k {
	case KindRedeemCoupon, KindDeductManual, KindExpired:
		return true
	}
	return false
}

func (k TransactionKind) String() string {
	return string(k)
}

// ParseTransactionKind 從字串解析交易類型
func ParseTransactionKind(s string) (TransactionKind, error) {
	k := TransactionKind(s)
	if !k.IsEarn() && !k.IsDeduction() {
		return "", ErrInvalidKind.WithContext("kind", s)
	}
	return k, nil
}
