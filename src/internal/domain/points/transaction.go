package points

import (
	"strings"
	"time"

	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/merchant"
	"github.com/shopspring/decimal"
)

// MetadataVersion 交易附加欄位（orderAmount / expiresAt）的版本
const MetadataVersion = 1

// MaxDescriptionLength 描述最大長度
const MaxDescriptionLength = 255

// ===========================
// LedgerTransaction 帳本交易
// ===========================

// LedgerTransaction 不可變的帳本記錄
//
// 設計原則：
// 1. Append-only：建立後金額、類型、關聯參照永不修改，也不刪除
// 2. amount 有號：獲得類型為正，扣減類型為負
// 3. 重放性：Σ amount>0 = totalPoints，Σ |amount<0| = usedPoints
//
// 唯一可寫一次的欄位是過期處理標記（sweptAt / expiredPoints），
// 僅作用於獲得類型的交易，用來保證每筆到期交易只補償一次。
type LedgerTransaction struct {
	transactionID TransactionID
	accountID     AccountID
	merchantID    merchant.MerchantID
	kind          TransactionKind
	amount        int
	description   string
	correlation   CorrelationRef

	// 版本化附加欄位（MetadataVersion = 1）
	orderAmount *decimal.Decimal
	expiresAt   *time.Time

	// 過期處理標記（寫一次）
	sweptAt       *time.Time
	expiredPoints int

	createdAt time.Time
}

// EarnDetails 獲得積分的選填附加欄位
type EarnDetails struct {
	OrderAmount *decimal.Decimal
	ExpiresAt   *time.Time
}

func trimDescription(s string) string {
	s = strings.TrimSpace(s)
	if len([]rune(s)) > MaxDescriptionLength {
		s = string([]rune(s)[:MaxDescriptionLength])
	}
	return s
}

func newLedgerTransaction(
	accountID AccountID,
	merchantID merchant.MerchantID,
	kind TransactionKind,
	signedAmount int,
	description string,
	correlation CorrelationRef,
	details EarnDetails,
	now time.Time,
) *LedgerTransaction {
	return &LedgerTransaction{
		transactionID: NewTransactionID(),
		accountID:     accountID,
		merchantID:    merchantID,
		kind:          kind,
		amount:        signedAmount,
		description:   trimDescription(description),
		correlation:   correlation,
		orderAmount:   details.OrderAmount,
		expiresAt:     details.ExpiresAt,
		createdAt:     now,
	}
}

// ReconstructLedgerTransaction 從持久化存儲重建（僅供 Repository 使用）
//
// 驗證 amount 的正負號與類型一致，防止損壞資料進入領域層
func ReconstructLedgerTransaction(
	transactionID TransactionID,
	accountID AccountID,
	merchantID merchant.MerchantID,
	kind TransactionKind,
	amount int,
	description string,
	correlation CorrelationRef,
	details EarnDetails,
	sweptAt *time.Time,
	expiredPoints int,
	createdAt time.Time,
) (*LedgerTransaction, error) {
	if transactionID.IsEmpty() || accountID.IsEmpty() {
		return nil, ErrCorruptedTransaction.WithContext("reason", "empty id")
	}
	switch {
	case kind.IsEarn():
		if amount <= 0 {
			return nil, ErrCorruptedTransaction.WithContext("transaction_id", transactionID.String(), "kind", kind, "amount", amount)
		}
	case kind.IsDeduction():
		if amount >= 0 {
			return nil, ErrCorruptedTransaction.WithContext("transaction_id", transactionID.String(), "kind", kind, "amount", amount)
		}
	default:
		return nil, ErrCorruptedTransaction.WithContext("transaction_id", transactionID.String(), "kind", kind)
	}
	if expiredPoints < 0 || (kind.IsEarn() && expiredPoints > amount) {
		return nil, ErrCorruptedTransaction.WithContext("transaction_id", transactionID.String(), "expired_points", expiredPoints)
	}

	return &LedgerTransaction{
		transactionID: transactionID,
		accountID:     accountID,
		merchantID:    merchantID,
		kind:          kind,
		amount:        amount,
		description:   description,
		correlation:   correlation,
		orderAmount:   details.OrderAmount,
		expiresAt:     details.ExpiresAt,
		sweptAt:       sweptAt,
		expiredPoints: expiredPoints,
		createdAt:     createdAt,
	}, nil
}

// ===========================
// 過期處理
// ===========================

// IsExpiredAt 獲得類型且 expiresAt <= now
func (t *LedgerTransaction) IsExpiredAt(now time.Time) bool {
	return t.kind.IsEarn() && t.expiresAt != nil && !t.expiresAt.After(now)
}

// IsSwept 是否已處理過期（或已被訂單取消沖銷）
func (t *LedgerTransaction) IsSwept() bool {
	return t.sweptAt != nil
}

// RemainingPoints 尚未被過期處理的積分（amount - expiredPoints）；扣減類型為 0
func (t *LedgerTransaction) RemainingPoints() PointsAmount {
	if !t.kind.IsEarn() {
		return PointsAmount{}
	}
	return newPointsAmountUnchecked(t.amount - t.expiredPoints)
}

// MarkSwept 標記過期處理完成，並記錄實際過期的積分
//
// 前置條件：獲得類型、尚未標記、0 <= expired <= RemainingPoints
func (t *LedgerTransaction) MarkSwept(now time.Time, expired PointsAmount) error {
	if !t.kind.IsEarn() {
		return ErrInvalidKind.WithContext("kind", t.kind, "operation", "mark_swept")
	}
	if t.sweptAt != nil {
		return ErrAlreadySwept.WithContext("transaction_id", t.transactionID.String())
	}
	if expired.GreaterThan(t.RemainingPoints()) {
		return ErrInvalidAmount.WithContext(
			"expired", expired.Value(),
			"remaining", t.RemainingPoints().Value(),
		)
	}
	swept := now
	t.sweptAt = &swept
	t.expiredPoints += expired.Value()
	return nil
}

// ===========================
// Getters
// ===========================

func (t *LedgerTransaction) TransactionID() TransactionID    { return t.transactionID }
func (t *LedgerTransaction) AccountID() AccountID            { return t.accountID }
func (t *LedgerTransaction) MerchantID() merchant.MerchantID { return t.merchantID }
func (t *LedgerTransaction) Kind() TransactionKind           { return t.kind }
func (t *LedgerTransaction) Description() string             { return t.description }
func (t *LedgerTransaction) Correlation() CorrelationRef     { return t.correlation }
func (t *LedgerTransaction) OrderAmount() *decimal.Decimal   { return t.orderAmount }
func (t *LedgerTransaction) ExpiresAt() *time.Time           { return t.expiresAt }
func (t *LedgerTransaction) SweptAt() *time.Time             { return t.sweptAt }
func (t *LedgerTransaction) ExpiredPoints() int              { return t.expiredPoints }
func (t *LedgerTransaction) CreatedAt() time.Time            { return t.createdAt }

// Amount 有號金額（扣減類型為負）
func (t *LedgerTransaction) Amount() int {
	return t.amount
}

// AbsAmount 金額絕對值
func (t *LedgerTransaction) AbsAmount() PointsAmount {
	if t.amount < 0 {
		return newPointsAmountUnchecked(-t.amount)
	}
	return newPointsAmountUnchecked(t.amount)
}
