package points

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/merchant"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/tier"
)

// ===========================
// Account 領域事件
// ===========================

// 事件類型常量
const (
	EventTypeAccountOpened  = "points.account_opened"
	EventTypePointsEarned   = "points.earned"
	EventTypePointsDeducted = "points.deducted"
	EventTypeTierChanged    = "points.tier_changed"
)

// accountEvent 帳戶事件的共同欄位
type accountEvent struct {
	eventID    string
	accountID  AccountID
	merchantID merchant.MerchantID
	occurredAt time.Time
}

func newAccountEvent(accountID AccountID, merchantID merchant.MerchantID, at time.Time) accountEvent {
	return accountEvent{
		eventID:    uuid.New().String(),
		accountID:  accountID,
		merchantID: merchantID,
		occurredAt: at,
	}
}

// EventID 實現 DomainEvent 介面
func (e accountEvent) EventID() string { return e.eventID }

// OccurredAt 實現 DomainEvent 介面
func (e accountEvent) OccurredAt() time.Time { return e.occurredAt }

// AggregateID 實現 DomainEvent 介面
func (e accountEvent) AggregateID() string { return e.accountID.String() }

func (e accountEvent) AccountID() AccountID            { return e.accountID }
func (e accountEvent) MerchantID() merchant.MerchantID { return e.merchantID }

// AccountOpenedEvent 積分帳戶開立
type AccountOpenedEvent struct {
	accountEvent
	customerRef string
}

func (e *AccountOpenedEvent) EventType() string   { return EventTypeAccountOpened }
func (e *AccountOpenedEvent) CustomerRef() string { return e.customerRef }

// PointsEarnedEvent 積分已獲得
type PointsEarnedEvent struct {
	accountEvent
	transactionID TransactionID
	kind          TransactionKind
	amount        PointsAmount
	correlation   CorrelationRef
}

func (e *PointsEarnedEvent) EventType() string            { return EventTypePointsEarned }
func (e *PointsEarnedEvent) TransactionID() TransactionID { return e.transactionID }
func (e *PointsEarnedEvent) Kind() TransactionKind        { return e.kind }
func (e *PointsEarnedEvent) Amount() PointsAmount         { return e.amount }
func (e *PointsEarnedEvent) Correlation() CorrelationRef  { return e.correlation }

// PointsDeductedEvent 積分已扣減
type PointsDeductedEvent struct {
	accountEvent
	transactionID TransactionID
	kind          TransactionKind
	amount        PointsAmount
	correlation   CorrelationRef
}

func (e *PointsDeductedEvent) EventType() string            { return EventTypePointsDeducted }
func (e *PointsDeductedEvent) TransactionID() TransactionID { return e.transactionID }
func (e *PointsDeductedEvent) Kind() TransactionKind        { return e.kind }
func (e *PointsDeductedEvent) Amount() PointsAmount         { return e.amount }
func (e *PointsDeductedEvent) Correlation() CorrelationRef  { return e.correlation }

// TierChangedEvent 帳戶等級變更（from / to 可為零值，代表無等級）
type TierChangedEvent struct {
	accountEvent
	from        tier.TierID
	to          tier.TierID
	totalPoints int
}

func (e *TierChangedEvent) EventType() string { return EventTypeTierChanged }
func (e *TierChangedEvent) From() tier.TierID { return e.from }
func (e *TierChangedEvent) To() tier.TierID   { return e.to }
func (e *TierChangedEvent) TotalPoints() int  { return e.totalPoints }
