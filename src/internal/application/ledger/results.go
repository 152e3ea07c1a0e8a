package ledger

import (
	"time"

	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/points"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// ===========================
// Output DTO
// ===========================

// Balance 帳戶餘額快照
type Balance struct {
	AccountID     string
	MerchantID    string
	CustomerRef   string
	ReferralCode  string
	TotalPoints   int
	UsedPoints    int
	CurrentPoints int
	TierID        string // 空字串 = 無等級
	Version       int
	UpdatedAt     time.Time
}

func balanceOf(a *points.Account) Balance {
	tierID := ""
	if !a.TierID().IsEmpty() {
		tierID = a.TierID().String()
	}
	return Balance{
		AccountID:     a.AccountID().String(),
		MerchantID:    a.MerchantID().String(),
		CustomerRef:   a.CustomerRef(),
		ReferralCode:  a.ReferralCode(),
		TotalPoints:   a.TotalPoints().Value(),
		UsedPoints:    a.UsedPoints().Value(),
		CurrentPoints: a.CurrentPoints().Value(),
		TierID:        tierID,
		Version:       a.Version(),
		UpdatedAt:     a.UpdatedAt(),
	}
}

// TransactionView 帳本交易
type TransactionView struct {
	TransactionID string
	AccountID     string
	Kind          string
	Amount        int // 有號：獲得為正，扣減為負
	Description   string
	Correlation   string
	OrderAmount   *decimal.Decimal
	ExpiresAt     *time.Time
	SweptAt       *time.Time
	ExpiredPoints int
	CreatedAt     time.Time
}

func newTransactionView(t *points.LedgerTransaction) TransactionView {
	return TransactionView{
		TransactionID: t.TransactionID().String(),
		AccountID:     t.AccountID().String(),
		Kind:          t.Kind().String(),
		Amount:        t.Amount(),
		Description:   t.Description(),
		Correlation:   t.Correlation().String(),
		OrderAmount:   t.OrderAmount(),
		ExpiresAt:     t.ExpiresAt(),
		SweptAt:       t.SweptAt(),
		ExpiredPoints: t.ExpiredPoints(),
		CreatedAt:     t.CreatedAt(),
	}
}

// TransactionResult Earn / Deduct 的結果
//
// Duplicate = true 表示關聯參照已處理過，Transaction 為既有記錄，
// Balance 為目前餘額，本次呼叫沒有任何寫入。
type TransactionResult struct {
	Transaction TransactionView
	Balance     Balance
	Duplicate   bool

	// Events 待發布事件；WithContext 版本由調用者在提交後交給 Engine.Publish
	Events []shared.DomainEvent
}

func newTransactionResult(entry *points.LedgerTransaction, account *points.Account) *TransactionResult {
	return &TransactionResult{
		Transaction: newTransactionView(entry),
		Balance:     balanceOf(account),
		Events:      account.PullEvents(),
	}
}

func duplicateResult(existing *points.LedgerTransaction, account *points.Account) *TransactionResult {
	return &TransactionResult{
		Transaction: newTransactionView(existing),
		Balance:     balanceOf(account),
		Duplicate:   true,
	}
}
