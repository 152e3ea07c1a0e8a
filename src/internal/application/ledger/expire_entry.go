package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/points"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/shared"
)

// ===========================
// Expire Entry
// ===========================

// ExpiryOutcome 單筆到期交易的處理結果
type ExpiryOutcome struct {
	Source        TransactionView
	Expiration    *TransactionResult // nil = 沒有可過期的積分，只標記已處理
	ExpiredPoints int
	Skipped       bool // 已被其他流程處理或尚未到期
}

// ExpireEntry 讓一筆到期的獲得交易過期
//
// 業務流程（單一事務）：
// 1. 鎖定帳戶列，再鎖定來源交易
// 2. 已處理或尚未到期：略過
// 3. 過期積分 = min(剩餘積分, 帳戶可用積分)，以 EXPIRED 扣減（關聯參照 = 來源交易 ID）
// 4. 標記來源交易已處理，記錄實際過期的積分
//
// 過期積分為 0 時仍標記已處理，但不寫入帳本
func (e *Engine) ExpireEntry(ctx context.Context, entryID points.TransactionID) (*ExpiryOutcome, error) {
	var outcome *ExpiryOutcome
	err := e.Atomically(ctx, func(tx shared.TransactionContext) error {
		var err error
		outcome, err = e.ExpireEntryWithContext(tx, entryID)
		return err
	})
	if errors.Is(err, points.ErrAlreadySwept) {
		// 並發的過期處理或訂單取消先完成
		return &ExpiryOutcome{Skipped: true}, nil
	}
	if err != nil {
		return nil, err
	}

	e.Publish(outcome.Expiration)
	return outcome, nil
}

// ExpireEntryWithContext 在調用者的事務中處理（tx 必須 non-nil）
func (e *Engine) ExpireEntryWithContext(tx shared.TransactionContext, entryID points.TransactionID) (*ExpiryOutcome, error) {
	candidate, err := e.ledger.FindByID(tx, entryID)
	if err != nil {
		return nil, err
	}

	account, err := e.accounts.FindByIDForUpdate(tx, candidate.AccountID())
	if err != nil {
		return nil, err
	}
	source, err := e.ledger.FindByIDForUpdate(tx, entryID)
	if err != nil {
		return nil, err
	}

	now := e.clock()
	if source.IsSwept() || !source.IsExpiredAt(now) {
		return &ExpiryOutcome{Source: newTransactionView(source), Skipped: true}, nil
	}

	in := ledgerInput{
		accountID:   account.AccountID(),
		kind:        points.KindExpired,
		amount:      source.RemainingPoints().Min(account.CurrentPoints()),
		description: fmt.Sprintf("Points expired from %s", source.TransactionID().String()),
		correlation: points.MustCorrelationRef(source.TransactionID().String()),
	}

	outcome := &ExpiryOutcome{}
	expired := in.amount
	if !expired.IsZero() {
		existing, err := e.findExisting(tx, in)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			expired = existing.AbsAmount().Min(source.RemainingPoints())
			outcome.Expiration = duplicateResult(existing, account)
		} else {
			entry, err := account.Deduct(in.kind, expired, in.description, in.correlation, now)
			if err != nil {
				return nil, err
			}
			if err := e.ledger.Append(tx, entry); err != nil {
				return nil, err
			}
			if err := e.accounts.Update(tx, account); err != nil {
				return nil, err
			}
			outcome.Expiration = newTransactionResult(entry, account)
		}
	}

	if err := source.MarkSwept(now, expired); err != nil {
		return nil, err
	}
	if err := e.ledger.MarkSwept(tx, source); err != nil {
		return nil, err
	}

	outcome.Source = newTransactionView(source)
	outcome.ExpiredPoints = expired.Value()
	return outcome, nil
}
