package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/merchant"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/points"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/shared"
)

// ===========================
// ReverseEarn Use Case
// ===========================

// ReverseEarnCommand 沖銷一筆獲得交易（訂單取消 / 退款）
//
// AccountID 為空時以 (MerchantID, SourceKind, Correlation) 在商家範圍內查找來源交易
type ReverseEarnCommand struct {
	MerchantID  merchant.MerchantID
	AccountID   points.AccountID
	SourceKind  points.TransactionKind
	Correlation string
	Description string
}

// ReversalResult 沖銷結果
type ReversalResult struct {
	Source TransactionView

	// Reversal 扣回的 DEDUCT_MANUAL 交易；nil 表示來源積分已全數過期，無需扣回
	Reversal *TransactionResult
}

// ReverseEarn 扣回來源交易尚未過期的積分，並標記來源已處理
//
// 業務規則：
// 1. 扣回數量 = amount - expiredPoints（已過期的部分不重複扣）
// 2. 扣回交易類型 DEDUCT_MANUAL，關聯參照與來源相同（同一訂單只沖銷一次）
// 3. 來源被標記 swept，過期處理不會再補償它
//
// 錯誤處理：
// - points.ErrTransactionNotFound: 找不到來源交易
// - points.ErrInsufficientBalance: 顧客已花掉這些積分
func (e *Engine) ReverseEarn(ctx context.Context, cmd ReverseEarnCommand) (*ReversalResult, error) {
	if !cmd.SourceKind.IsEarn() {
		return nil, points.ErrInvalidKind.WithContext("kind", cmd.SourceKind, "operation", "reverse")
	}
	correlation, err := points.NewCorrelationRef(cmd.Correlation)
	if err != nil {
		return nil, err
	}
	if correlation.IsZero() {
		return nil, points.ErrInvalidCorrelation.WithContext("reason", "reversal requires a correlation")
	}

	source, err := e.findReversalSource(cmd, correlation)
	if err != nil {
		return nil, err
	}

	in := ledgerInput{
		accountID:   source.AccountID(),
		kind:        points.KindDeductManual,
		description: cmd.Description,
		correlation: correlation,
	}

	var result *ReversalResult
	err = e.Atomically(ctx, func(tx shared.TransactionContext) error {
		var err error
		result, err = e.reverse(tx, source.TransactionID(), in)
		return err
	})
	if errors.Is(err, points.ErrDuplicateEvent) {
		dup, dupErr := e.loadDuplicate(in)
		if dupErr != nil {
			return nil, dupErr
		}
		return &ReversalResult{Source: newTransactionView(source), Reversal: dup}, nil
	}
	if err != nil {
		return nil, err
	}

	e.Publish(result.Reversal)
	return result, nil
}

func (e *Engine) findReversalSource(cmd ReverseEarnCommand, correlation points.CorrelationRef) (*points.LedgerTransaction, error) {
	var (
		source *points.LedgerTransaction
		err    error
	)
	if !cmd.AccountID.IsEmpty() {
		source, err = e.ledger.FindByCorrelation(nil, cmd.AccountID, cmd.SourceKind, correlation)
	} else {
		source, err = e.ledger.FindByMerchantCorrelation(nil, cmd.MerchantID, cmd.SourceKind, correlation)
	}
	if err != nil {
		return nil, err
	}
	if !cmd.MerchantID.IsEmpty() && !source.MerchantID().Equals(cmd.MerchantID) {
		return nil, points.ErrAccountMerchantMismatch.WithContext(
			"transaction_id", source.TransactionID().String(),
			"merchant_id", cmd.MerchantID.String(),
		)
	}
	return source, nil
}

func (e *Engine) reverse(tx shared.TransactionContext, sourceID points.TransactionID, in ledgerInput) (*ReversalResult, error) {
	account, err := e.accounts.FindByIDForUpdate(tx, in.accountID)
	if err != nil {
		return nil, err
	}
	source, err := e.ledger.FindByIDForUpdate(tx, sourceID)
	if err != nil {
		return nil, err
	}

	if existing, err := e.findExisting(tx, in); err != nil || existing != nil {
		if existing != nil {
			return &ReversalResult{Source: newTransactionView(source), Reversal: duplicateResult(existing, account)}, nil
		}
		return nil, err
	}

	now := e.clock()
	result := &ReversalResult{}

	if remaining := source.RemainingPoints(); !remaining.IsZero() {
		entry, err := account.Deduct(in.kind, remaining, in.description, in.correlation, now)
		if err != nil {
			return nil, err
		}
		if err := e.ledger.Append(tx, entry); err != nil {
			return nil, err
		}
		if err := e.accounts.Update(tx, account); err != nil {
			return nil, err
		}
		result.Reversal = newTransactionResult(entry, account)
	}

	if !source.IsSwept() {
		if err := source.MarkSwept(now, points.PointsAmount{}); err != nil {
			return nil, err
		}
		if err := e.ledger.MarkSwept(tx, source); err != nil {
			return nil, fmt.Errorf("mark reversed source swept: %w", err)
		}
	}

	result.Source = newTransactionView(source)
	return result, nil
}
