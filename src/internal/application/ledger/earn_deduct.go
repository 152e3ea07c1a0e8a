package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/points"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// ===========================
// Earn / Deduct Commands
// ===========================

// EarnCommand 獲得積分命令
type EarnCommand struct {
	AccountID   points.AccountID
	Kind        points.TransactionKind
	Amount      int
	Description string
	Correlation string // 空字串 = 不做冪等判斷

	OrderAmount *decimal.Decimal
	ExpiresAt   *time.Time
}

// DeductCommand 扣減積分命令
type DeductCommand struct {
	AccountID   points.AccountID
	Kind        points.TransactionKind
	Amount      int
	Description string
	Correlation string
}

type ledgerInput struct {
	accountID   points.AccountID
	kind        points.TransactionKind
	amount      points.PointsAmount
	description string
	correlation points.CorrelationRef
	details     points.EarnDetails
}

func (c EarnCommand) validate() (ledgerInput, error) {
	if !c.Kind.IsEarn() {
		return ledgerInput{}, points.ErrInvalidKind.WithContext("kind", c.Kind, "operation", "earn")
	}
	in, err := newLedgerInput(c.AccountID, c.Kind, c.Amount, c.Description, c.Correlation)
	if err != nil {
		return ledgerInput{}, err
	}
	in.details = points.EarnDetails{OrderAmount: c.OrderAmount, ExpiresAt: c.ExpiresAt}
	return in, nil
}

func (c DeductCommand) validate() (ledgerInput, error) {
	if !c.Kind.IsDeduction() {
		return ledgerInput{}, points.ErrInvalidKind.WithContext("kind", c.Kind, "operation", "deduct")
	}
	return newLedgerInput(c.AccountID, c.Kind, c.Amount, c.Description, c.Correlation)
}

func newLedgerInput(accountID points.AccountID, kind points.TransactionKind, amount int, description, correlation string) (ledgerInput, error) {
	if accountID.IsEmpty() {
		return ledgerInput{}, points.ErrInvalidAccountID
	}
	pts, err := points.NewPositivePointsAmount(amount)
	if err != nil {
		return ledgerInput{}, err
	}
	ref, err := points.NewCorrelationRef(correlation)
	if err != nil {
		return ledgerInput{}, err
	}
	return ledgerInput{
		accountID:   accountID,
		kind:        kind,
		amount:      pts,
		description: description,
		correlation: ref,
	}, nil
}

// ===========================
// Earn
// ===========================

// Earn 獲得積分（獨立事務）
//
// 業務流程：
// 1. 驗證類型與數量（任何寫入之前）
// 2. 在事務中：鎖定帳戶列 → 檢查關聯參照 → 讀取等級目錄 → 聚合計算 → 寫入帳本 → 更新帳戶
// 3. 提交後發布事件
//
// 錯誤處理：
// - points.ErrInvalidAmount / ErrInvalidKind: 輸入無效
// - points.ErrAccountNotFound: 帳戶不存在
// - 關聯參照重複：不是錯誤，返回既有交易並標記 Duplicate
func (e *Engine) Earn(ctx context.Context, cmd EarnCommand) (*TransactionResult, error) {
	in, err := cmd.validate()
	if err != nil {
		return nil, err
	}
	return e.run(ctx, in, e.earn)
}

// EarnWithContext 在調用者的事務中獲得積分
//
// 調用者負責提交，並在提交後以 Engine.Publish 發布事件。
// 並發重複寫入在此返回 points.ErrDuplicateEvent，由調用者的事務回滾。
func (e *Engine) EarnWithContext(tx shared.TransactionContext, cmd EarnCommand) (*TransactionResult, error) {
	in, err := cmd.validate()
	if err != nil {
		return nil, err
	}
	return e.earn(tx, in)
}

func (e *Engine) earn(tx shared.TransactionContext, in ledgerInput) (*TransactionResult, error) {
	account, err := e.accounts.FindByIDForUpdate(tx, in.accountID)
	if err != nil {
		return nil, err
	}
	if existing, err := e.findExisting(tx, in); err != nil || existing != nil {
		if existing != nil {
			return duplicateResult(existing, account), nil
		}
		return nil, err
	}

	directory, err := e.loadDirectory(tx, account)
	if err != nil {
		return nil, fmt.Errorf("load tier directory: %w", err)
	}

	entry, err := account.Earn(in.kind, in.amount, in.description, in.correlation, in.details, directory, e.clock())
	if err != nil {
		return nil, err
	}
	if err := e.ledger.Append(tx, entry); err != nil {
		return nil, err
	}
	if err := e.accounts.Update(tx, account); err != nil {
		return nil, err
	}
	return newTransactionResult(entry, account), nil
}

// ===========================
// Deduct
// ===========================

// Deduct 扣減積分（獨立事務）
//
// 餘額檢查在帳戶列鎖定之後進行；等級不重新計算。
//
// 錯誤處理：
// - points.ErrInvalidAmount / ErrInvalidKind: 輸入無效
// - points.ErrInsufficientBalance: currentPoints < amount
// - points.ErrAccountNotFound: 帳戶不存在
func (e *Engine) Deduct(ctx context.Context, cmd DeductCommand) (*TransactionResult, error) {
	in, err := cmd.validate()
	if err != nil {
		return nil, err
	}
	return e.run(ctx, in, e.deduct)
}

// DeductWithContext 在調用者的事務中扣減積分
func (e *Engine) DeductWithContext(tx shared.TransactionContext, cmd DeductCommand) (*TransactionResult, error) {
	in, err := cmd.validate()
	if err != nil {
		return nil, err
	}
	return e.deduct(tx, in)
}

func (e *Engine) deduct(tx shared.TransactionContext, in ledgerInput) (*TransactionResult, error) {
	account, err := e.accounts.FindByIDForUpdate(tx, in.accountID)
	if err != nil {
		return nil, err
	}
	if existing, err := e.findExisting(tx, in); err != nil || existing != nil {
		if existing != nil {
			return duplicateResult(existing, account), nil
		}
		return nil, err
	}

	entry, err := account.Deduct(in.kind, in.amount, in.description, in.correlation, e.clock())
	if err != nil {
		return nil, err
	}
	if err := e.ledger.Append(tx, entry); err != nil {
		return nil, err
	}
	if err := e.accounts.Update(tx, account); err != nil {
		return nil, err
	}
	return newTransactionResult(entry, account), nil
}

// ===========================
// 共用流程
// ===========================

// run 以獨立事務執行 op；唯一約束攔下的並發重複在事務外以既有記錄回應
func (e *Engine) run(
	ctx context.Context,
	in ledgerInput,
	op func(tx shared.TransactionContext, in ledgerInput) (*TransactionResult, error),
) (*TransactionResult, error) {
	var result *TransactionResult
	err := e.Atomically(ctx, func(tx shared.TransactionContext) error {
		var err error
		result, err = op(tx, in)
		return err
	})
	if errors.Is(err, points.ErrDuplicateEvent) && !in.correlation.IsZero() {
		return e.loadDuplicate(in)
	}
	if err != nil {
		return nil, err
	}

	e.Publish(result)
	return result, nil
}

// findExisting 已有相同 (帳戶, 類型, 關聯參照) 的交易時返回該交易
func (e *Engine) findExisting(tx shared.TransactionContext, in ledgerInput) (*points.LedgerTransaction, error) {
	if in.correlation.IsZero() {
		return nil, nil
	}
	existing, err := e.ledger.FindByCorrelation(tx, in.accountID, in.kind, in.correlation)
	if errors.Is(err, points.ErrTransactionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return existing, nil
}

// loadDuplicate 在事務之外讀取並發寫入者已提交的交易
func (e *Engine) loadDuplicate(in ledgerInput) (*TransactionResult, error) {
	existing, err := e.ledger.FindByCorrelation(nil, in.accountID, in.kind, in.correlation)
	if err != nil {
		return nil, fmt.Errorf("load duplicate ledger entry: %w", err)
	}
	account, err := e.accounts.FindByID(nil, in.accountID)
	if err != nil {
		return nil, err
	}
	e.logger.Info("duplicate ledger event absorbed",
		"account_id", in.accountID.String(),
		"kind", in.kind.String(),
		"correlation", in.correlation.String(),
	)
	return duplicateResult(existing, account), nil
}
