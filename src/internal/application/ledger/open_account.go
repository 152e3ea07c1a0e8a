package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/merchant"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/points"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/shared"
)

// ===========================
// OpenAccount Use Case
// ===========================

// OpenAccountCommand 開立（或取得）積分帳戶的命令
//
// 驗證：
// - MerchantID 不能為空
// - CustomerRef 為外部平台的顧客 ID，1 到 128 字元
type OpenAccountCommand struct {
	MerchantID  merchant.MerchantID
	CustomerRef string
}

// OpenAccountResult 開立帳戶的結果
type OpenAccountResult struct {
	AccountID points.AccountID
	Balance   Balance
	Created   bool // false = 帳戶已存在
}

// OpenOrGet 開立帳戶；已存在時返回既有帳戶
//
// 並發安全：依賴資料庫唯一約束 (merchant, customerRef)，而非 check-then-insert。
// 兩個請求同時開立時，輸掉的一方在唯一約束衝突後重新讀取勝出者的帳戶。
func (e *Engine) OpenOrGet(ctx context.Context, cmd OpenAccountCommand) (*OpenAccountResult, error) {
	if cmd.MerchantID.IsEmpty() {
		return nil, merchant.ErrInvalidMerchantID
	}
	customerRef := strings.TrimSpace(cmd.CustomerRef)

	if existing, err := e.findAccount(cmd.MerchantID, customerRef); existing != nil || err != nil {
		return existing, err
	}

	account, err := points.NewAccount(cmd.MerchantID, customerRef)
	if err != nil {
		return nil, err
	}

	err = e.txManager.InTransaction(ctx, func(tx shared.TransactionContext) error {
		return e.accounts.Save(tx, account)
	})
	if errors.Is(err, points.ErrAccountAlreadyExists) {
		existing, findErr := e.findAccount(cmd.MerchantID, customerRef)
		if findErr != nil {
			return nil, findErr
		}
		if existing != nil {
			return existing, nil
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to save account: %w", err)
	}

	e.publishEvents(account.PullEvents())
	e.logger.Info("account opened",
		"account_id", account.AccountID().String(),
		"merchant_id", cmd.MerchantID.String(),
	)
	return &OpenAccountResult{
		AccountID: account.AccountID(),
		Balance:   balanceOf(account),
		Created:   true,
	}, nil
}

// findAccount 帳戶不存在時返回 (nil, nil)
func (e *Engine) findAccount(merchantID merchant.MerchantID, customerRef string) (*OpenAccountResult, error) {
	account, err := e.accounts.FindByMerchantCustomer(nil, merchantID, customerRef)
	if errors.Is(err, points.ErrAccountNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &OpenAccountResult{AccountID: account.AccountID(), Balance: balanceOf(account)}, nil
}

// FindAccount 依 (merchant, customerRef) 查詢帳戶
func (e *Engine) FindAccount(ctx context.Context, merchantID merchant.MerchantID, customerRef string) (*Balance, error) {
	if err := contextErr(ctx); err != nil {
		return nil, err
	}
	account, err := e.accounts.FindByMerchantCustomer(nil, merchantID, strings.TrimSpace(customerRef))
	if err != nil {
		return nil, err
	}
	b := balanceOf(account)
	return &b, nil
}

// FindByReferralCode 依推薦碼查詢同商家的推薦人帳戶
func (e *Engine) FindByReferralCode(ctx context.Context, merchantID merchant.MerchantID, code string) (points.AccountID, error) {
	if err := contextErr(ctx); err != nil {
		return points.AccountID{}, err
	}
	account, err := e.accounts.FindByReferralCode(nil, merchantID, strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return points.AccountID{}, err
	}
	return account.AccountID(), nil
}

// ListAccounts 列出商家的帳戶（新到舊）
func (e *Engine) ListAccounts(ctx context.Context, merchantID merchant.MerchantID, page, pageSize int) ([]Balance, int64, error) {
	if err := contextErr(ctx); err != nil {
		return nil, 0, err
	}
	page, pageSize = NormalizePage(page, pageSize)
	accounts, total, err := e.accounts.ListByMerchant(nil, merchantID, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("list accounts: %w", err)
	}
	out := make([]Balance, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, balanceOf(a))
	}
	return out, total, nil
}
