package ledger

import (
	"context"
	"fmt"

	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/merchant"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/points"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/shared"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/tier"
)

// ===========================
// GetBalance Query
// ===========================

// TierView 等級資訊
type TierView struct {
	TierID     string
	Name       string
	MinPoints  int
	Multiplier string
	Benefits   string
	Color      string
}

func newTierView(t *tier.Tier) *TierView {
	return &TierView{
		TierID:     t.TierID().String(),
		Name:       t.Name(),
		MinPoints:  t.MinPoints(),
		Multiplier: t.Multiplier().String(),
		Benefits:   t.Benefits(),
		Color:      t.Color(),
	}
}

// BalanceResult 查詢積分餘額的結果
type BalanceResult struct {
	Balance
	Tier             *TierView // nil = 無等級
	NextTier         *TierView // nil = 已是最高等級
	PointsToNextTier int
}

// GetBalance 查詢帳戶餘額與等級
//
// 錯誤處理：
// - ErrAccountNotFound: 帳戶不存在
func (e *Engine) GetBalance(ctx context.Context, accountID points.AccountID) (*BalanceResult, error) {
	if err := contextErr(ctx); err != nil {
		return nil, err
	}
	return e.GetBalanceWithContext(nil, accountID)
}

// GetBalanceWithContext 在事務上下文中查詢（獨立查詢時可傳入 nil）
func (e *Engine) GetBalanceWithContext(tx shared.TransactionContext, accountID points.AccountID) (*BalanceResult, error) {
	account, err := e.accounts.FindByID(tx, accountID)
	if err != nil {
		return nil, err
	}
	directory, err := e.loadDirectory(tx, account)
	if err != nil {
		return nil, fmt.Errorf("load tier directory: %w", err)
	}

	result := &BalanceResult{Balance: balanceOf(account)}
	if current, ok := directory.Find(account.TierID()); ok {
		result.Tier = newTierView(current)
	}
	total := account.TotalPoints().Value()
	for _, t := range directory.Tiers() {
		if t.MinPoints() > total {
			result.NextTier = newTierView(t)
			result.PointsToNextTier = t.MinPoints() - total
			break
		}
	}
	return result, nil
}

// ===========================
// ListTransactions Query
// ===========================

const (
	defaultPageSize = 20
	maxPageSize     = 100
	maxPage         = 1_000_000 // (page-1)*pageSize 不會溢位
)

// TransactionPage 分頁的帳本交易（新到舊）
type TransactionPage struct {
	Items    []TransactionView
	Total    int64
	Page     int
	PageSize int
}

// ListTransactions 列出帳戶的帳本交易
//
// page 從 1 開始；pageSize <= 0 時使用預設值，超過上限時截斷
func (e *Engine) ListTransactions(ctx context.Context, accountID points.AccountID, page, pageSize int) (*TransactionPage, error) {
	if err := contextErr(ctx); err != nil {
		return nil, err
	}
	page, pageSize = NormalizePage(page, pageSize)

	// 帳戶不存在時返回 ErrAccountNotFound，而不是空列表
	if _, err := e.accounts.FindByID(nil, accountID); err != nil {
		return nil, err
	}

	entries, total, err := e.ledger.ListByAccount(nil, accountID, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}

	items := make([]TransactionView, 0, len(entries))
	for _, entry := range entries {
		items = append(items, newTransactionView(entry))
	}
	return &TransactionPage{Items: items, Total: total, Page: page, PageSize: pageSize}, nil
}

// MerchantTransactionsQuery 商家交易列表查詢
type MerchantTransactionsQuery struct {
	MerchantID merchant.MerchantID
	AccountID  points.AccountID // 零值 = 所有帳戶
	Kind       string           // 空字串 = 所有類型
	Page       int
	PageSize   int
}

// ListMerchantTransactions 列出商家所有帳戶的交易（新到舊）
//
// 錯誤處理：
// - points.ErrInvalidKind: Kind 不是已知的交易類型
func (e *Engine) ListMerchantTransactions(ctx context.Context, q MerchantTransactionsQuery) (*TransactionPage, error) {
	if err := contextErr(ctx); err != nil {
		return nil, err
	}
	filter := points.LedgerFilter{AccountID: q.AccountID}
	if q.Kind != "" {
		kind, err := points.ParseTransactionKind(q.Kind)
		if err != nil {
			return nil, err
		}
		filter.Kind = kind
	}
	page, pageSize := NormalizePage(q.Page, q.PageSize)

	entries, total, err := e.ledger.ListByMerchant(nil, q.MerchantID, filter, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, fmt.Errorf("list merchant ledger entries: %w", err)
	}

	items := make([]TransactionView, 0, len(entries))
	for _, entry := range entries {
		items = append(items, newTransactionView(entry))
	}
	return &TransactionPage{Items: items, Total: total, Page: page, PageSize: pageSize}, nil
}

// TopAccounts 累積積分最高的帳戶
func (e *Engine) TopAccounts(ctx context.Context, merchantID merchant.MerchantID, limit int) ([]Balance, error) {
	if err := contextErr(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > maxPageSize {
		limit = 10
	}
	accounts, err := e.accounts.TopByMerchant(nil, merchantID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]Balance, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, balanceOf(a))
	}
	return out, nil
}

// NormalizePage page 限制在 [1, maxPage]，pageSize 限制在 (0, maxPageSize]
func NormalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if page > maxPage {
		page = maxPage
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

func contextErr(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	return ctx.Err()
}
