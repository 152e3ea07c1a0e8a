package ledger

import (
	"context"
	"fmt"

	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/merchant"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/points"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/shared"
)

// ===========================
// 等級重新分類
// ===========================

// TierRecomputeResult 單一帳戶的重新分類結果
type TierRecomputeResult struct {
	AccountID      string
	PreviousTierID string
	TierID         string
	Changed        bool
}

// RecomputeTier 以目前的等級目錄重新分類帳戶
//
// 使用場景：商家新增、修改或刪除等級之後。只改變 tierID，不寫入帳本。
func (e *Engine) RecomputeTier(ctx context.Context, accountID points.AccountID) (*TierRecomputeResult, error) {
	var (
		result *TierRecomputeResult
		events []shared.DomainEvent
	)
	err := e.Atomically(ctx, func(tx shared.TransactionContext) error {
		account, err := e.accounts.FindByIDForUpdate(tx, accountID)
		if err != nil {
			return err
		}
		directory, err := e.loadDirectory(tx, account)
		if err != nil {
			return fmt.Errorf("load tier directory: %w", err)
		}

		previous := balanceOf(account).TierID
		changed := account.ApplyTier(directory, e.clock())
		if changed {
			if err := e.accounts.Update(tx, account); err != nil {
				return err
			}
		}

		result = &TierRecomputeResult{
			AccountID:      accountID.String(),
			PreviousTierID: previous,
			TierID:         balanceOf(account).TierID,
			Changed:        changed,
		}
		events = account.PullEvents()
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.publishEvents(events)
	return result, nil
}

// MerchantRecomputeReport 商家全部帳戶的重新分類統計
type MerchantRecomputeReport struct {
	Scanned int
	Changed int
	Failed  int
}

// RecomputeMerchantTiers 逐一重新分類商家的所有帳戶
//
// 每個帳戶獨立事務；單一帳戶失敗只記錄，不中斷其他帳戶
func (e *Engine) RecomputeMerchantTiers(ctx context.Context, merchantID merchant.MerchantID) (*MerchantRecomputeReport, error) {
	ids, err := e.accounts.ListIDsByMerchant(nil, merchantID)
	if err != nil {
		return nil, fmt.Errorf("list merchant accounts: %w", err)
	}

	report := &MerchantRecomputeReport{}
	for _, id := range ids {
		if err := contextErr(ctx); err != nil {
			return report, err
		}
		report.Scanned++

		r, err := e.RecomputeTier(ctx, id)
		if err != nil {
			report.Failed++
			e.logger.Error("recompute tier failed", "account_id", id.String(), "error", err)
			continue
		}
		if r.Changed {
			report.Changed++
		}
	}

	e.logger.Info("merchant tiers recomputed",
		"merchant_id", merchantID.String(),
		"scanned", report.Scanned,
		"changed", report.Changed,
		"failed", report.Failed,
	)
	return report, nil
}

// ===========================
// 帳本重放驗證
// ===========================

// VerificationReport 以帳本重放檢查帳戶聚合
type VerificationReport struct {
	Stored          Balance
	ReplayedTotal   int // Σ 正數 amount
	ReplayedUsed    int // Σ |負數 amount|
	ReplayedCurrent int
	ExpectedTierID  string

	BalanceConsistent bool
	TierConsistent    bool
}

// Consistent 餘額與等級都與帳本一致
func (r *VerificationReport) Consistent() bool {
	return r.BalanceConsistent && r.TierConsistent
}

// VerifyAccount 重放帳本並與儲存的帳戶比較（唯讀，同一事務內取得一致快照）
func (e *Engine) VerifyAccount(ctx context.Context, accountID points.AccountID) (*VerificationReport, error) {
	var report *VerificationReport
	err := e.txManager.InTransaction(ctx, func(tx shared.TransactionContext) error {
		account, err := e.accounts.FindByID(tx, accountID)
		if err != nil {
			return err
		}
		earned, used, err := e.ledger.SumByAccount(tx, accountID)
		if err != nil {
			return fmt.Errorf("sum ledger entries: %w", err)
		}
		directory, err := e.loadDirectory(tx, account)
		if err != nil {
			return fmt.Errorf("load tier directory: %w", err)
		}

		expectedTier := ""
		if id, ok := directory.Classify(account.TotalPoints().Value()); ok {
			expectedTier = id.String()
		}

		stored := balanceOf(account)
		balanced := stored.TotalPoints == earned &&
			stored.UsedPoints == used &&
			stored.CurrentPoints == earned-used

		report = &VerificationReport{
			Stored:            stored,
			ReplayedTotal:     earned,
			ReplayedUsed:      used,
			ReplayedCurrent:   earned - used,
			ExpectedTierID:    expectedTier,
			BalanceConsistent: balanced,
			TierConsistent:    stored.TierID == expectedTier,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !report.Consistent() {
		e.logger.Warn("account does not match ledger replay",
			"account_id", accountID.String(),
			"stored_total", report.Stored.TotalPoints,
			"replayed_total", report.ReplayedTotal,
			"stored_used", report.Stored.UsedPoints,
			"replayed_used", report.ReplayedUsed,
		)
	}
	return report, nil
}
