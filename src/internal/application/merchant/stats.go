package merchant

import (
	"context"
	"fmt"
	"time"

	"github.com/jackyeh168/loyalty_ledger/src/internal/application/ledger"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/coupon"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/merchant"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/points"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/tier"
)

// ===========================
// Merchant Statistics Query
// ===========================

const (
	statsMonths       = 6
	recentTransaction = 10
)

// StatsView 商家後台總覽
type StatsView struct {
	TotalCustomers      int64
	TotalPointsIssued   int // Σ 正數交易
	TotalPointsRedeemed int // Σ |負數交易|，含兌換、手動扣減、過期
	TotalCoupons        int64
	ActiveCoupons       int64 // 未使用且未到期
	RecentTransactions  []ledger.TransactionView
	CustomersByTier     []TierCount
	Monthly             []MonthlyPoints // 舊到新，含本月
}

// TierCount 某等級的帳戶數；TierID 為空表示尚未達到任何等級
type TierCount struct {
	TierID string
	Name   string
	Color  string
	Count  int64
}

// MonthlyPoints 一個月份（UTC）的獲得與扣減
type MonthlyPoints struct {
	Month    string // 2006-01
	Earned   int
	Redeemed int
}

// StatsUseCase 唯讀的帳本聚合查詢
type StatsUseCase struct {
	accounts points.AccountRepository
	ledger   points.LedgerRepository
	coupons  coupon.CouponRepository
	tiers    tier.TierRepository
	engine   *ledger.Engine
}

// NewStatsUseCase 創建 StatsUseCase 實例
func NewStatsUseCase(
	accounts points.AccountRepository,
	ledgerRepo points.LedgerRepository,
	coupons coupon.CouponRepository,
	tiers tier.TierRepository,
	engine *ledger.Engine,
) *StatsUseCase {
	return &StatsUseCase{
		accounts: accounts,
		ledger:   ledgerRepo,
		coupons:  coupons,
		tiers:    tiers,
		engine:   engine,
	}
}

// Stats 商家總覽：積分總量、優惠券、等級分布、近六個月趨勢
func (uc *StatsUseCase) Stats(ctx context.Context, merchantID merchant.MerchantID) (*StatsView, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := uc.engine.Now().UTC()
	view := &StatsView{}

	issued, redeemed, err := uc.ledger.SumByMerchant(nil, merchantID, time.Time{}, time.Time{})
	if err != nil {
		return nil, err
	}
	view.TotalPointsIssued, view.TotalPointsRedeemed = issued, redeemed

	view.TotalCoupons, view.ActiveCoupons, err = uc.coupons.CountByMerchant(nil, merchantID, now)
	if err != nil {
		return nil, err
	}

	recent, err := uc.engine.ListMerchantTransactions(ctx, ledger.MerchantTransactionsQuery{
		MerchantID: merchantID,
		Page:       1,
		PageSize:   recentTransaction,
	})
	if err != nil {
		return nil, err
	}
	view.RecentTransactions = recent.Items

	view.CustomersByTier, view.TotalCustomers, err = uc.tierDistribution(merchantID)
	if err != nil {
		return nil, err
	}

	view.Monthly, err = uc.monthly(merchantID, now)
	if err != nil {
		return nil, err
	}
	return view, nil
}

// TopCustomers 累積積分最高的帳戶
func (uc *StatsUseCase) TopCustomers(ctx context.Context, merchantID merchant.MerchantID, limit int) ([]ledger.Balance, error) {
	return uc.engine.TopAccounts(ctx, merchantID, limit)
}

// tierDistribution 依等級目錄順序列出帳戶數，最後是未達等級的帳戶
func (uc *StatsUseCase) tierDistribution(merchantID merchant.MerchantID) ([]TierCount, int64, error) {
	counts, err := uc.accounts.CountByTier(nil, merchantID)
	if err != nil {
		return nil, 0, err
	}
	tiers, err := uc.tiers.ListByMerchant(nil, merchantID)
	if err != nil {
		return nil, 0, fmt.Errorf("list tiers: %w", err)
	}

	var total int64
	for _, n := range counts {
		total += n
	}

	out := make([]TierCount, 0, len(tiers)+1)
	for _, t := range tier.NewDirectory(tiers).Tiers() {
		def := t.Definition()
		out = append(out, TierCount{
			TierID: t.TierID().String(),
			Name:   def.Name,
			Color:  def.Color,
			Count:  counts[t.TierID().String()],
		})
	}
	if n := counts[""]; n > 0 {
		out = append(out, TierCount{Count: n})
	}
	return out, total, nil
}

func (uc *StatsUseCase) monthly(merchantID merchant.MerchantID, now time.Time) ([]MonthlyPoints, error) {
	current := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	out := make([]MonthlyPoints, 0, statsMonths)
	for i := statsMonths - 1; i >= 0; i-- {
		start := current.AddDate(0, -i, 0)
		earned, redeemed, err := uc.ledger.SumByMerchant(nil, merchantID, start, start.AddDate(0, 1, 0))
		if err != nil {
			return nil, err
		}
		out = append(out, MonthlyPoints{
			Month:    start.Format("2006-01"),
			Earned:   earned,
			Redeemed: redeemed,
		})
	}
	return out, nil
}
