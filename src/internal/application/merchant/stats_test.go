package merchant_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jackyeh168/loyalty_ledger/src/internal/application/ledger"
	merchantapp "github.com/jackyeh168/loyalty_ledger/src/internal/application/merchant"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/coupon"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/merchant"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/points"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/tier"
	"github.com/jackyeh168/loyalty_ledger/src/internal/infrastructure/persistence/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ===========================
// Statistics Fixture
// ===========================

type statsFixture struct {
	store    *store.Store
	engine   *ledger.Engine
	stats    *merchantapp.StatsUseCase
	merchant *merchant.Merchant
	now      time.Time
}

func newStatsFixture(t *testing.T) *statsFixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &statsFixture{
		store: store.NewForTest(t),
		now:   time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC),
	}
	f.engine = ledger.NewEngine(f.store.Accounts, f.store.Ledger, f.store.Tiers, f.store.TxManager, ledger.Options{
		RetryBackoff: time.Millisecond,
		Clock:        func() time.Time { return f.now },
		Logger:       logger,
	})
	f.stats = merchantapp.NewStatsUseCase(f.store.Accounts, f.store.Ledger, f.store.Coupons, f.store.Tiers, f.engine)

	m, err := merchant.NewMerchant("store-9", "Florist", "token")
	require.NoError(t, err)
	require.NoError(t, f.store.Merchants.Save(nil, m))
	f.merchant = m
	return f
}

func (f *statsFixture) open(t *testing.T, customerRef string) points.AccountID {
	t.Helper()
	opened, err := f.engine.OpenOrGet(context.Background(), ledger.OpenAccountCommand{
		MerchantID:  f.merchant.MerchantID(),
		CustomerRef: customerRef,
	})
	require.NoError(t, err)
	return opened.AccountID
}

func (f *statsFixture) earnAt(t *testing.T, at time.Time, accountID points.AccountID, amount int, correlation string) {
	t.Helper()
	f.now = at
	_, err := f.engine.Earn(context.Background(), ledger.EarnCommand{
		AccountID:   accountID,
		Kind:        points.KindEarnBonus,
		Amount:      amount,
		Description: "bonus",
		Correlation: correlation,
	})
	require.NoError(t, err)
}

func (f *statsFixture) deductAt(t *testing.T, at time.Time, accountID points.AccountID, amount int) {
	t.Helper()
	f.now = at
	_, err := f.engine.Deduct(context.Background(), ledger.DeductCommand{
		AccountID:   accountID,
		Kind:        points.KindDeductManual,
		Amount:      amount,
		Description: "manual",
	})
	require.NoError(t, err)
}

func (f *statsFixture) saveCoupon(t *testing.T, accountID points.AccountID, expiresAt time.Time) {
	t.Helper()
	used, err := points.NewPositivePointsAmount(100)
	require.NoError(t, err)
	c, err := coupon.NewCoupon(f.merchant.MerchantID(), accountID, used, decimal.RequireFromString("1"), expiresAt, f.now)
	require.NoError(t, err)
	require.NoError(t, f.store.Coupons.Save(nil, c))
}

// ===========================
// Stats
// ===========================

// Test 1: 總覽彙整積分、優惠券、等級分布與月趨勢
func TestStats_Overview(t *testing.T) {
	f := newStatsFixture(t)
	silver, err := tier.NewTier(f.merchant.MerchantID(), tier.Definition{
		Name:       "Silver",
		MinPoints:  400,
		Multiplier: decimal.RequireFromString("1.5"),
		SortOrder:  2,
		Color:      "#C0C0C0",
	})
	require.NoError(t, err)
	require.NoError(t, f.store.Tiers.Save(nil, silver))

	alice := f.open(t, "cust-alice")
	bob := f.open(t, "cust-bob")
	f.earnAt(t, time.Date(2025, 12, 10, 9, 0, 0, 0, time.UTC), alice, 500, "bonus:alice")
	f.earnAt(t, time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC), bob, 200, "bonus:bob")
	f.deductAt(t, time.Date(2026, 3, 6, 9, 0, 0, 0, time.UTC), alice, 100)

	f.now = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	f.saveCoupon(t, alice, f.now.Add(24*time.Hour))
	f.saveCoupon(t, alice, f.now.Add(-24*time.Hour))

	view, err := f.stats.Stats(context.Background(), f.merchant.MerchantID())

	require.NoError(t, err)
	assert.Equal(t, int64(2), view.TotalCustomers)
	assert.Equal(t, 700, view.TotalPointsIssued)
	assert.Equal(t, 100, view.TotalPointsRedeemed)
	assert.Equal(t, int64(2), view.TotalCoupons)
	assert.Equal(t, int64(1), view.ActiveCoupons)

	require.Len(t, view.RecentTransactions, 3)
	assert.Equal(t, -100, view.RecentTransactions[0].Amount)

	require.Len(t, view.CustomersByTier, 2)
	assert.Equal(t, "Silver", view.CustomersByTier[0].Name)
	assert.Equal(t, "#C0C0C0", view.CustomersByTier[0].Color)
	assert.Equal(t, int64(1), view.CustomersByTier[0].Count)
	assert.Empty(t, view.CustomersByTier[1].TierID)
	assert.Equal(t, int64(1), view.CustomersByTier[1].Count)

	require.Len(t, view.Monthly, 6)
	assert.Equal(t, "2025-10", view.Monthly[0].Month)
	assert.Equal(t, "2025-12", view.Monthly[2].Month)
	assert.Equal(t, 500, view.Monthly[2].Earned)
	assert.Equal(t, "2026-03", view.Monthly[5].Month)
	assert.Equal(t, 200, view.Monthly[5].Earned)
	assert.Equal(t, 100, view.Monthly[5].Redeemed)
	assert.Zero(t, view.Monthly[4].Earned)
}

// Test 2: 沒有任何資料的商家
func TestStats_EmptyMerchant(t *testing.T) {
	f := newStatsFixture(t)

	view, err := f.stats.Stats(context.Background(), f.merchant.MerchantID())

	require.NoError(t, err)
	assert.Zero(t, view.TotalCustomers)
	assert.Zero(t, view.TotalPointsIssued)
	assert.Zero(t, view.TotalCoupons)
	assert.Empty(t, view.RecentTransactions)
	assert.Empty(t, view.CustomersByTier)
	assert.Len(t, view.Monthly, 6)
}

// Test 3: 其他商家的資料不計入
func TestStats_IsolatedByMerchant(t *testing.T) {
	f := newStatsFixture(t)
	alice := f.open(t, "cust-alice")
	f.earnAt(t, f.now, alice, 300, "bonus:alice")

	other, err := merchant.NewMerchant("store-10", "Other", "token")
	require.NoError(t, err)
	require.NoError(t, f.store.Merchants.Save(nil, other))

	view, err := f.stats.Stats(context.Background(), other.MerchantID())

	require.NoError(t, err)
	assert.Zero(t, view.TotalCustomers)
	assert.Zero(t, view.TotalPointsIssued)
	assert.Empty(t, view.RecentTransactions)
}

// Test 4: 累積積分排行
func TestStats_TopCustomers(t *testing.T) {
	f := newStatsFixture(t)
	alice := f.open(t, "cust-alice")
	bob := f.open(t, "cust-bob")
	carol := f.open(t, "cust-carol")
	f.earnAt(t, f.now, alice, 150, "bonus:alice")
	f.earnAt(t, f.now, bob, 900, "bonus:bob")
	f.earnAt(t, f.now, carol, 400, "bonus:carol")

	top, err := f.stats.TopCustomers(context.Background(), f.merchant.MerchantID(), 2)

	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, bob.String(), top[0].AccountID)
	assert.Equal(t, 900, top[0].TotalPoints)
	assert.Equal(t, carol.String(), top[1].AccountID)
}
