package expiry_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jackyeh168/loyalty_ledger/src/internal/application/expiry"
	"github.com/jackyeh168/loyalty_ledger/src/internal/application/ledger"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/merchant"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/points"
	"github.com/jackyeh168/loyalty_ledger/src/internal/infrastructure/persistence/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ===========================
// Test Fixture
// ===========================

type fixture struct {
	store   *store.Store
	engine  *ledger.Engine
	sweeper *expiry.Sweeper

	mu  sync.Mutex
	now time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &fixture{
		store: store.NewForTest(t),
		now:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	f.engine = ledger.NewEngine(f.store.Accounts, f.store.Ledger, f.store.Tiers, f.store.TxManager, ledger.Options{
		RetryBackoff: time.Millisecond,
		Clock:        f.clock,
		Logger:       logger,
	})
	f.sweeper = expiry.NewSweeper(f.engine, f.store.Ledger, expiry.SweeperOptions{BatchSize: 2, Logger: logger})
	return f
}

func (f *fixture) clock() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fixture) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func (f *fixture) openAccount(t *testing.T, customerRef string) points.AccountID {
	t.Helper()
	res, err := f.engine.OpenOrGet(context.Background(), ledger.OpenAccountCommand{
		MerchantID:  merchant.NewMerchantID(),
		CustomerRef: customerRef,
	})
	require.NoError(t, err)
	return res.AccountID
}

// earnExpiring 賺取在 ttl 後到期的積分；ttl <= 0 表示永不過期
func (f *fixture) earnExpiring(t *testing.T, accountID points.AccountID, amount int, correlation string, ttl time.Duration) *ledger.TransactionResult {
	t.Helper()
	cmd := ledger.EarnCommand{
		AccountID:   accountID,
		Kind:        points.KindEarnPurchase,
		Amount:      amount,
		Description: "purchase",
		Correlation: correlation,
	}
	if ttl > 0 {
		expiresAt := f.clock().Add(ttl)
		cmd.ExpiresAt = &expiresAt
	}
	res, err := f.engine.Earn(context.Background(), cmd)
	require.NoError(t, err)
	return res
}

func (f *fixture) deduct(t *testing.T, accountID points.AccountID, amount int) {
	t.Helper()
	_, err := f.engine.Deduct(context.Background(), ledger.DeductCommand{
		AccountID:   accountID,
		Kind:        points.KindDeductManual,
		Amount:      amount,
		Description: "manual",
	})
	require.NoError(t, err)
}

func (f *fixture) entries(t *testing.T, accountID points.AccountID) []*points.LedgerTransaction {
	t.Helper()
	items, _, err := f.store.Ledger.ListByAccount(nil, accountID, 0, 100)
	require.NoError(t, err)
	return items
}

func (f *fixture) current(t *testing.T, accountID points.AccountID) int {
	t.Helper()
	b, err := f.engine.GetBalance(context.Background(), accountID)
	require.NoError(t, err)
	return b.CurrentPoints
}

func countKind(entries []*points.LedgerTransaction, kind points.TransactionKind) int {
	n := 0
	for _, e := range entries {
		if e.Kind() == kind {
			n++
		}
	}
	return n
}

// ===========================
// Tests
// ===========================

// Test 1: 到期的 200 積分只過期一次
func TestSweep_ExpiresOnce(t *testing.T) {
	// Arrange
	f := newFixture(t)
	accountID := f.openAccount(t, "c-1")
	source := f.earnExpiring(t, accountID, 200, "order-1", 24*time.Hour)
	f.advance(25 * time.Hour)

	// Act
	first, err := f.sweeper.Sweep(context.Background())
	require.NoError(t, err)
	second, err := f.sweeper.Sweep(context.Background())
	require.NoError(t, err)

	// Assert
	assert.Equal(t, 1, first.Scanned)
	assert.Equal(t, 1, first.Expired)
	assert.Equal(t, 200, first.PointsExpired)
	assert.Equal(t, 0, second.Scanned)

	assert.Equal(t, 0, f.current(t, accountID))
	entries := f.entries(t, accountID)
	require.Equal(t, 1, countKind(entries, points.KindExpired))
	expired := entries[0]
	assert.Equal(t, points.KindExpired, expired.Kind())
	assert.Equal(t, -200, expired.Amount())
	assert.Equal(t, source.Transaction.TransactionID, expired.Correlation().String())

	sourceID, err := points.TransactionIDFromString(source.Transaction.TransactionID)
	require.NoError(t, err)
	stored, err := f.store.Ledger.FindByID(nil, sourceID)
	require.NoError(t, err)
	assert.True(t, stored.IsSwept())
	assert.Equal(t, 200, stored.ExpiredPoints())
}

// Test 2: 積分已全部用掉時只標記已處理，不寫入帳本
func TestSweep_ZeroCurrentBalance_MarksOnly(t *testing.T) {
	f := newFixture(t)
	accountID := f.openAccount(t, "c-1")
	f.earnExpiring(t, accountID, 200, "order-1", time.Hour)
	f.deduct(t, accountID, 200)
	f.advance(2 * time.Hour)

	report, err := f.sweeper.Sweep(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, report.MarkedOnly)
	assert.Equal(t, 0, report.Expired)
	entries := f.entries(t, accountID)
	assert.Len(t, entries, 2)
	assert.Equal(t, 0, countKind(entries, points.KindExpired))

	again, err := f.sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, again.Scanned)
}

// Test 3: 部分用掉時只過期剩餘的可用積分
func TestSweep_PartiallySpent_ExpiresRemainder(t *testing.T) {
	f := newFixture(t)
	accountID := f.openAccount(t, "c-1")
	f.earnExpiring(t, accountID, 200, "order-1", time.Hour)
	f.deduct(t, accountID, 150)
	f.advance(2 * time.Hour)

	report, err := f.sweeper.Sweep(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 50, report.PointsExpired)
	assert.Equal(t, 0, f.current(t, accountID))
}

// Test 4: 未到期與永不過期的交易不受影響
func TestSweep_IgnoresUnexpired(t *testing.T) {
	f := newFixture(t)
	accountID := f.openAccount(t, "c-1")
	f.earnExpiring(t, accountID, 100, "order-1", time.Hour)
	f.earnExpiring(t, accountID, 300, "order-2", 48*time.Hour)
	f.earnExpiring(t, accountID, 500, "order-3", 0)
	f.advance(2 * time.Hour)

	report, err := f.sweeper.Sweep(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, report.Expired)
	assert.Equal(t, 100, report.PointsExpired)
	assert.Equal(t, 800, f.current(t, accountID))
}

// Test 5: 多個帳戶、多個批次
func TestSweep_MultipleBatches(t *testing.T) {
	f := newFixture(t)
	var accounts []points.AccountID
	for _, ref := range []string{"c-1", "c-2", "c-3"} {
		id := f.openAccount(t, ref)
		f.earnExpiring(t, id, 100, "order-a-"+ref, time.Hour)
		f.earnExpiring(t, id, 40, "order-b-"+ref, time.Hour)
		accounts = append(accounts, id)
	}
	f.advance(2 * time.Hour)

	report, err := f.sweeper.Sweep(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 6, report.Scanned)
	assert.Equal(t, 6, report.Expired)
	assert.Equal(t, 420, report.PointsExpired)
	for _, id := range accounts {
		assert.Equal(t, 0, f.current(t, id))
	}
}

// Test 6: 單次掃描上限
func TestSweep_MaxEntries(t *testing.T) {
	f := newFixture(t)
	accountID := f.openAccount(t, "c-1")
	for _, corr := range []string{"o-1", "o-2", "o-3"} {
		f.earnExpiring(t, accountID, 10, corr, time.Hour)
	}
	f.advance(2 * time.Hour)
	limited := expiry.NewSweeper(f.engine, f.store.Ledger, expiry.SweeperOptions{BatchSize: 10, MaxEntries: 2})

	report, err := limited.Sweep(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, report.Scanned)
	assert.Equal(t, 10, f.current(t, accountID))
}

// Test 7: 已取消的 context
func TestSweep_CanceledContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.sweeper.Sweep(ctx)

	assert.ErrorIs(t, err, context.Canceled)
}

// Test 8: 訂單取消後的交易不會再過期
func TestSweep_SkipsReversedEntry(t *testing.T) {
	f := newFixture(t)
	accountID := f.openAccount(t, "c-1")
	f.earnExpiring(t, accountID, 150, "order-9", time.Hour)
	_, err := f.engine.ReverseEarn(context.Background(), ledger.ReverseEarnCommand{
		AccountID:   accountID,
		SourceKind:  points.KindEarnPurchase,
		Correlation: "order-9",
		Description: "order canceled",
	})
	require.NoError(t, err)
	f.advance(2 * time.Hour)

	report, err := f.sweeper.Sweep(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 0, report.Scanned)
	assert.Equal(t, 0, f.current(t, accountID))
}

// Test 9: 失敗的交易不阻塞後續批次，掃描會前進到較晚到期的交易
func TestSweep_FailuresDoNotBlockLaterBatches(t *testing.T) {
	f := newFixture(t)
	broken := f.openAccount(t, "c-broken")
	for _, corr := range []string{"o-1", "o-2", "o-3"} {
		f.earnExpiring(t, broken, 10, corr, time.Hour)
	}
	f.advance(time.Minute)
	healthy := f.openAccount(t, "c-healthy")
	f.earnExpiring(t, healthy, 50, "o-4", time.Hour)
	f.earnExpiring(t, healthy, 25, "o-5", time.Hour)
	require.NoError(t, f.store.DB.Exec("DELETE FROM loyalty_accounts WHERE account_id = ?", broken.String()).Error)
	f.advance(2 * time.Hour)

	report, err := f.sweeper.Sweep(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 5, report.Scanned)
	assert.Equal(t, 3, report.Failed)
	assert.Len(t, report.Errors, 3)
	assert.Equal(t, 2, report.Expired)
	assert.Equal(t, 75, report.PointsExpired)
	assert.Equal(t, 0, f.current(t, healthy))
}
