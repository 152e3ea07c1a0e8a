package ledger_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jackyeh168/loyalty_ledger/src/internal/application/ledger"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/merchant"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/points"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/shared"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/tier"
	"github.com/jackyeh168/loyalty_ledger/src/internal/infrastructure/persistence/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// ===========================
// Test Fixture
// ===========================

// recordingPublisher 記錄發布的事件（hand-written mock）
type recordingPublisher struct {
	mu                sync.Mutex
	events            []shared.DomainEvent
	PublishBatchCalls int
	FailError         error
}

func (p *recordingPublisher) Publish(event shared.DomainEvent) error {
	return p.PublishBatch([]shared.DomainEvent{event})
}

func (p *recordingPublisher) PublishBatch(events []shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.PublishBatchCalls++
	if p.FailError != nil {
		return p.FailError
	}
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType())
	}
	return out
}

type fixture struct {
	store      *store.Store
	engine     *ledger.Engine
	publisher  *recordingPublisher
	merchantID merchant.MerchantID

	mu  sync.Mutex
	now time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:      store.NewForTest(t),
		publisher:  &recordingPublisher{},
		merchantID: merchant.NewMerchantID(),
		now:        time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
	}
	f.engine = f.newEngine(f.store.Accounts)
	return f
}

func (f *fixture) newEngine(accounts points.AccountRepository) *ledger.Engine {
	return ledger.NewEngine(accounts, f.store.Ledger, f.store.Tiers, f.store.TxManager, ledger.Options{
		RetryBackoff: time.Millisecond,
		Clock:        f.clock,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		Publisher:    f.publisher,
	})
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
	res, err := f.engine.OpenOrGet(context.Background(), ledger.OpenAccountCommand{MerchantID: f.merchantID, CustomerRef: customerRef})
	require.NoError(t, err)
	return res.AccountID
}

func (f *fixture) addTier(t *testing.T, name string, minPoints int, multiplier string) *tier.Tier {
	t.Helper()
	tr, err := tier.NewTier(f.merchantID, tier.Definition{
		Name:       name,
		MinPoints:  minPoints,
		Multiplier: decimal.RequireFromString(multiplier),
	})
	require.NoError(t, err)
	require.NoError(t, f.store.Tiers.Save(nil, tr))
	return tr
}

func (f *fixture) earn(t *testing.T, accountID points.AccountID, amount int, correlation string) *ledger.TransactionResult {
	t.Helper()
	res, err := f.engine.Earn(context.Background(), ledger.EarnCommand{
		AccountID:   accountID,
		Kind:        points.KindEarnPurchase,
		Amount:      amount,
		Description: "purchase",
		Correlation: correlation,
	})
	require.NoError(t, err)
	return res
}

func (f *fixture) balance(t *testing.T, accountID points.AccountID) *ledger.BalanceResult {
	t.Helper()
	b, err := f.engine.GetBalance(context.Background(), accountID)
	require.NoError(t, err)
	return b
}

func (f *fixture) ledgerCount(t *testing.T, accountID points.AccountID) int64 {
	t.Helper()
	_, total, err := f.store.Ledger.ListByAccount(nil, accountID, 0, 1)
	require.NoError(t, err)
	return total
}
