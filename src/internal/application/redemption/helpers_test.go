package redemption_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jackyeh168/loyalty_ledger/src/internal/application/ledger"
	"github.com/jackyeh168/loyalty_ledger/src/internal/application/redemption"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/coupon"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/merchant"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/points"
	"github.com/jackyeh168/loyalty_ledger/src/internal/infrastructure/persistence/store"
	"github.com/stretchr/testify/require"
)

// ===========================
// Test Doubles
// ===========================

var errPlatformDown = errors.New("platform unavailable")

// fakeIssuer 可設定失敗次數的外部平台
type fakeIssuer struct {
	mu        sync.Mutex
	Calls     int
	FailFirst int  // 前 N 次呼叫失敗
	AlwaysErr bool // 永遠失敗
	Requests  []coupon.ExternalCouponRequest

	// OnCall 在外部呼叫進行中執行（模擬同時發生的結帳或掃描）
	OnCall func(req coupon.ExternalCouponRequest)
}

func (f *fakeIssuer) CreateCoupon(ctx context.Context, req coupon.ExternalCouponRequest) (string, error) {
	if f.OnCall != nil {
		f.OnCall(req)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls++
	f.Requests = append(f.Requests, req)
	if f.AlwaysErr || f.Calls <= f.FailFirst {
		return "", errPlatformDown
	}
	return "ext-" + req.Code, nil
}

func (f *fakeIssuer) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Calls
}

// recordingQueue 記錄加入重試佇列的優惠券
type recordingQueue struct {
	mu  sync.Mutex
	ids []coupon.CouponID
}

func (q *recordingQueue) Enqueue(id coupon.CouponID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ids = append(q.ids, id)
	return true
}

// ===========================
// Test Fixture
// ===========================

type fixture struct {
	store    *store.Store
	engine   *ledger.Engine
	issuer   *fakeIssuer
	queue    *recordingQueue
	service  *redemption.Service
	merchant *merchant.Merchant

	mu  sync.Mutex
	now time.Time
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t *testing.T, accessToken string) *fixture {
	t.Helper()
	f := &fixture{
		store:  store.NewForTest(t),
		issuer: &fakeIssuer{},
		queue:  &recordingQueue{},
		now:    time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	f.engine = ledger.NewEngine(f.store.Accounts, f.store.Ledger, f.store.Tiers, f.store.TxManager, ledger.Options{
		RetryBackoff: time.Millisecond,
		Clock:        f.clock,
		Logger:       discardLogger(),
	})

	m, err := merchant.NewMerchant("store-1", "Coffee", accessToken)
	require.NoError(t, err)
	require.NoError(t, f.store.Merchants.Save(nil, m))
	f.merchant = m

	f.service = redemption.NewService(f.engine, f.store.Merchants, f.store.Coupons, f.store.TxManager, f.issuer, redemption.Options{
		ExternalTimeout: time.Second,
		Logger:          discardLogger(),
		Retry:           f.queue,
	})
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

func (f *fixture) updateSettings(t *testing.T, mutate func(s *merchant.LoyaltySettings)) {
	t.Helper()
	s := f.merchant.Settings()
	mutate(&s)
	require.NoError(t, f.merchant.UpdateSettings(s))
	require.NoError(t, f.store.Merchants.Update(nil, f.merchant))
}

// fundedAccount 開戶並賺取指定積分
func (f *fixture) fundedAccount(t *testing.T, customerRef string, amount int) points.AccountID {
	t.Helper()
	opened, err := f.engine.OpenOrGet(context.Background(), ledger.OpenAccountCommand{
		MerchantID:  f.merchant.MerchantID(),
		CustomerRef: customerRef,
	})
	require.NoError(t, err)

	if amount > 0 {
		_, err = f.engine.Earn(context.Background(), ledger.EarnCommand{
			AccountID:   opened.AccountID,
			Kind:        points.KindEarnBonus,
			Amount:      amount,
			Description: "opening bonus",
			Correlation: "bonus:" + customerRef,
		})
		require.NoError(t, err)
	}
	return opened.AccountID
}

func (f *fixture) redeem(t *testing.T, accountID points.AccountID, amount int) *redemption.RedeemResult {
	t.Helper()
	res, err := f.service.Redeem(context.Background(), redemption.RedeemCommand{
		MerchantID: f.merchant.MerchantID(),
		AccountID:  accountID,
		Points:     amount,
	})
	require.NoError(t, err)
	return res
}

func (f *fixture) ledgerCount(t *testing.T, accountID points.AccountID) int64 {
	t.Helper()
	_, total, err := f.store.Ledger.ListByAccount(nil, accountID, 0, 1)
	require.NoError(t, err)
	return total
}
