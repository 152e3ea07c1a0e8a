package merchant_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jackyeh168/loyalty_ledger/src/internal/application/ledger"
	merchantapp "github.com/jackyeh168/loyalty_ledger/src/internal/application/merchant"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/merchant"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/points"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/tier"
	"github.com/jackyeh168/loyalty_ledger/src/internal/infrastructure/persistence/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ===========================
// Test Fixture
// ===========================

type fixture struct {
	store    *store.Store
	engine   *ledger.Engine
	service  *merchantapp.Service
	merchant *merchant.Merchant
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &fixture{store: store.NewForTest(t)}
	f.engine = ledger.NewEngine(f.store.Accounts, f.store.Ledger, f.store.Tiers, f.store.TxManager, ledger.Options{
		RetryBackoff: time.Millisecond,
		Logger:       logger,
	})
	f.service = merchantapp.NewService(f.store.Merchants, f.store.Tiers, f.store.TxManager, f.engine, logger)

	m, err := merchant.NewMerchant("store-7", "Bakery", "token")
	require.NoError(t, err)
	require.NoError(t, f.store.Merchants.Save(nil, m))
	f.merchant = m
	return f
}

func (f *fixture) accountWith(t *testing.T, customerRef string, amount int) points.AccountID {
	t.Helper()
	opened, err := f.engine.OpenOrGet(context.Background(), ledger.OpenAccountCommand{
		MerchantID:  f.merchant.MerchantID(),
		CustomerRef: customerRef,
	})
	require.NoError(t, err)
	_, err = f.engine.Earn(context.Background(), ledger.EarnCommand{
		AccountID:   opened.AccountID,
		Kind:        points.KindEarnBonus,
		Amount:      amount,
		Description: "seed",
		Correlation: "seed:" + customerRef,
	})
	require.NoError(t, err)
	return opened.AccountID
}

func (f *fixture) createTier(t *testing.T, name string, minPoints int) *merchantapp.TierChangeResult {
	t.Helper()
	res, err := f.service.CreateTier(context.Background(), merchantapp.CreateTierCommand{
		MerchantID: f.merchant.MerchantID(),
		Definition: tier.Definition{Name: name, MinPoints: minPoints, Multiplier: decimal.RequireFromString("1.5")},
	})
	require.NoError(t, err)
	return res
}

func (f *fixture) tierOf(t *testing.T, accountID points.AccountID) string {
	t.Helper()
	balance, err := f.engine.GetBalance(context.Background(), accountID)
	require.NoError(t, err)
	if balance.Tier == nil {
		return ""
	}
	return balance.Tier.Name
}

// ===========================
// Settings
// ===========================

// Test 1: 查詢商家資料
func TestService_GetMerchant(t *testing.T) {
	f := newFixture(t)

	view, err := f.service.GetMerchant(context.Background(), f.merchant.MerchantID())

	require.NoError(t, err)
	assert.Equal(t, "store-7", view.ExternalStoreID)
	assert.Equal(t, "Bakery", view.StoreName)
	assert.True(t, view.Active)
	assert.True(t, view.HasAccessToken)
	assert.Equal(t, 365, view.Settings.PointsExpiryDays)
}

// Test 2: 商家不存在
func TestService_GetMerchant_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.GetMerchant(context.Background(), merchant.NewMerchantID())

	assert.ErrorIs(t, err, merchant.ErrMerchantNotFound)
}

// Test 3: 更新設定後持久化
func TestService_UpdateSettings(t *testing.T) {
	f := newFixture(t)
	settings := f.merchant.Settings()
	settings.SignupBonus = 75
	settings.Enabled = false

	view, err := f.service.UpdateSettings(context.Background(), merchantapp.UpdateSettingsCommand{
		MerchantID: f.merchant.MerchantID(),
		Settings:   settings,
	})

	require.NoError(t, err)
	assert.False(t, view.ProgramEnabled)

	stored, err := f.store.Merchants.FindByID(nil, f.merchant.MerchantID())
	require.NoError(t, err)
	assert.Equal(t, 75, stored.Settings().SignupBonus)
	assert.False(t, stored.ProgramEnabled())
}

// Test 4: 無效設定被拒絕且不寫入
func TestService_UpdateSettings_Invalid(t *testing.T) {
	f := newFixture(t)
	settings := f.merchant.Settings()
	settings.PointsPerDiscountUnit = 0

	_, err := f.service.UpdateSettings(context.Background(), merchantapp.UpdateSettingsCommand{
		MerchantID: f.merchant.MerchantID(),
		Settings:   settings,
	})

	assert.ErrorIs(t, err, merchant.ErrInvalidLoyaltySettings)
	stored, err := f.store.Merchants.FindByID(nil, f.merchant.MerchantID())
	require.NoError(t, err)
	assert.Equal(t, 100, stored.Settings().PointsPerDiscountUnit)
}

// ===========================
// Tiers
// ===========================

// Test 5: 新增等級後既有帳戶立即重新分類
func TestService_CreateTier_RecomputesAccounts(t *testing.T) {
	f := newFixture(t)
	rich := f.accountWith(t, "c-rich", 800)
	poor := f.accountWith(t, "c-poor", 100)

	res := f.createTier(t, "Silver", 500)

	require.NotNil(t, res.Tier)
	assert.Equal(t, "1.5", res.Tier.Multiplier)
	require.NotNil(t, res.Recompute)
	assert.Equal(t, 2, res.Recompute.Scanned)
	assert.Equal(t, 1, res.Recompute.Changed)
	assert.Equal(t, "Silver", f.tierOf(t, rich))
	assert.Equal(t, "", f.tierOf(t, poor))
}

// Test 6: 相同門檻被拒絕
func TestService_CreateTier_DuplicateThreshold(t *testing.T) {
	f := newFixture(t)
	f.createTier(t, "Silver", 500)

	_, err := f.service.CreateTier(context.Background(), merchantapp.CreateTierCommand{
		MerchantID: f.merchant.MerchantID(),
		Definition: tier.Definition{Name: "Silver Plus", MinPoints: 500},
	})

	assert.ErrorIs(t, err, tier.ErrDuplicateThreshold)
	tiers, err := f.service.ListTiers(context.Background(), f.merchant.MerchantID())
	require.NoError(t, err)
	assert.Len(t, tiers, 1)
}

// Test 7: 無效定義
func TestService_CreateTier_InvalidDefinition(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.CreateTier(context.Background(), merchantapp.CreateTierCommand{
		MerchantID: f.merchant.MerchantID(),
		Definition: tier.Definition{Name: "  ", MinPoints: 10},
	})

	assert.ErrorIs(t, err, tier.ErrInvalidTierName)
}

// Test 8: 列表依門檻升序
func TestService_ListTiers_Ordered(t *testing.T) {
	f := newFixture(t)
	f.createTier(t, "Gold", 2000)
	f.createTier(t, "Bronze", 0)
	f.createTier(t, "Silver", 500)

	tiers, err := f.service.ListTiers(context.Background(), f.merchant.MerchantID())

	require.NoError(t, err)
	require.Len(t, tiers, 3)
	assert.Equal(t, "Bronze", tiers[0].Name)
	assert.Equal(t, "Silver", tiers[1].Name)
	assert.Equal(t, "Gold", tiers[2].Name)
}

// Test 9: 提高門檻後帳戶降級；修改自身門檻不算重複
func TestService_UpdateTier_RaisesThreshold(t *testing.T) {
	f := newFixture(t)
	accountID := f.accountWith(t, "c-1", 800)
	created := f.createTier(t, "Silver", 500)
	require.Equal(t, "Silver", f.tierOf(t, accountID))
	tierID, err := tier.TierIDFromString(created.Tier.TierID)
	require.NoError(t, err)

	res, err := f.service.UpdateTier(context.Background(), merchantapp.UpdateTierCommand{
		MerchantID: f.merchant.MerchantID(),
		TierID:     tierID,
		Definition: tier.Definition{Name: "Silver", MinPoints: 1000, Color: "#c0c0c0"},
	})

	require.NoError(t, err)
	assert.Equal(t, 1000, res.Tier.MinPoints)
	assert.Equal(t, "1", res.Tier.Multiplier)
	assert.Equal(t, 1, res.Recompute.Changed)
	assert.Equal(t, "", f.tierOf(t, accountID))
}

// Test 10: 修改成其他等級的門檻被拒絕
func TestService_UpdateTier_DuplicateThreshold(t *testing.T) {
	f := newFixture(t)
	f.createTier(t, "Silver", 500)
	gold := f.createTier(t, "Gold", 1000)
	tierID, err := tier.TierIDFromString(gold.Tier.TierID)
	require.NoError(t, err)

	_, err = f.service.UpdateTier(context.Background(), merchantapp.UpdateTierCommand{
		MerchantID: f.merchant.MerchantID(),
		TierID:     tierID,
		Definition: tier.Definition{Name: "Gold", MinPoints: 500},
	})

	assert.ErrorIs(t, err, tier.ErrDuplicateThreshold)
}

// Test 11: 其他商家的等級視為不存在
func TestService_UpdateTier_OtherMerchant(t *testing.T) {
	f := newFixture(t)
	created := f.createTier(t, "Silver", 500)
	tierID, err := tier.TierIDFromString(created.Tier.TierID)
	require.NoError(t, err)

	other, err := merchant.NewMerchant("store-8", "Florist", "")
	require.NoError(t, err)
	require.NoError(t, f.store.Merchants.Save(nil, other))

	_, err = f.service.UpdateTier(context.Background(), merchantapp.UpdateTierCommand{
		MerchantID: other.MerchantID(),
		TierID:     tierID,
		Definition: tier.Definition{Name: "Hijacked", MinPoints: 1},
	})
	assert.ErrorIs(t, err, tier.ErrTierNotFound)

	_, err = f.service.DeleteTier(context.Background(), other.MerchantID(), tierID)
	assert.ErrorIs(t, err, tier.ErrTierNotFound)
}

// Test 12: 刪除等級後帳戶落到次一等級
func TestService_DeleteTier_FallsBack(t *testing.T) {
	f := newFixture(t)
	accountID := f.accountWith(t, "c-1", 1200)
	f.createTier(t, "Silver", 500)
	gold := f.createTier(t, "Gold", 1000)
	require.Equal(t, "Gold", f.tierOf(t, accountID))
	tierID, err := tier.TierIDFromString(gold.Tier.TierID)
	require.NoError(t, err)

	res, err := f.service.DeleteTier(context.Background(), f.merchant.MerchantID(), tierID)

	require.NoError(t, err)
	assert.Nil(t, res.Tier)
	assert.Equal(t, 1, res.Recompute.Changed)
	assert.Equal(t, "Silver", f.tierOf(t, accountID))

	_, err = f.service.DeleteTier(context.Background(), f.merchant.MerchantID(), tierID)
	assert.ErrorIs(t, err, tier.ErrTierNotFound)
}
