package points_test

import (
	"testing"
	"time"

	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/merchant"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/points"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/tier"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ===========================
// 測試輔助
// ===========================

func newTestAccount(t *testing.T) *points.Account {
	t.Helper()
	account, err := points.NewAccount(merchant.NewMerchantID(), "customer-1")
	require.NoError(t, err)
	account.PullEvents()
	return account
}

func amt(t *testing.T, v int) points.PointsAmount {
	t.Helper()
	a, err := points.NewPositivePointsAmount(v)
	require.NoError(t, err)
	return a
}

func noRef() points.CorrelationRef { return points.CorrelationRef{} }

func assertBalanceInvariant(t *testing.T, a *points.Account) {
	t.Helper()
	assert.Equal(t, a.TotalPoints().Value()-a.UsedPoints().Value(), a.CurrentPoints().Value())
	assert.GreaterOrEqual(t, a.CurrentPoints().Value(), 0)
}

func goldDirectory(t *testing.T, merchantID merchant.MerchantID) (*tier.Directory, *tier.Tier) {
	t.Helper()
	gold, err := tier.NewTier(merchantID, tier.Definition{Name: "Gold", MinPoints: 1000, Multiplier: decimal.NewFromInt(2)})
	require.NoError(t, err)
	return tier.NewDirectory([]*tier.Tier{gold}), gold
}

// ===========================
// 建構測試
// ===========================

// Test 1: NewAccount 成功建立
func TestNewAccount_Success(t *testing.T) {
	// Arrange
	merchantID := merchant.NewMerchantID()

	// Act
	account, err := points.NewAccount(merchantID, " cust-42 ")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "cust-42", account.CustomerRef())
	assert.True(t, account.MerchantID().Equals(merchantID))
	assert.Len(t, account.ReferralCode(), 8)
	assert.Equal(t, 0, account.TotalPoints().Value())
	assert.True(t, account.TierID().IsEmpty())
	assert.Equal(t, 1, account.Version())
	assert.Equal(t, 0, account.ExpectedVersion())

	events := account.PullEvents()
	require.Len(t, events, 1)
	assert.Equal(t, points.EventTypeAccountOpened, events[0].EventType())
	assert.Empty(t, account.PullEvents())
}

// Test 2: 無效輸入被拒絕
func TestNewAccount_InvalidInput(t *testing.T) {
	_, err := points.NewAccount(merchant.MerchantID{}, "c")
	assert.ErrorIs(t, err, merchant.ErrInvalidMerchantID)

	_, err = points.NewAccount(merchant.NewMerchantID(), "   ")
	assert.ErrorIs(t, err, points.ErrInvalidCustomerRef)
}

// ===========================
// Earn 測試
// ===========================

// Test 3: Earn 增加 total 與 current，返回正數交易
func TestAccount_Earn(t *testing.T) {
	// Arrange
	account := newTestAccount(t)
	now := time.Now()
	ref, _ := points.NewCorrelationRef("order-1")
	orderAmount := decimal.RequireFromString("150.50")
	expires := now.Add(24 * time.Hour)

	// Act
	entry, err := account.Earn(points.KindEarnPurchase, amt(t, 150), "purchase", ref,
		points.EarnDetails{OrderAmount: &orderAmount, ExpiresAt: &expires}, tier.EmptyDirectory(), now)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 150, entry.Amount())
	assert.Equal(t, points.KindEarnPurchase, entry.Kind())
	assert.Equal(t, "order-1", entry.Correlation().String())
	assert.True(t, entry.AccountID().Equals(account.AccountID()))
	assert.Equal(t, expires, *entry.ExpiresAt())
	assert.Equal(t, 150, account.TotalPoints().Value())
	assert.Equal(t, 150, account.CurrentPoints().Value())
	assertBalanceInvariant(t, account)

	events := account.PullEvents()
	require.Len(t, events, 1)
	assert.Equal(t, points.EventTypePointsEarned, events[0].EventType())
}

// Test 4: Earn 拒絕扣減類型
func TestAccount_Earn_RejectsDeductionKind(t *testing.T) {
	account := newTestAccount(t)

	_, err := account.Earn(points.KindRedeemCoupon, amt(t, 10), "", noRef(), points.EarnDetails{}, nil, time.Now())

	assert.ErrorIs(t, err, points.ErrInvalidKind)
	assert.Equal(t, 0, account.TotalPoints().Value())
}

// Test 5: 零值 PointsAmount 被拒絕（繞過 NewPositivePointsAmount 的情況）
func TestAccount_Earn_RejectsZero(t *testing.T) {
	account := newTestAccount(t)

	_, err := account.Earn(points.KindEarnBonus, points.PointsAmount{}, "", noRef(), points.EarnDetails{}, nil, time.Now())

	assert.ErrorIs(t, err, points.ErrInvalidAmount)
}

// Test 6: 跨越門檻時更新等級並產生事件
func TestAccount_Earn_CrossesTierThreshold(t *testing.T) {
	account := newTestAccount(t)
	dir, gold := goldDirectory(t, account.MerchantID())

	_, err := account.Earn(points.KindEarnBonus, amt(t, 999), "", noRef(), points.EarnDetails{}, dir, time.Now())
	require.NoError(t, err)
	assert.True(t, account.TierID().IsEmpty())
	account.PullEvents()

	_, err = account.Earn(points.KindEarnBonus, amt(t, 1), "", noRef(), points.EarnDetails{}, dir, time.Now())
	require.NoError(t, err)
	assert.True(t, account.TierID().Equals(gold.TierID()))

	events := account.PullEvents()
	require.Len(t, events, 2)
	changed, ok := events[1].(*points.TierChangedEvent)
	require.True(t, ok)
	assert.True(t, changed.From().IsEmpty())
	assert.True(t, changed.To().Equals(gold.TierID()))
	assert.Equal(t, 1000, changed.TotalPoints())
}

// ===========================
// Deduct 測試
// ===========================

// Test 7: Deduct 增加 used、減少 current，返回負數交易
func TestAccount_Deduct(t *testing.T) {
	account := newTestAccount(t)
	_, err := account.Earn(points.KindEarnBonus, amt(t, 1000), "", noRef(), points.EarnDetails{}, nil, time.Now())
	require.NoError(t, err)

	entry, err := account.Deduct(points.KindRedeemCoupon, amt(t, 400), "redeem", noRef(), time.Now())

	require.NoError(t, err)
	assert.Equal(t, -400, entry.Amount())
	assert.Equal(t, 400, entry.AbsAmount().Value())
	assert.Equal(t, 1000, account.TotalPoints().Value())
	assert.Equal(t, 400, account.UsedPoints().Value())
	assert.Equal(t, 600, account.CurrentPoints().Value())
	assertBalanceInvariant(t, account)
}

// Test 8: 餘額不足時不變更任何狀態
func TestAccount_Deduct_InsufficientBalance(t *testing.T) {
	account := newTestAccount(t)
	_, _ = account.Earn(points.KindEarnBonus, amt(t, 100), "", noRef(), points.EarnDetails{}, nil, time.Now())
	account.PullEvents()

	_, err := account.Deduct(points.KindDeductManual, amt(t, 101), "", noRef(), time.Now())

	assert.ErrorIs(t, err, points.ErrInsufficientBalance)
	assert.Equal(t, 100, account.CurrentPoints().Value())
	assert.Equal(t, 0, account.UsedPoints().Value())
	assert.Empty(t, account.PullEvents())
}

// Test 9: Deduct 拒絕獲得類型
func TestAccount_Deduct_RejectsEarnKind(t *testing.T) {
	account := newTestAccount(t)

	_, err := account.Deduct(points.KindEarnBonus, amt(t, 1), "", noRef(), time.Now())

	assert.ErrorIs(t, err, points.ErrInvalidKind)
}

// Test 10: 扣減永遠不改變等級
func TestAccount_Deduct_NeverChangesTier(t *testing.T) {
	account := newTestAccount(t)
	dir, gold := goldDirectory(t, account.MerchantID())
	_, err := account.Earn(points.KindEarnBonus, amt(t, 1200), "", noRef(), points.EarnDetails{}, dir, time.Now())
	require.NoError(t, err)

	_, err = account.Deduct(points.KindRedeemCoupon, amt(t, 1200), "", noRef(), time.Now())
	require.NoError(t, err)

	assert.True(t, account.TierID().Equals(gold.TierID()))
	assert.Equal(t, 0, account.CurrentPoints().Value())
}

// ===========================
// 版本與重建
// ===========================

// Test 11: 同一次載入內多次變更只遞增一次版本
func TestAccount_VersionBumpsOncePerLoad(t *testing.T) {
	account, err := points.ReconstructAccount(points.NewAccountID(), merchant.NewMerchantID(), "c", "ABCDEFGH",
		0, 0, 0, tier.TierID{}, 5, time.Now(), time.Now())
	require.NoError(t, err)
	assert.False(t, account.HasChanges())

	_, _ = account.Earn(points.KindEarnBonus, amt(t, 10), "", noRef(), points.EarnDetails{}, nil, time.Now())
	_, _ = account.Earn(points.KindEarnBonus, amt(t, 10), "", noRef(), points.EarnDetails{}, nil, time.Now())

	assert.True(t, account.HasChanges())
	assert.Equal(t, 5, account.ExpectedVersion())
	assert.Equal(t, 6, account.Version())

	account.MarkPersisted()
	assert.False(t, account.HasChanges())
	assert.Equal(t, 6, account.ExpectedVersion())
}

// Test 12: 重建時拒絕違反不變條件的資料
func TestReconstructAccount_RejectsCorruptedBalances(t *testing.T) {
	tests := []struct {
		name                 string
		total, used, current int
	}{
		{"current mismatch", 100, 10, 80},
		{"negative current", 10, 20, -10},
		{"negative total", -1, 0, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := points.ReconstructAccount(points.NewAccountID(), merchant.NewMerchantID(), "c", "X",
				tt.total, tt.used, tt.current, tier.TierID{}, 1, time.Now(), time.Now())
			assert.ErrorIs(t, err, points.ErrInvariantViolation)
		})
	}
}

// Test 13: 一連串操作後不變條件始終成立
func TestAccount_InvariantHoldsAcrossOperations(t *testing.T) {
	account := newTestAccount(t)
	ops := []struct {
		earn   bool
		amount int
	}{
		{true, 500}, {false, 200}, {true, 50}, {false, 350}, {false, 1}, {true, 1000}, {false, 999},
	}
	for _, op := range ops {
		if op.earn {
			_, _ = account.Earn(points.KindEarnBonus, amt(t, op.amount), "", noRef(), points.EarnDetails{}, nil, time.Now())
		} else {
			_, _ = account.Deduct(points.KindDeductManual, amt(t, op.amount), "", noRef(), time.Now())
		}
		assertBalanceInvariant(t, account)
	}
	assert.Equal(t, 1550, account.TotalPoints().Value())
}
