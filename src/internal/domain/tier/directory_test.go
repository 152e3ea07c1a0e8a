package tier_test

import (
	"errors"
	"testing"
	"time"

	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/merchant"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/tier"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustTier(t *testing.T, merchantID merchant.MerchantID, name string, minPoints int, multiplier string) *tier.Tier {
	t.Helper()
	tr, err := tier.NewTier(merchantID, tier.Definition{
		Name:       name,
		MinPoints:  minPoints,
		Multiplier: decimal.RequireFromString(multiplier),
	})
	require.NoError(t, err)
	return tr
}

// Test 1: 取門檻 <= totalPoints 的最高等級
func TestDirectory_Classify(t *testing.T) {
	// Arrange
	m := merchant.NewMerchantID()
	bronze := mustTier(t, m, "Bronze", 0, "1")
	silver := mustTier(t, m, "Silver", 500, "1.5")
	gold := mustTier(t, m, "Gold", 2000, "2")
	dir := tier.NewDirectory([]*tier.Tier{gold, bronze, silver})

	tests := []struct {
		total int
		want  *tier.Tier
	}{
		{0, bronze},
		{499, bronze},
		{500, silver},
		{1999, silver},
		{2000, gold},
		{1000000, gold},
	}

	for _, tt := range tests {
		// Act
		id, ok := dir.Classify(tt.total)

		// Assert
		require.True(t, ok, "total=%d", tt.total)
		assert.True(t, id.Equals(tt.want.TierID()), "total=%d want %s", tt.total, tt.want.Name())
	}
}

// Test 2: 沒有任何等級符合時返回 false
func TestDirectory_Classify_NoQualifyingTier(t *testing.T) {
	m := merchant.NewMerchantID()
	dir := tier.NewDirectory([]*tier.Tier{mustTier(t, m, "Silver", 500, "1")})

	id, ok := dir.Classify(100)

	assert.False(t, ok)
	assert.True(t, id.IsEmpty())

	_, ok = tier.EmptyDirectory().Classify(1000)
	assert.False(t, ok)

	var nilDir *tier.Directory
	_, ok = nilDir.Classify(1000)
	assert.False(t, ok)
}

// Test 3: 相同門檻時 sortOrder 較大者勝出
func TestDirectory_Classify_TieBreakBySortOrder(t *testing.T) {
	m := merchant.NewMerchantID()
	a, err := tier.NewTier(m, tier.Definition{Name: "A", MinPoints: 100, SortOrder: 2})
	require.NoError(t, err)
	b, err := tier.NewTier(m, tier.Definition{Name: "B", MinPoints: 100, SortOrder: 1})
	require.NoError(t, err)

	id, ok := tier.NewDirectory([]*tier.Tier{a, b}).Classify(150)

	require.True(t, ok)
	assert.True(t, id.Equals(a.TierID()))
}

// Test 4: 相同門檻與 sortOrder 時後建立者勝出
func TestDirectory_Classify_TieBreakByCreation(t *testing.T) {
	m := merchant.NewMerchantID()
	now := time.Now()
	def := tier.Definition{Name: "X", MinPoints: 100}
	older, err := tier.ReconstructTier(tier.NewTierID(), m, def, now.Add(-time.Hour), now)
	require.NoError(t, err)
	newer, err := tier.ReconstructTier(tier.NewTierID(), m, def, now, now)
	require.NoError(t, err)

	id, ok := tier.NewDirectory([]*tier.Tier{newer, older}).Classify(100)

	require.True(t, ok)
	assert.True(t, id.Equals(newer.TierID()))
}

func TestDirectory_MultiplierFor(t *testing.T) {
	m := merchant.NewMerchantID()
	gold := mustTier(t, m, "Gold", 1000, "2.5")
	dir := tier.NewDirectory([]*tier.Tier{gold})

	assert.True(t, dir.MultiplierFor(gold.TierID()).Equal(decimal.RequireFromString("2.5")))
	assert.True(t, dir.MultiplierFor(tier.TierID{}).Equal(decimal.NewFromInt(1)))
	assert.True(t, dir.MultiplierFor(tier.NewTierID()).Equal(decimal.NewFromInt(1)))
}

func TestDirectory_CheckThreshold(t *testing.T) {
	m := merchant.NewMerchantID()
	silver := mustTier(t, m, "Silver", 500, "1")
	dir := tier.NewDirectory([]*tier.Tier{silver})

	err := dir.CheckThreshold(500, tier.TierID{})
	assert.True(t, errors.Is(err, tier.ErrDuplicateThreshold))

	// 修改自身時不算重複
	assert.NoError(t, dir.CheckThreshold(500, silver.TierID()))
	assert.NoError(t, dir.CheckThreshold(600, tier.TierID{}))
}

func TestNewTier_Validation(t *testing.T) {
	m := merchant.NewMerchantID()

	_, err := tier.NewTier(m, tier.Definition{Name: " ", MinPoints: 0})
	assert.True(t, errors.Is(err, tier.ErrInvalidTierName))

	_, err = tier.NewTier(m, tier.Definition{Name: "A", MinPoints: -1})
	assert.True(t, errors.Is(err, tier.ErrInvalidThreshold))

	_, err = tier.NewTier(m, tier.Definition{Name: "A", Multiplier: decimal.NewFromInt(-1)})
	assert.True(t, errors.Is(err, tier.ErrInvalidMultiplier))

	tr, err := tier.NewTier(m, tier.Definition{Name: "A"})
	require.NoError(t, err)
	assert.True(t, tr.Multiplier().Equal(decimal.NewFromInt(1)), "zero multiplier defaults to 1")
}
