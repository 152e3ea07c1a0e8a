package points_test

import (
	"math"
	"strings"
	"testing"

	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/points"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ===== PointsAmount 測試 =====

// Test 1: 建構有效的 PointsAmount
func TestNewPointsAmount_ValidValue_ReturnsPointsAmount(t *testing.T) {
	// Act
	amount, err := points.NewPointsAmount(100)

	// Assert
	assert.NoError(t, err)
	assert.Equal(t, 100, amount.Value())
}

// Test 2: 建構負數 PointsAmount 失敗（建構約束違反）
func TestNewPointsAmount_NegativeValue_ReturnsError(t *testing.T) {
	amount, err := points.NewPointsAmount(-10)

	assert.ErrorIs(t, err, points.ErrNegativePointsAmount)
	assert.Equal(t, 0, amount.Value())
	assert.Contains(t, err.Error(), "value -10")
}

// Test 3: 異動數量必須 > 0
func TestNewPositivePointsAmount(t *testing.T) {
	for _, v := range []int{0, -1, -100} {
		_, err := points.NewPositivePointsAmount(v)
		assert.ErrorIs(t, err, points.ErrInvalidAmount, "value=%d", v)
	}

	amount, err := points.NewPositivePointsAmount(1)
	require.NoError(t, err)
	assert.Equal(t, 1, amount.Value())
}

// Test 4: 相加返回新值，原值不變
func TestPointsAmount_Add(t *testing.T) {
	a, _ := points.NewPointsAmount(100)
	b, _ := points.NewPointsAmount(50)

	sum, err := a.Add(b)

	require.NoError(t, err)
	assert.Equal(t, 150, sum.Value())
	assert.Equal(t, 100, a.Value())
	assert.Equal(t, 50, b.Value())
}

// Test 5: 溢位被偵測
func TestPointsAmount_Add_Overflow(t *testing.T) {
	a, _ := points.NewPointsAmount(math.MaxInt)
	b, _ := points.NewPointsAmount(1)

	_, err := a.Add(b)

	assert.ErrorIs(t, err, points.ErrPointsOverflow)
}

// Test 6: 相減不足時返回餘額不足
func TestPointsAmount_Subtract(t *testing.T) {
	a, _ := points.NewPointsAmount(100)
	b, _ := points.NewPointsAmount(30)

	diff, err := a.Subtract(b)
	require.NoError(t, err)
	assert.Equal(t, 70, diff.Value())

	_, err = b.Subtract(a)
	assert.ErrorIs(t, err, points.ErrInsufficientBalance)
}

func TestPointsAmount_Comparisons(t *testing.T) {
	a, _ := points.NewPointsAmount(10)
	b, _ := points.NewPointsAmount(20)

	assert.True(t, b.GreaterThan(a))
	assert.True(t, a.LessThan(b))
	assert.True(t, a.GreaterThanOrEqual(a))
	assert.Equal(t, a, b.Min(a))
	assert.Equal(t, a, a.Min(b))
	assert.False(t, a.IsZero())
}

// ===== CorrelationRef 測試 =====

func TestNewCorrelationRef(t *testing.T) {
	c, err := points.NewCorrelationRef("  order-123 ")
	require.NoError(t, err)
	assert.Equal(t, "order-123", c.String())
	require.NotNil(t, c.Ptr())
	assert.Equal(t, "order-123", *c.Ptr())

	empty, err := points.NewCorrelationRef("")
	require.NoError(t, err)
	assert.True(t, empty.IsZero())
	assert.Nil(t, empty.Ptr())

	_, err = points.NewCorrelationRef(strings.Repeat("x", points.MaxCorrelationLength+1))
	assert.ErrorIs(t, err, points.ErrInvalidCorrelation)
}

func TestParseTransactionKind(t *testing.T) {
	k, err := points.ParseTransactionKind("EARN_BONUS")
	require.NoError(t, err)
	assert.True(t, k.IsEarn())
	assert.False(t, k.IsDeduction())

	k, err = points.ParseTransactionKind("EXPIRED")
	require.NoError(t, err)
	assert.True(t, k.IsDeduction())

	_, err = points.ParseTransactionKind("GIFT")
	assert.ErrorIs(t, err, points.ErrInvalidKind)
}
