package merchant

import (
	"testing"

	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/merchant"
	"github.com/jackyeh168/loyalty_ledger/src/internal/infrastructure/persistence/testdb"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test 1: 保存並依外部商店 ID 讀回（含預設設定）
func TestMerchantRepository_SaveAndFind(t *testing.T) {
	// Arrange
	repo := NewMerchantRepository(testdb.New(t, &MerchantGORM{}))
	m, err := merchant.NewMerchant("store-1", "Coffee", "token-1")
	require.NoError(t, err)

	// Act
	require.NoError(t, repo.Save(nil, m))
	found, err := repo.FindByExternalStoreID(nil, "store-1")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, m.MerchantID().String(), found.MerchantID().String())
	assert.Equal(t, "Coffee", found.StoreName())
	assert.True(t, found.IsActive())
	assert.Equal(t, 365, found.Settings().PointsExpiryDays)
	assert.True(t, decimal.NewFromInt(1).Equal(found.Settings().PointsPerCurrencyUnit))
}

// Test 2: 外部商店 ID 唯一
func TestMerchantRepository_Save_Duplicate(t *testing.T) {
	repo := NewMerchantRepository(testdb.New(t, &MerchantGORM{}))
	first, _ := merchant.NewMerchant("store-1", "A", "")
	second, _ := merchant.NewMerchant("store-1", "B", "")
	require.NoError(t, repo.Save(nil, first))

	err := repo.Save(nil, second)

	assert.ErrorIs(t, err, merchant.ErrMerchantAlreadyExists)
}

// Test 3: 停用與設定更新都被寫入（包含零值）
func TestMerchantRepository_Update(t *testing.T) {
	repo := NewMerchantRepository(testdb.New(t, &MerchantGORM{}))
	m, _ := merchant.NewMerchant("store-1", "A", "token")
	require.NoError(t, repo.Save(nil, m))

	settings := m.Settings()
	settings.PointsPerCurrencyUnit = decimal.RequireFromString("2.5")
	settings.PointsExpiryDays = 0
	settings.Enabled = false
	require.NoError(t, m.UpdateSettings(settings))
	m.Deactivate()
	require.NoError(t, repo.Update(nil, m))

	found, err := repo.FindByID(nil, m.MerchantID())
	require.NoError(t, err)
	assert.False(t, found.IsActive())
	assert.False(t, found.Settings().Enabled)
	assert.Equal(t, 0, found.Settings().PointsExpiryDays)
	assert.Equal(t, "2.5", found.Settings().PointsPerCurrencyUnit.String())
}

func TestMerchantRepository_NotFound(t *testing.T) {
	repo := NewMerchantRepository(testdb.New(t, &MerchantGORM{}))

	_, err := repo.FindByID(nil, merchant.NewMerchantID())
	assert.ErrorIs(t, err, merchant.ErrMerchantNotFound)

	m, _ := merchant.NewMerchant("ghost", "", "")
	assert.ErrorIs(t, repo.Update(nil, m), merchant.ErrMerchantNotFound)
}
