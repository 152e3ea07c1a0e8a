package merchant_test

import (
	"errors"
	"testing"
	"time"

	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/merchant"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test 1: 新商家帶預設設定並啟用
func TestNewMerchant_UsesDefaults(t *testing.T) {
	m, err := merchant.NewMerchant(" 12345 ", "My Store", "token-abc")

	require.NoError(t, err)
	assert.Equal(t, "12345", m.ExternalStoreID())
	assert.True(t, m.IsActive())
	assert.True(t, m.ProgramEnabled())
	assert.Equal(t, merchant.DefaultLoyaltySettings(), m.Settings())
	assert.False(t, m.MerchantID().IsEmpty())
}

// Test 2: 空的外部商店 ID 被拒絕
func TestNewMerchant_EmptyStoreID(t *testing.T) {
	_, err := merchant.NewMerchant("  ", "x", "y")
	assert.True(t, errors.Is(err, merchant.ErrInvalidStoreID))
}

// Test 3: 解除安裝後重新授權恢復啟用並更新 token
func TestMerchant_DeactivateThenAuthorize(t *testing.T) {
	m, err := merchant.NewMerchant("1", "Old", "t1")
	require.NoError(t, err)

	m.Deactivate()
	assert.False(t, m.ProgramEnabled())

	m.Authorize("New", "t2")
	assert.True(t, m.IsActive())
	assert.Equal(t, "New", m.StoreName())
	assert.Equal(t, "t2", m.AccessToken())

	// 空值不覆蓋既有資料
	m.Authorize("", "")
	assert.Equal(t, "New", m.StoreName())
	assert.Equal(t, "t2", m.AccessToken())
}

// Test 4: 停用計畫時 ProgramEnabled 為 false
func TestMerchant_UpdateSettings_DisableProgram(t *testing.T) {
	m, _ := merchant.NewMerchant("1", "S", "t")
	s := m.Settings()
	s.Enabled = false

	require.NoError(t, m.UpdateSettings(s))
	assert.True(t, m.IsActive())
	assert.False(t, m.ProgramEnabled())
}

func TestLoyaltySettings_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *merchant.LoyaltySettings)
		field  string
	}{
		{"negative rate", func(s *merchant.LoyaltySettings) { s.PointsPerCurrencyUnit = decimal.NewFromInt(-1) }, "points_per_currency_unit"},
		{"negative min order", func(s *merchant.LoyaltySettings) { s.MinOrderAmount = decimal.NewFromInt(-5) }, "min_order_amount"},
		{"negative expiry", func(s *merchant.LoyaltySettings) { s.PointsExpiryDays = -1 }, "points_expiry_days"},
		{"zero discount unit", func(s *merchant.LoyaltySettings) { s.PointsPerDiscountUnit = 0 }, "points_per_discount_unit"},
		{"max below min", func(s *merchant.LoyaltySettings) { s.MinRedeemPoints = 500; s.MaxRedeemPoints = 100 }, "max_redeem_points"},
		{"zero coupon validity", func(s *merchant.LoyaltySettings) { s.CouponValidityDays = 0 }, "coupon_validity_days"},
		{"negative signup bonus", func(s *merchant.LoyaltySettings) { s.SignupBonus = -1 }, "signup_bonus"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := merchant.DefaultLoyaltySettings()
			tt.mutate(&s)

			err := s.Validate()

			require.Error(t, err)
			assert.True(t, errors.Is(err, merchant.ErrInvalidLoyaltySettings))
			assert.Contains(t, err.Error(), tt.field)
		})
	}

	assert.NoError(t, merchant.DefaultLoyaltySettings().Validate())
}

func TestLoyaltySettings_ExpiryFrom(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	s := merchant.DefaultLoyaltySettings()
	exp := s.ExpiryFrom(now)
	require.NotNil(t, exp)
	assert.Equal(t, now.AddDate(0, 0, 365), *exp)

	s.PointsExpiryDays = 0
	assert.Nil(t, s.ExpiryFrom(now))

	assert.Equal(t, now.AddDate(0, 0, 30), s.CouponExpiryFrom(now))
}

func TestReconstructMerchant_RejectsInvalidSettings(t *testing.T) {
	s := merchant.DefaultLoyaltySettings()
	s.PointsPerDiscountUnit = 0

	_, err := merchant.ReconstructMerchant(merchant.NewMerchantID(), "1", "S", "t", true, s, time.Now(), time.Now())

	assert.True(t, errors.Is(err, merchant.ErrInvalidLoyaltySettings))
}
