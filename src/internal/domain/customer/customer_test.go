package customer

import (
	"strings"
	"testing"

	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/merchant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ===========================
// PhoneNumber Value Object Tests
// ===========================

// Test 1: 合法號碼（含正規化）
func TestNewPhoneNumber_Valid(t *testing.T) {
	cases := map[string]string{
		"+966501234567":    "+966501234567",
		"0501234567":       "0501234567",
		"+966 50-123-4567": "+966501234567",
		"(050) 123 4567":   "0501234567",
		"12345678":         "12345678",
		"+123456789012345": "+123456789012345",
	}

	for input, want := range cases {
		t.Run(input, func(t *testing.T) {
			phone, err := NewPhoneNumber(input)

			require.NoError(t, err)
			assert.Equal(t, want, phone.String())
		})
	}
}

// Test 2: 非法號碼
func TestNewPhoneNumber_Invalid(t *testing.T) {
	for _, input := range []string{"", "1234567", "1234567890123456", "+966abc1234", "++96650123456"} {
		t.Run(input, func(t *testing.T) {
			_, err := NewPhoneNumber(input)

			assert.ErrorIs(t, err, ErrInvalidPhoneNumberFormat)
		})
	}
}

// ===========================
// ExternalCustomerID Tests
// ===========================

func TestNewExternalCustomerID(t *testing.T) {
	id, err := NewExternalCustomerID(" 987654 ")
	require.NoError(t, err)
	assert.Equal(t, "987654", id.String())

	for _, bad := range []string{"", "   ", "a b", strings.Repeat("x", 129)} {
		_, err := NewExternalCustomerID(bad)
		assert.ErrorIs(t, err, ErrInvalidExternalCustomerID, "input=%q", bad)
	}
}

// ===========================
// Customer Aggregate Tests
// ===========================

func newTestCustomer(t *testing.T, profile Profile) *Customer {
	t.Helper()
	ext, err := NewExternalCustomerID("c-1")
	require.NoError(t, err)
	c, err := NewCustomer(merchant.NewMerchantID(), ext, profile)
	require.NoError(t, err)
	return c
}

// Test 3: 建立時格式錯誤的 Email / 手機以空值保存
func TestNewCustomer_DropsMalformedContactFields(t *testing.T) {
	c := newTestCustomer(t, Profile{Name: " Sara ", Email: "not-an-email", Phone: "12"})

	assert.Equal(t, "Sara", c.Name())
	assert.Empty(t, c.Email())
	assert.True(t, c.Phone().IsZero())
	assert.Equal(t, 1, c.Version())
}

// Test 4: Email 正規化為小寫
func TestNewCustomer_NormalizesEmail(t *testing.T) {
	c := newTestCustomer(t, Profile{Name: "A", Email: "Sara <Sara@Example.COM>"})

	assert.Equal(t, "sara@example.com", c.Email())
}

// Test 5: 更新資料時空欄位不覆蓋，有變更才遞增版本
func TestCustomer_UpdateProfile(t *testing.T) {
	c := newTestCustomer(t, Profile{Name: "A", Email: "a@example.com", Phone: "+966501234567"})

	changed := c.UpdateProfile(Profile{Name: "", Email: "", Phone: ""})
	assert.False(t, changed)
	assert.Equal(t, 1, c.Version())

	changed = c.UpdateProfile(Profile{Name: "B", Phone: "+966509999999"})
	assert.True(t, changed)
	assert.Equal(t, "B", c.Name())
	assert.Equal(t, "a@example.com", c.Email())
	assert.Equal(t, "+966509999999", c.Phone().String())
	assert.Equal(t, 2, c.Version())
}

func TestNewCustomer_RequiresMerchantAndExternalID(t *testing.T) {
	ext, _ := NewExternalCustomerID("x")

	_, err := NewCustomer(merchant.MerchantID{}, ext, Profile{})
	assert.ErrorIs(t, err, merchant.ErrInvalidMerchantID)

	_, err = NewCustomer(merchant.NewMerchantID(), ExternalCustomerID{}, Profile{})
	assert.ErrorIs(t, err, ErrInvalidExternalCustomerID)
}
