package salla

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/coupon"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func couponRequest() coupon.ExternalCouponRequest {
	return coupon.ExternalCouponRequest{
		StoreID:     "store-1",
		AccessToken: "secret-token",
		Code:        "LOYALTY-ABCD1234",
		Amount:      decimal.RequireFromString("4"),
		StartsAt:    time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		ExpiresAt:   time.Date(2026, 3, 31, 9, 0, 0, 0, time.UTC),
	}
}

// Test 1: 建立優惠碼並返回平台 ID
func TestClient_CreateCoupon(t *testing.T) {
	var got createCouponRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/coupons", r.URL.Path)
		assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"status":201,"success":true,"data":{"id":98765,"code":"LOYALTY-ABCD1234"}}`))
	}))
	defer server.Close()
	client := NewClient(ClientOptions{BaseURL: server.URL})

	ref, err := client.CreateCoupon(context.Background(), couponRequest())

	require.NoError(t, err)
	assert.Equal(t, "98765", ref)
	assert.Equal(t, "LOYALTY-ABCD1234", got.Code)
	assert.Equal(t, "fixed", got.Type)
	assert.Equal(t, "4.00", got.Amount)
	assert.Equal(t, "2026-03-01", got.StartDate)
	assert.Equal(t, "2026-03-31", got.ExpiryDate)
	assert.Equal(t, 1, got.MaximumUsage)
}

// Test 2: 非 2xx 返回 APIError
func TestClient_CreateCoupon_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"success":false,"error":{"message":"upstream"}}`))
	}))
	defer server.Close()
	client := NewClient(ClientOptions{BaseURL: server.URL})

	_, err := client.CreateCoupon(context.Background(), couponRequest())

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.True(t, apiErr.Retryable())
	assert.Contains(t, apiErr.Body, "upstream")
}

// Test 3: 4xx 不可重試
func TestAPIError_Retryable(t *testing.T) {
	assert.False(t, (&APIError{Status: http.StatusUnprocessableEntity}).Retryable())
	assert.True(t, (&APIError{Status: http.StatusTooManyRequests}).Retryable())
}

// Test 4: 缺少 access token 不發出請求
func TestClient_CreateCoupon_NoToken(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()
	client := NewClient(ClientOptions{BaseURL: server.URL})
	req := couponRequest()
	req.AccessToken = ""

	_, err := client.CreateCoupon(context.Background(), req)

	assert.Error(t, err)
	assert.False(t, called)
}

// Test 5: 回應缺少 ID 視為失敗
func TestClient_CreateCoupon_MissingID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"data":{}}`))
	}))
	defer server.Close()
	client := NewClient(ClientOptions{BaseURL: server.URL})

	_, err := client.CreateCoupon(context.Background(), couponRequest())

	assert.Error(t, err)
}

// Test 6: 限流等待期間 context 取消
func TestClient_RateLimitHonoursContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"data":{"id":"c-1"}}`))
	}))
	defer server.Close()
	client := NewClient(ClientOptions{BaseURL: server.URL, RequestsPerMinute: 1, Burst: 1})

	_, err := client.CreateCoupon(context.Background(), couponRequest())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = client.CreateCoupon(ctx, couponRequest())

	assert.Error(t, err)
}

// Test 7: 平台以字串返回優惠碼 ID
func TestClient_CreateCoupon_StringID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"data":{"id":"c-1","code":"LOYALTY-ABCD1234"}}`))
	}))
	defer server.Close()
	client := NewClient(ClientOptions{BaseURL: server.URL})

	ref, err := client.CreateCoupon(context.Background(), couponRequest())

	require.NoError(t, err)
	assert.Equal(t, "c-1", ref)
}
