// Package salla 對接 Salla 商務平台：優惠碼 API 與 Webhook 解析
package salla

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/coupon"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://api.salla.dev/admin/v2"

	defaultTimeout     = 10 * time.Second
	defaultRatePerMin  = 120
	defaultBurst       = 10
	maxErrorBodyLength = 512
)

// ClientOptions Salla API 客戶端設定
type ClientOptions struct {
	BaseURL           string
	HTTPClient        *http.Client
	RequestsPerMinute float64 // 所有商店共用的外呼上限
	Burst             int
}

// Client Salla Admin API 客戶端，實作 coupon.ExternalIssuer
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

var _ coupon.ExternalIssuer = (*Client)(nil)

// NewClient 創建 Salla API 客戶端
func NewClient(opts ClientOptions) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: defaultTimeout}
	}
	perMinute := opts.RequestsPerMinute
	if perMinute <= 0 {
		perMinute = defaultRatePerMin
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = defaultBurst
	}

	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: opts.HTTPClient,
		limiter:    rate.NewLimiter(rate.Limit(perMinute/60.0), burst),
	}
}

// APIError 平台返回非 2xx
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("salla api: status %d: %s", e.Status, e.Body)
}

// Retryable 5xx 與 429 可重試；其他 4xx 代表請求本身有問題
func (e *APIError) Retryable() bool {
	return e.Status >= 500 || e.Status == http.StatusTooManyRequests
}

type createCouponRequest struct {
	Code                string `json:"code"`
	Type                string `json:"type"`
	Amount              string `json:"amount"`
	StartDate           string `json:"start_date"`
	ExpiryDate          string `json:"expiry_date"`
	MaximumUsage        int    `json:"maximum_usage"`
	ExcludeSaleProducts bool   `json:"exclude_sale_products"`
	FreeShipping        bool   `json:"free_shipping"`
}

type createCouponResponse struct {
	Success bool `json:"success"`
	Data    struct {
		ID   flexString `json:"id"`
		Code string     `json:"code"`
	} `json:"data"`
}

// CreateCoupon 建立一次性固定金額優惠碼，返回平台的優惠碼 ID
func (c *Client) CreateCoupon(ctx context.Context, req coupon.ExternalCouponRequest) (string, error) {
	if req.AccessToken == "" {
		return "", fmt.Errorf("salla: store %s has no access token", req.StoreID)
	}

	body, err := json.Marshal(createCouponRequest{
		Code:         req.Code,
		Type:         "fixed",
		Amount:       req.Amount.StringFixed(2),
		StartDate:    req.StartsAt.UTC().Format(time.DateOnly),
		ExpiryDate:   req.ExpiresAt.UTC().Format(time.DateOnly),
		MaximumUsage: 1,
	})
	if err != nil {
		return "", fmt.Errorf("encode coupon request: %w", err)
	}

	var out createCouponResponse
	if err := c.do(ctx, http.MethodPost, "/coupons", req.AccessToken, body, &out); err != nil {
		return "", err
	}
	ref := string(out.Data.ID)
	if ref == "" {
		return "", fmt.Errorf("salla: coupon %s created without id", req.Code)
	}
	return ref, nil
}

func (c *Client) do(ctx context.Context, method, path, token string, body []byte, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("salla rate limit: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build salla request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("salla %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLength))
		return &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode salla response: %w", err)
	}
	return nil
}
