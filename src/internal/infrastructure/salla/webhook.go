package salla

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackyeh168/loyalty_ledger/src/internal/application/commerce"
	"github.com/shopspring/decimal"
)

// SignatureHeader Salla 的 Webhook 簽章標頭
const SignatureHeader = "X-Salla-Signature"

var (
	ErrMissingSignature = errors.New("salla webhook: missing signature")
	ErrInvalidSignature = errors.New("salla webhook: signature mismatch")
	ErrMalformedPayload = errors.New("salla webhook: malformed payload")
)

// VerifySignature 以 HMAC-SHA256(secret, body) 的十六進位值比對簽章
func VerifySignature(secret string, body []byte, signature string) error {
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return ErrMissingSignature
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(signature))) {
		return ErrInvalidSignature
	}
	return nil
}

// Sign 計算 body 的簽章（測試與本地重送使用）
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// ===========================
// Payload
// ===========================

// eventTypes Salla 事件名稱對應到正規化事件
var eventTypes = map[string]commerce.EventType{
	"app.store.authorize":  commerce.EventMerchantAuthorized,
	"app.installed":        commerce.EventMerchantAuthorized,
	"app.uninstalled":      commerce.EventAppUninstalled,
	"order.created":        commerce.EventOrderCreated,
	"order.updated":        commerce.EventOrderStatusChanged,
	"order.status.updated": commerce.EventOrderStatusChanged,
	"customer.created":     commerce.EventCustomerCreated,
	"customer.updated":     commerce.EventCustomerUpdated,
}

// flexString 接受 JSON 字串或數字（Salla 的 ID 兩種格式都會出現）
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// orderStatus 接受 {"slug": "..."} 或純字串
type orderStatus string

func (s *orderStatus) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*s = ""
		return nil
	}
	if data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = orderStatus(v)
		return nil
	}
	var v struct {
		Slug string `json:"slug"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if v.Slug == "" {
		v.Slug = v.Name
	}
	*s = orderStatus(v.Slug)
	return nil
}

// flexAmount 接受數字、字串或 {"amount": ...}
type flexAmount decimal.Decimal

func (a *flexAmount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*a = flexAmount(decimal.Zero)
		return nil
	}
	if data[0] == '{' {
		var v struct {
			Amount decimal.Decimal `json:"amount"`
		}
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*a = flexAmount(v.Amount)
		return nil
	}
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return err
	}
	*a = flexAmount(d)
	return nil
}

type envelope struct {
	Event    string          `json:"event"`
	Merchant flexString      `json:"merchant"`
	Data     json.RawMessage `json:"data"`
}

type customerPayload struct {
	ID           flexString `json:"id"`
	Name         string     `json:"name"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	Email        string     `json:"email"`
	Mobile       flexString `json:"mobile"`
	ReferralCode string     `json:"referral_code"`
}

func (c customerPayload) profile() commerce.CustomerProfile {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		name = strings.TrimSpace(c.FirstName + " " + c.LastName)
	}
	return commerce.CustomerProfile{
		CustomerID:   string(c.ID),
		Name:         name,
		Email:        strings.TrimSpace(c.Email),
		Phone:        string(c.Mobile),
		ReferralCode: strings.TrimSpace(c.ReferralCode),
	}
}

type orderPayload struct {
	ID      flexString  `json:"id"`
	Status  orderStatus `json:"status"`
	Total   flexAmount  `json:"total"`
	Amounts struct {
		Total flexAmount `json:"total"`
	} `json:"amounts"`
	Coupon *struct {
		Code string `json:"code"`
	} `json:"coupon"`
	Customer customerPayload `json:"customer"`
}

type authorizePayload struct {
	AccessToken string `json:"access_token"`
	StoreName   string `json:"store_name"`
	Name        string `json:"name"`
}

// ParseEvent 把 Salla Webhook 內容轉換為正規化事件
//
// 不認識的事件返回 Type 為空的 Event（由 Adapter 忽略），不視為錯誤
func ParseEvent(body []byte) (commerce.Event, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return commerce.Event{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if env.Event == "" {
		return commerce.Event{}, fmt.Errorf("%w: missing event name", ErrMalformedPayload)
	}

	evt := commerce.Event{
		Type:    eventTypes[env.Event],
		Name:    env.Event,
		StoreID: string(env.Merchant),
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return evt, nil
	}

	var err error
	switch evt.Type {
	case commerce.EventMerchantAuthorized:
		var p authorizePayload
		if err = json.Unmarshal(env.Data, &p); err == nil {
			name := p.StoreName
			if name == "" {
				name = p.Name
			}
			evt.Authorization = &commerce.Authorization{StoreName: name, AccessToken: p.AccessToken}
		}
	case commerce.EventOrderCreated, commerce.EventOrderStatusChanged:
		var p orderPayload
		if err = json.Unmarshal(env.Data, &p); err == nil {
			evt.Order = p.order()
		}
	case commerce.EventCustomerCreated, commerce.EventCustomerUpdated:
		var p customerPayload
		if err = json.Unmarshal(env.Data, &p); err == nil {
			profile := p.profile()
			evt.Customer = &profile
		}
	}
	if err != nil {
		return commerce.Event{}, fmt.Errorf("%w: %s data: %v", ErrMalformedPayload, env.Event, err)
	}
	return evt, nil
}

func (p orderPayload) order() *commerce.Order {
	amount := decimal.Decimal(p.Amounts.Total)
	if amount.IsZero() {
		amount = decimal.Decimal(p.Total)
	}
	code := ""
	if p.Coupon != nil {
		code = strings.TrimSpace(p.Coupon.Code)
	}
	return &commerce.Order{
		OrderID:    string(p.ID),
		Status:     string(p.Status),
		Amount:     amount,
		CouponCode: code,
		Customer:   p.Customer.profile(),
	}
}
