// Package commerce 把外部商務平台的事件轉換為帳本操作
package commerce

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ===========================
// Normalized Events
// ===========================

// EventType 正規化後的事件類型
type EventType string

const (
	EventMerchantAuthorized EventType = "merchant_authorized"
	EventAppUninstalled     EventType = "app_uninstalled"
	EventOrderCreated       EventType = "order_created"
	EventOrderStatusChanged EventType = "order_status_changed"
	EventCustomerCreated    EventType = "customer_created"
	EventCustomerUpdated    EventType = "customer_updated"
)

// Event 平台無關的事件
//
// StoreID 是外部商店 ID；依 Type 只有對應的 payload 非 nil
type Event struct {
	Type    EventType
	Name    string // 平台原始事件名稱（日誌用）
	StoreID string

	Authorization *Authorization
	Order         *Order
	Customer      *CustomerProfile
}

// Authorization 商家授權資料
type Authorization struct {
	StoreName   string
	AccessToken string
}

// Order 訂單事件資料
type Order struct {
	OrderID    string
	Status     string
	Amount     decimal.Decimal
	CouponCode string // 結帳使用的優惠碼（可為空）
	Customer   CustomerProfile
}

// CustomerProfile 顧客資料
type CustomerProfile struct {
	CustomerID   string
	Name         string
	Email        string
	Phone        string
	ReferralCode string // 註冊時填寫的推薦碼（可為空）
}

// reversalStatuses 會沖銷訂單積分的狀態
var reversalStatuses = map[string]bool{
	"canceled":  true,
	"cancelled": true,
	"refunded":  true,
}

// IsReversal 訂單狀態是否表示取消或退款
func (o Order) IsReversal() bool {
	return reversalStatuses[strings.ToLower(strings.TrimSpace(o.Status))]
}
