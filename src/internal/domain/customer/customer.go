package customer

import (
	"net/mail"
	"strings"
	"time"

	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/merchant"
)

// ===========================
// Customer Aggregate Root
// ===========================

// Customer 顧客資料聚合根
//
// 聚合邊界：
// - 顧客基本資料（名稱、Email、手機）
// - 外部平台識別（merchantID + externalID）
//
// 不變量（Invariants）：
// 1. 顧客必須屬於一個商家並有外部 ID
// 2. 手機號碼若存在必須為合法格式
// 3. CreatedAt 不可變更
//
// 積分相關狀態不在此聚合中（由 points.Account 負責）
type Customer struct {
	customerID CustomerID
	merchantID merchant.MerchantID
	externalID ExternalCustomerID

	name  string
	email string
	phone PhoneNumber

	createdAt time.Time
	updatedAt time.Time
	version   int // 樂觀鎖版本號
}

// Profile 可由外部事件更新的顧客資料
type Profile struct {
	Name  string
	Email string
	Phone string
}

// NewCustomer 創建新顧客（Checked Constructor）
//
// 資料品質規則：外部平台送來的格式錯誤 Email / 手機不阻擋建立，以空值保存
func NewCustomer(merchantID merchant.MerchantID, externalID ExternalCustomerID, profile Profile) (*Customer, error) {
	if merchantID.IsEmpty() {
		return nil, merchant.ErrInvalidMerchantID
	}
	if externalID.IsZero() {
		return nil, ErrInvalidExternalCustomerID.WithContext("reason", "cannot be empty")
	}

	now := time.Now()
	c := &Customer{
		customerID: NewCustomerID(),
		merchantID: merchantID,
		externalID: externalID,
		createdAt:  now,
		updatedAt:  now,
		version:    1,
	}
	c.applyProfile(profile)
	return c, nil
}

// ReconstructCustomer 重建顧客聚合（用於從資料庫載入）
func ReconstructCustomer(
	customerID CustomerID,
	merchantID merchant.MerchantID,
	externalID ExternalCustomerID,
	name string,
	email string,
	phone PhoneNumber,
	createdAt time.Time,
	updatedAt time.Time,
	version int,
) (*Customer, error) {
	if customerID.IsEmpty() {
		return nil, ErrInvalidCustomerID.WithContext("reason", "empty customer id in database")
	}
	return &Customer{
		customerID: customerID,
		merchantID: merchantID,
		externalID: externalID,
		name:       name,
		email:      email,
		phone:      phone,
		createdAt:  createdAt,
		updatedAt:  updatedAt,
		version:    version,
	}, nil
}

// UpdateProfile 以外部事件的最新資料更新（空欄位不覆蓋既有值）
//
// 返回：是否有任何欄位變更
func (c *Customer) UpdateProfile(profile Profile) bool {
	before := [3]string{c.name, c.email, c.phone.String()}
	c.applyProfile(profile)
	if before == [3]string{c.name, c.email, c.phone.String()} {
		return false
	}
	c.updatedAt = time.Now()
	c.version++
	return true
}

func (c *Customer) applyProfile(p Profile) {
	if name := strings.TrimSpace(p.Name); name != "" {
		c.name = name
	}
	if email := normalizeEmail(p.Email); email != "" {
		c.email = email
	}
	if phone, err := NewPhoneNumber(p.Phone); err == nil {
		c.phone = phone
	}
}

func normalizeEmail(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	addr, err := mail.ParseAddress(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(addr.Address)
}

// ===========================
// Customer Aggregate Getters
// ===========================

func (c *Customer) CustomerID() CustomerID          { return c.customerID }
func (c *Customer) MerchantID() merchant.MerchantID { return c.merchantID }
func (c *Customer) ExternalID() ExternalCustomerID  { return c.externalID }
func (c *Customer) Name() string                    { return c.name }
func (c *Customer) Email() string                   { return c.email }
func (c *Customer) Phone() PhoneNumber              { return c.phone }
func (c *Customer) CreatedAt() time.Time            { return c.createdAt }
func (c *Customer) UpdatedAt() time.Time            { return c.updatedAt }

// Version 返回版本號（用於樂觀鎖）
func (c *Customer) Version() int {
	return c.version
}
