package customer

import (
	"time"

	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/customer"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/merchant"
)

// ===========================
// GORM Models
// ===========================

// CustomerGORM 顧客資料表模型
//
// 資料庫約束：
// - customer_id: 主鍵（UUID）
// - (merchant_id, external_id): 唯一索引（同一商家內外部 ID 唯一）
// - phone: 可為空
type CustomerGORM struct {
	// 識別欄位
	CustomerID string `gorm:"column:customer_id;type:varchar(36);primaryKey"`
	MerchantID string `gorm:"column:merchant_id;type:varchar(36);not null;uniqueIndex:idx_customers_merchant_external,priority:1"`
	ExternalID string `gorm:"column:external_id;type:varchar(128);not null;uniqueIndex:idx_customers_merchant_external,priority:2"`

	// 基本信息
	Name  string  `gorm:"column:name;type:varchar(255)"`
	Email string  `gorm:"column:email;type:varchar(255)"`
	Phone *string `gorm:"column:phone;type:varchar(16)"` // Nullable

	// 審計欄位
	CreatedAt time.Time `gorm:"column:created_at;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
	Version   int       `gorm:"column:version;not null;default:1"`
}

// TableName 指定資料表名稱
func (CustomerGORM) TableName() string {
	return "customers"
}

// ===========================
// Mapper Functions
// ===========================

// toDomain 將 GORM 模型轉換為 Domain 模型
//
// 轉換邏輯：
// - Phone: *string → PhoneNumber 值對象（NULL → 零值）
func (m *CustomerGORM) toDomain() (*customer.Customer, error) {
	customerID, err := customer.CustomerIDFromString(m.CustomerID)
	if err != nil {
		return nil, err
	}
	merchantID, err := merchant.MerchantIDFromString(m.MerchantID)
	if err != nil {
		return nil, err
	}
	externalID, err := customer.NewExternalCustomerID(m.ExternalID)
	if err != nil {
		return nil, err
	}

	var phone customer.PhoneNumber
	if m.Phone != nil {
		phone, err = customer.NewPhoneNumber(*m.Phone)
		if err != nil {
			return nil, err
		}
	}

	return customer.ReconstructCustomer(
		customerID,
		merchantID,
		externalID,
		m.Name,
		m.Email,
		phone,
		m.CreatedAt,
		m.UpdatedAt,
		m.Version,
	)
}

// toGORM 將 Domain 模型轉換為 GORM 模型（PhoneNumber 零值 → NULL）
func toGORM(c *customer.Customer) *CustomerGORM {
	var phone *string
	if !c.Phone().IsZero() {
		s := c.Phone().String()
		phone = &s
	}

	return &CustomerGORM{
		CustomerID: c.CustomerID().String(),
		MerchantID: c.MerchantID().String(),
		ExternalID: c.ExternalID().String(),
		Name:       c.Name(),
		Email:      c.Email(),
		Phone:      phone,
		CreatedAt:  c.CreatedAt().UTC(),
		UpdatedAt:  c.UpdatedAt().UTC(),
		Version:    c.Version(),
	}
}
