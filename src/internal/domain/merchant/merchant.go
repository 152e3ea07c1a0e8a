package merchant

import (
	"strings"
	"time"
)

// ===========================
// Merchant 聚合根
// ===========================

// Merchant 安裝本應用的外部商店
//
// 業務規則：
// - externalStoreID 在系統內唯一（由外部平台提供）
// - 解除安裝後 active = false，所有事件被忽略，但歷史資料保留
// - 重新授權會重新啟用並更新 accessToken
type Merchant struct {
	merchantID      MerchantID
	externalStoreID string
	storeName       string
	accessToken     string
	active          bool
	settings        LoyaltySettings
	createdAt       time.Time
	updatedAt       time.Time
}

// NewMerchant 建立新安裝的商家（使用預設忠誠度設定）
func NewMerchant(externalStoreID, storeName, accessToken string) (*Merchant, error) {
	externalStoreID = strings.TrimSpace(externalStoreID)
	if externalStoreID == "" {
		return nil, ErrInvalidStoreID
	}

	now := time.Now()
	return &Merchant{
		merchantID:      NewMerchantID(),
		externalStoreID: externalStoreID,
		storeName:       strings.TrimSpace(storeName),
		accessToken:     accessToken,
		active:          true,
		settings:        DefaultLoyaltySettings(),
		createdAt:       now,
		updatedAt:       now,
	}, nil
}

// ReconstructMerchant 從持久化存儲重建商家（僅供 Repository 使用）
func ReconstructMerchant(
	merchantID MerchantID,
	externalStoreID string,
	storeName string,
	accessToken string,
	active bool,
	settings LoyaltySettings,
	createdAt time.Time,
	updatedAt time.Time,
) (*Merchant, error) {
	if merchantID.IsEmpty() {
		return nil, ErrInvalidMerchantID.WithContext("reason", "empty merchant id in database")
	}
	if externalStoreID == "" {
		return nil, ErrInvalidStoreID.WithContext("merchant_id", merchantID.String())
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	return &Merchant{
		merchantID:      merchantID,
		externalStoreID: externalStoreID,
		storeName:       storeName,
		accessToken:     accessToken,
		active:          active,
		settings:        settings,
		createdAt:       createdAt,
		updatedAt:       updatedAt,
	}, nil
}

// Authorize 商家重新授權（更新店名與 token，並重新啟用）
func (m *Merchant) Authorize(storeName, accessToken string) {
	if name := strings.TrimSpace(storeName); name != "" {
		m.storeName = name
	}
	if accessToken != "" {
		m.accessToken = accessToken
	}
	m.active = true
	m.updatedAt = time.Now()
}

// Deactivate 解除安裝
func (m *Merchant) Deactivate() {
	m.active = false
	m.updatedAt = time.Now()
}

// UpdateSettings 以驗證後的新設定整體替換
func (m *Merchant) UpdateSettings(settings LoyaltySettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	m.settings = settings
	m.updatedAt = time.Now()
	return nil
}

// ProgramEnabled 商家啟用中且忠誠度計畫開啟
func (m *Merchant) ProgramEnabled() bool {
	return m.active && m.settings.Enabled
}

func (m *Merchant) MerchantID() MerchantID    { return m.merchantID }
func (m *Merchant) ExternalStoreID() string   { return m.externalStoreID }
func (m *Merchant) StoreName() string         { return m.storeName }
func (m *Merchant) AccessToken() string       { return m.accessToken }
func (m *Merchant) IsActive() bool            { return m.active }
func (m *Merchant) Settings() LoyaltySettings { return m.settings }
func (m *Merchant) CreatedAt() time.Time      { return m.createdAt }
func (m *Merchant) UpdatedAt() time.Time      { return m.updatedAt }
