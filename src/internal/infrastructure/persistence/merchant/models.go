package merchant

import (
	"time"

	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/merchant"
	"github.com/shopspring/decimal"
)

// MerchantGORM 商家資料表模型
//
// 資料庫約束：
// - merchant_id: 主鍵（UUID）
// - external_store_id: 唯一索引（外部平台的商店 ID）
// - settings: JSON 文件（整體替換的值對象）
type MerchantGORM struct {
	MerchantID      string           `gorm:"column:merchant_id;type:varchar(36);primaryKey"`
	ExternalStoreID string           `gorm:"column:external_store_id;type:varchar(64);not null;uniqueIndex"`
	StoreName       string           `gorm:"column:store_name;type:varchar(255)"`
	AccessToken     string           `gorm:"column:access_token;type:text"`
	Active          bool             `gorm:"column:active;not null"`
	Settings        settingsDocument `gorm:"column:settings;type:text;serializer:json"`
	CreatedAt       time.Time        `gorm:"column:created_at;not null"`
	UpdatedAt       time.Time        `gorm:"column:updated_at;not null"`
}

// TableName 指定資料表名稱
func (MerchantGORM) TableName() string {
	return "merchants"
}

// settingsDocument LoyaltySettings 的持久化格式
type settingsDocument struct {
	Enabled               bool            `json:"enabled"`
	ProgramName           string          `json:"program_name"`
	PointsPerCurrencyUnit decimal.Decimal `json:"points_per_currency_unit"`
	MinOrderAmount        decimal.Decimal `json:"min_order_amount"`
	PointsExpiryDays      int             `json:"points_expiry_days"`
	PointsPerDiscountUnit int             `json:"points_per_discount_unit"`
	MinRedeemPoints       int             `json:"min_redeem_points"`
	MaxRedeemPoints       int             `json:"max_redeem_points"`
	CouponValidityDays    int             `json:"coupon_validity_days"`
	SignupBonus           int             `json:"signup_bonus"`
	ReferralBonus         int             `json:"referral_bonus"`
	ReferredBonus         int             `json:"referred_bonus"`
}

func (g *MerchantGORM) toDomain() (*merchant.Merchant, error) {
	merchantID, err := merchant.MerchantIDFromString(g.MerchantID)
	if err != nil {
		return nil, err
	}
	s := g.Settings
	return merchant.ReconstructMerchant(
		merchantID,
		g.ExternalStoreID,
		g.StoreName,
		g.AccessToken,
		g.Active,
		merchant.LoyaltySettings{
			Enabled:               s.Enabled,
			ProgramName:           s.ProgramName,
			PointsPerCurrencyUnit: s.PointsPerCurrencyUnit,
			MinOrderAmount:        s.MinOrderAmount,
			PointsExpiryDays:      s.PointsExpiryDays,
			PointsPerDiscountUnit: s.PointsPerDiscountUnit,
			MinRedeemPoints:       s.MinRedeemPoints,
			MaxRedeemPoints:       s.MaxRedeemPoints,
			CouponValidityDays:    s.CouponValidityDays,
			SignupBonus:           s.SignupBonus,
			ReferralBonus:         s.ReferralBonus,
			ReferredBonus:         s.ReferredBonus,
		},
		g.CreatedAt,
		g.UpdatedAt,
	)
}

func toGORM(m *merchant.Merchant) *MerchantGORM {
	s := m.Settings()
	return &MerchantGORM{
		MerchantID:      m.MerchantID().String(),
		ExternalStoreID: m.ExternalStoreID(),
		StoreName:       m.StoreName(),
		AccessToken:     m.AccessToken(),
		Active:          m.IsActive(),
		Settings: settingsDocument{
			Enabled:               s.Enabled,
			ProgramName:           s.ProgramName,
			PointsPerCurrencyUnit: s.PointsPerCurrencyUnit,
			MinOrderAmount:        s.MinOrderAmount,
			PointsExpiryDays:      s.PointsExpiryDays,
			PointsPerDiscountUnit: s.PointsPerDiscountUnit,
			MinRedeemPoints:       s.MinRedeemPoints,
			MaxRedeemPoints:       s.MaxRedeemPoints,
			CouponValidityDays:    s.CouponValidityDays,
			SignupBonus:           s.SignupBonus,
			ReferralBonus:         s.ReferralBonus,
			ReferredBonus:         s.ReferredBonus,
		},
		CreatedAt: m.CreatedAt().UTC(),
		UpdatedAt: m.UpdatedAt().UTC(),
	}
}
