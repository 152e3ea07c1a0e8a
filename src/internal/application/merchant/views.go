package merchant

import (
	"time"

	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/merchant"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/tier"
)

// ===========================
// Output DTO
// ===========================

// MerchantView 商家資料
type MerchantView struct {
	MerchantID      string
	ExternalStoreID string
	StoreName       string
	Active          bool
	ProgramEnabled  bool
	HasAccessToken  bool
	Settings        merchant.LoyaltySettings
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func newMerchantView(m *merchant.Merchant) *MerchantView {
	return &MerchantView{
		MerchantID:      m.MerchantID().String(),
		ExternalStoreID: m.ExternalStoreID(),
		StoreName:       m.StoreName(),
		Active:          m.IsActive(),
		ProgramEnabled:  m.ProgramEnabled(),
		HasAccessToken:  m.AccessToken() != "",
		Settings:        m.Settings(),
		CreatedAt:       m.CreatedAt(),
		UpdatedAt:       m.UpdatedAt(),
	}
}

// TierView 等級
type TierView struct {
	TierID     string
	Name       string
	MinPoints  int
	Multiplier string
	SortOrder  int
	Benefits   string
	Color      string
}

func newTierView(t *tier.Tier) TierView {
	return TierView{
		TierID:     t.TierID().String(),
		Name:       t.Name(),
		MinPoints:  t.MinPoints(),
		Multiplier: t.Multiplier().String(),
		SortOrder:  t.SortOrder(),
		Benefits:   t.Benefits(),
		Color:      t.Color(),
	}
}
