package tier

import (
	"time"

	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/merchant"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/tier"
	"github.com/shopspring/decimal"
)

// TierGORM 等級資料表模型
//
// 資料庫約束：
// - (merchant_id, min_points): 唯一索引（同一商家的門檻不可重複）
type TierGORM struct {
	TierID     string          `gorm:"column:tier_id;type:varchar(36);primaryKey"`
	MerchantID string          `gorm:"column:merchant_id;type:varchar(36);not null;uniqueIndex:idx_tiers_merchant_threshold,priority:1"`
	Name       string          `gorm:"column:name;type:varchar(100);not null"`
	MinPoints  int             `gorm:"column:min_points;not null;uniqueIndex:idx_tiers_merchant_threshold,priority:2;check:min_points >= 0"`
	Multiplier decimal.Decimal `gorm:"column:multiplier;type:numeric(8,4);not null"`
	SortOrder  int             `gorm:"column:sort_order;not null;default:0"`
	Benefits   string          `gorm:"column:benefits;type:text"`
	Color      string          `gorm:"column:color;type:varchar(16)"`
	CreatedAt  time.Time       `gorm:"column:created_at;not null"`
	UpdatedAt  time.Time       `gorm:"column:updated_at;not null"`
}

// TableName 指定資料表名稱
func (TierGORM) TableName() string {
	return "loyalty_tiers"
}

func (g *TierGORM) toDomain() (*tier.Tier, error) {
	tierID, err := tier.TierIDFromString(g.TierID)
	if err != nil {
		return nil, err
	}
	merchantID, err := merchant.MerchantIDFromString(g.MerchantID)
	if err != nil {
		return nil, err
	}
	return tier.ReconstructTier(tierID, merchantID, tier.Definition{
		Name:       g.Name,
		MinPoints:  g.MinPoints,
		Multiplier: g.Multiplier,
		SortOrder:  g.SortOrder,
		Benefits:   g.Benefits,
		Color:      g.Color,
	}, g.CreatedAt, g.UpdatedAt)
}

func toGORM(t *tier.Tier) *TierGORM {
	return &TierGORM{
		TierID:     t.TierID().String(),
		MerchantID: t.MerchantID().String(),
		Name:       t.Name(),
		MinPoints:  t.MinPoints(),
		Multiplier: t.Multiplier(),
		SortOrder:  t.SortOrder(),
		Benefits:   t.Benefits(),
		Color:      t.Color(),
		CreatedAt:  t.CreatedAt().UTC(),
		UpdatedAt:  t.UpdatedAt().UTC(),
	}
}
