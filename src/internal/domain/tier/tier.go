package tier

import (
	"strings"
	"time"

	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/merchant"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// TierMarker 是 TierID 的標記類型
type TierMarker struct{}

// TierID 等級 ID；零值代表「無等級」
type TierID = shared.EntityID[TierMarker]

func NewTierID() TierID {
	return shared.NewEntityID[TierMarker]()
}

func TierIDFromString(s string) (TierID, error) {
	return shared.EntityIDFromString[TierMarker](s, ErrInvalidTierID)
}

// ===========================
// Tier 實體
// ===========================

// Definition 等級的可編輯屬性（建立與修改共用）
type Definition struct {
	Name       string
	MinPoints  int
	Multiplier decimal.Decimal // 零值視為 1
	SortOrder  int
	Benefits   string
	Color      string
}

func (d Definition) normalize() (Definition, error) {
	d.Name = strings.TrimSpace(d.Name)
	if d.Name == "" {
		return d, ErrInvalidTierName
	}
	if d.MinPoints < 0 {
		return d, ErrInvalidThreshold.WithContext("min_points", d.MinPoints)
	}
	if d.Multiplier.IsZero() {
		d.Multiplier = decimal.NewFromInt(1)
	}
	if !d.Multiplier.IsPositive() {
		return d, ErrInvalidMultiplier.WithContext("multiplier", d.Multiplier.String())
	}
	return d, nil
}

// Tier 商家定義的會員等級
//
// 業務規則：
// - 以 totalPoints（終身累積）分類，不受扣減影響
// - multiplier 只作用於購物積分
// - 修改或刪除等級不會改寫既有交易，只影響下一次重新分類
type Tier struct {
	tierID     TierID
	merchantID merchant.MerchantID
	def        Definition
	createdAt  time.Time
	updatedAt  time.Time
}

// NewTier 建立等級
func NewTier(merchantID merchant.MerchantID, def Definition) (*Tier, error) {
	if merchantID.IsEmpty() {
		return nil, merchant.ErrInvalidMerchantID
	}
	def, err := def.normalize()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	return &Tier{
		tierID:     NewTierID(),
		merchantID: merchantID,
		def:        def,
		createdAt:  now,
		updatedAt:  now,
	}, nil
}

// ReconstructTier 從持久化存儲重建（僅供 Repository 使用）
func ReconstructTier(
	tierID TierID,
	merchantID merchant.MerchantID,
	def Definition,
	createdAt time.Time,
	updatedAt time.Time,
) (*Tier, error) {
	if tierID.IsEmpty() {
		return nil, ErrInvalidTierID.WithContext("reason", "empty tier id in database")
	}
	def, err := def.normalize()
	if err != nil {
		return nil, err
	}
	return &Tier{
		tierID:     tierID,
		merchantID: merchantID,
		def:        def,
		createdAt:  createdAt,
		updatedAt:  updatedAt,
	}, nil
}

// Redefine 修改等級屬性
func (t *Tier) Redefine(def Definition) error {
	def, err := def.normalize()
	if err != nil {
		return err
	}
	t.def = def
	t.updatedAt = time.Now()
	return nil
}

func (t *Tier) TierID() TierID                  { return t.tierID }
func (t *Tier) MerchantID() merchant.MerchantID { return t.merchantID }
func (t *Tier) Name() string                    { return t.def.Name }
func (t *Tier) MinPoints() int                  { return t.def.MinPoints }
func (t *Tier) Multiplier() decimal.Decimal     { return t.def.Multiplier }
func (t *Tier) SortOrder() int                  { return t.def.SortOrder }
func (t *Tier) Benefits() string                { return t.def.Benefits }
func (t *Tier) Color() string                   { return t.def.Color }
func (t *Tier) Definition() Definition          { return t.def }
func (t *Tier) CreatedAt() time.Time            { return t.createdAt }
func (t *Tier) UpdatedAt() time.Time            { return t.updatedAt }
