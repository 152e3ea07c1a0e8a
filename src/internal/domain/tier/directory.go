package tier

import (
	"sort"

	"github.com/shopspring/decimal"
)

// ===========================
// Directory 等級目錄
// ===========================

// Directory 某商家等級門檻的唯讀快照
//
// 排序：minPoints 升序；門檻相同時 sortOrder 較大者在後，再以建立時間在後者為後。
// 分類取「最後一個 minPoints <= totalPoints 的等級」，因此相同門檻時後定義者勝出。
//
// 快照建立後不可變，可被多個 goroutine 共享。
type Directory struct {
	tiers []*Tier
}

// NewDirectory 由等級列表建立目錄（不修改傳入的 slice）
func NewDirectory(tiers []*Tier) *Directory {
	sorted := make([]*Tier, len(tiers))
	copy(sorted, tiers)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.MinPoints() != b.MinPoints() {
			return a.MinPoints() < b.MinPoints()
		}
		if a.SortOrder() != b.SortOrder() {
			return a.SortOrder() < b.SortOrder()
		}
		return a.CreatedAt().Before(b.CreatedAt())
	})
	return &Directory{tiers: sorted}
}

// EmptyDirectory 沒有任何等級的目錄
func EmptyDirectory() *Directory {
	return &Directory{}
}

// Classify 返回 totalPoints 對應的等級；沒有符合的等級時 ok = false
func (d *Directory) Classify(totalPoints int) (id TierID, ok bool) {
	if d == nil {
		return TierID{}, false
	}
	for i := len(d.tiers) - 1; i >= 0; i-- {
		if d.tiers[i].MinPoints() <= totalPoints {
			return d.tiers[i].TierID(), true
		}
	}
	return TierID{}, false
}

// MultiplierFor 返回等級的積分倍數；無等級或等級已刪除時為 1
func (d *Directory) MultiplierFor(id TierID) decimal.Decimal {
	if t, ok := d.Find(id); ok {
		return t.Multiplier()
	}
	return decimal.NewFromInt(1)
}

// Find 依 ID 查找等級
func (d *Directory) Find(id TierID) (*Tier, bool) {
	if d == nil || id.IsEmpty() {
		return nil, false
	}
	for _, t := range d.tiers {
		if t.TierID().Equals(id) {
			return t, true
		}
	}
	return nil, false
}

// CheckThreshold 檢查 minPoints 是否與其他等級重複（修改時排除自身）
func (d *Directory) CheckThreshold(minPoints int, self TierID) error {
	if d == nil {
		return nil
	}
	for _, t := range d.tiers {
		if !self.IsEmpty() && t.TierID().Equals(self) {
			continue
		}
		if t.MinPoints() == minPoints {
			return ErrDuplicateThreshold.WithContext(
				"min_points", minPoints,
				"existing_tier", t.Name(),
			)
		}
	}
	return nil
}

// Tiers 返回排序後的等級副本
func (d *Directory) Tiers() []*Tier {
	if d == nil {
		return nil
	}
	out := make([]*Tier, len(d.tiers))
	copy(out, d.tiers)
	return out
}

// Len 等級數量
func (d *Directory) Len() int {
	if d == nil {
		return 0
	}
	return len(d.tiers)
}
