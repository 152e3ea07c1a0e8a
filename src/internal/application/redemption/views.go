package redemption

import (
	"time"

	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/coupon"
)

// CouponView 優惠券（Output DTO）
type CouponView struct {
	CouponID       string
	AccountID      string
	Code           string
	DiscountAmount string // 兩位小數
	PointsUsed     int
	ExpiresAt      time.Time
	Used           bool
	UsedAt         *time.Time
	ExternalStatus string
	ExternalRef    string
	ExternalError  string
	CreatedAt      time.Time
}

func newCouponView(c *coupon.Coupon) CouponView {
	return CouponView{
		CouponID:       c.CouponID().String(),
		AccountID:      c.AccountID().String(),
		Code:           c.Code(),
		DiscountAmount: c.DiscountAmount().StringFixed(2),
		PointsUsed:     c.PointsUsed(),
		ExpiresAt:      c.ExpiresAt(),
		Used:           c.IsUsed(),
		UsedAt:         c.UsedAt(),
		ExternalStatus: string(c.ExternalStatus()),
		ExternalRef:    c.ExternalRef(),
		ExternalError:  c.ExternalError(),
		CreatedAt:      c.CreatedAt(),
	}
}

// CouponPage 分頁的優惠券（新到舊）
type CouponPage struct {
	Items    []CouponView
	Total    int64
	Page     int
	PageSize int
}

func newCouponPage(items []*coupon.Coupon, total int64, page, pageSize int) *CouponPage {
	views := make([]CouponView, 0, len(items))
	for _, c := range items {
		views = append(views, newCouponView(c))
	}
	return &CouponPage{Items: views, Total: total, Page: page, PageSize: pageSize}
}
