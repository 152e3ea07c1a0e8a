package httpapi

import (
	"time"

	"github.com/jackyeh168/loyalty_ledger/src/internal/application/expiry"
	"github.com/jackyeh168/loyalty_ledger/src/internal/application/ledger"
	merchantapp "github.com/jackyeh168/loyalty_ledger/src/internal/application/merchant"
	"github.com/jackyeh168/loyalty_ledger/src/internal/application/redemption"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/merchant"
	"github.com/shopspring/decimal"
)

// ===========================
// Response DTO
// ===========================

type tierResponse struct {
	TierID     string `json:"tier_id"`
	Name       string `json:"name"`
	MinPoints  int    `json:"min_points"`
	Multiplier string `json:"multiplier"`
	SortOrder  int    `json:"sort_order"`
	Benefits   string `json:"benefits,omitempty"`
	Color      string `json:"color,omitempty"`
}

func fromTierView(v merchantapp.TierView) tierResponse {
	return tierResponse{
		TierID:     v.TierID,
		Name:       v.Name,
		MinPoints:  v.MinPoints,
		Multiplier: v.Multiplier,
		SortOrder:  v.SortOrder,
		Benefits:   v.Benefits,
		Color:      v.Color,
	}
}

func fromLedgerTier(v *ledger.TierView) *tierResponse {
	if v == nil {
		return nil
	}
	return &tierResponse{
		TierID:     v.TierID,
		Name:       v.Name,
		MinPoints:  v.MinPoints,
		Multiplier: v.Multiplier,
		Benefits:   v.Benefits,
		Color:      v.Color,
	}
}

type balanceResponse struct {
	AccountID        string        `json:"account_id"`
	CustomerRef      string        `json:"customer_ref"`
	ReferralCode     string        `json:"referral_code"`
	TotalPoints      int           `json:"total_points"`
	UsedPoints       int           `json:"used_points"`
	CurrentPoints    int           `json:"current_points"`
	Tier             *tierResponse `json:"tier"`
	NextTier         *tierResponse `json:"next_tier,omitempty"`
	PointsToNextTier int           `json:"points_to_next_tier,omitempty"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

func fromBalance(b ledger.Balance) balanceResponse {
	return balanceResponse{
		AccountID:     b.AccountID,
		CustomerRef:   b.CustomerRef,
		ReferralCode:  b.ReferralCode,
		TotalPoints:   b.TotalPoints,
		UsedPoints:    b.UsedPoints,
		CurrentPoints: b.CurrentPoints,
		UpdatedAt:     b.UpdatedAt,
	}
}

func fromBalanceResult(b *ledger.BalanceResult) balanceResponse {
	out := fromBalance(b.Balance)
	out.Tier = fromLedgerTier(b.Tier)
	out.NextTier = fromLedgerTier(b.NextTier)
	out.PointsToNextTier = b.PointsToNextTier
	return out
}

type transactionResponse struct {
	TransactionID string     `json:"transaction_id"`
	AccountID     string     `json:"account_id"`
	Kind          string     `json:"kind"`
	Amount        int        `json:"amount"`
	Description   string     `json:"description"`
	Correlation   string     `json:"correlation,omitempty"`
	OrderAmount   *string    `json:"order_amount,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	SweptAt       *time.Time `json:"swept_at,omitempty"`
	ExpiredPoints int        `json:"expired_points,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func fromTransaction(v ledger.TransactionView) transactionResponse {
	out := transactionResponse{
		TransactionID: v.TransactionID,
		AccountID:     v.AccountID,
		Kind:          v.Kind,
		Amount:        v.Amount,
		Description:   v.Description,
		Correlation:   v.Correlation,
		ExpiresAt:     v.ExpiresAt,
		SweptAt:       v.SweptAt,
		ExpiredPoints: v.ExpiredPoints,
		CreatedAt:     v.CreatedAt,
	}
	if v.OrderAmount != nil {
		s := v.OrderAmount.StringFixed(2)
		out.OrderAmount = &s
	}
	return out
}

type pageResponse[T any] struct {
	Items    []T   `json:"items"`
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
}

func fromTransactionPage(p *ledger.TransactionPage) pageResponse[transactionResponse] {
	items := make([]transactionResponse, 0, len(p.Items))
	for _, v := range p.Items {
		items = append(items, fromTransaction(v))
	}
	return pageResponse[transactionResponse]{Items: items, Total: p.Total, Page: p.Page, PageSize: p.PageSize}
}

// ledgerWriteResponse 手動加減點的結果
type ledgerWriteResponse struct {
	Transaction transactionResponse `json:"transaction"`
	Balance     balanceResponse     `json:"balance"`
	Duplicate   bool                `json:"duplicate"`
}

func fromTransactionResult(r *ledger.TransactionResult) ledgerWriteResponse {
	return ledgerWriteResponse{
		Transaction: fromTransaction(r.Transaction),
		Balance:     fromBalance(r.Balance),
		Duplicate:   r.Duplicate,
	}
}

type couponResponse struct {
	CouponID       string     `json:"coupon_id"`
	AccountID      string     `json:"account_id"`
	Code           string     `json:"code"`
	DiscountAmount string     `json:"discount_amount"`
	PointsUsed     int        `json:"points_used"`
	ExpiresAt      time.Time  `json:"expires_at"`
	Used           bool       `json:"used"`
	UsedAt         *time.Time `json:"used_at,omitempty"`
	ExternalStatus string     `json:"external_status"`
	ExternalRef    string     `json:"external_ref,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

func fromCoupon(v redemption.CouponView) couponResponse {
	return couponResponse{
		CouponID:       v.CouponID,
		AccountID:      v.AccountID,
		Code:           v.Code,
		DiscountAmount: v.DiscountAmount,
		PointsUsed:     v.PointsUsed,
		ExpiresAt:      v.ExpiresAt,
		Used:           v.Used,
		UsedAt:         v.UsedAt,
		ExternalStatus: v.ExternalStatus,
		ExternalRef:    v.ExternalRef,
		CreatedAt:      v.CreatedAt,
	}
}

func fromCouponPage(p *redemption.CouponPage) pageResponse[couponResponse] {
	items := make([]couponResponse, 0, len(p.Items))
	for _, v := range p.Items {
		items = append(items, fromCoupon(v))
	}
	return pageResponse[couponResponse]{Items: items, Total: p.Total, Page: p.Page, PageSize: p.PageSize}
}

type redeemResponse struct {
	Coupon  couponResponse  `json:"coupon"`
	Balance balanceResponse `json:"balance"`
	Warning string          `json:"warning,omitempty"`
}

type recomputeResponse struct {
	Scanned int `json:"scanned"`
	Changed int `json:"changed"`
	Failed  int `json:"failed"`
}

type tierChangeResponse struct {
	Tier      *tierResponse      `json:"tier,omitempty"`
	Recompute *recomputeResponse `json:"recompute,omitempty"`
}

func fromTierChange(r *merchantapp.TierChangeResult) tierChangeResponse {
	var out tierChangeResponse
	if r.Tier != nil {
		t := fromTierView(*r.Tier)
		out.Tier = &t
	}
	if r.Recompute != nil {
		out.Recompute = &recomputeResponse{
			Scanned: r.Recompute.Scanned,
			Changed: r.Recompute.Changed,
			Failed:  r.Recompute.Failed,
		}
	}
	return out
}

type verificationResponse struct {
	AccountID         string `json:"account_id"`
	Consistent        bool   `json:"consistent"`
	BalanceConsistent bool   `json:"balance_consistent"`
	TierConsistent    bool   `json:"tier_consistent"`
	StoredTotal       int    `json:"stored_total"`
	StoredUsed        int    `json:"stored_used"`
	ReplayedTotal     int    `json:"replayed_total"`
	ReplayedUsed      int    `json:"replayed_used"`
	ExpectedTierID    string `json:"expected_tier_id"`
}

type sweepResponse struct {
	Scanned       int      `json:"scanned"`
	Expired       int      `json:"expired"`
	MarkedOnly    int      `json:"marked_only"`
	Skipped       int      `json:"skipped"`
	Failed        int      `json:"failed"`
	PointsExpired int      `json:"points_expired"`
	DurationMS    int64    `json:"duration_ms"`
	Errors        []string `json:"errors,omitempty"`
}

func fromSweepReport(r *expiry.Report) sweepResponse {
	return sweepResponse{
		Scanned:       r.Scanned,
		Expired:       r.Expired,
		MarkedOnly:    r.MarkedOnly,
		Skipped:       r.Skipped,
		Failed:        r.Failed,
		PointsExpired: r.PointsExpired,
		DurationMS:    r.Duration.Milliseconds(),
		Errors:        r.Errors,
	}
}

// ===========================
// Settings
// ===========================

// settingsDTO 商家設定的 JSON 表示；PUT 時只覆寫有提供的欄位
type settingsDTO struct {
	Enabled               *bool            `json:"enabled,omitempty"`
	ProgramName           *string          `json:"program_name,omitempty"`
	PointsPerCurrencyUnit *decimal.Decimal `json:"points_per_currency_unit,omitempty"`
	MinOrderAmount        *decimal.Decimal `json:"min_order_amount,omitempty"`
	PointsExpiryDays      *int             `json:"points_expiry_days,omitempty"`
	PointsPerDiscountUnit *int             `json:"points_per_discount_unit,omitempty"`
	MinRedeemPoints       *int             `json:"min_redeem_points,omitempty"`
	MaxRedeemPoints       *int             `json:"max_redeem_points,omitempty"`
	CouponValidityDays    *int             `json:"coupon_validity_days,omitempty"`
	SignupBonus           *int             `json:"signup_bonus,omitempty"`
	ReferralBonus         *int             `json:"referral_bonus,omitempty"`
	ReferredBonus         *int             `json:"referred_bonus,omitempty"`
}

func toSettingsDTO(s merchant.LoyaltySettings) settingsDTO {
	return settingsDTO{
		Enabled:               &s.Enabled,
		ProgramName:           &s.ProgramName,
		PointsPerCurrencyUnit: &s.PointsPerCurrencyUnit,
		MinOrderAmount:        &s.MinOrderAmount,
		PointsExpiryDays:      &s.PointsExpiryDays,
		PointsPerDiscountUnit: &s.PointsPerDiscountUnit,
		MinRedeemPoints:       &s.MinRedeemPoints,
		MaxRedeemPoints:       &s.MaxRedeemPoints,
		CouponValidityDays:    &s.CouponValidityDays,
		SignupBonus:           &s.SignupBonus,
		ReferralBonus:         &s.ReferralBonus,
		ReferredBonus:         &s.ReferredBonus,
	}
}

// mergeInto 以提供的欄位覆寫目前設定
func (d settingsDTO) mergeInto(s merchant.LoyaltySettings) merchant.LoyaltySettings {
	if d.Enabled != nil {
		s.Enabled = *d.Enabled
	}
	if d.ProgramName != nil {
		s.ProgramName = *d.ProgramName
	}
	if d.PointsPerCurrencyUnit != nil {
		s.PointsPerCurrencyUnit = *d.PointsPerCurrencyUnit
	}
	if d.MinOrderAmount != nil {
		s.MinOrderAmount = *d.MinOrderAmount
	}
	if d.PointsExpiryDays != nil {
		s.PointsExpiryDays = *d.PointsExpiryDays
	}
	if d.PointsPerDiscountUnit != nil {
		s.PointsPerDiscountUnit = *d.PointsPerDiscountUnit
	}
	if d.MinRedeemPoints != nil {
		s.MinRedeemPoints = *d.MinRedeemPoints
	}
	if d.MaxRedeemPoints != nil {
		s.MaxRedeemPoints = *d.MaxRedeemPoints
	}
	if d.CouponValidityDays != nil {
		s.CouponValidityDays = *d.CouponValidityDays
	}
	if d.SignupBonus != nil {
		s.SignupBonus = *d.SignupBonus
	}
	if d.ReferralBonus != nil {
		s.ReferralBonus = *d.ReferralBonus
	}
	if d.ReferredBonus != nil {
		s.ReferredBonus = *d.ReferredBonus
	}
	return s
}

type merchantResponse struct {
	MerchantID      string      `json:"merchant_id"`
	ExternalStoreID string      `json:"external_store_id"`
	StoreName       string      `json:"store_name"`
	Active          bool        `json:"active"`
	ProgramEnabled  bool        `json:"program_enabled"`
	HasAccessToken  bool        `json:"has_access_token"`
	Settings        settingsDTO `json:"settings"`
}

func fromMerchantView(v *merchantapp.MerchantView) merchantResponse {
	return merchantResponse{
		MerchantID:      v.MerchantID,
		ExternalStoreID: v.ExternalStoreID,
		StoreName:       v.StoreName,
		Active:          v.Active,
		ProgramEnabled:  v.ProgramEnabled,
		HasAccessToken:  v.HasAccessToken,
		Settings:        toSettingsDTO(v.Settings),
	}
}

// ===========================
// Request DTO
// ===========================

type pointsRequest struct {
	Points      int    `json:"points"`
	Description string `json:"description"`
	Reference   string `json:"reference"` // 冪等參照（可選）
}

type tierRequest struct {
	Name       string          `json:"name"`
	MinPoints  int             `json:"min_points"`
	Multiplier decimal.Decimal `json:"multiplier"`
	SortOrder  int             `json:"sort_order"`
	Benefits   string          `json:"benefits"`
	Color      string          `json:"color"`
}

type redeemRequest struct {
	Points int `json:"points"`
}

// statsResponse 商家總覽
type statsResponse struct {
	TotalCustomers      int64                 `json:"total_customers"`
	TotalPointsIssued   int                   `json:"total_points_issued"`
	TotalPointsRedeemed int                   `json:"total_points_redeemed"`
	TotalCoupons        int64                 `json:"total_coupons"`
	ActiveCoupons       int64                 `json:"active_coupons"`
	RecentTransactions  []transactionResponse `json:"recent_transactions"`
	CustomersByTier     []tierCountResponse   `json:"customers_by_tier"`
	MonthlyPoints       []monthlyResponse     `json:"monthly_points"`
}

type tierCountResponse struct {
	TierID string `json:"tier_id,omitempty"`
	Name   string `json:"name"`
	Color  string `json:"color,omitempty"`
	Count  int64  `json:"count"`
}

type monthlyResponse struct {
	Month    string `json:"month"`
	Earned   int    `json:"earned"`
	Redeemed int    `json:"redeemed"`
}

func fromStatsView(v *merchantapp.StatsView) statsResponse {
	out := statsResponse{
		TotalCustomers:      v.TotalCustomers,
		TotalPointsIssued:   v.TotalPointsIssued,
		TotalPointsRedeemed: v.TotalPointsRedeemed,
		TotalCoupons:        v.TotalCoupons,
		ActiveCoupons:       v.ActiveCoupons,
		RecentTransactions:  make([]transactionResponse, 0, len(v.RecentTransactions)),
		CustomersByTier:     make([]tierCountResponse, 0, len(v.CustomersByTier)),
		MonthlyPoints:       make([]monthlyResponse, 0, len(v.Monthly)),
	}
	for _, tx := range v.RecentTransactions {
		out.RecentTransactions = append(out.RecentTransactions, fromTransaction(tx))
	}
	for _, c := range v.CustomersByTier {
		name := c.Name
		if c.TierID == "" {
			name = "No tier"
		}
		out.CustomersByTier = append(out.CustomersByTier, tierCountResponse{TierID: c.TierID, Name: name, Color: c.Color, Count: c.Count})
	}
	for _, m := range v.Monthly {
		out.MonthlyPoints = append(out.MonthlyPoints, monthlyResponse{Month: m.Month, Earned: m.Earned, Redeemed: m.Redeemed})
	}
	return out
}
