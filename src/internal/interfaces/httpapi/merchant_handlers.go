package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	customerapp "github.com/jackyeh168/loyalty_ledger/src/internal/application/customer"
	"github.com/jackyeh168/loyalty_ledger/src/internal/application/ledger"
	merchantapp "github.com/jackyeh168/loyalty_ledger/src/internal/application/merchant"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/merchant"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/points"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/tier"
)

// ===========================
// 商家與設定
// ===========================

func (h *handler) merchantID(r *http.Request) merchant.MerchantID {
	p, _ := PrincipalFrom(r.Context())
	return p.MerchantID
}

func (h *handler) getMerchant(w http.ResponseWriter, r *http.Request) {
	view, err := h.deps.Merchants.GetMerchant(r.Context(), h.merchantID(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, fromMerchantView(view))
}

func (h *handler) getSettings(w http.ResponseWriter, r *http.Request) {
	view, err := h.deps.Merchants.GetMerchant(r.Context(), h.merchantID(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettingsDTO(view.Settings))
}

// updateSettings 部分更新：未提供的欄位保留目前值
func (h *handler) updateSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsDTO
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	mid := h.merchantID(r)
	current, err := h.deps.Merchants.GetMerchant(r.Context(), mid)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	view, err := h.deps.Merchants.UpdateSettings(r.Context(), merchantapp.UpdateSettingsCommand{
		MerchantID: mid,
		Settings:   req.mergeInto(current.Settings),
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettingsDTO(view.Settings))
}

// ===========================
// 等級
// ===========================

func (h *handler) listTiers(w http.ResponseWriter, r *http.Request) {
	views, err := h.deps.Merchants.ListTiers(r.Context(), h.merchantID(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	out := make([]tierResponse, 0, len(views))
	for _, v := range views {
		out = append(out, fromTierView(v))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": out})
}

func (h *handler) createTier(w http.ResponseWriter, r *http.Request) {
	var req tierRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	result, err := h.deps.Merchants.CreateTier(r.Context(), merchantapp.CreateTierCommand{
		MerchantID: h.merchantID(r),
		Definition: req.definition(),
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, fromTierChange(result))
}

func (h *handler) updateTier(w http.ResponseWriter, r *http.Request) {
	tierID, err := tier.TierIDFromString(chi.URLParam(r, "tierID"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req tierRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	result, err := h.deps.Merchants.UpdateTier(r.Context(), merchantapp.UpdateTierCommand{
		MerchantID: h.merchantID(r),
		TierID:     tierID,
		Definition: req.definition(),
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, fromTierChange(result))
}

func (h *handler) deleteTier(w http.ResponseWriter, r *http.Request) {
	tierID, err := tier.TierIDFromString(chi.URLParam(r, "tierID"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	result, err := h.deps.Merchants.DeleteTier(r.Context(), h.merchantID(r), tierID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, fromTierChange(result))
}

func (req tierRequest) definition() tier.Definition {
	return tier.Definition{
		Name:       req.Name,
		MinPoints:  req.MinPoints,
		Multiplier: req.Multiplier,
		SortOrder:  req.SortOrder,
		Benefits:   req.Benefits,
		Color:      req.Color,
	}
}

// ===========================
// 帳戶
// ===========================

// ownedAccount 解析路徑中的帳戶 ID，並確認屬於呼叫的商家
//
// 其他商家的帳戶一律回報為不存在
func (h *handler) ownedAccount(w http.ResponseWriter, r *http.Request) (*ledger.BalanceResult, bool) {
	accountID, err := points.AccountIDFromString(chi.URLParam(r, "accountID"))
	if err != nil {
		writeError(w, h.logger, err)
		return nil, false
	}
	balance, err := h.deps.Engine.GetBalance(r.Context(), accountID)
	if err != nil {
		writeError(w, h.logger, err)
		return nil, false
	}
	if balance.MerchantID != h.merchantID(r).String() {
		writeError(w, h.logger, points.ErrAccountNotFound.WithContext("account_id", accountID.String()))
		return nil, false
	}
	return balance, true
}

func (h *handler) listAccounts(w http.ResponseWriter, r *http.Request) {
	page, size := pageParams(r)
	balances, total, err := h.deps.Engine.ListAccounts(r.Context(), h.merchantID(r), page, size)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	items := make([]balanceResponse, 0, len(balances))
	for _, b := range balances {
		items = append(items, fromBalance(b))
	}
	writeJSON(w, http.StatusOK, pageResponse[balanceResponse]{Items: items, Total: total, Page: page, PageSize: size})
}

func (h *handler) findAccountByCustomer(w http.ResponseWriter, r *http.Request) {
	balance, err := h.deps.Engine.FindAccount(r.Context(), h.merchantID(r), chi.URLParam(r, "customerRef"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, fromBalance(*balance))
}

func (h *handler) getAccount(w http.ResponseWriter, r *http.Request) {
	balance, ok := h.ownedAccount(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, fromBalanceResult(balance))
}

func (h *handler) accountTransactions(w http.ResponseWriter, r *http.Request) {
	balance, ok := h.ownedAccount(w, r)
	if !ok {
		return
	}
	h.writeTransactions(w, r, balance.AccountID)
}

func (h *handler) accountCoupons(w http.ResponseWriter, r *http.Request) {
	balance, ok := h.ownedAccount(w, r)
	if !ok {
		return
	}
	h.writeAccountCoupons(w, r, balance.AccountID)
}

// addPoints 商家手動加點（EARN_BONUS，不過期）
func (h *handler) addPoints(w http.ResponseWriter, r *http.Request) {
	balance, ok := h.ownedAccount(w, r)
	if !ok {
		return
	}
	var req pointsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	accountID, _ := points.AccountIDFromString(balance.AccountID)

	result, err := h.deps.Engine.Earn(r.Context(), ledger.EarnCommand{
		AccountID:   accountID,
		Kind:        points.KindEarnBonus,
		Amount:      req.Points,
		Description: descriptionOr(req.Description, "Manual bonus"),
		Correlation: manualCorrelation(req.Reference),
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, statusForWrite(result), fromTransactionResult(result))
}

// deductPoints 商家手動扣點（DEDUCT_MANUAL）
func (h *handler) deductPoints(w http.ResponseWriter, r *http.Request) {
	balance, ok := h.ownedAccount(w, r)
	if !ok {
		return
	}
	var req pointsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	accountID, _ := points.AccountIDFromString(balance.AccountID)

	result, err := h.deps.Engine.Deduct(r.Context(), ledger.DeductCommand{
		AccountID:   accountID,
		Kind:        points.KindDeductManual,
		Amount:      req.Points,
		Description: descriptionOr(req.Description, "Manual deduction"),
		Correlation: manualCorrelation(req.Reference),
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, statusForWrite(result), fromTransactionResult(result))
}

func (h *handler) recomputeTier(w http.ResponseWriter, r *http.Request) {
	balance, ok := h.ownedAccount(w, r)
	if !ok {
		return
	}
	accountID, _ := points.AccountIDFromString(balance.AccountID)
	result, err := h.deps.Engine.RecomputeTier(r.Context(), accountID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"account_id":       result.AccountID,
		"previous_tier_id": result.PreviousTierID,
		"tier_id":          result.TierID,
		"changed":          result.Changed,
	})
}

func (h *handler) verifyAccount(w http.ResponseWriter, r *http.Request) {
	balance, ok := h.ownedAccount(w, r)
	if !ok {
		return
	}
	accountID, _ := points.AccountIDFromString(balance.AccountID)
	report, err := h.deps.Engine.VerifyAccount(r.Context(), accountID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, verificationResponse{
		AccountID:         report.Stored.AccountID,
		Consistent:        report.Consistent(),
		BalanceConsistent: report.BalanceConsistent,
		TierConsistent:    report.TierConsistent,
		StoredTotal:       report.Stored.TotalPoints,
		StoredUsed:        report.Stored.UsedPoints,
		ReplayedTotal:     report.ReplayedTotal,
		ReplayedUsed:      report.ReplayedUsed,
		ExpectedTierID:    report.ExpectedTierID,
	})
}

// ===========================
// 顧客、優惠券、過期
// ===========================

func (h *handler) getCustomer(w http.ResponseWriter, r *http.Request) {
	view, err := h.deps.Customers.Execute(r.Context(), customerapp.GetCustomerQuery{
		MerchantID: h.merchantID(r),
		ExternalID: chi.URLParam(r, "externalID"),
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"customer_id": view.CustomerID,
		"external_id": view.ExternalID,
		"name":        view.Name,
		"email":       view.Email,
		"phone":       view.Phone,
	})
}

func (h *handler) listCoupons(w http.ResponseWriter, r *http.Request) {
	page, size := pageParams(r)
	result, err := h.deps.Redemption.ListCoupons(r.Context(), h.merchantID(r), page, size)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, fromCouponPage(result))
}

func (h *handler) useCoupon(w http.ResponseWriter, r *http.Request) {
	view, err := h.deps.Redemption.MarkCouponUsed(r.Context(), h.merchantID(r), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, fromCoupon(*view))
}

func (h *handler) runSweep(w http.ResponseWriter, r *http.Request) {
	if h.deps.Sweeper == nil {
		writeStatus(w, http.StatusServiceUnavailable, "SWEEP_DISABLED")
		return
	}
	report, err := h.deps.Sweeper.RunOnce(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, fromSweepReport(report))
}

// ===========================
// 共用
// ===========================

func (h *handler) writeTransactions(w http.ResponseWriter, r *http.Request, accountID string) {
	id, err := points.AccountIDFromString(accountID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	page, size := pageParams(r)
	result, err := h.deps.Engine.ListTransactions(r.Context(), id, page, size)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, fromTransactionPage(result))
}

func (h *handler) writeAccountCoupons(w http.ResponseWriter, r *http.Request, accountID string) {
	id, err := points.AccountIDFromString(accountID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	page, size := pageParams(r)
	result, err := h.deps.Redemption.ListAccountCoupons(r.Context(), id, page, size)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, fromCouponPage(result))
}

// statusForWrite 重複請求返回 200，新寫入返回 201
func statusForWrite(result *ledger.TransactionResult) int {
	if result.Duplicate {
		return http.StatusOK
	}
	return http.StatusCreated
}

func descriptionOr(description, fallback string) string {
	if description == "" {
		return fallback
	}
	return description
}

// manualCorrelation 手動操作的冪等參照加上前綴，避免與訂單事件衝突
func manualCorrelation(reference string) string {
	if reference == "" {
		return ""
	}
	return "manual:" + reference
}

// ===========================
// 交易與統計
// ===========================

// merchantTransactions 商家所有帳戶的交易；可依 account_id 與 kind 篩選
func (h *handler) merchantTransactions(w http.ResponseWriter, r *http.Request) {
	page, size := pageParams(r)
	q := ledger.MerchantTransactionsQuery{
		MerchantID: h.merchantID(r),
		Kind:       r.URL.Query().Get("kind"),
		Page:       page,
		PageSize:   size,
	}
	if raw := r.URL.Query().Get("account_id"); raw != "" {
		accountID, err := points.AccountIDFromString(raw)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		q.AccountID = accountID
	}

	result, err := h.deps.Engine.ListMerchantTransactions(r.Context(), q)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, fromTransactionPage(result))
}

func (h *handler) merchantStats(w http.ResponseWriter, r *http.Request) {
	view, err := h.deps.Stats.Stats(r.Context(), h.merchantID(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, fromStatsView(view))
}

// topCustomers ?limit= 預設 10，上限與分頁相同
func (h *handler) topCustomers(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	balances, err := h.deps.Stats.TopCustomers(r.Context(), h.merchantID(r), limit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	items := make([]balanceResponse, 0, len(balances))
	for _, b := range balances {
		items = append(items, fromBalance(b))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}
