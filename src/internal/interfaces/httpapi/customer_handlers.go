package httpapi

import (
	"net/http"

	"github.com/jackyeh168/loyalty_ledger/src/internal/application/redemption"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/merchant"
)

// ===========================
// 顧客端 /api/me
// ===========================

func (h *handler) myBalance(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())
	balance, err := h.deps.Engine.GetBalance(r.Context(), p.AccountID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, fromBalanceResult(balance))
}

func (h *handler) myTransactions(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())
	h.writeTransactions(w, r, p.AccountID.String())
}

func (h *handler) myCoupons(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())
	h.writeAccountCoupons(w, r, p.AccountID.String())
}

// redeem 顧客以積分兌換優惠券；商家取自帳戶本身
func (h *handler) redeem(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())
	var req redeemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	balance, err := h.deps.Engine.GetBalance(r.Context(), p.AccountID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	merchantID, err := merchant.MerchantIDFromString(balance.MerchantID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	result, err := h.deps.Redemption.Redeem(r.Context(), redemption.RedeemCommand{
		MerchantID: merchantID,
		AccountID:  p.AccountID,
		Points:     req.Points,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, redeemResponse{
		Coupon:  fromCoupon(result.Coupon),
		Balance: fromBalance(result.Balance),
		Warning: result.Warning,
	})
}
