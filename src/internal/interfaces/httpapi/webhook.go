package httpapi

import (
	"errors"
	"io"
	"net/http"

	"github.com/jackyeh168/loyalty_ledger/src/internal/infrastructure/salla"
)

type webhookResponse struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
	Points int    `json:"points,omitempty"`
}

// sallaWebhook 接收 Salla 事件
//
// 回應碼：
// - 401: 簽章缺少或不符
// - 400: 內容無法解析
// - 500: 基礎設施錯誤，平台會重送（帳本冪等）
// - 200: 已處理、忽略，或被業務規則拒絕
func (h *handler) sallaWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeBadRequest(w, "unable to read body")
		return
	}

	if h.deps.WebhookSecret != "" {
		if err := salla.VerifySignature(h.deps.WebhookSecret, body, r.Header.Get(salla.SignatureHeader)); err != nil {
			h.logger.Warn("webhook signature rejected", "error", err, "remote", r.RemoteAddr)
			writeStatus(w, http.StatusUnauthorized, "INVALID_SIGNATURE")
			return
		}
	} else if !h.deps.AllowUnsigned {
		h.logger.Error("webhook secret not configured")
		writeStatus(w, http.StatusServiceUnavailable, "WEBHOOK_DISABLED")
		return
	}

	evt, err := salla.ParseEvent(body)
	if err != nil {
		if errors.Is(err, salla.ErrMalformedPayload) {
			writeBadRequest(w, err.Error())
			return
		}
		writeError(w, h.logger, err)
		return
	}

	outcome, err := h.deps.Commerce.Handle(r.Context(), evt)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, webhookResponse{
		Status: outcome.Status,
		Reason: outcome.Reason,
		Points: outcome.Points,
	})
}
