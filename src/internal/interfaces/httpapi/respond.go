package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/jackyeh168/loyalty_ledger/src/internal/application/ledger"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/shared"
)

const maxBodyBytes = 1 << 20

// errorBody 錯誤回應格式
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// statusByCode 領域錯誤代碼 → HTTP 狀態碼；未列出的代碼為 400
var statusByCode = map[shared.ErrorCode]int{
	"MERCHANT_NOT_FOUND":           http.StatusNotFound,
	"ACCOUNT_NOT_FOUND":            http.StatusNotFound,
	"ACCOUNT_MERCHANT_MISMATCH":    http.StatusNotFound,
	"LEDGER_TRANSACTION_NOT_FOUND": http.StatusNotFound,
	"TIER_NOT_FOUND":               http.StatusNotFound,
	"COUPON_NOT_FOUND":             http.StatusNotFound,
	"CUSTOMER_NOT_FOUND":           http.StatusNotFound,

	"MERCHANT_ALREADY_EXISTS":         http.StatusConflict,
	"ACCOUNT_ALREADY_EXISTS":          http.StatusConflict,
	"CUSTOMER_ALREADY_EXISTS":         http.StatusConflict,
	"TIER_DUPLICATE_THRESHOLD":        http.StatusConflict,
	"COUPON_ALREADY_USED":             http.StatusConflict,
	"ACCOUNT_CONCURRENT_MODIFICATION": http.StatusConflict,
	"LEDGER_DUPLICATE_EVENT":          http.StatusConflict,
	"LEDGER_ALREADY_SWEPT":            http.StatusConflict,

	"POINTS_INSUFFICIENT":      http.StatusUnprocessableEntity,
	"REDEMPTION_BELOW_MINIMUM": http.StatusUnprocessableEntity,
	"REDEMPTION_ABOVE_MAXIMUM": http.StatusUnprocessableEntity,
	"COUPON_EXPIRED":           http.StatusUnprocessableEntity,
	"MERCHANT_INACTIVE":        http.StatusUnprocessableEntity,
	"POINTS_OVERFLOW":          http.StatusUnprocessableEntity,

	"ACCOUNT_INVARIANT_VIOLATION":  http.StatusInternalServerError,
	"LEDGER_CORRUPTED_TRANSACTION": http.StatusInternalServerError,
}

// StatusFor 返回錯誤對應的 HTTP 狀態碼
func StatusFor(err error) int {
	domainErr, ok := shared.AsDomainError(err)
	if !ok {
		return http.StatusInternalServerError
	}
	if status, ok := statusByCode[domainErr.Code]; ok {
		return status
	}
	return http.StatusBadRequest
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError 領域錯誤回傳代碼與訊息；其他錯誤只回傳通用訊息並記錄
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status := StatusFor(err)
	if domainErr, ok := shared.AsDomainError(err); ok && status < http.StatusInternalServerError {
		writeJSON(w, status, errorBody{Error: errorDetail{
			Code:    string(domainErr.Code),
			Message: domainErr.Message,
			Context: domainErr.Context,
		}})
		return
	}

	logger.Error("request failed", "error", err)
	writeJSON(w, http.StatusInternalServerError, errorBody{Error: errorDetail{
		Code:    "INTERNAL",
		Message: http.StatusText(http.StatusInternalServerError),
	}})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: errorDetail{Code: "BAD_REQUEST", Message: message}})
}

func writeStatus(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: http.StatusText(status)}})
}

// decodeJSON 解析請求內容；拒絕未知欄位與多個 JSON 值
func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

// pageParams 解析 ?page=&page_size=；與 Service 相同的預設值與上限
func pageParams(r *http.Request) (int, int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	size, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	return ledger.NormalizePage(page, size)
}
