package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/snoozies/dreamyhaven/internal/model"
)

// storeRetryAfter はストア障害(503)時にクライアントへ提示する再試行までの秒数。
const storeRetryAfter = "30"

// ErrorResponseBody は公開APIと管理APIで共通のエラーJSON。
type ErrorResponseBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

func newErrorResponseBody(apiErr *model.APIError) ErrorResponseBody {
	if apiErr == nil {
		apiErr = model.NewInternalError()
	}
	return ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	}
}

// WriteErrorResponse はエラーJSONを書き込む。エラー応答はキャッシュさせない。
// ストアが一時的に使えない503には Retry-After を付ける。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	h := w.Header()
	h.Set("Content-Type", "application/json")
	h.Set("Cache-Control", "no-store")
	if statusCode == http.StatusServiceUnavailable && h.Get("Retry-After") == "" {
		h.Set("Retry-After", storeRetryAfter)
	}
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(newErrorResponseBody(apiErr))
}

// WriteInternalServerError は詳細を伏せた500を返す。原因はログにだけ残す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, model.NewInternalError())
}
