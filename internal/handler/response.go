// Package handler はHTTPハンドラーとルーティングを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/snoozies/dreamyhaven/internal/asset"
	"github.com/snoozies/dreamyhaven/internal/inquiry"
	"github.com/snoozies/dreamyhaven/internal/middleware"
	"github.com/snoozies/dreamyhaven/internal/model"
	"github.com/snoozies/dreamyhaven/internal/newsletter"
)

// maxJSONBodySize はJSONリクエストボディの上限（1MB）。
const maxJSONBodySize = 1 << 20

// writeJSON はステータスコードとJSONボディを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// decodeJSON はリクエストボディをJSONとして読み込む。
// 失敗した場合はINVALID_REQUESTを書き込みfalseを返す。
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return false
	}
	return true
}

// handleServiceError はサービス層のエラーを統一エラーレスポンスに変換する。
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, apiErr := classifyError(err)
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
	middleware.WriteErrorResponse(w, status, apiErr)
}

// classifyError はエラーをHTTPステータスとAPIErrorに分類する。
func classifyError(err error) (int, *model.APIError) {
	var (
		apiErr   *model.APIError
		fetchErr *model.FetchError
		valErr   *model.ValidationError
		fieldErr *inquiry.FieldError
	)
	switch {
	case errors.As(err, &apiErr):
		return mapAPIErrorToHTTPStatus(apiErr), apiErr
	case errors.As(err, &fetchErr):
		return http.StatusServiceUnavailable, model.NewStoreUnavailableError()
	case errors.As(err, &valErr):
		if valErr.Duplicate {
			return http.StatusConflict, model.NewSlugTakenError(valErr.Value)
		}
		return http.StatusUnprocessableEntity, model.NewInvalidStoryError(valErr.Reason)
	case errors.As(err, &fieldErr):
		return http.StatusBadRequest, model.NewInvalidFormError(fieldErr.Field, fieldErr.Reason)
	case errors.Is(err, newsletter.ErrInvalidEmail):
		return http.StatusBadRequest, model.NewInvalidFormError("email", "enter a valid email address")
	case errors.Is(err, newsletter.ErrSubscribeFailed):
		return http.StatusBadGateway, model.NewSubscribeFailedError()
	case errors.Is(err, asset.ErrUnknownBucket), errors.Is(err, asset.ErrContentType):
		return http.StatusBadRequest, model.NewInvalidUploadError(err.Error())
	default:
		return http.StatusInternalServerError, model.NewInternalError()
	}
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeStoryNotFound, model.ErrCodeSourceNotFound, model.ErrCodePostNotFound:
		return http.StatusNotFound
	case model.ErrCodeInvalidRequest, model.ErrCodeInvalidURL, model.ErrCodeInvalidForm, model.ErrCodeInvalidUpload:
		return http.StatusBadRequest
	case model.ErrCodeInvalidStory, model.ErrCodeFeedNotDetected:
		return http.StatusUnprocessableEntity
	case model.ErrCodeSlugTaken, model.ErrCodeDuplicateSource, model.ErrCodeSourceNotStopped:
		return http.StatusConflict
	case model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodeAdminOnly, model.ErrCodeSSRFBlocked, model.ErrCodeForbidden, model.ErrCodeCSRFInvalid:
		return http.StatusForbidden
	case model.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case model.ErrCodeFetchFailed, model.ErrCodeUploadFailed, model.ErrCodeSubscribeFailed:
		return http.StatusBadGateway
	case model.ErrCodeStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
