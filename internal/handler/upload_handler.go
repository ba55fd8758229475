package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/snoozies/dreamyhaven/internal/asset"
	"github.com/snoozies/dreamyhaven/internal/middleware"
	"github.com/snoozies/dreamyhaven/internal/model"
)

// uploadFormField はmultipartフォームのファイルフィールド名。
const uploadFormField = "file"

// AssetUploader はアップロードハンドラーが必要とするインターフェース。asset.Uploaderが満たす。
type AssetUploader interface {
	Upload(ctx context.Context, bucket, filename, contentType string, r io.Reader) (string, error)
}

// UploadHandler はサムネイル画像と朗読音声のアップロードを扱う。
type UploadHandler struct {
	uploader AssetUploader
	maxSize  int64
}

// NewUploadHandler はUploadHandlerを生成する。maxSizeはファイルサイズの上限（バイト）。
func NewUploadHandler(uploader AssetUploader, maxSize int64) *UploadHandler {
	return &UploadHandler{uploader: uploader, maxSize: maxSize}
}

// Upload はmultipartで受け取ったファイルをバケットに保存し、公開URLを返す。
// POST /api/admin/uploads/{bucket}
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	bucket := chi.URLParam(r, "bucket")

	// multipartの境界やヘッダー分の余裕を持たせる
	r.Body = http.MaxBytesReader(w, r.Body, h.maxSize+1<<20)
	if err := r.ParseMultipartForm(h.maxSize); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			middleware.WriteErrorResponse(w, http.StatusRequestEntityTooLarge, model.NewInvalidUploadError("the file is too large"))
			return
		}
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidUploadError("expected a multipart form"))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile(uploadFormField)
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidUploadError("the form has no file field"))
		return
	}
	defer file.Close()

	if header.Size > h.maxSize {
		middleware.WriteErrorResponse(w, http.StatusRequestEntityTooLarge, model.NewInvalidUploadError("the file is too large"))
		return
	}

	contentType := header.Header.Get("Content-Type")
	publicURL, err := h.uploader.Upload(r.Context(), bucket, header.Filename, contentType, file)
	if err != nil {
		if errors.Is(err, asset.ErrUnknownBucket) || errors.Is(err, asset.ErrContentType) {
			handleServiceError(w, r, err)
			return
		}
		slog.ErrorContext(r.Context(), "asset upload failed",
			slog.String("bucket", bucket),
			slog.String("error", err.Error()),
		)
		middleware.WriteErrorResponse(w, http.StatusBadGateway, model.NewUploadFailedError())
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"url": publicURL})
}
