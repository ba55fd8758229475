package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/snoozies/dreamyhaven/internal/middleware"
	"github.com/snoozies/dreamyhaven/internal/model"
)

// SourceService はインポート元管理ハンドラーが必要とするサービスインターフェース。
type SourceService interface {
	Register(ctx context.Context, inputURL string, defaultTags []string) (*model.ImportSource, error)
	List(ctx context.Context) ([]*model.ImportSource, error)
	Delete(ctx context.Context, id string) error
	Resume(ctx context.Context, id string) (*model.ImportSource, error)
}

// SourceHandler はストーリー自動取り込み元（RSS/Atom/YouTube）の管理を扱う。
type SourceHandler struct {
	service SourceService
}

// NewSourceHandler はSourceHandlerを生成する。
func NewSourceHandler(service SourceService) *SourceHandler {
	return &SourceHandler{service: service}
}

type registerSourceRequest struct {
	URL         string   `json:"url"`
	DefaultTags []string `json:"default_tags"`
}

type sourceResponse struct {
	ID                string     `json:"id"`
	FeedURL           string     `json:"feed_url"`
	SiteURL           string     `json:"site_url"`
	Title             string     `json:"title"`
	DefaultTags       []string   `json:"default_tags"`
	FetchStatus       string     `json:"fetch_status"`
	ConsecutiveErrors int        `json:"consecutive_errors"`
	ErrorMessage      string     `json:"error_message,omitempty"`
	NextFetchAt       time.Time  `json:"next_fetch_at"`
	LastImportedAt    *time.Time `json:"last_imported_at,omitempty"`
}

// Register はインポート元を登録する。
// POST /api/admin/sources
func (h *SourceHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerSourceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidURLError("the URL is empty"))
		return
	}

	src, err := h.service.Register(r.Context(), strings.TrimSpace(req.URL), req.DefaultTags)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSourceResponse(src))
}

// List は登録済みのインポート元を返す。
// GET /api/admin/sources
func (h *SourceHandler) List(w http.ResponseWriter, r *http.Request) {
	sources, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	out := make([]sourceResponse, 0, len(sources))
	for _, src := range sources {
		out = append(out, toSourceResponse(src))
	}
	writeJSON(w, http.StatusOK, map[string]any{"sources": out})
}

// Delete はインポート元を削除する。
// DELETE /api/admin/sources/{id}
func (h *SourceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Resume は停止中のインポート元を再開する。
// POST /api/admin/sources/{id}/resume
func (h *SourceHandler) Resume(w http.ResponseWriter, r *http.Request) {
	src, err := h.service.Resume(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSourceResponse(src))
}

func toSourceResponse(src *model.ImportSource) sourceResponse {
	tags := src.DefaultTags
	if tags == nil {
		tags = []string{}
	}
	return sourceResponse{
		ID:                src.ID,
		FeedURL:           src.FeedURL,
		SiteURL:           src.SiteURL,
		Title:             src.Title,
		DefaultTags:       tags,
		FetchStatus:       string(src.FetchStatus),
		ConsecutiveErrors: src.ConsecutiveErrors,
		ErrorMessage:      src.ErrorMessage,
		NextFetchAt:       src.NextFetchAt,
		LastImportedAt:    src.LastImportedAt,
	}
}
