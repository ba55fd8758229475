package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/snoozies/dreamyhaven/internal/middleware"
	"github.com/snoozies/dreamyhaven/internal/model"
	"github.com/snoozies/dreamyhaven/internal/story"
)

// StoryWriter はストーリー管理ハンドラーが必要とするサービスインターフェース。
type StoryWriter interface {
	CreateStory(ctx context.Context, in story.Input) (*model.Story, error)
	UpdateStory(ctx context.Context, id string, in story.Input) (*model.Story, error)
	DeleteStory(ctx context.Context, id string) (bool, error)
}

// AdminStoryHandler は管理画面と自動投稿からのストーリー登録を扱う。
type AdminStoryHandler struct {
	service StoryWriter
}

// NewAdminStoryHandler はAdminStoryHandlerを生成する。
func NewAdminStoryHandler(service StoryWriter) *AdminStoryHandler {
	return &AdminStoryHandler{service: service}
}

// storyRequest はストーリー登録・更新のリクエストボディ。
// tagsは配列、tags_csvはカンマ区切り文字列で受け付ける（管理フォーム互換）。
type storyRequest struct {
	Title        string     `json:"title"`
	Slug         string     `json:"slug"`
	Summary      string     `json:"summary"`
	Excerpt      string     `json:"excerpt"`
	Body         string     `json:"body"`
	FullText     string     `json:"full_text"`
	ThumbnailURL string     `json:"thumbnail_url"`
	AudioURL     string     `json:"audio_url"`
	YouTubeID    string     `json:"youtube_id"`
	Duration     string     `json:"duration"`
	Tags         []string   `json:"tags"`
	TagsCSV      string     `json:"tags_csv"`
	PublishedAt  *time.Time `json:"published_at"`
}

func (req storyRequest) toInput() story.Input {
	tags := req.Tags
	if len(tags) == 0 && req.TagsCSV != "" {
		tags = story.ParseTags(req.TagsCSV)
	}
	return story.Input{
		Title:        req.Title,
		Slug:         req.Slug,
		Summary:      req.Summary,
		Excerpt:      req.Excerpt,
		Body:         req.Body,
		FullText:     req.FullText,
		ThumbnailURL: req.ThumbnailURL,
		AudioURL:     req.AudioURL,
		YouTubeID:    req.YouTubeID,
		Duration:     req.Duration,
		Tags:         tags,
		PublishedAt:  req.PublishedAt,
	}
}

// Create はストーリーを登録する。
// POST /api/admin/stories, POST /api/ingest/stories
func (h *AdminStoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req storyRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	created, err := h.service.CreateStory(r.Context(), req.toInput())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toStoryResponse(*created, true))
}

// Update はストーリーを置き換える。
// PUT /api/admin/stories/{id}
func (h *AdminStoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req storyRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	updated, err := h.service.UpdateStory(r.Context(), id, req.toInput())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if updated == nil {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewStoryNotFoundError(id))
		return
	}
	writeJSON(w, http.StatusOK, toStoryResponse(*updated, true))
}

// Delete はストーリーを削除する。
// DELETE /api/admin/stories/{id}
func (h *AdminStoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	deleted, err := h.service.DeleteStory(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if !deleted {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewStoryNotFoundError(id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
