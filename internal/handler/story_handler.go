package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/snoozies/dreamyhaven/internal/catalog"
	"github.com/snoozies/dreamyhaven/internal/middleware"
	"github.com/snoozies/dreamyhaven/internal/model"
)

// StoryReader はストーリー閲覧ハンドラーが必要とするサービスインターフェース。
type StoryReader interface {
	ListStories(ctx context.Context) ([]model.Story, error)
	GetStory(ctx context.Context, slug string) (*model.Story, error)
	StoriesByTag(ctx context.Context, tag string) ([]model.Story, error)
	Search(ctx context.Context, term string) ([]model.Story, error)
}

// StoryHandler は公開ストーリーAPIのHTTPハンドラー。
type StoryHandler struct {
	service StoryReader
}

// NewStoryHandler はStoryHandlerを生成する。
func NewStoryHandler(service StoryReader) *StoryHandler {
	return &StoryHandler{service: service}
}

// storyResponse はストーリーのAPIレスポンス。
type storyResponse struct {
	ID           string    `json:"id"`
	Slug         string    `json:"slug"`
	Title        string    `json:"title"`
	Summary      string    `json:"summary"`
	Excerpt      string    `json:"excerpt"`
	Body         string    `json:"body,omitempty"`
	FullText     string    `json:"full_text,omitempty"`
	ThumbnailURL string    `json:"thumbnail_url"`
	AudioURL     string    `json:"audio_url"`
	YouTubeID    string    `json:"youtube_id"`
	Duration     string    `json:"duration"`
	Tags         []string  `json:"tags"`
	PublishedAt  time.Time `json:"published_at"`
}

// storyDetailResponse はストーリー詳細のAPIレスポンス。
type storyDetailResponse struct {
	storyResponse
	MetaDescription string `json:"meta_description"`
}

// storyListResponse は絞り込み付き一覧のAPIレスポンス。
// stateは一覧画面が描画すべき状態（empty_catalog / no_results / content）。
type storyListResponse struct {
	Stories    []storyResponse `json:"stories"`
	Total      int             `json:"total"`
	Matched    int             `json:"matched"`
	State      catalog.State   `json:"state"`
	Categories []string        `json:"categories"`
}

// List はストーリー一覧を返す。
// GET /api/stories?search=&category=
func (h *StoryHandler) List(w http.ResponseWriter, r *http.Request) {
	stories, err := h.service.ListStories(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	criteria := catalog.Criteria{
		Search:   r.URL.Query().Get("search"),
		Category: r.URL.Query().Get("category"),
	}
	matched := catalog.Filter(stories, criteria)

	writeJSON(w, http.StatusOK, storyListResponse{
		Stories:    toStoryResponses(matched, false),
		Total:      len(stories),
		Matched:    len(matched),
		State:      catalog.ResolveState(len(stories), len(matched)),
		Categories: catalog.CategoryOptions(stories),
	})
}

// Search はストア側の部分一致検索の結果を返す。
// GET /api/stories/search?q=
func (h *StoryHandler) Search(w http.ResponseWriter, r *http.Request) {
	stories, err := h.service.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stories": toStoryResponses(stories, false)})
}

// Get はslugで指定したストーリーの詳細を返す。
// GET /api/stories/{slug}
func (h *StoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	story, err := h.service.GetStory(r.Context(), slug)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if story == nil {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewStoryNotFoundError(slug))
		return
	}

	writeJSON(w, http.StatusOK, storyDetailResponse{
		storyResponse:   toStoryResponse(*story, true),
		MetaDescription: story.MetaDescription(),
	})
}

// ByTag はタグに一致するストーリーを返す。
// GET /api/tags/{tag}/stories
func (h *StoryHandler) ByTag(w http.ResponseWriter, r *http.Request) {
	stories, err := h.service.StoriesByTag(r.Context(), chi.URLParam(r, "tag"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stories": toStoryResponses(stories, false)})
}

// toStoryResponse はmodel.StoryをAPIレスポンスに変換する。一覧では本文を省く。
func toStoryResponse(s model.Story, withBody bool) storyResponse {
	tags := s.Tags
	if tags == nil {
		tags = []string{}
	}
	resp := storyResponse{
		ID:           s.ID,
		Slug:         s.Slug,
		Title:        s.Title,
		Summary:      s.Summary,
		Excerpt:      s.Excerpt,
		ThumbnailURL: s.ThumbnailURL,
		AudioURL:     s.AudioURL,
		YouTubeID:    s.YouTubeID,
		Duration:     s.Duration,
		Tags:         tags,
		PublishedAt:  s.PublishedAt,
	}
	if withBody {
		resp.Body = s.Body
		resp.FullText = s.FullText
	}
	return resp
}

func toStoryResponses(stories []model.Story, withBody bool) []storyResponse {
	out := make([]storyResponse, 0, len(stories))
	for _, s := range stories {
		out = append(out, toStoryResponse(s, withBody))
	}
	return out
}
