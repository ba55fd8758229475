package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/snoozies/dreamyhaven/internal/catalog"
	"github.com/snoozies/dreamyhaven/internal/middleware"
	"github.com/snoozies/dreamyhaven/internal/model"
)

// BlogCatalog はブログハンドラーが必要とするインターフェース。blog.Catalogが満たす。
type BlogCatalog interface {
	All() []model.BlogPost
	List(criteria catalog.Criteria) []model.BlogPost
	Featured() *model.BlogPost
	FindBySlug(slug string) *model.BlogPost
	Categories() []string
}

// BlogHandler は保護者向けブログのHTTPハンドラー。
type BlogHandler struct {
	posts BlogCatalog
}

// NewBlogHandler はBlogHandlerを生成する。
func NewBlogHandler(posts BlogCatalog) *BlogHandler {
	return &BlogHandler{posts: posts}
}

type blogPostResponse struct {
	Slug     string    `json:"slug"`
	Title    string    `json:"title"`
	Excerpt  string    `json:"excerpt"`
	Body     string    `json:"body,omitempty"`
	Category string    `json:"category"`
	Author   string    `json:"author"`
	Date     time.Time `json:"date"`
	ReadTime string    `json:"read_time"`
	Featured bool      `json:"featured"`
}

type blogListResponse struct {
	Posts      []blogPostResponse `json:"posts"`
	Featured   *blogPostResponse  `json:"featured,omitempty"`
	Total      int                `json:"total"`
	Matched    int                `json:"matched"`
	State      catalog.State      `json:"state"`
	Categories []string           `json:"categories"`
}

// List は記事一覧を返す。
// GET /api/blog?search=&category=
func (h *BlogHandler) List(w http.ResponseWriter, r *http.Request) {
	total := len(h.posts.All())
	matched := h.posts.List(catalog.Criteria{
		Search:   r.URL.Query().Get("search"),
		Category: r.URL.Query().Get("category"),
	})

	resp := blogListResponse{
		Posts:      make([]blogPostResponse, 0, len(matched)),
		Total:      total,
		Matched:    len(matched),
		State:      catalog.ResolveState(total, len(matched)),
		Categories: h.posts.Categories(),
	}
	for _, p := range matched {
		resp.Posts = append(resp.Posts, toBlogPostResponse(p, false))
	}
	if featured := h.posts.Featured(); featured != nil {
		f := toBlogPostResponse(*featured, false)
		resp.Featured = &f
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get は記事の詳細を返す。
// GET /api/blog/{slug}
func (h *BlogHandler) Get(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	post := h.posts.FindBySlug(slug)
	if post == nil {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewPostNotFoundError(slug))
		return
	}
	writeJSON(w, http.StatusOK, toBlogPostResponse(*post, true))
}

func toBlogPostResponse(p model.BlogPost, withBody bool) blogPostResponse {
	resp := blogPostResponse{
		Slug:     p.Slug,
		Title:    p.Title,
		Excerpt:  p.Excerpt,
		Category: p.Category,
		Author:   p.Author,
		Date:     p.Date,
		ReadTime: p.ReadTime,
		Featured: p.Featured,
	}
	if withBody {
		resp.Body = p.Body
	}
	return resp
}
