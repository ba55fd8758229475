package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/snoozies/dreamyhaven/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	StatusRecorder    middleware.HTTPStatusRecorder
	SessionFinder     middleware.SessionFinder
	TokenVerifier     middleware.TokenVerifier
	RateLimiter       *middleware.RateLimiter
	CORSAllowedOrigin string
	CSRF              middleware.CSRFConfig
	HSTS              bool

	// 運用
	Pinger         Pinger
	MetricsHandler http.Handler

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// ストーリー
	StoryReader   StoryReader
	StoryWriter   StoryWriter
	Uploader      AssetUploader
	UploadMaxSize int64
	Sources       SourceService

	// 公開フォーム・読み物
	Inquiries  InquiryService
	Newsletter NewsletterService
	Blog       BlogCatalog
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// 全ルート共通のミドルウェアの実行順序:
//
//	RealIP → Recovery → Logging → SecurityHeaders → CORS
//
// 公開APIはGeneral(IP単位) → CSRF、フォーム送信はさらにForm(IP単位)を重ねる。
// 管理APIはSession → General(ユーザー単位) → CSRF、自動投稿APIはBearer → Generalを通る。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger, deps.StatusRecorder))
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.HSTS))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	storyHandler := NewStoryHandler(deps.StoryReader)
	adminStoryHandler := NewAdminStoryHandler(deps.StoryWriter)
	uploadHandler := NewUploadHandler(deps.Uploader, deps.UploadMaxSize)
	sourceHandler := NewSourceHandler(deps.Sources)
	formHandler := NewFormHandler(deps.Inquiries, deps.Newsletter)
	blogHandler := NewBlogHandler(deps.Blog)

	// --- 運用エンドポイント ---
	r.Get("/health", NewHealthHandler(deps.Pinger))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	csrf := middleware.NewCSRFMiddleware(deps.CSRF)

	// --- 公開ルート ---
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())
		r.Use(csrf)

		r.Get("/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRF).ServeHTTP)

		r.Route("/api/stories", func(r chi.Router) {
			r.Get("/", storyHandler.List)
			r.Get("/search", storyHandler.Search)
			r.Get("/{slug}", storyHandler.Get)
		})
		r.Get("/api/tags/{tag}/stories", storyHandler.ByTag)

		r.Route("/api/blog", func(r chi.Router) {
			r.Get("/", blogHandler.List)
			r.Get("/{slug}", blogHandler.Get)
		})

		r.Group(func(r chi.Router) {
			r.Use(deps.RateLimiter.FormMiddleware())
			r.Post("/api/contact", formHandler.Contact)
			r.Post("/api/suggestions", formHandler.Suggestion)
			r.Post("/api/newsletter", formHandler.Newsletter)
		})

		// 管理者ログイン（OAuthフロー）
		r.Route("/auth", func(r chi.Router) {
			r.Get("/google/login", authHandler.Login)
			r.Get("/google/callback", authHandler.Callback)
			r.Post("/logout", authHandler.Logout)
			r.Get("/me", authHandler.Me)
		})
	})

	// --- 管理ルート ---
	// ミドルウェアスタック: Session → RateLimit(General) → CSRF
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())
		r.Use(csrf)

		r.Route("/api/admin", func(r chi.Router) {
			r.Post("/stories", adminStoryHandler.Create)
			r.Put("/stories/{id}", adminStoryHandler.Update)
			r.Delete("/stories/{id}", adminStoryHandler.Delete)

			r.Post("/uploads/{bucket}", uploadHandler.Upload)

			r.Route("/sources", func(r chi.Router) {
				r.Get("/", sourceHandler.List)
				r.Post("/", sourceHandler.Register)
				r.Delete("/{id}", sourceHandler.Delete)
				r.Post("/{id}/resume", sourceHandler.Resume)
			})
		})
	})

	// --- 自動投稿ルート ---
	// Cookieを使わないためCSRF検証は行わない
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewBearerAuthMiddleware(deps.TokenVerifier))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Post("/api/ingest/stories", adminStoryHandler.Create)
	})

	return r
}
