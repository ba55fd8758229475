package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/snoozies/dreamyhaven/internal/asset"
	"github.com/snoozies/dreamyhaven/internal/auth"
	"github.com/snoozies/dreamyhaven/internal/blog"
	"github.com/snoozies/dreamyhaven/internal/config"
	"github.com/snoozies/dreamyhaven/internal/handler"
	"github.com/snoozies/dreamyhaven/internal/inquiry"
	"github.com/snoozies/dreamyhaven/internal/metrics"
	"github.com/snoozies/dreamyhaven/internal/middleware"
	"github.com/snoozies/dreamyhaven/internal/newsletter"
	"github.com/snoozies/dreamyhaven/internal/repository"
	"github.com/snoozies/dreamyhaven/internal/security"
	"github.com/snoozies/dreamyhaven/internal/source"
)

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、ctxがキャンセルされるまでHTTPサーバーを動かす。
func runServe(ctx context.Context, cfg *config.Config) error {
	// 1. DB接続とストーリーストア
	b, err := openBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	logger := slog.Default()
	registry := newRegistry()
	collector := metrics.NewCollector(registry)

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(b.db)
	identRepo := repository.NewPostgresIdentityRepo(b.db)
	sessionRepo := repository.NewPostgresSessionRepo(b.db)
	sourceRepo := repository.NewPostgresSourceRepo(b.db)
	inquiryRepo := repository.NewPostgresInquiryRepo(b.db)

	// 3. ドメインサービスの初期化
	ssrfGuard := security.NewSSRFGuard()
	storyService := newStoryService(b, collector, logger)
	sourceService := source.NewService(sourceRepo, source.NewDetector(ssrfGuard), logger)
	inquiryService := inquiry.NewService(inquiryRepo, newNotifier(cfg, logger), collector, logger)
	newsletterService := newsletter.NewService(inquiryRepo, newSubscriber(cfg, logger), collector, logger)

	posts, err := blog.Load()
	if err != nil {
		return fmt.Errorf("failed to load blog posts: %w", err)
	}

	store, err := newAssetStore(ctx, cfg, b)
	if err != nil {
		return err
	}

	// 4. 認証
	oauthProvider := auth.NewGoogleOAuthProvider(auth.GoogleOAuthConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
	})
	authService := auth.NewService(
		oauthProvider, cfg, userRepo, identRepo, sessionRepo,
		auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge},
	)
	tokens := auth.NewTokenIssuer(cfg.SessionSecret, cfg.IngestTokenTTL)

	// 5. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(rateLimiterConfig(cfg))
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            logger,
		StatusRecorder:    collector,
		SessionFinder:     authService,
		TokenVerifier:     tokens,
		RateLimiter:       rateLimiter,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		CSRF: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		HSTS: cfg.CookieSecure,

		Pinger:         b.db,
		MetricsHandler: metrics.Handler(registry),

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			BaseURL:       cfg.BaseURL,
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		StoryReader:   storyService,
		StoryWriter:   storyService,
		Uploader:      asset.NewUploader(store),
		UploadMaxSize: cfg.UploadMaxSize,
		Sources:       sourceService,

		Inquiries:  inquiryService,
		Newsletter: newsletterService,
		Blog:       posts,
	})

	// 6. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // 音声アップロードを考慮する
		IdleTimeout:  60 * time.Second,
	}

	return serveUntilDone(ctx, server, "API server")
}
