package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/supabase-community/supabase-go"
	"golang.org/x/time/rate"

	"github.com/snoozies/dreamyhaven/internal/asset"
	"github.com/snoozies/dreamyhaven/internal/config"
	"github.com/snoozies/dreamyhaven/internal/database"
	"github.com/snoozies/dreamyhaven/internal/metrics"
	"github.com/snoozies/dreamyhaven/internal/middleware"
	"github.com/snoozies/dreamyhaven/internal/newsletter"
	"github.com/snoozies/dreamyhaven/internal/notify"
	"github.com/snoozies/dreamyhaven/internal/repository"
	"github.com/snoozies/dreamyhaven/internal/resilience"
	"github.com/snoozies/dreamyhaven/internal/security"
	"github.com/snoozies/dreamyhaven/internal/story"
)

// 外部サービス呼び出しのタイムアウト
const (
	dbPingTimeout      = 5 * time.Second
	newsletterTimeout  = 10 * time.Second
	notifyTimeout      = 5 * time.Second
	defaultMaxOpenConn = 20
	defaultMaxIdleConn = 5
)

// backends はコマンド間で共有する永続化層の接続。
// ストーリーはSTORE_BACKENDに応じてPostgreSQLかSupabase REST APIを使い、
// それ以外のテーブルは常にPostgreSQLに置く。
type backends struct {
	db       *sql.DB
	stories  repository.StoryRepository
	supabase *supabase.Client
}

// openBackends はデータベースに接続し、設定に応じたストーリーリポジトリを組み立てる。
func openBackends(ctx context.Context, cfg *config.Config) (*backends, error) {
	slog.Info("connecting to database",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
		slog.String("driver", cfg.DatabaseDriver),
	)

	db, err := database.Open(cfg.DatabaseDriver, cfg.DatabaseURL, database.PoolOptions{
		MaxOpenConns:    defaultMaxOpenConn,
		MaxIdleConns:    defaultMaxIdleConn,
		ConnMaxLifetime: 30 * time.Minute,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := database.Ping(ctx, db, dbPingTimeout); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	b := &backends{db: db}

	if cfg.StoreBackend == config.BackendSupabase || cfg.AssetBackend == config.BackendSupabase {
		client, err := supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseKey, nil)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialize supabase client: %w", err)
		}
		b.supabase = client
	}

	switch cfg.StoreBackend {
	case config.BackendSupabase:
		b.stories = repository.NewSupabaseStoryRepo(b.supabase)
	default:
		b.stories = repository.NewPostgresStoryRepo(db)
	}

	slog.Info("database connection established", slog.String("store_backend", cfg.StoreBackend))
	return b, nil
}

func (b *backends) Close() error {
	return b.db.Close()
}

func newStoryService(b *backends, collector metrics.MetricsCollector, logger *slog.Logger) *story.Service {
	return story.NewService(b.stories, security.NewContentSanitizer(), collector, logger)
}

// newRegistry はGoランタイムとプロセスのメトリクスを含むレジストリを生成する。
func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// newAssetStore はASSET_BACKENDに応じたアセット保存先を返す。
func newAssetStore(ctx context.Context, cfg *config.Config, b *backends) (asset.Store, error) {
	if cfg.AssetBackend == config.BackendS3 {
		client, err := asset.NewS3Client(ctx, asset.S3Options{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize s3 client: %w", err)
		}
		return asset.NewS3Store(client, cfg.S3PublicBaseURL), nil
	}

	if b == nil || b.supabase == nil {
		return nil, fmt.Errorf("supabase client is not configured")
	}
	return asset.NewSupabaseStore(b.supabase.Storage), nil
}

// newSubscriber はbeehiivの認証情報が揃っている場合のみ購読クライアントを返す。
// 未設定の場合はnilを返し、登録は保留として記録される。
func newSubscriber(cfg *config.Config, logger *slog.Logger) newsletter.Subscriber {
	if !cfg.NewsletterEnabled() {
		return nil
	}
	return newsletter.NewBeehiivClient(
		&http.Client{Timeout: newsletterTimeout},
		cfg.BeehiivPublicationID,
		cfg.BeehiivAPIKey,
		resilience.New(resilience.NewsletterConfig(), logger),
		logger,
	)
}

// newNotifier はSlack Webhookが設定されていればSlack通知を、なければ何もしない通知先を返す。
func newNotifier(cfg *config.Config, logger *slog.Logger) notify.Notifier {
	if cfg.SlackWebhookURL == "" {
		return notify.NopNotifier{}
	}
	return notify.NewSlackNotifier(
		cfg.SlackWebhookURL,
		notifyTimeout,
		resilience.New(resilience.WebhookConfig(), logger),
	)
}

// rateLimiterConfig はreq/min単位の設定値をレートリミッター設定（req/sec）に変換する。
// 0以下の値は既定値のままにする。
func rateLimiterConfig(cfg *config.Config) middleware.RateLimiterConfig {
	rl := middleware.DefaultRateLimiterConfig()
	if cfg.RateLimitGeneral > 0 {
		rl.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
		rl.GeneralBurst = cfg.RateLimitGeneral
	}
	if cfg.RateLimitForms > 0 {
		rl.FormRate = rate.Limit(float64(cfg.RateLimitForms) / 60.0)
		rl.FormBurst = cfg.RateLimitForms
	}
	return rl
}
