package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/snoozies/dreamyhaven/internal/config"
	"github.com/snoozies/dreamyhaven/internal/handler"
	"github.com/snoozies/dreamyhaven/internal/metrics"
	"github.com/snoozies/dreamyhaven/internal/repository"
	"github.com/snoozies/dreamyhaven/internal/security"
	"github.com/snoozies/dreamyhaven/internal/worker/cleanup"
	"github.com/snoozies/dreamyhaven/internal/worker/importer"
)

// runWorker はワーカーモードで起動する。
// フィード取り込みスケジューラと期限切れセッションの掃除を動かし、
// 運用向けに/healthと/metricsだけを公開する。ctxがキャンセルされると停止する。
func runWorker(ctx context.Context, cfg *config.Config) error {
	// 1. DB接続とストーリーストア
	b, err := openBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	logger := slog.Default()
	registry := newRegistry()
	collector := metrics.NewCollector(registry)

	// 2. 取り込みの組み立て
	sourceRepo := repository.NewPostgresSourceRepo(b.db)
	storyService := newStoryService(b, collector, logger)
	fetcher := importer.NewFetcher(
		sourceRepo, storyService, security.NewSSRFGuard(), collector,
		logger, cfg.ImportTimeout, cfg.ImportMaxSize,
	)
	scheduler := importer.NewScheduler(sourceRepo, fetcher, collector, logger, cfg.ImportMaxConcurrent)

	// 3. セッション掃除
	cleanupJob := cleanup.NewCleanupJob(b.db, logger)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		cleanupJob.Start(ctx, cfg.SessionCleanupInterval)
	}()
	go func() {
		defer wg.Done()
		if err := serveUntilDone(ctx, newOpsServer(cfg.ServerPort, b, registry), "worker ops server"); err != nil {
			slog.Error("worker ops server failed", slog.String("error", err.Error()))
		}
	}()

	slog.Info("worker starting",
		slog.String("import_schedule", cfg.ImportSchedule),
		slog.Int("max_concurrent", cfg.ImportMaxConcurrent),
		slog.Duration("session_cleanup_interval", cfg.SessionCleanupInterval),
	)

	// 取り込みスケジューラをメインgoroutineで実行（ブロッキング）
	err = scheduler.Start(ctx, cfg.ImportSchedule)
	cancel()
	wg.Wait()
	if err != nil {
		return fmt.Errorf("import scheduler failed: %w", err)
	}

	slog.Info("worker stopped gracefully")
	return nil
}

// newOpsServer はワーカーの死活監視とメトリクス公開用のHTTPサーバーを返す。
func newOpsServer(port string, b *backends, registry prometheus.Gatherer) *http.Server {
	r := chi.NewRouter()
	r.Get("/health", handler.NewHealthHandler(b.db))
	r.Method(http.MethodGet, "/metrics", metrics.Handler(registry))

	return &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}
