// Package importer はインポート元フィードからストーリーを定期的に取り込むワーカーを提供する。
// cronスケジューラ、フェッチャー、リトライ/バックオフ戦略、フィード記事の変換を含む。
package importer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/snoozies/dreamyhaven/internal/metrics"
	"github.com/snoozies/dreamyhaven/internal/model"
	"github.com/snoozies/dreamyhaven/internal/repository"
)

// SourceFetcher は1件のインポート元の取り込みを実行する。
type SourceFetcher interface {
	Fetch(ctx context.Context, src *model.ImportSource) (model.ImportResult, error)
}

// Scheduler はcron式に従って取り込みサイクルを起動し、並列数を制御する。
type Scheduler struct {
	sources        repository.SourceRepository
	fetcher        SourceFetcher
	metrics        metrics.MetricsCollector
	logger         *slog.Logger
	maxConcurrency int
}

// NewScheduler はSchedulerを生成する。
// maxConcurrencyが0以下の場合は4を使用する。collectorはnilでもよい。
func NewScheduler(
	sources repository.SourceRepository,
	fetcher SourceFetcher,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	maxConcurrency int,
) *Scheduler {
	if maxConcurrency <= 0 {
		maxConcurrency = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		sources:        sources,
		fetcher:        fetcher,
		metrics:        collector,
		logger:         logger,
		maxConcurrency: maxConcurrency,
	}
}

// Start は起動直後に1回取り込みを実行し、以降はscheduleに従って繰り返す。
// ctxがキャンセルされると実行中のサイクルの終了を待ってから戻る。
// 前のサイクルが終わっていない場合、その回の実行はスキップする。
func (s *Scheduler) Start(ctx context.Context, schedule string) error {
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	if _, err := c.AddFunc(schedule, func() { s.runCycle(ctx) }); err != nil {
		return fmt.Errorf("cron式が不正です (%q): %w", schedule, err)
	}

	s.logger.Info("import scheduler started",
		slog.String("schedule", schedule),
		slog.Int("max_concurrency", s.maxConcurrency),
	)

	s.runCycle(ctx)
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()
	s.logger.Info("import scheduler stopped")
	return nil
}

func (s *Scheduler) runCycle(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error("import cycle failed", slog.String("error", err.Error()))
	}
}

// RunOnce は取り込み対象のインポート元を取得し、最大並列数を守りながら取り込む。
// 個々のインポート元の失敗はログに残してサイクルを継続する。
func (s *Scheduler) RunOnce(ctx context.Context) error {
	start := time.Now()

	sources, err := s.sources.ListDueForFetch(ctx)
	if err != nil {
		return fmt.Errorf("取り込み対象の取得に失敗しました: %w", err)
	}
	if len(sources) == 0 {
		s.logger.Debug("no import sources due")
		return nil
	}

	var (
		mu    sync.Mutex
		total model.ImportResult
		wg    sync.WaitGroup
	)
	sem := make(chan struct{}, s.maxConcurrency)

	for _, src := range sources {
		wg.Add(1)
		sem <- struct{}{}

		go func(src *model.ImportSource) {
			defer wg.Done()
			defer func() { <-sem }()

			result, err := s.fetcher.Fetch(ctx, src)
			if err != nil {
				s.logger.Error("import source fetch failed",
					slog.String("source_id", src.ID),
					slog.String("feed_url", src.FeedURL),
					slog.String("error", err.Error()),
				)
			}
			mu.Lock()
			total.Imported += result.Imported
			total.Skipped += result.Skipped
			mu.Unlock()
		}(src)
	}
	wg.Wait()

	if s.metrics != nil {
		s.metrics.RecordImport(total.Imported, total.Skipped)
	}
	s.logger.Info("import cycle completed",
		slog.Int("source_count", len(sources)),
		slog.Int("imported", total.Imported),
		slog.Int("skipped", total.Skipped),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return nil
}
