package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/snoozies/dreamyhaven/internal/metrics"
	"github.com/snoozies/dreamyhaven/internal/model"
	"github.com/snoozies/dreamyhaven/internal/repository"
)

const userAgent = "Snoozies/1.0 (+story importer)"

// StoryImporter はドラフトを冪等に登録する。story.Serviceが満たす。
type StoryImporter interface {
	ImportStory(ctx context.Context, draft model.StoryDraft) (bool, error)
}

// SSRFValidator はSSRF検証のインターフェース。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client
}

// Fetcher は1件のインポート元をフェッチしてストーリーとして取り込む。
// ETag/Last-Modifiedによる条件付きGET、gofeedによるパース、
// ステータスに応じた停止とバックオフを行い、結果をインポート元に書き戻す。
type Fetcher struct {
	sources     repository.SourceRepository
	stories     StoryImporter
	ssrfGuard   SSRFValidator
	metrics     metrics.MetricsCollector
	logger      *slog.Logger
	timeout     time.Duration
	maxBodySize int64
	now         func() time.Time
}

// NewFetcher はFetcherを生成する。collectorはnilでもよい。
func NewFetcher(
	sources repository.SourceRepository,
	stories StoryImporter,
	ssrfGuard SSRFValidator,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	timeout time.Duration,
	maxBodySize int64,
) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		sources:     sources,
		stories:     stories,
		ssrfGuard:   ssrfGuard,
		metrics:     collector,
		logger:      logger,
		timeout:     timeout,
		maxBodySize: maxBodySize,
		now:         time.Now,
	}
}

// Fetch はインポート元をフェッチし、新しい記事をストーリーとして登録する。
// HTTPやパースの失敗はインポート元の状態に反映し、状態の保存やストアの障害のみをエラーとして返す。
func (f *Fetcher) Fetch(ctx context.Context, src *model.ImportSource) (model.ImportResult, error) {
	var result model.ImportResult
	log := f.logger.With(slog.String("source_id", src.ID), slog.String("feed_url", src.FeedURL))

	if err := f.ssrfGuard.ValidateURL(src.FeedURL); err != nil {
		log.Warn("feed url rejected by ssrf guard", slog.String("error", err.Error()))
		applyStop(src, fmt.Sprintf("SSRF検証失敗: %s", err.Error()))
		f.recordResult("blocked")
		return result, f.save(ctx, src)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.FeedURL, nil)
	if err != nil {
		return result, fmt.Errorf("リクエスト作成に失敗しました: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, */*")
	if src.ETag != "" {
		req.Header.Set("If-None-Match", src.ETag)
	}
	if src.LastModified != "" {
		req.Header.Set("If-Modified-Since", src.LastModified)
	}

	start := time.Now()
	resp, err := f.ssrfGuard.NewSafeClient(f.timeout, f.maxBodySize).Do(req)
	if f.metrics != nil {
		f.metrics.RecordFetchLatency(time.Since(start))
	}
	if err != nil {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		log.Warn("feed request failed", slog.String("error", err.Error()))
		applyBackoff(src, fmt.Sprintf("HTTPリクエスト失敗: %s", err.Error()), f.now())
		f.recordResult("error")
		return result, f.save(ctx, src)
	}
	defer resp.Body.Close()

	status := ClassifyHTTPStatus(resp.StatusCode)
	if status != FetchResultOK {
		f.recordResult(status.String())
	}

	switch status {
	case FetchResultNotModified:
		log.Debug("feed not modified")
		applySuccess(src, f.now())
		return result, f.save(ctx, src)
	case FetchResultStop:
		log.Warn("stopping import source", slog.Int("http_status", resp.StatusCode))
		applyStop(src, fmt.Sprintf("HTTPステータス %d により取り込みを停止しました", resp.StatusCode))
		return result, f.save(ctx, src)
	case FetchResultBackoff, FetchResultUnknown:
		log.Warn("backing off import source",
			slog.Int("http_status", resp.StatusCode),
			slog.Int("consecutive_errors", src.ConsecutiveErrors+1),
		)
		applyBackoff(src, fmt.Sprintf("HTTPステータス %d によりバックオフしました", resp.StatusCode), f.now())
		return result, f.save(ctx, src)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		log.Warn("failed to read feed body", slog.String("error", err.Error()))
		applyBackoff(src, fmt.Sprintf("レスポンス読み取り失敗: %s", err.Error()), f.now())
		f.recordResult("error")
		return result, f.save(ctx, src)
	}
	if etag := resp.Header.Get("ETag"); etag != "" {
		src.ETag = etag
	}
	if lastMod := resp.Header.Get("Last-Modified"); lastMod != "" {
		src.LastModified = lastMod
	}

	parsed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		log.Warn("failed to parse feed", slog.String("error", err.Error()))
		applyParseFailure(src, err.Error(), f.now())
		f.recordResult("parse_error")
		return result, f.save(ctx, src)
	}

	f.recordResult(FetchResultOK.String())
	result, err = f.importItems(ctx, log, src, parsed.Items)
	if err != nil {
		// ストア障害は一時的なものとして扱い、インポート元は停止しない
		applyBackoff(src, fmt.Sprintf("ストーリーの登録に失敗しました: %s", err.Error()), f.now())
		if saveErr := f.save(ctx, src); saveErr != nil {
			return result, errors.Join(err, saveErr)
		}
		return result, err
	}

	now := f.now()
	applySuccess(src, now)
	if result.Imported > 0 {
		imported := now.UTC()
		src.LastImportedAt = &imported
	}
	if err := f.save(ctx, src); err != nil {
		return result, err
	}

	log.Info("import source fetched",
		slog.Int("imported", result.Imported),
		slog.Int("skipped", result.Skipped),
		slog.Int("items_total", len(parsed.Items)),
	)
	return result, nil
}

// importItems は記事をドラフトに変換して登録する。
// 入力不正の記事はスキップし、ストア障害が起きた時点で中断する。
func (f *Fetcher) importItems(ctx context.Context, log *slog.Logger, src *model.ImportSource, items []*gofeed.Item) (model.ImportResult, error) {
	var result model.ImportResult
	for _, item := range items {
		draft, ok := ItemToDraft(item, src.DefaultTags)
		if !ok {
			result.Skipped++
			continue
		}
		inserted, err := f.stories.ImportStory(ctx, draft)
		if err != nil {
			if model.IsFetchError(err) || ctx.Err() != nil {
				return result, err
			}
			log.Warn("skipping feed item", slog.String("slug", draft.Slug), slog.String("error", err.Error()))
			result.Skipped++
			continue
		}
		if inserted {
			result.Imported++
		} else {
			result.Skipped++
		}
	}
	return result, nil
}

func (f *Fetcher) save(ctx context.Context, src *model.ImportSource) error {
	if err := f.sources.UpdateFetchState(ctx, src); err != nil {
		f.logger.Error("failed to update import source state",
			slog.String("source_id", src.ID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("インポート元の状態更新に失敗しました: %w", err)
	}
	return nil
}

func (f *Fetcher) recordResult(result string) {
	if f.metrics != nil {
		f.metrics.RecordFetchResult(result)
	}
}
