package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/snoozies/dreamyhaven/internal/model"
	"github.com/snoozies/dreamyhaven/internal/repository"
	"github.com/snoozies/dreamyhaven/internal/story"
)

// FeedDetector はフィード検出のインターフェース。
type FeedDetector interface {
	Detect(ctx context.Context, inputURL string) (*Detection, error)
}

// Service はインポート元の登録・一覧・削除・再開を扱う。
type Service struct {
	repo     repository.SourceRepository
	detector FeedDetector
	logger   *slog.Logger
	now      func() time.Time
}

// NewService はServiceを生成する。
func NewService(repo repository.SourceRepository, detector FeedDetector, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		detector: detector,
		logger:   logger,
		now:      time.Now,
	}
}

// Register はURLからフィードを検出してインポート元として登録する。
// 登録直後に取り込まれるよう次回フェッチ時刻は現在時刻にする。
func (s *Service) Register(ctx context.Context, inputURL string, defaultTags []string) (*model.ImportSource, error) {
	det, err := s.detector.Detect(ctx, inputURL)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.FindByFeedURL(ctx, det.FeedURL)
	if err != nil {
		return nil, fmt.Errorf("インポート元の検索に失敗しました: %w", err)
	}
	if existing != nil {
		return nil, model.NewDuplicateSourceError()
	}

	now := s.now().UTC()
	title := det.Title
	if title == "" {
		title = det.FeedURL
	}
	src := &model.ImportSource{
		ID:          uuid.New().String(),
		FeedURL:     det.FeedURL,
		SiteURL:     siteURL(inputURL),
		Title:       title,
		DefaultTags: story.NormalizeTags(defaultTags),
		FetchStatus: model.FetchStatusActive,
		NextFetchAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, src); err != nil {
		if errors.Is(err, repository.ErrDuplicateSource) {
			return nil, model.NewDuplicateSourceError()
		}
		return nil, fmt.Errorf("インポート元の保存に失敗しました: %w", err)
	}

	s.logger.InfoContext(ctx, "import source registered",
		slog.String("source_id", src.ID),
		slog.String("feed_url", src.FeedURL),
	)
	return src, nil
}

// List は登録済みの全インポート元を返す。
func (s *Service) List(ctx context.Context) ([]*model.ImportSource, error) {
	sources, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("インポート元一覧の取得に失敗しました: %w", err)
	}
	return sources, nil
}

// Delete はインポート元を削除する。取り込み済みのストーリーは残る。
func (s *Service) Delete(ctx context.Context, id string) error {
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("インポート元の削除に失敗しました: %w", err)
	}
	if !deleted {
		return model.NewSourceNotFoundError(id)
	}
	return nil
}

// Resume は停止中のインポート元を再開する。連続エラー数をリセットし、即時フェッチ対象にする。
func (s *Service) Resume(ctx context.Context, id string) (*model.ImportSource, error) {
	src, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("インポート元の取得に失敗しました: %w", err)
	}
	if src == nil {
		return nil, model.NewSourceNotFoundError(id)
	}
	if src.FetchStatus != model.FetchStatusStopped {
		return nil, model.NewSourceNotStoppedError()
	}

	now := s.now().UTC()
	src.FetchStatus = model.FetchStatusActive
	src.ConsecutiveErrors = 0
	src.ErrorMessage = ""
	src.NextFetchAt = now
	src.UpdatedAt = now
	if err := s.repo.UpdateFetchState(ctx, src); err != nil {
		return nil, fmt.Errorf("インポート元の再開に失敗しました: %w", err)
	}
	return src, nil
}

// siteURL は入力URLからスキームとホストだけを残したURLを返す。
func siteURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return (&url.URL{Scheme: u.Scheme, Host: u.Host}).String()
}
