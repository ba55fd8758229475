// Package story はストーリーの閲覧・管理・取り込みのドメインロジックを提供する。
package story

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/snoozies/dreamyhaven/internal/metrics"
	"github.com/snoozies/dreamyhaven/internal/model"
	"github.com/snoozies/dreamyhaven/internal/repository"
	"github.com/snoozies/dreamyhaven/internal/security"
)

// Input は管理画面または自動投稿から受け取るストーリーの入力値。
type Input struct {
	Title        string
	Slug         string
	Summary      string
	Excerpt      string
	Body         string
	FullText     string
	ThumbnailURL string
	AudioURL     string
	YouTubeID    string
	Duration     string
	Tags         []string
	PublishedAt  *time.Time
}

// Service はストーリーリポジトリの上に入力整形、サニタイズ、slug重複確認を重ねるサービス層。
// ストア障害（*model.FetchError）はログに記録したうえで呼び出し元へ返す。
type Service struct {
	repo      repository.StoryRepository
	sanitizer security.ContentSanitizerService
	metrics   metrics.MetricsCollector
	logger    *slog.Logger
	now       func() time.Time
}

// NewService はServiceを生成する。metricsはnilでもよい。
func NewService(
	repo repository.StoryRepository,
	sanitizer security.ContentSanitizerService,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		sanitizer: sanitizer,
		metrics:   collector,
		logger:    logger,
		now:       time.Now,
	}
}

// ListStories は全ストーリーを公開日時の降順で返す。
func (s *Service) ListStories(ctx context.Context) ([]model.Story, error) {
	start := time.Now()
	stories, err := s.repo.GetAllStories(ctx)
	s.observe(ctx, "GetAllStories", start, err)
	if err != nil {
		return nil, err
	}
	return stories, nil
}

// GetStory はslugでストーリーを取得する。見つからない場合はnil, nilを返す。
func (s *Service) GetStory(ctx context.Context, slug string) (*model.Story, error) {
	start := time.Now()
	story, err := s.repo.GetStoryBySlug(ctx, slug)
	s.observe(ctx, "GetStoryBySlug", start, err)
	return story, err
}

// StoriesByTag はタグに一致するストーリーを返す。
func (s *Service) StoriesByTag(ctx context.Context, tag string) ([]model.Story, error) {
	start := time.Now()
	stories, err := s.repo.GetStoriesByTag(ctx, tag)
	s.observe(ctx, "GetStoriesByTag", start, err)
	return stories, err
}

// Search はストア側の部分一致検索を行う。空白のみの検索語は全件取得として扱う。
func (s *Service) Search(ctx context.Context, term string) ([]model.Story, error) {
	if strings.TrimSpace(term) == "" {
		return s.ListStories(ctx)
	}
	start := time.Now()
	stories, err := s.repo.SearchStories(ctx, term)
	s.observe(ctx, "SearchStories", start, err)
	return stories, err
}

// CreateStory は入力からドラフトを組み立てて登録する。
// slugが既に使われている場合は重複のValidationErrorを返す。
func (s *Service) CreateStory(ctx context.Context, in Input) (*model.Story, error) {
	draft := s.buildDraft(in)
	if err := draft.Validate(); err != nil {
		return nil, err
	}

	if err := s.ensureSlugAvailable(ctx, draft.Slug, ""); err != nil {
		return nil, err
	}

	start := time.Now()
	story, err := s.repo.InsertStory(ctx, draft)
	s.observe(ctx, "InsertStory", start, err)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "story created", slog.String("story_id", story.ID), slog.String("slug", story.Slug))
	return story, nil
}

// UpdateStory は指定IDのストーリーを入力内容で置き換える。見つからない場合はnil, nilを返す。
func (s *Service) UpdateStory(ctx context.Context, id string, in Input) (*model.Story, error) {
	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		s.logFetchError(ctx, "FindByID", err)
		return nil, err
	}
	if current == nil {
		return nil, nil
	}

	if in.PublishedAt == nil {
		published := current.PublishedAt
		in.PublishedAt = &published
	}
	draft := s.buildDraft(in)
	if err := draft.Validate(); err != nil {
		return nil, err
	}
	if draft.Slug != current.Slug {
		if err := s.ensureSlugAvailable(ctx, draft.Slug, id); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	updated, err := s.repo.UpdateStory(ctx, id, draft)
	s.observe(ctx, "UpdateStory", start, err)
	return updated, err
}

// DeleteStory は指定IDのストーリーを削除する。削除した場合はtrueを返す。
func (s *Service) DeleteStory(ctx context.Context, id string) (bool, error) {
	start := time.Now()
	deleted, err := s.repo.DeleteStory(ctx, id)
	s.observe(ctx, "DeleteStory", start, err)
	if err == nil && deleted {
		s.logger.InfoContext(ctx, "story deleted", slog.String("story_id", id))
	}
	return deleted, err
}

// ImportStory はフィード取り込みからの登録口。
// 同じslugのストーリーが既にあれば何もせずfalseを返すため、何度呼んでも結果は変わらない。
func (s *Service) ImportStory(ctx context.Context, draft model.StoryDraft) (bool, error) {
	draft = s.normalizeDraft(draft)
	if err := draft.Validate(); err != nil {
		return false, err
	}

	existing, err := s.GetStory(ctx, draft.Slug)
	if err != nil {
		return false, err
	}
	if existing != nil {
		return false, nil
	}

	start := time.Now()
	_, err = s.repo.InsertStory(ctx, draft)
	s.observe(ctx, "InsertStory", start, err)
	if err != nil {
		var ve *model.ValidationError
		if errors.As(err, &ve) && ve.Duplicate {
			// 別ワーカーが先に登録した
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// buildDraft は入力値を整形してドラフトに変換する。
func (s *Service) buildDraft(in Input) model.StoryDraft {
	draft := model.StoryDraft{
		Slug:         strings.TrimSpace(in.Slug),
		Title:        strings.TrimSpace(in.Title),
		Summary:      strings.TrimSpace(in.Summary),
		Excerpt:      strings.TrimSpace(in.Excerpt),
		Body:         in.Body,
		FullText:     in.FullText,
		ThumbnailURL: strings.TrimSpace(in.ThumbnailURL),
		AudioURL:     strings.TrimSpace(in.AudioURL),
		YouTubeID:    strings.TrimSpace(in.YouTubeID),
		Duration:     strings.TrimSpace(in.Duration),
		Tags:         in.Tags,
	}
	if in.PublishedAt != nil {
		draft.PublishedAt = *in.PublishedAt
	}
	if draft.Slug == "" && draft.Title != "" {
		draft.Slug = GenerateSlug(draft.Title)
	}
	return s.normalizeDraft(draft)
}

// normalizeDraft は本文のサニタイズ、抜粋の補完、タグ整形、公開日時の既定値を適用する。
func (s *Service) normalizeDraft(draft model.StoryDraft) model.StoryDraft {
	if draft.Body != "" && s.sanitizer != nil {
		draft.Body = s.sanitizer.Sanitize(draft.Body)
	}
	if draft.Excerpt == "" {
		draft.Excerpt = DeriveExcerpt(draft.Body, ExcerptLength)
	}
	draft.Tags = NormalizeTags(draft.Tags)
	if draft.PublishedAt.IsZero() {
		draft.PublishedAt = s.now().UTC()
	}
	return draft
}

// ensureSlugAvailable はslugが他のストーリーで使われていないことを確認する。
// selfIDに一致するストーリーは自分自身として除外する。
func (s *Service) ensureSlugAvailable(ctx context.Context, slug, selfID string) error {
	existing, err := s.GetStory(ctx, slug)
	if err != nil {
		return err
	}
	if existing != nil && existing.ID != selfID {
		return model.NewDuplicateSlugError(slug, nil)
	}
	return nil
}

// observe はメトリクスを記録し、ストア障害をログに残す。
func (s *Service) observe(ctx context.Context, op string, start time.Time, err error) {
	if s.metrics != nil {
		s.metrics.RecordStoreQuery(op, err, time.Since(start))
	}
	s.logFetchError(ctx, op, err)
}

func (s *Service) logFetchError(ctx context.Context, op string, err error) {
	if err == nil || !model.IsFetchError(err) {
		return
	}
	s.logger.ErrorContext(ctx, "story store call failed",
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)
}
