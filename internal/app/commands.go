package app

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/snoozies/dreamyhaven/internal/auth"
	"github.com/snoozies/dreamyhaven/internal/config"
	"github.com/snoozies/dreamyhaven/internal/database"
	"github.com/snoozies/dreamyhaven/internal/model"
	"github.com/snoozies/dreamyhaven/internal/story"
)

// defaultSeed は引数なしのseedコマンドで投入するサンプルストーリー。
//
//go:embed seed_stories.yaml
var defaultSeed []byte

// runMigrate はデータベースマイグレーションを実行する。
// actionにはup（未適用をすべて適用）、down（すべて巻き戻す）、version（現在の版を表示）を指定する。
func runMigrate(cfg *config.Config, action string) error {
	slog.Info("running database migrations",
		slog.String("action", action),
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	switch action {
	case "up":
		if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	case "down":
		if err := database.RollbackMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("rollback failed: %w", err)
		}
	case "version":
		version, dirty, err := database.MigrationVersion(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to read migration version: %w", err)
		}
		slog.Info("current migration version",
			slog.Uint64("version", uint64(version)),
			slog.Bool("dirty", dirty),
		)
		return nil
	default:
		return fmt.Errorf("unknown migrate action %q (want up, down or version)", action)
	}

	slog.Info("database migrations completed successfully", slog.String("action", action))
	return nil
}

// seedStory はseedファイルの1ストーリー。slugを省略した場合はタイトルから生成する。
type seedStory struct {
	Slug         string    `yaml:"slug"`
	Title        string    `yaml:"title"`
	Summary      string    `yaml:"summary"`
	Excerpt      string    `yaml:"excerpt"`
	Body         string    `yaml:"body"`
	FullText     string    `yaml:"full_text"`
	ThumbnailURL string    `yaml:"thumbnail_url"`
	AudioURL     string    `yaml:"audio_url"`
	YouTubeID    string    `yaml:"youtube_id"`
	Duration     string    `yaml:"duration"`
	Tags         []string  `yaml:"tags"`
	PublishedAt  time.Time `yaml:"published_at"`
}

type seedFile struct {
	Stories []seedStory `yaml:"stories"`
}

// parseSeed はseedファイルをドラフトに変換する。
func parseSeed(data []byte) ([]model.StoryDraft, error) {
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("seedファイルの解析に失敗しました: %w", err)
	}
	if len(f.Stories) == 0 {
		return nil, errors.New("seedファイルにストーリーがありません")
	}

	drafts := make([]model.StoryDraft, 0, len(f.Stories))
	for _, s := range f.Stories {
		slug := strings.TrimSpace(s.Slug)
		if slug == "" {
			slug = story.GenerateSlug(s.Title)
		}
		drafts = append(drafts, model.StoryDraft{
			Slug:         slug,
			Title:        s.Title,
			Summary:      s.Summary,
			Excerpt:      s.Excerpt,
			Body:         s.Body,
			FullText:     s.FullText,
			ThumbnailURL: s.ThumbnailURL,
			AudioURL:     s.AudioURL,
			YouTubeID:    s.YouTubeID,
			Duration:     s.Duration,
			Tags:         s.Tags,
			PublishedAt:  s.PublishedAt,
		})
	}
	return drafts, nil
}

// runSeed はseedファイルのストーリーをストアに投入する。pathが空なら同梱のサンプルを使う。
// 同じslugのストーリーが既にある場合はスキップするため、何度実行してもよい。
func runSeed(ctx context.Context, cfg *config.Config, path string) error {
	data := defaultSeed
	if path != "" {
		var err error
		if data, err = os.ReadFile(path); err != nil {
			return fmt.Errorf("failed to read seed file: %w", err)
		}
	}

	drafts, err := parseSeed(data)
	if err != nil {
		return err
	}

	b, err := openBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	return seedStories(ctx, newStoryService(b, nil, slog.Default()), drafts)
}

// storyImporter はseedが使うストーリー登録口。
type storyImporter interface {
	ImportStory(ctx context.Context, draft model.StoryDraft) (bool, error)
}

func seedStories(ctx context.Context, stories storyImporter, drafts []model.StoryDraft) error {
	var inserted, skipped int
	for _, d := range drafts {
		ok, err := stories.ImportStory(ctx, d)
		if err != nil {
			return fmt.Errorf("failed to seed story %q: %w", d.Slug, err)
		}
		if ok {
			inserted++
		} else {
			skipped++
		}
	}

	slog.Info("seed completed",
		slog.Int("inserted", inserted),
		slog.Int("skipped", skipped),
	)
	return nil
}

// runToken は自動投稿API用のBearerトークンを発行してoutに書き出す。
func runToken(out io.Writer, cfg *config.Config, subject string) error {
	issuer := auth.NewTokenIssuer(cfg.SessionSecret, cfg.IngestTokenTTL)
	token, expiresAt, err := issuer.Issue(subject)
	if err != nil {
		return fmt.Errorf("failed to issue token: %w", err)
	}

	slog.Info("ingest token issued",
		slog.String("subject", subject),
		slog.Time("expires_at", expiresAt),
	)
	_, err = fmt.Fprintln(out, token)
	return err
}
