package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/snoozies/dreamyhaven/internal/model"
)

// storyColumns はstoriesテーブルのSELECT対象カラム。
const storyColumns = `id, slug, title, summary, excerpt, body, full_text,
		thumbnail_url, audio_url, youtube_id, duration, tags,
		published_at, created_at, updated_at`

// storyOrder は一覧の並び順。公開日時が同じ場合は作成日時で安定させる。
const storyOrder = `ORDER BY published_at DESC, created_at DESC`

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

// PostgresStoryRepo はPostgreSQLを使用したストーリーリポジトリ。
// lib/pqとpgx stdlibのどちらのドライバで開いた*sql.DBでも動作する。
type PostgresStoryRepo struct {
	db *sql.DB
}

// NewPostgresStoryRepo はPostgresStoryRepoを生成する。
func NewPostgresStoryRepo(db *sql.DB) *PostgresStoryRepo {
	return &PostgresStoryRepo{db: db}
}

// GetAllStories は全ストーリーを公開日時の降順で返す。
func (r *PostgresStoryRepo) GetAllStories(ctx context.Context) ([]model.Story, error) {
	return r.queryStories(ctx, "GetAllStories",
		`SELECT `+storyColumns+` FROM stories `+storyOrder)
}

// GetStoryBySlug はslugに一致するストーリーを返す。見つからない場合はnilを返す。
func (r *PostgresStoryRepo) GetStoryBySlug(ctx context.Context, slug string) (*model.Story, error) {
	story, err := scanStory(r.db.QueryRowContext(ctx,
		`SELECT `+storyColumns+` FROM stories WHERE slug = $1 LIMIT 1`,
		slug,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classifyStoreError("GetStoryBySlug", err)
	}
	return story, nil
}

// GetStoriesByTag はタグ集合にtagを含むストーリーを返す。
func (r *PostgresStoryRepo) GetStoriesByTag(ctx context.Context, tag string) ([]model.Story, error) {
	return r.queryStories(ctx, "GetStoriesByTag",
		`SELECT `+storyColumns+` FROM stories WHERE tags @> $1 `+storyOrder,
		pq.Array([]string{tag}),
	)
}

// SearchStories はtitle、summary、excerptに対してILIKEで部分一致検索する。
// ワイルドカード文字はエスケープしてリテラルとして扱う。
func (r *PostgresStoryRepo) SearchStories(ctx context.Context, term string) ([]model.Story, error) {
	pattern := "%" + EscapeILIKE(term) + "%"
	return r.queryStories(ctx, "SearchStories",
		`SELECT `+storyColumns+` FROM stories
		 WHERE title ILIKE $1 OR summary ILIKE $1 OR excerpt ILIKE $1 `+storyOrder,
		pattern,
	)
}

// InsertStory はドラフトを永続化し、採番済みのレコードを返す。
// slugの一意制約違反やNOT NULL制約違反は*model.ValidationErrorとして返す。
func (r *PostgresStoryRepo) InsertStory(ctx context.Context, draft model.StoryDraft) (*model.Story, error) {
	story, err := scanStory(r.db.QueryRowContext(ctx,
		`INSERT INTO stories (slug, title, summary, excerpt, body, full_text,
		                      thumbnail_url, audio_url, youtube_id, duration, tags, published_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, COALESCE($12, now()))
		 RETURNING `+storyColumns,
		draft.Slug, draft.Title,
		nullString(draft.Summary), nullString(draft.Excerpt),
		nullString(draft.Body), nullString(draft.FullText),
		nullString(draft.ThumbnailURL), nullString(draft.AudioURL),
		nullString(draft.YouTubeID), nullString(draft.Duration),
		pq.Array(normalizeTags(draft.Tags)), nullTime(draft.PublishedAt),
	))
	if err != nil {
		return nil, classifyWriteError("InsertStory", draft.Slug, err)
	}
	return story, nil
}

// FindByID は指定IDのストーリーを返す。見つからない場合はnilを返す。
func (r *PostgresStoryRepo) FindByID(ctx context.Context, id string) (*model.Story, error) {
	story, err := scanStory(r.db.QueryRowContext(ctx,
		`SELECT `+storyColumns+` FROM stories WHERE id = $1`,
		id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classifyStoreError("FindByID", err)
	}
	return story, nil
}

// UpdateStory は指定IDのストーリーを更新する。見つからない場合はnilを返す。
func (r *PostgresStoryRepo) UpdateStory(ctx context.Context, id string, draft model.StoryDraft) (*model.Story, error) {
	story, err := scanStory(r.db.QueryRowContext(ctx,
		`UPDATE stories SET
		    slug = $2, title = $3, summary = $4, excerpt = $5, body = $6, full_text = $7,
		    thumbnail_url = $8, audio_url = $9, youtube_id = $10, duration = $11,
		    tags = $12, published_at = COALESCE($13, published_at), updated_at = now()
		 WHERE id = $1
		 RETURNING `+storyColumns,
		id, draft.Slug, draft.Title,
		nullString(draft.Summary), nullString(draft.Excerpt),
		nullString(draft.Body), nullString(draft.FullText),
		nullString(draft.ThumbnailURL), nullString(draft.AudioURL),
		nullString(draft.YouTubeID), nullString(draft.Duration),
		pq.Array(normalizeTags(draft.Tags)), nullTime(draft.PublishedAt),
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classifyWriteError("UpdateStory", draft.Slug, err)
	}
	return story, nil
}

// DeleteStory は指定IDのストーリーを削除する。
func (r *PostgresStoryRepo) DeleteStory(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM stories WHERE id = $1`, id)
	if err != nil {
		return false, classifyStoreError("DeleteStory", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, classifyStoreError("DeleteStory", err)
	}
	return affected > 0, nil
}

// queryStories は複数行のストーリーを取得する共通処理。
func (r *PostgresStoryRepo) queryStories(ctx context.Context, op, query string, args ...any) ([]model.Story, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classifyStoreError(op, err)
	}
	defer rows.Close()

	stories := make([]model.Story, 0)
	for rows.Next() {
		story, err := scanStory(rows)
		if err != nil {
			return nil, classifyStoreError(op, err)
		}
		stories = append(stories, *story)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyStoreError(op, err)
	}

	return stories, nil
}

// scanStory は1行をmodel.Storyに変換する。
func scanStory(row rowScanner) (*model.Story, error) {
	s := &model.Story{}
	var summary, excerpt, body, fullText, thumbnailURL, audioURL, youtubeID, duration sql.NullString
	var tags pq.StringArray

	if err := row.Scan(
		&s.ID, &s.Slug, &s.Title,
		&summary, &excerpt, &body, &fullText,
		&thumbnailURL, &audioURL, &youtubeID, &duration,
		&tags, &s.PublishedAt, &s.CreatedAt, &s.UpdatedAt,
	); err != nil {
		return nil, err
	}

	s.Summary = nullStringValue(summary)
	s.Excerpt = nullStringValue(excerpt)
	s.Body = nullStringValue(body)
	s.FullText = nullStringValue(fullText)
	s.ThumbnailURL = nullStringValue(thumbnailURL)
	s.AudioURL = nullStringValue(audioURL)
	s.YouTubeID = nullStringValue(youtubeID)
	s.Duration = nullStringValue(duration)
	s.Tags = normalizeTags(tags)

	return s, nil
}

// EscapeILIKE はILIKEパターンの特殊文字（\, %, _）をエスケープする。
func EscapeILIKE(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// normalizeTags はnilを空スライスに揃える。
func normalizeTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

// nullString は空文字列をsql.NullStringに変換する。
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullTime はゼロ値の時刻をsql.NullTimeのNULLに変換する。
func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

// nullStringValue はsql.NullStringから文字列を取得する。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// classifyWriteError は書き込み時のエラーを制約違反とストア障害に分類する。
func classifyWriteError(op, slug string, err error) error {
	switch sqlState(err) {
	case sqlStateUniqueViolation:
		return model.NewDuplicateSlugError(slug, err)
	case sqlStateNotNullViolation, sqlStateCheckViolation:
		return model.NewValidationError(constraintField(err), "constraint violated", err)
	}
	return classifyStoreError(op, err)
}

// classifyStoreError は読み取り時のエラーをFetchErrorに包む。
// 不正な入力値（invalid_text_representation）はValidationErrorとして扱う。
func classifyStoreError(op string, err error) error {
	if sqlState(err) == sqlStateInvalidText {
		return model.NewValidationError("id", "malformed identifier", err)
	}
	return model.NewFetchError(op, fmt.Errorf("ストーリーの取得に失敗しました: %w", err))
}

// compile-time interface check
var _ StoryRepository = (*PostgresStoryRepo)(nil)
