package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/snoozies/dreamyhaven/internal/model"
)

// sourceColumns はimport_sourcesテーブルのSELECT対象カラム。
const sourceColumns = `id, feed_url, site_url, title, default_tags,
		etag, last_modified, fetch_status, consecutive_errors,
		error_message, next_fetch_at, last_imported_at, created_at, updated_at`

// fetchLease はワーカーがインポート元を確保している間、次回フェッチ時刻を先送りする幅。
const fetchLease = 5 * time.Minute

// PostgresSourceRepo はPostgreSQLを使用したインポート元リポジトリ。
type PostgresSourceRepo struct {
	db *sql.DB
}

// NewPostgresSourceRepo はPostgresSourceRepoを生成する。
func NewPostgresSourceRepo(db *sql.DB) *PostgresSourceRepo {
	return &PostgresSourceRepo{db: db}
}

// FindByID は指定IDのインポート元を取得する。見つからない場合はnilを返す。
func (r *PostgresSourceRepo) FindByID(ctx context.Context, id string) (*model.ImportSource, error) {
	src, err := scanSource(r.db.QueryRowContext(ctx,
		`SELECT `+sourceColumns+` FROM import_sources WHERE id = $1`,
		id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("インポート元の取得に失敗しました: %w", err)
	}
	return src, nil
}

// FindByFeedURL はフィードURLでインポート元を検索する。見つからない場合はnilを返す。
func (r *PostgresSourceRepo) FindByFeedURL(ctx context.Context, feedURL string) (*model.ImportSource, error) {
	src, err := scanSource(r.db.QueryRowContext(ctx,
		`SELECT `+sourceColumns+` FROM import_sources WHERE feed_url = $1`,
		feedURL,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("フィードURLによるインポート元の検索に失敗しました: %w", err)
	}
	return src, nil
}

// List は登録済みの全インポート元を作成日時の降順で返す。
func (r *PostgresSourceRepo) List(ctx context.Context) ([]*model.ImportSource, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sourceColumns+` FROM import_sources ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("インポート元一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return collectSources(rows)
}

// Create はインポート元を作成する。
func (r *PostgresSourceRepo) Create(ctx context.Context, src *model.ImportSource) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO import_sources (id, feed_url, site_url, title, default_tags,
		                             etag, last_modified, fetch_status, consecutive_errors,
		                             error_message, next_fetch_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		src.ID, src.FeedURL, nullString(src.SiteURL), src.Title,
		pq.Array(normalizeTags(src.DefaultTags)),
		nullString(src.ETag), nullString(src.LastModified),
		src.FetchStatus, src.ConsecutiveErrors,
		nullString(src.ErrorMessage), src.NextFetchAt,
		src.CreatedAt, src.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateSource
		}
		return fmt.Errorf("インポート元の作成に失敗しました: %w", err)
	}
	return nil
}

// Delete は指定IDのインポート元を削除する。
func (r *PostgresSourceRepo) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM import_sources WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("インポート元の削除に失敗しました: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}
	return affected > 0, nil
}

// ListDueForFetch はフェッチ対象のインポート元を取得する。
// next_fetch_at <= now() かつ fetch_status = 'active' の行をFOR UPDATE SKIP LOCKEDで選び、
// 同じ文の中でnext_fetch_atをリース分だけ先送りして他のワーカーと重複しないようにする。
func (r *PostgresSourceRepo) ListDueForFetch(ctx context.Context) ([]*model.ImportSource, error) {
	rows, err := r.db.QueryContext(ctx,
		`UPDATE import_sources SET next_fetch_at = now() + $1::interval
		 WHERE id IN (
		     SELECT id FROM import_sources
		     WHERE next_fetch_at <= now() AND fetch_status = 'active'
		     ORDER BY next_fetch_at ASC
		     FOR UPDATE SKIP LOCKED
		 )
		 RETURNING `+sourceColumns,
		fmt.Sprintf("%d seconds", int(fetchLease.Seconds())),
	)
	if err != nil {
		return nil, fmt.Errorf("フェッチ対象インポート元の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return collectSources(rows)
}

// UpdateFetchState はインポート元のフェッチ状態を更新する。
func (r *PostgresSourceRepo) UpdateFetchState(ctx context.Context, src *model.ImportSource) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE import_sources SET
		    fetch_status = $2,
		    consecutive_errors = $3,
		    error_message = $4,
		    next_fetch_at = $5,
		    etag = $6,
		    last_modified = $7,
		    last_imported_at = $8,
		    updated_at = now()
		 WHERE id = $1`,
		src.ID,
		src.FetchStatus,
		src.ConsecutiveErrors,
		nullString(src.ErrorMessage),
		src.NextFetchAt,
		nullString(src.ETag),
		nullString(src.LastModified),
		src.LastImportedAt,
	)
	if err != nil {
		return fmt.Errorf("フェッチ状態の更新に失敗しました: %w", err)
	}
	return nil
}

// collectSources は複数行のインポート元を読み取る。
func collectSources(rows *sql.Rows) ([]*model.ImportSource, error) {
	sources := make([]*model.ImportSource, 0)
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("インポート元の読み取りに失敗しました: %w", err)
		}
		sources = append(sources, src)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("インポート元の走査に失敗しました: %w", err)
	}
	return sources, nil
}

// scanSource は1行をmodel.ImportSourceに変換する。
func scanSource(row rowScanner) (*model.ImportSource, error) {
	src := &model.ImportSource{}
	var siteURL, etag, lastModified, errorMessage sql.NullString
	var defaultTags pq.StringArray
	var lastImportedAt sql.NullTime

	if err := row.Scan(
		&src.ID, &src.FeedURL, &siteURL, &src.Title, &defaultTags,
		&etag, &lastModified, &src.FetchStatus, &src.ConsecutiveErrors,
		&errorMessage, &src.NextFetchAt, &lastImportedAt, &src.CreatedAt, &src.UpdatedAt,
	); err != nil {
		return nil, err
	}

	src.SiteURL = nullStringValue(siteURL)
	src.DefaultTags = normalizeTags(defaultTags)
	src.ETag = nullStringValue(etag)
	src.LastModified = nullStringValue(lastModified)
	src.ErrorMessage = nullStringValue(errorMessage)
	if lastImportedAt.Valid {
		t := lastImportedAt.Time
		src.LastImportedAt = &t
	}

	return src, nil
}

// compile-time interface check
var _ SourceRepository = (*PostgresSourceRepo)(nil)
