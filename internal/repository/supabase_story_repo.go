package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/supabase-community/postgrest-go"

	"github.com/snoozies/dreamyhaven/internal/catalog"
	"github.com/snoozies/dreamyhaven/internal/model"
)

// storiesTable はPostgRESTで公開されているストーリーテーブル名。
const storiesTable = "stories"

// RESTQuerier はPostgRESTのテーブルクエリビルダを返すクライアント。
// *supabase.Clientと*postgrest.Clientの双方が満たす。
type RESTQuerier interface {
	From(table string) *postgrest.QueryBuilder
}

// postgrestErrorCode は "(23505) duplicate key ..." 形式のエラーからコードを取り出す。
var postgrestErrorCode = regexp.MustCompile(`^\(([0-9A-Z]{5}|PGRST[0-9]+)\)`)

// SupabaseStoryRepo はSupabaseのREST API（PostgREST）を使用したストーリーリポジトリ。
type SupabaseStoryRepo struct {
	client RESTQuerier
}

// NewSupabaseStoryRepo はSupabaseStoryRepoを生成する。
func NewSupabaseStoryRepo(client RESTQuerier) *SupabaseStoryRepo {
	return &SupabaseStoryRepo{client: client}
}

// supabaseStoryRow はPostgRESTが返すstoriesの1行。
// 必須カラムの欠落を検出するためポインタで受ける。
type supabaseStoryRow struct {
	ID           *string    `json:"id"`
	Slug         *string    `json:"slug"`
	Title        *string    `json:"title"`
	Summary      *string    `json:"summary"`
	Excerpt      *string    `json:"excerpt"`
	Body         *string    `json:"body"`
	FullText     *string    `json:"full_text"`
	ThumbnailURL *string    `json:"thumbnail_url"`
	AudioURL     *string    `json:"audio_url"`
	YouTubeID    *string    `json:"youtube_id"`
	Duration     *string    `json:"duration"`
	Tags         []string   `json:"tags"`
	PublishedAt  *time.Time `json:"published_at"`
	CreatedAt    *time.Time `json:"created_at"`
	UpdatedAt    *time.Time `json:"updated_at"`
}

// supabaseStoryPayload はINSERT/UPDATEで送信するボディ。
// 空の任意フィールドはnullとして送信し、公開日時は未指定ならストア側の既定値に任せる。
type supabaseStoryPayload struct {
	Slug         string     `json:"slug"`
	Title        string     `json:"title"`
	Summary      *string    `json:"summary"`
	Excerpt      *string    `json:"excerpt"`
	Body         *string    `json:"body"`
	FullText     *string    `json:"full_text"`
	ThumbnailURL *string    `json:"thumbnail_url"`
	AudioURL     *string    `json:"audio_url"`
	YouTubeID    *string    `json:"youtube_id"`
	Duration     *string    `json:"duration"`
	Tags         []string   `json:"tags"`
	PublishedAt  *time.Time `json:"published_at,omitempty"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
}

// GetAllStories は全ストーリーを公開日時の降順で返す。
func (r *SupabaseStoryRepo) GetAllStories(ctx context.Context) ([]model.Story, error) {
	if err := ctx.Err(); err != nil {
		return nil, model.NewFetchError("GetAllStories", err)
	}
	body, _, err := r.selectStories().
		Order("published_at", &postgrest.OrderOpts{Ascending: false}).
		Execute()
	if err != nil {
		return nil, classifyRESTError("GetAllStories", "", err)
	}
	return decodeStoryRows("GetAllStories", body)
}

// GetStoryBySlug はslugに一致するストーリーを返す。見つからない場合はnilを返す。
func (r *SupabaseStoryRepo) GetStoryBySlug(ctx context.Context, slug string) (*model.Story, error) {
	if err := ctx.Err(); err != nil {
		return nil, model.NewFetchError("GetStoryBySlug", err)
	}
	body, _, err := r.selectStories().
		Eq("slug", slug).
		Limit(1, "").
		Execute()
	if err != nil {
		return nil, classifyRESTError("GetStoryBySlug", "", err)
	}
	return firstStory("GetStoryBySlug", body)
}

// GetStoriesByTag はタグ集合にtagを含むストーリーを返す。
func (r *SupabaseStoryRepo) GetStoriesByTag(ctx context.Context, tag string) ([]model.Story, error) {
	if err := ctx.Err(); err != nil {
		return nil, model.NewFetchError("GetStoriesByTag", err)
	}
	body, _, err := r.selectStories().
		Filter("tags", "cs", "{"+quotePostgrestValue(tag)+"}").
		Order("published_at", &postgrest.OrderOpts{Ascending: false}).
		Execute()
	if err != nil {
		return nil, classifyRESTError("GetStoriesByTag", "", err)
	}
	return decodeStoryRows("GetStoriesByTag", body)
}

// SearchStories はtitle、summary、excerptに対して大文字小文字を区別しない部分一致検索を行う。
// PostgRESTは"*"を"%"として扱うため、検索語の"*"は1文字ワイルドカード"_"で送り、
// 受け取った行を部分一致で絞り直す。
func (r *SupabaseStoryRepo) SearchStories(ctx context.Context, term string) ([]model.Story, error) {
	if err := ctx.Err(); err != nil {
		return nil, model.NewFetchError("SearchStories", err)
	}
	pattern := quotePostgrestValue("*" + strings.ReplaceAll(EscapeILIKE(term), "*", "_") + "*")
	filters := strings.Join([]string{
		"title.ilike." + pattern,
		"summary.ilike." + pattern,
		"excerpt.ilike." + pattern,
	}, ",")

	body, _, err := r.selectStories().
		Or(filters, "").
		Order("published_at", &postgrest.OrderOpts{Ascending: false}).
		Execute()
	if err != nil {
		return nil, classifyRESTError("SearchStories", "", err)
	}
	stories, err := decodeStoryRows("SearchStories", body)
	if err != nil {
		return nil, err
	}
	return catalog.Filter(stories, catalog.Criteria{Search: term}), nil
}

// InsertStory はドラフトを永続化し、採番済みのレコードを返す。
func (r *SupabaseStoryRepo) InsertStory(ctx context.Context, draft model.StoryDraft) (*model.Story, error) {
	if err := ctx.Err(); err != nil {
		return nil, model.NewFetchError("InsertStory", err)
	}
	body, _, err := r.client.From(storiesTable).
		Insert(newSupabasePayload(draft, false), false, "", "representation", "").
		Execute()
	if err != nil {
		return nil, classifyRESTError("InsertStory", draft.Slug, err)
	}
	story, err := firstStory("InsertStory", body)
	if err != nil {
		return nil, err
	}
	if story == nil {
		return nil, model.NewValidationError("story", "insert returned no record", nil)
	}
	return story, nil
}

// FindByID は指定IDのストーリーを返す。見つからない場合はnilを返す。
func (r *SupabaseStoryRepo) FindByID(ctx context.Context, id string) (*model.Story, error) {
	if err := ctx.Err(); err != nil {
		return nil, model.NewFetchError("FindByID", err)
	}
	body, _, err := r.selectStories().
		Eq("id", id).
		Limit(1, "").
		Execute()
	if err != nil {
		return nil, classifyRESTError("FindByID", "", err)
	}
	return firstStory("FindByID", body)
}

// UpdateStory は指定IDのストーリーを更新する。見つからない場合はnilを返す。
func (r *SupabaseStoryRepo) UpdateStory(ctx context.Context, id string, draft model.StoryDraft) (*model.Story, error) {
	if err := ctx.Err(); err != nil {
		return nil, model.NewFetchError("UpdateStory", err)
	}
	body, _, err := r.client.From(storiesTable).
		Update(newSupabasePayload(draft, true), "representation", "").
		Eq("id", id).
		Execute()
	if err != nil {
		return nil, classifyRESTError("UpdateStory", draft.Slug, err)
	}
	return firstStory("UpdateStory", body)
}

// DeleteStory は指定IDのストーリーを削除する。
func (r *SupabaseStoryRepo) DeleteStory(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, model.NewFetchError("DeleteStory", err)
	}
	body, _, err := r.client.From(storiesTable).
		Delete("representation", "").
		Eq("id", id).
		Execute()
	if err != nil {
		return false, classifyRESTError("DeleteStory", "", err)
	}
	stories, err := decodeStoryRows("DeleteStory", body)
	if err != nil {
		return false, err
	}
	return len(stories) > 0, nil
}

func (r *SupabaseStoryRepo) selectStories() *postgrest.FilterBuilder {
	return r.client.From(storiesTable).Select(strings.Join(strings.Fields(storyColumns), ""), "", false)
}

// newSupabasePayload はドラフトを送信用ボディに変換する。
func newSupabasePayload(draft model.StoryDraft, update bool) supabaseStoryPayload {
	p := supabaseStoryPayload{
		Slug:         draft.Slug,
		Title:        draft.Title,
		Summary:      optionalString(draft.Summary),
		Excerpt:      optionalString(draft.Excerpt),
		Body:         optionalString(draft.Body),
		FullText:     optionalString(draft.FullText),
		ThumbnailURL: optionalString(draft.ThumbnailURL),
		AudioURL:     optionalString(draft.AudioURL),
		YouTubeID:    optionalString(draft.YouTubeID),
		Duration:     optionalString(draft.Duration),
		Tags:         normalizeTags(draft.Tags),
	}
	if !draft.PublishedAt.IsZero() {
		t := draft.PublishedAt.UTC()
		p.PublishedAt = &t
	}
	if update {
		now := time.Now().UTC()
		p.UpdatedAt = &now
	}
	return p
}

// decodeStoryRows はPostgRESTの応答配列を厳密に検証しながらmodel.Storyに変換する。
func decodeStoryRows(op string, body []byte) ([]model.Story, error) {
	var rows []supabaseStoryRow
	if err := json.Unmarshal(body, &rows); err != nil {
		// 途中で切れた応答や壊れたJSONはストア障害として扱い、型の不一致だけをレコード不正とする
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			return nil, model.NewFetchError(op, fmt.Errorf("Supabaseの応答を解析できません: %w", err))
		}
		return nil, model.NewValidationError("story", "response is not a list of story records", err)
	}

	stories := make([]model.Story, 0, len(rows))
	for i, row := range rows {
		story, err := row.toStory()
		if err != nil {
			return nil, fmt.Errorf("%s: %d件目のレコードが不正です: %w", op, i+1, err)
		}
		stories = append(stories, story)
	}
	return stories, nil
}

// firstStory は応答配列の先頭要素を返す。空配列の場合はnilを返す。
func firstStory(op string, body []byte) (*model.Story, error) {
	stories, err := decodeStoryRows(op, body)
	if err != nil {
		return nil, err
	}
	if len(stories) == 0 {
		return nil, nil
	}
	return &stories[0], nil
}

// toStory は必須フィールドの存在を確認してmodel.Storyに変換する。
func (row supabaseStoryRow) toStory() (model.Story, error) {
	switch {
	case row.ID == nil || *row.ID == "":
		return model.Story{}, model.NewValidationError("id", "missing from record", nil)
	case row.Slug == nil || *row.Slug == "":
		return model.Story{}, model.NewValidationError("slug", "missing from record", nil)
	case row.Title == nil || *row.Title == "":
		return model.Story{}, model.NewValidationError("title", "missing from record", nil)
	case row.PublishedAt == nil:
		return model.Story{}, model.NewValidationError("published_at", "missing from record", nil)
	}

	s := model.Story{
		ID:           *row.ID,
		Slug:         *row.Slug,
		Title:        *row.Title,
		Summary:      stringValue(row.Summary),
		Excerpt:      stringValue(row.Excerpt),
		Body:         stringValue(row.Body),
		FullText:     stringValue(row.FullText),
		ThumbnailURL: stringValue(row.ThumbnailURL),
		AudioURL:     stringValue(row.AudioURL),
		YouTubeID:    stringValue(row.YouTubeID),
		Duration:     stringValue(row.Duration),
		Tags:         normalizeTags(row.Tags),
		PublishedAt:  *row.PublishedAt,
	}
	if row.CreatedAt != nil {
		s.CreatedAt = *row.CreatedAt
	}
	if row.UpdatedAt != nil {
		s.UpdatedAt = *row.UpdatedAt
	}
	return s, nil
}

// classifyRESTError はPostgRESTのエラーを制約違反とストア障害に分類する。
func classifyRESTError(op, slug string, err error) error {
	code := ""
	if m := postgrestErrorCode.FindStringSubmatch(err.Error()); m != nil {
		code = m[1]
	}

	switch code {
	case sqlStateUniqueViolation:
		return model.NewDuplicateSlugError(slug, err)
	case sqlStateNotNullViolation, sqlStateCheckViolation:
		return model.NewValidationError("story", "constraint violated", err)
	case sqlStateInvalidText:
		return model.NewValidationError("id", "malformed identifier", err)
	}

	return model.NewFetchError(op, fmt.Errorf("Supabaseへのリクエストに失敗しました: %w", err))
}

// quotePostgrestValue はPostgRESTのフィルタ値をダブルクォートで囲み、予約文字を無効化する。
func quotePostgrestValue(v string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(v) + `"`
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func stringValue(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// compile-time interface check
var _ StoryRepository = (*SupabaseStoryRepo)(nil)
