// Package model はドメインモデルを定義する。
package model

import (
	"strings"
	"time"
)

// Story は寝かしつけ用ストーリーを表す。
// Slugは全ストーリーで一意であり、URLと検索キーに使用する。
type Story struct {
	ID           string
	Slug         string
	Title        string
	Summary      string
	Excerpt      string
	Body         string // サニタイズ済みHTMLまたはプレーンテキスト
	FullText     string
	ThumbnailURL string
	AudioURL     string
	YouTubeID    string
	Duration     string // 表示用の自由記述（例: "8 min"）
	Tags         []string
	PublishedAt  time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// StoryDraft はストア登録前のストーリーを表す。
// ID、CreatedAt、UpdatedAtはストア側で採番される。
type StoryDraft struct {
	Slug         string
	Title        string
	Summary      string
	Excerpt      string
	Body         string
	FullText     string
	ThumbnailURL string
	AudioURL     string
	YouTubeID    string
	Duration     string
	Tags         []string
	PublishedAt  time.Time
}

// SearchFields はテキスト検索の対象となるフィールドを返す。
func (s Story) SearchFields() []string {
	return []string{s.Title, s.Summary, s.Excerpt}
}

// Categories はカテゴリ絞り込みの対象となるタグを返す。
func (s Story) Categories() []string {
	return s.Tags
}

// HasTag はストーリーが指定タグを持つかを判定する。
func (s Story) HasTag(tag string) bool {
	for _, t := range s.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// defaultMetaDescription は要約も抜粋もない場合の説明文。
const defaultMetaDescription = "A magical bedtime story for children."

// MetaDescription は詳細ページのmeta descriptionに使う説明文を返す。
// Summary、Excerpt、既定文の順に採用する。
func (s Story) MetaDescription() string {
	if v := strings.TrimSpace(s.Summary); v != "" {
		return v
	}
	if v := strings.TrimSpace(s.Excerpt); v != "" {
		return v
	}
	return defaultMetaDescription
}

// Validate はストア登録に必要な最低限のフィールドを検証する。
func (d StoryDraft) Validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return NewValidationError("title", "title is required", nil)
	}
	if strings.TrimSpace(d.Slug) == "" {
		return NewValidationError("slug", "slug is required", nil)
	}
	return nil
}
