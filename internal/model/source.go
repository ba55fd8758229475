// Package model はドメインモデルを定義する。
package model

import "time"

// ImportSource はストーリーを自動取り込みするRSS/Atomフィードを表す。
// YouTubeチャンネルやポッドキャストのフィードを登録する想定。
type ImportSource struct {
	ID                string
	FeedURL           string
	SiteURL           string
	Title             string
	DefaultTags       []string // 取り込んだストーリーに付与するタグ
	ETag              string
	LastModified      string
	FetchStatus       FetchStatus
	ConsecutiveErrors int
	ErrorMessage      string
	NextFetchAt       time.Time
	LastImportedAt    *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// FetchStatus はインポート元のフェッチ状態を表す。
type FetchStatus string

const (
	// FetchStatusActive はアクティブなフェッチ状態。
	FetchStatusActive FetchStatus = "active"
	// FetchStatusStopped は停止されたフェッチ状態。
	FetchStatusStopped FetchStatus = "stopped"
)

// ImportResult は1回のインポート処理の結果を表す。
type ImportResult struct {
	Imported int
	Skipped  int
}
