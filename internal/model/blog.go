// Package model はドメインモデルを定義する。
package model

import "time"

// BlogPost は保護者向けブログ記事を表す。
type BlogPost struct {
	Slug     string
	Title    string
	Excerpt  string
	Body     string
	Category string
	Author   string
	Date     time.Time
	ReadTime string
	Featured bool
}

// SearchFields はテキスト検索の対象となるフィールドを返す。
func (p BlogPost) SearchFields() []string {
	return []string{p.Title, p.Excerpt}
}

// Categories はカテゴリ絞り込みの対象を返す。
func (p BlogPost) Categories() []string {
	return []string{p.Category}
}
