// Package catalog は一覧画面で共通に使う絞り込み述語を提供する。
// ストーリー一覧とブログ一覧はどちらもこのパッケージの純粋関数で
// テキスト検索とカテゴリ選択を適用する。
package catalog

import "strings"

// AllCategories はカテゴリ未選択を表す番兵値。大文字小文字は区別しない。
const AllCategories = "all"

// Entry は絞り込み対象となる一覧要素のインターフェース。
type Entry interface {
	// SearchFields はテキスト検索の対象フィールドを返す。
	SearchFields() []string
	// Categories は要素が属するカテゴリ（タグ）を返す。
	Categories() []string
}

// Criteria は絞り込み条件を表す。
type Criteria struct {
	Search   string // 空の場合は検索条件なし
	Category string // 空またはAllCategoriesの場合はカテゴリ条件なし
}

// IsSentinel はカテゴリが番兵値（条件なし）かどうかを判定する。
func IsSentinel(category string) bool {
	c := strings.TrimSpace(category)
	return c == "" || strings.EqualFold(c, AllCategories)
}

// Matches は要素が条件に一致するかを判定する。
// カテゴリ条件とテキスト条件の両方を満たす場合にtrueを返す。
func Matches(e Entry, c Criteria) bool {
	return matchesCategory(e, c.Category) && matchesSearch(e, normalizeTerm(c.Search))
}

// Filter は条件に一致する要素だけを元の順序のまま新しいスライスで返す。
// 入力スライスは変更しない。一致なしの場合は空スライス（nilではない）を返す。
func Filter[T Entry](entries []T, c Criteria) []T {
	term := normalizeTerm(c.Search)
	out := make([]T, 0, len(entries))
	for _, e := range entries {
		if matchesCategory(e, c.Category) && matchesSearch(e, term) {
			out = append(out, e)
		}
	}
	return out
}

// CategoryOptions はカテゴリ選択肢を返す。
// 先頭は番兵値、以降は初出順で重複を除いたカテゴリ。
func CategoryOptions[T Entry](entries []T) []string {
	seen := make(map[string]struct{})
	options := []string{AllCategories}
	for _, e := range entries {
		for _, cat := range e.Categories() {
			if cat == "" {
				continue
			}
			if _, ok := seen[cat]; ok {
				continue
			}
			seen[cat] = struct{}{}
			options = append(options, cat)
		}
	}
	return options
}

func matchesCategory(e Entry, category string) bool {
	if IsSentinel(category) {
		return true
	}
	for _, cat := range e.Categories() {
		if cat == category {
			return true
		}
	}
	return false
}

func matchesSearch(e Entry, term string) bool {
	if term == "" {
		return true
	}
	for _, field := range e.SearchFields() {
		if strings.Contains(strings.ToLower(field), term) {
			return true
		}
	}
	return false
}

// normalizeTerm は検索語を小文字化する。空白だけの検索語は条件なしとして""を返す。
// それ以外の前後の空白は検索語の一部として残す。
func normalizeTerm(search string) string {
	if strings.TrimSpace(search) == "" {
		return ""
	}
	return strings.ToLower(search)
}
