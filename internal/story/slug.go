package story

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// GenerateSlug はタイトルからURL用のslugを生成する。
// 小文字化し、英数字以外の連続を"-"に置き換え、前後の"-"を除去する。
// 英数字が1文字も残らない場合は"story-"にランダムな接尾辞を付けたslugを返す。
func GenerateSlug(title string) string {
	slug := nonSlugChars.ReplaceAllString(strings.ToLower(title), "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		return "story-" + uuid.NewString()[:8]
	}
	return slug
}

// ParseTags はカンマ区切りのタグ文字列を分割し、前後の空白を除去して空要素を捨てる。
// 大文字小文字は保持し、重複は最初の出現のみ残す。
func ParseTags(csv string) []string {
	return NormalizeTags(strings.Split(csv, ","))
}

// NormalizeTags はタグ一覧を整形する。ParseTagsと同じ規則を適用する。
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
