// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizerService はストーリー本文のHTMLをサニタイズする。
// 管理画面、自動投稿、フィード取り込みのいずれの経路から来た本文も
// bluemondayの許可リストポリシーを通してから保存する。
package security

import (
	"net/url"

	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizerService はHTMLコンテンツのサニタイズ機能のインターフェースを定義する。
type ContentSanitizerService interface {
	// Sanitize はストーリー本文のHTMLをサニタイズして安全なHTMLを返す。
	// 許可タグ以外とon*イベント属性は除去される。同一入力に対して常に同一出力を返す。
	Sanitize(rawHTML string) string

	// StripTags は全てのタグを除去したテキストを返す。
	StripTags(rawHTML string) string
}

// contentSanitizer はContentSanitizerServiceの実装。
type contentSanitizer struct {
	policy *bluemonday.Policy
	strict *bluemonday.Policy
}

// NewContentSanitizer はストーリー本文向けのポリシーでContentSanitizerServiceを生成する。
//   - 許可タグ: h2, h3, p, br, hr, ul, ol, li, blockquote, strong, em, a, img, figure, figcaption
//   - aタグ: httpsとmailtoのみ、target="_blank"とrel="noopener noreferrer"を付与
//   - imgタグ: httpsのsrcとaltのみ
func NewContentSanitizer() *contentSanitizer {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"h2", "h3", "p", "br", "hr",
		"ul", "ol", "li", "blockquote",
		"strong", "em", "figure", "figcaption",
	)

	p.AllowAttrs("href").OnElements("a")
	p.AllowRelativeURLs(false)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	p.AllowAttrs("src", "alt").OnElements("img")
	p.AllowURLSchemeWithCustomPolicy("https", func(u *url.URL) bool {
		return u.Host != ""
	})
	p.AllowURLSchemes("mailto")

	return &contentSanitizer{
		policy: p,
		strict: bluemonday.StrictPolicy(),
	}
}

// Sanitize はHTMLコンテンツをサニタイズして安全なHTMLを返す。
func (s *contentSanitizer) Sanitize(rawHTML string) string {
	return s.policy.Sanitize(rawHTML)
}

// StripTags は全てのタグを除去する。エンティティはエスケープされたまま残る。
func (s *contentSanitizer) StripTags(rawHTML string) string {
	return s.strict.Sanitize(rawHTML)
}
