package story

import (
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
)

// ExcerptLength は自動生成する抜粋の最大文字数（rune数）。
const ExcerptLength = 200

// DeriveExcerpt はHTMLまたはプレーンテキストの本文から抜粋を作る。
// タグを除いたテキストの空白を詰め、maxRunesを超える場合は単語境界で切って"…"を付ける。
func DeriveExcerpt(body string, maxRunes int) string {
	text := plainText(body)
	if text == "" {
		return ""
	}

	runes := []rune(text)
	if len(runes) <= maxRunes {
		return text
	}

	cut := runes[:maxRunes]
	if i := lastSpace(cut); i > maxRunes/2 {
		cut = cut[:i]
	}
	return strings.TrimRightFunc(string(cut), func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	}) + "…"
}

// plainText はgoqueryでHTMLを解析してテキストだけを取り出す。
func plainText(body string) string {
	if strings.TrimSpace(body) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return strings.Join(strings.Fields(body), " ")
	}
	doc.Find("script, style").Remove()
	// ブロック要素の境界で単語が連結しないよう空白を補う
	doc.Find("p, br, h2, h3, li, blockquote").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml(" ")
	})
	return strings.Join(strings.Fields(doc.Text()), " ")
}

func lastSpace(rs []rune) int {
	for i := len(rs) - 1; i >= 0; i-- {
		if unicode.IsSpace(rs[i]) {
			return i
		}
	}
	return -1
}
