// Package source はストーリー自動取り込み元（RSS/Atomフィード）の登録と管理を提供する。
package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/snoozies/dreamyhaven/internal/model"
)

// userAgent は取り込み元へのリクエストに付与するUser-Agent。
const userAgent = "Snoozies/1.0 (+story importer)"

// 検出時のタイムアウトと読み込み上限
const (
	detectTimeout = 10 * time.Second
	detectMaxBody = 5 * 1024 * 1024
)

// FeedKind はフィードの種類を表す。
type FeedKind string

const (
	// FeedKindRSS はRSSフィード。
	FeedKindRSS FeedKind = "rss"
	// FeedKindAtom はAtomフィード。
	FeedKindAtom FeedKind = "atom"
)

// Candidate はHTMLのlink要素から見つかったフィード候補。
type Candidate struct {
	URL   string
	Kind  FeedKind
	Title string
}

// Detection はフィード検出結果。
type Detection struct {
	FeedURL string
	Title   string // link要素のtitle属性。不明な場合は空
}

// URLGuard はSSRF対策のURL検証とHTTPクライアント生成を抽象化する。
// security.SSRFGuardServiceが満たす。
type URLGuard interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client
}

// Detector は入力URLから取り込み対象のフィードURLを特定する。
type Detector struct {
	guard URLGuard
}

// NewDetector はDetectorを生成する。
func NewDetector(guard URLGuard) *Detector {
	return &Detector{guard: guard}
}

// youtubeChannelPath はYouTubeのチャンネルIDを含むパス。
var youtubeChannelPath = regexp.MustCompile(`^/channel/(UC[0-9A-Za-z_-]{22})/?`)

// youtubeFeedURL はチャンネルURLをYouTubeの動画フィードURLへ変換する。
// チャンネルIDを含まないURLの場合は空文字列を返す。
func youtubeFeedURL(u *url.URL) string {
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if host != "youtube.com" && host != "m.youtube.com" {
		return ""
	}
	m := youtubeChannelPath.FindStringSubmatch(u.Path)
	if m == nil {
		return ""
	}
	return "https://www.youtube.com/feeds/videos.xml?channel_id=" + m[1]
}

// IsFeedResponse はContent-Typeと本文の先頭からRSS/Atomフィードかを判定する。
func IsFeedResponse(contentType string, body []byte) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.TrimSpace(strings.Split(contentType, ";")[0])
	}
	switch strings.ToLower(mediaType) {
	case "application/rss+xml", "application/atom+xml":
		return true
	case "text/xml", "application/xml":
		return looksLikeFeed(body)
	default:
		return false
	}
}

// looksLikeFeed は本文先頭4KBにRSS/RDF/Atomのルート要素があるかを調べる。
func looksLikeFeed(body []byte) bool {
	head := body
	if len(head) > 4096 {
		head = head[:4096]
	}
	s := strings.ToLower(string(head))
	if strings.Contains(s, "<rss") || strings.Contains(s, "<rdf:rdf") {
		return true
	}
	return strings.Contains(s, "<feed") && strings.Contains(s, "http://www.w3.org/2005/atom")
}

// FindFeedLinks はHTMLのhead内にある rel="alternate" のRSS/Atomリンクを返す。
// 相対URLはbaseURLで解決する。
func FindFeedLinks(page []byte, baseURL string) []Candidate {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}

	var found []Candidate
	z := html.NewTokenizer(bytes.NewReader(page))
	inHead := false
	for {
		switch z.Next() {
		case html.ErrorToken:
			return found
		case html.EndTagToken:
			if name, _ := z.TagName(); string(name) == "head" {
				return found
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			switch string(name) {
			case "head":
				inHead = true
				continue
			case "body":
				return found
			case "link":
			default:
				continue
			}
			if !inHead || !hasAttr {
				continue
			}
			if c, ok := linkCandidate(z, base); ok {
				found = append(found, c)
			}
		}
	}
}

// linkCandidate はlink要素の属性からフィード候補を組み立てる。
func linkCandidate(z *html.Tokenizer, base *url.URL) (Candidate, bool) {
	var rel, typ, href, title string
	for more := true; more; {
		var key, val []byte
		key, val, more = z.TagAttr()
		switch strings.ToLower(string(key)) {
		case "rel":
			rel = strings.ToLower(string(val))
		case "type":
			typ = strings.ToLower(string(val))
		case "href":
			href = string(val)
		case "title":
			title = string(val)
		}
	}
	if rel != "alternate" || href == "" {
		return Candidate{}, false
	}

	var kind FeedKind
	switch typ {
	case "application/rss+xml":
		kind = FeedKindRSS
	case "application/atom+xml":
		kind = FeedKindAtom
	default:
		return Candidate{}, false
	}

	ref, err := url.Parse(href)
	if err != nil {
		return Candidate{}, false
	}
	return Candidate{URL: base.ResolveReference(ref).String(), Kind: kind, Title: title}, true
}

// PickFeed は候補から取り込み対象を1件選ぶ。
// 入力URLと同じホストの候補を優先し、同順位ならAtom、さらに同順位なら先に現れたものを選ぶ。
func PickFeed(candidates []Candidate, inputURL string) *Candidate {
	if len(candidates) == 0 {
		return nil
	}
	host := hostOf(inputURL)
	best, bestScore := 0, -1
	for i, c := range candidates {
		score := 0
		if hostOf(c.URL) == host {
			score += 2
		}
		if c.Kind == FeedKindAtom {
			score++
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	return &candidates[best]
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// Detect は入力URLを調べ、取り込み対象のフィードURLを返す。
// YouTubeのチャンネルURLはリクエストせずにフィードURLへ変換する。
// 失敗時はUIに表示できる*model.APIErrorを返す。
func (d *Detector) Detect(ctx context.Context, inputURL string) (*Detection, error) {
	inputURL = strings.TrimSpace(inputURL)
	if inputURL == "" {
		return nil, model.NewInvalidURLError("no URL was given")
	}
	u, err := url.Parse(inputURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, model.NewInvalidURLError("the URL must start with http:// or https://")
	}

	if feed := youtubeFeedURL(u); feed != "" {
		return &Detection{FeedURL: feed}, nil
	}

	if d.guard != nil {
		if err := d.guard.ValidateURL(inputURL); err != nil {
			return nil, model.NewSSRFBlockedError()
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, inputURL, nil)
	if err != nil {
		return nil, model.NewInvalidURLError(err.Error())
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, text/html;q=0.9, */*;q=0.8")

	resp, err := d.client().Do(req)
	if err != nil {
		return nil, model.NewFetchFailedError(err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, model.NewFetchFailedError(fmt.Sprintf("the server responded with status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, detectMaxBody))
	if err != nil {
		return nil, model.NewFetchFailedError(err.Error())
	}

	contentType := resp.Header.Get("Content-Type")
	if IsFeedResponse(contentType, body) {
		return &Detection{FeedURL: inputURL}, nil
	}

	mediaType, _, _ := mime.ParseMediaType(contentType)
	if !strings.Contains(strings.ToLower(mediaType), "html") {
		return nil, model.NewFeedNotDetectedError(inputURL)
	}

	best := PickFeed(FindFeedLinks(body, inputURL), inputURL)
	if best == nil {
		return nil, model.NewFeedNotDetectedError(inputURL)
	}
	return &Detection{FeedURL: best.URL, Title: best.Title}, nil
}

func (d *Detector) client() *http.Client {
	if d.guard != nil {
		return d.guard.NewSafeClient(detectTimeout, detectMaxBody)
	}
	return &http.Client{Timeout: detectTimeout}
}
