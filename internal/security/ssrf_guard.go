package security

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// SSRFGuardService は外部URLへのアクセスを安全に行うための機能を定義する。
// インポート元の登録時（フィード検出）と定期取り込み時の両方で使用する。
type SSRFGuardService interface {
	// NewSafeClient はSSRF防止機能付きのHTTPクライアントを生成する。
	// 接続先IPはsafeurlがDNS解決後に検証し、応答ボディはmaxResponseSizeで打ち切る。
	NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client

	// ValidateURL はリクエスト前にURLを静的に検証する。
	// 形式不正は*InvalidURLError、ブロック対象は*BlockedURLErrorを返す。
	ValidateURL(rawURL string) error
}

// InvalidURLError はURLの形式が不正であることを表す。
type InvalidURLError struct {
	Reason string
}

func (e *InvalidURLError) Error() string { return "invalid URL: " + e.Reason }

// BlockedURLError はURLの接続先がセキュリティポリシーで拒否されたことを表す。
type BlockedURLError struct {
	Host string
}

func (e *BlockedURLError) Error() string { return "blocked host: " + e.Host }

// IsBlockedURL はエラーがSSRFポリシーによる拒否かを判定する。
func IsBlockedURL(err error) bool {
	var be *BlockedURLError
	return errors.As(err, &be)
}

var allowedSchemes = []string{"http", "https"}

// blockedPrefixes は静的検証で拒否するアドレス範囲。
var blockedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("169.254.0.0/16"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("fc00::/7"),
	netip.MustParsePrefix("fe80::/10"),
}

// blockedHostSuffixes は名前解決前に拒否するホスト名。
var blockedHostSuffixes = []string{"localhost", ".localhost", ".internal", ".local"}

// ssrfGuard はSSRFGuardServiceの実装。
type ssrfGuard struct{}

// NewSSRFGuard はSSRFGuardServiceの新しいインスタンスを生成する。
func NewSSRFGuard() *ssrfGuard {
	return &ssrfGuard{}
}

// NewSafeClient はsafeurlの設定でHTTPクライアントを生成する。
// 80/443以外のポート、http/https以外のスキーム、内部アドレスへの接続は拒否される。
func (g *ssrfGuard) NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes(allowedSchemes...).
		SetAllowedPorts(80, 443).
		Build()

	client := safeurl.Client(config).Client
	if maxResponseSize > 0 {
		base := client.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		client.Transport = &limitedTransport{base: base, limit: maxResponseSize}
	}
	return client
}

// ValidateURL はDNS解決を伴わない静的な検証を行う。
// DNS再バインディングはNewSafeClient側のダイヤル時検証で防ぐ。
func (g *ssrfGuard) ValidateURL(rawURL string) error {
	if strings.TrimSpace(rawURL) == "" {
		return &InvalidURLError{Reason: "URL is empty"}
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return &InvalidURLError{Reason: err.Error()}
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return &InvalidURLError{Reason: fmt.Sprintf("scheme %q is not allowed", parsed.Scheme)}
	}

	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return &InvalidURLError{Reason: "host is empty"}
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		addr = addr.Unmap()
		for _, p := range blockedPrefixes {
			if p.Contains(addr) {
				return &BlockedURLError{Host: host}
			}
		}
		return nil
	}

	for _, suffix := range blockedHostSuffixes {
		if host == strings.TrimPrefix(suffix, ".") || strings.HasSuffix(host, suffix) {
			return &BlockedURLError{Host: host}
		}
	}
	return nil
}

// limitedTransport は応答ボディの読み取り量を制限するRoundTripper。
type limitedTransport struct {
	base  http.RoundTripper
	limit int64
}

func (t *limitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	resp.Body = &limitedBody{ReadCloser: resp.Body, r: io.LimitReader(resp.Body, t.limit)}
	return resp, nil
}

type limitedBody struct {
	io.ReadCloser
	r io.Reader
}

func (b *limitedBody) Read(p []byte) (int, error) { return b.r.Read(p) }
