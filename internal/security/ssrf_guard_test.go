package security

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNewSafeClient_Timeout(t *testing.T) {
	client := NewSSRFGuard().NewSafeClient(5*time.Second, 1<<20)
	if client.Timeout != 5*time.Second {
		t.Errorf("expected timeout 5s, got %v", client.Timeout)
	}
	if client.Transport == nil || client.Transport == http.DefaultTransport {
		t.Fatal("expected a guarded transport")
	}
}

// httptestサーバーは127.0.0.1で起動するため、safeurlのダイヤル時検証で拒否される。
func TestNewSafeClient_BlocksLoopback(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	_, err := NewSSRFGuard().NewSafeClient(5*time.Second, 1<<20).Get(ts.URL)
	if err == nil {
		t.Fatal("expected error for loopback address request, got nil")
	}
}

func TestLimitedTransport_TruncatesBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, strings.Repeat("z", 100))
	}))
	defer ts.Close()

	client := &http.Client{Transport: &limitedTransport{base: http.DefaultTransport, limit: 10}}
	resp, err := client.Get(ts.URL)
	if err != nil {
		t.Fatalf("Get err=%v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if len(body) != 10 {
		t.Errorf("read %d bytes, want 10", len(body))
	}
}

func TestValidateURL(t *testing.T) {
	guard := NewSSRFGuard()

	tests := []struct {
		name        string
		url         string
		wantInvalid bool
		wantBlocked bool
	}{
		{name: "公開https", url: "https://www.youtube.com/feeds/videos.xml?channel_id=abc"},
		{name: "公開http", url: "http://example.com/feed"},
		{name: "空", url: "", wantInvalid: true},
		{name: "ftpスキーム", url: "ftp://example.com/feed", wantInvalid: true},
		{name: "fileスキーム", url: "file:///etc/passwd", wantInvalid: true},
		{name: "ホストなし", url: "https:///feed", wantInvalid: true},
		{name: "プライベートIP", url: "http://10.0.0.5/feed", wantBlocked: true},
		{name: "192.168", url: "http://192.168.1.1/", wantBlocked: true},
		{name: "ループバック", url: "http://127.0.0.1:8080/", wantBlocked: true},
		{name: "メタデータIP", url: "http://169.254.169.254/latest/meta-data", wantBlocked: true},
		{name: "CGNAT", url: "http://100.64.0.1/", wantBlocked: true},
		{name: "IPv6ループバック", url: "http://[::1]/", wantBlocked: true},
		{name: "IPv4射影IPv6", url: "http://[::ffff:127.0.0.1]/", wantBlocked: true},
		{name: "localhost", url: "http://LOCALHOST/", wantBlocked: true},
		{name: "内部ドメイン", url: "http://metadata.google.internal/", wantBlocked: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := guard.ValidateURL(tt.url)
			switch {
			case tt.wantBlocked:
				if !IsBlockedURL(err) {
					t.Errorf("ValidateURL(%q) = %v, want BlockedURLError", tt.url, err)
				}
			case tt.wantInvalid:
				var ie *InvalidURLError
				if err == nil || !errors.As(err, &ie) {
					t.Errorf("ValidateURL(%q) = %v, want InvalidURLError", tt.url, err)
				}
			default:
				if err != nil {
					t.Errorf("ValidateURL(%q) = %v, want nil", tt.url, err)
				}
			}
		})
	}
}

func TestSSRFGuardInterface(t *testing.T) {
	var _ SSRFGuardService = NewSSRFGuard()
}
