package asset

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	storage_go "github.com/supabase-community/storage-go"
)

func TestSupabaseStore_Upload(t *testing.T) {
	var gotMethod, gotPath, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"Key":"story-images/1-luna.png"}`)
	}))
	defer server.Close()

	store := NewSupabaseStore(storage_go.NewClient(server.URL, "service-key", nil))

	url, err := store.Upload(context.Background(), BucketImages, "1-luna.png", "image/png", strings.NewReader("png-bytes"))
	if err != nil {
		t.Fatalf("Upload err=%v", err)
	}
	if gotMethod != http.MethodPost || gotPath != "/object/story-images/1-luna.png" {
		t.Errorf("request = %s %s", gotMethod, gotPath)
	}
	if gotBody != "png-bytes" {
		t.Errorf("body = %q", gotBody)
	}
	if !strings.HasSuffix(url, "/object/public/story-images/1-luna.png") {
		t.Errorf("public url = %q", url)
	}
}

func TestSupabaseStore_Upload_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	baseURL := server.URL
	server.Close()

	store := NewSupabaseStore(storage_go.NewClient(baseURL, "service-key", nil))

	if _, err := store.Upload(context.Background(), BucketAudio, "a.mp3", "audio/mpeg", strings.NewReader("x")); err == nil {
		t.Fatal("expected error for an unreachable storage endpoint")
	}
}

func TestSupabaseStore_Upload_CancelledContext(t *testing.T) {
	store := NewSupabaseStore(storage_go.NewClient("http://127.0.0.1:1", "key", nil))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := store.Upload(ctx, BucketAudio, "a.mp3", "audio/mpeg", strings.NewReader("x")); err == nil {
		t.Fatal("expected error for a cancelled context")
	}
}
