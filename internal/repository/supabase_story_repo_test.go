package repository

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/supabase-community/postgrest-go"

	"github.com/snoozies/dreamyhaven/internal/model"
)

// newTestRESTRepo はhttptestサーバーに接続したSupabaseStoryRepoを生成する。
func newTestRESTRepo(t *testing.T, handler http.HandlerFunc) *SupabaseStoryRepo {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewSupabaseStoryRepo(postgrest.NewClient(server.URL, "public", nil))
}

const restStoryJSON = `{
	"id": "11111111-1111-1111-1111-111111111111",
	"slug": "luna-and-the-moon",
	"title": "Luna and the Moon",
	"summary": "A cat visits the moon",
	"excerpt": null,
	"body": "<p>Once upon a time</p>",
	"full_text": null,
	"thumbnail_url": null,
	"audio_url": null,
	"youtube_id": "dQw4w9WgXcQ",
	"duration": "8 min",
	"tags": ["Adventure", "Animals"],
	"published_at": "2024-05-01T20:00:00+00:00",
	"created_at": "2024-05-01T20:00:00.123456+00:00",
	"updated_at": "2024-05-01T20:00:00+00:00"
}`

func TestSupabaseStoryRepo_GetAllStories(t *testing.T) {
	var gotQuery string
	repo := newTestRESTRepo(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		if r.URL.Path != "/stories" {
			t.Errorf("path = %q, want /stories", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, "["+restStoryJSON+"]")
	})

	got, err := repo.GetAllStories(context.Background())
	if err != nil {
		t.Fatalf("GetAllStories err=%v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	s := got[0]
	if s.Slug != "luna-and-the-moon" || s.Summary != "A cat visits the moon" || s.Excerpt != "" {
		t.Errorf("unexpected story: %+v", s)
	}
	if len(s.Tags) != 2 || s.Tags[1] != "Animals" {
		t.Errorf("Tags = %v", s.Tags)
	}
	if !strings.Contains(gotQuery, "order=published_at.desc") {
		t.Errorf("query %q should order by published_at desc", gotQuery)
	}
}

func TestSupabaseStoryRepo_GetAllStories_Empty(t *testing.T) {
	repo := newTestRESTRepo(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "[]")
	})

	got, err := repo.GetAllStories(context.Background())
	if err != nil {
		t.Fatalf("GetAllStories err=%v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
}

func TestSupabaseStoryRepo_GetStoryBySlug_NotFound(t *testing.T) {
	repo := newTestRESTRepo(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("slug"); got != "eq.missing" {
			t.Errorf("slug filter = %q, want eq.missing", got)
		}
		_, _ = io.WriteString(w, "[]")
	})

	got, err := repo.GetStoryBySlug(context.Background(), "missing")
	if err != nil || got != nil {
		t.Fatalf("GetStoryBySlug = %+v, %v; want nil, nil", got, err)
	}
}

func TestSupabaseStoryRepo_GetStoriesByTag_QuotesTag(t *testing.T) {
	repo := newTestRESTRepo(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("tags"); got != `cs.{"Nature"}` {
			t.Errorf("tags filter = %q", got)
		}
		_, _ = io.WriteString(w, "[]")
	})

	if _, err := repo.GetStoriesByTag(context.Background(), "Nature"); err != nil {
		t.Fatalf("GetStoriesByTag err=%v", err)
	}
}

func TestSupabaseStoryRepo_SearchStories_BuildsOrFilter(t *testing.T) {
	repo := newTestRESTRepo(t, func(w http.ResponseWriter, r *http.Request) {
		or := r.URL.Query().Get("or")
		for _, col := range []string{"title", "summary", "excerpt"} {
			if !strings.Contains(or, col+`.ilike."*moon*"`) {
				t.Errorf("or filter %q should contain %s", or, col)
			}
		}
		_, _ = io.WriteString(w, "["+restStoryJSON+"]")
	})

	got, err := repo.SearchStories(context.Background(), "moon")
	if err != nil {
		t.Fatalf("SearchStories err=%v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
}

// "*"は1文字ワイルドカードで送り、"5 stars"のような偽の一致は手元で除外する
func TestSupabaseStoryRepo_SearchStories_LiteralAsterisk(t *testing.T) {
	var gotOr string
	repo := newTestRESTRepo(t, func(w http.ResponseWriter, r *http.Request) {
		gotOr = r.URL.Query().Get("or")
		_, _ = io.WriteString(w, `[
			{"id":"1","slug":"five-star","title":"A 5*stars night","published_at":"2024-05-02T20:00:00Z"},
			{"id":"2","slug":"five-space","title":"A 5 stars night","published_at":"2024-05-01T20:00:00Z"}
		]`)
	})

	got, err := repo.SearchStories(context.Background(), "5*STARS")
	if err != nil {
		t.Fatalf("SearchStories err=%v", err)
	}
	if !strings.Contains(gotOr, `title.ilike."*5_STARS*"`) {
		t.Errorf("or filter %q should send * as a single-character wildcard", gotOr)
	}
	if len(got) != 1 || got[0].Slug != "five-star" {
		t.Errorf("got %+v, want only five-star", got)
	}
}

func TestSupabaseStoryRepo_InsertStory_DuplicateSlug(t *testing.T) {
	repo := newTestRESTRepo(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = io.WriteString(w, `{"code":"23505","details":"Key (slug)=(luna) already exists.","hint":null,"message":"duplicate key value violates unique constraint \"stories_slug_key\""}`)
	})

	_, err := repo.InsertStory(context.Background(), model.StoryDraft{Slug: "luna", Title: "Luna"})
	if !model.IsValidationError(err) {
		t.Fatalf("expected ValidationError, got %T (%v)", err, err)
	}
}

func TestSupabaseStoryRepo_InsertStory_ReturnsRecord(t *testing.T) {
	repo := newTestRESTRepo(t, func(w http.ResponseWriter, r *http.Request) {
		if prefer := r.Header.Get("Prefer"); !strings.Contains(prefer, "return=representation") {
			t.Errorf("Prefer = %q, want return=representation", prefer)
		}
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), `"excerpt":null`) {
			t.Errorf("empty excerpt should be sent as null: %s", body)
		}
		if strings.Contains(string(body), "published_at") {
			t.Errorf("zero published_at should be omitted: %s", body)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, "["+restStoryJSON+"]")
	})

	got, err := repo.InsertStory(context.Background(), model.StoryDraft{Slug: "luna-and-the-moon", Title: "Luna and the Moon"})
	if err != nil {
		t.Fatalf("InsertStory err=%v", err)
	}
	if got.ID == "" {
		t.Error("expected store-assigned ID")
	}
}

func TestSupabaseStoryRepo_ServerError_IsFetchError(t *testing.T) {
	repo := newTestRESTRepo(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, `{"code":"PGRST000","message":"Could not connect with the database"}`)
	})

	_, err := repo.GetAllStories(context.Background())
	if !model.IsFetchError(err) {
		t.Fatalf("expected FetchError, got %T (%v)", err, err)
	}
}

func TestSupabaseStoryRepo_MalformedRecord_IsValidationError(t *testing.T) {
	repo := newTestRESTRepo(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"id":"1","title":"No slug","published_at":"2024-05-01T20:00:00Z"}]`)
	})

	_, err := repo.GetAllStories(context.Background())
	if !model.IsValidationError(err) {
		t.Fatalf("expected ValidationError, got %T (%v)", err, err)
	}
}

func TestSupabaseStoryRepo_TruncatedBody_IsFetchError(t *testing.T) {
	repo := newTestRESTRepo(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"id":"1","slug":"a"`)
	})

	_, err := repo.GetAllStories(context.Background())
	if !model.IsFetchError(err) {
		t.Fatalf("expected FetchError, got %T (%v)", err, err)
	}
	if model.IsValidationError(err) {
		t.Errorf("truncated body should not be a ValidationError: %v", err)
	}
}

func TestSupabaseStoryRepo_EmptyTitle_IsValidationError(t *testing.T) {
	repo := newTestRESTRepo(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"id":"1","slug":"a","title":"","published_at":"2024-05-01T20:00:00Z"}]`)
	})

	_, err := repo.GetAllStories(context.Background())
	if !model.IsValidationError(err) {
		t.Fatalf("expected ValidationError, got %T (%v)", err, err)
	}
}

func TestSupabaseStoryRepo_WrongTagType_IsValidationError(t *testing.T) {
	repo := newTestRESTRepo(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"id":"1","slug":"a","title":"A","tags":"Nature","published_at":"2024-05-01T20:00:00Z"}]`)
	})

	_, err := repo.GetAllStories(context.Background())
	if !model.IsValidationError(err) {
		t.Fatalf("expected ValidationError, got %T (%v)", err, err)
	}
}

func TestSupabaseStoryRepo_CancelledContext(t *testing.T) {
	repo := newTestRESTRepo(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not be sent")
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.GetAllStories(ctx)
	if !model.IsFetchError(err) {
		t.Fatalf("expected FetchError, got %T (%v)", err, err)
	}
}

func TestQuotePostgrestValue(t *testing.T) {
	if got := quotePostgrestValue(`say "hi" \o/`); got != `"say \"hi\" \\o/"` {
		t.Errorf("quotePostgrestValue = %s", got)
	}
}
