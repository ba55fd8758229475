package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/snoozies/dreamyhaven/internal/model"
)

func TestSourceHandler_Register(t *testing.T) {
	var gotURL string
	var gotTags []string
	svc := &mockSourceService{registerFn: func(_ context.Context, inputURL string, tags []string) (*model.ImportSource, error) {
		gotURL, gotTags = inputURL, tags
		return &model.ImportSource{
			ID:          "src-1",
			FeedURL:     "https://tales.example.com/feed.xml",
			Title:       "Tales",
			DefaultTags: tags,
			FetchStatus: model.FetchStatusActive,
			NextFetchAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		}, nil
	}}
	h := NewSourceHandler(svc)

	w := httptest.NewRecorder()
	h.Register(w, httptest.NewRequest(http.MethodPost, "/api/admin/sources",
		strings.NewReader(`{"url":"  https://tales.example.com  ","default_tags":["podcast"]}`)))

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if gotURL != "https://tales.example.com" {
		t.Errorf("url = %q", gotURL)
	}
	if diff := cmp.Diff([]string{"podcast"}, gotTags); diff != "" {
		t.Errorf("tags mismatch (-want +got):\n%s", diff)
	}
	resp := decodeBody[sourceResponse](t, w)
	if resp.ID != "src-1" || resp.FetchStatus != "active" || resp.LastImportedAt != nil {
		t.Errorf("response = %+v", resp)
	}
}

func TestSourceHandler_Register_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "empty url", body: `{"url":" "}`, wantStatus: http.StatusBadRequest, wantCode: model.ErrCodeInvalidURL},
		{name: "not detected", body: `{"url":"https://example.com"}`, err: model.NewFeedNotDetectedError("https://example.com"), wantStatus: http.StatusUnprocessableEntity, wantCode: model.ErrCodeFeedNotDetected},
		{name: "duplicate", body: `{"url":"https://example.com"}`, err: model.NewDuplicateSourceError(), wantStatus: http.StatusConflict, wantCode: model.ErrCodeDuplicateSource},
		{name: "ssrf", body: `{"url":"http://127.0.0.1"}`, err: model.NewSSRFBlockedError(), wantStatus: http.StatusForbidden, wantCode: model.ErrCodeSSRFBlocked},
		{name: "fetch failed", body: `{"url":"https://example.com"}`, err: model.NewFetchFailedError("HTTP 500"), wantStatus: http.StatusBadGateway, wantCode: model.ErrCodeFetchFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewSourceHandler(&mockSourceService{registerFn: func(context.Context, string, []string) (*model.ImportSource, error) {
				return nil, tt.err
			}})
			w := httptest.NewRecorder()
			h.Register(w, httptest.NewRequest(http.MethodPost, "/api/admin/sources", strings.NewReader(tt.body)))

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if code := errorCode(t, w); code != tt.wantCode {
				t.Errorf("code = %q, want %q", code, tt.wantCode)
			}
		})
	}
}

func TestSourceHandler_ListDeleteResume(t *testing.T) {
	svc := &mockSourceService{
		listFn: func(context.Context) ([]*model.ImportSource, error) {
			return []*model.ImportSource{{ID: "a"}, {ID: "b"}}, nil
		},
		deleteFn: func(_ context.Context, id string) error {
			if id != "a" {
				return model.NewSourceNotFoundError(id)
			}
			return nil
		},
		resumeFn: func(_ context.Context, id string) (*model.ImportSource, error) {
			if id == "running" {
				return nil, model.NewSourceNotStoppedError()
			}
			return &model.ImportSource{ID: id, FetchStatus: model.FetchStatusActive}, nil
		},
	}
	h := NewSourceHandler(svc)

	w := httptest.NewRecorder()
	h.List(w, httptest.NewRequest(http.MethodGet, "/api/admin/sources", nil))
	list := decodeBody[struct {
		Sources []sourceResponse `json:"sources"`
	}](t, w)
	if len(list.Sources) != 2 || list.Sources[0].DefaultTags == nil {
		t.Errorf("sources = %+v", list.Sources)
	}

	w = serveRoute(http.MethodDelete, "/api/admin/sources/{id}", h.Delete, httptest.NewRequest(http.MethodDelete, "/api/admin/sources/a", nil))
	if w.Code != http.StatusNoContent {
		t.Errorf("delete status = %d", w.Code)
	}
	w = serveRoute(http.MethodDelete, "/api/admin/sources/{id}", h.Delete, httptest.NewRequest(http.MethodDelete, "/api/admin/sources/zzz", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("delete missing status = %d", w.Code)
	}

	w = serveRoute(http.MethodPost, "/api/admin/sources/{id}/resume", h.Resume, httptest.NewRequest(http.MethodPost, "/api/admin/sources/stopped/resume", nil))
	if w.Code != http.StatusOK {
		t.Errorf("resume status = %d", w.Code)
	}
	w = serveRoute(http.MethodPost, "/api/admin/sources/{id}/resume", h.Resume, httptest.NewRequest(http.MethodPost, "/api/admin/sources/running/resume", nil))
	if w.Code != http.StatusConflict {
		t.Errorf("resume running status = %d", w.Code)
	}
}
