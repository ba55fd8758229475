package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/go-cmp/cmp"
	"github.com/lib/pq"

	"github.com/snoozies/dreamyhaven/internal/model"
)

var sourceRowColumns = []string{
	"id", "feed_url", "site_url", "title", "default_tags",
	"etag", "last_modified", "fetch_status", "consecutive_errors",
	"error_message", "next_fetch_at", "last_imported_at", "created_at", "updated_at",
}

func TestPostgresSourceRepo_FindByID(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	ts := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM import_sources WHERE id = $1`)).
		WithArgs("src-1").
		WillReturnRows(sqlmock.NewRows(sourceRowColumns).AddRow(
			"src-1", "https://www.youtube.com/feeds/videos.xml?channel_id=abc", "https://www.youtube.com/@snoozies",
			"Snoozies", `{Narrated,Bedtime}`, `"etag-1"`, nil, "active", 0,
			nil, ts, nil, ts, ts,
		))

	got, err := NewPostgresSourceRepo(db).FindByID(context.Background(), "src-1")
	if err != nil {
		t.Fatalf("FindByID err=%v", err)
	}
	want := &model.ImportSource{
		ID: "src-1", FeedURL: "https://www.youtube.com/feeds/videos.xml?channel_id=abc",
		SiteURL: "https://www.youtube.com/@snoozies", Title: "Snoozies",
		DefaultTags: []string{"Narrated", "Bedtime"}, ETag: `"etag-1"`,
		FetchStatus: model.FetchStatusActive, NextFetchAt: ts, CreatedAt: ts, UpdatedAt: ts,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func TestPostgresSourceRepo_Create_Duplicate(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO import_sources`)).
		WillReturnError(&pq.Error{Code: "23505"})

	err := NewPostgresSourceRepo(db).Create(context.Background(), &model.ImportSource{ID: "src-1", FeedURL: "https://example.com/feed"})
	if !errors.Is(err, ErrDuplicateSource) {
		t.Fatalf("expected ErrDuplicateSource, got %v", err)
	}
}

func TestPostgresSourceRepo_ListDueForFetch_LeasesRows(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	ts := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE import_sources SET next_fetch_at = now() + $1::interval`)).
		WithArgs("300 seconds").
		WillReturnRows(sqlmock.NewRows(sourceRowColumns).AddRow(
			"src-1", "https://example.com/feed", nil, "Example", `{}`, nil, nil, "active", 2,
			"timeout", ts, ts, ts, ts,
		))

	got, err := NewPostgresSourceRepo(db).ListDueForFetch(context.Background())
	if err != nil {
		t.Fatalf("ListDueForFetch err=%v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if got[0].ConsecutiveErrors != 2 || got[0].ErrorMessage != "timeout" {
		t.Errorf("unexpected fetch state: %+v", got[0])
	}
	if got[0].LastImportedAt == nil {
		t.Error("LastImportedAt should be populated")
	}
	if got[0].DefaultTags == nil || len(got[0].DefaultTags) != 0 {
		t.Errorf("DefaultTags = %#v, want empty slice", got[0].DefaultTags)
	}
}

func TestPostgresSourceRepo_Delete(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM import_sources WHERE id = $1`)).
		WithArgs("src-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	deleted, err := NewPostgresSourceRepo(db).Delete(context.Background(), "src-1")
	if err != nil || !deleted {
		t.Fatalf("Delete = %v, %v; want true, nil", deleted, err)
	}
}

func TestPostgresInquiryRepo_CreateNewsletterSignup(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	now := time.Now()
	mock.ExpectExec(regexp.QuoteMeta(`ON CONFLICT (email) DO UPDATE`)).
		WithArgs("signup-1", "parent@example.com", model.SignupStatusPending, nil, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := NewPostgresInquiryRepo(db).CreateNewsletterSignup(context.Background(), &model.NewsletterSignup{
		ID: "signup-1", Email: "parent@example.com", Status: model.SignupStatusPending, CreatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateNewsletterSignup err=%v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestPostgresInquiryRepo_CreateContactMessage_Failure(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectExec(`INSERT INTO contact_messages`).WillReturnError(errors.New("db down"))

	err := NewPostgresInquiryRepo(db).CreateContactMessage(context.Background(), &model.ContactMessage{ID: "m-1"})
	if err == nil {
		t.Fatal("expected error")
	}
}
