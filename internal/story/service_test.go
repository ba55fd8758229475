package story

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/snoozies/dreamyhaven/internal/model"
	"github.com/snoozies/dreamyhaven/internal/security"
)

// --- テスト用モック ---

// mockStoryRepo はStoryRepositoryのモック。未設定のメソッドは空の結果を返す。
type mockStoryRepo struct {
	getAllFn    func(ctx context.Context) ([]model.Story, error)
	getBySlugFn func(ctx context.Context, slug string) (*model.Story, error)
	getByTagFn  func(ctx context.Context, tag string) ([]model.Story, error)
	searchFn    func(ctx context.Context, term string) ([]model.Story, error)
	insertFn    func(ctx context.Context, draft model.StoryDraft) (*model.Story, error)
	findByIDFn  func(ctx context.Context, id string) (*model.Story, error)
	updateFn    func(ctx context.Context, id string, draft model.StoryDraft) (*model.Story, error)
	deleteFn    func(ctx context.Context, id string) (bool, error)

	inserted []model.StoryDraft
}

func (m *mockStoryRepo) GetAllStories(ctx context.Context) ([]model.Story, error) {
	if m.getAllFn != nil {
		return m.getAllFn(ctx)
	}
	return []model.Story{}, nil
}

func (m *mockStoryRepo) GetStoryBySlug(ctx context.Context, slug string) (*model.Story, error) {
	if m.getBySlugFn != nil {
		return m.getBySlugFn(ctx, slug)
	}
	return nil, nil
}

func (m *mockStoryRepo) GetStoriesByTag(ctx context.Context, tag string) ([]model.Story, error) {
	if m.getByTagFn != nil {
		return m.getByTagFn(ctx, tag)
	}
	return []model.Story{}, nil
}

func (m *mockStoryRepo) SearchStories(ctx context.Context, term string) ([]model.Story, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, term)
	}
	return []model.Story{}, nil
}

func (m *mockStoryRepo) InsertStory(ctx context.Context, draft model.StoryDraft) (*model.Story, error) {
	m.inserted = append(m.inserted, draft)
	if m.insertFn != nil {
		return m.insertFn(ctx, draft)
	}
	return storyFromDraft("generated-id", draft), nil
}

func (m *mockStoryRepo) FindByID(ctx context.Context, id string) (*model.Story, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockStoryRepo) UpdateStory(ctx context.Context, id string, draft model.StoryDraft) (*model.Story, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, id, draft)
	}
	return storyFromDraft(id, draft), nil
}

func (m *mockStoryRepo) DeleteStory(ctx context.Context, id string) (bool, error) {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return false, nil
}

func storyFromDraft(id string, d model.StoryDraft) *model.Story {
	return &model.Story{
		ID:          id,
		Slug:        d.Slug,
		Title:       d.Title,
		Summary:     d.Summary,
		Excerpt:     d.Excerpt,
		Body:        d.Body,
		Tags:        d.Tags,
		PublishedAt: d.PublishedAt,
	}
}

// mockCollector はRecordStoreQueryの呼び出しだけを記録するメトリクスモック。
type mockCollector struct {
	ops []string
}

func (m *mockCollector) RecordStoreQuery(op string, _ error, _ time.Duration) {
	m.ops = append(m.ops, op)
}
func (m *mockCollector) RecordImport(int, int)                     {}
func (m *mockCollector) RecordFetchResult(string)                  {}
func (m *mockCollector) RecordFetchLatency(time.Duration)          {}
func (m *mockCollector) RecordInquiry(string)                      {}
func (m *mockCollector) RecordNewsletterSignup(model.SignupStatus) {}
func (m *mockCollector) RecordHTTPStatus(int)                      {}

var fixedNow = time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC)

func newTestService(repo *mockStoryRepo) *Service {
	svc := NewService(repo, security.NewContentSanitizer(), nil, nil)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

// --- CreateStory ---

func TestService_CreateStory_GeneratesSlugAndDefaults(t *testing.T) {
	repo := &mockStoryRepo{}
	svc := newTestService(repo)

	got, err := svc.CreateStory(context.Background(), Input{
		Title: "  Luna and the Moon!  ",
		Body:  `<p onclick="evil()">Once upon a time a cat looked up.</p><script>alert(1)</script>`,
		Tags:  ParseTags("Adventure, Animals, ,Adventure"),
	})
	if err != nil {
		t.Fatalf("CreateStory err=%v", err)
	}

	if got.Slug != "luna-and-the-moon" {
		t.Errorf("Slug = %q, want luna-and-the-moon", got.Slug)
	}
	if got.Title != "Luna and the Moon!" {
		t.Errorf("Title = %q", got.Title)
	}
	if strings.Contains(got.Body, "onclick") || strings.Contains(got.Body, "script") {
		t.Errorf("Body was not sanitized: %q", got.Body)
	}
	if got.Excerpt != "Once upon a time a cat looked up." {
		t.Errorf("Excerpt = %q", got.Excerpt)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "Adventure" || got.Tags[1] != "Animals" {
		t.Errorf("Tags = %v", got.Tags)
	}
	if !got.PublishedAt.Equal(fixedNow) {
		t.Errorf("PublishedAt = %v, want %v", got.PublishedAt, fixedNow)
	}
}

func TestService_CreateStory_KeepsExplicitFields(t *testing.T) {
	repo := &mockStoryRepo{}
	svc := newTestService(repo)
	published := time.Date(2023, 12, 24, 19, 0, 0, 0, time.UTC)

	got, err := svc.CreateStory(context.Background(), Input{
		Title:       "Sleepy Forest",
		Slug:        "the-sleepy-forest",
		Excerpt:     "Trees whisper goodnight",
		PublishedAt: &published,
	})
	if err != nil {
		t.Fatalf("CreateStory err=%v", err)
	}
	if got.Slug != "the-sleepy-forest" || got.Excerpt != "Trees whisper goodnight" {
		t.Errorf("unexpected story: %+v", got)
	}
	if !got.PublishedAt.Equal(published) {
		t.Errorf("PublishedAt = %v, want %v", got.PublishedAt, published)
	}
}

func TestService_CreateStory_MissingTitle(t *testing.T) {
	repo := &mockStoryRepo{}
	svc := newTestService(repo)

	_, err := svc.CreateStory(context.Background(), Input{Title: "   "})
	var ve *model.ValidationError
	if !errors.As(err, &ve) || ve.Field != "title" {
		t.Fatalf("expected title ValidationError, got %v", err)
	}
	if len(repo.inserted) != 0 {
		t.Error("InsertStory should not be called for an invalid draft")
	}
}

func TestService_CreateStory_DuplicateSlug(t *testing.T) {
	repo := &mockStoryRepo{
		getBySlugFn: func(_ context.Context, slug string) (*model.Story, error) {
			return &model.Story{ID: "existing", Slug: slug}, nil
		},
	}
	svc := newTestService(repo)

	_, err := svc.CreateStory(context.Background(), Input{Title: "Luna"})
	var ve *model.ValidationError
	if !errors.As(err, &ve) || !ve.Duplicate {
		t.Fatalf("expected duplicate ValidationError, got %v", err)
	}
	if len(repo.inserted) != 0 {
		t.Error("InsertStory should not be called when the slug is taken")
	}
}

func TestService_CreateStory_FetchErrorIsReturned(t *testing.T) {
	storeErr := model.NewFetchError("GetStoryBySlug", errors.New("connection refused"))
	repo := &mockStoryRepo{
		getBySlugFn: func(context.Context, string) (*model.Story, error) { return nil, storeErr },
	}
	collector := &mockCollector{}
	svc := NewService(repo, nil, collector, nil)

	_, err := svc.CreateStory(context.Background(), Input{Title: "Luna"})
	if !errors.Is(err, storeErr) {
		t.Fatalf("expected the store error unchanged, got %v", err)
	}
	if len(collector.ops) != 1 || collector.ops[0] != "GetStoryBySlug" {
		t.Errorf("recorded ops = %v", collector.ops)
	}
}

// --- 閲覧系 ---

func TestService_Search_BlankTermListsAll(t *testing.T) {
	listed := false
	repo := &mockStoryRepo{
		getAllFn: func(context.Context) ([]model.Story, error) {
			listed = true
			return []model.Story{{Slug: "a"}}, nil
		},
		searchFn: func(context.Context, string) ([]model.Story, error) {
			t.Error("SearchStories should not be called for a blank term")
			return nil, nil
		},
	}
	svc := newTestService(repo)

	got, err := svc.Search(context.Background(), "   ")
	if err != nil || len(got) != 1 || !listed {
		t.Fatalf("Search = %v, %v (listed=%v)", got, err, listed)
	}
}

func TestService_Search_KeepsSurroundingSpaces(t *testing.T) {
	var gotTerm string
	repo := &mockStoryRepo{
		searchFn: func(_ context.Context, term string) ([]model.Story, error) {
			gotTerm = term
			return []model.Story{}, nil
		},
	}
	svc := newTestService(repo)

	if _, err := svc.Search(context.Background(), "  moon "); err != nil {
		t.Fatalf("Search err=%v", err)
	}
	if gotTerm != "  moon " {
		t.Errorf("term = %q, want %q", gotTerm, "  moon ")
	}
}

func TestService_ListStories_FetchError(t *testing.T) {
	repo := &mockStoryRepo{
		getAllFn: func(context.Context) ([]model.Story, error) {
			return nil, model.NewFetchError("GetAllStories", errors.New("timeout"))
		},
	}
	svc := newTestService(repo)

	got, err := svc.ListStories(context.Background())
	if !model.IsFetchError(err) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if got != nil {
		t.Errorf("stories should be nil on failure, got %v", got)
	}
}

func TestService_GetStory_NotFound(t *testing.T) {
	svc := newTestService(&mockStoryRepo{})

	got, err := svc.GetStory(context.Background(), "missing")
	if err != nil || got != nil {
		t.Fatalf("GetStory = %+v, %v; want nil, nil", got, err)
	}
}

// --- UpdateStory / DeleteStory ---

func TestService_UpdateStory_NotFound(t *testing.T) {
	repo := &mockStoryRepo{
		updateFn: func(context.Context, string, model.StoryDraft) (*model.Story, error) {
			t.Error("UpdateStory should not be called")
			return nil, nil
		},
	}
	svc := newTestService(repo)

	got, err := svc.UpdateStory(context.Background(), "nope", Input{Title: "x"})
	if err != nil || got != nil {
		t.Fatalf("UpdateStory = %+v, %v; want nil, nil", got, err)
	}
}

func TestService_UpdateStory_KeepsPublishedAtAndAllowsOwnSlug(t *testing.T) {
	published := time.Date(2023, 1, 2, 3, 4, 5, 0, time.UTC)
	current := &model.Story{ID: "s1", Slug: "luna", Title: "Luna", PublishedAt: published}
	repo := &mockStoryRepo{
		findByIDFn: func(context.Context, string) (*model.Story, error) { return current, nil },
		getBySlugFn: func(context.Context, string) (*model.Story, error) {
			t.Error("slug lookup should be skipped when the slug is unchanged")
			return nil, nil
		},
	}
	svc := newTestService(repo)

	got, err := svc.UpdateStory(context.Background(), "s1", Input{Title: "Luna Returns", Slug: "luna"})
	if err != nil {
		t.Fatalf("UpdateStory err=%v", err)
	}
	if !got.PublishedAt.Equal(published) {
		t.Errorf("PublishedAt = %v, want %v", got.PublishedAt, published)
	}
	if got.Title != "Luna Returns" {
		t.Errorf("Title = %q", got.Title)
	}
}

func TestService_UpdateStory_SlugTakenByOther(t *testing.T) {
	repo := &mockStoryRepo{
		findByIDFn: func(context.Context, string) (*model.Story, error) {
			return &model.Story{ID: "s1", Slug: "luna", Title: "Luna"}, nil
		},
		getBySlugFn: func(context.Context, string) (*model.Story, error) {
			return &model.Story{ID: "s2", Slug: "sleepy-forest"}, nil
		},
	}
	svc := newTestService(repo)

	_, err := svc.UpdateStory(context.Background(), "s1", Input{Title: "Luna", Slug: "sleepy-forest"})
	var ve *model.ValidationError
	if !errors.As(err, &ve) || !ve.Duplicate {
		t.Fatalf("expected duplicate ValidationError, got %v", err)
	}
}

func TestService_DeleteStory(t *testing.T) {
	repo := &mockStoryRepo{
		deleteFn: func(_ context.Context, id string) (bool, error) { return id == "s1", nil },
	}
	svc := newTestService(repo)

	if ok, err := svc.DeleteStory(context.Background(), "s1"); err != nil || !ok {
		t.Errorf("DeleteStory(s1) = %v, %v", ok, err)
	}
	if ok, err := svc.DeleteStory(context.Background(), "s2"); err != nil || ok {
		t.Errorf("DeleteStory(s2) = %v, %v", ok, err)
	}
}

// --- ImportStory ---

func TestService_ImportStory_InsertsNewStory(t *testing.T) {
	repo := &mockStoryRepo{}
	svc := newTestService(repo)

	imported, err := svc.ImportStory(context.Background(), model.StoryDraft{
		Slug:  "owl-lullaby",
		Title: "Owl Lullaby",
		Body:  "<p>Hoo hoo</p>",
		Tags:  []string{" Animals ", ""},
	})
	if err != nil || !imported {
		t.Fatalf("ImportStory = %v, %v; want true, nil", imported, err)
	}
	if len(repo.inserted) != 1 {
		t.Fatalf("inserted = %d, want 1", len(repo.inserted))
	}
	d := repo.inserted[0]
	if d.Excerpt != "Hoo hoo" || len(d.Tags) != 1 || d.Tags[0] != "Animals" {
		t.Errorf("draft was not normalized: %+v", d)
	}
}

func TestService_ImportStory_SkipsExistingSlug(t *testing.T) {
	repo := &mockStoryRepo{
		getBySlugFn: func(_ context.Context, slug string) (*model.Story, error) {
			return &model.Story{ID: "x", Slug: slug}, nil
		},
	}
	svc := newTestService(repo)

	imported, err := svc.ImportStory(context.Background(), model.StoryDraft{Slug: "owl", Title: "Owl"})
	if err != nil || imported {
		t.Fatalf("ImportStory = %v, %v; want false, nil", imported, err)
	}
	if len(repo.inserted) != 0 {
		t.Error("existing slug should not be inserted again")
	}
}

func TestService_ImportStory_DuplicateRaceIsSkipped(t *testing.T) {
	repo := &mockStoryRepo{
		insertFn: func(_ context.Context, d model.StoryDraft) (*model.Story, error) {
			return nil, model.NewDuplicateSlugError(d.Slug, errors.New("23505"))
		},
	}
	svc := newTestService(repo)

	imported, err := svc.ImportStory(context.Background(), model.StoryDraft{Slug: "owl", Title: "Owl"})
	if err != nil || imported {
		t.Fatalf("ImportStory = %v, %v; want false, nil", imported, err)
	}
}

func TestService_ImportStory_FetchError(t *testing.T) {
	repo := &mockStoryRepo{
		insertFn: func(context.Context, model.StoryDraft) (*model.Story, error) {
			return nil, model.NewFetchError("InsertStory", errors.New("reset by peer"))
		},
	}
	svc := newTestService(repo)

	_, err := svc.ImportStory(context.Background(), model.StoryDraft{Slug: "owl", Title: "Owl"})
	if !model.IsFetchError(err) {
		t.Fatalf("expected FetchError, got %v", err)
	}
}
