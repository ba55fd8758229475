package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/snoozies/dreamyhaven/internal/catalog"
	"github.com/snoozies/dreamyhaven/internal/inquiry"
	"github.com/snoozies/dreamyhaven/internal/middleware"
	"github.com/snoozies/dreamyhaven/internal/model"
	"github.com/snoozies/dreamyhaven/internal/story"
)

// --- モック定義 ---

type mockAuthService struct {
	getLoginURLFn    func(state string) string
	handleCallbackFn func(ctx context.Context, code string) (*model.Session, error)
	logoutFn         func(ctx context.Context, sessionID string) error
	getCurrentUserFn func(ctx context.Context, sessionID string) (*model.User, error)
}

func (m *mockAuthService) GetLoginURL(state string) string {
	if m.getLoginURLFn != nil {
		return m.getLoginURLFn(state)
	}
	return ""
}

func (m *mockAuthService) HandleCallback(ctx context.Context, code string) (*model.Session, error) {
	if m.handleCallbackFn != nil {
		return m.handleCallbackFn(ctx, code)
	}
	return nil, nil
}

func (m *mockAuthService) Logout(ctx context.Context, sessionID string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, sessionID)
	}
	return nil
}

func (m *mockAuthService) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if m.getCurrentUserFn != nil {
		return m.getCurrentUserFn(ctx, sessionID)
	}
	return nil, nil
}

type mockStoryReader struct {
	listFn   func(ctx context.Context) ([]model.Story, error)
	getFn    func(ctx context.Context, slug string) (*model.Story, error)
	byTagFn  func(ctx context.Context, tag string) ([]model.Story, error)
	searchFn func(ctx context.Context, term string) ([]model.Story, error)
}

func (m *mockStoryReader) ListStories(ctx context.Context) ([]model.Story, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockStoryReader) GetStory(ctx context.Context, slug string) (*model.Story, error) {
	if m.getFn != nil {
		return m.getFn(ctx, slug)
	}
	return nil, nil
}

func (m *mockStoryReader) StoriesByTag(ctx context.Context, tag string) ([]model.Story, error) {
	if m.byTagFn != nil {
		return m.byTagFn(ctx, tag)
	}
	return nil, nil
}

func (m *mockStoryReader) Search(ctx context.Context, term string) ([]model.Story, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, term)
	}
	return nil, nil
}

type mockStoryWriter struct {
	createFn func(ctx context.Context, in story.Input) (*model.Story, error)
	updateFn func(ctx context.Context, id string, in story.Input) (*model.Story, error)
	deleteFn func(ctx context.Context, id string) (bool, error)
}

func (m *mockStoryWriter) CreateStory(ctx context.Context, in story.Input) (*model.Story, error) {
	if m.createFn != nil {
		return m.createFn(ctx, in)
	}
	return &model.Story{ID: "story-1", Slug: "s", Title: in.Title}, nil
}

func (m *mockStoryWriter) UpdateStory(ctx context.Context, id string, in story.Input) (*model.Story, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, id, in)
	}
	return nil, nil
}

func (m *mockStoryWriter) DeleteStory(ctx context.Context, id string) (bool, error) {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return false, nil
}

type mockUploader struct {
	uploadFn func(ctx context.Context, bucket, filename, contentType string, r io.Reader) (string, error)
}

func (m *mockUploader) Upload(ctx context.Context, bucket, filename, contentType string, r io.Reader) (string, error) {
	if m.uploadFn != nil {
		return m.uploadFn(ctx, bucket, filename, contentType, r)
	}
	return "", nil
}

type mockSourceService struct {
	registerFn func(ctx context.Context, inputURL string, tags []string) (*model.ImportSource, error)
	listFn     func(ctx context.Context) ([]*model.ImportSource, error)
	deleteFn   func(ctx context.Context, id string) error
	resumeFn   func(ctx context.Context, id string) (*model.ImportSource, error)
}

func (m *mockSourceService) Register(ctx context.Context, inputURL string, tags []string) (*model.ImportSource, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, inputURL, tags)
	}
	return nil, nil
}

func (m *mockSourceService) List(ctx context.Context) ([]*model.ImportSource, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockSourceService) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

func (m *mockSourceService) Resume(ctx context.Context, id string) (*model.ImportSource, error) {
	if m.resumeFn != nil {
		return m.resumeFn(ctx, id)
	}
	return nil, nil
}

type mockInquiryService struct {
	contactFn    func(ctx context.Context, in inquiry.ContactInput) (*model.ContactMessage, error)
	suggestionFn func(ctx context.Context, in inquiry.SuggestionInput) (*model.StorySuggestion, error)
}

func (m *mockInquiryService) SubmitContact(ctx context.Context, in inquiry.ContactInput) (*model.ContactMessage, error) {
	if m.contactFn != nil {
		return m.contactFn(ctx, in)
	}
	return &model.ContactMessage{ID: "contact-1"}, nil
}

func (m *mockInquiryService) SubmitSuggestion(ctx context.Context, in inquiry.SuggestionInput) (*model.StorySuggestion, error) {
	if m.suggestionFn != nil {
		return m.suggestionFn(ctx, in)
	}
	return &model.StorySuggestion{ID: "suggestion-1"}, nil
}

type mockNewsletterService struct {
	signupFn func(ctx context.Context, email string) (*model.NewsletterSignup, error)
}

func (m *mockNewsletterService) Signup(ctx context.Context, email string) (*model.NewsletterSignup, error) {
	if m.signupFn != nil {
		return m.signupFn(ctx, email)
	}
	return &model.NewsletterSignup{Email: email, Status: model.SignupStatusPending}, nil
}

type stubBlog struct {
	posts []model.BlogPost
}

func (b *stubBlog) All() []model.BlogPost { return b.posts }

func (b *stubBlog) List(c catalog.Criteria) []model.BlogPost { return catalog.Filter(b.posts, c) }

func (b *stubBlog) Featured() *model.BlogPost {
	for i := range b.posts {
		if b.posts[i].Featured {
			return &b.posts[i]
		}
	}
	return nil
}

func (b *stubBlog) FindBySlug(slug string) *model.BlogPost {
	for i := range b.posts {
		if b.posts[i].Slug == slug {
			return &b.posts[i]
		}
	}
	return nil
}

func (b *stubBlog) Categories() []string { return catalog.CategoryOptions(b.posts) }

// --- compile-time interface checks ---
var (
	_ AuthServiceInterface = (*mockAuthService)(nil)
	_ StoryReader          = (*mockStoryReader)(nil)
	_ StoryWriter          = (*mockStoryWriter)(nil)
	_ AssetUploader        = (*mockUploader)(nil)
	_ SourceService        = (*mockSourceService)(nil)
	_ InquiryService       = (*mockInquiryService)(nil)
	_ NewsletterService    = (*mockNewsletterService)(nil)
	_ BlogCatalog          = (*stubBlog)(nil)
)

// --- ヘルパー ---

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("failed to decode body: %v\nraw: %s", err, w.Body.String())
	}
	return v
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	return decodeBody[middleware.ErrorResponseBody](t, w).Code
}
