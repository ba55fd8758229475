// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/snoozies/dreamyhaven/internal/model"
)

// StoryRepository はストーリーコレクションへの型付きアクセスを提供する。
// ストア障害は*model.FetchError、制約違反やレコード形状の不一致は
// *model.ValidationErrorとして返す。一覧は公開日時の降順で返す。
type StoryRepository interface {
	// GetAllStories は全ストーリーを返す。0件の場合は空スライスを返す。
	GetAllStories(ctx context.Context) ([]model.Story, error)

	// GetStoryBySlug はslugに一致するストーリーを返す。見つからない場合はnilを返す。
	GetStoryBySlug(ctx context.Context, slug string) (*model.Story, error)

	// GetStoriesByTag はタグ集合にtagを含むストーリーを返す。
	GetStoriesByTag(ctx context.Context, tag string) ([]model.Story, error)

	// SearchStories はtitle、summary、excerptのいずれかに
	// termを大文字小文字を区別せず部分一致で含むストーリーを返す。
	SearchStories(ctx context.Context, term string) ([]model.Story, error)

	// InsertStory はドラフトを永続化し、採番済みフィールドを含むレコードを返す。
	InsertStory(ctx context.Context, draft model.StoryDraft) (*model.Story, error)

	// FindByID は指定IDのストーリーを返す。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Story, error)

	// UpdateStory は指定IDのストーリーをドラフトの内容で更新する。
	// 見つからない場合はnilを返す。
	UpdateStory(ctx context.Context, id string, draft model.StoryDraft) (*model.Story, error)

	// DeleteStory は指定IDのストーリーを削除する。削除した場合はtrueを返す。
	DeleteStory(ctx context.Context, id string) (bool, error)
}

// UserRepository は管理者ユーザーの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// CreateWithIdentity はユーザーとidentityを同一トランザクションで作成する。
	CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error

	// TouchLastLogin は最終ログイン日時を更新する。
	TouchLastLogin(ctx context.Context, id string) error
}

// IdentityRepository は外部IdP紐付け情報の永続化インターフェース。
type IdentityRepository interface {
	// FindByProviderAndProviderUserID はproviderとprovider_user_idでidentityを検索する。
	// 見つからない場合はnilを返す。
	FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除し、削除件数を返す。
	DeleteByUserID(ctx context.Context, userID string) (int64, error)
}

// SourceRepository はインポート元フィードの永続化インターフェース。
type SourceRepository interface {
	// FindByID は指定IDのインポート元を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.ImportSource, error)

	// FindByFeedURL はフィードURLでインポート元を検索する。見つからない場合はnilを返す。
	FindByFeedURL(ctx context.Context, feedURL string) (*model.ImportSource, error)

	// List は登録済みの全インポート元を作成日時の降順で返す。
	List(ctx context.Context) ([]*model.ImportSource, error)

	// Create はインポート元を作成する。
	Create(ctx context.Context, src *model.ImportSource) error

	// Delete は指定IDのインポート元を削除する。削除した場合はtrueを返す。
	Delete(ctx context.Context, id string) (bool, error)

	// ListDueForFetch はnext_fetch_at <= now() かつ active のインポート元を
	// FOR UPDATE SKIP LOCKEDで排他的に取得する。
	ListDueForFetch(ctx context.Context) ([]*model.ImportSource, error)

	// UpdateFetchState はフェッチ状態（status、連続エラー、次回時刻、ETag等）を更新する。
	UpdateFetchState(ctx context.Context, src *model.ImportSource) error
}

// InquiryRepository はお問い合わせ、ストーリー提案、ニュースレター登録の永続化インターフェース。
type InquiryRepository interface {
	// CreateContactMessage はお問い合わせメッセージを保存する。
	CreateContactMessage(ctx context.Context, msg *model.ContactMessage) error
	// CreateSuggestion はストーリー提案を保存する。
	CreateSuggestion(ctx context.Context, s *model.StorySuggestion) error
	// CreateNewsletterSignup はニュースレター登録を保存する。
	CreateNewsletterSignup(ctx context.Context, signup *model.NewsletterSignup) error
}
