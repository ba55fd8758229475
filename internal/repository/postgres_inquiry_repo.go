package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/snoozies/dreamyhaven/internal/model"
)

// PostgresInquiryRepo はPostgreSQLを使用したお問い合わせリポジトリ。
// お問い合わせ、ストーリー提案、ニュースレター登録の3テーブルを扱う。
type PostgresInquiryRepo struct {
	db *sql.DB
}

// NewPostgresInquiryRepo はPostgresInquiryRepoを生成する。
func NewPostgresInquiryRepo(db *sql.DB) *PostgresInquiryRepo {
	return &PostgresInquiryRepo{db: db}
}

// CreateContactMessage はお問い合わせメッセージを保存する。
func (r *PostgresInquiryRepo) CreateContactMessage(ctx context.Context, msg *model.ContactMessage) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO contact_messages (id, first_name, last_name, email, subject, message, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		msg.ID, msg.FirstName, msg.LastName, msg.Email, msg.Subject, msg.Message, msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("お問い合わせの保存に失敗しました: %w", err)
	}
	return nil
}

// CreateSuggestion はストーリー提案を保存する。
func (r *PostgresInquiryRepo) CreateSuggestion(ctx context.Context, s *model.StorySuggestion) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO story_suggestions (id, parent_name, email, child_name, child_age,
		                                story_idea, themes, characters, additional_details, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		s.ID, s.ParentName, s.Email,
		nullString(s.ChildName), nullString(s.ChildAge),
		s.StoryIdea, nullString(s.Themes), nullString(s.Characters),
		nullString(s.AdditionalDetails), s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("ストーリー提案の保存に失敗しました: %w", err)
	}
	return nil
}

// CreateNewsletterSignup はニュースレター登録を保存する。
// 同じメールアドレスが再登録された場合は状態と購読者IDを上書きする。
func (r *PostgresInquiryRepo) CreateNewsletterSignup(ctx context.Context, signup *model.NewsletterSignup) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO newsletter_signups (id, email, status, subscriber_id, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (email) DO UPDATE SET
		    status = EXCLUDED.status,
		    subscriber_id = COALESCE(EXCLUDED.subscriber_id, newsletter_signups.subscriber_id)`,
		signup.ID, signup.Email, signup.Status, nullString(signup.SubscriberID), signup.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("ニュースレター登録の保存に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ InquiryRepository = (*PostgresInquiryRepo)(nil)
