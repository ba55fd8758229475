// Package inquiry はお問い合わせフォームとストーリー提案フォームの受付を扱う。
package inquiry

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/snoozies/dreamyhaven/internal/metrics"
	"github.com/snoozies/dreamyhaven/internal/model"
	"github.com/snoozies/dreamyhaven/internal/newsletter"
	"github.com/snoozies/dreamyhaven/internal/notify"
	"github.com/snoozies/dreamyhaven/internal/repository"
)

// 受付種別（メトリクスのラベル値）
const (
	KindContact    = "contact"
	KindSuggestion = "suggestion"
)

// 入力長の上限（rune数）
const (
	maxShortField = 200
	maxLongField  = 5000
)

// FieldError はフォーム入力の検証エラー。
type FieldError struct {
	Field  string
	Reason string
}

// Error はerrorインターフェースを実装する。
func (e *FieldError) Error() string {
	return fmt.Sprintf("入力値が不正です (%s): %s", e.Field, e.Reason)
}

// ContactInput はお問い合わせフォームの入力値。
type ContactInput struct {
	FirstName string
	LastName  string
	Email     string
	Subject   string
	Message   string
}

// SuggestionInput はストーリー提案フォームの入力値。
type SuggestionInput struct {
	ParentName        string
	Email             string
	ChildName         string
	ChildAge          string
	StoryIdea         string
	Themes            string
	Characters        string
	AdditionalDetails string
}

// Service は受付内容を検証して保存し、運営チームへ通知する。
// 通知の失敗はログに記録するだけで、受付自体は成功として扱う。
type Service struct {
	repo     repository.InquiryRepository
	notifier notify.Notifier
	metrics  metrics.MetricsCollector
	logger   *slog.Logger
	now      func() time.Time
}

// NewService はServiceを生成する。
func NewService(repo repository.InquiryRepository, notifier notify.Notifier, collector metrics.MetricsCollector, logger *slog.Logger) *Service {
	if notifier == nil {
		notifier = notify.NopNotifier{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		notifier: notifier,
		metrics:  collector,
		logger:   logger,
		now:      time.Now,
	}
}

// SubmitContact はお問い合わせを受け付ける。
func (s *Service) SubmitContact(ctx context.Context, in ContactInput) (*model.ContactMessage, error) {
	msg := &model.ContactMessage{
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Subject:   strings.TrimSpace(in.Subject),
		Message:   strings.TrimSpace(in.Message),
	}
	if err := firstError(
		limit("first_name", msg.FirstName, maxShortField),
		limit("last_name", msg.LastName, maxShortField),
		required("message", msg.Message),
		limit("message", msg.Message, maxLongField),
	); err != nil {
		return nil, err
	}
	email, err := validEmail(in.Email)
	if err != nil {
		return nil, err
	}
	msg.Email = email
	if msg.Subject == "" {
		msg.Subject = "General Question"
	}
	if !slices.Contains(model.ContactSubjects, msg.Subject) {
		return nil, &FieldError{Field: "subject", Reason: "unknown subject"}
	}

	msg.ID = uuid.New().String()
	msg.CreatedAt = s.now().UTC()
	if err := s.repo.CreateContactMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("お問い合わせの受付に失敗しました: %w", err)
	}
	s.record(KindContact)

	if err := s.notifier.NotifyContact(ctx, msg); err != nil {
		s.logger.WarnContext(ctx, "contact notification failed",
			slog.String("contact_id", msg.ID),
			slog.String("error", err.Error()),
		)
	}
	return msg, nil
}

// SubmitSuggestion はストーリー提案を受け付ける。
func (s *Service) SubmitSuggestion(ctx context.Context, in SuggestionInput) (*model.StorySuggestion, error) {
	sg := &model.StorySuggestion{
		ParentName:        strings.TrimSpace(in.ParentName),
		ChildName:         strings.TrimSpace(in.ChildName),
		ChildAge:          strings.TrimSpace(in.ChildAge),
		StoryIdea:         strings.TrimSpace(in.StoryIdea),
		Themes:            strings.TrimSpace(in.Themes),
		Characters:        strings.TrimSpace(in.Characters),
		AdditionalDetails: strings.TrimSpace(in.AdditionalDetails),
	}
	if err := firstError(
		required("parent_name", sg.ParentName),
		limit("parent_name", sg.ParentName, maxShortField),
		limit("child_name", sg.ChildName, maxShortField),
		limit("child_age", sg.ChildAge, maxShortField),
		required("story_idea", sg.StoryIdea),
		limit("story_idea", sg.StoryIdea, maxLongField),
		limit("themes", sg.Themes, maxLongField),
		limit("characters", sg.Characters, maxLongField),
		limit("additional_details", sg.AdditionalDetails, maxLongField),
	); err != nil {
		return nil, err
	}
	email, err := validEmail(in.Email)
	if err != nil {
		return nil, err
	}
	sg.Email = email

	sg.ID = uuid.New().String()
	sg.CreatedAt = s.now().UTC()
	if err := s.repo.CreateSuggestion(ctx, sg); err != nil {
		return nil, fmt.Errorf("ストーリー提案の受付に失敗しました: %w", err)
	}
	s.record(KindSuggestion)

	if err := s.notifier.NotifySuggestion(ctx, sg); err != nil {
		s.logger.WarnContext(ctx, "suggestion notification failed",
			slog.String("suggestion_id", sg.ID),
			slog.String("error", err.Error()),
		)
	}
	return sg, nil
}

func (s *Service) record(kind string) {
	if s.metrics != nil {
		s.metrics.RecordInquiry(kind)
	}
}

func validEmail(email string) (string, error) {
	if strings.TrimSpace(email) == "" {
		return "", &FieldError{Field: "email", Reason: "is required"}
	}
	addr, err := newsletter.NormalizeEmail(email)
	if err != nil {
		return "", &FieldError{Field: "email", Reason: "is not a valid email address"}
	}
	return addr, nil
}

func required(field, value string) error {
	if value == "" {
		return &FieldError{Field: field, Reason: "is required"}
	}
	return nil
}

func limit(field, value string, max int) error {
	if utf8.RuneCountInString(value) > max {
		return &FieldError{Field: field, Reason: fmt.Sprintf("must be at most %d characters", max)}
	}
	return nil
}

func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
