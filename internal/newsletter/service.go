package newsletter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/snoozies/dreamyhaven/internal/metrics"
	"github.com/snoozies/dreamyhaven/internal/model"
)

var (
	// ErrInvalidEmail はメールアドレスの形式が不正であることを表す。
	ErrInvalidEmail = errors.New("メールアドレスの形式が不正です")
	// ErrSubscribeFailed は配信サービスへの登録に失敗したことを表す。
	ErrSubscribeFailed = errors.New("ニュースレターの登録に失敗しました")
)

// SignupRecorder は登録記録の保存先。repository.InquiryRepositoryが満たす。
type SignupRecorder interface {
	CreateNewsletterSignup(ctx context.Context, signup *model.NewsletterSignup) error
}

// Service はニュースレター登録のユースケースを提供する。
type Service struct {
	recorder   SignupRecorder
	subscriber Subscriber // nilの場合は配信サービス未設定として保留扱いにする
	metrics    metrics.MetricsCollector
	logger     *slog.Logger
	now        func() time.Time
}

// NewService はServiceを生成する。subscriberとcollectorはnilでもよい。
func NewService(recorder SignupRecorder, subscriber Subscriber, collector metrics.MetricsCollector, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		recorder:   recorder,
		subscriber: subscriber,
		metrics:    collector,
		logger:     logger,
		now:        time.Now,
	}
}

// Signup はメールアドレスを検証して配信サービスへ登録し、結果を記録する。
// 配信サービスへの登録に失敗した場合もfailedとして記録したうえでErrSubscribeFailedを返す。
func (s *Service) Signup(ctx context.Context, email string) (*model.NewsletterSignup, error) {
	addr, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}

	signup := &model.NewsletterSignup{
		ID:        uuid.New().String(),
		Email:     addr,
		Status:    model.SignupStatusPending,
		CreatedAt: s.now().UTC(),
	}

	var subscribeErr error
	if s.subscriber != nil {
		id, err := s.subscriber.Subscribe(ctx, addr)
		if err != nil {
			subscribeErr = err
			signup.Status = model.SignupStatusFailed
		} else {
			signup.Status = model.SignupStatusSubscribed
			signup.SubscriberID = id
		}
	}

	if err := s.recorder.CreateNewsletterSignup(ctx, signup); err != nil {
		return nil, fmt.Errorf("ニュースレター登録の記録に失敗しました: %w", err)
	}
	if s.metrics != nil {
		s.metrics.RecordNewsletterSignup(signup.Status)
	}

	if subscribeErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrSubscribeFailed, subscribeErr)
	}

	s.logger.InfoContext(ctx, "newsletter signup recorded",
		slog.String("signup_id", signup.ID),
		slog.String("status", string(signup.Status)),
	)
	return signup, nil
}

// NormalizeEmail はメールアドレスを検証し、前後の空白を除いた小文字の形式で返す。
// 表示名付きの形式（"Name <a@b>"）は受け付けない。
func NormalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidEmail, email)
	}
	return strings.ToLower(addr.Address), nil
}
