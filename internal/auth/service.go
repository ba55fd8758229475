// Package auth は管理者のOAuthログイン、セッション管理、自動投稿用トークンの発行を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/snoozies/dreamyhaven/internal/model"
	"github.com/snoozies/dreamyhaven/internal/repository"
)

// OAuthUserInfo はOAuthプロバイダーから取得したユーザー情報を表す。
type OAuthUserInfo struct {
	ProviderUserID string
	Email          string
	Name           string
	Provider       string
}

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
type OAuthProvider interface {
	// GetLoginURL はOAuth認証URLを生成する。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードをトークンに交換し、ユーザー情報を取得する。
	ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error)
}

// AdminPolicy はメールアドレスが管理画面へのログインを許可されているかを判定する。
// config.Configが満たす。
type AdminPolicy interface {
	IsAdminEmail(email string) bool
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// Service は管理者ログインに関するビジネスロジックを提供する。
// 許可リストにないアカウントはユーザーを作らずに拒否する。
type Service struct {
	oauth       OAuthProvider
	admins      AdminPolicy
	userRepo    repository.UserRepository
	identRepo   repository.IdentityRepository
	sessionRepo repository.SessionRepository
	config      ServiceConfig
	now         func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	oauth OAuthProvider,
	admins AdminPolicy,
	userRepo repository.UserRepository,
	identRepo repository.IdentityRepository,
	sessionRepo repository.SessionRepository,
	config ServiceConfig,
) *Service {
	return &Service{
		oauth:       oauth,
		admins:      admins,
		userRepo:    userRepo,
		identRepo:   identRepo,
		sessionRepo: sessionRepo,
		config:      config,
		now:         time.Now,
	}
}

// GetLoginURL はOAuth認証URLを生成する。
func (s *Service) GetLoginURL(state string) string {
	return s.oauth.GetLoginURL(state)
}

// HandleCallback はOAuthコールバックを処理し、セッションを発行する。
// 許可リストにないメールアドレスは*model.APIError(ADMIN_ONLY)を返す。
// 初回ログイン時はusersとidentitiesを同一トランザクションで作成する。
func (s *Service) HandleCallback(ctx context.Context, code string) (*model.Session, error) {
	userInfo, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange oauth code: %w", err)
	}

	if s.admins == nil || !s.admins.IsAdminEmail(userInfo.Email) {
		slog.WarnContext(ctx, "login rejected for non-admin account",
			slog.String("email", userInfo.Email),
			slog.String("provider", userInfo.Provider),
		)
		return nil, model.NewAdminOnlyError(userInfo.Email)
	}

	identity, err := s.identRepo.FindByProviderAndProviderUserID(ctx, userInfo.Provider, userInfo.ProviderUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find identity: %w", err)
	}

	var userID string
	if identity != nil {
		userID = identity.UserID
		if err := s.userRepo.TouchLastLogin(ctx, userID); err != nil {
			return nil, fmt.Errorf("failed to update last login: %w", err)
		}
		slog.InfoContext(ctx, "admin logged in",
			slog.String("user_id", userID),
			slog.String("provider", userInfo.Provider),
		)
	} else {
		now := s.now()
		user := &model.User{
			ID:          uuid.New().String(),
			Email:       userInfo.Email,
			Name:        userInfo.Name,
			LastLoginAt: &now,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		newIdentity := &model.Identity{
			ID:             uuid.New().String(),
			UserID:         user.ID,
			Provider:       userInfo.Provider,
			ProviderUserID: userInfo.ProviderUserID,
			CreatedAt:      now,
		}
		if err := s.userRepo.CreateWithIdentity(ctx, user, newIdentity); err != nil {
			return nil, fmt.Errorf("failed to create user and identity: %w", err)
		}
		userID = user.ID
		slog.InfoContext(ctx, "admin account created",
			slog.String("user_id", userID),
			slog.String("email", userInfo.Email),
			slog.String("provider", userInfo.Provider),
		)
	}

	session, err := s.createSession(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

// Logout はセッションを破棄する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}
	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	slog.InfoContext(ctx, "admin logged out")
	return nil
}

// GetCurrentUser はセッションから現在のユーザーを取得する。
// 許可リストから外されたユーザーはセッションが残っていても拒否する。
func (s *Service) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session ID is required")
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, fmt.Errorf("session not found or expired")
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("user not found")
	}
	if s.admins == nil || !s.admins.IsAdminEmail(user.Email) {
		return nil, model.NewAdminOnlyError(user.Email)
	}
	return user, nil
}

// FindByID は許可リストに残っている管理者のセッションを返す。
// セッションが無い場合や許可リストから外された場合はnilを返す。
// 管理APIのセッションミドルウェアはこのメソッドでリクエストごとに許可リストを確認する。
func (s *Service) FindByID(ctx context.Context, sessionID string) (*model.Session, error) {
	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil || session == nil {
		return nil, err
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user != nil && s.admins != nil && s.admins.IsAdminEmail(user.Email) {
		return session, nil
	}

	// 許可リストから外れたユーザーのセッションはまとめて失効させる
	if _, err := s.sessionRepo.DeleteByUserID(ctx, session.UserID); err != nil {
		return nil, fmt.Errorf("failed to revoke sessions: %w", err)
	}
	return nil, nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := s.now()
	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: now,
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	return session, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
