package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ScopeIngest は自動投稿APIに必要なトークンのスコープ。
const ScopeIngest = "ingest"

// ErrInvalidToken はトークンの署名、有効期限、スコープのいずれかが不正であることを表す。
var ErrInvalidToken = errors.New("invalid token")

// ingestClaims は自動投稿トークンのクレーム。
type ingestClaims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// TokenIssuer は自動投稿クライアント向けのHS256 JWTを発行・検証する。
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer はTokenIssuerを生成する。
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue はsubjectに対するingestスコープのトークンと有効期限を返す。
func (i *TokenIssuer) Issue(subject string) (string, time.Time, error) {
	if subject == "" {
		return "", time.Time{}, errors.New("subject is required")
	}
	now := i.now()
	expiresAt := now.Add(i.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, ingestClaims{
		Scope: ScopeIngest,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("トークンの署名に失敗しました: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify はトークンを検証し、subjectを返す。
// HS256以外の署名、期限切れ、ingest以外のスコープはErrInvalidTokenとする。
func (i *TokenIssuer) Verify(tokenString string) (string, error) {
	claims := &ingestClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (interface{}, error) { return i.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Scope != ScopeIngest {
		return "", fmt.Errorf("%w: unexpected scope %q", ErrInvalidToken, claims.Scope)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims.Subject, nil
}
