package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/snoozies/dreamyhaven/internal/model"
)

// TokenVerifier はBearerトークンを検証してsubjectを返す。auth.TokenIssuerが満たす。
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// NewBearerAuthMiddleware はAuthorizationヘッダーのBearerトークンを検証し、
// subjectをコンテキストに注入するミドルウェアを返す。
// 自動投稿APIのようにCookieを使わないクライアント向け。
func NewBearerAuthMiddleware(verifier TokenVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			subject, err := verifier.Verify(strings.TrimSpace(token))
			if err != nil {
				slog.WarnContext(r.Context(), "bearer token rejected",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			ctx := context.WithValue(r.Context(), tokenSubjectContextKey, subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// TokenSubjectFromContext はBearer認証で確認したsubjectを返す。
func TokenSubjectFromContext(ctx context.Context) (string, bool) {
	subject, ok := ctx.Value(tokenSubjectContextKey).(string)
	return subject, ok && subject != ""
}
