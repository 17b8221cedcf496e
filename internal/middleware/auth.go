package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"shopflow-backend/internal/entities"
	"shopflow-backend/pkg/utils"

	"github.com/golang-jwt/jwt/v5"
)

type userKey struct{}

type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

type UserGetter interface {
	GetUserByID(ctx context.Context, userID string) (entities.User, error)
}

// Auth verifies the bearer token and resolves the user record, so deleted
// accounts lose access even while their tokens are still fresh. Token
// issuance belongs to the auth service; this side only verifies.
func Auth(logger *slog.Logger, secret string, users UserGetter) func(next http.Handler) http.Handler {
	key := []byte(secret)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := extractToken(r)
			if tokenStr == "" {
				utils.WriteError(w, "authentication required", http.StatusUnauthorized)
				return
			}

			claims := new(Claims)
			token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return key, nil
			})
			if err != nil || !token.Valid {
				utils.WriteError(w, "invalid token", http.StatusUnauthorized)
				return
			}

			user, err := users.GetUserByID(r.Context(), claims.UserID)
			if errors.Is(err, entities.ErrUserNotFound) {
				utils.WriteError(w, "user not found", http.StatusUnauthorized)
				return
			}
			if err != nil {
				logger.ErrorContext(r.Context(), "failed to resolve user", slog.Any("error", err))
				utils.WriteError(w, "internal server error", http.StatusInternalServerError)
				return
			}

			ctx := context.WithValue(r.Context(), userKey{}, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFromContext returns the authenticated user put there by Auth.
func UserFromContext(ctx context.Context) (entities.User, bool) {
	user, ok := ctx.Value(userKey{}).(entities.User)
	return user, ok
}

// WithUser is a test helper for handlers that expect an authenticated
// context.
func WithUser(ctx context.Context, user entities.User) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

func extractToken(r *http.Request) string {
	if cookie, err := r.Cookie("access_token"); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}
