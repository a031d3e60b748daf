package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CookieName — cookie с JWT.
const CookieName = "auth_token"

// TokenTTL — время жизни токена.
const TokenTTL = 30 * 24 * time.Hour

// Тип для ключа контекста.
type contextKey string

const userIDKey contextKey = "userID"

type claims struct {
	UserID int64 `json:"user_id"`
	jwt.RegisteredClaims
}

// BuildToken подписывает JWT с идентификатором пользователя.
func BuildToken(userID int64, secret string) (string, error) {
	now := time.Now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
		},
	})
	return tok.SignedString([]byte(secret))
}

func parseToken(raw, secret string) (int64, error) {
	c := &claims{}
	token, err := jwt.ParseWithClaims(raw, c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return 0, err
	}
	if !token.Valid {
		return 0, fmt.Errorf("invalid token")
	}
	return c.UserID, nil
}

// SetLoginCookie выставляет cookie с JWT для userID.
func SetLoginCookie(w http.ResponseWriter, userID int64, secret string) error {
	tok, err := BuildToken(userID, secret)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    tok,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(TokenTTL),
	})
	return nil
}

// WithAuth кладёт user_id в контекст, если cookie содержит валидный токен.
// Без cookie или с невалидным токеном запрос проходит анонимно.
func WithAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, err := r.Cookie(CookieName)
			if err != nil || c.Value == "" {
				next.ServeHTTP(w, r)
				return
			}
			uid, err := parseToken(c.Value, secret)
			if err != nil {
				if logger != nil {
					logger.Debugw("auth token rejected", "error", err)
				}
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey, uid)))
		})
	}
}

// RequireAuth отвечает 401 анонимным запросам.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := GetUserIDFromContext(r.Context()); !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetUserIDFromContext извлекает user_id из контекста запроса.
func GetUserIDFromContext(ctx context.Context) (int64, bool) {
	uid, ok := ctx.Value(userIDKey).(int64)
	return uid, ok
}
