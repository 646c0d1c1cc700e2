package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const userIDKey contextKey = "userID"

// ErrEmptySecret — секрет подписи не задан. С пустым ключом HS256 подделывается кем угодно.
var ErrEmptySecret = errors.New("секрет подписи токенов не задан")

// AuthCookieName — cookie с токеном (для веб-клиента).
const AuthCookieName = "auth_token"

// Auth проверяет JWT (HS256), выданный сервисом идентификации. user_id лежит в claim sub.
// Токен берётся из заголовка Authorization: Bearer или из cookie auth_token.
type Auth struct {
	secretKey []byte
	now       func() time.Time
}

// NewAuth создаёт проверку токенов с секретом secret.
func NewAuth(secret string) *Auth {
	return &Auth{secretKey: []byte(secret), now: time.Now}
}

// Middleware кладёт user_id в контекст запроса или отвечает 401.
func (a *Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := tokenFromRequest(r)
		if token == "" {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		userID, ok := a.ParseToken(token)
		if !ok {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
	})
}

// SignUserID выпускает токен для userID со сроком жизни ttl.
func (a *Auth) SignUserID(userID int64, ttl time.Duration) (string, error) {
	if len(a.secretKey) == 0 {
		return "", ErrEmptySecret
	}
	now := a.now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secretKey)
}

// ParseToken проверяет подпись и срок действия и возвращает user_id.
// С пустым секретом не принимается ни один токен.
func (a *Auth) ParseToken(token string) (int64, bool) {
	if len(a.secretKey) == 0 {
		return 0, false
	}
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return a.secretKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil || !parsed.Valid {
		return 0, false
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if cookie, err := r.Cookie(AuthCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// WithUserID кладёт user_id в контекст.
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// GetUserIDFromContext извлекает идентификатор пользователя из контекста запроса.
func GetUserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey).(int64)
	return id, ok
}
