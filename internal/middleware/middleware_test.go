package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sign(t *testing.T, a *Auth, userID int64) string {
	t.Helper()
	token, err := a.SignUserID(userID, time.Hour)
	require.NoError(t, err)
	return token
}

func TestAuth_BearerToken(t *testing.T) {
	a := NewAuth("test-secret")

	var got int64
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := GetUserIDFromContext(r.Context())
		require.True(t, ok)
		got = id
	})

	r := httptest.NewRequest(http.MethodGet, "/api/ledger", nil)
	r.Header.Set("Authorization", "Bearer "+sign(t, a, 42))
	w := httptest.NewRecorder()

	a.Middleware(next).ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(42), got)
}

func TestAuth_Cookie(t *testing.T) {
	a := NewAuth("test-secret")
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })

	r := httptest.NewRequest(http.MethodGet, "/api/ledger", nil)
	r.AddCookie(&http.Cookie{Name: AuthCookieName, Value: sign(t, a, 7)})

	a.Middleware(next).ServeHTTP(httptest.NewRecorder(), r)
	assert.True(t, called)
}

func TestAuth_Rejects(t *testing.T) {
	a := NewAuth("test-secret")
	other := NewAuth("other-secret")
	expired, err := a.SignUserID(42, -time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
	}{
		{"нет токена", ""},
		{"не bearer", "Basic dXNlcjpwYXNz"},
		{"чужой секрет", "Bearer " + sign(t, other, 42)},
		{"истёкший", "Bearer " + expired},
		{"без подписи", "Bearer 42"},
		{"нулевой id", "Bearer " + sign(t, a, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("next не должен вызываться")
			})

			r := httptest.NewRequest(http.MethodGet, "/api/ledger", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			a.Middleware(next).ServeHTTP(w, r)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestAuth_EmptySecret(t *testing.T) {
	a := NewAuth("")

	_, err := a.SignUserID(42, time.Hour)
	require.ErrorIs(t, err, ErrEmptySecret)

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "42",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte{})
	require.NoError(t, err)

	_, ok := a.ParseToken(forged)
	assert.False(t, ok)
}

func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	defer rl.Close()

	now := time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow(1))
	assert.True(t, rl.Allow(1))
	assert.False(t, rl.Allow(1))
	assert.True(t, rl.Allow(2), "лимит считается на пользователя")

	now = now.Add(time.Minute + time.Second)
	assert.True(t, rl.Allow(1), "окно сдвинулось")
}

func TestRateLimiter_Middleware(t *testing.T) {
	rl := NewRateLimiter(1, 30*time.Second)
	defer rl.Close()

	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	send := func() *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r = r.WithContext(WithUserID(r.Context(), 5))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		return w
	}

	assert.Equal(t, http.StatusOK, send().Code)
	w := send()
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "30", w.Header().Get("Retry-After"))
}

func TestRecoverer(t *testing.T) {
	h := Recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRecoverFromPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		defer RecoverFromPanic()
		panic("boom")
	})
}

func TestRequestLogger_PassesStatus(t *testing.T) {
	h := RequestLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, w.Code)
}
