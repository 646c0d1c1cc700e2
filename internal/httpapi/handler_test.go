package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/heartpoints/internal/common"
	"serotonyl.ru/heartpoints/internal/features/leaderboard"
	"serotonyl.ru/heartpoints/internal/features/ledger"
	"serotonyl.ru/heartpoints/internal/features/streak"
	"serotonyl.ru/heartpoints/internal/features/tasks"
	"serotonyl.ru/heartpoints/internal/metrics"
	"serotonyl.ru/heartpoints/internal/middleware"
)

const testSecret = "test-secret"

type stubClock struct{ t time.Time }

func (c stubClock) Now() time.Time { return c.t }

// memStore — хранилище статистики в памяти на тех же правилах, что и БД.
type memStore struct {
	mu       sync.Mutex
	records  map[int64]ledger.UserStats
	applyErr error
}

func (s *memStore) Get(_ context.Context, userID int64) (*ledger.UserStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.records[userID]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &st, nil
}

func (s *memStore) Create(_ context.Context, stats *ledger.UserStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[stats.UserID]; ok {
		return common.ErrAlreadyExists
	}
	s.records[stats.UserID] = *stats
	return nil
}

func (s *memStore) Update(context.Context, int64, ledger.StatsPatch) error { return nil }

func (s *memStore) Apply(_ context.Context, userID int64, m ledger.Mutation) (*ledger.UserStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.applyErr != nil {
		return nil, s.applyErr
	}
	next, err := ledger.ApplyMutation(s.records[userID], m, time.Now())
	if err != nil {
		return nil, err
	}
	s.records[userID] = next
	return &next, nil
}

type stubJournal struct{ entries []*ledger.JournalEntry }

func (j *stubJournal) History(context.Context, int64, int) ([]*ledger.JournalEntry, error) {
	return j.entries, nil
}

type stubTasks struct {
	created  *tasks.Task
	complete error
}

func (s *stubTasks) Create(_ context.Context, userID int64, title string, repeat tasks.RepeatType) (*tasks.Task, error) {
	s.created = &tasks.Task{ID: 1, UserID: userID, Title: title, RepeatType: repeat}
	return s.created, nil
}

func (s *stubTasks) List(context.Context, int64) ([]*tasks.Task, error) { return nil, nil }

func (s *stubTasks) Complete(ctx context.Context, session tasks.Ledger, taskID int64) (*tasks.CompletionResult, error) {
	if s.complete != nil {
		return nil, s.complete
	}
	award, err := session.Award(ctx, streak.PointsPerTask, true)
	if err != nil {
		return nil, err
	}
	return &tasks.CompletionResult{
		Task:        &tasks.Task{ID: taskID, Completed: true},
		PointsDelta: award.Amount,
		Balance:     award.Balance,
		Streak:      award.Streak,
		StreakBonus: award.StreakBonus,
	}, nil
}

func (s *stubTasks) Uncomplete(context.Context, tasks.Ledger, int64) (*tasks.CompletionResult, error) {
	return nil, common.ErrTaskNotCompleted
}

type stubBoard struct{ registered map[int64]string }

func (b *stubBoard) Register(_ context.Context, userID int64, name string, _ *int64) error {
	b.registered[userID] = name
	return nil
}

func (b *stubBoard) Top(context.Context, int) ([]leaderboard.Entry, error) {
	return []leaderboard.Entry{{Rank: 1, UserID: 42, Name: "Игрок 42", Score: 100}}, nil
}

type stubAdmin struct{ cleared []int64 }

func (a *stubAdmin) ClearUserData(_ context.Context, _, targetID int64, password string) error {
	if password != "secret" {
		return common.ErrWrongPassword
	}
	a.cleared = append(a.cleared, targetID)
	return nil
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

type testAPI struct {
	store   *memStore
	tasks   *stubTasks
	board   *stubBoard
	admin   *stubAdmin
	pinger  *stubPinger
	auth    *middleware.Auth
	metrics *metrics.Metrics
	server  http.Handler
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	api := &testAPI{
		store:   &memStore{records: map[int64]ledger.UserStats{}},
		tasks:   &stubTasks{},
		board:   &stubBoard{registered: map[int64]string{}},
		admin:   &stubAdmin{},
		pinger:  &stubPinger{},
		auth:    middleware.NewAuth(testSecret),
		metrics: metrics.New(),
	}

	clock := stubClock{t: time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC)}
	manager := ledger.NewManager(api.store, nil, clock, streak.DefaultRules())
	h := NewHandler(manager, &stubJournal{}, api.tasks, api.board, api.admin, api.pinger)
	api.server = h.Router(RouterOptions{
		Auth:        api.auth,
		Metrics:     api.metrics,
		CORSOrigins: []string{"https://app.example"},
	})
	return api
}

func (api *testAPI) do(t *testing.T, method, path string, userID int64, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if userID != 0 {
		token, err := api.auth.SignUserID(userID, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	api.server.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestAPI_RequiresAuth(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodGet, "/api/ledger", 0, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPI_LoginAndSnapshot(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/api/session/login", 42, loginRequest{DisplayName: "Аня"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Аня", api.board.registered[42])

	snap := decode[ledger.Snapshot](t, rec)
	assert.Equal(t, int64(42), snap.UserID)
	assert.Zero(t, snap.HeartPoints)

	rec = api.do(t, http.MethodGet, "/api/ledger", 42, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestAPI_AwardAndSpend(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/api/ledger/award", 42, awardRequest{Points: 20, IsDailyTask: true})
	require.Equal(t, http.StatusOK, rec.Code)
	award := decode[ledger.AwardResult](t, rec)
	assert.Equal(t, int64(12), award.Amount)
	assert.Equal(t, 1, award.Streak)
	assert.True(t, award.StreakBonus)

	rec = api.do(t, http.MethodPost, "/api/ledger/spend", 42, spendRequest{Points: 200})
	require.Equal(t, http.StatusPaymentRequired, rec.Code)
	spend := decode[spendResponse](t, rec)
	assert.False(t, spend.Success)
	assert.Equal(t, int64(12), spend.Balance)

	rec = api.do(t, http.MethodPost, "/api/ledger/spend", 42, spendRequest{Points: 5})
	require.Equal(t, http.StatusOK, rec.Code)
	spend = decode[spendResponse](t, rec)
	assert.True(t, spend.Success)
	assert.Equal(t, int64(7), spend.Balance)

	rec = api.do(t, http.MethodPost, "/api/ledger/spend", 42, spendRequest{Points: 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_AwardBounds(t *testing.T) {
	api := newTestAPI(t)
	limit := streak.DefaultRules().PointsPerTask

	for _, points := range []int64{0, limit + 1, -limit - 1, 1_000_000, math.MaxInt64} {
		rec := api.do(t, http.MethodPost, "/api/ledger/award", 42, awardRequest{Points: points})
		assert.Equal(t, http.StatusBadRequest, rec.Code, "points=%d", points)
	}

	snap := decode[ledger.Snapshot](t, api.do(t, http.MethodGet, "/api/ledger", 42, nil))
	assert.Zero(t, snap.HeartPoints)

	rec := api.do(t, http.MethodPost, "/api/ledger/award", 42, awardRequest{Points: limit})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, limit, decode[ledger.AwardResult](t, rec).Balance)
}

func TestAPI_TasksCompletedCounter(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/api/ledger/tasks-completed", 42, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), decode[tasksCompletedResponse](t, rec).TotalTasksCompleted)
}

func TestAPI_StoreUnavailable(t *testing.T) {
	api := newTestAPI(t)
	require.Equal(t, http.StatusOK, api.do(t, http.MethodGet, "/api/ledger", 42, nil).Code)

	api.store.applyErr = fmt.Errorf("apply: %w", common.ErrStoreUnavailable)
	rec := api.do(t, http.MethodPost, "/api/ledger/award", 42, awardRequest{Points: 20})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotContains(t, rec.Body.String(), "apply", "внутренние детали не отдаются клиенту")

	api.store.applyErr = nil
	snap := decode[ledger.Snapshot](t, api.do(t, http.MethodGet, "/api/ledger", 42, nil))
	assert.Zero(t, snap.HeartPoints, "неудачное начисление не меняет баланс")
}

func TestAPI_Tasks(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/api/tasks", 42, createTaskRequest{Title: "Зарядка", RepeatType: "daily"})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, tasks.RepeatDaily, api.tasks.created.RepeatType)

	rec = api.do(t, http.MethodPost, "/api/tasks", 42, createTaskRequest{Title: "Бег", RepeatType: "yearly"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/tasks/1/complete", 42, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[tasks.CompletionResult](t, rec)
	assert.Equal(t, int64(12), res.PointsDelta)

	api.tasks.complete = common.ErrTaskAlreadyCompleted
	rec = api.do(t, http.MethodPost, "/api/tasks/1/complete", 42, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/tasks/abc/complete", 42, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/tasks/1/uncomplete", 42, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/tasks", 42, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestAPI_Leaderboard(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodGet, "/api/leaderboard?limit=5", 42, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	entries := decode[[]leaderboard.Entry](t, rec)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(100), entries[0].Score)
}

func TestAPI_AdminClear(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/api/admin/users/7/clear", 1, clearRequest{Password: "guess"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/admin/users/7/clear", 1, clearRequest{Password: "secret"})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []int64{7}, api.admin.cleared)

	rec = api.do(t, http.MethodPost, "/api/admin/users/7/clear", 1, clearRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_Logout(t *testing.T) {
	api := newTestAPI(t)
	require.Equal(t, http.StatusOK, api.do(t, http.MethodGet, "/api/ledger", 42, nil).Code)

	rec := api.do(t, http.MethodPost, "/api/session/logout", 42, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestAPI_Health(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodGet, "/healthz", 0, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	api.pinger.err = errors.New("connection refused")
	rec = api.do(t, http.MethodGet, "/healthz", 0, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAPI_CORS(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://app.example")
	rec := httptest.NewRecorder()
	api.server.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	api.server.ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestAPI_Metrics(t *testing.T) {
	api := newTestAPI(t)
	require.Equal(t, http.StatusOK, api.do(t, http.MethodGet, "/api/ledger", 42, nil).Code)

	rec := api.do(t, http.MethodGet, "/metrics", 0, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `heartpoints_http_requests_total{route="/api/ledger`)
	assert.Contains(t, body, "go_goroutines")
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{common.ErrNotAuthenticated, http.StatusUnauthorized},
		{common.ErrInsufficientBalance, http.StatusPaymentRequired},
		{common.ErrInvalidAmount, http.StatusBadRequest},
		{common.ErrNotFound, http.StatusNotFound},
		{common.ErrTaskAlreadyCompleted, http.StatusConflict},
		{common.ErrWriteFailed, http.StatusServiceUnavailable},
		{common.ErrTooManyAttempts, http.StatusTooManyRequests},
		{errors.New("что-то ещё"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
