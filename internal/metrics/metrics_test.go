package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.BotCommand("топ")
		m.JobRun("daily_reset", time.Second, nil)
		m.RemindersSent(3)
		m.TrackSessions(func() int { return 1 })
	})

	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
	assert.NotNil(t, m.Middleware(next))
}

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.BotCommand("топ")
	m.BotCommand("топ")
	m.JobRun("daily_reset", time.Millisecond, nil)
	m.JobRun("daily_reset", time.Millisecond, errors.New("db down"))
	m.RemindersSent(2)
	m.RemindersSent(0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.botCommands.WithLabelValues("топ")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobRuns.WithLabelValues("daily_reset", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobRuns.WithLabelValues("daily_reset", "error")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.reminders))
}

func TestMetrics_MiddlewareUsesRoutePattern(t *testing.T) {
	m := New()

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Post("/api/tasks/{id}/complete", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	})

	for _, id := range []string{"1", "2"} {
		req := httptest.NewRequest(http.MethodPost, "/api/tasks/"+id+"/complete", nil)
		r.ServeHTTP(httptest.NewRecorder(), req)
	}
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("/api/tasks/{id}/complete", "409")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("unmatched", "404")))
}

func TestMetrics_Sessions(t *testing.T) {
	m := New()
	count := 3
	m.TrackSessions(func() int { return count })

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "heartpoints_ledger_sessions 3")
}
