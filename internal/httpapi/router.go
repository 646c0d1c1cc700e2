package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/handlers"

	"serotonyl.ru/heartpoints/internal/metrics"
	"serotonyl.ru/heartpoints/internal/middleware"
)

// RouterOptions — зависимости маршрутизатора. Nil-поля отключают соответствующий слой.
type RouterOptions struct {
	Auth    *middleware.Auth
	Limiter *middleware.RateLimiter
	Metrics *metrics.Metrics
	// Origin'ы веб-клиента; пустой список отключает CORS
	CORSOrigins []string
}

// Router собирает маршруты API.
func (h *Handler) Router(opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(opts.Metrics.Middleware)
	if len(opts.CORSOrigins) > 0 {
		r.Use(handlers.CORS(
			handlers.AllowedOrigins(opts.CORSOrigins),
			handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
			handlers.AllowedHeaders([]string{"Authorization", "Content-Type"}),
			handlers.AllowCredentials(),
		))
	}

	r.Get("/healthz", h.Health)
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(opts.Auth.Middleware)
		if opts.Limiter != nil {
			r.Use(opts.Limiter.Middleware)
		}

		r.Post("/session/login", h.Login)
		r.Post("/session/logout", h.Logout)

		r.Route("/ledger", func(r chi.Router) {
			r.Get("/", h.GetLedger)
			r.Post("/refresh", h.Refresh)
			r.Post("/award", h.Award)
			r.Post("/spend", h.Spend)
			r.Post("/tasks-completed", h.IncrementTasksCompleted)
			r.Get("/history", h.History)
		})

		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", h.ListTasks)
			r.Post("/", h.CreateTask)
			r.Post("/{id}/complete", h.CompleteTask)
			r.Post("/{id}/uncomplete", h.UncompleteTask)
		})

		r.Get("/leaderboard", h.Leaderboard)
		r.Post("/admin/users/{id}/clear", h.ClearUser)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
