// Package httpapi — HTTP API мобильного клиента поверх ledger, задач и рейтинга.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/heartpoints/internal/common"
	"serotonyl.ru/heartpoints/internal/features/leaderboard"
	"serotonyl.ru/heartpoints/internal/features/ledger"
	"serotonyl.ru/heartpoints/internal/features/tasks"
	"serotonyl.ru/heartpoints/internal/middleware"
)

// Journal — история начислений.
type Journal interface {
	History(ctx context.Context, userID int64, limit int) ([]*ledger.JournalEntry, error)
}

// TaskService — операции с задачами.
type TaskService interface {
	Create(ctx context.Context, userID int64, title string, repeat tasks.RepeatType) (*tasks.Task, error)
	List(ctx context.Context, userID int64) ([]*tasks.Task, error)
	Complete(ctx context.Context, session tasks.Ledger, taskID int64) (*tasks.CompletionResult, error)
	Uncomplete(ctx context.Context, session tasks.Ledger, taskID int64) (*tasks.CompletionResult, error)
}

// Leaderboard — рейтинг и профили.
type Leaderboard interface {
	Register(ctx context.Context, userID int64, displayName string, chatID *int64) error
	Top(ctx context.Context, limit int) ([]leaderboard.Entry, error)
}

// AdminService — защищённый паролем сброс.
type AdminService interface {
	ClearUserData(ctx context.Context, actorID, targetID int64, password string) error
}

// Pinger проверяет доступность БД для /healthz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler реализует HTTP-обработчики API.
type Handler struct {
	sessions *ledger.Manager
	journal  Journal
	tasks    TaskService
	board    Leaderboard
	admin    AdminService
	db       Pinger
}

// NewHandler создаёт обработчик.
func NewHandler(
	sessions *ledger.Manager,
	journal Journal,
	taskService TaskService,
	board Leaderboard,
	admin AdminService,
	db Pinger,
) *Handler {
	return &Handler{
		sessions: sessions,
		journal:  journal,
		tasks:    taskService,
		board:    board,
		admin:    admin,
		db:       db,
	}
}

type loginRequest struct {
	DisplayName string `json:"display_name"`
}

type awardRequest struct {
	Points      int64 `json:"points"`
	IsDailyTask bool  `json:"is_daily_task"`
}

type spendRequest struct {
	Points int64 `json:"points"`
}

type spendResponse struct {
	Success bool  `json:"success"`
	Balance int64 `json:"balance"`
}

type tasksCompletedResponse struct {
	TotalTasksCompleted int64 `json:"total_tasks_completed"`
}

type createTaskRequest struct {
	Title      string `json:"title"`
	RepeatType string `json:"repeat_type"`
}

type clearRequest struct {
	Password string `json:"password"`
}

// Login открывает сессию ledger и регистрирует профиль в рейтинге.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	userID := mustUserID(r)

	var req loginRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
	}

	if err := h.board.Register(r.Context(), userID, req.DisplayName, nil); err != nil {
		log.WithError(err).WithField("user_id", userID).Warn("Не удалось зарегистрировать профиль")
	}

	session, err := h.sessions.SignIn(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session.Snapshot())
}

// Logout закрывает сессию.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.SignOut(mustUserID(r))
	w.WriteHeader(http.StatusNoContent)
}

// GetLedger возвращает снимок статистики.
func (h *Handler) GetLedger(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, session.Snapshot())
}

// Refresh перечитывает статистику из хранилища.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := session.Refresh(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session.Snapshot())
}

// Award начисляет очки.
func (h *Handler) Award(w http.ResponseWriter, r *http.Request) {
	var req awardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	// Прямое начисление ограничено ценой одной задачи, в том числе для отмены
	if limit := h.sessions.Rules().PointsPerTask; req.Points == 0 || req.Points > limit || req.Points < -limit {
		writeError(w, common.ErrInvalidAmount)
		return
	}

	session, ok := h.session(w, r)
	if !ok {
		return
	}

	res, err := session.Award(r.Context(), req.Points, req.IsDailyTask)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Spend списывает очки. При нехватке — 402 и success=false.
func (h *Handler) Spend(w http.ResponseWriter, r *http.Request) {
	var req spendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	session, ok := h.session(w, r)
	if !ok {
		return
	}

	success, err := session.Subtract(r.Context(), req.Points)
	if errors.Is(err, common.ErrInsufficientBalance) {
		writeJSON(w, http.StatusPaymentRequired, spendResponse{Success: false, Balance: session.Snapshot().HeartPoints})
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, spendResponse{Success: success, Balance: session.Snapshot().HeartPoints})
}

// IncrementTasksCompleted увеличивает счётчик выполненных задач.
func (h *Handler) IncrementTasksCompleted(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	total, err := session.IncrementTasksCompleted(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tasksCompletedResponse{TotalTasksCompleted: total})
}

// History возвращает журнал начислений.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	entries, err := h.journal.History(r.Context(), mustUserID(r), queryInt(r, "limit"))
	if err != nil {
		writeError(w, err)
		return
	}
	if entries == nil {
		entries = []*ledger.JournalEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// ListTasks возвращает задачи пользователя.
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	list, err := h.tasks.List(r.Context(), mustUserID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	if list == nil {
		list = []*tasks.Task{}
	}
	writeJSON(w, http.StatusOK, list)
}

// CreateTask создаёт задачу.
func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	repeat, err := tasks.ParseRepeatType(req.RepeatType)
	if err != nil {
		writeError(w, err)
		return
	}

	task, err := h.tasks.Create(r.Context(), mustUserID(r), req.Title, repeat)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

// CompleteTask выполняет задачу.
func (h *Handler) CompleteTask(w http.ResponseWriter, r *http.Request) {
	h.changeTask(w, r, h.tasks.Complete)
}

// UncompleteTask отменяет выполнение задачи.
func (h *Handler) UncompleteTask(w http.ResponseWriter, r *http.Request) {
	h.changeTask(w, r, h.tasks.Uncomplete)
}

func (h *Handler) changeTask(
	w http.ResponseWriter,
	r *http.Request,
	op func(context.Context, tasks.Ledger, int64) (*tasks.CompletionResult, error),
) {
	taskID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || taskID <= 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	session, ok := h.session(w, r)
	if !ok {
		return
	}

	res, err := op(r.Context(), session, taskID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Leaderboard возвращает рейтинг.
func (h *Handler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := h.board.Top(r.Context(), queryInt(r, "limit"))
	if err != nil {
		writeError(w, err)
		return
	}
	if entries == nil {
		entries = []leaderboard.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// ClearUser сбрасывает данные пользователя по паролю администратора.
func (h *Handler) ClearUser(w http.ResponseWriter, r *http.Request) {
	targetID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || targetID <= 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req clearRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.admin.ClearUserData(r.Context(), mustUserID(r), targetID, req.Password); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Health проверяет доступность БД.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		if err := h.db.Ping(r.Context()); err != nil {
			log.WithError(err).Warn("БД недоступна")
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": h.sessions.Count(),
	})
}

// session возвращает сессию ledger текущего пользователя, открывая её при необходимости.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*ledger.Session, bool) {
	session, err := h.sessions.Acquire(r.Context(), mustUserID(r))
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return session, true
}

func mustUserID(r *http.Request) int64 {
	userID, _ := middleware.GetUserIDFromContext(r.Context())
	return userID
}

func queryInt(r *http.Request, name string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return 0
	}
	return n
}
