// Package ledger — session.go содержит сессию ledger одного пользователя.
//
// Порядок внутри каждой операции всегда один:
//  1. свежее чтение из хранилища
//  2. расчёт нового состояния
//  3. запись (атомарно, через Apply)
//  4. обновление публичного счёта
//  5. фиксация локального состояния
//
// Локальное состояние меняется только на шаге 5, поэтому при ошибке
// записи экран продолжает видеть последний подтверждённый баланс.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/heartpoints/internal/common"
	"serotonyl.ru/heartpoints/internal/features/streak"
)

// MaxConflictAttempts — сколько раз пересчитывать начисление,
// если дату бонуса параллельно изменила другая сессия.
const MaxConflictAttempts = 3

// Session — ledger одного авторизованного пользователя.
// Создаётся Manager при входе и обнуляется при выходе.
type Session struct {
	userID int64
	store  StatStore
	board  ScorePublisher
	clock  common.Clock
	rules  streak.Rules

	// opMu выполняет операции строго по одной
	opMu sync.Mutex

	mu      sync.RWMutex
	active  bool
	loading bool
	state   UserStats
}

func newSession(userID int64, store StatStore, board ScorePublisher, clock common.Clock, rules streak.Rules) *Session {
	return &Session{
		userID: userID,
		store:  store,
		board:  board,
		clock:  clock,
		rules:  rules,
		active: true,
		state:  UserStats{UserID: userID},
	}
}

// UserID возвращает владельца сессии.
func (s *Session) UserID() int64 { return s.userID }

// Snapshot возвращает текущее состояние для экранов.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		UserID:              s.userID,
		HeartPoints:         s.state.HeartPoints,
		TotalTasksCompleted: s.state.TotalTasksCompleted,
		DailyStreak:         s.state.DailyStreak,
		LongestStreak:       s.state.LongestStreak,
		LastDailyTaskDate:   s.state.LastDailyTaskDate,
		Loading:             s.loading,
	}
}

// Active сообщает, не закрыта ли сессия.
func (s *Session) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// Load загружает статистику из хранилища. Если записи нет — создаёт нулевую.
// Прерванный огонёк сразу сбрасывается в хранилище.
func (s *Session) Load(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if err := s.begin(); err != nil {
		return err
	}
	defer s.end()

	stats, err := s.loadStats(ctx)
	if err != nil {
		s.logFailure("load", err)
		return err
	}

	s.commit(stats)
	log.WithFields(log.Fields{
		"user_id": s.userID,
		"points":  stats.HeartPoints,
		"streak":  stats.DailyStreak,
	}).Debug("Статистика загружена")
	return nil
}

// Refresh перечитывает статистику из хранилища.
// Используется для ручной сверки при подозрении на рассинхрон.
func (s *Session) Refresh(ctx context.Context) error {
	return s.Load(ctx)
}

// Award начисляет очки (или снимает при отрицательном points).
//
// Для ежедневной задачи (isDailyTask && points > 0) сумма points не используется:
//   - первая ежедневная задача за день увеличивает огонёк на 1 и даёт
//     бонус rules.DailyTaskPoints(новый огонёк)
//   - следующие за тот же день дают только DailyTaskBasePoints
//
// Баланс обрезается снизу нулём.
func (s *Session) Award(ctx context.Context, points int64, isDailyTask bool) (AwardResult, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if err := s.begin(); err != nil {
		return AwardResult{}, err
	}
	defer s.end()

	today := common.DateOf(s.clock.Now())

	for attempt := 1; ; attempt++ {
		cur, err := s.store.Get(ctx, s.userID)
		if err != nil {
			s.logFailure("award", err)
			return AwardResult{}, fmt.Errorf("чтение статистики: %w", err)
		}

		m, bonus := s.resolveAward(cur, points, isDailyTask, today)

		updated, err := s.store.Apply(ctx, s.userID, m)
		if errors.Is(err, common.ErrConflict) && attempt < MaxConflictAttempts {
			log.WithFields(log.Fields{
				"user_id": s.userID,
				"attempt": attempt,
			}).Debug("Огонёк изменён другой сессией, пересчитываем начисление")
			continue
		}
		if err != nil {
			s.logFailure("award", err)
			return AwardResult{}, fmt.Errorf("начисление %d: %w", m.PointsDelta, err)
		}

		synced := s.pushScore(ctx, updated.HeartPoints)
		s.commit(updated)

		log.WithFields(log.Fields{
			"user_id": s.userID,
			"delta":   m.PointsDelta,
			"balance": updated.HeartPoints,
			"streak":  updated.DailyStreak,
			"bonus":   bonus,
		}).Debug("Очки начислены")

		return AwardResult{
			Amount:            updated.HeartPoints - cur.HeartPoints,
			Balance:           updated.HeartPoints,
			Streak:            updated.DailyStreak,
			StreakBonus:       bonus,
			LeaderboardSynced: synced,
		}, nil
	}
}

// resolveAward определяет итоговую сумму и изменение огонька.
func (s *Session) resolveAward(cur *UserStats, points int64, isDailyTask bool, today time.Time) (Mutation, bool) {
	m := Mutation{PointsDelta: points, Reason: awardReason(points)}
	if !isDailyTask || points <= 0 {
		return m, false
	}

	status := streak.Classify(cur.LastDailyTaskDate, today)
	if status == streak.StatusGrantedToday {
		m.PointsDelta = s.rules.DailyTaskBasePoints
		m.Reason = "Ежедневная задача"
		return m, false
	}

	current := cur.DailyStreak
	if status == streak.StatusBroken {
		current = 0
	}
	next := current + 1
	date := today

	m.PointsDelta = s.rules.DailyTaskPoints(next)
	m.Reason = streak.FormatRewardDescription(next)
	m.Streak = &StreakChange{Expect: cur.LastDailyTaskDate, Streak: next, Date: &date}
	return m, true
}

// Subtract списывает очки. Если очков не хватает — возвращает
// false и common.ErrInsufficientBalance, баланс не меняется.
func (s *Session) Subtract(ctx context.Context, points int64) (bool, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if err := s.begin(); err != nil {
		return false, err
	}
	defer s.end()

	if points <= 0 {
		return false, common.ErrInvalidAmount
	}

	// Баланс мог измениться на другом устройстве, проверяем по хранилищу
	cur, err := s.store.Get(ctx, s.userID)
	if err != nil {
		s.logFailure("subtract", err)
		return false, fmt.Errorf("чтение статистики: %w", err)
	}
	if points > cur.HeartPoints {
		s.commit(cur)
		return false, common.ErrInsufficientBalance
	}

	updated, err := s.store.Apply(ctx, s.userID, Mutation{
		PointsDelta:  -points,
		RequireFunds: true,
		Reason:       "Покупка в магазине",
	})
	if errors.Is(err, common.ErrInsufficientBalance) {
		// Списали параллельно между чтением и записью
		if fresh, getErr := s.store.Get(ctx, s.userID); getErr == nil {
			s.commit(fresh)
		}
		return false, fmt.Errorf("списание %d: %w", points, err)
	}
	if err != nil {
		s.logFailure("subtract", err)
		return false, fmt.Errorf("списание %d: %w", points, err)
	}

	s.pushScore(ctx, updated.HeartPoints)
	s.commit(updated)

	log.WithFields(log.Fields{
		"user_id": s.userID,
		"amount":  points,
		"balance": updated.HeartPoints,
	}).Debug("Очки списаны")
	return true, nil
}

// IncrementTasksCompleted увеличивает счётчик выполненных задач на 1.
// Баланс не меняется: вызывающий код сам вызывает Award, если нужно.
func (s *Session) IncrementTasksCompleted(ctx context.Context) (int64, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if err := s.begin(); err != nil {
		return 0, err
	}
	defer s.end()

	updated, err := s.store.Apply(ctx, s.userID, Mutation{TasksCompletedDelta: 1})
	if err != nil {
		s.logFailure("increment_tasks", err)
		return 0, fmt.Errorf("счётчик задач: %w", err)
	}

	s.commit(updated)
	return updated.TotalTasksCompleted, nil
}

// close обнуляет сессию при выходе пользователя.
// Ждёт завершения текущей операции.
func (s *Session) close() {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = false
	s.loading = false
	s.state = UserStats{UserID: s.userID}
}

func (s *Session) loadStats(ctx context.Context) (*UserStats, error) {
	stats, err := s.getOrCreate(ctx)
	if err != nil {
		return nil, err
	}

	today := s.clock.Now()
	for attempt := 1; ; attempt++ {
		eval := streak.EvaluateStreak(stats.DailyStreak, stats.LastDailyTaskDate, today)
		if !eval.ResetOccurred || stats.DailyStreak == 0 {
			return stats, nil
		}

		updated, err := s.store.Apply(ctx, s.userID, Mutation{
			Streak: &StreakChange{Expect: stats.LastDailyTaskDate, Streak: eval.Streak},
		})
		if errors.Is(err, common.ErrConflict) && attempt < MaxConflictAttempts {
			if stats, err = s.store.Get(ctx, s.userID); err != nil {
				return nil, fmt.Errorf("чтение статистики: %w", err)
			}
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("сброс огонька: %w", err)
		}

		log.WithFields(log.Fields{
			"user_id":     s.userID,
			"lost_streak": stats.DailyStreak,
		}).Info("Огонёк прерван")
		return updated, nil
	}
}

func (s *Session) getOrCreate(ctx context.Context) (*UserStats, error) {
	stats, err := s.store.Get(ctx, s.userID)
	if err == nil {
		return stats, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("чтение статистики: %w", err)
	}

	fresh := &UserStats{UserID: s.userID, LastUpdated: s.clock.Now()}
	err = s.store.Create(ctx, fresh)
	switch {
	case err == nil:
		return fresh, nil
	case errors.Is(err, common.ErrAlreadyExists):
		// Запись создала параллельная сессия
		stats, err = s.store.Get(ctx, s.userID)
		if err != nil {
			return nil, fmt.Errorf("чтение статистики: %w", err)
		}
		return stats, nil
	default:
		return nil, fmt.Errorf("создание статистики: %w", err)
	}
}

// pushScore обновляет публичный счёт. Ошибка не откатывает баланс:
// рейтинг догонит его при следующем изменении.
func (s *Session) pushScore(ctx context.Context, score int64) bool {
	if s.board == nil {
		return true
	}
	if err := s.board.Push(ctx, s.userID, score); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"user_id": s.userID,
			"score":   score,
		}).Warn("Рейтинг отстаёт от баланса")
		return false
	}
	return true
}

func (s *Session) begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return common.ErrNotAuthenticated
	}
	s.loading = true
	return nil
}

func (s *Session) end() {
	s.mu.Lock()
	s.loading = false
	s.mu.Unlock()
}

func (s *Session) commit(stats *UserStats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		s.state = *stats
	}
}

func (s *Session) logFailure(op string, err error) {
	log.WithError(err).WithFields(log.Fields{
		"user_id": s.userID,
		"op":      op,
	}).Error("Операция ledger не выполнена, баланс не изменён")
}

func awardReason(points int64) string {
	if points < 0 {
		return "Отмена выполнения задачи"
	}
	return "Выполнение задачи"
}
