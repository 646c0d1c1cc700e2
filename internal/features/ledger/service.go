// Package ledger — service.go содержит операции, не привязанные к сессии:
// историю начислений, ночную проверку огоньков и выбор адресатов напоминаний.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/heartpoints/internal/common"
	"serotonyl.ru/heartpoints/internal/features/streak"
)

// Лимиты выдачи истории.
const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100
)

// Reminder — пользователь, который потеряет огонёк, если не выполнит
// ежедневную задачу сегодня.
type Reminder struct {
	UserID int64
	Streak int
}

// Service — фоновые и справочные операции ledger.
type Service struct {
	store   StatStore
	journal JournalReader
	lister  StreakLister
	manager *Manager
}

// NewService создаёт сервис ledger.
func NewService(store StatStore, journal JournalReader, lister StreakLister, manager *Manager) *Service {
	return &Service{
		store:   store,
		journal: journal,
		lister:  lister,
		manager: manager,
	}
}

// History возвращает последние записи журнала пользователя, новые первыми.
func (s *Service) History(ctx context.Context, userID int64, limit int) ([]*JournalEntry, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	entries, err := s.journal.History(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения истории: %w", err)
	}
	return entries, nil
}

// SweepStreaks сбрасывает прерванные огоньки у всех пользователей.
// Запускается кроном в полночь, чтобы рейтинг и напоминания не ждали входа пользователя.
// Возвращает число сброшенных огоньков.
func (s *Service) SweepStreaks(ctx context.Context, now time.Time) (int, error) {
	log.Info("Запуск ночной проверки огоньков")

	list, err := s.lister.ListStreaks(ctx, 1)
	if err != nil {
		return 0, fmt.Errorf("ошибка получения огоньков: %w", err)
	}

	reset, failed := 0, 0
	for _, st := range list {
		eval := streak.EvaluateStreak(st.DailyStreak, st.LastDailyTaskDate, now)
		if !eval.ResetOccurred {
			continue
		}

		_, err := s.store.Apply(ctx, st.UserID, Mutation{
			Streak: &StreakChange{Expect: st.LastDailyTaskDate, Streak: eval.Streak},
		})
		if errors.Is(err, common.ErrConflict) {
			// Пользователь успел получить бонус после чтения списка
			continue
		}
		if err != nil {
			log.WithError(err).WithField("user_id", st.UserID).Error("Ошибка сброса огонька")
			failed++
			continue
		}
		reset++

		if s.manager != nil {
			if err := s.manager.Reload(ctx, st.UserID); err != nil {
				log.WithError(err).WithField("user_id", st.UserID).Warn("Не удалось обновить открытую сессию")
			}
		}
	}

	log.WithFields(log.Fields{
		"total":  len(list),
		"broken": reset,
		"failed": failed,
	}).Info("Ночная проверка огоньков завершена")

	if failed > 0 {
		return reset, fmt.Errorf("не удалось сбросить %d огоньков: %w", failed, common.ErrWriteFailed)
	}
	return reset, nil
}

// StreakReminders возвращает пользователей с огоньком не меньше threshold,
// которые получили бонус вчера и ещё не получили сегодня.
func (s *Service) StreakReminders(ctx context.Context, now time.Time, threshold int) ([]Reminder, error) {
	if threshold < 1 {
		threshold = 1
	}

	list, err := s.lister.ListStreaks(ctx, threshold)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения огоньков: %w", err)
	}

	var reminders []Reminder
	for _, st := range list {
		if streak.Classify(st.LastDailyTaskDate, now) != streak.StatusContinues {
			continue
		}
		reminders = append(reminders, Reminder{UserID: st.UserID, Streak: st.DailyStreak})
	}
	return reminders, nil
}
