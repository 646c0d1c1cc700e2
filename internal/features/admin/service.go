// Package admin — service.go содержит проверку пароля, защиту от перебора,
// сброс данных пользователя и состояние диалога в боте.
package admin

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/heartpoints/internal/common"
	"serotonyl.ru/heartpoints/internal/features/ledger"
)

// AttemptStore хранит попытки ввода пароля.
type AttemptStore interface {
	LogAttempt(ctx context.Context, userID int64, success bool) error
	CountFailed(ctx context.Context, userID int64, since time.Time) (int, error)
}

// StatsStore — частичное обновление статистики ledger.
type StatsStore interface {
	Update(ctx context.Context, userID int64, patch ledger.StatsPatch) error
}

// ScoreStore — публичный счёт в таблице лидеров.
type ScoreStore interface {
	SetScore(ctx context.Context, userID int64, score int64) error
}

// SessionReloader перечитывает открытую сессию пользователя.
type SessionReloader interface {
	Reload(ctx context.Context, userID int64) error
}

// Service выполняет административный сброс.
type Service struct {
	attempts     AttemptStore
	stats        StatsStore
	scores       ScoreStore
	sessions     SessionReloader
	passwordHash string
	clock        common.Clock

	states   map[int64]*DialogState // состояния диалогов (in-memory)
	statesMu sync.RWMutex
}

// NewService создаёт сервис.
func NewService(
	attempts AttemptStore,
	stats StatsStore,
	scores ScoreStore,
	sessions SessionReloader,
	passwordHash string,
	clock common.Clock,
) *Service {
	return &Service{
		attempts:     attempts,
		stats:        stats,
		scores:       scores,
		sessions:     sessions,
		passwordHash: passwordHash,
		clock:        clock,
		states:       make(map[int64]*DialogState),
	}
}

// CheckPassword проверяет пароль администратора.
// После MaxFailedAttempts неудач за LockoutPeriod попытки отклоняются без проверки.
func (s *Service) CheckPassword(ctx context.Context, userID int64, password string) error {
	failed, err := s.attempts.CountFailed(ctx, userID, s.clock.Now().Add(-LockoutPeriod))
	if err != nil {
		return err
	}
	if failed >= MaxFailedAttempts {
		log.WithField("user_id", userID).Warn("Превышен лимит попыток ввода пароля")
		return common.ErrTooManyAttempts
	}

	match := VerifyPassword(password, s.passwordHash)

	if err := s.attempts.LogAttempt(ctx, userID, match); err != nil {
		log.WithError(err).WithField("user_id", userID).Warn("Не удалось записать попытку входа")
	}

	if !match {
		return common.ErrWrongPassword
	}
	return nil
}

// ClearUserData обнуляет статистику targetID и его публичный счёт,
// затем перечитывает его открытую сессию. actorID — кто вводит пароль.
func (s *Service) ClearUserData(ctx context.Context, actorID, targetID int64, password string) error {
	if err := s.CheckPassword(ctx, actorID, password); err != nil {
		return err
	}

	var zero int64
	var zeroStreak int
	patch := ledger.StatsPatch{
		HeartPoints:         &zero,
		TotalTasksCompleted: &zero,
		DailyStreak:         &zeroStreak,
		LongestStreak:       &zeroStreak,
		ClearLastDailyDate:  true,
	}
	if err := s.stats.Update(ctx, targetID, patch); err != nil {
		return fmt.Errorf("ошибка сброса статистики: %w", err)
	}

	if err := s.scores.SetScore(ctx, targetID, 0); err != nil && !errors.Is(err, common.ErrNotFound) {
		log.WithError(err).WithField("user_id", targetID).Warn("Не удалось обнулить публичный счёт")
	}

	if err := s.sessions.Reload(ctx, targetID); err != nil {
		log.WithError(err).WithField("user_id", targetID).Warn("Не удалось перечитать сессию после сброса")
	}

	log.WithFields(log.Fields{
		"actor_id":  actorID,
		"target_id": targetID,
	}).Warn("Данные пользователя сброшены")
	return nil
}

// GetState возвращает текущее состояние диалога или nil.
func (s *Service) GetState(userID int64) *DialogState {
	s.statesMu.RLock()
	defer s.statesMu.RUnlock()

	state, ok := s.states[userID]
	if !ok || s.clock.Now().After(state.ExpiresAt) {
		return nil
	}
	return state
}

// SetState устанавливает состояние диалога на StateTTL.
func (s *Service) SetState(userID int64, state string, targetID int64) {
	s.statesMu.Lock()
	defer s.statesMu.Unlock()

	s.states[userID] = &DialogState{
		State:     state,
		TargetID:  targetID,
		ExpiresAt: s.clock.Now().Add(StateTTL),
	}
}

// ClearState сбрасывает состояние диалога.
func (s *Service) ClearState(userID int64) {
	s.statesMu.Lock()
	defer s.statesMu.Unlock()
	delete(s.states, userID)
}
