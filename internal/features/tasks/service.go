// Package tasks — service.go связывает выполнение задач с ledger.
// Задача отмечается выполненной условным UPDATE, затем начисляются очки;
// если начисление не удалось, отметка откатывается.
package tasks

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/heartpoints/internal/common"
	"serotonyl.ru/heartpoints/internal/features/ledger"
	"serotonyl.ru/heartpoints/internal/features/streak"
)

// MaxTitleLength — максимальная длина названия задачи в символах.
const MaxTitleLength = 200

// Store — хранилище задач.
type Store interface {
	ResetStore
	Create(ctx context.Context, task *Task) error
	Get(ctx context.Context, userID, taskID int64) (*Task, error)
	List(ctx context.Context, userID int64) ([]*Task, error)
	// MarkCompleted отмечает задачу выполненной, только если она ещё не выполнена.
	MarkCompleted(ctx context.Context, userID, taskID int64, day time.Time) (*Task, error)
	// MarkUncompleted снимает отметку, только если задача выполнена.
	MarkUncompleted(ctx context.Context, userID, taskID int64) (*Task, error)
	// Restore возвращает отметку и дату выполнения к значениям из task.
	Restore(ctx context.Context, task *Task) error
	Delete(ctx context.Context, userID, taskID int64) error
}

// Ledger — операции сессии ledger, нужные задачам.
type Ledger interface {
	UserID() int64
	Award(ctx context.Context, points int64, isDailyTask bool) (ledger.AwardResult, error)
	IncrementTasksCompleted(ctx context.Context) (int64, error)
	Snapshot() ledger.Snapshot
}

// Service управляет задачами.
type Service struct {
	store      Store
	reconciler *Reconciler
	clock      common.Clock
	rules      streak.Rules
}

// NewService создаёт сервис задач.
func NewService(store Store, reconciler *Reconciler, clock common.Clock, rules streak.Rules) *Service {
	return &Service{
		store:      store,
		reconciler: reconciler,
		clock:      clock,
		rules:      rules,
	}
}

// Create создаёт задачу.
func (s *Service) Create(ctx context.Context, userID int64, title string, repeat RepeatType) (*Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, common.ErrEmptyTitle
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return nil, fmt.Errorf("название длиннее %d символов: %w", MaxTitleLength, common.ErrTitleTooLong)
	}
	repeat, err := ParseRepeatType(string(repeat))
	if err != nil {
		return nil, err
	}

	task := &Task{UserID: userID, Title: title, RepeatType: repeat}
	if err := s.store.Create(ctx, task); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"user_id": userID,
		"task_id": task.ID,
		"repeat":  repeat,
	}).Debug("Задача создана")
	return task, nil
}

// List возвращает задачи пользователя, предварительно сбросив
// повторяющиеся задачи прошлых периодов.
func (s *Service) List(ctx context.Context, userID int64) ([]*Task, error) {
	if _, err := s.reconciler.Reconcile(ctx, userID, s.clock.Now()); err != nil {
		return nil, err
	}
	return s.store.List(ctx, userID)
}

// Delete удаляет задачу. Очки не возвращаются и не списываются.
func (s *Service) Delete(ctx context.Context, userID, taskID int64) error {
	return s.store.Delete(ctx, userID, taskID)
}

// Complete выполняет задачу: отмечает её, начисляет очки
// (для ежедневной — с бонусом огонька) и увеличивает счётчик задач.
func (s *Service) Complete(ctx context.Context, session Ledger, taskID int64) (*CompletionResult, error) {
	userID := session.UserID()
	now := s.clock.Now()

	if _, err := s.reconciler.Reconcile(ctx, userID, now); err != nil {
		return nil, err
	}

	prev, err := s.store.Get(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}

	task, err := s.store.MarkCompleted(ctx, userID, taskID, common.DateOf(now))
	if err != nil {
		return nil, err
	}

	award, err := session.Award(ctx, s.rules.PointsPerTask, task.IsDaily())
	if err != nil {
		s.rollback(ctx, prev)
		return nil, err
	}

	total, err := session.IncrementTasksCompleted(ctx)
	if err != nil {
		// Очки уже начислены, задача остаётся выполненной
		log.WithError(err).WithFields(log.Fields{
			"user_id": userID,
			"task_id": taskID,
		}).Error("Не удалось увеличить счётчик выполненных задач")
		total = session.Snapshot().TotalTasksCompleted
	}

	log.WithFields(log.Fields{
		"user_id": userID,
		"task_id": taskID,
		"points":  award.Amount,
		"bonus":   award.StreakBonus,
	}).Info("Задача выполнена")

	return &CompletionResult{
		Task:                task,
		PointsDelta:         award.Amount,
		Balance:             award.Balance,
		Streak:              award.Streak,
		StreakBonus:         award.StreakBonus,
		TotalTasksCompleted: total,
		LeaderboardSynced:   award.LeaderboardSynced,
	}, nil
}

// Uncomplete отменяет выполнение: снимает отметку и списывает PointsPerTask.
// Баланс не уходит ниже нуля, счётчик выполненных задач не уменьшается.
func (s *Service) Uncomplete(ctx context.Context, session Ledger, taskID int64) (*CompletionResult, error) {
	userID := session.UserID()

	prev, err := s.store.Get(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}

	task, err := s.store.MarkUncompleted(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}

	award, err := session.Award(ctx, -s.rules.PointsPerTask, false)
	if err != nil {
		s.rollback(ctx, prev)
		return nil, err
	}

	log.WithFields(log.Fields{
		"user_id": userID,
		"task_id": taskID,
		"points":  award.Amount,
	}).Info("Выполнение задачи отменено")

	return &CompletionResult{
		Task:                task,
		PointsDelta:         award.Amount,
		Balance:             award.Balance,
		Streak:              award.Streak,
		TotalTasksCompleted: session.Snapshot().TotalTasksCompleted,
		LeaderboardSynced:   award.LeaderboardSynced,
	}, nil
}

func (s *Service) rollback(ctx context.Context, prev *Task) {
	if err := s.store.Restore(ctx, prev); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"user_id": prev.UserID,
			"task_id": prev.ID,
		}).Error("Не удалось откатить отметку задачи")
	}
}
