// Package tasks — reconcile.go снимает отметку «выполнено» с повторяющихся задач,
// когда наступил новый период. Очки при этом не трогаются.
package tasks

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/heartpoints/internal/common"
)

// ResetStore — операции хранилища, нужные для сброса.
type ResetStore interface {
	ListCompleted(ctx context.Context, userID int64) ([]*Task, error)
	ListCompletedUsers(ctx context.Context) ([]int64, error)
	ResetCompletion(ctx context.Context, taskIDs []int64) error
}

// ShouldReset сообщает, пора ли снять отметку с выполненной задачи:
//   - DAILY — выполнена не сегодня
//   - WEEKLY — с выполнения прошло 7 и больше календарных дней
//   - CUSTOM — никогда
//
// Выполненная задача без даты выполнения сбрасывается.
func ShouldReset(task *Task, now time.Time) bool {
	if !task.Completed {
		return false
	}

	switch task.RepeatType {
	case RepeatDaily:
		return task.LastCompletedDate == nil || !common.SameDay(*task.LastCompletedDate, now)
	case RepeatWeekly:
		return task.LastCompletedDate == nil || common.DaysBetween(*task.LastCompletedDate, now) >= 7
	default:
		return false
	}
}

// Reconciler — единая точка сброса повторяющихся задач для API, бота и крона.
type Reconciler struct {
	store ResetStore
}

// NewReconciler создаёт Reconciler.
func NewReconciler(store ResetStore) *Reconciler {
	return &Reconciler{store: store}
}

// Reconcile сбрасывает задачи пользователя на момент now.
// Возвращает число сброшенных задач.
func (r *Reconciler) Reconcile(ctx context.Context, userID int64, now time.Time) (int, error) {
	completed, err := r.store.ListCompleted(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("ошибка получения выполненных задач: %w", err)
	}

	var ids []int64
	for _, t := range completed {
		if ShouldReset(t, now) {
			ids = append(ids, t.ID)
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}

	if err := r.store.ResetCompletion(ctx, ids); err != nil {
		return 0, fmt.Errorf("ошибка сброса задач: %w", err)
	}

	log.WithFields(log.Fields{
		"user_id": userID,
		"reset":   len(ids),
	}).Debug("Повторяющиеся задачи сброшены")
	return len(ids), nil
}

// ReconcileAll сбрасывает задачи всех пользователей. Запускается кроном в полночь.
func (r *Reconciler) ReconcileAll(ctx context.Context, now time.Time) (int, error) {
	users, err := r.store.ListCompletedUsers(ctx)
	if err != nil {
		return 0, fmt.Errorf("ошибка получения пользователей: %w", err)
	}

	total, failed := 0, 0
	for _, userID := range users {
		n, err := r.Reconcile(ctx, userID, now)
		if err != nil {
			log.WithError(err).WithField("user_id", userID).Error("Ошибка сброса задач пользователя")
			failed++
			continue
		}
		total += n
	}

	log.WithFields(log.Fields{
		"users":  len(users),
		"reset":  total,
		"failed": failed,
	}).Info("Ночной сброс задач завершён")

	if failed > 0 {
		return total, fmt.Errorf("не удалось сбросить задачи %d пользователей: %w", failed, common.ErrWriteFailed)
	}
	return total, nil
}
