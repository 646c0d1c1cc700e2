// Package tasks — repository.go отвечает за все операции с таблицей tasks в БД.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/heartpoints/internal/common"
	"serotonyl.ru/heartpoints/internal/db/postgres"
)

const taskColumns = `id, user_id, title, completed, repeat_type, last_completed_date, created_at, updated_at`

type Repository struct {
	db    *pgxpool.Pool
	retry *postgres.Retrier
	loc   *time.Location
}

func NewRepository(db *pgxpool.Pool, retry *postgres.Retrier, loc *time.Location) *Repository {
	return &Repository{db: db, retry: retry, loc: loc}
}

// Create добавляет задачу и заполняет ID и время создания.
func (r *Repository) Create(ctx context.Context, task *Task) error {
	err := r.retry.Do(ctx, "tasks.create", func(ctx context.Context) error {
		return r.db.QueryRow(ctx, `
			INSERT INTO tasks (user_id, title, repeat_type)
			VALUES ($1, $2, $3)
			RETURNING id, created_at, updated_at
		`, task.UserID, task.Title, string(task.RepeatType)).Scan(&task.ID, &task.CreatedAt, &task.UpdatedAt)
	})
	if err != nil {
		return fmt.Errorf("ошибка создания задачи: %w", err)
	}
	return nil
}

// Get возвращает задачу пользователя. Чужая задача считается отсутствующей.
func (r *Repository) Get(ctx context.Context, userID, taskID int64) (*Task, error) {
	var task *Task
	err := r.retry.Do(ctx, "tasks.get", func(ctx context.Context) error {
		var err error
		task, err = r.scanTask(r.db.QueryRow(ctx,
			`SELECT `+taskColumns+` FROM tasks WHERE id = $1 AND user_id = $2`, taskID, userID))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка получения задачи: %w", err)
	}
	return task, nil
}

// List возвращает задачи пользователя: сначала невыполненные.
func (r *Repository) List(ctx context.Context, userID int64) ([]*Task, error) {
	return r.queryTasks(ctx, "tasks.list",
		`SELECT `+taskColumns+` FROM tasks WHERE user_id = $1 ORDER BY completed, id`, userID)
}

// ListCompleted возвращает выполненные повторяющиеся задачи пользователя.
func (r *Repository) ListCompleted(ctx context.Context, userID int64) ([]*Task, error) {
	return r.queryTasks(ctx, "tasks.list_completed",
		`SELECT `+taskColumns+` FROM tasks WHERE user_id = $1 AND completed AND repeat_type <> 'CUSTOM'`, userID)
}

// ListCompletedUsers возвращает пользователей, у которых есть выполненные повторяющиеся задачи.
func (r *Repository) ListCompletedUsers(ctx context.Context) ([]int64, error) {
	var users []int64
	err := r.retry.Do(ctx, "tasks.list_users", func(ctx context.Context) error {
		rows, err := r.db.Query(ctx, `
			SELECT DISTINCT user_id FROM tasks WHERE completed AND repeat_type <> 'CUSTOM' ORDER BY user_id
		`)
		if err != nil {
			return err
		}
		users, err = pgx.CollectRows(rows, pgx.RowTo[int64])
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка получения пользователей с задачами: %w", err)
	}
	return users, nil
}

// ResetCompletion снимает отметку с задач taskIDs.
func (r *Repository) ResetCompletion(ctx context.Context, taskIDs []int64) error {
	err := r.retry.Do(ctx, "tasks.reset", func(ctx context.Context) error {
		_, err := r.db.Exec(ctx, `
			UPDATE tasks SET completed = FALSE, updated_at = NOW()
			WHERE id = ANY($1) AND completed
		`, taskIDs)
		return err
	})
	if err != nil {
		return fmt.Errorf("ошибка сброса задач: %w", err)
	}
	return nil
}

// MarkCompleted отмечает задачу выполненной за day.
// Если задача уже выполнена — common.ErrTaskAlreadyCompleted.
func (r *Repository) MarkCompleted(ctx context.Context, userID, taskID int64, day time.Time) (*Task, error) {
	task, err := r.conditionalUpdate(ctx, "tasks.complete", `
		UPDATE tasks SET completed = TRUE, last_completed_date = $3::date, updated_at = NOW()
		WHERE id = $1 AND user_id = $2 AND NOT completed
		RETURNING `+taskColumns, taskID, userID, postgres.DateParam(&day))
	if errors.Is(err, common.ErrNotFound) {
		return nil, r.missingOr(ctx, userID, taskID, common.ErrTaskAlreadyCompleted)
	}
	return task, err
}

// MarkUncompleted снимает отметку с задачи.
// Если задача не выполнена — common.ErrTaskNotCompleted.
func (r *Repository) MarkUncompleted(ctx context.Context, userID, taskID int64) (*Task, error) {
	task, err := r.conditionalUpdate(ctx, "tasks.uncomplete", `
		UPDATE tasks SET completed = FALSE, updated_at = NOW()
		WHERE id = $1 AND user_id = $2 AND completed
		RETURNING `+taskColumns, taskID, userID)
	if errors.Is(err, common.ErrNotFound) {
		return nil, r.missingOr(ctx, userID, taskID, common.ErrTaskNotCompleted)
	}
	return task, err
}

// Restore возвращает отметку и дату выполнения к сохранённым значениям.
func (r *Repository) Restore(ctx context.Context, task *Task) error {
	err := r.retry.Do(ctx, "tasks.restore", func(ctx context.Context) error {
		_, err := r.db.Exec(ctx, `
			UPDATE tasks SET completed = $3, last_completed_date = $4::date, updated_at = NOW()
			WHERE id = $1 AND user_id = $2
		`, task.ID, task.UserID, task.Completed, postgres.DateParam(task.LastCompletedDate))
		return err
	})
	if err != nil {
		return fmt.Errorf("ошибка восстановления задачи: %w", err)
	}
	return nil
}

// Delete удаляет задачу пользователя.
func (r *Repository) Delete(ctx context.Context, userID, taskID int64) error {
	err := r.retry.Do(ctx, "tasks.delete", func(ctx context.Context) error {
		tag, err := r.db.Exec(ctx, `DELETE FROM tasks WHERE id = $1 AND user_id = $2`, taskID, userID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return common.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("ошибка удаления задачи: %w", err)
	}
	return nil
}

func (r *Repository) conditionalUpdate(ctx context.Context, op, query string, args ...any) (*Task, error) {
	var task *Task
	err := r.retry.Do(ctx, op, func(ctx context.Context) error {
		var err error
		task, err = r.scanTask(r.db.QueryRow(ctx, query, args...))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка обновления задачи: %w", err)
	}
	return task, nil
}

// missingOr возвращает common.ErrNotFound, если задачи нет, иначе stateErr.
func (r *Repository) missingOr(ctx context.Context, userID, taskID int64, stateErr error) error {
	if _, err := r.Get(ctx, userID, taskID); err != nil {
		return err
	}
	return stateErr
}

func (r *Repository) queryTasks(ctx context.Context, op, query string, args ...any) ([]*Task, error) {
	var list []*Task
	err := r.retry.Do(ctx, op, func(ctx context.Context) error {
		rows, err := r.db.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		list = list[:0]
		for rows.Next() {
			t, err := r.scanTask(rows)
			if err != nil {
				return err
			}
			list = append(list, t)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка получения задач: %w", err)
	}
	return list, nil
}

func (r *Repository) scanTask(row pgx.Row) (*Task, error) {
	var t Task
	var repeat string
	err := row.Scan(&t.ID, &t.UserID, &t.Title, &t.Completed, &repeat,
		&t.LastCompletedDate, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.RepeatType = RepeatType(repeat)
	t.LastCompletedDate = postgres.DateValue(t.LastCompletedDate, r.loc)
	return &t, nil
}
