// Package admin — repository.go работает с таблицей admin_login_attempts.
package admin

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/heartpoints/internal/db/postgres"
)

// Repository работает с попытками входа.
type Repository struct {
	db    *pgxpool.Pool
	retry *postgres.Retrier
}

// NewRepository создаёт репозиторий.
func NewRepository(db *pgxpool.Pool, retry *postgres.Retrier) *Repository {
	return &Repository{db: db, retry: retry}
}

// LogAttempt записывает попытку ввода пароля.
func (r *Repository) LogAttempt(ctx context.Context, userID int64, success bool) error {
	err := r.retry.Do(ctx, "admin.log_attempt", func(ctx context.Context) error {
		_, err := r.db.Exec(ctx,
			`INSERT INTO admin_login_attempts (user_id, success) VALUES ($1, $2)`, userID, success)
		return err
	})
	if err != nil {
		return fmt.Errorf("ошибка записи попытки входа: %w", err)
	}
	return nil
}

// CountFailed возвращает количество неудачных попыток начиная с since.
func (r *Repository) CountFailed(ctx context.Context, userID int64, since time.Time) (int, error) {
	var count int
	err := r.retry.Do(ctx, "admin.count_failed", func(ctx context.Context) error {
		return r.db.QueryRow(ctx, `
			SELECT COUNT(*) FROM admin_login_attempts
			WHERE user_id = $1 AND success = FALSE AND attempted_at >= $2
		`, userID, since).Scan(&count)
	})
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта попыток входа: %w", err)
	}
	return count, nil
}
