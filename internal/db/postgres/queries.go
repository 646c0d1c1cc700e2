// Package postgres — вспомогательные функции для работы с БД.
// queries.go содержит общие утилиты для выполнения запросов.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// dateLayout — формат, в котором календарные даты передаются в колонки DATE.
const dateLayout = "2006-01-02"

// WithTx выполняет fn в транзакции. Если fn вернёт ошибку,
// транзакция откатится автоматически.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(tx pgx.Tx) error) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}
	return nil
}

// DateParam превращает календарную дату в параметр для колонки DATE.
// Год, месяц и день берутся в поясе самой даты, без перевода в UTC.
// nil передаётся как NULL.
func DateParam(d *time.Time) any {
	if d == nil {
		return nil
	}
	return d.Format(dateLayout)
}

// DateValue восстанавливает дату, прочитанную из колонки DATE, в поясе loc.
// pgx отдаёт DATE как полночь UTC; здесь сохраняются год, месяц и день.
func DateValue(d *time.Time, loc *time.Location) *time.Time {
	if d == nil {
		return nil
	}
	if loc == nil {
		loc = time.UTC
	}
	v := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
	return &v
}
