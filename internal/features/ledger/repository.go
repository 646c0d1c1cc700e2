// Package ledger — repository.go выполняет все операции с таблицами user_stats и points_journal.
// Изменения баланса выполняются в транзакциях БД с блокировкой строки.
package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/heartpoints/internal/common"
	"serotonyl.ru/heartpoints/internal/db/postgres"
)

const selectStats = `
	SELECT user_id, heart_points, total_tasks_completed, daily_streak,
	       longest_streak, last_daily_task_date, last_updated
	FROM user_stats
`

// Repository — хранилище статистики в PostgreSQL.
type Repository struct {
	db    *pgxpool.Pool
	retry *postgres.Retrier
	loc   *time.Location
}

// NewRepository создаёт репозиторий ledger.
// loc — пояс приложения, в нём трактуются колонки DATE.
func NewRepository(db *pgxpool.Pool, retry *postgres.Retrier, loc *time.Location) *Repository {
	return &Repository{db: db, retry: retry, loc: loc}
}

// Get возвращает статистику пользователя.
func (r *Repository) Get(ctx context.Context, userID int64) (*UserStats, error) {
	var stats *UserStats
	err := r.retry.Do(ctx, "ledger.get", func(ctx context.Context) error {
		var err error
		stats, err = r.scanStats(r.db.QueryRow(ctx, selectStats+` WHERE user_id = $1`, userID))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка получения статистики: %w", err)
	}
	return stats, nil
}

// Create создаёт запись статистики. Для существующей записи возвращает common.ErrAlreadyExists.
func (r *Repository) Create(ctx context.Context, stats *UserStats) error {
	err := r.retry.Do(ctx, "ledger.create", func(ctx context.Context) error {
		_, err := r.db.Exec(ctx, `
			INSERT INTO user_stats (user_id, heart_points, total_tasks_completed, daily_streak,
			                        longest_streak, last_daily_task_date, last_updated)
			VALUES ($1, $2, $3, $4, $5, $6::date, $7)
		`, stats.UserID, stats.HeartPoints, stats.TotalTasksCompleted, stats.DailyStreak,
			stats.LongestStreak, postgres.DateParam(stats.LastDailyTaskDate), stats.LastUpdated)
		return err
	})
	if err != nil {
		return fmt.Errorf("ошибка создания статистики: %w", err)
	}
	return nil
}

// Update частично обновляет статистику. Если записи нет — common.ErrNotFound.
func (r *Repository) Update(ctx context.Context, userID int64, patch StatsPatch) error {
	sets := []string{"last_updated = NOW()"}
	args := []any{userID}

	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.HeartPoints != nil {
		add("heart_points", max(0, *patch.HeartPoints))
	}
	if patch.TotalTasksCompleted != nil {
		add("total_tasks_completed", *patch.TotalTasksCompleted)
	}
	if patch.DailyStreak != nil {
		add("daily_streak", *patch.DailyStreak)
	}
	if patch.LongestStreak != nil {
		add("longest_streak", *patch.LongestStreak)
	}
	if patch.ClearLastDailyDate {
		sets = append(sets, "last_daily_task_date = NULL")
	}

	query := fmt.Sprintf(`UPDATE user_stats SET %s WHERE user_id = $1`, strings.Join(sets, ", "))

	err := r.retry.Do(ctx, "ledger.update", func(ctx context.Context) error {
		tag, err := r.db.Exec(ctx, query, args...)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return common.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("ошибка обновления статистики: %w", err)
	}
	return nil
}

// Apply атомарно применяет изменение: строка блокируется FOR UPDATE,
// новое состояние считает ApplyMutation, изменение баланса пишется в журнал.
func (r *Repository) Apply(ctx context.Context, userID int64, m Mutation) (*UserStats, error) {
	var out *UserStats
	err := r.retry.Do(ctx, "ledger.apply", func(ctx context.Context) error {
		return postgres.WithTx(ctx, r.db, func(tx pgx.Tx) error {
			cur, err := r.scanStats(tx.QueryRow(ctx, selectStats+` WHERE user_id = $1 FOR UPDATE`, userID))
			if err != nil {
				return err
			}

			next, err := ApplyMutation(*cur, m, time.Now())
			if err != nil {
				return err
			}

			_, err = tx.Exec(ctx, `
				UPDATE user_stats
				SET heart_points = $2, total_tasks_completed = $3, daily_streak = $4,
				    longest_streak = $5, last_daily_task_date = $6::date, last_updated = $7
				WHERE user_id = $1
			`, userID, next.HeartPoints, next.TotalTasksCompleted, next.DailyStreak,
				next.LongestStreak, postgres.DateParam(next.LastDailyTaskDate), next.LastUpdated)
			if err != nil {
				return fmt.Errorf("ошибка записи статистики: %w", err)
			}

			// Записываем фактическое изменение баланса в журнал
			if delta := next.HeartPoints - cur.HeartPoints; delta != 0 {
				_, err = tx.Exec(ctx, `
					INSERT INTO points_journal (id, user_id, delta, balance_after, streak_after, reason)
					VALUES ($1, $2, $3, $4, $5, $6)
				`, uuid.New(), userID, delta, next.HeartPoints, next.DailyStreak, m.Reason)
				if err != nil {
					return fmt.Errorf("ошибка записи в журнал: %w", err)
				}
			}

			out = &next
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка изменения статистики: %w", err)
	}
	return out, nil
}

// History возвращает последние limit записей журнала.
func (r *Repository) History(ctx context.Context, userID int64, limit int) ([]*JournalEntry, error) {
	var entries []*JournalEntry
	err := r.retry.Do(ctx, "ledger.history", func(ctx context.Context) error {
		rows, err := r.db.Query(ctx, `
			SELECT id, user_id, delta, balance_after, streak_after, reason, created_at
			FROM points_journal
			WHERE user_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		`, userID, limit)
		if err != nil {
			return err
		}
		entries, err = pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[JournalEntry])
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка получения журнала: %w", err)
	}
	return entries, nil
}

// ListStreaks возвращает статистику пользователей с огоньком не меньше minStreak.
func (r *Repository) ListStreaks(ctx context.Context, minStreak int) ([]*UserStats, error) {
	var list []*UserStats
	err := r.retry.Do(ctx, "ledger.list_streaks", func(ctx context.Context) error {
		rows, err := r.db.Query(ctx, selectStats+` WHERE daily_streak >= $1 ORDER BY user_id`, minStreak)
		if err != nil {
			return err
		}
		defer rows.Close()

		list = list[:0]
		for rows.Next() {
			st, err := r.scanStats(rows)
			if err != nil {
				return err
			}
			list = append(list, st)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка получения огоньков: %w", err)
	}
	return list, nil
}

func (r *Repository) scanStats(row pgx.Row) (*UserStats, error) {
	var st UserStats
	err := row.Scan(
		&st.UserID, &st.HeartPoints, &st.TotalTasksCompleted, &st.DailyStreak,
		&st.LongestStreak, &st.LastDailyTaskDate, &st.LastUpdated,
	)
	if err != nil {
		return nil, err
	}
	st.LastDailyTaskDate = postgres.DateValue(st.LastDailyTaskDate, r.loc)
	return &st, nil
}
