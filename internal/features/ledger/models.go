// Package ledger ведёт баланс очков, счётчик выполненных задач и огонёк
// (ежедневную серию) пользователя.
// models.go описывает структуры данных и правило применения изменений.
package ledger

import (
	"math"
	"time"

	"github.com/google/uuid"

	"serotonyl.ru/heartpoints/internal/common"
)

// UserStats — статистика пользователя (таблица user_stats).
type UserStats struct {
	UserID              int64      `db:"user_id"`
	HeartPoints         int64      `db:"heart_points"`          // Текущий баланс, никогда не меньше 0
	TotalTasksCompleted int64      `db:"total_tasks_completed"` // Всего выполнено задач, только растёт
	DailyStreak         int        `db:"daily_streak"`          // Огонёк: дней подряд с бонусом
	LongestStreak       int        `db:"longest_streak"`        // Личный рекорд огонька
	LastDailyTaskDate   *time.Time `db:"last_daily_task_date"`  // Дата последнего бонуса за ежедневную задачу
	LastUpdated         time.Time  `db:"last_updated"`
}

// Snapshot — состояние сессии, которое видят экраны.
type Snapshot struct {
	UserID              int64      `json:"user_id"`
	HeartPoints         int64      `json:"heart_points"`
	TotalTasksCompleted int64      `json:"total_tasks_completed"`
	DailyStreak         int        `json:"daily_streak"`
	LongestStreak       int        `json:"longest_streak"`
	LastDailyTaskDate   *time.Time `json:"last_daily_task_date,omitempty"`
	Loading             bool       `json:"loading"`
}

// StreakChange — изменение огонька внутри Mutation.
// Применяется, только если дата последнего бонуса в хранилище
// всё ещё равна Expect, иначе хранилище вернёт common.ErrConflict.
type StreakChange struct {
	Expect *time.Time // Дата, которую видели при чтении
	Streak int        // Новое значение огонька
	Date   *time.Time // Новая дата бонуса; nil — не менять
}

// Mutation — атомарное изменение статистики.
type Mutation struct {
	PointsDelta         int64
	RequireFunds        bool // Отказать, если баланс уйдёт в минус (вместо обрезки до 0)
	TasksCompletedDelta int64
	Streak              *StreakChange
	Reason              string // Описание для журнала
}

// StatsPatch — частичное обновление статистики. nil-поля не меняются.
type StatsPatch struct {
	HeartPoints         *int64
	TotalTasksCompleted *int64
	DailyStreak         *int
	LongestStreak       *int
	ClearLastDailyDate  bool
}

// AwardResult — итог начисления.
type AwardResult struct {
	Amount            int64 `json:"amount"`             // Фактическое изменение баланса
	Balance           int64 `json:"balance"`            // Баланс после начисления
	Streak            int   `json:"streak"`             // Огонёк после начисления
	StreakBonus       bool  `json:"streak_bonus"`       // Начислен бонус за серию
	LeaderboardSynced bool  `json:"leaderboard_synced"` // Публичный счёт обновлён
}

// JournalEntry — запись журнала изменений баланса (таблица points_journal).
type JournalEntry struct {
	ID           uuid.UUID `db:"id" json:"id"`
	UserID       int64     `db:"user_id" json:"user_id"`
	Delta        int64     `db:"delta" json:"delta"`
	BalanceAfter int64     `db:"balance_after" json:"balance_after"`
	StreakAfter  int       `db:"streak_after" json:"streak_after"`
	Reason       string    `db:"reason" json:"reason"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// ApplyMutation вычисляет новое состояние статистики.
// Хранилище вызывает её над строкой, заблокированной на запись.
//
// Правила:
//   - баланс обрезается снизу нулём: max(0, баланс + delta)
//   - начисление, переполняющее int64, отклоняется (common.ErrInvalidAmount)
//   - при RequireFunds списание больше баланса отклоняется
//   - счётчик задач только растёт
//   - огонёк меняется, только если дата бонуса не изменилась с момента чтения
//   - дата бонуса не двигается назад
func ApplyMutation(cur UserStats, m Mutation, now time.Time) (UserStats, error) {
	if m.Streak != nil && !common.SameDate(cur.LastDailyTaskDate, m.Streak.Expect) {
		return cur, common.ErrConflict
	}
	if m.PointsDelta > 0 && cur.HeartPoints > math.MaxInt64-m.PointsDelta {
		return cur, common.ErrInvalidAmount
	}
	if m.RequireFunds && cur.HeartPoints+m.PointsDelta < 0 {
		return cur, common.ErrInsufficientBalance
	}

	next := cur
	next.HeartPoints = max(0, cur.HeartPoints+m.PointsDelta)
	if m.TasksCompletedDelta > 0 {
		next.TotalTasksCompleted += m.TasksCompletedDelta
	}

	if m.Streak != nil {
		next.DailyStreak = max(0, m.Streak.Streak)
		next.LongestStreak = max(cur.LongestStreak, next.DailyStreak)
		if d := m.Streak.Date; d != nil {
			if cur.LastDailyTaskDate != nil && common.DaysBetween(*cur.LastDailyTaskDate, *d) < 0 {
				return cur, common.ErrConflict
			}
			date := common.DateOf(*d)
			next.LastDailyTaskDate = &date
		}
	}

	next.LastUpdated = now
	return next, nil
}
