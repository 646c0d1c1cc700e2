// Package tasks управляет задачами пользователя: созданием, выполнением
// и сбросом повторяющихся задач.
// models.go описывает структуры данных для таблицы tasks.
package tasks

import (
	"strings"
	"time"

	"serotonyl.ru/heartpoints/internal/common"
)

// RepeatType — как часто задача повторяется.
type RepeatType string

const (
	RepeatDaily  RepeatType = "DAILY"
	RepeatWeekly RepeatType = "WEEKLY"
	RepeatCustom RepeatType = "CUSTOM"
)

// ParseRepeatType разбирает тип повторения (без учёта регистра).
// Пустая строка — CUSTOM.
func ParseRepeatType(s string) (RepeatType, error) {
	switch RepeatType(strings.ToUpper(strings.TrimSpace(s))) {
	case RepeatDaily:
		return RepeatDaily, nil
	case RepeatWeekly:
		return RepeatWeekly, nil
	case RepeatCustom, "":
		return RepeatCustom, nil
	default:
		return "", common.ErrInvalidRepeatType
	}
}

// Task — задача пользователя.
type Task struct {
	ID                int64      `db:"id" json:"id"`
	UserID            int64      `db:"user_id" json:"user_id"`
	Title             string     `db:"title" json:"title"`
	Completed         bool       `db:"completed" json:"completed"`
	RepeatType        RepeatType `db:"repeat_type" json:"repeat_type"`
	LastCompletedDate *time.Time `db:"last_completed_date" json:"last_completed_date,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

// IsDaily сообщает, ежедневная ли задача (за неё начисляется бонус огонька).
func (t *Task) IsDaily() bool {
	return t.RepeatType == RepeatDaily
}

// CompletionResult — итог выполнения или отмены задачи.
type CompletionResult struct {
	Task                *Task `json:"task"`
	PointsDelta         int64 `json:"points_delta"`
	Balance             int64 `json:"balance"`
	Streak              int   `json:"streak"`
	StreakBonus         bool  `json:"streak_bonus"`
	TotalTasksCompleted int64 `json:"total_tasks_completed"`
	LeaderboardSynced   bool  `json:"leaderboard_synced"`
}
