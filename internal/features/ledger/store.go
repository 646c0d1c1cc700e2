// Package ledger — store.go описывает хранилища, с которыми работает ledger.
package ledger

import "context"

// StatStore — постоянное хранилище статистики пользователей.
//
// Ошибки:
//   - common.ErrNotFound — записи нет (или её удалили параллельно)
//   - common.ErrAlreadyExists — Create для существующей записи
//   - common.ErrConflict — Apply: дата бонуса изменилась с момента чтения
//   - common.ErrInsufficientBalance — Apply с RequireFunds и нехваткой очков
//   - common.ErrStoreUnavailable / common.ErrWriteFailed — сбой БД
type StatStore interface {
	Get(ctx context.Context, userID int64) (*UserStats, error)
	Create(ctx context.Context, stats *UserStats) error
	Update(ctx context.Context, userID int64, patch StatsPatch) error
	// Apply атомарно применяет изменение через ApplyMutation и возвращает новое состояние.
	Apply(ctx context.Context, userID int64, m Mutation) (*UserStats, error)
}

// ScorePublisher обновляет публичный счёт в рейтинге.
type ScorePublisher interface {
	Push(ctx context.Context, userID int64, score int64) error
}

// JournalReader читает журнал изменений баланса.
type JournalReader interface {
	History(ctx context.Context, userID int64, limit int) ([]*JournalEntry, error)
}

// StreakLister перечисляет пользователей с активным огоньком.
type StreakLister interface {
	ListStreaks(ctx context.Context, minStreak int) ([]*UserStats, error)
}
