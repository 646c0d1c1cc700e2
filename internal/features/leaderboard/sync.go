// Package leaderboard — sync.go переносит баланс в публичный счёт.
package leaderboard

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/heartpoints/internal/common"
)

// ScoreStore — хранилище публичного счёта.
type ScoreStore interface {
	SetScore(ctx context.Context, userID int64, score int64) error
}

// Sync обновляет публичный счёт после изменения баланса.
// Ошибки не фатальны: счёт догонит баланс при следующем изменении.
type Sync struct {
	store ScoreStore
}

// NewSync создаёт Sync.
func NewSync(store ScoreStore) *Sync {
	return &Sync{store: store}
}

// Push записывает score в профиль пользователя.
// Любая ошибка оборачивается в common.ErrLeaderboardSync.
func (s *Sync) Push(ctx context.Context, userID int64, score int64) error {
	err := s.store.SetScore(ctx, userID, score)
	if err == nil {
		return nil
	}

	if errors.Is(err, common.ErrNotFound) {
		log.WithField("user_id", userID).Warn("Профиль для рейтинга не найден, счёт не обновлён")
	}
	return fmt.Errorf("%w: %w", common.ErrLeaderboardSync, err)
}
