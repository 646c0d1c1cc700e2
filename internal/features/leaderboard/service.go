// Package leaderboard — service.go содержит рейтинг и регистрацию профилей.
package leaderboard

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

// Лимиты рейтинга.
const (
	DefaultTopLimit = 10
	MaxTopLimit     = 100
)

// ProfileStore — хранилище профилей.
type ProfileStore interface {
	ScoreStore
	Upsert(ctx context.Context, p *Profile) error
	Get(ctx context.Context, userID int64) (*Profile, error)
	Top(ctx context.Context, limit int) ([]*Profile, error)
	Rank(ctx context.Context, userID int64) (int, error)
	ClaimReminder(ctx context.Context, userID int64, day time.Time) (int64, bool, error)
}

// Service — рейтинг пользователей.
type Service struct {
	repo ProfileStore
}

// NewService создаёт сервис рейтинга.
func NewService(repo ProfileStore) *Service {
	return &Service{repo: repo}
}

// Register создаёт или обновляет профиль при входе пользователя.
// chatID может быть nil для клиентов без Telegram.
func (s *Service) Register(ctx context.Context, userID int64, displayName string, chatID *int64) error {
	if err := s.repo.Upsert(ctx, &Profile{
		UserID:         userID,
		DisplayName:    displayName,
		TelegramChatID: chatID,
	}); err != nil {
		return fmt.Errorf("ошибка регистрации профиля: %w", err)
	}

	log.WithFields(log.Fields{
		"user_id": userID,
		"name":    displayName,
	}).Debug("Профиль обновлён")
	return nil
}

// Top возвращает первые limit мест рейтинга.
func (s *Service) Top(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultTopLimit
	}
	if limit > MaxTopLimit {
		limit = MaxTopLimit
	}

	profiles, err := s.repo.Top(ctx, limit)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(profiles))
	for i, p := range profiles {
		entries = append(entries, Entry{
			Rank:   i + 1,
			UserID: p.UserID,
			Name:   p.Name(),
			Score:  p.PublicScore,
		})
	}
	return entries, nil
}

// Rank возвращает место пользователя.
func (s *Service) Rank(ctx context.Context, userID int64) (int, error) {
	return s.repo.Rank(ctx, userID)
}

// ClaimReminder — см. Repository.ClaimReminder.
func (s *Service) ClaimReminder(ctx context.Context, userID int64, day time.Time) (int64, bool, error) {
	return s.repo.ClaimReminder(ctx, userID, day)
}
