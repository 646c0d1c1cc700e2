// Package leaderboard — repository.go отвечает за все операции с таблицей profiles в БД.
// Каждая функция выполняет один SQL-запрос и возвращает результат или ошибку.
package leaderboard

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

type Repository struct {
	db    *pgxpool.Pool
	retry *postgres.Retrier
}

func NewRepository(db *pgxpool.Pool, retry *postgres.Retrier) *Repository {
	return &Repository{db: db, retry: retry}
}

// Upsert создаёт профиль. На конфликте по user_id обновляет только имя и чат
// (счёт не трогает). Пустые значения не затирают сохранённые.
func (r *Repository) Upsert(ctx context.Context, p *Profile) error {
	err := r.retry.Do(ctx, "profiles.upsert", func(ctx context.Context) error {
		_, err := r.db.Exec(ctx, `
			INSERT INTO profiles (user_id, display_name, telegram_chat_id, public_score)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (user_id) DO UPDATE
			SET display_name = COALESCE(NULLIF(EXCLUDED.display_name, ''), profiles.display_name),
			    telegram_chat_id = COALESCE(EXCLUDED.telegram_chat_id, profiles.telegram_chat_id),
			    updated_at = NOW()
		`, p.UserID, p.DisplayName, p.TelegramChatID, p.PublicScore)
		return err
	})
	if err != nil {
		return fmt.Errorf("ошибка создания/обновления профиля: %w", err)
	}
	return nil
}

// Get возвращает профиль. Если его нет — common.ErrNotFound.
func (r *Repository) Get(ctx context.Context, userID int64) (*Profile, error) {
	var p *Profile
	err := r.retry.Do(ctx, "profiles.get", func(ctx context.Context) error {
		rows, err := r.db.Query(ctx, `
			SELECT user_id, display_name, telegram_chat_id, public_score, created_at, updated_at
			FROM profiles
			WHERE user_id = $1
		`, userID)
		if err != nil {
			return err
		}
		p, err = pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[Profile])
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка получения профиля: %w", err)
	}
	return p, nil
}

// SetScore записывает публичный счёт. Если профиля нет — common.ErrNotFound.
func (r *Repository) SetScore(ctx context.Context, userID int64, score int64) error {
	err := r.retry.Do(ctx, "profiles.set_score", func(ctx context.Context) error {
		tag, err := r.db.Exec(ctx, `
			UPDATE profiles SET public_score = $2, updated_at = NOW() WHERE user_id = $1
		`, userID, score)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return common.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("ошибка обновления счёта: %w", err)
	}
	return nil
}

// Top возвращает первые limit профилей по счёту.
// При равном счёте выше тот, у кого меньше user_id.
func (r *Repository) Top(ctx context.Context, limit int) ([]*Profile, error) {
	var list []*Profile
	err := r.retry.Do(ctx, "profiles.top", func(ctx context.Context) error {
		rows, err := r.db.Query(ctx, `
			SELECT user_id, display_name, telegram_chat_id, public_score, created_at, updated_at
			FROM profiles
			ORDER BY public_score DESC, user_id ASC
			LIMIT $1
		`, limit)
		if err != nil {
			return err
		}
		list, err = pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[Profile])
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка получения рейтинга: %w", err)
	}
	return list, nil
}

// Rank возвращает место пользователя в рейтинге (с 1).
func (r *Repository) Rank(ctx context.Context, userID int64) (int, error) {
	var rank int
	err := r.retry.Do(ctx, "profiles.rank", func(ctx context.Context) error {
		return r.db.QueryRow(ctx, `
			SELECT 1 + COUNT(*)
			FROM profiles o, profiles p
			WHERE p.user_id = $1
			  AND (o.public_score > p.public_score
			       OR (o.public_score = p.public_score AND o.user_id < p.user_id))
		`, userID).Scan(&rank)
	})
	if err != nil {
		return 0, fmt.Errorf("ошибка получения места в рейтинге: %w", err)
	}
	return rank, nil
}

// ClaimReminder отмечает, что напоминание за day отправлено.
// Возвращает чат для отправки и false, если напоминание уже было
// или у пользователя нет Telegram-чата.
func (r *Repository) ClaimReminder(ctx context.Context, userID int64, day time.Time) (int64, bool, error) {
	var chatID int64
	err := r.retry.Do(ctx, "profiles.claim_reminder", func(ctx context.Context) error {
		return r.db.QueryRow(ctx, `
			UPDATE profiles
			SET last_reminder_on = $2::date
			WHERE user_id = $1
			  AND telegram_chat_id IS NOT NULL
			  AND (last_reminder_on IS NULL OR last_reminder_on < $2::date)
			RETURNING telegram_chat_id
		`, userID, postgres.DateParam(&day)).Scan(&chatID)
	})
	if errors.Is(err, common.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("ошибка отметки напоминания: %w", err)
	}
	return chatID, true, nil
}
