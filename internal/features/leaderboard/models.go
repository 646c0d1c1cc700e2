// Package leaderboard ведёт публичные профили и рейтинг по очкам.
// models.go описывает структуры данных для таблицы profiles.
package leaderboard

import (
	"fmt"
	"time"
)

// Profile — публичный профиль пользователя.
// PublicScore — копия баланса из user_stats, по ней строится рейтинг.
type Profile struct {
	UserID         int64     `db:"user_id"`
	DisplayName    string    `db:"display_name"`
	TelegramChatID *int64    `db:"telegram_chat_id"` // Куда слать напоминания (nil — некуда)
	PublicScore    int64     `db:"public_score"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// Name возвращает отображаемое имя. Если имени нет — «Игрок <id>».
func (p *Profile) Name() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return fmt.Sprintf("Игрок %d", p.UserID)
}

// Entry — строка рейтинга.
type Entry struct {
	Rank   int    `json:"rank"`
	UserID int64  `json:"user_id"`
	Name   string `json:"name"`
	Score  int64  `json:"score"`
}
