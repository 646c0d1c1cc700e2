// Package leaderboard — handlers.go обрабатывает команду !топ.
package leaderboard

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/heartpoints/internal/common"
)

var medals = []string{"🥇", "🥈", "🥉"}

// Handler обрабатывает команды рейтинга.
type Handler struct {
	service *Service
	bot     common.Sender
}

// NewHandler создаёт обработчик.
func NewHandler(service *Service, bot common.Sender) *Handler {
	return &Handler{service: service, bot: bot}
}

// HandleTop обрабатывает !топ — первые места и место пользователя.
func (h *Handler) HandleTop(ctx context.Context, chatID, userID int64) {
	entries, err := h.service.Top(ctx, DefaultTopLimit)
	if err != nil {
		log.WithError(err).Error("Ошибка получения рейтинга")
		common.SendText(h.bot, chatID, common.ErrorText(err))
		return
	}
	if len(entries) == 0 {
		common.SendText(h.bot, chatID, "🏆 Рейтинг пока пуст")
		return
	}

	var sb strings.Builder
	sb.WriteString("🏆 Топ по очкам:\n\n")
	inTop := false
	for _, e := range entries {
		place := fmt.Sprintf("%d.", e.Rank)
		if e.Rank <= len(medals) {
			place = medals[e.Rank-1]
		}
		fmt.Fprintf(&sb, "%s %s — %s\n", place, e.Name, common.FormatBalance(e.Score))
		if e.UserID == userID {
			inTop = true
		}
	}

	if !inTop {
		// Место вне топа показываем, только если профиль есть
		if rank, err := h.service.Rank(ctx, userID); err == nil && rank > 0 {
			fmt.Fprintf(&sb, "\nТвоё место: %d", rank)
		}
	}

	common.SendText(h.bot, chatID, sb.String())
}
