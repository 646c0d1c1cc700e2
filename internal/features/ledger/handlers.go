// Package ledger — handlers.go обрабатывает команды бота !очки, !огонек, !купить и !история.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/heartpoints/internal/common"
	"serotonyl.ru/heartpoints/internal/features/streak"
)

// botHistoryLimit — сколько записей журнала показывает !история.
const botHistoryLimit = 10

// Handler обрабатывает команды ledger в боте.
type Handler struct {
	manager *Manager
	service *Service
	clock   common.Clock
	loc     *time.Location
	bot     common.Sender
}

// NewHandler создаёт обработчик.
func NewHandler(manager *Manager, service *Service, clock common.Clock, loc *time.Location, bot common.Sender) *Handler {
	return &Handler{manager: manager, service: service, clock: clock, loc: loc, bot: bot}
}

// HandlePoints обрабатывает !очки — баланс и счётчик задач.
func (h *Handler) HandlePoints(ctx context.Context, chatID, userID int64) {
	session, ok := h.acquire(ctx, chatID, userID)
	if !ok {
		return
	}

	snap := session.Snapshot()
	common.SendText(h.bot, chatID, fmt.Sprintf(
		"💗 Твой баланс: %s\n✅ Выполнено: %d %s\n🔥 Огонек: %d %s",
		common.FormatBalance(snap.HeartPoints),
		snap.TotalTasksCompleted, common.PluralizeTasks(snap.TotalTasksCompleted),
		snap.DailyStreak, common.PluralizeDays(snap.DailyStreak),
	))
}

// HandleStreak обрабатывает !огонек — прогресс серии.
//
// Формат ответа (бонус сегодня ещё не получен):
//
//	🔥 Твой огонек
//	Текущая серия: 8 дней
//	Лучшая серия: 12 дней
//	Следующая ежедневная задача: +28 очков
func (h *Handler) HandleStreak(ctx context.Context, chatID, userID int64) {
	session, ok := h.acquire(ctx, chatID, userID)
	if !ok {
		return
	}

	snap := session.Snapshot()
	rules := h.manager.Rules()

	var sb strings.Builder
	sb.WriteString("🔥 Твой огонек\n\n")
	fmt.Fprintf(&sb, "Текущая серия: %d %s\n", snap.DailyStreak, common.PluralizeDays(snap.DailyStreak))
	fmt.Fprintf(&sb, "Лучшая серия: %d %s\n\n", snap.LongestStreak, common.PluralizeDays(snap.LongestStreak))

	switch streak.Classify(snap.LastDailyTaskDate, h.clock.Now()) {
	case streak.StatusGrantedToday:
		sb.WriteString("✅ Бонус за сегодня получен")
	case streak.StatusContinues:
		fmt.Fprintf(&sb, "Следующая ежедневная задача: +%s\n⚠️ Выполни её сегодня, чтобы не потерять серию",
			common.FormatBalance(rules.DailyTaskPoints(snap.DailyStreak+1)))
	default:
		fmt.Fprintf(&sb, "Следующая ежедневная задача: +%s",
			common.FormatBalance(rules.DailyTaskPoints(1)))
	}

	common.SendText(h.bot, chatID, sb.String())
}

// HandleBuy обрабатывает !купить <цена> — списание очков.
func (h *Handler) HandleBuy(ctx context.Context, chatID, userID int64, args []string) {
	if len(args) == 0 {
		common.SendText(h.bot, chatID, "❌ Использование: !купить <цена>")
		return
	}
	price, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || price <= 0 {
		common.SendText(h.bot, chatID, "❌ Цена должна быть положительным числом")
		return
	}

	session, ok := h.acquire(ctx, chatID, userID)
	if !ok {
		return
	}

	if _, err := session.Subtract(ctx, price); err != nil {
		if errors.Is(err, common.ErrInsufficientBalance) {
			common.SendText(h.bot, chatID, fmt.Sprintf("❌ Недостаточно очков. Баланс: %s",
				common.FormatBalance(session.Snapshot().HeartPoints)))
			return
		}
		h.fail(chatID, userID, "buy", err)
		return
	}

	common.SendText(h.bot, chatID, fmt.Sprintf("🛍 Куплено за %s\nОстаток: %s",
		common.FormatBalance(price), common.FormatBalance(session.Snapshot().HeartPoints)))
}

// HandleHistory обрабатывает !история — последние начисления и списания.
func (h *Handler) HandleHistory(ctx context.Context, chatID, userID int64) {
	entries, err := h.service.History(ctx, userID, botHistoryLimit)
	if err != nil {
		h.fail(chatID, userID, "history", err)
		return
	}
	if len(entries) == 0 {
		common.SendText(h.bot, chatID, "📜 История пуста")
		return
	}

	var sb strings.Builder
	sb.WriteString("📜 Последние операции:\n\n")
	for _, e := range entries {
		fmt.Fprintf(&sb, "%s  %s  %s\n",
			common.FormatDateTime(e.CreatedAt, h.loc), common.FormatPointsDelta(e.Delta), e.Reason)
	}
	common.SendText(h.bot, chatID, sb.String())
}

func (h *Handler) acquire(ctx context.Context, chatID, userID int64) (*Session, bool) {
	session, err := h.manager.Acquire(ctx, userID)
	if err != nil {
		h.fail(chatID, userID, "acquire", err)
		return nil, false
	}
	return session, true
}

func (h *Handler) fail(chatID, userID int64, op string, err error) {
	log.WithError(err).WithFields(log.Fields{
		"user_id": userID,
		"op":      op,
	}).Warn("Ошибка команды ledger")
	common.SendText(h.bot, chatID, common.ErrorText(err))
}
