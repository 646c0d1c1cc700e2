// Package tasks — handlers.go обрабатывает команды бота !задачи, !добавить, !выполнить и !отменить.
package tasks

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/heartpoints/internal/common"
	"serotonyl.ru/heartpoints/internal/features/ledger"
)

// Sessions открывает сессию ledger пользователя.
type Sessions interface {
	Acquire(ctx context.Context, userID int64) (*ledger.Session, error)
}

// Слова, которыми в боте задаётся тип повторения
var repeatWords = map[string]RepeatType{
	"ежедневно":    RepeatDaily,
	"ежедневная":   RepeatDaily,
	"daily":        RepeatDaily,
	"еженедельно":  RepeatWeekly,
	"еженедельная": RepeatWeekly,
	"weekly":       RepeatWeekly,
}

// Handler обрабатывает команды задач.
type Handler struct {
	service  *Service
	sessions Sessions
	bot      common.Sender
}

// NewHandler создаёт обработчик.
func NewHandler(service *Service, sessions Sessions, bot common.Sender) *Handler {
	return &Handler{service: service, sessions: sessions, bot: bot}
}

// HandleList обрабатывает !задачи.
func (h *Handler) HandleList(ctx context.Context, chatID, userID int64) {
	list, err := h.service.List(ctx, userID)
	if err != nil {
		h.fail(chatID, userID, "list", err)
		return
	}
	if len(list) == 0 {
		common.SendText(h.bot, chatID, "📋 Задач пока нет. Добавь: !добавить [ежедневно|еженедельно] <название>")
		return
	}

	var sb strings.Builder
	sb.WriteString("📋 Твои задачи:\n\n")
	for _, t := range list {
		mark := "⬜"
		if t.Completed {
			mark = "✅"
		}
		fmt.Fprintf(&sb, "%s %d. %s%s\n", mark, t.ID, t.Title, repeatLabel(t.RepeatType))
	}
	sb.WriteString("\n!выполнить <номер> — отметить выполненной")
	common.SendText(h.bot, chatID, sb.String())
}

// HandleAdd обрабатывает !добавить [ежедневно|еженедельно] <название>.
func (h *Handler) HandleAdd(ctx context.Context, chatID, userID int64, args []string) {
	repeat := RepeatCustom
	if len(args) > 0 {
		if rt, ok := repeatWords[strings.ToLower(args[0])]; ok {
			repeat = rt
			args = args[1:]
		}
	}

	task, err := h.service.Create(ctx, userID, strings.Join(args, " "), repeat)
	if err != nil {
		h.fail(chatID, userID, "create", err)
		return
	}
	common.SendText(h.bot, chatID, fmt.Sprintf("➕ Задача %d добавлена: %s%s", task.ID, task.Title, repeatLabel(task.RepeatType)))
}

// HandleComplete обрабатывает !выполнить <номер>.
func (h *Handler) HandleComplete(ctx context.Context, chatID, userID int64, args []string) {
	taskID, session, ok := h.prepare(ctx, chatID, userID, args, "!выполнить")
	if !ok {
		return
	}

	res, err := h.service.Complete(ctx, session, taskID)
	if err != nil {
		h.fail(chatID, userID, "complete", err)
		return
	}

	text := fmt.Sprintf("✅ %s\n%s · баланс %s", res.Task.Title,
		common.FormatPointsDelta(res.PointsDelta), common.FormatBalance(res.Balance))
	if res.StreakBonus {
		text += fmt.Sprintf("\n🔥 Огонек: %d %s", res.Streak, common.PluralizeDays(res.Streak))
	}
	common.SendText(h.bot, chatID, text)
}

// HandleUncomplete обрабатывает !отменить <номер>.
func (h *Handler) HandleUncomplete(ctx context.Context, chatID, userID int64, args []string) {
	taskID, session, ok := h.prepare(ctx, chatID, userID, args, "!отменить")
	if !ok {
		return
	}

	res, err := h.service.Uncomplete(ctx, session, taskID)
	if err != nil {
		h.fail(chatID, userID, "uncomplete", err)
		return
	}
	common.SendText(h.bot, chatID, fmt.Sprintf("↩️ Выполнение отменено: %s\n%s · баланс %s", res.Task.Title,
		common.FormatPointsDelta(res.PointsDelta), common.FormatBalance(res.Balance)))
}

func (h *Handler) prepare(ctx context.Context, chatID, userID int64, args []string, usage string) (int64, *ledger.Session, bool) {
	if len(args) == 0 {
		common.SendText(h.bot, chatID, fmt.Sprintf("❌ Использование: %s <номер задачи>", usage))
		return 0, nil, false
	}
	taskID, err := strconv.ParseInt(strings.TrimPrefix(args[0], "#"), 10, 64)
	if err != nil || taskID <= 0 {
		common.SendText(h.bot, chatID, "❌ Номер задачи должен быть числом")
		return 0, nil, false
	}

	session, err := h.sessions.Acquire(ctx, userID)
	if err != nil {
		h.fail(chatID, userID, "acquire", err)
		return 0, nil, false
	}
	return taskID, session, true
}

func (h *Handler) fail(chatID, userID int64, op string, err error) {
	log.WithError(err).WithFields(log.Fields{
		"user_id": userID,
		"op":      op,
	}).Warn("Ошибка команды задач")
	common.SendText(h.bot, chatID, common.ErrorText(err))
}

func repeatLabel(rt RepeatType) string {
	switch rt {
	case RepeatDaily:
		return " 🔁 ежедневно"
	case RepeatWeekly:
		return " 🔁 еженедельно"
	default:
		return ""
	}
}
