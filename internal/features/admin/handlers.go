// Package admin — handlers.go ведёт диалог сброса данных в личных сообщениях.
// Поток: !сброс [user_id] → бот просит пароль → следующий ответ считается паролем.
package admin

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/heartpoints/internal/common"
)

// Handler обрабатывает команду сброса.
type Handler struct {
	service *Service
	bot     common.Sender
}

// NewHandler создаёт обработчик.
func NewHandler(service *Service, bot common.Sender) *Handler {
	return &Handler{service: service, bot: bot}
}

// HandleReset начинает диалог сброса. Без аргумента сбрасываются свои данные.
func (h *Handler) HandleReset(ctx context.Context, chatID, userID int64, args []string) {
	if chatID != userID {
		common.SendText(h.bot, chatID, "🔐 Сброс доступен только в личных сообщениях")
		return
	}

	targetID := userID
	if len(args) > 0 {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || id <= 0 {
			common.SendText(h.bot, chatID, "❌ Использование: !сброс [user_id]")
			return
		}
		targetID = id
	}

	h.service.SetState(userID, StateAwaitingPassword, targetID)
	common.SendText(h.bot, chatID, fmt.Sprintf(
		"⚠️ Будут удалены очки, серия и счётчик задач пользователя %d.\n🔐 Введите пароль администратора:", targetID))
}

// HandleMessage обрабатывает сообщение в личке, если идёт диалог сброса.
// Возвращает true, если сообщение обработано.
func (h *Handler) HandleMessage(ctx context.Context, chatID, userID int64, text string) bool {
	state := h.service.GetState(userID)
	if state == nil || state.State != StateAwaitingPassword {
		return false
	}
	h.service.ClearState(userID)

	err := h.service.ClearUserData(ctx, userID, state.TargetID, text)
	switch {
	case err == nil:
		common.SendText(h.bot, chatID, "✅ Данные сброшены")
	case errors.Is(err, common.ErrWrongPassword), errors.Is(err, common.ErrTooManyAttempts):
		common.SendText(h.bot, chatID, fmt.Sprintf("❌ %s", err.Error()))
	case errors.Is(err, common.ErrNotFound):
		common.SendText(h.bot, chatID, "❌ У пользователя нет данных")
	default:
		log.WithError(err).WithField("target_id", state.TargetID).Error("Ошибка сброса данных")
		common.SendText(h.bot, chatID, "❌ Не удалось сбросить данные, попробуйте позже")
	}
	return true
}
