package filters

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"
)

// Команды, которые можно вызывать в групповом чате.
// Остальные меняют баланс или показывают личные данные и работают только в личке.
var groupCommands = map[string]bool{
	"start":  true,
	"help":   true,
	"топ":    true,
	"огонек": true,
	"огонёк": true,
	"очки":   true,
	"баланс": true,
}

// ChatFilter решает, где бот отвечает на команды.
type ChatFilter struct {
	groupChatID int64
}

// NewChatFilter создаёт фильтр. groupChatID == 0 — бот работает только в личке.
func NewChatFilter(groupChatID int64) *ChatFilter {
	return &ChatFilter{groupChatID: groupChatID}
}

// CheckAccess проверяет, что сообщение пришло от пользователя из лички или из разрешённой группы.
func (f *ChatFilter) CheckAccess(message *tgbotapi.Message) bool {
	if message == nil || message.Chat == nil {
		log.WithField("component", "ChatFilter").Warn("nil message/chat")
		return false
	}
	if message.From == nil || message.From.IsBot {
		log.WithFields(log.Fields{
			"component": "ChatFilter",
			"chat_id":   message.Chat.ID,
			"chat_type": message.Chat.Type,
		}).Debug("deny: service/bot message")
		return false
	}

	if message.Chat.IsPrivate() {
		return true
	}
	if f.groupChatID != 0 && message.Chat.ID == f.groupChatID {
		return true
	}

	log.WithFields(log.Fields{
		"component": "ChatFilter",
		"chat_id":   message.Chat.ID,
		"chat_type": message.Chat.Type,
	}).Debug("deny: unknown chat")
	return false
}

// AllowCommand сообщает, можно ли выполнить cmd в чате сообщения.
func (f *ChatFilter) AllowCommand(message *tgbotapi.Message, cmd string) bool {
	if message.Chat.IsPrivate() {
		return true
	}
	return groupCommands[cmd]
}
