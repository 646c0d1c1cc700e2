// Package bot содержит Telegram-интерфейс к ledger.
// bot.go принимает готовые обработчики фич и запускает polling.
package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/heartpoints/internal/bot/filters"
	"serotonyl.ru/heartpoints/internal/common"
	"serotonyl.ru/heartpoints/internal/config"
	"serotonyl.ru/heartpoints/internal/features/leaderboard"
	"serotonyl.ru/heartpoints/internal/features/ledger"
	"serotonyl.ru/heartpoints/internal/features/tasks"
	"serotonyl.ru/heartpoints/internal/metrics"
	"serotonyl.ru/heartpoints/internal/middleware"
)

const helpText = `💗 Я считаю очки за выполненные задачи.

!задачи — список задач
!добавить [ежедневно|еженедельно] <название> — новая задача
!выполнить <номер> — отметить выполненной
!отменить <номер> — отменить выполнение
!очки — баланс
!огонек — серия ежедневных задач
!купить <цена> — потратить очки
!история — последние операции
!топ — рейтинг
!сброс [id] — обнулить статистику (нужен пароль)
!выход — завершить сессию`

// Profiles регистрирует профиль пользователя для рейтинга и напоминаний.
type Profiles interface {
	Register(ctx context.Context, userID int64, displayName string, chatID *int64) error
}

// Sessions открывает и закрывает сессии ledger.
type Sessions interface {
	SignIn(ctx context.Context, userID int64) (*ledger.Session, error)
	SignOut(userID int64)
}

// AdminDialog — админ-команды, которые ведут диалог с паролем.
type AdminDialog interface {
	HandleReset(ctx context.Context, chatID, userID int64, args []string)
	HandleMessage(ctx context.Context, chatID, userID int64, text string) bool
}

// Handlers — обработчики команд по фичам.
type Handlers struct {
	Ledger      *ledger.Handler
	Tasks       *tasks.Handler
	Leaderboard *leaderboard.Handler
	Admin       AdminDialog
}

// Bot — главная структура бота, объединяющая все компоненты.
type Bot struct {
	api    *tgbotapi.BotAPI
	sender common.Sender
	cfg    *config.Config

	chatFilter  *filters.ChatFilter
	rateLimiter *middleware.RateLimiter

	handlers Handlers
	profiles Profiles
	sessions Sessions

	parser  *CommandParser
	metrics *metrics.Metrics

	// ограничитель параллелизма обработки апдейтов
	inflight chan struct{}
}

// New создаёт новый экземпляр бота со всеми зависимостями.
// api может быть nil в тестах, тогда Start не вызывается.
func New(
	api *tgbotapi.BotAPI,
	sender common.Sender,
	cfg *config.Config,
	handlers Handlers,
	profiles Profiles,
	sessions Sessions,
	m *metrics.Metrics,
) *Bot {
	maxInFlight := cfg.BotMaxInflight
	if maxInFlight <= 0 {
		maxInFlight = 64
	}

	return &Bot{
		api:         api,
		sender:      sender,
		cfg:         cfg,
		chatFilter:  filters.NewChatFilter(cfg.BotGroupChatID),
		rateLimiter: middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow),
		handlers:    handlers,
		profiles:    profiles,
		sessions:    sessions,
		parser:      NewCommandParser(),
		metrics:     m,
		inflight:    make(chan struct{}, maxInFlight),
	}
}

// Start запускает polling обновлений от Telegram и блокируется до отмены ctx.
func (b *Bot) Start(ctx context.Context) {
	defer b.rateLimiter.Close()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.cfg.BotUpdateTimeoutSeconds

	updates := b.api.GetUpdatesChan(u)

	log.WithFields(log.Fields{
		"max_inflight": b.cfg.BotMaxInflight,
		"timeout_sec":  b.cfg.BotUpdateTimeoutSeconds,
		"group_chat":   b.cfg.BotGroupChatID,
	}).Info("Бот запущен и ожидает сообщения...")

	for {
		select {
		case <-ctx.Done():
			log.Info("Бот останавливается (ctx done)...")
			b.api.StopReceivingUpdates()
			return

		case update, ok := <-updates:
			if !ok {
				log.Info("Канал updates закрыт, бот остановлен")
				return
			}

			// лимит параллелизма
			b.inflight <- struct{}{}
			go func(upd tgbotapi.Update) {
				defer func() { <-b.inflight }()
				b.handleUpdate(ctx, upd)
			}(update)
		}
	}
}

// Notify отправляет напоминание в чат пользователя.
func (b *Bot) Notify(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := b.sender.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("отправка в чат %d: %w", chatID, err)
	}
	log.WithField("chat_id", chatID).Debug("notification sent")
	return nil
}

// handleUpdate обрабатывает одно обновление от Telegram.
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer middleware.RecoverFromPanic()

	if update.Message == nil || update.Message.Text == "" {
		return
	}
	b.handleMessage(ctx, update.Message)
}

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	middleware.LogMessage(message)

	if !b.chatFilter.CheckAccess(message) {
		return
	}

	if !b.rateLimiter.Allow(message.From.ID) {
		log.WithField("user_id", message.From.ID).Debug("rate limited")
		return
	}

	chatID := message.Chat.ID
	userID := message.From.ID

	// В личке сначала проверяем, не ждёт ли админ-диалог пароль
	if message.Chat.IsPrivate() {
		if b.handlers.Admin.HandleMessage(ctx, chatID, userID, message.Text) {
			return
		}
	}

	cmd, args, isCommand := b.parser.ParseCommand(message.Text)
	if !isCommand {
		return
	}
	log.WithFields(log.Fields{
		"cmd":  cmd,
		"args": args,
	}).Debug("parsed command")

	if !b.chatFilter.AllowCommand(message, cmd) {
		common.SendText(b.sender, chatID, "🔒 Эта команда работает только в личных сообщениях")
		return
	}

	b.metrics.BotCommand(cmd)
	if cmd == "start" || cmd == "help" {
		b.handleStart(ctx, message)
		return
	}
	b.routeCommand(ctx, chatID, userID, cmd, args)
}

// handleStart регистрирует профиль, открывает сессию и показывает справку.
func (b *Bot) handleStart(ctx context.Context, message *tgbotapi.Message) {
	userID := message.From.ID

	// chat_id сохраняем только для лички, напоминания в группу не шлём
	var chatID *int64
	if message.Chat.IsPrivate() {
		id := message.Chat.ID
		chatID = &id
	}

	if err := b.profiles.Register(ctx, userID, displayName(message.From), chatID); err != nil {
		log.WithError(err).WithField("user_id", userID).Warn("Register profile failed")
	}
	if _, err := b.sessions.SignIn(ctx, userID); err != nil {
		log.WithError(err).WithField("user_id", userID).Error("SignIn failed")
		common.SendText(b.sender, message.Chat.ID, common.ErrorText(err))
		return
	}

	common.SendText(b.sender, message.Chat.ID, helpText)
}

// routeCommand маршрутизирует команду к нужному обработчику.
func (b *Bot) routeCommand(ctx context.Context, chatID, userID int64, cmd string, args []string) {
	switch cmd {
	case "очки", "баланс":
		b.handlers.Ledger.HandlePoints(ctx, chatID, userID)

	case "огонек", "огонёк":
		b.handlers.Ledger.HandleStreak(ctx, chatID, userID)

	case "купить":
		b.handlers.Ledger.HandleBuy(ctx, chatID, userID, args)

	case "история":
		b.handlers.Ledger.HandleHistory(ctx, chatID, userID)

	case "задачи":
		b.handlers.Tasks.HandleList(ctx, chatID, userID)

	case "добавить":
		b.handlers.Tasks.HandleAdd(ctx, chatID, userID, args)

	case "выполнить", "готово":
		b.handlers.Tasks.HandleComplete(ctx, chatID, userID, args)

	case "отменить":
		b.handlers.Tasks.HandleUncomplete(ctx, chatID, userID, args)

	case "топ":
		b.handlers.Leaderboard.HandleTop(ctx, chatID, userID)

	case "сброс":
		b.handlers.Admin.HandleReset(ctx, chatID, userID, args)

	case "выход":
		b.sessions.SignOut(userID)
		common.SendText(b.sender, chatID, "👋 Сессия завершена. Чтобы вернуться, отправь /start")

	default:
		log.WithField("cmd", cmd).Debug("unknown command")
	}
}

// displayName собирает имя для рейтинга: имя и фамилия, иначе username.
func displayName(u *tgbotapi.User) string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name != "" {
		return name
	}
	if u.UserName != "" {
		return "@" + u.UserName
	}
	return fmt.Sprintf("id%d", u.ID)
}

// CommandParser парсит русские команды с префиксами !, . и /.
type CommandParser struct {
	validPrefixes []string
}

// NewCommandParser создаёт парсер команд.
func NewCommandParser() *CommandParser {
	return &CommandParser{
		validPrefixes: []string{"!", ".", "/"},
	}
}

// ParseCommand разбирает текст на команду и аргументы.
// Суффикс @botname у команд Telegram отбрасывается.
func (p *CommandParser) ParseCommand(text string) (string, []string, bool) {
	text = strings.TrimSpace(text)

	hasPrefix := false
	for _, prefix := range p.validPrefixes {
		if strings.HasPrefix(text, prefix) {
			text = strings.TrimPrefix(text, prefix)
			hasPrefix = true
			break
		}
	}

	if !hasPrefix {
		return "", nil, false
	}

	parts := strings.Fields(text)
	if len(parts) == 0 {
		return "", nil, false
	}

	command := strings.ToLower(parts[0])
	if at := strings.IndexByte(command, '@'); at > 0 {
		command = command[:at]
	}

	var args []string
	if len(parts) > 1 {
		args = parts[1:]
	}

	return command, args, true
}
