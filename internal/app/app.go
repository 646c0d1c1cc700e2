// Package app инициализирует все компоненты приложения.
// app.go — точка сборки: создаёт БД-пул, репозитории, сервисы, HTTP API,
// Telegram-бота и планировщик, а Run запускает их вместе.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"serotonyl.ru/heartpoints/internal/bot"
	"serotonyl.ru/heartpoints/internal/common"
	"serotonyl.ru/heartpoints/internal/config"
	"serotonyl.ru/heartpoints/internal/db/postgres"
	"serotonyl.ru/heartpoints/internal/features/admin"
	"serotonyl.ru/heartpoints/internal/features/leaderboard"
	"serotonyl.ru/heartpoints/internal/features/ledger"
	"serotonyl.ru/heartpoints/internal/features/streak"
	"serotonyl.ru/heartpoints/internal/features/tasks"
	"serotonyl.ru/heartpoints/internal/httpapi"
	"serotonyl.ru/heartpoints/internal/jobs"
	"serotonyl.ru/heartpoints/internal/metrics"
	"serotonyl.ru/heartpoints/internal/middleware"
)

// Core — хранилище и доменные сервисы без внешних интерфейсов.
// Его же использует ledgerctl для разовых операций.
type Core struct {
	Cfg   *config.Config
	DB    *pgxpool.Pool
	Loc   *time.Location
	Clock common.Clock
	Rules streak.Rules

	Sessions   *ledger.Manager
	Ledger     *ledger.Service
	Tasks      *tasks.Service
	Reconciler *tasks.Reconciler
	Board      *leaderboard.Service
	Admin      *admin.Service
}

// App содержит все компоненты приложения.
type App struct {
	*Core

	HTTP      *http.Server
	Bot       *bot.Bot // nil, если бот выключен
	Scheduler *jobs.Scheduler

	limiter *middleware.RateLimiter
}

// NewCore подключается к БД, применяет миграции и собирает сервисы.
func NewCore(ctx context.Context, cfg *config.Config) (*Core, error) {
	// === 1. База данных ===
	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
	}
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ошибка миграций: %w", err)
	}
	retrier := postgres.NewRetrier(cfg.LedgerOpTimeout, cfg.LedgerRetryAttempts, cfg.LedgerRetryBase)

	loc := common.LoadLocation(cfg.AppTimezone)
	clock := common.SystemClock{Location: loc}
	rules := streak.Rules{
		PointsPerTask:         cfg.LedgerPointsPerTask,
		DailyTaskBasePoints:   cfg.LedgerDailyBasePoints,
		StreakBonusMultiplier: cfg.LedgerStreakMultiplier,
	}

	// === 2. Репозитории ===
	ledgerRepo := ledger.NewRepository(pool, retrier, loc)
	boardRepo := leaderboard.NewRepository(pool, retrier)
	taskRepo := tasks.NewRepository(pool, retrier, loc)
	adminRepo := admin.NewRepository(pool, retrier)

	// === 3. Сервисы ===
	manager := ledger.NewManager(ledgerRepo, leaderboard.NewSync(boardRepo), clock, rules)
	reconciler := tasks.NewReconciler(taskRepo)

	return &Core{
		Cfg:        cfg,
		DB:         pool,
		Loc:        loc,
		Clock:      clock,
		Rules:      rules,
		Sessions:   manager,
		Ledger:     ledger.NewService(ledgerRepo, ledgerRepo, ledgerRepo, manager),
		Tasks:      tasks.NewService(taskRepo, reconciler, clock, rules),
		Reconciler: reconciler,
		Board:      leaderboard.NewService(boardRepo),
		Admin:      admin.NewService(adminRepo, ledgerRepo, boardRepo, manager, cfg.AdminPasswordHash, clock),
	}, nil
}

// Close закрывает пул соединений.
func (c *Core) Close() {
	c.DB.Close()
}

// New создаёт и инициализирует приложение.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	core, err := NewCore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// === 4. HTTP API ===
	limiter := middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow)
	var m *metrics.Metrics
	if cfg.FeatureMetricsEnabled {
		m = metrics.New()
		m.TrackSessions(core.Sessions.Count)
	}

	handler := httpapi.NewHandler(core.Sessions, core.Ledger, core.Tasks, core.Board, core.Admin, core.DB)
	server := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: handler.Router(httpapi.RouterOptions{
			Auth:        middleware.NewAuth(cfg.AuthSecret),
			Limiter:     limiter,
			Metrics:     m,
			CORSOrigins: cfg.HTTPCORSOrigins,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	a := &App{Core: core, HTTP: server, limiter: limiter}

	// === 5. Telegram-бот (опционально) ===
	// notifier остаётся nil-интерфейсом, если бота нет
	var notifier jobs.Notifier
	if cfg.BotEnabled() {
		b, err := newBot(cfg, core, m)
		if err != nil {
			limiter.Close()
			core.Close()
			return nil, err
		}
		a.Bot = b
		notifier = b
	} else {
		log.Info("Telegram-бот выключен (нет TELEGRAM_BOT_TOKEN или FEATURE_BOT_ENABLED=false)")
	}

	// === 6. Планировщик задач ===
	a.Scheduler = jobs.NewScheduler(core.Loc, core.Clock, jobs.Options{
		DailySpec:         cfg.CronDailyReset,
		ReminderSpec:      cfg.CronReminders,
		ReminderThreshold: cfg.StreakReminderThreshold,
		ReminderHour:      cfg.StreakReminderHour,
		RemindersEnabled:  cfg.FeatureRemindersEnabled,
		Metrics:           m,
	}, core.Reconciler, core.Ledger, core.Board, notifier)

	return a, nil
}

func newBot(cfg *config.Config, core *Core, m *metrics.Metrics) (*bot.Bot, error) {
	botAPI, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания Telegram API: %w", err)
	}
	botAPI.Debug = cfg.AppEnv == "development"
	log.Infof("Авторизован как @%s", botAPI.Self.UserName)

	handlers := bot.Handlers{
		Ledger:      ledger.NewHandler(core.Sessions, core.Ledger, core.Clock, core.Loc, botAPI),
		Tasks:       tasks.NewHandler(core.Tasks, core.Sessions, botAPI),
		Leaderboard: leaderboard.NewHandler(core.Board, botAPI),
		Admin:       admin.NewHandler(core.Admin, botAPI),
	}
	return bot.New(botAPI, botAPI, cfg, handlers, core.Board, core.Sessions, m), nil
}

// Run запускает HTTP-сервер, бота и планировщик и блокируется до отмены ctx
// или ошибки одного из компонентов.
func (a *App) Run(ctx context.Context) error {
	if err := a.Scheduler.Start(ctx); err != nil {
		return err
	}
	defer a.Scheduler.Stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.WithField("addr", a.HTTP.Addr).Info("HTTP API запущен")
		if err := a.HTTP.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Cfg.HTTPShutdownTimeout)
		defer cancel()

		if err := a.HTTP.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("ошибка остановки HTTP-сервера: %w", err)
		}
		log.Info("HTTP API остановлен")
		return nil
	})

	if a.Bot != nil {
		g.Go(func() error {
			a.Bot.Start(ctx)
			return nil
		})
	}

	return g.Wait()
}

// Close освобождает ресурсы после Run.
func (a *App) Close() {
	a.limiter.Close()
	a.Core.Close()
}
