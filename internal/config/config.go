// Package config загружает конфигурацию сервиса из переменных окружения.
// Используется envconfig для маппинга переменных окружения на поля структуры.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config содержит ВСЕ настройки приложения.
type Config struct {
	// --- Database ---
	// В Docker внутри контейнера "localhost" почти всегда неправильно.
	// Дефолт ставим "postgres" (имя сервиса в docker-compose), а для локалки переопределяй DB_HOST=localhost.
	DBHost     string `envconfig:"DB_HOST" default:"postgres"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"heartpoints"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" default:"heartpoints"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns int32  `envconfig:"DB_MIN_CONNS" default:"5"`

	// --- Application ---
	AppEnv      string `envconfig:"APP_ENV" default:"development"`
	AppLogLevel string `envconfig:"APP_LOG_LEVEL" default:"debug"`
	AppTimezone string `envconfig:"APP_TIMEZONE" default:"Europe/Moscow"`

	// --- HTTP API ---
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`
	// Секрет подписи токенов, которые выдаёт сервис идентификации
	AuthSecret          string        `envconfig:"AUTH_SECRET" required:"true"`
	HTTPShutdownTimeout time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"5s"`
	// Через запятую; пусто — CORS выключен
	HTTPCORSOrigins []string `envconfig:"HTTP_CORS_ORIGINS"`

	// --- Telegram (опционально: без токена бот не запускается) ---
	TelegramBotToken        string `envconfig:"TELEGRAM_BOT_TOKEN"`
	BotMaxInflight          int    `envconfig:"BOT_MAX_INFLIGHT" default:"64"`
	BotUpdateTimeoutSeconds int    `envconfig:"BOT_UPDATE_TIMEOUT_SECONDS" default:"60"`
	// Групповой чат, где доступны публичные команды (!топ, !огонек). 0 — только личка.
	BotGroupChatID int64 `envconfig:"BOT_GROUP_CHAT_ID" default:"0"`

	// --- Admin ---
	AdminPasswordHash string `envconfig:"ADMIN_PASSWORD_HASH" required:"true"`

	// --- Ledger rules ---
	LedgerPointsPerTask    int64 `envconfig:"LEDGER_POINTS_PER_TASK" default:"20"`
	LedgerDailyBasePoints  int64 `envconfig:"LEDGER_DAILY_BASE_POINTS" default:"10"`
	LedgerStreakMultiplier int64 `envconfig:"LEDGER_STREAK_MULTIPLIER" default:"2"`

	// --- Ledger reliability ---
	// Таймаут одной операции с хранилищем (включая ретраи)
	LedgerOpTimeout time.Duration `envconfig:"LEDGER_OP_TIMEOUT" default:"10s"`
	// Сколько раз повторять временные ошибки БД
	LedgerRetryAttempts uint64        `envconfig:"LEDGER_RETRY_ATTEMPTS" default:"3"`
	LedgerRetryBase     time.Duration `envconfig:"LEDGER_RETRY_BASE" default:"200ms"`

	// --- Streak ---
	StreakReminderThreshold int `envconfig:"STREAK_REMINDER_THRESHOLD" default:"7"`
	// С какого часа (по APP_TIMEZONE) напоминать о незакрытом огоньке
	StreakReminderHour int `envconfig:"STREAK_REMINDER_HOUR" default:"18"`

	// --- Scheduler ---
	CronDailyReset string `envconfig:"CRON_DAILY_RESET" default:"0 0 * * *"`
	CronReminders  string `envconfig:"CRON_REMINDERS" default:"0 * * * *"`

	// --- Rate Limiting ---
	RateLimitRequests int           `envconfig:"RATE_LIMIT_REQUESTS" default:"30"`
	RateLimitWindow   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`

	// --- Feature Flags ---
	FeatureBotEnabled       bool `envconfig:"FEATURE_BOT_ENABLED" default:"true"`
	FeatureRemindersEnabled bool `envconfig:"FEATURE_REMINDERS_ENABLED" default:"true"`
	FeatureMetricsEnabled   bool `envconfig:"FEATURE_METRICS_ENABLED" default:"true"`
}

// DatabaseDSN возвращает строку подключения к PostgreSQL в формате DSN.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// Validate проверяет значения, которые envconfig не умеет проверить сам.
func (c *Config) Validate() error {
	// required:"true" пропускает переменную, заданную пустой строкой
	if c.DBPassword == "" {
		return fmt.Errorf("DB_PASSWORD не может быть пустым")
	}
	if c.AuthSecret == "" {
		return fmt.Errorf("AUTH_SECRET не может быть пустым")
	}
	if c.AdminPasswordHash == "" {
		return fmt.Errorf("ADMIN_PASSWORD_HASH не может быть пустым")
	}
	if c.BotMaxInflight <= 0 {
		return fmt.Errorf("BOT_MAX_INFLIGHT должен быть > 0")
	}
	if c.BotUpdateTimeoutSeconds <= 0 {
		return fmt.Errorf("BOT_UPDATE_TIMEOUT_SECONDS должен быть > 0")
	}
	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("некорректные DB_MIN_CONNS/DB_MAX_CONNS")
	}
	if c.LedgerPointsPerTask < 0 || c.LedgerDailyBasePoints < 0 || c.LedgerStreakMultiplier < 0 {
		return fmt.Errorf("правила начисления LEDGER_* не могут быть отрицательными")
	}
	if c.LedgerOpTimeout <= 0 {
		return fmt.Errorf("LEDGER_OP_TIMEOUT должен быть > 0")
	}
	if c.LedgerRetryBase <= 0 {
		return fmt.Errorf("LEDGER_RETRY_BASE должен быть > 0")
	}
	if c.StreakReminderHour < 0 || c.StreakReminderHour > 23 {
		return fmt.Errorf("STREAK_REMINDER_HOUR должен быть в диапазоне 0-23")
	}
	if c.RateLimitRequests <= 0 || c.RateLimitWindow <= 0 {
		return fmt.Errorf("некорректные RATE_LIMIT_REQUESTS/RATE_LIMIT_WINDOW")
	}
	return nil
}

// BotEnabled сообщает, нужно ли запускать Telegram-бота.
func (c *Config) BotEnabled() bool {
	return c.FeatureBotEnabled && c.TelegramBotToken != ""
}

// Load читает переменные окружения и заполняет структуру Config.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("не удалось загрузить конфигурацию: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
