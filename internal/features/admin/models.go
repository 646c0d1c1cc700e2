// Package admin реализует защищённый паролем сброс данных пользователя.
// models.go описывает попытки входа и состояние диалога в боте.
package admin

import "time"

const (
	// MaxFailedAttempts — сколько неверных паролей допускается за LockoutPeriod.
	MaxFailedAttempts = 3
	// LockoutPeriod — окно подсчёта неудачных попыток.
	LockoutPeriod = time.Hour
	// StateTTL — сколько живёт состояние диалога.
	StateTTL = 5 * time.Minute
)

// LoginAttempt — попытка ввода пароля (для защиты от brute-force).
type LoginAttempt struct {
	ID          int64     `db:"id"`
	UserID      int64     `db:"user_id"`
	Success     bool      `db:"success"`
	AttemptedAt time.Time `db:"attempted_at"`
}

// DialogState — состояние диалога с пользователем в боте.
// Сброс идёт в два шага: команда → ввод пароля.
type DialogState struct {
	State     string
	TargetID  int64     // чьи данные сбрасываем
	ExpiresAt time.Time // когда состояние истекает
}

// Возможные состояния диалога
const (
	StateNone             = ""
	StateAwaitingPassword = "awaiting_password"
)
