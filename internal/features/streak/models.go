// Package streak считает ежедневную серию (огонёк) и бонусы за неё.
// Все функции пакета чистые и не ходят в БД: ledger вызывает их
// внутри своих операций, cron — при ночной проверке серий.
package streak

// Значения правил начисления по умолчанию.
const (
	// PointsPerTask — очки за выполнение обычной задачи
	PointsPerTask int64 = 20
	// DailyTaskBasePoints — базовые очки за ежедневную задачу
	DailyTaskBasePoints int64 = 10
	// StreakBonusMultiplier — надбавка за каждый день серии
	StreakBonusMultiplier int64 = 2
)

// Evaluation — результат проверки серии.
type Evaluation struct {
	Streak        int  // Серия после проверки
	ResetOccurred bool // Серия прервана, сброс нужно сохранить
}

// Rules — правила начисления очков.
type Rules struct {
	PointsPerTask         int64
	DailyTaskBasePoints   int64
	StreakBonusMultiplier int64
}

// DefaultRules возвращает правила со значениями по умолчанию.
func DefaultRules() Rules {
	return Rules{
		PointsPerTask:         PointsPerTask,
		DailyTaskBasePoints:   DailyTaskBasePoints,
		StreakBonusMultiplier: StreakBonusMultiplier,
	}
}
