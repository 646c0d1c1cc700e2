// Package streak — rewards.go содержит расчёт бонусов за ежедневные задачи.
package streak

import "fmt"

// DailyTaskPoints вычисляет бонус за первую ежедневную задачу дня.
// streak — серия ПОСЛЕ увеличения (1 = первый день).
//
// Формула: base + streak * multiplier
//
//	День 1: 10 + 1*2 = 12
//	День 2: 10 + 2*2 = 14
//	День 7: 10 + 7*2 = 24
func (r Rules) DailyTaskPoints(streak int) int64 {
	if streak < 0 {
		streak = 0
	}
	return r.DailyTaskBasePoints + int64(streak)*r.StreakBonusMultiplier
}

// CalculateDailyTaskPoints — DailyTaskPoints с правилами по умолчанию.
func CalculateDailyTaskPoints(streakAfterIncrement int) int64 {
	return DefaultRules().DailyTaskPoints(streakAfterIncrement)
}

// FormatRewardDescription создаёт описание для записи в журнале.
// Пример: "Бонус за серию, день 8"
func FormatRewardDescription(day int) string {
	return fmt.Sprintf("Бонус за серию, день %d", day)
}
