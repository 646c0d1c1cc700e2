// Package streak — evaluator.go решает, жива ли серия.
package streak

import (
	"time"

	"serotonyl.ru/heartpoints/internal/common"
)

// EvaluateStreak проверяет серию по дате последнего бонуса.
//
// Правила:
//   - lastDate == nil → серия не меняется (новый пользователь)
//   - прошло 0 или 1 календарный день → серия не меняется
//     (растёт она только при начислении бонуса, не от времени)
//   - прошло больше одного дня → серия сброшена в 0
//   - lastDate позже today (сбитые часы) → серия не меняется
//
// Дни считаются по календарю в поясе today, а не по 24-часовым интервалам.
func EvaluateStreak(currentStreak int, lastDate *time.Time, today time.Time) Evaluation {
	if lastDate == nil {
		return Evaluation{Streak: currentStreak}
	}

	if common.DaysBetween(*lastDate, today) > 1 {
		return Evaluation{Streak: 0, ResetOccurred: true}
	}

	return Evaluation{Streak: currentStreak}
}

// Status — положение даты последнего бонуса относительно сегодня.
type Status int

const (
	// StatusNew — бонус ещё ни разу не начислялся
	StatusNew Status = iota
	// StatusGrantedToday — бонус за сегодня уже начислен
	StatusGrantedToday
	// StatusContinues — последний бонус вчера, серия продолжается
	StatusContinues
	// StatusBroken — пропущен хотя бы один день
	StatusBroken
)

// Classify определяет статус серии на дату today.
// Дата из будущего считается «уже начислено сегодня»: иначе дата
// последнего бонуса могла бы сдвинуться назад.
func Classify(lastDate *time.Time, today time.Time) Status {
	if lastDate == nil {
		return StatusNew
	}
	switch days := common.DaysBetween(*lastDate, today); {
	case days <= 0:
		return StatusGrantedToday
	case days == 1:
		return StatusContinues
	default:
		return StatusBroken
	}
}
