package streak

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var msk = time.FixedZone("MSK", 3*60*60)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, msk)
}

func ptr(t time.Time) *time.Time { return &t }

func TestEvaluateStreak(t *testing.T) {
	today := time.Date(2026, 4, 10, 15, 30, 0, 0, msk)

	tests := []struct {
		name     string
		current  int
		lastDate *time.Time
		want     Evaluation
	}{
		{"new user", 0, nil, Evaluation{Streak: 0}},
		{"new user keeps value", 4, nil, Evaluation{Streak: 4}},
		{"granted today", 5, ptr(day(2026, 4, 10)), Evaluation{Streak: 5}},
		{"granted yesterday", 5, ptr(day(2026, 4, 9)), Evaluation{Streak: 5}},
		{"missed one day", 5, ptr(day(2026, 4, 8)), Evaluation{Streak: 0, ResetOccurred: true}},
		{"three days ago", 9, ptr(day(2026, 4, 7)), Evaluation{Streak: 0, ResetOccurred: true}},
		{"clock skew", 3, ptr(day(2026, 4, 12)), Evaluation{Streak: 3}},
		{"yesterday late evening", 2, ptr(time.Date(2026, 4, 9, 23, 59, 0, 0, msk)), Evaluation{Streak: 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EvaluateStreak(tt.current, tt.lastDate, today))
		})
	}
}

func TestEvaluateStreak_CalendarDaysNotHours(t *testing.T) {
	// 47 часов, но 2 календарных дня
	last := time.Date(2026, 4, 8, 23, 0, 0, 0, msk)
	today := time.Date(2026, 4, 10, 22, 0, 0, 0, msk)
	assert.True(t, EvaluateStreak(3, &last, today).ResetOccurred)

	// 25 часов, но 1 календарный день
	last = time.Date(2026, 4, 9, 0, 30, 0, 0, msk)
	today = time.Date(2026, 4, 10, 1, 30, 0, 0, msk)
	assert.False(t, EvaluateStreak(3, &last, today).ResetOccurred)
}

func TestClassify(t *testing.T) {
	today := day(2026, 4, 10)

	assert.Equal(t, StatusNew, Classify(nil, today))
	assert.Equal(t, StatusGrantedToday, Classify(ptr(day(2026, 4, 10)), today))
	assert.Equal(t, StatusGrantedToday, Classify(ptr(day(2026, 4, 11)), today))
	assert.Equal(t, StatusContinues, Classify(ptr(day(2026, 4, 9)), today))
	assert.Equal(t, StatusBroken, Classify(ptr(day(2026, 4, 7)), today))
}

func TestDailyTaskPoints(t *testing.T) {
	assert.Equal(t, int64(12), CalculateDailyTaskPoints(1))
	assert.Equal(t, int64(14), CalculateDailyTaskPoints(2))
	assert.Equal(t, int64(30), CalculateDailyTaskPoints(10))
	assert.Equal(t, int64(10), CalculateDailyTaskPoints(0))

	custom := Rules{DailyTaskBasePoints: 5, StreakBonusMultiplier: 3}
	assert.Equal(t, int64(5+4*3), custom.DailyTaskPoints(4))
	assert.Equal(t, int64(5), custom.DailyTaskPoints(-1))
}

func TestDefaultRules(t *testing.T) {
	r := DefaultRules()
	assert.Equal(t, int64(20), r.PointsPerTask)
	assert.Equal(t, int64(10), r.DailyTaskBasePoints)
	assert.Equal(t, int64(2), r.StreakBonusMultiplier)
}
