// Package common — pluralize.go содержит форматирование сумм для ответов
// пользователю. Сама плюрализация реализована в helpers.go.
package common

import (
	"fmt"
	"strconv"
)

// FormatPointsDelta создаёт строку вида "+100 очков" или "-50 очков".
// Знак «+» или «-» добавляется автоматически.
//
// Примеры:
//
//	FormatPointsDelta(100) → "+100 очков"
//	FormatPointsDelta(-50) → "-50 очков"
//	FormatPointsDelta(1)   → "+1 очко"
func FormatPointsDelta(amount int64) string {
	if amount >= 0 {
		return fmt.Sprintf("+%s %s", FormatNumber(amount), PluralizePoints(amount))
	}
	return fmt.Sprintf("%s %s", FormatNumber(amount), PluralizePoints(amount))
}

// FormatNumber форматирует число с разделителями тысяч (пробелами).
// Пример: FormatNumber(2350) → "2 350"
func FormatNumber(n int64) string {
	if n < 0 {
		// -(n+1)+1 не переполняется и для math.MinInt64
		return "-" + groupThousands(uint64(-(n+1))+1)
	}
	return groupThousands(uint64(n))
}

func groupThousands(u uint64) string {
	if u < 1000 {
		return strconv.FormatUint(u, 10)
	}
	return fmt.Sprintf("%s %03d", groupThousands(u/1000), u%1000)
}
