package valueobject

import (
	"fmt"
	"strings"
	"time"
)

// HistoryDateLayout задает формат дат в файлах истории
const HistoryDateLayout = "2006-01-02 15:04:05"

// BeginningOfTime возвращается как дата начала статуса, если истории еще нет
var BeginningOfTime = time.Time{}

// NormalizeHistoryDate приводит дату к точности истории: UTC, целые секунды
func NormalizeHistoryDate(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

// FormatHistoryDate форматирует дату для записи в историю
func FormatHistoryDate(t time.Time) string {
	return NormalizeHistoryDate(t).Format(HistoryDateLayout)
}

// ParseHistoryDate разбирает дату из истории.
// Старые генераторы писали двухзначный год ("13-02-28 ...") и доли секунды,
// оба варианта приводятся к каноническому виду.
func ParseHistoryDate(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty history date")
	}

	if dot := strings.IndexByte(s, '.'); dot >= 0 {
		s = s[:dot]
	}

	if dash := strings.IndexByte(s, '-'); dash == 2 {
		s = "20" + s
	}

	parsed, err := time.Parse(HistoryDateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid history date %q: %w", raw, err)
	}

	return parsed, nil
}
