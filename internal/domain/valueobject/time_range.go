package valueobject

import (
	"errors"
	"time"
)

// TimeRange представляет интервал дат истории (Value Object)
// Нулевая граница означает открытый интервал с этой стороны.
type TimeRange struct {
	start time.Time
	end   time.Time
}

// NewTimeRange создает новый TimeRange с валидацией
func NewTimeRange(start, end time.Time) (TimeRange, error) {
	if !start.IsZero() && !end.IsZero() && start.After(end) {
		return TimeRange{}, errors.New("start time must be before end time")
	}

	return TimeRange{
		start: start,
		end:   end,
	}, nil
}

// LastDays возвращает интервал последних days дней до now включительно
func LastDays(now time.Time, days int) (TimeRange, error) {
	if days <= 0 {
		return TimeRange{}, errors.New("days must be positive")
	}

	return TimeRange{
		start: now.AddDate(0, 0, -days),
		end:   now,
	}, nil
}

// Start возвращает начальное время (нулевое для открытого начала)
func (tr TimeRange) Start() time.Time {
	return tr.start
}

// End возвращает конечное время (нулевое для открытого конца)
func (tr TimeRange) End() time.Time {
	return tr.end
}

// IsUnbounded сообщает, что интервал не ограничен ни с одной стороны
func (tr TimeRange) IsUnbounded() bool {
	return tr.start.IsZero() && tr.end.IsZero()
}

// Contains проверяет, попадает ли указанное время в диапазон
func (tr TimeRange) Contains(t time.Time) bool {
	if !tr.start.IsZero() && t.Before(tr.start) {
		return false
	}
	if !tr.end.IsZero() && t.After(tr.end) {
		return false
	}
	return true
}
