package entity

import (
	"fmt"
	"time"

	"github.com/dreschagin/quality-history/internal/domain/valueobject"
)

// HistorySegment представляет максимальный отрезок подряд идущих снимков с одинаковыми значением и статусом
type HistorySegment struct {
	start  time.Time
	end    time.Time
	value  valueobject.MeasuredValue
	status valueobject.Status
}

// NewHistorySegment создает сегмент истории с валидацией
func NewHistorySegment(
	start, end time.Time,
	value valueobject.MeasuredValue,
	status valueobject.Status,
) (HistorySegment, error) {
	start = valueobject.NormalizeHistoryDate(start)
	end = valueobject.NormalizeHistoryDate(end)

	if end.Before(start) {
		return HistorySegment{}, fmt.Errorf("segment end %s is before start %s",
			valueobject.FormatHistoryDate(end), valueobject.FormatHistoryDate(start))
	}

	if err := status.Validate(); err != nil {
		return HistorySegment{}, err
	}

	return HistorySegment{start: start, end: end, value: value, status: status}, nil
}

// Start возвращает дату первого снимка сегмента
func (s HistorySegment) Start() time.Time {
	return s.start
}

// End возвращает дату последнего снимка сегмента
func (s HistorySegment) End() time.Time {
	return s.end
}

// Value возвращает значение (может быть недоступным)
func (s HistorySegment) Value() valueobject.MeasuredValue {
	return s.value
}

// Status возвращает статус (может быть не задан)
func (s HistorySegment) Status() valueobject.Status {
	return s.status
}

// Covers проверяет, попадает ли дата в сегмент
func (s HistorySegment) Covers(date time.Time) bool {
	return !date.Before(s.start) && !date.After(s.end)
}

func (s HistorySegment) sameReading(value valueobject.MeasuredValue, status valueobject.Status) bool {
	return s.value.Equals(value) && s.status == status
}
