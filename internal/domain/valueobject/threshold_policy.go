package valueobject

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// ConfigurationError сообщает о некорректной конфигурации норм метрики.
// Фатальна при старте: запуск прерывается.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "configuration error: " + e.Reason
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// ThresholdPolicy определяет норму метрики на заданную дату
type ThresholdPolicy interface {
	// Target возвращает целевое значение на дату
	Target(at time.Time) float64

	// LowTarget возвращает нижнюю границу (порог red) на дату
	LowTarget(at time.Time) float64

	// Explanation возвращает пояснение к норме для отчета
	Explanation() string
}

// FixedTarget представляет постоянную пару target/low target (Value Object)
type FixedTarget struct {
	target    float64
	lowTarget float64
}

// NewFixedTarget создает постоянную норму
func NewFixedTarget(target, lowTarget float64) FixedTarget {
	return FixedTarget{target: target, lowTarget: lowTarget}
}

// Target возвращает целевое значение
func (f FixedTarget) Target(time.Time) float64 {
	return f.target
}

// LowTarget возвращает нижнюю границу
func (f FixedTarget) LowTarget(time.Time) float64 {
	return f.lowTarget
}

// Explanation для постоянной нормы пустое
func (f FixedTarget) Explanation() string {
	return ""
}

// DynamicTarget представляет норму, линейно меняющуюся между двумя точками калибровки (Value Object)
type DynamicTarget struct {
	startValue    float64
	lowStartValue float64
	startDate     time.Time
	endValue      float64
	lowEndValue   float64
	endDate       time.Time
}

// NewDynamicTarget создает динамическую норму.
// Возвращает ConfigurationError, если endDate не позже startDate.
func NewDynamicTarget(
	startValue, lowStartValue float64,
	startDate time.Time,
	endValue, lowEndValue float64,
	endDate time.Time,
) (DynamicTarget, error) {
	if !endDate.After(startDate) {
		return DynamicTarget{}, &ConfigurationError{
			Field:  "dynamic_target.end_date",
			Reason: fmt.Sprintf("end date %s must be after start date %s", FormatHistoryDate(endDate), FormatHistoryDate(startDate)),
		}
	}

	return DynamicTarget{
		startValue:    startValue,
		lowStartValue: lowStartValue,
		startDate:     startDate,
		endValue:      endValue,
		lowEndValue:   lowEndValue,
		endDate:       endDate,
	}, nil
}

// Target возвращает интерполированное целевое значение
func (d DynamicTarget) Target(at time.Time) float64 {
	return d.interpolate(d.startValue, d.endValue, at)
}

// LowTarget возвращает интерполированную нижнюю границу
func (d DynamicTarget) LowTarget(at time.Time) float64 {
	return d.interpolate(d.lowStartValue, d.lowEndValue, at)
}

// Explanation описывает движение нормы во времени
func (d DynamicTarget) Explanation() string {
	return fmt.Sprintf("The target moves linearly from %s on %s to %s on %s.",
		formatNumber(d.startValue), d.startDate.Format("2006-01-02"),
		formatNumber(d.endValue), d.endDate.Format("2006-01-02"))
}

// StartDate возвращает первую точку калибровки
func (d DynamicTarget) StartDate() time.Time {
	return d.startDate
}

// EndDate возвращает вторую точку калибровки
func (d DynamicTarget) EndDate() time.Time {
	return d.endDate
}

// interpolate считает значение на дату с ограничением по краям и округлением до целого
func (d DynamicTarget) interpolate(from, to float64, at time.Time) float64 {
	if !at.After(d.startDate) {
		return from
	}
	if !at.Before(d.endDate) {
		return to
	}

	period := d.endDate.Sub(d.startDate).Seconds()
	elapsed := at.Sub(d.startDate).Seconds()
	fraction := clamp01(elapsed / period)

	return math.Round(from + (to-from)*fraction)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
