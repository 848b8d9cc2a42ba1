package valueobject

import (
	"math"
	"strconv"
)

// MeasuredValue представляет значение метрики, полученное от источника (Value Object)
// Иммутабельный объект. Нулевое значение означает "данные недоступны".
type MeasuredValue struct {
	value     float64
	available bool
}

// NewMeasuredValue создает доступное значение
func NewMeasuredValue(value float64) MeasuredValue {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return Unavailable()
	}
	return MeasuredValue{value: value, available: true}
}

// Unavailable возвращает значение-маркер "источник не смог предоставить данные"
func Unavailable() MeasuredValue {
	return MeasuredValue{}
}

// Raw возвращает числовое значение (0 для недоступного значения)
func (mv MeasuredValue) Raw() float64 {
	return mv.value
}

// IsAvailable сообщает, получено ли значение
func (mv MeasuredValue) IsAvailable() bool {
	return mv.available
}

// Equals сравнивает два значения; два недоступных значения равны
func (mv MeasuredValue) Equals(other MeasuredValue) bool {
	if mv.available != other.available {
		return false
	}
	return !mv.available || mv.value == other.value
}

// String возвращает строковое представление
func (mv MeasuredValue) String() string {
	if !mv.available {
		return "n/a"
	}
	return strconv.FormatFloat(mv.value, 'f', -1, 64)
}
