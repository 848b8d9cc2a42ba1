package valueobject

import "errors"

// Direction определяет, какие значения метрики считаются лучше (Value Object)
type Direction string

const (
	LowerIsBetter            Direction = "lower_is_better"
	HigherIsBetter           Direction = "higher_is_better"
	LowerPercentageIsBetter  Direction = "lower_percentage_is_better"
	HigherPercentageIsBetter Direction = "higher_percentage_is_better"
)

// Validate проверяет валидность направления
func (d Direction) Validate() error {
	switch d {
	case LowerIsBetter, HigherIsBetter, LowerPercentageIsBetter, HigherPercentageIsBetter:
		return nil
	default:
		return errors.New("invalid metric direction")
	}
}

// String возвращает строковое представление направления
func (d Direction) String() string {
	return string(d)
}

// LowerIsBetter сообщает, что меньшие значения лучше
func (d Direction) LowerIsBetter() bool {
	return d == LowerIsBetter || d == LowerPercentageIsBetter
}

// IsPercentage сообщает, что значения метрики выражены в процентах
func (d Direction) IsPercentage() bool {
	return d == LowerPercentageIsBetter || d == HigherPercentageIsBetter
}

// DefaultPerfect возвращает идеальное значение для направления.
// Для HigherIsBetter идеала нет.
func (d Direction) DefaultPerfect() (float64, bool) {
	switch d {
	case LowerIsBetter, LowerPercentageIsBetter:
		return 0, true
	case HigherPercentageIsBetter:
		return 100, true
	default:
		return 0, false
	}
}

// AtLeastAsGood сообщает, что value не хуже bound с учетом направления
func (d Direction) AtLeastAsGood(value, bound float64) bool {
	if d.LowerIsBetter() {
		return value <= bound
	}
	return value >= bound
}

// AllDirections возвращает все допустимые направления
func AllDirections() []Direction {
	return []Direction{LowerIsBetter, HigherIsBetter, LowerPercentageIsBetter, HigherPercentageIsBetter}
}
