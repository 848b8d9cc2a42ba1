package valueobject

import (
	"fmt"
	"strings"
)

// Status представляет качественную оценку измерения (Value Object)
type Status string

const (
	StatusPerfect Status = "perfect"
	StatusGreen   Status = "green"
	StatusYellow  Status = "yellow"
	StatusRed     Status = "red"
	StatusGrey    Status = "grey"
	StatusMissing Status = "missing"

	// StatusMissingSource встречается в старых файлах истории: источник не был настроен
	StatusMissingSource Status = "missing_source"

	// StatusNone используется для сегментов истории без статуса (голые числа из старого формата)
	StatusNone Status = ""
)

// ParseStatus разбирает строковое представление статуса
func ParseStatus(raw string) (Status, error) {
	status := Status(strings.ToLower(strings.TrimSpace(raw)))
	if err := status.Validate(); err != nil {
		return StatusNone, err
	}
	return status, nil
}

// Validate проверяет валидность статуса
func (s Status) Validate() error {
	switch s {
	case StatusPerfect, StatusGreen, StatusYellow, StatusRed, StatusGrey, StatusMissing, StatusMissingSource, StatusNone:
		return nil
	default:
		return fmt.Errorf("invalid status: %q", string(s))
	}
}

// String возвращает строковое представление статуса
func (s Status) String() string {
	return string(s)
}

// IsSet сообщает, задан ли статус
func (s Status) IsSet() bool {
	return s != StatusNone
}

// NeedsAction сообщает, требует ли статус реакции (red или отсутствие данных)
func (s Status) NeedsAction() bool {
	return s == StatusRed || s == StatusMissing || s == StatusMissingSource
}

// AllStatuses возвращает статусы в порядке отображения отчета
func AllStatuses() []Status {
	return []Status{StatusRed, StatusYellow, StatusGrey, StatusMissing, StatusGreen, StatusPerfect}
}
