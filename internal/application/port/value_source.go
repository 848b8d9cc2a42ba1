package port

import (
	"context"
	"errors"
	"time"

	"github.com/dreschagin/quality-history/internal/domain/valueobject"
)

// ErrDataUnavailable означает, что источник не смог предоставить значение.
// Такое измерение оценивается как MISSING.
var ErrDataUnavailable = errors.New("data unavailable")

// ValueQuery описывает запрос значения метрики у источника
type ValueQuery struct {
	Source  string // имя источника из определения метрики
	Subject string
	Kind    string
}

// FetchedValue содержит значение, полученное от источника, и время его измерения.
// Нулевое MeasuredAt означает, что время измерения неизвестно.
type FetchedValue struct {
	Value      valueobject.MeasuredValue
	MeasuredAt time.Time
}

// ValueSource получает сырые значения метрик из внешних систем (Port)
// Вызывается параллельно из нескольких горутин.
type ValueSource interface {
	FetchValue(ctx context.Context, query ValueQuery) (FetchedValue, error)
}
