package port

import (
	"context"
	"time"

	"github.com/dreschagin/quality-history/internal/domain/valueobject"
)

// LegacyEntry представляет одно значение метрики из строки старого формата
type LegacyEntry struct {
	MetricID string
	Value    valueobject.MeasuredValue
	Status   valueobject.Status
}

// LegacyRecord представляет одну строку старой истории (один отчет)
type LegacyRecord struct {
	Line    int
	Date    time.Time
	Entries []LegacyEntry
}

// LegacyHistoryReader читает историю в построчном формате старых версий
type LegacyHistoryReader interface {
	ReadRecords(ctx context.Context) ([]LegacyRecord, error)
}
