package port

import (
	"context"
	"time"
)

// StatusRecord хранит текущий статус одной метрики для быстрого поиска по статусу
type StatusRecord struct {
	MetricID    string
	Subject     string
	Kind        string
	Status      string
	StatusSince time.Time
	Value       *float64
	Date        time.Time
	RunID       string
}

// StatusIndex хранит последний статус каждой метрики (Port)
type StatusIndex interface {
	PutBatch(ctx context.Context, records []StatusRecord) error
	ListByStatus(ctx context.Context, status string, limit int) ([]StatusRecord, error)
}
