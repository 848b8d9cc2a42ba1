package dto

import (
	"time"

	"github.com/dreschagin/quality-history/internal/domain/valueobject"
)

// RunSummaryDTO содержит итог одного запуска оценки
type RunSummaryDTO struct {
	RunID           string            `json:"run_id"`
	Project         string            `json:"project"`
	Date            time.Time         `json:"date"`
	Counts          map[string]int    `json:"counts"`
	Measurements    []*MeasurementDTO `json:"measurements"`
	MetaMetrics     []*MetaMetricDTO  `json:"meta_metrics"`
	HistoryDegraded bool              `json:"history_degraded,omitempty"`
	HistoryLocation string            `json:"history_location,omitempty"`
	ReportPath      string            `json:"-"`
}

// Count возвращает количество метрик в статусе
func (s *RunSummaryDTO) Count(status valueobject.Status) int {
	return s.Counts[status.String()]
}

// HasFailures сообщает, есть ли метрики, требующие действий (RED или MISSING)
func (s *RunSummaryDTO) HasFailures() bool {
	for _, m := range s.Measurements {
		if valueobject.Status(m.Status).NeedsAction() {
			return true
		}
	}
	return false
}

// ChangedMeasurements возвращает метрики, статус которых начался в этом запуске
func (s *RunSummaryDTO) ChangedMeasurements() []*MeasurementDTO {
	var changed []*MeasurementDTO
	for _, m := range s.Measurements {
		if m.StatusChanged {
			changed = append(changed, m)
		}
	}
	return changed
}

// RunCompletedEvent публикуется после успешного сохранения истории
type RunCompletedEvent struct {
	RunID   string         `json:"run_id"`
	Project string         `json:"project"`
	Date    time.Time      `json:"date"`
	Counts  map[string]int `json:"counts"`
	Total   int            `json:"total"`
}

// EventID однозначно определяет событие в пределах запуска
func (e *RunCompletedEvent) EventID() string {
	return e.RunID + ":completed"
}

// StatusChangedEvent публикуется для каждой метрики, сменившей статус
type StatusChangedEvent struct {
	RunID    string    `json:"run_id"`
	MetricID string    `json:"metric_id"`
	Subject  string    `json:"subject"`
	Kind     string    `json:"kind"`
	Status   string    `json:"status"`
	Value    *float64  `json:"value"`
	Date     time.Time `json:"date"`
}

// EventID однозначно определяет событие в пределах запуска
func (e *StatusChangedEvent) EventID() string {
	return e.RunID + ":" + e.MetricID
}

// NewRunCompletedEvent создает событие завершения запуска
func NewRunCompletedEvent(s *RunSummaryDTO) *RunCompletedEvent {
	return &RunCompletedEvent{
		RunID:   s.RunID,
		Project: s.Project,
		Date:    s.Date,
		Counts:  s.Counts,
		Total:   len(s.Measurements),
	}
}

// NewStatusChangedEvent создает событие смены статуса метрики
func NewStatusChangedEvent(runID string, m *MeasurementDTO) *StatusChangedEvent {
	return &StatusChangedEvent{
		RunID:    runID,
		MetricID: m.MetricID,
		Subject:  m.Subject,
		Kind:     m.Kind,
		Status:   m.Status,
		Value:    m.Value,
		Date:     m.Date,
	}
}
