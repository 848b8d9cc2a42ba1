package dto

import (
	"time"

	"github.com/dreschagin/quality-history/internal/domain/entity"
)

// MetricHistoryDTO представляет текущее состояние и недавнюю историю одной метрики
type MetricHistoryDTO struct {
	MetricID     string        `json:"metric_id"`
	Status       string        `json:"status"`
	StatusSince  *time.Time    `json:"status_since,omitempty"`
	Value        *float64      `json:"value"`
	Recent       []*float64    `json:"recent"`
	SegmentCount int           `json:"segment_count"`
	Segments     []*SegmentDTO `json:"segments,omitempty"`
}

// SegmentDTO представляет сегмент истории метрики
type SegmentDTO struct {
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Value  *float64  `json:"value"`
	Status string    `json:"status,omitempty"`
}

// ToSegmentDTOs конвертирует сегменты истории в DTO
func ToSegmentDTOs(segments []entity.HistorySegment) []*SegmentDTO {
	dtos := make([]*SegmentDTO, len(segments))
	for i, s := range segments {
		dtos[i] = &SegmentDTO{
			Start:  s.Start(),
			End:    s.End(),
			Value:  ValuePtr(s.Value()),
			Status: s.Status().String(),
		}
	}
	return dtos
}

// StatusTrendDTO представляет количество статусов по снимкам за период
type StatusTrendDTO struct {
	From   *time.Time             `json:"from,omitempty"`
	To     *time.Time             `json:"to,omitempty"`
	Points []*StatusTrendPointDTO `json:"points"`
}

// StatusTrendPointDTO описывает один снимок тренда
type StatusTrendPointDTO struct {
	Date   time.Time      `json:"date"`
	Counts map[string]int `json:"counts"`
	Total  int            `json:"total"`
}

// FromSnapshot конвертирует снимок истории в точку тренда
func FromSnapshot(s entity.Snapshot) *StatusTrendPointDTO {
	counts := make(map[string]int, len(s.Counts))
	for status, n := range s.Counts {
		counts[status.String()] = n
	}
	return &StatusTrendPointDTO{
		Date:   s.Date,
		Counts: counts,
		Total:  s.Counts.Total(),
	}
}
