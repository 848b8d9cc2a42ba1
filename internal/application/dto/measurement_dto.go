package dto

import (
	"time"

	"github.com/dreschagin/quality-history/internal/domain/entity"
	"github.com/dreschagin/quality-history/internal/domain/service"
	"github.com/dreschagin/quality-history/internal/domain/valueobject"
)

// MeasurementDTO представляет результат оценки метрики для передачи между слоями
type MeasurementDTO struct {
	MetricID    string    `json:"metric_id"`
	Subject     string    `json:"subject"`
	Kind        string    `json:"kind"`
	Name        string    `json:"name"`
	Unit        string    `json:"unit,omitempty"`
	Value       *float64  `json:"value"`
	Status      string    `json:"status"`
	Date        time.Time `json:"date"`
	StatusSince time.Time `json:"status_since"`
	Target      float64   `json:"target"`
	LowTarget   float64   `json:"low_target"`
	Comment     string    `json:"comment,omitempty"`
	// Computed fields
	StatusChanged bool `json:"status_changed"`
}

// FromResult конвертирует результат оценки в DTO
func FromResult(r *entity.MeasurementResult) *MeasurementDTO {
	return &MeasurementDTO{
		MetricID:      r.MetricID(),
		Subject:       r.Subject(),
		Kind:          r.Kind(),
		Name:          r.Name(),
		Unit:          r.Unit(),
		Value:         ValuePtr(r.Value()),
		Status:        r.Status().String(),
		Date:          r.Date(),
		StatusSince:   r.StatusStartDate(),
		Target:        r.Target(),
		LowTarget:     r.LowTarget(),
		Comment:       r.Comment(),
		StatusChanged: r.StatusChanged(),
	}
}

// ToMeasurementDTOs конвертирует слайс результатов в слайс DTO
func ToMeasurementDTOs(results []*entity.MeasurementResult) []*MeasurementDTO {
	dtos := make([]*MeasurementDTO, len(results))
	for i, r := range results {
		dtos[i] = FromResult(r)
	}
	return dtos
}

// MetaMetricDTO представляет мета-метрику снимка
type MetaMetricDTO struct {
	Name       string   `json:"name"`
	Numerator  int      `json:"numerator"`
	Total      int      `json:"total"`
	Percentage *float64 `json:"percentage"`
	Status     string   `json:"status"`
	Target     float64  `json:"target"`
	LowTarget  float64  `json:"low_target"`
}

// ToMetaMetricDTOs конвертирует мета-метрики в DTO
func ToMetaMetricDTOs(metrics []service.MetaMetric) []*MetaMetricDTO {
	dtos := make([]*MetaMetricDTO, len(metrics))
	for i, m := range metrics {
		dtos[i] = &MetaMetricDTO{
			Name:       m.Name,
			Numerator:  m.Numerator,
			Total:      m.Total,
			Percentage: ValuePtr(m.Percentage),
			Status:     m.Status.String(),
			Target:     m.Target,
			LowTarget:  m.LowTarget,
		}
	}
	return dtos
}

// ValuePtr возвращает nil для недоступного значения
func ValuePtr(v valueobject.MeasuredValue) *float64 {
	if !v.IsAvailable() {
		return nil
	}
	raw := v.Raw()
	return &raw
}
