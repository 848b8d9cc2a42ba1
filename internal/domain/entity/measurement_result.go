package entity

import (
	"time"

	"github.com/dreschagin/quality-history/internal/domain/valueobject"
)

// MeasurementResultParams содержит поля результата оценки
type MeasurementResultParams struct {
	MetricID        string
	Subject         string
	Kind            string
	Name            string
	Unit            string
	Value           valueobject.MeasuredValue
	Status          valueobject.Status
	Date            time.Time
	StatusStartDate time.Time
	Target          float64
	LowTarget       float64
	Comment         string
}

// MeasurementResult представляет результат одной оценки метрики (Value Object)
// Создается на каждый запуск, неизменяем.
type MeasurementResult struct {
	metricID        string
	subject         string
	kind            string
	name            string
	unit            string
	value           valueobject.MeasuredValue
	status          valueobject.Status
	date            time.Time
	statusStartDate time.Time
	target          float64
	lowTarget       float64
	comment         string
}

// NewMeasurementResult создает результат оценки
func NewMeasurementResult(params MeasurementResultParams) *MeasurementResult {
	return &MeasurementResult{
		metricID:        params.MetricID,
		subject:         params.Subject,
		kind:            params.Kind,
		name:            params.Name,
		unit:            params.Unit,
		value:           params.Value,
		status:          params.Status,
		date:            params.Date,
		statusStartDate: params.StatusStartDate,
		target:          params.Target,
		lowTarget:       params.LowTarget,
		comment:         params.Comment,
	}
}

func (r *MeasurementResult) MetricID() string                 { return r.metricID }
func (r *MeasurementResult) Subject() string                  { return r.subject }
func (r *MeasurementResult) Kind() string                     { return r.kind }
func (r *MeasurementResult) Name() string                     { return r.name }
func (r *MeasurementResult) Unit() string                     { return r.unit }
func (r *MeasurementResult) Value() valueobject.MeasuredValue { return r.value }
func (r *MeasurementResult) Status() valueobject.Status       { return r.status }
func (r *MeasurementResult) Date() time.Time                  { return r.date }
func (r *MeasurementResult) StatusStartDate() time.Time       { return r.statusStartDate }
func (r *MeasurementResult) Target() float64                  { return r.target }
func (r *MeasurementResult) LowTarget() float64               { return r.lowTarget }
func (r *MeasurementResult) Comment() string                  { return r.comment }

// StatusChanged сообщает, что статус начался в этом запуске
func (r *MeasurementResult) StatusChanged() bool {
	return r.statusStartDate.Equal(r.date)
}

// StatusAge возвращает, как долго метрика находится в текущем статусе
func (r *MeasurementResult) StatusAge() time.Duration {
	if r.statusStartDate.IsZero() {
		return 0
	}
	return r.date.Sub(r.statusStartDate)
}
