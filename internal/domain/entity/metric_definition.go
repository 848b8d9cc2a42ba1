package entity

import (
	"strings"
	"time"

	"github.com/dreschagin/quality-history/internal/domain/valueobject"
)

// MetricDefinitionParams содержит параметры для создания определения метрики
type MetricDefinitionParams struct {
	Kind       string
	Name       string
	Direction  valueobject.Direction
	Target     float64
	LowTarget  float64
	Perfect    *float64
	YellowTier bool
	Unit       string
	MaxAge     time.Duration
	Source     string
}

// MetricDefinition описывает вид метрики: направление, нормы по умолчанию, единицы
// Неизменяема после создания.
type MetricDefinition struct {
	kind       string
	name       string
	direction  valueobject.Direction
	target     float64
	lowTarget  float64
	perfect    float64
	hasPerfect bool
	yellowTier bool
	unit       string
	maxAge     time.Duration
	source     string
}

// NewMetricDefinition создает определение метрики (Factory Method)
func NewMetricDefinition(params MetricDefinitionParams) (*MetricDefinition, error) {
	kind := strings.TrimSpace(params.Kind)
	if kind == "" {
		return nil, &valueobject.ConfigurationError{Field: "kind", Reason: "metric kind cannot be empty"}
	}

	if err := params.Direction.Validate(); err != nil {
		return nil, &valueobject.ConfigurationError{Field: kind + ".direction", Reason: err.Error()}
	}

	name := params.Name
	if name == "" {
		name = kind
	}

	def := &MetricDefinition{
		kind:       kind,
		name:       name,
		direction:  params.Direction,
		target:     params.Target,
		lowTarget:  params.LowTarget,
		yellowTier: params.YellowTier,
		unit:       params.Unit,
		maxAge:     params.MaxAge,
		source:     params.Source,
	}

	// Идеальное значение: явно заданное или по умолчанию для направления
	if params.Perfect != nil {
		def.perfect, def.hasPerfect = *params.Perfect, true
	} else {
		def.perfect, def.hasPerfect = params.Direction.DefaultPerfect()
	}

	return def, nil
}

// Kind возвращает вид метрики
func (d *MetricDefinition) Kind() string {
	return d.kind
}

// Name возвращает отображаемое имя
func (d *MetricDefinition) Name() string {
	return d.name
}

// Direction возвращает направление "лучше"
func (d *MetricDefinition) Direction() valueobject.Direction {
	return d.direction
}

// Target возвращает целевое значение по умолчанию
func (d *MetricDefinition) Target() float64 {
	return d.target
}

// LowTarget возвращает нижнюю границу по умолчанию
func (d *MetricDefinition) LowTarget() float64 {
	return d.lowTarget
}

// Perfect возвращает идеальное значение, если оно определено
func (d *MetricDefinition) Perfect() (float64, bool) {
	return d.perfect, d.hasPerfect
}

// HasYellowTier сообщает, различает ли метрика "желаемый" и "максимальный" уровни
func (d *MetricDefinition) HasYellowTier() bool {
	return d.yellowTier
}

// Unit возвращает единицу измерения
func (d *MetricDefinition) Unit() string {
	return d.unit
}

// MaxAge возвращает максимальный допустимый возраст данных (0: без ограничения)
func (d *MetricDefinition) MaxAge() time.Duration {
	return d.maxAge
}

// Source возвращает имя источника значений
func (d *MetricDefinition) Source() string {
	return d.source
}

// Domain Methods (бизнес-логика)

// IDFor возвращает стабильный идентификатор метрики для субъекта: вид + имя субъекта
func (d *MetricDefinition) IDFor(subject string) string {
	return d.kind + subject
}

// DefaultPolicy возвращает постоянную норму из определения
func (d *MetricDefinition) DefaultPolicy() valueobject.FixedTarget {
	return valueobject.NewFixedTarget(d.target, d.lowTarget)
}

// IsStale проверяет, устарели ли данные, измеренные в measuredAt, на момент now
func (d *MetricDefinition) IsStale(measuredAt, now time.Time) bool {
	if d.maxAge <= 0 || measuredAt.IsZero() {
		return false
	}
	return now.Sub(measuredAt) > d.maxAge
}
