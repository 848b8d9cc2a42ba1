package service

import (
	"math"
	"sort"
	"time"

	"github.com/dreschagin/quality-history/internal/domain/entity"
	"github.com/dreschagin/quality-history/internal/domain/valueobject"
)

// MetaMetric содержит процент метрик снимка в заданных статусах и его оценку
type MetaMetric struct {
	Name       string
	Measures   []valueobject.Status
	Numerator  int
	Total      int
	Percentage valueobject.MeasuredValue
	Status     valueobject.Status
	Target     float64
	LowTarget  float64
}

type metaMetricSpec struct {
	name      string
	measures  []valueobject.Status
	direction valueobject.Direction
	target    float64
	lowTarget float64
}

// Нормы мета-метрик: доля green/perfect должна быть высокой, остальных низкой
var metaMetricSpecs = []metaMetricSpec{
	{"GreenMetaMetric", []valueobject.Status{valueobject.StatusGreen, valueobject.StatusPerfect}, valueobject.HigherPercentageIsBetter, 90, 80},
	{"RedMetaMetric", []valueobject.Status{valueobject.StatusRed}, valueobject.LowerPercentageIsBetter, 2, 5},
	{"YellowMetaMetric", []valueobject.Status{valueobject.StatusYellow}, valueobject.LowerPercentageIsBetter, 5, 10},
	{"GreyMetaMetric", []valueobject.Status{valueobject.StatusGrey}, valueobject.LowerPercentageIsBetter, 2, 5},
	{"MissingMetaMetric", []valueobject.Status{valueobject.StatusMissing, valueobject.StatusMissingSource}, valueobject.LowerPercentageIsBetter, 0, 5},
}

// MetaMetricCalculator агрегирует статусы снимка в мета-метрики (Domain Service)
type MetaMetricCalculator struct {
	classifier *StatusClassifier
}

// NewMetaMetricCalculator создает новый MetaMetricCalculator
func NewMetaMetricCalculator(classifier *StatusClassifier) *MetaMetricCalculator {
	if classifier == nil {
		classifier = NewStatusClassifier()
	}
	return &MetaMetricCalculator{classifier: classifier}
}

// Calculate вычисляет мета-метрики для количества статусов одного снимка
func (a *MetaMetricCalculator) Calculate(counts entity.StatusCounts, at time.Time) []MetaMetric {
	total := counts.Total()
	result := make([]MetaMetric, 0, len(metaMetricSpecs))

	for _, spec := range metaMetricSpecs {
		numerator := 0
		for _, status := range spec.measures {
			numerator += counts[status]
		}

		percentage := valueobject.Unavailable()
		if total > 0 {
			percentage = valueobject.NewMeasuredValue(math.Round(float64(numerator) / float64(total) * 100))
		}

		perfect, hasPerfect := spec.direction.DefaultPerfect()
		status := a.classifier.Classify(ClassifyInput{
			Value:      percentage,
			Direction:  spec.direction,
			Policy:     valueobject.NewFixedTarget(spec.target, spec.lowTarget),
			At:         at,
			Perfect:    perfect,
			HasPerfect: hasPerfect,
			YellowTier: true,
		})

		result = append(result, MetaMetric{
			Name:       spec.name,
			Measures:   spec.measures,
			Numerator:  numerator,
			Total:      total,
			Percentage: percentage,
			Status:     status,
			Target:     spec.target,
			LowTarget:  spec.lowTarget,
		})
	}

	return result
}

// CountByStatus считает результаты оценки по статусам
func (a *MetaMetricCalculator) CountByStatus(results []*entity.MeasurementResult) entity.StatusCounts {
	counts := make(entity.StatusCounts)
	for _, r := range results {
		if r.Status().IsSet() {
			counts[r.Status()]++
		}
	}
	return counts
}

// SortByStatusAge сортирует результаты: сначала те, что дольше всех в своем статусе
func (a *MetaMetricCalculator) SortByStatusAge(results []*entity.MeasurementResult) []*entity.MeasurementResult {
	sorted := make([]*entity.MeasurementResult, len(results))
	copy(sorted, results)

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StatusAge() > sorted[j].StatusAge()
	})

	return sorted
}
