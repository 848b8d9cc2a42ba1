package service

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dreschagin/quality-history/internal/domain/entity"
	"github.com/dreschagin/quality-history/internal/domain/valueobject"
)

// EvaluationRequest содержит входные данные одной оценки пары (субъект, метрика)
type EvaluationRequest struct {
	Subject    string
	Definition *entity.MetricDefinition
	Policy     valueobject.ThresholdPolicy // nil: норма по умолчанию из определения
	Waiver     *valueobject.TechnicalDebtWaiver
	Value      valueobject.MeasuredValue
	Stale      bool
	Now        time.Time
}

// MetricEvaluator оценивает измерение и записывает его в историю (Domain Service)
// Единственный путь записи в HistoryLog.
type MetricEvaluator struct {
	classifier *StatusClassifier
}

// NewMetricEvaluator создает новый MetricEvaluator
func NewMetricEvaluator(classifier *StatusClassifier) *MetricEvaluator {
	if classifier == nil {
		classifier = NewStatusClassifier()
	}
	return &MetricEvaluator{classifier: classifier}
}

// Evaluate классифицирует значение, добавляет его в историю и возвращает результат
// с датой начала текущего статуса.
func (e *MetricEvaluator) Evaluate(req EvaluationRequest, log *entity.HistoryLog) (*entity.MeasurementResult, error) {
	if req.Definition == nil {
		return nil, errors.New("metric definition cannot be nil")
	}
	if log == nil {
		return nil, errors.New("history log cannot be nil")
	}

	def := req.Definition
	policy := req.Policy
	if policy == nil {
		policy = def.DefaultPolicy()
	}

	now := valueobject.NormalizeHistoryDate(req.Now)
	perfect, hasPerfect := def.Perfect()

	status := e.classifier.Classify(ClassifyInput{
		Value:      req.Value,
		Direction:  def.Direction(),
		Policy:     policy,
		At:         now,
		Waiver:     req.Waiver,
		Stale:      req.Stale,
		Perfect:    perfect,
		HasPerfect: hasPerfect,
		YellowTier: def.HasYellowTier(),
	})

	metricID := def.IDFor(req.Subject)
	if err := log.Append(now, metricID, req.Value, status); err != nil {
		return nil, fmt.Errorf("failed to append %s to history: %w", metricID, err)
	}

	return entity.NewMeasurementResult(entity.MeasurementResultParams{
		MetricID:        metricID,
		Subject:         req.Subject,
		Kind:            def.Kind(),
		Name:            def.Name(),
		Unit:            def.Unit(),
		Value:           req.Value,
		Status:          status,
		Date:            now,
		StatusStartDate: log.StatusStartDate(metricID),
		Target:          policy.Target(now),
		LowTarget:       policy.LowTarget(now),
		Comment:         e.comment(req, policy, status, now),
	}), nil
}

func (e *MetricEvaluator) comment(
	req EvaluationRequest,
	policy valueobject.ThresholdPolicy,
	status valueobject.Status,
	now time.Time,
) string {
	if status == valueobject.StatusGrey && req.Waiver.IsActive(now) {
		return fmt.Sprintf("Technical debt accepted at %s: %s",
			strconv.FormatFloat(req.Waiver.AcceptedValue(), 'f', -1, 64), req.Waiver.Explanation())
	}

	if req.Stale && req.Value.IsAvailable() {
		return fmt.Sprintf("Measurement is older than the maximum age of %s.", req.Definition.MaxAge())
	}

	if explanation := policy.Explanation(); explanation != "" {
		return explanation
	}

	def := req.Definition
	if policy.Target(now) != def.Target() || policy.LowTarget(now) != def.LowTarget() {
		return fmt.Sprintf("The norm was adapted from the default (%s/%s).",
			strconv.FormatFloat(def.Target(), 'f', -1, 64), strconv.FormatFloat(def.LowTarget(), 'f', -1, 64))
	}

	return ""
}
