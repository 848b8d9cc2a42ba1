package service

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dreschagin/quality-history/internal/domain/entity"
	"github.com/dreschagin/quality-history/internal/domain/valueobject"
)

func openBugs(t *testing.T) *entity.MetricDefinition {
	t.Helper()
	def, err := entity.NewMetricDefinition(entity.MetricDefinitionParams{
		Kind:      "OpenBugs",
		Name:      "Open bugs",
		Direction: valueobject.LowerIsBetter,
		Target:    50,
		LowTarget: 100,
		Unit:      "bugs",
	})
	if err != nil {
		t.Fatalf("NewMetricDefinition() error = %v", err)
	}
	return def
}

func TestMetricEvaluator_ThreeDaysSameValue(t *testing.T) {
	evaluator := NewMetricEvaluator(NewStatusClassifier())
	log := entity.NewHistoryLog()
	def := openBugs(t)

	day1 := time.Date(2020, 1, 1, 9, 0, 0, 0, time.UTC)
	var result *entity.MeasurementResult
	for i := 0; i < 3; i++ {
		var err error
		result, err = evaluator.Evaluate(EvaluationRequest{
			Subject:    "Foo",
			Definition: def,
			Value:      valueobject.NewMeasuredValue(38),
			Now:        day1.AddDate(0, 0, i),
		}, log)
		if err != nil {
			t.Fatalf("Evaluate() day %d error = %v", i+1, err)
		}
	}

	if result.Status() != valueobject.StatusGreen {
		t.Errorf("Status() = %s, want green", result.Status())
	}
	if !result.StatusStartDate().Equal(day1) {
		t.Errorf("StatusStartDate() = %v, want %v", result.StatusStartDate(), day1)
	}
	if result.StatusChanged() {
		t.Error("status did not change on day 3")
	}
	if result.StatusAge() != 48*time.Hour {
		t.Errorf("StatusAge() = %v, want 48h", result.StatusAge())
	}

	segments := log.Segments("OpenBugsFoo")
	if len(segments) != 1 {
		t.Fatalf("expected exactly one segment, got %d", len(segments))
	}
	segment := segments[0]
	if !segment.Start().Equal(day1) || !segment.End().Equal(day1.AddDate(0, 0, 2)) {
		t.Errorf("unexpected segment bounds %v - %v", segment.Start(), segment.End())
	}
	if segment.Value().Raw() != 38 || segment.Status() != valueobject.StatusGreen {
		t.Errorf("unexpected segment reading %v %s", segment.Value(), segment.Status())
	}
}

func TestMetricEvaluator_WaiverGivesGrey(t *testing.T) {
	evaluator := NewMetricEvaluator(nil)
	log := entity.NewHistoryLog()
	def := openBugs(t)

	waiver, err := valueobject.NewTechnicalDebtWaiver(51, "known issue", time.Time{})
	if err != nil {
		t.Fatalf("NewTechnicalDebtWaiver() error = %v", err)
	}

	result, err := evaluator.Evaluate(EvaluationRequest{
		Subject:    "Foo",
		Definition: def,
		Policy:     valueobject.NewFixedTarget(40, 50),
		Waiver:     waiver,
		Value:      valueobject.NewMeasuredValue(51),
		Now:        time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
	}, log)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}

	if result.Status() != valueobject.StatusGrey {
		t.Errorf("Status() = %s, want grey", result.Status())
	}
	if !strings.Contains(result.Comment(), "known issue") {
		t.Errorf("Comment() = %q, want waiver explanation", result.Comment())
	}
	if result.Target() != 40 || result.LowTarget() != 50 {
		t.Errorf("result must carry the applied norm, got %v/%v", result.Target(), result.LowTarget())
	}
}

func TestMetricEvaluator_MissingValue(t *testing.T) {
	evaluator := NewMetricEvaluator(nil)
	log := entity.NewHistoryLog()

	result, err := evaluator.Evaluate(EvaluationRequest{
		Subject:    "Foo",
		Definition: openBugs(t),
		Value:      valueobject.Unavailable(),
		Now:        time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
	}, log)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}

	if result.Status() != valueobject.StatusMissing {
		t.Errorf("Status() = %s, want missing", result.Status())
	}
	if log.LatestCounts()[valueobject.StatusMissing] != 1 {
		t.Errorf("missing status must be counted in the snapshot")
	}
}

func TestMetricEvaluator_OutOfOrder(t *testing.T) {
	evaluator := NewMetricEvaluator(nil)
	log := entity.NewHistoryLog()
	def := openBugs(t)
	now := time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC)

	req := EvaluationRequest{Subject: "Foo", Definition: def, Value: valueobject.NewMeasuredValue(1), Now: now}
	if _, err := evaluator.Evaluate(req, log); err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}

	_, err := evaluator.Evaluate(req, log)
	var orderErr *entity.OutOfOrderError
	if !errors.As(err, &orderErr) {
		t.Fatalf("expected OutOfOrderError for duplicate evaluation, got %v", err)
	}
}

func TestMetricEvaluator_AdaptedNormComment(t *testing.T) {
	evaluator := NewMetricEvaluator(nil)

	result, err := evaluator.Evaluate(EvaluationRequest{
		Subject:    "Foo",
		Definition: openBugs(t),
		Policy:     valueobject.NewFixedTarget(20, 30),
		Value:      valueobject.NewMeasuredValue(10),
		Now:        time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
	}, entity.NewHistoryLog())
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}

	if !strings.Contains(result.Comment(), "adapted") {
		t.Errorf("Comment() = %q, want adapted norm note", result.Comment())
	}
}
