package service

import (
	"testing"
	"time"

	"github.com/dreschagin/quality-history/internal/domain/valueobject"
)

var classifyAt = time.Date(2020, 1, 10, 0, 0, 0, 0, time.UTC)

func lowerIsBetter(value valueobject.MeasuredValue) ClassifyInput {
	return ClassifyInput{
		Value:      value,
		Direction:  valueobject.LowerIsBetter,
		Policy:     valueobject.NewFixedTarget(10, 20),
		At:         classifyAt,
		Perfect:    0,
		HasPerfect: true,
	}
}

func mustWaiver(t *testing.T, accepted float64, expires time.Time) *valueobject.TechnicalDebtWaiver {
	t.Helper()
	w, err := valueobject.NewTechnicalDebtWaiver(accepted, "known issue", expires)
	if err != nil {
		t.Fatalf("NewTechnicalDebtWaiver() error = %v", err)
	}
	return w
}

func TestStatusClassifier_LowerIsBetter(t *testing.T) {
	classifier := NewStatusClassifier()

	tests := []struct {
		name       string
		value      float64
		yellowTier bool
		want       valueobject.Status
	}{
		{"perfect", 0, false, valueobject.StatusPerfect},
		{"within target", 5, false, valueobject.StatusGreen},
		{"at target", 10, false, valueobject.StatusGreen},
		{"between targets without yellow tier", 15, false, valueobject.StatusRed},
		{"between targets with yellow tier", 15, true, valueobject.StatusYellow},
		{"at low target with yellow tier", 20, true, valueobject.StatusYellow},
		{"beyond low target", 25, true, valueobject.StatusRed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := lowerIsBetter(valueobject.NewMeasuredValue(tt.value))
			in.YellowTier = tt.yellowTier
			if got := classifier.Classify(in); got != tt.want {
				t.Errorf("Classify(%v) = %s, want %s", tt.value, got, tt.want)
			}
		})
	}
}

func TestStatusClassifier_HigherIsBetter(t *testing.T) {
	classifier := NewStatusClassifier()

	tests := []struct {
		name      string
		direction valueobject.Direction
		value     float64
		want      valueobject.Status
	}{
		{"no perfect bound", valueobject.HigherIsBetter, 1000, valueobject.StatusGreen},
		{"at target", valueobject.HigherIsBetter, 80, valueobject.StatusGreen},
		{"between", valueobject.HigherIsBetter, 70, valueobject.StatusYellow},
		{"below low target", valueobject.HigherIsBetter, 50, valueobject.StatusRed},
		{"percentage perfect", valueobject.HigherPercentageIsBetter, 100, valueobject.StatusPerfect},
		{"percentage green", valueobject.HigherPercentageIsBetter, 85, valueobject.StatusGreen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			perfect, hasPerfect := tt.direction.DefaultPerfect()
			got := classifier.Classify(ClassifyInput{
				Value:      valueobject.NewMeasuredValue(tt.value),
				Direction:  tt.direction,
				Policy:     valueobject.NewFixedTarget(80, 60),
				At:         classifyAt,
				Perfect:    perfect,
				HasPerfect: hasPerfect,
				YellowTier: true,
			})
			if got != tt.want {
				t.Errorf("Classify(%v) = %s, want %s", tt.value, got, tt.want)
			}
		})
	}
}

func TestStatusClassifier_MissingAndStale(t *testing.T) {
	classifier := NewStatusClassifier()
	waiver := mustWaiver(t, 100, time.Time{})

	missing := lowerIsBetter(valueobject.Unavailable())
	missing.Waiver = waiver
	if got := classifier.Classify(missing); got != valueobject.StatusMissing {
		t.Errorf("unavailable value: got %s, want missing", got)
	}

	stale := lowerIsBetter(valueobject.NewMeasuredValue(0))
	stale.Stale = true
	if got := classifier.Classify(stale); got != valueobject.StatusRed {
		t.Errorf("stale value: got %s, want red", got)
	}

	stale.Waiver = waiver
	if got := classifier.Classify(stale); got != valueobject.StatusGrey {
		t.Errorf("stale value under waiver: got %s, want grey", got)
	}
}

func TestStatusClassifier_Waiver(t *testing.T) {
	classifier := NewStatusClassifier()

	tests := []struct {
		name       string
		value      float64
		accepted   float64
		expires    time.Time
		yellowTier bool
		want       valueobject.Status
	}{
		{"covers red", 51, 51, time.Time{}, false, valueobject.StatusGrey},
		{"covers yellow", 15, 30, time.Time{}, true, valueobject.StatusGrey},
		{"value worse than accepted", 52, 51, time.Time{}, false, valueobject.StatusRed},
		{"expired", 51, 51, classifyAt, false, valueobject.StatusRed},
		{"not yet expired", 51, 51, classifyAt.Add(time.Hour), false, valueobject.StatusGrey},
		{"green is not downgraded", 5, 51, time.Time{}, false, valueobject.StatusGreen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := ClassifyInput{
				Value:      valueobject.NewMeasuredValue(tt.value),
				Direction:  valueobject.LowerIsBetter,
				Policy:     valueobject.NewFixedTarget(10, 50),
				At:         classifyAt,
				Waiver:     mustWaiver(t, tt.accepted, tt.expires),
				YellowTier: tt.yellowTier,
			}
			if got := classifier.Classify(in); got != tt.want {
				t.Errorf("Classify() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestStatusClassifier_Monotonic(t *testing.T) {
	classifier := NewStatusClassifier()
	rank := map[valueobject.Status]int{
		valueobject.StatusPerfect: 0,
		valueobject.StatusGreen:   1,
		valueobject.StatusYellow:  2,
		valueobject.StatusRed:     3,
	}

	for _, yellowTier := range []bool{false, true} {
		previous := -1
		for value := 0.0; value <= 30; value += 0.5 {
			in := lowerIsBetter(valueobject.NewMeasuredValue(value))
			in.YellowTier = yellowTier
			current := rank[classifier.Classify(in)]
			if current < previous {
				t.Fatalf("status improved while value got worse at %v (yellow tier %v)", value, yellowTier)
			}
			previous = current
		}
	}
}

func TestStatusClassifier_DynamicPolicy(t *testing.T) {
	classifier := NewStatusClassifier()
	policy, err := valueobject.NewDynamicTarget(47, 100,
		time.Date(2014, 2, 12, 0, 0, 0, 0, time.UTC),
		25, 50,
		time.Date(2014, 6, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("NewDynamicTarget() error = %v", err)
	}

	in := ClassifyInput{
		Value:     valueobject.NewMeasuredValue(40),
		Direction: valueobject.LowerIsBetter,
		Policy:    policy,
	}

	in.At = time.Date(2014, 2, 1, 0, 0, 0, 0, time.UTC)
	if got := classifier.Classify(in); got != valueobject.StatusGreen {
		t.Errorf("before start: got %s, want green", got)
	}

	in.At = time.Date(2014, 4, 7, 0, 0, 0, 0, time.UTC)
	if got := classifier.Classify(in); got != valueobject.StatusRed {
		t.Errorf("midpoint: got %s, want red", got)
	}
}
