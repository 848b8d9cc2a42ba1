package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"

	"github.com/dreschagin/quality-history/internal/application/dto"
)

func floatPtr(v float64) *float64 { return &v }

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		name      string
		statuses  []string
		failOnRed bool
		want      int
	}{
		{"green run", []string{"green", "perfect"}, true, exitOK},
		{"red without flag", []string{"red"}, false, exitOK},
		{"red with flag", []string{"green", "red"}, true, exitFailures},
		{"missing with flag", []string{"missing"}, true, exitFailures},
		{"yellow with flag", []string{"yellow", "grey"}, true, exitOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			summary := &dto.RunSummaryDTO{}
			for _, status := range tt.statuses {
				summary.Measurements = append(summary.Measurements, &dto.MeasurementDTO{Status: status})
			}
			if got := exitCodeFor(summary, tt.failOnRed); got != tt.want {
				t.Errorf("exitCodeFor() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestExitCodeError(t *testing.T) {
	var err error = &exitCodeError{code: exitFailures}

	var codeErr *exitCodeError
	if !errors.As(err, &codeErr) || codeErr.code != exitFailures {
		t.Fatalf("expected exitCodeError with code %d, got %v", exitFailures, err)
	}
}

func TestPrintSummary(t *testing.T) {
	color.NoColor = true
	date := time.Date(2013, 2, 28, 17, 1, 45, 0, time.UTC)

	summary := &dto.RunSummaryDTO{
		RunID:   "run-1",
		Project: "demo",
		Date:    date,
		Counts:  map[string]int{"green": 1, "red": 1},
		Measurements: []*dto.MeasurementDTO{
			{MetricID: "OpenBugsFoo", Status: "green", Value: floatPtr(38), StatusSince: date},
			{MetricID: "CoverageFoo", Status: "red", StatusSince: date, StatusChanged: true},
		},
		HistoryDegraded: true,
		HistoryLocation: "history.json",
	}

	var buf bytes.Buffer
	printSummary(&buf, summary)
	out := buf.String()

	for _, want := range []string{"demo", "run-1", "OpenBugsFoo", "38", "n/a", "* red", "green: 1", "red: 1", "history.json"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintMetricHistory(t *testing.T) {
	color.NoColor = true
	start := time.Date(2013, 2, 1, 17, 0, 0, 0, time.UTC)

	var buf bytes.Buffer
	printMetricHistory(&buf, &dto.MetricHistoryDTO{
		MetricID:     "OpenBugsFoo",
		Status:       "red",
		StatusSince:  &start,
		Value:        floatPtr(30),
		Recent:       []*float64{floatPtr(10), nil, floatPtr(30)},
		SegmentCount: 1,
		Segments:     []*dto.SegmentDTO{{Start: start, End: start, Value: floatPtr(30), Status: "red"}},
	})
	out := buf.String()

	for _, want := range []string{"red OpenBugsFoo = 30", "since 2013-02-01 17:00:00", "recent: 10 n/a 30", "1 segments"} {
		if !strings.Contains(out, want) {
			t.Errorf("history output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintTrend(t *testing.T) {
	color.NoColor = true
	day := func(d int) time.Time { return time.Date(2013, 2, d, 17, 0, 0, 0, time.UTC) }

	trend := &dto.StatusTrendDTO{Points: []*dto.StatusTrendPointDTO{
		{Date: day(1), Counts: map[string]int{"green": 2}, Total: 2},
		{Date: day(2), Counts: map[string]int{"green": 1, "red": 1}, Total: 2},
		{Date: day(3), Counts: map[string]int{"red": 2}, Total: 2},
	}}

	var buf bytes.Buffer
	printTrend(&buf, trend, 2)
	out := buf.String()

	if strings.Contains(out, "2013-02-01") {
		t.Errorf("only the last 2 points must be printed:\n%s", out)
	}
	if !strings.Contains(out, "red=2") {
		t.Errorf("expected red=2 in output:\n%s", out)
	}

	buf.Reset()
	printTrend(&buf, &dto.StatusTrendDTO{}, 5)
	if !strings.Contains(buf.String(), "no snapshots") {
		t.Errorf("expected empty trend message, got %q", buf.String())
	}
}
