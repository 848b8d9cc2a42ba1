package cloudwatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"

	"github.com/dreschagin/quality-history/internal/application/dto"
)

type fakePutMetricData struct {
	inputs []*cloudwatch.PutMetricDataInput
	errs   []error
}

func (f *fakePutMetricData) PutMetricData(_ context.Context, params *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	f.inputs = append(f.inputs, params)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return nil, err
	}
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func float(v float64) *float64 { return &v }

func testSummary() *dto.RunSummaryDTO {
	date := time.Date(2020, 1, 1, 9, 0, 0, 0, time.UTC)
	return &dto.RunSummaryDTO{
		RunID:   "run-1",
		Project: "demo",
		Date:    date,
		Counts:  map[string]int{"green": 3, "red": 1},
		Measurements: []*dto.MeasurementDTO{
			{MetricID: "OpenBugsFoo", Kind: "OpenBugs", Subject: "Foo", Unit: "bugs", Value: float(38), Date: date},
			{MetricID: "CoverageFoo", Kind: "Coverage", Subject: "Foo", Unit: "%", Date: date},
		},
		MetaMetrics: []*dto.MetaMetricDTO{
			{Name: "GreenMetaMetric", Percentage: float(75)},
			{Name: "RedMetaMetric", Percentage: float(25)},
			{Name: "GreyMetaMetric"},
		},
	}
}

func TestMapUnit(t *testing.T) {
	tests := []struct {
		name     string
		unit     string
		expected string
	}{
		{"percentage", "%", "Percent"},
		{"milliseconds", "ms", "Milliseconds"},
		{"seconds", "s", "Seconds"},
		{"count", "count", "Count"},
		{"lines of code", "LOC", "Count"},
		{"unknown", "custom", "None"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := mapUnit(tt.unit)
			if string(result) != tt.expected {
				t.Errorf("mapUnit(%q) = %v, want %v", tt.unit, result, tt.expected)
			}
		})
	}
}

func TestRunDatapoints(t *testing.T) {
	summary := testSummary()

	withoutValues := runDatapoints(summary, false)
	// 6 statuses + 2 available meta metrics
	if len(withoutValues) != 8 {
		t.Fatalf("expected 8 datapoints, got %d", len(withoutValues))
	}

	var red float64 = -1
	for _, p := range withoutValues {
		if p.name == "MetricsByStatus" && p.dimensions["Status"] == "red" {
			red = p.value
		}
	}
	if red != 1 {
		t.Errorf("red count datapoint = %v, want 1", red)
	}

	withValues := runDatapoints(summary, true)
	if len(withValues) != 9 {
		t.Fatalf("expected 9 datapoints with values, got %d", len(withValues))
	}
	last := withValues[len(withValues)-1]
	if last.name != "MeasuredValue" || last.value != 38 || last.dimensions["MetricKind"] != "OpenBugs" {
		t.Errorf("unexpected value datapoint %+v", last)
	}
}

func TestConvertToDatum(t *testing.T) {
	p := newMetricsPublisher(&fakePutMetricData{}, MetricsPublisherConfig{
		Namespace: "Test/Namespace",
		DefaultDimensions: map[string]string{
			"Environment": "test",
		},
		StorageResolution: 60,
	})

	datum := p.convertToDatum(datapoint{
		name:       "GreenMetaMetric",
		value:      75,
		unit:       mapUnit("%"),
		timestamp:  time.Now(),
		dimensions: map[string]string{"Project": "demo"},
	})

	if datum.MetricName == nil || *datum.MetricName != "GreenMetaMetric" {
		t.Errorf("Expected MetricName=GreenMetaMetric, got %v", datum.MetricName)
	}
	if datum.Value == nil || *datum.Value != 75 {
		t.Errorf("Expected Value=75, got %v", datum.Value)
	}
	if datum.Unit != "Percent" {
		t.Errorf("Expected Unit=Percent, got %v", datum.Unit)
	}
	if datum.StorageResolution == nil || *datum.StorageResolution != 60 {
		t.Errorf("Expected StorageResolution=60, got %v", datum.StorageResolution)
	}

	if len(datum.Dimensions) != 2 {
		t.Fatalf("Expected 2 dimensions, got %d", len(datum.Dimensions))
	}
	if *datum.Dimensions[0].Name != "Environment" || *datum.Dimensions[1].Name != "Project" {
		t.Errorf("dimensions must be sorted by name, got %s, %s", *datum.Dimensions[0].Name, *datum.Dimensions[1].Name)
	}
}

func TestMetricsPublisher_PublishRunAndFlush(t *testing.T) {
	fake := &fakePutMetricData{errs: []error{errors.New("throttled")}}
	p := newMetricsPublisher(fake, MetricsPublisherConfig{Namespace: "Quality", BufferSize: 100})

	if err := p.PublishRun(context.Background(), testSummary()); err != nil {
		t.Fatalf("PublishRun() error = %v", err)
	}
	if len(fake.inputs) != 0 {
		t.Fatal("datapoints must stay buffered until flush")
	}

	if err := p.Flush(context.Background()); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if len(fake.inputs) != 2 {
		t.Errorf("expected one retry after a failed put, got %d calls", len(fake.inputs))
	}
	if len(fake.inputs[1].MetricData) != 8 || *fake.inputs[1].Namespace != "Quality" {
		t.Errorf("unexpected request %+v", fake.inputs[1])
	}
	if len(p.pending) != 0 {
		t.Error("buffer must be empty after flush")
	}
}

func TestMetricsPublisher_AutoFlush(t *testing.T) {
	fake := &fakePutMetricData{}
	p := newMetricsPublisher(fake, MetricsPublisherConfig{Namespace: "Quality", BufferSize: 4})

	if err := p.PublishRun(context.Background(), testSummary()); err != nil {
		t.Fatalf("PublishRun() error = %v", err)
	}
	if len(fake.inputs) != 2 {
		t.Errorf("expected 2 automatic flushes, got %d", len(fake.inputs))
	}
}

func TestNewMetricsPublisher_Validation(t *testing.T) {
	tests := []struct {
		name   string
		config MetricsPublisherConfig
	}{
		{"missing namespace", MetricsPublisherConfig{Region: "us-east-1"}},
		{"missing region", MetricsPublisherConfig{Namespace: "Quality"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewMetricsPublisher(context.Background(), tt.config); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
