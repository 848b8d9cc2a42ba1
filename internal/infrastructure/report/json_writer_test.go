package report

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dreschagin/quality-history/internal/application/dto"
)

func TestJSONWriter_WriteReport(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	w, err := NewJSONWriter(dir)
	if err != nil {
		t.Fatalf("NewJSONWriter() error = %v", err)
	}

	value := 38.0
	summary := &dto.RunSummaryDTO{
		RunID:   "run-1",
		Project: "demo",
		Date:    time.Date(2013, 2, 28, 17, 16, 46, 0, time.UTC),
		Counts:  map[string]int{"green": 1},
		Measurements: []*dto.MeasurementDTO{
			{MetricID: "OpenBugsFoo", Value: &value, Status: "green"},
		},
		ReportPath: "ignored",
	}

	path, err := w.WriteReport(context.Background(), summary)
	if err != nil {
		t.Fatalf("WriteReport() error = %v", err)
	}
	if path != filepath.Join(dir, FileName) {
		t.Errorf("path = %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("report is not valid JSON: %v", err)
	}
	if decoded["run_id"] != "run-1" || decoded["project"] != "demo" {
		t.Errorf("unexpected report %v", decoded)
	}
	if _, ok := decoded["ReportPath"]; ok {
		t.Error("report path must not be serialized")
	}
}

func TestJSONWriter_Errors(t *testing.T) {
	if _, err := NewJSONWriter(""); err == nil {
		t.Error("expected error for empty directory")
	}

	w, _ := NewJSONWriter(t.TempDir())
	if _, err := w.WriteReport(context.Background(), nil); err == nil {
		t.Error("expected error for nil summary")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := w.WriteReport(ctx, &dto.RunSummaryDTO{}); err == nil {
		t.Error("expected error for cancelled context")
	}
}
