// Package report writes run summaries to the report output directory.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dreschagin/quality-history/internal/application/dto"
)

// FileName is the name of the summary file inside the output directory.
const FileName = "report.json"

// JSONWriter implements port.ReportWriter.
type JSONWriter struct {
	dir string
}

// NewJSONWriter creates a writer for the given output directory.
func NewJSONWriter(dir string) (*JSONWriter, error) {
	if dir == "" {
		return nil, fmt.Errorf("report directory is required")
	}
	return &JSONWriter{dir: filepath.Clean(dir)}, nil
}

// WriteReport stores the summary as <dir>/report.json and returns its path.
func (w *JSONWriter) WriteReport(ctx context.Context, summary *dto.RunSummaryDTO) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if summary == nil {
		return "", fmt.Errorf("summary cannot be nil")
	}

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report: %w", err)
	}

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	path := filepath.Join(w.dir, FileName)
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}
