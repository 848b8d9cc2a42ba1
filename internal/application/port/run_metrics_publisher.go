package port

import (
	"context"

	"github.com/dreschagin/quality-history/internal/application/dto"
)

// RunMetricsPublisher defines the interface for exporting run results to an observability platform.
type RunMetricsPublisher interface {
	// PublishRun records the status counts and meta metrics of a finished run.
	PublishRun(ctx context.Context, summary *dto.RunSummaryDTO) error

	// Flush forces immediate publication of any buffered data.
	Flush(ctx context.Context) error
}
