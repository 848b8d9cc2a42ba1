package port

import (
	"context"

	"github.com/dreschagin/quality-history/internal/application/dto"
)

// ReportWriter сохраняет итог запуска и возвращает путь к созданному отчету
type ReportWriter interface {
	WriteReport(ctx context.Context, summary *dto.RunSummaryDTO) (string, error)
}
