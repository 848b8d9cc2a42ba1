package usecase

import (
	"context"
	"time"

	"github.com/dreschagin/quality-history/internal/application/port"
	"github.com/dreschagin/quality-history/internal/domain/valueobject"
	"github.com/dreschagin/quality-history/pkg/logger"
)

// formatBound форматирует границу интервала для ключа кеша; открытая граница обозначается "*"
func formatBound(t time.Time) string {
	if t.IsZero() {
		return "*"
	}
	return valueobject.NormalizeHistoryDate(t).Format("20060102T150405Z")
}

// invalidateHistoryCache сбрасывает ответы, построенные по истории, после ее записи.
// Кеш необязателен, ошибка только логируется.
func invalidateHistoryCache(ctx context.Context, cache port.Cache, log *logger.Logger) {
	if cache == nil {
		return
	}
	if err := cache.DeletePattern(ctx, HistoryCachePattern); err != nil {
		log.Warn("Failed to invalidate history cache", "error", err.Error())
	}
}
