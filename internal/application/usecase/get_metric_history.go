package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dreschagin/quality-history/internal/application/dto"
	"github.com/dreschagin/quality-history/internal/application/port"
	"github.com/dreschagin/quality-history/internal/domain/repository"
	"github.com/dreschagin/quality-history/pkg/logger"
)

const (
	defaultRecentValues = 10
	maxRecentValues     = 1000
)

// ErrMetricNotFound возвращается для метрики, которой нет в истории
var ErrMetricNotFound = errors.New("metric not found in history")

// GetMetricHistoryQuery описывает запрос истории метрики
type GetMetricHistoryQuery struct {
	MetricID     string
	Recent       int
	WithSegments bool
}

// GetMetricHistoryUseCase возвращает статус, дату его начала и недавние значения метрики
// с кешированием (cache-aside)
type GetMetricHistoryUseCase struct {
	repository repository.HistoryRepository
	cache      port.Cache
	logger     *logger.Logger
}

// NewGetMetricHistoryUseCase создает новый use case; cache может быть nil
func NewGetMetricHistoryUseCase(
	repository repository.HistoryRepository,
	cache port.Cache,
	logger *logger.Logger,
) *GetMetricHistoryUseCase {
	return &GetMetricHistoryUseCase{
		repository: repository,
		cache:      cache,
		logger:     logger,
	}
}

// Execute выполняет запрос
func (uc *GetMetricHistoryUseCase) Execute(ctx context.Context, query GetMetricHistoryQuery) (*dto.MetricHistoryDTO, error) {
	metricID := strings.TrimSpace(query.MetricID)
	if metricID == "" {
		return nil, fmt.Errorf("metric id cannot be empty")
	}

	recent := query.Recent
	if recent <= 0 {
		recent = defaultRecentValues
	}
	if recent > maxRecentValues {
		recent = maxRecentValues
	}

	// Если кеш не настроен, используем стандартный путь
	if uc.cache == nil {
		return uc.executeWithoutCache(ctx, metricID, recent, query.WithSegments)
	}

	cacheKey := MetricHistoryCacheKey(metricID, recent, query.WithSegments)

	var cached dto.MetricHistoryDTO
	hit, err := uc.cache.Get(ctx, cacheKey, &cached)
	if err != nil {
		uc.logger.Warn("Cache read failed", "key", cacheKey, "error", err.Error())
	}
	if hit {
		uc.logger.Debug("Cache hit for metric history", "metric", metricID)
		return &cached, nil
	}

	history, err := uc.executeWithoutCache(ctx, metricID, recent, query.WithSegments)
	if err != nil {
		return nil, err
	}

	if err := uc.cache.Set(ctx, cacheKey, history); err != nil {
		uc.logger.Warn("Failed to cache metric history", "key", cacheKey, "error", err.Error())
	}

	return history, nil
}

func (uc *GetMetricHistoryUseCase) executeWithoutCache(
	ctx context.Context,
	metricID string,
	recent int,
	withSegments bool,
) (*dto.MetricHistoryDTO, error) {
	log, err := uc.repository.Load(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrHistoryNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrMetricNotFound, metricID)
		}
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	latest, ok := log.LatestSegment(metricID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMetricNotFound, metricID)
	}

	values := log.RecentValues(metricID, recent)
	recentDTO := make([]*float64, len(values))
	for i, v := range values {
		recentDTO[i] = dto.ValuePtr(v)
	}

	since := log.StatusStartDate(metricID)
	history := &dto.MetricHistoryDTO{
		MetricID:     metricID,
		Status:       latest.Status().String(),
		StatusSince:  &since,
		Value:        dto.ValuePtr(latest.Value()),
		Recent:       recentDTO,
		SegmentCount: len(log.Segments(metricID)),
	}
	if withSegments {
		history.Segments = dto.ToSegmentDTOs(log.Segments(metricID))
	}

	return history, nil
}

// MetricHistoryCacheKey строит ключ кеша истории метрики
func MetricHistoryCacheKey(metricID string, recent int, withSegments bool) string {
	return fmt.Sprintf("history:metric:%s:%d:%t", metricID, recent, withSegments)
}
