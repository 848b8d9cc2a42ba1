package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/dreschagin/quality-history/internal/application/dto"
	"github.com/dreschagin/quality-history/internal/application/port"
	"github.com/dreschagin/quality-history/internal/domain/repository"
	"github.com/dreschagin/quality-history/internal/domain/valueobject"
	"github.com/dreschagin/quality-history/pkg/logger"
)

// GetStatusTrendUseCase возвращает количество статусов по снимкам за период с кешированием
type GetStatusTrendUseCase struct {
	repository repository.HistoryRepository
	cache      port.Cache
	logger     *logger.Logger
}

// NewGetStatusTrendUseCase создает новый use case; cache может быть nil
func NewGetStatusTrendUseCase(
	repository repository.HistoryRepository,
	cache port.Cache,
	logger *logger.Logger,
) *GetStatusTrendUseCase {
	return &GetStatusTrendUseCase{
		repository: repository,
		cache:      cache,
		logger:     logger,
	}
}

// Execute выполняет запрос тренда
func (uc *GetStatusTrendUseCase) Execute(ctx context.Context, timeRange valueobject.TimeRange) (*dto.StatusTrendDTO, error) {
	if uc.cache == nil {
		return uc.executeWithoutCache(ctx, timeRange)
	}

	cacheKey := StatusTrendCacheKey(timeRange)

	var cached dto.StatusTrendDTO
	hit, err := uc.cache.Get(ctx, cacheKey, &cached)
	if err != nil {
		uc.logger.Warn("Cache read failed", "key", cacheKey, "error", err.Error())
	}
	if hit {
		uc.logger.Debug("Cache hit for status trend", "points", len(cached.Points))
		return &cached, nil
	}

	trend, err := uc.executeWithoutCache(ctx, timeRange)
	if err != nil {
		return nil, err
	}

	if err := uc.cache.Set(ctx, cacheKey, trend); err != nil {
		uc.logger.Warn("Failed to cache status trend", "key", cacheKey, "error", err.Error())
	}

	return trend, nil
}

func (uc *GetStatusTrendUseCase) executeWithoutCache(ctx context.Context, timeRange valueobject.TimeRange) (*dto.StatusTrendDTO, error) {
	trend := &dto.StatusTrendDTO{Points: []*dto.StatusTrendPointDTO{}}
	if !timeRange.Start().IsZero() {
		from := timeRange.Start()
		trend.From = &from
	}
	if !timeRange.End().IsZero() {
		to := timeRange.End()
		trend.To = &to
	}

	log, err := uc.repository.Load(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrHistoryNotFound) {
			return trend, nil
		}
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	for _, snapshot := range log.Statuses() {
		if timeRange.Contains(snapshot.Date) {
			trend.Points = append(trend.Points, dto.FromSnapshot(snapshot))
		}
	}

	uc.logger.Debug("Status trend built", "points", len(trend.Points))
	return trend, nil
}

// StatusTrendCacheKey строит ключ кеша тренда
func StatusTrendCacheKey(timeRange valueobject.TimeRange) string {
	return fmt.Sprintf("history:trend:%s:%s",
		formatBound(timeRange.Start()), formatBound(timeRange.End()))
}
