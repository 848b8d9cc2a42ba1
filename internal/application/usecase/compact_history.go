package usecase

import (
	"context"
	"fmt"

	"github.com/dreschagin/quality-history/internal/application/port"
	"github.com/dreschagin/quality-history/internal/domain/repository"
	"github.com/dreschagin/quality-history/pkg/logger"
)

// CompactHistoryResult содержит итог сжатия
type CompactHistoryResult struct {
	Merges   int
	Segments int
	Saved    bool
}

// CompactHistoryUseCase склеивает соседние одинаковые сегменты сохраненной истории
type CompactHistoryUseCase struct {
	repository repository.HistoryRepository
	cache      port.Cache
	logger     *logger.Logger
}

// NewCompactHistoryUseCase создает новый use case
func NewCompactHistoryUseCase(repository repository.HistoryRepository, logger *logger.Logger) *CompactHistoryUseCase {
	return &CompactHistoryUseCase{
		repository: repository,
		logger:     logger,
	}
}

// WithCache подключает инвалидацию кеша запросов истории
func (uc *CompactHistoryUseCase) WithCache(c port.Cache) *CompactHistoryUseCase {
	uc.cache = c
	return uc
}

// Execute сжимает историю и сохраняет ее, только если что-то изменилось
func (uc *CompactHistoryUseCase) Execute(ctx context.Context) (*CompactHistoryResult, error) {
	log, err := uc.repository.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	merges := log.Compact()
	result := &CompactHistoryResult{Merges: merges, Segments: log.SegmentCount()}

	if merges == 0 {
		uc.logger.Info("History is already compact", "location", uc.repository.Location())
		return result, nil
	}

	if err := uc.repository.Save(ctx, log); err != nil {
		return nil, fmt.Errorf("failed to save compacted history: %w", err)
	}
	result.Saved = true
	invalidateHistoryCache(ctx, uc.cache, uc.logger)

	uc.logger.Info("History compacted",
		"location", uc.repository.Location(),
		"merges", merges,
		"segments", result.Segments)

	return result, nil
}
