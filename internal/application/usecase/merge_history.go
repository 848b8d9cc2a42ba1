package usecase

import (
	"context"
	"fmt"

	"github.com/dreschagin/quality-history/internal/application/port"
	"github.com/dreschagin/quality-history/internal/domain/repository"
	"github.com/dreschagin/quality-history/pkg/logger"
)

// MergeHistoryCommand описывает объединение двух историй
type MergeHistoryCommand struct {
	Into   repository.HistoryRepository
	From   repository.HistoryRepository
	Output repository.HistoryRepository // nil: результат записывается в Into
}

// MergeHistoryResult содержит итог объединения
type MergeHistoryResult struct {
	Location  string
	Snapshots int
	Metrics   int
	Segments  int
}

// MergeHistoryUseCase дописывает более позднюю историю в конец более ранней
type MergeHistoryUseCase struct {
	cache  port.Cache
	logger *logger.Logger
}

// NewMergeHistoryUseCase создает новый use case
func NewMergeHistoryUseCase(logger *logger.Logger) *MergeHistoryUseCase {
	return &MergeHistoryUseCase{logger: logger}
}

// WithCache подключает инвалидацию кеша запросов истории
func (uc *MergeHistoryUseCase) WithCache(c port.Cache) *MergeHistoryUseCase {
	uc.cache = c
	return uc
}

// Execute выполняет объединение. MergeOrderError возвращается без изменений хранилищ.
func (uc *MergeHistoryUseCase) Execute(ctx context.Context, cmd MergeHistoryCommand) (*MergeHistoryResult, error) {
	if cmd.Into == nil || cmd.From == nil {
		return nil, fmt.Errorf("both histories are required for a merge")
	}
	output := cmd.Output
	if output == nil {
		output = cmd.Into
	}

	into, err := cmd.Into.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", cmd.Into.Location(), err)
	}
	from, err := cmd.From.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", cmd.From.Location(), err)
	}

	if err := into.Merge(from); err != nil {
		uc.logger.Error("Histories cannot be merged", err,
			"into", cmd.Into.Location(),
			"from", cmd.From.Location())
		return nil, fmt.Errorf("failed to merge histories: %w", err)
	}

	if err := output.Save(ctx, into); err != nil {
		return nil, fmt.Errorf("failed to save merged history: %w", err)
	}
	invalidateHistoryCache(ctx, uc.cache, uc.logger)

	result := &MergeHistoryResult{
		Location:  output.Location(),
		Snapshots: len(into.Dates()),
		Metrics:   len(into.MetricIDs()),
		Segments:  into.SegmentCount(),
	}

	uc.logger.Info("Histories merged",
		"location", result.Location,
		"snapshots", result.Snapshots,
		"metrics", result.Metrics)

	return result, nil
}
