package usecase

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/dreschagin/quality-history/internal/application/port"
	"github.com/dreschagin/quality-history/internal/domain/entity"
	"github.com/dreschagin/quality-history/internal/domain/repository"
	"github.com/dreschagin/quality-history/pkg/logger"
)

// Строки с меньшим числом метрик содержат только мета-метрики
const minLegacyEntries = 6

// Игнорируемые id логируются один раз по префиксу этой длины
const ignoredIDKeyLength = 30

var ignoredMetricPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^.*-version$`),                 // номера версий компонентов
	regexp.MustCompile(`^.*:\d+(\.\d+){1,2}(-\w+)?$`), // метрики конкретных версий компонентов
	regexp.MustCompile(`^[A-Z][A-Z]-\d+$`),             // неизвестные двухбуквенные коды
	regexp.MustCompile(`^.*MetaMetric.*$`),             // мета-метрики вычисляются заново
	regexp.MustCompile(`^.* object at .*$`),            // артефакт старой ошибки сериализации
}

// IngestLegacyHistoryCommand описывает конвертацию старой истории.
// Существующая история в Output дополняется; Force заменяет ее целиком.
type IngestLegacyHistoryCommand struct {
	Reader port.LegacyHistoryReader
	Output repository.HistoryRepository
	Force  bool
}

// IngestLegacyHistoryResult содержит итог конвертации
type IngestLegacyHistoryResult struct {
	Records      int
	Skipped      int
	IgnoredIDs   []string
	Merges       int
	Snapshots    int
	Metrics      int
	Segments     int
	RejectedRows int
	// Merged сообщает, что конвертированная история объединена с уже сохраненной
	Merged bool
	// Replaced сообщает, что сохраненная история перезаписана по Force
	Replaced bool
}

// IngestLegacyHistoryUseCase сворачивает построчную историю в каноническую сжатую форму
type IngestLegacyHistoryUseCase struct {
	cache  port.Cache
	logger *logger.Logger
}

// NewIngestLegacyHistoryUseCase создает новый use case
func NewIngestLegacyHistoryUseCase(logger *logger.Logger) *IngestLegacyHistoryUseCase {
	return &IngestLegacyHistoryUseCase{logger: logger}
}

// WithCache подключает инвалидацию кеша запросов истории
func (uc *IngestLegacyHistoryUseCase) WithCache(c port.Cache) *IngestLegacyHistoryUseCase {
	uc.cache = c
	return uc
}

// Execute читает все строки, отбрасывает игнорируемые метрики и сохраняет сжатую историю
func (uc *IngestLegacyHistoryUseCase) Execute(
	ctx context.Context,
	cmd IngestLegacyHistoryCommand,
) (*IngestLegacyHistoryResult, error) {
	if cmd.Reader == nil || cmd.Output == nil {
		return nil, fmt.Errorf("legacy reader and output repository are required")
	}

	existing, err := uc.loadExisting(ctx, cmd)
	if err != nil {
		return nil, err
	}

	records, err := cmd.Reader.ReadRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read legacy history: %w", err)
	}

	log := entity.NewHistoryLog()
	result := &IngestLegacyHistoryResult{Records: len(records)}
	// Набор живет только в рамках одного вызова
	ignored := make(map[string]bool)

	for _, record := range records {
		if len(record.Entries) < minLegacyEntries {
			result.Skipped++
			uc.logger.Debug("Skipping line with meta metrics only", "line", record.Line)
			continue
		}

		if last, ok := log.LastDate(); ok && !record.Date.After(last) {
			return nil, fmt.Errorf("failed to fold line %d: %w", record.Line,
				&entity.OutOfOrderError{Date: record.Date, Latest: last})
		}

		if err := log.OpenSnapshot(record.Date); err != nil {
			return nil, fmt.Errorf("failed to open snapshot for line %d: %w", record.Line, err)
		}

		for _, entry := range record.Entries {
			metricID := fixMetricID(entry.MetricID)
			if pattern := matchIgnored(metricID); pattern != "" {
				key := truncate(metricID, ignoredIDKeyLength)
				if !ignored[key] {
					ignored[key] = true
					result.IgnoredIDs = append(result.IgnoredIDs, key)
					uc.logger.Warn("Ignoring metric", "metric", metricID, "pattern", pattern)
				}
				continue
			}

			if err := log.Append(record.Date, metricID, entry.Value, entry.Status); err != nil {
				var orderErr *entity.OutOfOrderError
				if errors.As(err, &orderErr) {
					// Дубликат id после исправления имени внутри одной строки
					result.RejectedRows++
					uc.logger.Warn("Skipping duplicate metric", "line", record.Line, "metric", metricID)
					continue
				}
				return nil, fmt.Errorf("failed to fold line %d: %w", record.Line, err)
			}
		}
	}

	result.Merges = log.Compact()

	if existing != nil {
		if cmd.Force {
			result.Replaced = true
			uc.logger.Warn("Replacing existing history", "location", cmd.Output.Location(),
				"snapshots", len(existing.Dates()))
		} else {
			if log, err = combine(existing, log); err != nil {
				return nil, fmt.Errorf("failed to merge converted history into %s: %w", cmd.Output.Location(), err)
			}
			result.Merged = true
		}
	}

	if err := cmd.Output.Save(ctx, log); err != nil {
		return nil, fmt.Errorf("failed to save converted history: %w", err)
	}

	invalidateHistoryCache(ctx, uc.cache, uc.logger)

	result.Snapshots = len(log.Dates())
	result.Metrics = len(log.MetricIDs())
	result.Segments = log.SegmentCount()

	uc.logger.Info("Legacy history ingested",
		"location", cmd.Output.Location(),
		"records", result.Records,
		"skipped", result.Skipped,
		"ignored", len(result.IgnoredIDs),
		"snapshots", result.Snapshots,
		"metrics", result.Metrics,
		"merged", result.Merged)

	return result, nil
}

// loadExisting возвращает непустую историю, уже сохраненную в Output, или nil
func (uc *IngestLegacyHistoryUseCase) loadExisting(ctx context.Context, cmd IngestLegacyHistoryCommand) (*entity.HistoryLog, error) {
	existing, err := cmd.Output.Load(ctx)
	if errors.Is(err, repository.ErrHistoryNotFound) {
		return nil, nil
	}
	if err != nil {
		if cmd.Force {
			uc.logger.Warn("Existing history is unreadable and will be replaced",
				"location", cmd.Output.Location(), "error", err.Error())
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load %s: %w", cmd.Output.Location(), err)
	}
	if existing.IsEmpty() {
		return nil, nil
	}
	return existing, nil
}

// combine объединяет две истории в хронологическом порядке.
// Старая история, целиком предшествующая сохраненной, ставится перед ней;
// иначе она дописывается в конец, и пересечение дат дает MergeOrderError.
func combine(existing, converted *entity.HistoryLog) (*entity.HistoryLog, error) {
	if last, ok := converted.LastDate(); ok {
		if first, ok := existing.FirstDate(); ok && last.Before(first) {
			if err := converted.Merge(existing); err != nil {
				return nil, err
			}
			return converted, nil
		}
	}
	if err := existing.Merge(converted); err != nil {
		return nil, err
	}
	return existing, nil
}

// fixMetricID исправляет id, испорченные старыми версиями
func fixMetricID(id string) string {
	if strings.HasPrefix(id, "TotalLOC(") {
		return "TotalLOC"
	}
	return id
}

func matchIgnored(id string) string {
	for _, pattern := range ignoredMetricPatterns {
		if pattern.MatchString(id) {
			return pattern.String()
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
