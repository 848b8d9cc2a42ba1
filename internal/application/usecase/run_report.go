package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dreschagin/quality-history/internal/application/dto"
	"github.com/dreschagin/quality-history/internal/application/port"
	"github.com/dreschagin/quality-history/internal/domain/entity"
	"github.com/dreschagin/quality-history/internal/domain/repository"
	"github.com/dreschagin/quality-history/internal/domain/service"
	"github.com/dreschagin/quality-history/internal/domain/valueobject"
	"github.com/dreschagin/quality-history/pkg/logger"
)

const defaultWorkers = 4

// HistoryCachePattern покрывает все ключи кеша, построенные из истории
const HistoryCachePattern = "history:*"

// MetricPlan описывает одну пару (субъект, метрика) проекта с ее нормой и waiver
type MetricPlan struct {
	Subject    string
	Definition *entity.MetricDefinition
	Policy     valueobject.ThresholdPolicy // nil: норма по умолчанию
	Waiver     *valueobject.TechnicalDebtWaiver
}

// RunReportCommand описывает один запуск оценки проекта
type RunReportCommand struct {
	Project string
	Workers int
	Plans   []MetricPlan
	Now     time.Time // нулевое значение: текущее время
}

// RunReportConfig содержит настройки запуска по умолчанию
type RunReportConfig struct {
	Workers int
}

// RunReportUseCase выполняет один запуск: загрузка истории, параллельный сбор значений,
// последовательная оценка, сохранение истории и побочные эффекты
type RunReportUseCase struct {
	repository repository.HistoryRepository
	source     port.ValueSource
	evaluator  *service.MetricEvaluator
	calculator *service.MetaMetricCalculator
	validator  *service.DefinitionValidator
	config     RunReportConfig
	logger     *logger.Logger

	reportWriter      port.ReportWriter
	cache             port.Cache
	events            port.EventPublisher
	statusIndex       port.StatusIndex
	metricsPublishers []port.RunMetricsPublisher

	newRunID func() string
}

// NewRunReportUseCase создает новый use case
func NewRunReportUseCase(
	repository repository.HistoryRepository,
	source port.ValueSource,
	evaluator *service.MetricEvaluator,
	calculator *service.MetaMetricCalculator,
	validator *service.DefinitionValidator,
	config RunReportConfig,
	logger *logger.Logger,
) *RunReportUseCase {
	if config.Workers <= 0 {
		config.Workers = defaultWorkers
	}
	return &RunReportUseCase{
		repository: repository,
		source:     source,
		evaluator:  evaluator,
		calculator: calculator,
		validator:  validator,
		config:     config,
		logger:     logger,
		newRunID:   uuid.NewString,
	}
}

// WithReportWriter подключает запись отчета
func (uc *RunReportUseCase) WithReportWriter(w port.ReportWriter) *RunReportUseCase {
	uc.reportWriter = w
	return uc
}

// WithCache подключает инвалидацию кеша запросов истории
func (uc *RunReportUseCase) WithCache(c port.Cache) *RunReportUseCase {
	uc.cache = c
	return uc
}

// WithEventPublisher подключает публикацию событий
func (uc *RunReportUseCase) WithEventPublisher(p port.EventPublisher) *RunReportUseCase {
	uc.events = p
	return uc
}

// WithStatusIndex подключает индекс текущих статусов
func (uc *RunReportUseCase) WithStatusIndex(idx port.StatusIndex) *RunReportUseCase {
	uc.statusIndex = idx
	return uc
}

// WithRunMetricsPublisher добавляет экспорт метрик запуска
func (uc *RunReportUseCase) WithRunMetricsPublisher(p port.RunMetricsPublisher) *RunReportUseCase {
	uc.metricsPublishers = append(uc.metricsPublishers, p)
	return uc
}

// Execute выполняет запуск оценки
func (uc *RunReportUseCase) Execute(ctx context.Context, cmd RunReportCommand) (*dto.RunSummaryDTO, error) {
	// 1. Проверяем конфигурацию до любого ввода-вывода
	if err := uc.validate(cmd); err != nil {
		return nil, err
	}

	now := cmd.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = valueobject.NormalizeHistoryDate(now)

	// 2. Загружаем историю
	log, degraded := uc.loadHistory(ctx)

	// 3. Собираем значения параллельно
	fetched, err := uc.fetchAll(ctx, cmd)
	if err != nil {
		return nil, err
	}

	// 4. Оцениваем последовательно в порядке плана: единственный писатель истории
	results := make([]*entity.MeasurementResult, 0, len(cmd.Plans))
	for i, plan := range cmd.Plans {
		value := fetched[i]
		result, err := uc.evaluator.Evaluate(service.EvaluationRequest{
			Subject:    plan.Subject,
			Definition: plan.Definition,
			Policy:     plan.Policy,
			Waiver:     plan.Waiver,
			Value:      value.Value,
			Stale:      value.Value.IsAvailable() && plan.Definition.IsStale(value.MeasuredAt, now),
			Now:        now,
		}, log)
		if err != nil {
			uc.logger.Error("Failed to evaluate metric", err, "metric", plan.Definition.IDFor(plan.Subject))
			return nil, fmt.Errorf("failed to evaluate metrics: %w", err)
		}
		results = append(results, result)
	}

	summary := uc.buildSummary(cmd.Project, now, results)
	summary.HistoryDegraded = degraded
	summary.HistoryLocation = uc.repository.Location()

	uc.logger.Info("Metrics evaluated",
		"run_id", summary.RunID,
		"metrics", len(results),
		"red", summary.Count(valueobject.StatusRed),
		"missing", summary.Count(valueobject.StatusMissing))

	// 5. Сохраняем историю после всех добавлений
	if degraded {
		uc.logger.Warn("History is degraded, skipping persistence", "location", summary.HistoryLocation)
	} else {
		if err := uc.repository.Save(ctx, log); err != nil {
			uc.logger.Error("Failed to save history", err, "location", summary.HistoryLocation)
			return nil, fmt.Errorf("failed to save history: %w", err)
		}
		uc.logger.Debug("History saved", "location", summary.HistoryLocation, "snapshots", len(log.Dates()))

		// 6. Побочные эффекты только после успешного сохранения
		uc.publishSideEffects(ctx, summary)
	}

	// 7. Отчет
	if uc.reportWriter != nil {
		path, err := uc.reportWriter.WriteReport(ctx, summary)
		if err != nil {
			uc.logger.Error("Failed to write report", err)
			return nil, fmt.Errorf("failed to write report: %w", err)
		}
		summary.ReportPath = path
		uc.logger.Info("Report written", "path", path)
	}

	return summary, nil
}

func (uc *RunReportUseCase) validate(cmd RunReportCommand) error {
	if len(cmd.Plans) == 0 {
		return &valueobject.ConfigurationError{Field: "metrics", Reason: "project defines no metrics"}
	}

	var defs []*entity.MetricDefinition
	seenDefs := make(map[*entity.MetricDefinition]bool)
	seenIDs := make(map[string]bool, len(cmd.Plans))

	for _, plan := range cmd.Plans {
		if plan.Definition == nil {
			return &valueobject.ConfigurationError{Field: plan.Subject, Reason: "metric definition is missing"}
		}
		id := plan.Definition.IDFor(plan.Subject)
		if seenIDs[id] {
			return &valueobject.ConfigurationError{Field: id, Reason: "metric is planned twice"}
		}
		seenIDs[id] = true

		if !seenDefs[plan.Definition] {
			seenDefs[plan.Definition] = true
			defs = append(defs, plan.Definition)
		}

		if err := uc.validator.ValidatePolicy(plan.Definition, plan.Subject, plan.Policy); err != nil {
			return err
		}
	}

	if errs := uc.validator.ValidateBatch(defs); len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// loadHistory загружает историю. Отсутствие истории: пустой лог; любая другая ошибка
// переводит запуск в режим без сохранения, чтобы не перезаписать недоступную историю.
func (uc *RunReportUseCase) loadHistory(ctx context.Context) (*entity.HistoryLog, bool) {
	log, err := uc.repository.Load(ctx)
	switch {
	case err == nil:
		uc.logger.Debug("History loaded", "snapshots", len(log.Dates()), "metrics", len(log.MetricIDs()))
		return log, false
	case errors.Is(err, repository.ErrHistoryNotFound):
		uc.logger.Info("No history found, starting a new one", "location", uc.repository.Location())
		return entity.NewHistoryLog(), false
	default:
		uc.logger.Error("Failed to load history, continuing without it", err, "location", uc.repository.Location())
		return entity.NewHistoryLog(), true
	}
}

// fetchAll получает значения всех метрик с ограничением числа одновременных запросов.
// Ошибка источника дает недоступное значение; ошибкой запуска считается только отмена контекста.
func (uc *RunReportUseCase) fetchAll(ctx context.Context, cmd RunReportCommand) ([]port.FetchedValue, error) {
	workers := cmd.Workers
	if workers <= 0 {
		workers = uc.config.Workers
	}

	values := make([]port.FetchedValue, len(cmd.Plans))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, plan := range cmd.Plans {
		g.Go(func() error {
			query := port.ValueQuery{
				Source:  plan.Definition.Source(),
				Subject: plan.Subject,
				Kind:    plan.Definition.Kind(),
			}
			fetched, err := uc.source.FetchValue(gctx, query)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				uc.logger.Warn("Value unavailable",
					"metric", plan.Definition.IDFor(plan.Subject),
					"source", query.Source,
					"error", err.Error())
				values[i] = port.FetchedValue{Value: valueobject.Unavailable()}
				return nil
			}
			values[i] = fetched
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to fetch metric values: %w", err)
	}
	return values, nil
}

func (uc *RunReportUseCase) buildSummary(project string, now time.Time, results []*entity.MeasurementResult) *dto.RunSummaryDTO {
	counts := uc.calculator.CountByStatus(results)
	countsDTO := make(map[string]int, len(counts))
	for status, n := range counts {
		countsDTO[status.String()] = n
	}

	return &dto.RunSummaryDTO{
		RunID:        uc.newRunID(),
		Project:      project,
		Date:         now,
		Counts:       countsDTO,
		Measurements: dto.ToMeasurementDTOs(uc.calculator.SortByStatusAge(results)),
		MetaMetrics:  dto.ToMetaMetricDTOs(uc.calculator.Calculate(counts, now)),
	}
}

// publishSideEffects выполняет необязательные действия после сохранения; ошибки только логируются
func (uc *RunReportUseCase) publishSideEffects(ctx context.Context, summary *dto.RunSummaryDTO) {
	invalidateHistoryCache(ctx, uc.cache, uc.logger)

	if uc.events != nil {
		if err := uc.events.PublishEvent(ctx, port.SubjectRunCompleted, dto.NewRunCompletedEvent(summary)); err != nil {
			uc.logger.Warn("Failed to publish run event", "error", err.Error())
		}
		for _, m := range summary.ChangedMeasurements() {
			if err := uc.events.PublishEvent(ctx, port.SubjectStatusChange, dto.NewStatusChangedEvent(summary.RunID, m)); err != nil {
				uc.logger.Warn("Failed to publish status change", "metric", m.MetricID, "error", err.Error())
			}
		}
	}

	if uc.statusIndex != nil {
		if err := uc.statusIndex.PutBatch(ctx, toStatusRecords(summary)); err != nil {
			uc.logger.Warn("Failed to update status index", "error", err.Error())
		}
	}

	for _, publisher := range uc.metricsPublishers {
		if err := publisher.PublishRun(ctx, summary); err != nil {
			uc.logger.Warn("Failed to publish run metrics", "error", err.Error())
			continue
		}
		if err := publisher.Flush(ctx); err != nil {
			uc.logger.Warn("Failed to flush run metrics", "error", err.Error())
		}
	}
}

func toStatusRecords(summary *dto.RunSummaryDTO) []port.StatusRecord {
	records := make([]port.StatusRecord, 0, len(summary.Measurements))
	for _, m := range summary.Measurements {
		records = append(records, port.StatusRecord{
			MetricID:    m.MetricID,
			Subject:     m.Subject,
			Kind:        m.Kind,
			Status:      m.Status,
			StatusSince: m.StatusSince,
			Value:       m.Value,
			Date:        m.Date,
			RunID:       summary.RunID,
		})
	}
	return records
}
