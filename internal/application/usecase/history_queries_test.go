package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dreschagin/quality-history/internal/domain/entity"
	"github.com/dreschagin/quality-history/internal/domain/valueobject"
	"github.com/dreschagin/quality-history/pkg/logger"
)

func queryHistory(t *testing.T) *entity.HistoryLog {
	t.Helper()
	log := entity.NewHistoryLog()
	steps := []struct {
		day    int
		value  valueobject.MeasuredValue
		status valueobject.Status
	}{
		{1, valueobject.NewMeasuredValue(10), valueobject.StatusGreen},
		{2, valueobject.NewMeasuredValue(10), valueobject.StatusGreen},
		{3, valueobject.Unavailable(), valueobject.StatusMissing},
		{4, valueobject.NewMeasuredValue(30), valueobject.StatusRed},
	}
	for _, s := range steps {
		if err := log.Append(historyDay(s.day), "OpenBugsFoo", s.value, s.status); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}
	return log
}

func TestGetMetricHistoryUseCase_Execute(t *testing.T) {
	repo := &mockHistoryRepository{log: queryHistory(t)}
	uc := NewGetMetricHistoryUseCase(repo, nil, logger.New("error"))

	history, err := uc.Execute(context.Background(), GetMetricHistoryQuery{MetricID: "OpenBugsFoo", Recent: 3, WithSegments: true})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if history.Status != "red" || history.Value == nil || *history.Value != 30 {
		t.Errorf("unexpected current state %+v", history)
	}
	if history.StatusSince == nil || !history.StatusSince.Equal(historyDay(4)) {
		t.Errorf("StatusSince = %v, want %v", history.StatusSince, historyDay(4))
	}
	if len(history.Recent) != 3 {
		t.Fatalf("expected 3 recent values, got %d", len(history.Recent))
	}
	if *history.Recent[0] != 10 || history.Recent[1] != nil || *history.Recent[2] != 30 {
		t.Errorf("unexpected recent values %v", history.Recent)
	}
	if history.SegmentCount != 3 || len(history.Segments) != 3 {
		t.Errorf("expected 3 segments, got %d/%d", history.SegmentCount, len(history.Segments))
	}
}

func TestGetMetricHistoryUseCase_NotFound(t *testing.T) {
	tests := []struct {
		name string
		repo *mockHistoryRepository
	}{
		{"unknown metric", &mockHistoryRepository{log: queryHistory(t)}},
		{"no history", &mockHistoryRepository{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc := NewGetMetricHistoryUseCase(tt.repo, nil, logger.New("error"))
			_, err := uc.Execute(context.Background(), GetMetricHistoryQuery{MetricID: "CoverageBar"})
			if !errors.Is(err, ErrMetricNotFound) {
				t.Errorf("expected ErrMetricNotFound, got %v", err)
			}
		})
	}
}

func TestGetMetricHistoryUseCase_Cache(t *testing.T) {
	repo := &mockHistoryRepository{log: queryHistory(t)}
	cache := newMockCache()
	uc := NewGetMetricHistoryUseCase(repo, cache, logger.New("error"))
	query := GetMetricHistoryQuery{MetricID: "OpenBugsFoo", Recent: 2}

	first, err := uc.Execute(context.Background(), query)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	second, err := uc.Execute(context.Background(), query)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if repo.loads != 1 {
		t.Errorf("second call must be served from cache, got %d loads", repo.loads)
	}
	if cache.sets != 1 {
		t.Errorf("expected one cache write, got %d", cache.sets)
	}
	if first.Status != second.Status || len(first.Recent) != len(second.Recent) {
		t.Errorf("cached result differs: %+v vs %+v", first, second)
	}

	if err := cache.DeletePattern(context.Background(), HistoryCachePattern); err != nil {
		t.Fatalf("DeletePattern() error = %v", err)
	}
	if _, err := uc.Execute(context.Background(), query); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if repo.loads != 2 {
		t.Errorf("invalidated cache must reload history, got %d loads", repo.loads)
	}
}

func TestGetMetricHistoryUseCase_CacheErrorFallsBack(t *testing.T) {
	repo := &mockHistoryRepository{log: queryHistory(t)}
	cache := newMockCache()
	cache.getErr = errBackendDown
	uc := NewGetMetricHistoryUseCase(repo, cache, logger.New("error"))

	if _, err := uc.Execute(context.Background(), GetMetricHistoryQuery{MetricID: "OpenBugsFoo"}); err != nil {
		t.Fatalf("cache errors must not fail queries, got %v", err)
	}
}

func TestGetStatusTrendUseCase_Execute(t *testing.T) {
	repo := &mockHistoryRepository{log: queryHistory(t)}
	cache := newMockCache()
	uc := NewGetStatusTrendUseCase(repo, cache, logger.New("error"))

	timeRange, err := valueobject.NewTimeRange(historyDay(2), historyDay(3))
	if err != nil {
		t.Fatalf("NewTimeRange() error = %v", err)
	}

	trend, err := uc.Execute(context.Background(), timeRange)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(trend.Points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(trend.Points))
	}
	if trend.Points[1].Counts["missing"] != 1 || trend.Points[1].Total != 1 {
		t.Errorf("unexpected point %+v", trend.Points[1])
	}

	if _, err := uc.Execute(context.Background(), timeRange); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if repo.loads != 1 {
		t.Errorf("second trend query must hit cache, got %d loads", repo.loads)
	}

	all, err := uc.Execute(context.Background(), valueobject.TimeRange{})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(all.Points) != 4 || all.From != nil || all.To != nil {
		t.Errorf("open range must return every snapshot, got %+v", all)
	}
}

func TestGetStatusTrendUseCase_NoHistory(t *testing.T) {
	uc := NewGetStatusTrendUseCase(&mockHistoryRepository{}, nil, logger.New("error"))

	trend, err := uc.Execute(context.Background(), valueobject.TimeRange{})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(trend.Points) != 0 {
		t.Errorf("expected empty trend, got %d points", len(trend.Points))
	}
}

func TestCacheKeys(t *testing.T) {
	if got := MetricHistoryCacheKey("OpenBugsFoo", 5, false); got != "history:metric:OpenBugsFoo:5:false" {
		t.Errorf("MetricHistoryCacheKey() = %q", got)
	}

	from := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	tr, _ := valueobject.NewTimeRange(from, time.Time{})
	if got := StatusTrendCacheKey(tr); got != "history:trend:20200102T030405Z:*" {
		t.Errorf("StatusTrendCacheKey() = %q", got)
	}
}
