package system

import (
	"context"
	"fmt"
	"time"

	"github.com/dreschagin/quality-history/internal/application/port"
	"github.com/dreschagin/quality-history/internal/domain/valueobject"
)

// Name задает имя источника в определениях метрик
const Name = "system"

// Виды метрик, которые умеет измерять источник
const (
	KindCPUUsage      = "CPUUsage"
	KindMemoryUsage   = "MemoryUsage"
	KindDiskUsage     = "DiskUsage"
	KindLoadAverage   = "LoadAverage"
	KindNetworkErrors = "NetworkErrors"
)

// probe измеряет одно значение; subject уточняет объект измерения (например, точку монтирования)
type probe func(ctx context.Context, subject string) (float64, error)

// Source измеряет состояние хоста через gopsutil.
// Реализует интерфейс port.ValueSource.
type Source struct {
	probes map[string]probe
	now    func() time.Time
}

// NewSource создает источник системных метрик
func NewSource() *Source {
	return &Source{
		probes: map[string]probe{
			KindCPUUsage:      newCPUProbe(time.Second),
			KindMemoryUsage:   memoryUsage,
			KindDiskUsage:     diskUsage,
			KindLoadAverage:   loadAverage,
			KindNetworkErrors: networkErrors,
		},
		now: time.Now,
	}
}

// FetchValue измеряет значение вида query.Kind
func (s *Source) FetchValue(ctx context.Context, query port.ValueQuery) (port.FetchedValue, error) {
	measure, ok := s.probes[query.Kind]
	if !ok {
		return port.FetchedValue{}, fmt.Errorf("system source cannot measure %q: %w", query.Kind, port.ErrDataUnavailable)
	}

	value, err := measure(ctx, query.Subject)
	if err != nil {
		return port.FetchedValue{}, fmt.Errorf("failed to measure %s: %w", query.Kind, err)
	}

	return port.FetchedValue{
		Value:      valueobject.NewMeasuredValue(value),
		MeasuredAt: s.now(),
	}, nil
}
