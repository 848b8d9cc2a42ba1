package system

import (
	"context"

	"github.com/shirou/gopsutil/v3/load"
)

// loadAverage возвращает среднюю загрузку за минуту
func loadAverage(ctx context.Context, _ string) (float64, error) {
	avg, err := load.AvgWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return avg.Load1, nil
}
