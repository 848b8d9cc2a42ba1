package system

import (
	"context"
	"errors"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
)

// newCPUProbe измеряет загрузку CPU (%) за интервал
func newCPUProbe(interval time.Duration) probe {
	return func(ctx context.Context, _ string) (float64, error) {
		percentages, err := cpu.PercentWithContext(ctx, interval, false)
		if err != nil {
			return 0, err
		}
		if len(percentages) == 0 {
			return 0, errors.New("no cpu statistics")
		}
		return percentages[0], nil
	}
}
