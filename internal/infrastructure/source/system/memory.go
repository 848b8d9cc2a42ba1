package system

import (
	"context"

	"github.com/shirou/gopsutil/v3/mem"
)

// memoryUsage возвращает процент использования памяти
func memoryUsage(ctx context.Context, _ string) (float64, error) {
	vmStat, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return vmStat.UsedPercent, nil
}
