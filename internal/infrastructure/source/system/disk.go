package system

import (
	"context"
	"strings"

	"github.com/shirou/gopsutil/v3/disk"
)

// diskUsage возвращает процент заполнения раздела; subject: точка монтирования, по умолчанию "/"
func diskUsage(ctx context.Context, subject string) (float64, error) {
	mount := strings.TrimSpace(subject)
	if mount == "" {
		mount = "/"
	}

	usage, err := disk.UsageWithContext(ctx, mount)
	if err != nil {
		return 0, err
	}
	return usage.UsedPercent, nil
}
