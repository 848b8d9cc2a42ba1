package system

import (
	"context"
	"errors"
	"strings"

	"github.com/shirou/gopsutil/v3/net"
)

// networkErrors возвращает суммарное число ошибок приема и передачи.
// subject задает имя интерфейса; пустой subject означает все интерфейсы.
func networkErrors(ctx context.Context, subject string) (float64, error) {
	iface := strings.TrimSpace(subject)

	stats, err := net.IOCountersWithContext(ctx, iface != "")
	if err != nil {
		return 0, err
	}

	for _, s := range stats {
		if iface == "" || s.Name == iface {
			return float64(s.Errin + s.Errout), nil
		}
	}
	return 0, errors.New("network interface not found: " + iface)
}
