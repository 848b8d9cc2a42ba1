package port

import (
	"context"
	"strings"
	"time"
)

// LogLevel представляет уровень записи журнала
type LogLevel string

const (
	LogLevelDebug LogLevel = "DEBUG"
	LogLevelInfo  LogLevel = "INFO"
	LogLevelWarn  LogLevel = "WARN"
	LogLevelError LogLevel = "ERROR"
)

var logLevelRank = map[LogLevel]int{
	LogLevelDebug: 0,
	LogLevelInfo:  1,
	LogLevelWarn:  2,
	LogLevelError: 3,
}

// ParseLogLevel разбирает уровень без учета регистра; неизвестное значение дает INFO
func ParseLogLevel(s string) LogLevel {
	level := LogLevel(strings.ToUpper(strings.TrimSpace(s)))
	if level == "WARNING" {
		return LogLevelWarn
	}
	if _, ok := logLevelRank[level]; !ok {
		return LogLevelInfo
	}
	return level
}

// AtLeast сообщает, не ниже ли уровень min
func (l LogLevel) AtLeast(min LogLevel) bool {
	return logLevelRank[l] >= logLevelRank[min]
}

// LogEntry представляет запись журнала для внешней системы
type LogEntry struct {
	Timestamp time.Time
	Level     LogLevel
	Message   string
	Fields    map[string]interface{}
}

// LogPublisher дублирует записи logger во внешнюю систему.
// pkg/logger вызывает Publish на каждую запись, поэтому реализация должна буферизовать.
type LogPublisher interface {
	Publish(ctx context.Context, entry LogEntry) error
	PublishBatch(ctx context.Context, entries []LogEntry) error
	Flush(ctx context.Context) error
}
