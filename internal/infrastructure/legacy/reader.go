// Package legacy reads the line-per-report history format written by old
// versions of the reporting tool. Each non-empty line is a dict literal such as
//
//	{'date': '2013-02-28 17:16:46', 'OpenBugsNone': '38', 'OpenBugsFoo': ('3', 'green', '2013-02-27 15:45:32')}
//
// Lines are parsed with an explicit tokenizer; nothing is evaluated.
package legacy

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/dreschagin/quality-history/internal/application/port"
	"github.com/dreschagin/quality-history/internal/domain/valueobject"
)

const (
	dateKey = "date"
	// unavailableMarker is how old reports wrote a value that could not be measured.
	unavailableMarker = -1
	maxLineSize       = 16 * 1024 * 1024
)

// Reader implements port.LegacyHistoryReader over a file or stream.
type Reader struct {
	name string
	open func() (io.ReadCloser, error)
}

// NewFileReader reads the legacy history file at path.
func NewFileReader(path string) *Reader {
	return &Reader{
		name: path,
		open: func() (io.ReadCloser, error) { return os.Open(path) },
	}
}

// NewReader reads legacy history from r.
func NewReader(name string, r io.Reader) *Reader {
	return &Reader{
		name: name,
		open: func() (io.ReadCloser, error) { return io.NopCloser(r), nil },
	}
}

func (r *Reader) ReadRecords(ctx context.Context) ([]port.LegacyRecord, error) {
	f, err := r.open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", r.name, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	var records []port.LegacyRecord
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		record, err := ParseLine(line)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", r.name, lineNo, err)
		}
		record.Line = lineNo
		records = append(records, record)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", r.name, err)
	}
	return records, nil
}

// ParseLine converts one report line into a record. Entries keep the order of the line.
func ParseLine(line string) (port.LegacyRecord, error) {
	entries, err := parseDict(line)
	if err != nil {
		return port.LegacyRecord{}, err
	}

	var record port.LegacyRecord
	hasDate := false
	for _, e := range entries {
		if e.key == dateKey {
			raw, ok := e.value.(string)
			if !ok {
				return port.LegacyRecord{}, fmt.Errorf("date must be a string")
			}
			date, err := valueobject.ParseHistoryDate(raw)
			if err != nil {
				return port.LegacyRecord{}, err
			}
			record.Date = date
			hasDate = true
			continue
		}

		value, status := extractValueAndStatus(e.value)
		record.Entries = append(record.Entries, port.LegacyEntry{
			MetricID: e.key,
			Value:    value,
			Status:   status,
		})
	}

	if !hasDate {
		return port.LegacyRecord{}, fmt.Errorf("line has no %q key", dateKey)
	}
	return record, nil
}

// extractValueAndStatus follows the old conventions: a bare number or numeric
// string is the value, a tuple is (value, status, ...) with an integer value.
func extractValueAndStatus(v literal) (valueobject.MeasuredValue, valueobject.Status) {
	switch typed := v.(type) {
	case int64:
		return measured(float64(typed)), valueobject.StatusNone
	case float64:
		return measured(typed), valueobject.StatusNone
	case string:
		return parseNumericString(typed), valueobject.StatusNone
	case []literal:
		if len(typed) == 0 {
			return valueobject.Unavailable(), valueobject.StatusNone
		}
		value := integerValue(typed[0])
		status := valueobject.StatusNone
		if len(typed) > 1 {
			if raw, ok := typed[1].(string); ok {
				if parsed, err := valueobject.ParseStatus(raw); err == nil {
					status = parsed
				}
			}
		}
		return value, status
	}
	return valueobject.Unavailable(), valueobject.StatusNone
}

func parseNumericString(s string) valueobject.MeasuredValue {
	s = strings.TrimSpace(s)
	if strings.Contains(s, ".") {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return valueobject.Unavailable()
		}
		return measured(f)
	}
	i, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return valueobject.Unavailable()
	}
	return measured(float64(i))
}

func integerValue(v literal) valueobject.MeasuredValue {
	switch typed := v.(type) {
	case int64:
		return measured(float64(typed))
	case float64:
		return measured(math.Trunc(typed))
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(typed), 10, 64)
		if err != nil {
			return valueobject.Unavailable()
		}
		return measured(float64(i))
	}
	return valueobject.Unavailable()
}

func measured(v float64) valueobject.MeasuredValue {
	if v == unavailableMarker {
		return valueobject.Unavailable()
	}
	return valueobject.NewMeasuredValue(v)
}
