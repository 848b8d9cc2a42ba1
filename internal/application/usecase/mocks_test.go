package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"path"
	"sync"

	"github.com/dreschagin/quality-history/internal/application/dto"
	"github.com/dreschagin/quality-history/internal/application/port"
	"github.com/dreschagin/quality-history/internal/domain/entity"
	"github.com/dreschagin/quality-history/internal/domain/repository"
	"github.com/dreschagin/quality-history/internal/domain/valueobject"
)

type mockHistoryRepository struct {
	location string
	log      *entity.HistoryLog
	loadErr  error
	saveErr  error
	loads    int
	saves    int
}

func (m *mockHistoryRepository) Load(context.Context) (*entity.HistoryLog, error) {
	m.loads++
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	if m.log == nil {
		return nil, repository.ErrHistoryNotFound
	}
	return m.log, nil
}

func (m *mockHistoryRepository) Save(_ context.Context, log *entity.HistoryLog) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.log = log
	return nil
}

func (m *mockHistoryRepository) Location() string {
	if m.location == "" {
		return "memory://history"
	}
	return m.location
}

type mockValueSource struct {
	mu     sync.Mutex
	values map[string]port.FetchedValue
	errs   map[string]error
	calls  []port.ValueQuery
}

func (m *mockValueSource) FetchValue(ctx context.Context, query port.ValueQuery) (port.FetchedValue, error) {
	m.mu.Lock()
	m.calls = append(m.calls, query)
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return port.FetchedValue{}, err
	}
	key := query.Kind + query.Subject
	if err, ok := m.errs[key]; ok {
		return port.FetchedValue{}, err
	}
	if v, ok := m.values[key]; ok {
		return v, nil
	}
	return port.FetchedValue{}, port.ErrDataUnavailable
}

func fixed(x float64) port.FetchedValue {
	return port.FetchedValue{Value: valueobject.NewMeasuredValue(x)}
}

type mockCache struct {
	data     map[string][]byte
	gets     int
	sets     int
	patterns []string
	getErr   error
}

func newMockCache() *mockCache {
	return &mockCache{data: make(map[string][]byte)}
}

func (m *mockCache) Get(_ context.Context, key string, dest interface{}) (bool, error) {
	m.gets++
	if m.getErr != nil {
		return false, m.getErr
	}
	raw, ok := m.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (m *mockCache) Set(_ context.Context, key string, value interface{}) error {
	m.sets++
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.data[key] = raw
	return nil
}

func (m *mockCache) Delete(_ context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func (m *mockCache) DeletePattern(_ context.Context, pattern string) error {
	m.patterns = append(m.patterns, pattern)
	for key := range m.data {
		if ok, _ := path.Match(pattern, key); ok {
			delete(m.data, key)
		}
	}
	return nil
}

func (m *mockCache) Close() error { return nil }

type publishedEvent struct {
	subject string
	event   interface{}
}

type mockEventPublisher struct {
	events []publishedEvent
	err    error
}

func (m *mockEventPublisher) PublishEvent(_ context.Context, subject string, event interface{}) error {
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, publishedEvent{subject: subject, event: event})
	return nil
}

func (m *mockEventPublisher) Close() error { return nil }

func (m *mockEventPublisher) count(subject string) int {
	n := 0
	for _, e := range m.events {
		if e.subject == subject {
			n++
		}
	}
	return n
}

type mockStatusIndex struct {
	records []port.StatusRecord
	err     error
}

func (m *mockStatusIndex) PutBatch(_ context.Context, records []port.StatusRecord) error {
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, records...)
	return nil
}

func (m *mockStatusIndex) ListByStatus(_ context.Context, status string, limit int) ([]port.StatusRecord, error) {
	var out []port.StatusRecord
	for _, r := range m.records {
		if r.Status == status && len(out) < limit {
			out = append(out, r)
		}
	}
	return out, nil
}

type mockRunMetricsPublisher struct {
	runs    []*dto.RunSummaryDTO
	flushes int
	err     error
}

func (m *mockRunMetricsPublisher) PublishRun(_ context.Context, summary *dto.RunSummaryDTO) error {
	if m.err != nil {
		return m.err
	}
	m.runs = append(m.runs, summary)
	return nil
}

func (m *mockRunMetricsPublisher) Flush(context.Context) error {
	m.flushes++
	return nil
}

type mockReportWriter struct {
	written []*dto.RunSummaryDTO
	err     error
}

func (m *mockReportWriter) WriteReport(_ context.Context, summary *dto.RunSummaryDTO) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.written = append(m.written, summary)
	return "/tmp/report/report.json", nil
}

type mockLegacyReader struct {
	records []port.LegacyRecord
	err     error
}

func (m *mockLegacyReader) ReadRecords(context.Context) ([]port.LegacyRecord, error) {
	return m.records, m.err
}

var errBackendDown = errors.New("backend down")
