package http

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"
	promclient "github.com/prometheus/client_golang/prometheus"

	"github.com/dreschagin/quality-history/internal/application/port"
	"github.com/dreschagin/quality-history/internal/application/usecase"
	"github.com/dreschagin/quality-history/internal/domain/entity"
	"github.com/dreschagin/quality-history/internal/domain/repository"
	"github.com/dreschagin/quality-history/internal/domain/valueobject"
	wsInfra "github.com/dreschagin/quality-history/internal/infrastructure/notification/websocket"
	"github.com/dreschagin/quality-history/internal/infrastructure/observability/prometheus"
	"github.com/dreschagin/quality-history/internal/interfaces/http/handler"
	"github.com/dreschagin/quality-history/pkg/config"
	"github.com/dreschagin/quality-history/pkg/logger"
)

const testToken = "test-token"

type memoryHistoryRepository struct {
	log *entity.HistoryLog
}

func (r *memoryHistoryRepository) Load(context.Context) (*entity.HistoryLog, error) {
	if r.log == nil {
		return nil, repository.ErrHistoryNotFound
	}
	return r.log, nil
}

func (r *memoryHistoryRepository) Save(_ context.Context, log *entity.HistoryLog) error {
	r.log = log
	return nil
}

func (r *memoryHistoryRepository) Location() string { return "memory://history" }

type memoryStatusIndex struct {
	records []port.StatusRecord
}

func (m *memoryStatusIndex) PutBatch(_ context.Context, records []port.StatusRecord) error {
	m.records = append(m.records, records...)
	return nil
}

func (m *memoryStatusIndex) ListByStatus(_ context.Context, status string, limit int) ([]port.StatusRecord, error) {
	var out []port.StatusRecord
	for _, r := range m.records {
		if r.Status == status && len(out) < limit {
			out = append(out, r)
		}
	}
	return out, nil
}

func day(d int) time.Time {
	return time.Date(2013, 2, d, 17, 16, 46, 0, time.UTC)
}

func testHistory(t *testing.T) *entity.HistoryLog {
	t.Helper()
	log := entity.NewHistoryLog()
	steps := []struct {
		day    int
		value  float64
		status valueobject.Status
	}{
		{1, 38, valueobject.StatusGreen},
		{2, 38, valueobject.StatusGreen},
		{3, 60, valueobject.StatusRed},
	}
	for _, s := range steps {
		if err := log.Append(day(s.day), "OpenBugsFoo", valueobject.NewMeasuredValue(s.value), s.status); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}
	return log
}

type testServer struct {
	handler http.Handler
	router  *Router
}

func newTestServer(t *testing.T, security config.SecurityConfig, server config.ServerConfig) *testServer {
	t.Helper()
	log := logger.New("error")
	repo := &memoryHistoryRepository{log: testHistory(t)}
	index := &memoryStatusIndex{records: []port.StatusRecord{
		{MetricID: "OpenBugsFoo", Status: "red", StatusSince: day(3)},
	}}

	router := NewRouter(
		handler.NewHealthHandler(repo.Location(), log),
		handler.NewHistoryAPIHandler(
			usecase.NewGetMetricHistoryUseCase(repo, nil, log),
			usecase.NewGetStatusTrendUseCase(repo, nil, log),
			log,
		),
		handler.NewStatusAPIHandler(index, log),
		prometheus.New(promclient.NewRegistry()),
		server,
		security,
		log,
	)
	t.Cleanup(router.Close)

	return &testServer{handler: router.Setup(), router: router}
}

func (s *testServer) do(method, target string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func TestRouter_Endpoints(t *testing.T) {
	srv := newTestServer(t, config.SecurityConfig{}, config.ServerConfig{CompressionMinLen: 1 << 20})

	tests := []struct {
		name       string
		target     string
		wantStatus int
		contains   string
	}{
		{"health", "/health", http.StatusOK, `"status":"ok"`},
		{"metric history", "/api/v1/metrics/OpenBugsFoo/history?recent=2", http.StatusOK, `"status":"red"`},
		{"metric with segments", "/api/v1/metrics/OpenBugsFoo/history?segments=true", http.StatusOK, `"segment_count":2`},
		{"unknown metric", "/api/v1/metrics/CoverageBar/history", http.StatusNotFound, "metric not found"},
		{"bad recent", "/api/v1/metrics/OpenBugsFoo/history?recent=-1", http.StatusBadRequest, "recent"},
		{"bad segments", "/api/v1/metrics/OpenBugsFoo/history?segments=maybe", http.StatusBadRequest, "segments"},
		{"trend", "/api/v1/trend?from=2013-02-02&to=2013-02-03", http.StatusOK, `"points"`},
		{"trend history dates", "/api/v1/trend?from=2013-02-02%2000:00:00", http.StatusOK, `"points"`},
		{"trend bad date", "/api/v1/trend?from=yesterday", http.StatusBadRequest, "invalid from"},
		{"trend inverted", "/api/v1/trend?from=2013-03-01&to=2013-02-01", http.StatusBadRequest, "before"},
		{"status list", "/api/v1/statuses/RED", http.StatusOK, `"count":1`},
		{"unknown status", "/api/v1/statuses/blue", http.StatusBadRequest, "unknown status"},
		{"bad limit", "/api/v1/statuses/red?limit=0", http.StatusBadRequest, "limit"},
		{"prometheus", "/metrics", http.StatusOK, "quality_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := srv.do(http.MethodGet, tt.target, nil)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d, body %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), tt.contains) {
				t.Errorf("body %q does not contain %q", rec.Body.String(), tt.contains)
			}
		})
	}
}

func TestRouter_TrendPoints(t *testing.T) {
	srv := newTestServer(t, config.SecurityConfig{}, config.ServerConfig{CompressionMinLen: 1 << 20})

	rec := srv.do(http.MethodGet, "/api/v1/trend?from=2013-02-02&to=2013-02-03", nil)
	var body struct {
		Points []struct {
			Counts map[string]int `json:"counts"`
		} `json:"points"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(body.Points) != 1 || body.Points[0].Counts["green"] != 1 {
		t.Errorf("unexpected trend %+v", body.Points)
	}
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, config.SecurityConfig{}, config.ServerConfig{})

	rec := srv.do(http.MethodPost, "/api/v1/trend", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestRouter_Auth(t *testing.T) {
	srv := newTestServer(t, config.SecurityConfig{AuthEnabled: true, AuthToken: testToken}, config.ServerConfig{})

	tests := []struct {
		name       string
		target     string
		header     map[string]string
		wantStatus int
	}{
		{"health is public", "/health", nil, http.StatusOK},
		{"metrics are public", "/metrics", nil, http.StatusOK},
		{"api without token", "/api/v1/trend", nil, http.StatusUnauthorized},
		{"api with wrong token", "/api/v1/trend", map[string]string{"Authorization": "Bearer nope"}, http.StatusUnauthorized},
		{"api with token", "/api/v1/trend", map[string]string{"Authorization": "Bearer " + testToken}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := srv.do(http.MethodGet, tt.target, tt.header); rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestRouter_RateLimit(t *testing.T) {
	srv := newTestServer(t, config.SecurityConfig{}, config.ServerConfig{RateLimitPerSec: 0.001, RateLimitBurst: 2})

	header := map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}
	for i := 0; i < 2; i++ {
		if rec := srv.do(http.MethodGet, "/health", header); rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i+1, rec.Code)
		}
	}
	if rec := srv.do(http.MethodGet, "/health", header); rec.Code != http.StatusTooManyRequests {
		t.Errorf("third request status = %d, want 429", rec.Code)
	}
	if rec := srv.do(http.MethodGet, "/health", map[string]string{"X-Forwarded-For": "198.51.100.1"}); rec.Code != http.StatusOK {
		t.Errorf("other client must not be limited, got %d", rec.Code)
	}
}

func TestRouter_Compression(t *testing.T) {
	srv := newTestServer(t, config.SecurityConfig{}, config.ServerConfig{CompressionMinLen: 1})

	rec := srv.do(http.MethodGet, "/api/v1/metrics/OpenBugsFoo/history", map[string]string{"Accept-Encoding": "gzip"})
	if rec.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("expected gzip response, headers %v", rec.Header())
	}

	gz, err := gzip.NewReader(rec.Body)
	if err != nil {
		t.Fatalf("gzip.NewReader() error = %v", err)
	}
	body, err := io.ReadAll(gz)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if !strings.Contains(string(body), `"metric_id":"OpenBugsFoo"`) {
		t.Errorf("unexpected body %s", body)
	}
}

func TestRouter_EventsStream(t *testing.T) {
	log := logger.New("error")
	repo := &memoryHistoryRepository{log: testHistory(t)}
	hub := wsInfra.NewHub(log)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	router := NewRouter(
		handler.NewHealthHandler(repo.Location(), log),
		handler.NewHistoryAPIHandler(
			usecase.NewGetMetricHistoryUseCase(repo, nil, log),
			usecase.NewGetStatusTrendUseCase(repo, nil, log),
			log,
		),
		handler.NewStatusAPIHandler(nil, log),
		prometheus.New(promclient.NewRegistry()),
		config.ServerConfig{CompressionMinLen: 1, RateLimitPerSec: 100, RateLimitBurst: 10},
		config.SecurityConfig{AuthEnabled: true, AuthToken: testToken},
		log,
	).WithEvents(handler.NewEventsHandler(hub, nil, log))
	t.Cleanup(router.Close)

	server := httptest.NewServer(router.Setup())
	t.Cleanup(server.Close)
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/events"

	if _, resp, err := gorillaws.DefaultDialer.Dial(url, nil); err == nil || resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got err=%v resp=%v", err, resp)
	}

	conn, _, err := gorillaws.DefaultDialer.Dial(url, http.Header{"Authorization": []string{"Bearer " + testToken}})
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("client was not registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	hub.Broadcast(port.SubjectStatusChange, []byte(`{"metric_id":"OpenBugsFoo","status":"red"}`))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg wsInfra.Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	var event map[string]string
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	if msg.Type != port.SubjectStatusChange || event["metric_id"] != "OpenBugsFoo" {
		t.Errorf("unexpected message %+v", msg)
	}
}
