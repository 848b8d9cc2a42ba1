package prometheus

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/dreschagin/quality-history/internal/application/dto"
	"github.com/dreschagin/quality-history/internal/domain/valueobject"
)

// Metrics bundles prometheus collectors for quality runs and the history API.
// It implements port.RunMetricsPublisher.
type Metrics struct {
	registry *prometheus.Registry
	pusher   *push.Pusher

	RunsTotal          *prometheus.CounterVec
	MetricsByStatus    *prometheus.GaugeVec
	MetaMetricPercent  *prometheus.GaugeVec
	StatusChangesTotal *prometheus.CounterVec
	LastRunTimestamp   *prometheus.GaugeVec
	RequestsTotal      *prometheus.CounterVec
	RequestDurationSec *prometheus.HistogramVec
}

func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: registry,
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quality_runs_total",
			Help: "Total number of completed quality runs.",
		}, []string{"project", "result"}),
		MetricsByStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "quality_metrics_by_status",
			Help: "Number of metrics in each status after the last run.",
		}, []string{"project", "status"}),
		MetaMetricPercent: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "quality_meta_metric_percent",
			Help: "Share of metrics in a status group after the last run.",
		}, []string{"project", "name"}),
		StatusChangesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quality_status_changes_total",
			Help: "Total number of metrics that entered a new status.",
		}, []string{"project", "status"}),
		LastRunTimestamp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "quality_last_run_timestamp_seconds",
			Help: "Unix time of the last completed run.",
		}, []string{"project"}),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quality_http_requests_total",
			Help: "Total number of history API requests.",
		}, []string{"route", "method", "status"}),
		RequestDurationSec: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "quality_http_request_duration_seconds",
			Help:    "History API request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
	}

	registry.MustRegister(
		m.RunsTotal,
		m.MetricsByStatus,
		m.MetaMetricPercent,
		m.StatusChangesTotal,
		m.LastRunTimestamp,
		m.RequestsTotal,
		m.RequestDurationSec,
	)

	return m
}

// WithPushgateway makes Flush push the registry to a Pushgateway under job.
func (m *Metrics) WithPushgateway(url, job string) *Metrics {
	if url == "" {
		return m
	}
	if job == "" {
		job = "quality_report"
	}
	m.pusher = push.New(url, job).Gatherer(m.registry)
	return m
}

// PublishRun records the outcome of one run.
func (m *Metrics) PublishRun(_ context.Context, summary *dto.RunSummaryDTO) error {
	if summary == nil {
		return fmt.Errorf("run summary cannot be nil")
	}

	project := summary.Project
	result := "ok"
	if summary.HasFailures() {
		result = "failures"
	}
	m.RunsTotal.WithLabelValues(project, result).Inc()

	for _, status := range valueobject.AllStatuses() {
		m.MetricsByStatus.WithLabelValues(project, status.String()).Set(float64(summary.Count(status)))
	}

	for _, meta := range summary.MetaMetrics {
		if meta.Percentage == nil {
			m.MetaMetricPercent.DeleteLabelValues(project, meta.Name)
			continue
		}
		m.MetaMetricPercent.WithLabelValues(project, meta.Name).Set(*meta.Percentage)
	}

	for _, changed := range summary.ChangedMeasurements() {
		m.StatusChangesTotal.WithLabelValues(project, changed.Status).Inc()
	}

	m.LastRunTimestamp.WithLabelValues(project).Set(float64(summary.Date.Unix()))
	return nil
}

// Flush pushes collected metrics when a Pushgateway is configured.
func (m *Metrics) Flush(ctx context.Context) error {
	if m.pusher == nil {
		return nil
	}
	if err := m.pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics: %w", err)
	}
	return nil
}

// Handler exposes the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startedAt := time.Now()
		wrapped := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		status := strconv.Itoa(wrapped.statusCode)
		route := normalizeRoute(r.URL.Path)
		m.RequestsTotal.WithLabelValues(route, r.Method, status).Inc()
		m.RequestDurationSec.WithLabelValues(route, r.Method, status).Observe(time.Since(startedAt).Seconds())
	})
}

func normalizeRoute(path string) string {
	switch {
	case path == "/health" || path == "/metrics":
		return path
	case strings.HasPrefix(path, "/api/v1/metrics/"):
		return "/api/v1/metrics/*"
	case strings.HasPrefix(path, "/api/v1/"):
		return path
	default:
		return "other"
	}
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rw *statusRecorder) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

// Flush keeps streaming behavior for handlers that require it.
func (rw *statusRecorder) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Hijack lets WebSocket upgrades pass through the middleware.
func (rw *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return http.NewResponseController(rw.ResponseWriter).Hijack()
}

func (rw *statusRecorder) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
