package http

import (
	"net/http"
	"sync"

	"github.com/dreschagin/quality-history/internal/infrastructure/observability/prometheus"
	"github.com/dreschagin/quality-history/internal/interfaces/http/handler"
	"github.com/dreschagin/quality-history/internal/interfaces/http/middleware"
	"github.com/dreschagin/quality-history/pkg/config"
	"github.com/dreschagin/quality-history/pkg/logger"
)

// Router настраивает маршруты приложения
type Router struct {
	mux            *http.ServeMux
	healthHandler  *handler.HealthHandler
	historyHandler *handler.HistoryAPIHandler
	statusHandler  *handler.StatusAPIHandler
	eventsHandler  *handler.EventsHandler
	metrics        *prometheus.Metrics
	server         config.ServerConfig
	security       config.SecurityConfig
	logger         *logger.Logger

	limiter   *middleware.IPRateLimiter
	stop      chan struct{}
	closeOnce sync.Once
}

// NewRouter создает новый router; metrics может быть nil
func NewRouter(
	healthHandler *handler.HealthHandler,
	historyHandler *handler.HistoryAPIHandler,
	statusHandler *handler.StatusAPIHandler,
	metrics *prometheus.Metrics,
	server config.ServerConfig,
	security config.SecurityConfig,
	logger *logger.Logger,
) *Router {
	return &Router{
		mux:            http.NewServeMux(),
		healthHandler:  healthHandler,
		historyHandler: historyHandler,
		statusHandler:  statusHandler,
		metrics:        metrics,
		server:         server,
		security:       security,
		logger:         logger,
		stop:           make(chan struct{}),
	}
}

// WithEvents подключает поток событий /ws/events
func (rt *Router) WithEvents(h *handler.EventsHandler) *Router {
	rt.eventsHandler = h
	return rt
}

// Setup настраивает все маршруты
func (rt *Router) Setup() http.Handler {
	// Health и /metrics доступны без авторизации для проб и scrape
	rt.mux.HandleFunc("GET /health", rt.healthHandler.Health)
	if rt.metrics != nil {
		rt.mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	authMiddleware := middleware.Auth(middleware.AuthConfig{
		Enabled:     rt.security.AuthEnabled,
		BearerToken: rt.security.AuthToken,
	}, rt.logger)
	compression := middleware.Compression(rt.server.CompressionMinLen)

	api := func(h http.HandlerFunc) http.Handler {
		return authMiddleware(compression(h))
	}

	rt.mux.Handle("GET /api/v1/metrics/{id}/history", api(rt.historyHandler.GetMetricHistory))
	rt.mux.Handle("GET /api/v1/trend", api(rt.historyHandler.GetStatusTrend))
	rt.mux.Handle("GET /api/v1/statuses/{status}", api(rt.statusHandler.ListByStatus))

	// Без сжатия: соединение перехватывается при upgrade
	if rt.eventsHandler != nil {
		rt.mux.Handle("GET /ws/events", authMiddleware(http.HandlerFunc(rt.eventsHandler.Stream)))
	}

	// Применяем middleware
	var handler http.Handler = rt.mux
	if rt.server.RateLimitPerSec > 0 {
		rt.limiter = middleware.NewIPRateLimiter(rt.server.RateLimitPerSec, rt.server.RateLimitBurst)
		go rt.limiter.Run(rt.stop)
		handler = middleware.RateLimit(rt.limiter)(handler)
	}
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(handler)
	}
	handler = middleware.Logger(rt.logger)(handler)
	handler = middleware.Recovery(rt.logger)(handler)

	return handler
}

// Close останавливает фоновую очистку ограничителя запросов
func (rt *Router) Close() {
	rt.closeOnce.Do(func() { close(rt.stop) })
}
