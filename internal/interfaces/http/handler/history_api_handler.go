package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dreschagin/quality-history/internal/application/usecase"
	"github.com/dreschagin/quality-history/internal/domain/valueobject"
	"github.com/dreschagin/quality-history/pkg/logger"
)

// HistoryAPIHandler обрабатывает запросы чтения истории
type HistoryAPIHandler struct {
	getMetricHistoryUC *usecase.GetMetricHistoryUseCase
	getStatusTrendUC   *usecase.GetStatusTrendUseCase
	logger             *logger.Logger
}

// NewHistoryAPIHandler создает новый handler
func NewHistoryAPIHandler(
	getMetricHistoryUC *usecase.GetMetricHistoryUseCase,
	getStatusTrendUC *usecase.GetStatusTrendUseCase,
	logger *logger.Logger,
) *HistoryAPIHandler {
	return &HistoryAPIHandler{
		getMetricHistoryUC: getMetricHistoryUC,
		getStatusTrendUC:   getStatusTrendUC,
		logger:             logger,
	}
}

// GetMetricHistory возвращает статус метрики, дату его начала и недавние значения.
// GET /api/v1/metrics/{id}/history?recent=N&segments=true
func (h *HistoryAPIHandler) GetMetricHistory(w http.ResponseWriter, r *http.Request) {
	metricID := r.PathValue("id")
	if strings.TrimSpace(metricID) == "" {
		writeError(w, http.StatusBadRequest, "metric id is required", h.logger)
		return
	}

	query := usecase.GetMetricHistoryQuery{MetricID: metricID}

	if raw := r.URL.Query().Get("recent"); raw != "" {
		recent, err := strconv.Atoi(raw)
		if err != nil || recent <= 0 {
			writeError(w, http.StatusBadRequest, "recent must be a positive integer", h.logger)
			return
		}
		query.Recent = recent
	}

	if raw := r.URL.Query().Get("segments"); raw != "" {
		withSegments, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "segments must be a boolean", h.logger)
			return
		}
		query.WithSegments = withSegments
	}

	history, err := h.getMetricHistoryUC.Execute(r.Context(), query)
	if err != nil {
		if errors.Is(err, usecase.ErrMetricNotFound) {
			writeError(w, http.StatusNotFound, "metric not found", h.logger)
			return
		}
		h.logger.Error("Failed to get metric history", err, "metric", metricID)
		writeError(w, http.StatusInternalServerError, "failed to load history", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, history, h.logger)
}

// GetStatusTrend возвращает количество статусов по снимкам.
// GET /api/v1/trend?from=2013-02-01&to=2013-03-01
func (h *HistoryAPIHandler) GetStatusTrend(w http.ResponseWriter, r *http.Request) {
	from, err := parseQueryDate(r.URL.Query().Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid from date", h.logger)
		return
	}
	to, err := parseQueryDate(r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid to date", h.logger)
		return
	}

	timeRange, err := valueobject.NewTimeRange(from, to)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), h.logger)
		return
	}

	trend, err := h.getStatusTrendUC.Execute(r.Context(), timeRange)
	if err != nil {
		h.logger.Error("Failed to get status trend", err)
		writeError(w, http.StatusInternalServerError, "failed to load history", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, trend, h.logger)
}

// parseQueryDate принимает дату, метку времени истории или RFC 3339. Пустая строка: без границы.
func parseQueryDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	return valueobject.ParseHistoryDate(raw)
}
