package handler

import (
	"net/http"
	"strconv"

	"github.com/dreschagin/quality-history/internal/application/port"
	"github.com/dreschagin/quality-history/internal/domain/valueobject"
	"github.com/dreschagin/quality-history/pkg/logger"
)

const defaultStatusListLimit = 50

// StatusAPIHandler отдает метрики в заданном статусе из индекса текущих статусов
type StatusAPIHandler struct {
	index  port.StatusIndex
	logger *logger.Logger
}

// NewStatusAPIHandler создает handler; index может быть nil, тогда маршрут отвечает 503
func NewStatusAPIHandler(index port.StatusIndex, logger *logger.Logger) *StatusAPIHandler {
	return &StatusAPIHandler{index: index, logger: logger}
}

type statusListResponse struct {
	Status  string              `json:"status"`
	Count   int                 `json:"count"`
	Metrics []port.StatusRecord `json:"metrics"`
}

// ListByStatus возвращает метрики в статусе, самые давние первыми.
// GET /api/v1/statuses/{status}?limit=N
func (h *StatusAPIHandler) ListByStatus(w http.ResponseWriter, r *http.Request) {
	if h.index == nil {
		writeError(w, http.StatusServiceUnavailable, "status index is not configured", h.logger)
		return
	}

	status, err := valueobject.ParseStatus(r.PathValue("status"))
	if err != nil || !status.IsSet() {
		writeError(w, http.StatusBadRequest, "unknown status", h.logger)
		return
	}

	limit := defaultStatusListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer", h.logger)
			return
		}
	}

	records, err := h.index.ListByStatus(r.Context(), status.String(), limit)
	if err != nil {
		h.logger.Error("Failed to list metrics by status", err, "status", status.String())
		writeError(w, http.StatusInternalServerError, "failed to query status index", h.logger)
		return
	}
	if records == nil {
		records = []port.StatusRecord{}
	}

	writeJSON(w, http.StatusOK, statusListResponse{
		Status:  status.String(),
		Count:   len(records),
		Metrics: records,
	}, h.logger)
}
