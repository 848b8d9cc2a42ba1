package handler

import (
	"net/http"

	"github.com/dreschagin/quality-history/pkg/logger"
)

// HealthHandler отвечает на проверки живости
type HealthHandler struct {
	location string
	logger   *logger.Logger
}

// NewHealthHandler создает handler; location: описание хранилища истории
func NewHealthHandler(location string, logger *logger.Logger) *HealthHandler {
	return &HealthHandler{location: location, logger: logger}
}

// Health GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"history": h.location,
	}, h.logger)
}
