package handler

import (
	"encoding/json"
	"net/http"

	"github.com/dreschagin/quality-history/pkg/logger"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any, log *logger.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error("Failed to encode response", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string, log *logger.Logger) {
	writeJSON(w, status, errorResponse{Error: message}, log)
}
