package handler

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	wsInfra "github.com/dreschagin/quality-history/internal/infrastructure/notification/websocket"
	"github.com/dreschagin/quality-history/pkg/logger"
)

// EventsHandler отдает события запусков по WebSocket
type EventsHandler struct {
	hub            *wsInfra.Hub
	logger         *logger.Logger
	allowedOrigins map[string]struct{}
	upgrader       websocket.Upgrader
}

// NewEventsHandler создает новый handler; "*" в allowedOrigins разрешает любой Origin
func NewEventsHandler(hub *wsInfra.Hub, allowedOrigins []string, logger *logger.Logger) *EventsHandler {
	origins := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins[trimmed] = struct{}{}
		}
	}

	h := &EventsHandler{
		hub:            hub,
		logger:         logger,
		allowedOrigins: origins,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// checkOrigin пропускает клиентов без Origin (не браузеры) и разрешенные Origin
func (h *EventsHandler) checkOrigin(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	if _, ok := h.allowedOrigins["*"]; ok {
		return true
	}

	parsed, err := url.Parse(origin)
	if err != nil || parsed.Host == "" {
		return false
	}
	_, ok := h.allowedOrigins[parsed.Scheme+"://"+parsed.Host]
	return ok
}

// Stream подписывает клиента на события.
// GET /ws/events?type=quality.status.changed (type можно повторять)
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", "error", err.Error(), "remote_addr", r.RemoteAddr)
		return
	}

	client := wsInfra.NewClient(h.hub, conn, r.URL.Query()["type"], h.logger)
	h.hub.Register(client)
	client.Serve()
}
