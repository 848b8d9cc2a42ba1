package websocket

import (
	"time"

	"github.com/gorilla/websocket"

	"github.com/dreschagin/quality-history/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 64
)

// Client представляет подписчика на события запусков
type Client struct {
	conn   *websocket.Conn
	hub    *Hub
	send   chan Message
	types  map[string]bool // пусто: все события
	logger *logger.Logger
}

// NewClient создает клиента; types ограничивает рассылку перечисленными subject
func NewClient(hub *Hub, conn *websocket.Conn, types []string, logger *logger.Logger) *Client {
	filter := make(map[string]bool, len(types))
	for _, t := range types {
		if t != "" {
			filter[t] = true
		}
	}
	return &Client{
		conn:   conn,
		hub:    hub,
		send:   make(chan Message, sendBuffer),
		types:  filter,
		logger: logger,
	}
}

// Wants сообщает, подписан ли клиент на события данного типа
func (c *Client) Wants(eventType string) bool {
	return len(c.types) == 0 || c.types[eventType]
}

// Serve запускает pumps клиента и возвращает управление сразу
func (c *Client) Serve() {
	go c.writePump()
	go c.readPump()
}

// readPump только поддерживает соединение: входящие сообщения игнорируются
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("WebSocket read failed", "error", err.Error())
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				c.logger.Error("WebSocket write error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
