package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dreschagin/quality-history/pkg/logger"
)

func startHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	log := logger.New("error")
	hub := NewHub(log)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := NewClient(hub, conn, r.URL.Query()["type"], log)
		hub.Register(client)
		client.Serve()
	}))

	t.Cleanup(func() {
		server.Close()
		cancel()
	})
	return hub, server
}

func dial(t *testing.T, server *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d clients, got %d", n, hub.ClientCount())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHub_BroadcastsEvents(t *testing.T) {
	hub, server := startHub(t)
	conn := dial(t, server, "")
	waitForClients(t, hub, 1)

	hub.Broadcast("quality.run.completed", []byte(`{"run_id":"run-1"}`))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if msg.Type != "quality.run.completed" || string(msg.Data) != `{"run_id":"run-1"}` {
		t.Errorf("unexpected message %+v", msg)
	}
}

func TestHub_FiltersByType(t *testing.T) {
	hub, server := startHub(t)
	conn := dial(t, server, "?type=quality.status.changed")
	waitForClients(t, hub, 1)

	hub.Broadcast("quality.run.completed", []byte(`{}`))
	hub.Broadcast("quality.status.changed", []byte(`{"metric_id":"OpenBugsFoo"}`))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if msg.Type != "quality.status.changed" {
		t.Errorf("filtered client received %s", msg.Type)
	}
}

func TestHub_UnregistersClosedClients(t *testing.T) {
	hub, server := startHub(t)
	conn := dial(t, server, "")
	waitForClients(t, hub, 1)

	_ = conn.Close()
	waitForClients(t, hub, 0)
}

func TestClient_Wants(t *testing.T) {
	all := NewClient(nil, nil, nil, logger.New("error"))
	if !all.Wants("quality.run.completed") {
		t.Error("client without filter must want every event")
	}

	some := NewClient(nil, nil, []string{"quality.status.changed", ""}, logger.New("error"))
	if some.Wants("quality.run.completed") || !some.Wants("quality.status.changed") {
		t.Error("filtered client must want only listed events")
	}
}
