package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/signpost/internal/logger"
)

const writeWait = 2 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// TelemetryHandler streams per-frame reports to WebSocket clients as JSON.
type TelemetryHandler struct {
	hub *Hub
}

// NewTelemetryHandler creates a TelemetryHandler fed by hub.
func NewTelemetryHandler(hub *Hub) *TelemetryHandler {
	return &TelemetryHandler{hub: hub}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *TelemetryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Named("server").Warnw("WebSocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	c := h.hub.register(conn)
	defer h.hub.unregister(c)

	go writePump(c)

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// writePump sends queued reports until the client is unregistered.
func writePump(c *client) {
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}
