// Package live is a supplemental, read-only admin dashboard feed: a
// websocket hub that pushes node register/heartbeat-miss/unregister/sweep
// events so an operator doesn't have to poll GET /api/node/stats.
//
// Adapted from the teacher's internal/hub: same Run()-goroutine-plus-
// broadcast-channel shape, but with voice state, user indexing, and
// incoming-message handling stripped out — this hub is one-way
// (authority → dashboard) and never mutates protocol state.
package live

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Hub maintains the set of connected admin dashboards and fans out events.
type Hub struct {
	upgrader websocket.Upgrader

	clients    map[*client]struct{}
	broadcast  chan Envelope
	register   chan *client
	unregister chan *client
}

func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients:    make(map[*client]struct{}),
		broadcast:  make(chan Envelope, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
	}
}

// Run is the hub's event loop. Call once in a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.clients[c] = struct{}{}
			slog.Info("admin live stream connected", "total", len(h.clients))

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				slog.Info("admin live stream disconnected", "total", len(h.clients))
			}

		case evt := <-h.broadcast:
			for c := range h.clients {
				c.sendEvent(evt)
			}
		}
	}
}

// Publish queues evt for delivery to every connected dashboard. Safe to call
// from the protocol engine's writer lock — the channel send never blocks
// the caller past the buffer (256 deep).
func (h *Hub) Publish(evt Envelope) {
	select {
	case h.broadcast <- evt:
	default:
		slog.Warn("admin live stream broadcast buffer full, dropping event", "type", evt.Type)
	}
}

// ServeWS upgrades an HTTP connection and registers it as a dashboard client.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("admin live stream upgrade failed", "err", err)
		return
	}
	c := newClient(h, conn)
	h.register <- c
	go c.writePump()
	go c.readPump()
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024
)

// client is a single connected admin dashboard.
type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

func newClient(hub *Hub, conn *websocket.Conn) *client {
	return &client{hub: hub, conn: conn, send: make(chan []byte, 64)}
}

// readPump only exists to detect disconnects and honor pongs — this feed is
// one-way, so any inbound message is discarded.
func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *client) sendEvent(evt Envelope) {
	data, err := json.Marshal(evt)
	if err != nil {
		slog.Error("marshal live event", "err", err)
		return
	}
	select {
	case c.send <- data:
	default:
		close(c.send)
		c.hub.unregister <- c
	}
}
