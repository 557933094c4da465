// Package websocket broadcasts dev reload and build error notifications to
// connected browsers.
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/conneroisu/folio/internal/logging"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Send pings to peer with this period.
	pingPeriod = 30 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 512

	sendBuffer = 16
)

// Message types understood by the reload client.
const (
	TypeConnected = "connected"
	TypeReload    = "reload"
	TypeError     = "error"
)

// UpdateMessage represents a message sent to the browser
type UpdateMessage struct {
	Type      string    `json:"type"`
	Message   string    `json:"message,omitempty"`
	Routes    []string  `json:"routes,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Client represents a WebSocket client connection
type Client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub tracks connected clients and fans messages out to them.
type Hub struct {
	logger         logging.Logger
	originPatterns []string

	mu       sync.RWMutex
	clients  map[*Client]struct{}
	shutdown bool
	last     *UpdateMessage
}

// NewHub returns a hub. Connections are accepted from the page's own origin
// and from hosts matching originPatterns.
func NewHub(logger logging.Logger, originPatterns ...string) *Hub {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Hub{
		logger:         logger.WithComponent("websocket"),
		originPatterns: originPatterns,
		clients:        make(map[*Client]struct{}),
	}
}

// ServeHTTP upgrades the request and keeps the connection until the peer
// goes away or the hub shuts down.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	shutdown := h.shutdown
	h.mu.RUnlock()
	if shutdown {
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:  h.originPatterns,
		CompressionMode: websocket.CompressionDisabled,
	})
	if err != nil {
		h.logger.Warn(r.Context(), err, "WebSocket upgrade failed", "remote", r.RemoteAddr)
		return
	}
	conn.SetReadLimit(maxMessageSize)

	hello := UpdateMessage{Type: TypeConnected, Timestamp: time.Now()}
	if last := h.lastError(); last != nil {
		hello = *last
	}
	if data, err := json.Marshal(hello); err == nil {
		writeCtx, cancel := context.WithTimeout(r.Context(), writeWait)
		err = conn.Write(writeCtx, websocket.MessageText, data)
		cancel()
		if err != nil {
			_ = conn.Close(websocket.StatusInternalError, "")
			return
		}
	}

	client := &Client{conn: conn, send: make(chan []byte, sendBuffer)}
	h.register(client)
	defer h.unregister(client)

	ctx := conn.CloseRead(context.Background())
	h.writePump(ctx, client)
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug(context.Background(), "Client connected", "clients", count)
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	count := len(h.clients)
	h.mu.Unlock()
	_ = c.conn.Close(websocket.StatusNormalClosure, "")
	h.logger.Debug(context.Background(), "Client disconnected", "clients", count)
}

// writePump pumps messages to the websocket connection until ctx ends.
func (h *Hub) writePump(ctx context.Context, c *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case message, ok := <-c.send:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Write(writeCtx, websocket.MessageText, message)
			cancel()
			if err != nil {
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

// Broadcast sends msg to every client. Clients whose buffer is full are
// dropped.
func (h *Hub) Broadcast(msg UpdateMessage) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error(context.Background(), err, "Failed to marshal message")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if msg.Type == TypeError {
		h.last = &msg
	} else {
		h.last = nil
	}
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			delete(h.clients, c)
			close(c.send)
		}
	}
}

// Reload tells clients to reload; routes lists what changed.
func (h *Hub) Reload(routes ...string) {
	h.Broadcast(UpdateMessage{Type: TypeReload, Routes: routes})
}

// Error shows err in the browser overlay. New clients receive it on connect
// until the next reload.
func (h *Hub) Error(err error) {
	h.Broadcast(UpdateMessage{Type: TypeError, Message: err.Error()})
}

func (h *Hub) lastError() *UpdateMessage {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.last
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Shutdown disconnects every client and refuses new ones.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.shutdown = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}
