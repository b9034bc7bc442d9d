package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/onnwee/channel-insights/backend/internal/apierr"
	"github.com/onnwee/channel-insights/backend/internal/circuitbreaker"
	"github.com/onnwee/channel-insights/backend/internal/logger"
	"github.com/onnwee/channel-insights/backend/internal/metrics"
	"github.com/onnwee/channel-insights/backend/internal/ratelimit"
	"github.com/onnwee/channel-insights/backend/internal/toolkit"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = 30 * time.Second

	// Maximum message size allowed from peer
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Admin surface binds to an internal address
		return true
	},
}

// WebSocketMessage represents a message sent to clients
type WebSocketMessage struct {
	Type    string      `json:"type"` // "stats", "error"
	Payload interface{} `json:"payload"`
}

// StatsSnapshot is the payload pushed on the stats stream.
type StatsSnapshot struct {
	Timestamp  time.Time           `json:"timestamp"`
	Caches     toolkit.StatsReport `json:"caches"`
	RateLimits []ratelimit.Status  `json:"rate_limits"`
	Breakers   map[string]string   `json:"breakers"`
	Scheduler  SchedulerStatus     `json:"scheduler"`
}

// SnapshotFunc produces the current stats payload.
type SnapshotFunc func() interface{}

// ToolkitSnapshot returns a SnapshotFunc reading from tk.
func ToolkitSnapshot(tk *toolkit.Toolkit) SnapshotFunc {
	return func() interface{} {
		return StatsSnapshot{
			Timestamp:  time.Now().UTC(),
			Caches:     tk.CacheStats(),
			RateLimits: tk.Limiters.Snapshot(),
			Breakers:   breakerStates(tk.Breakers),
			Scheduler:  schedulerStatus(tk.Scheduler),
		}
	}
}

func breakerStates(r *circuitbreaker.Registry) map[string]string {
	if r == nil {
		return map[string]string{}
	}
	return r.States()
}

// Client represents a WebSocket client connection
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub maintains the set of active clients and pushes stats snapshots to
// them on a fixed interval.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	refresh    chan *Client
	done       chan struct{}

	snapshot SnapshotFunc
	interval time.Duration

	mu sync.RWMutex
}

// NewHub creates a new WebSocket hub
func NewHub(snapshot SnapshotFunc, interval time.Duration) *Hub {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		refresh:    make(chan *Client, 16),
		done:       make(chan struct{}),
		snapshot:   snapshot,
		interval:   interval,
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Run starts the hub's main loop. It returns when ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			metrics.WebSocketConnections.Inc()
			logger.Info("WebSocket client connected", "total_clients", total)
			h.sendTo(client, h.encode())

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				h.drop(client)
				logger.Info("WebSocket client disconnected", "total_clients", len(h.clients))
			}
			h.mu.Unlock()

		case client := <-h.refresh:
			h.sendTo(client, h.encode())

		case <-ticker.C:
			if h.ClientCount() == 0 {
				continue
			}
			h.broadcast(h.encode())
		}
	}
}

func (h *Hub) encode() []byte {
	data, err := json.Marshal(WebSocketMessage{Type: "stats", Payload: h.snapshot()})
	if err != nil {
		logger.Error("Failed to marshal stats snapshot", "error", err)
		data, _ = json.Marshal(WebSocketMessage{Type: "error", Payload: "snapshot unavailable"})
	}
	return data
}

func (h *Hub) broadcast(message []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	sent := 0
	for client := range h.clients {
		select {
		case client.send <- message:
			sent++
		default:
			// Client's send buffer is full, close the connection
			h.drop(client)
		}
	}
	metrics.WebSocketMessagesSent.Add(float64(sent))
}

func (h *Hub) sendTo(client *Client, message []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; !ok {
		return
	}
	select {
	case client.send <- message:
		metrics.WebSocketMessagesSent.Inc()
	default:
		h.drop(client)
	}
}

// drop must be called with mu held.
func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	close(client.send)
	metrics.WebSocketConnections.Dec()
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		h.drop(client)
	}
}

// readPump reads client messages; {"type":"refresh"} asks for an immediate
// snapshot.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("WebSocket unexpected close", "error", err)
			}
			break
		}

		var clientMsg struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(message, &clientMsg); err == nil && clientMsg.Type == "refresh" {
			select {
			case c.hub.refresh <- c:
			default:
			}
		}
	}
}

// writePump pumps messages from the hub to the WebSocket connection
func (c *Client) writePump() {
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
				// Hub closed the channel
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

// WebSocketHandler upgrades connections onto the stats stream.
type WebSocketHandler struct {
	hub *Hub
}

// NewWebSocketHandler creates a handler for hub. The caller runs hub.Run.
func NewWebSocketHandler(hub *Hub) *WebSocketHandler {
	return &WebSocketHandler{hub: hub}
}

// HandleWebSocket handles WebSocket upgrade and client connection
// GET /api/stream
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error when the handshake was bad
		logger.Error("Failed to upgrade to WebSocket", "error", err)
		if _, ok := err.(websocket.HandshakeError); !ok {
			apierr.WriteErrorWithContext(w, r, apierr.SystemInternal("Failed to establish WebSocket connection"))
		}
		return
	}

	client := &Client{
		hub:  h.hub,
		conn: conn,
		send: make(chan []byte, 16),
	}

	select {
	case h.hub.register <- client:
	case <-h.hub.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
