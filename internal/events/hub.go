package events

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"agent-pump/internal/domain"
	"agent-pump/internal/observability"
)

// HubConfig configures the fill stream hub.
type HubConfig struct {
	SendBuffer   int           // per-client queued messages before the client is dropped
	PingInterval time.Duration // keepalive ping period
	WriteTimeout time.Duration
}

// DefaultHubConfig returns sensible defaults.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		SendBuffer:   64,
		PingInterval: 30 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

type streamClient struct {
	id   string
	mint string // empty means all mints
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *streamClient) close() {
	c.once.Do(func() { close(c.send) })
}

// Hub streams fills to WebSocket clients. Clients may filter by mint with
// the "mint" query parameter. A client that falls behind is disconnected.
type Hub struct {
	config   HubConfig
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu      sync.RWMutex
	clients map[string]*streamClient
}

// NewHub creates a Hub.
func NewHub(config HubConfig, logger *slog.Logger) *Hub {
	if config.SendBuffer <= 0 {
		config.SendBuffer = DefaultHubConfig().SendBuffer
	}
	if config.PingInterval <= 0 {
		config.PingInterval = DefaultHubConfig().PingInterval
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = DefaultHubConfig().WriteTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		config: config,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger:  logger.With("component", "hub"),
		clients: make(map[string]*streamClient),
	}
}

// Name returns the sink name used in metrics.
func (h *Hub) Name() string { return "websocket" }

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish queues the fill for every matching client. It never blocks on a
// slow client.
func (h *Hub) Publish(_ context.Context, f *domain.Fill) error {
	msg, err := Encode(f)
	if err != nil {
		return err
	}

	var slow []*streamClient
	h.mu.RLock()
	for _, c := range h.clients {
		if c.mint != "" && c.mint != f.Mint {
			continue
		}
		select {
		case c.send <- msg:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn("dropping slow stream client", "client_id", c.id)
		h.remove(c)
	}
	return nil
}

// ServeHTTP upgrades the request and streams fills until the client leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &streamClient{
		id:   uuid.NewString(),
		mint: r.URL.Query().Get("mint"),
		conn: conn,
		send: make(chan []byte, h.config.SendBuffer),
	}
	h.add(c)
	h.logger.Debug("stream client connected", "client_id", c.id, "mint", c.mint)

	go h.writeLoop(c)
	h.readLoop(c)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[string]*streamClient)
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
	observability.SetStreamClients(0)
}

func (h *Hub) add(c *streamClient) {
	h.mu.Lock()
	h.clients[c.id] = c
	n := len(h.clients)
	h.mu.Unlock()
	observability.SetStreamClients(n)
}

func (h *Hub) remove(c *streamClient) {
	h.mu.Lock()
	if _, ok := h.clients[c.id]; ok {
		delete(h.clients, c.id)
		c.close()
	}
	n := len(h.clients)
	h.mu.Unlock()
	observability.SetStreamClients(n)
}

// readLoop discards client messages and returns when the connection drops.
func (h *Hub) readLoop(c *streamClient) {
	defer h.remove(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writeLoop is the only writer on the connection.
func (h *Hub) writeLoop(c *streamClient) {
	ticker := time.NewTicker(h.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
