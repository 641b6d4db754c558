// Package hub is the connection gateway: it owns the WebSocket clients,
// assigns each an opaque handle, and delivers outbound messages. Stream
// membership deliberately does not live here; fan-out callers resolve
// recipients from the registry on every send.
package hub

import (
	"encoding/json"
	"sync"

	"github.com/Y-Juice/livestream-prototype/internal/config"
	"github.com/Y-Juice/livestream-prototype/pkg/log"
)

// Hub manages all WebSocket connections.
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
	config     config.WebSocketConfig
}

// New creates an empty hub.
func New(cfg config.WebSocketConfig) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		config:     cfg,
	}
}

// Run starts the hub's main loop.
func (h *Hub) Run() {
	l := log.L()
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()
			l.Info().Str(log.FieldConnID, client.ID).Msg("client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				delete(h.clients, client.ID)
				close(client.Send)
			}
			h.mu.Unlock()
			l.Info().Str(log.FieldConnID, client.ID).Msg("client disconnected")
		}
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// SendTo marshals and queues a message for one handle. It reports false
// when the handle is unknown; callers treat that as a silent drop.
func (h *Hub) SendTo(handle string, message interface{}) bool {
	data, err := json.Marshal(message)
	if err != nil {
		l := log.L()
		l.Error().Err(err).Msg("marshal outbound message")
		return false
	}

	h.mu.RLock()
	client, ok := h.clients[handle]
	h.mu.RUnlock()
	if !ok {
		return false
	}

	select {
	case client.Send <- data:
	default:
		// Send buffer full: the client is too slow, drop it.
		go client.closeConn()
	}
	return true
}

// Broadcast queues a message for every client except the named handles.
func (h *Hub) Broadcast(message interface{}, except ...string) {
	data, err := json.Marshal(message)
	if err != nil {
		l := log.L()
		l.Error().Err(err).Msg("marshal broadcast message")
		return
	}

	skip := make(map[string]struct{}, len(except))
	for _, id := range except {
		skip[id] = struct{}{}
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, client := range h.clients {
		if _, ok := skip[id]; ok {
			continue
		}
		select {
		case client.Send <- data:
		default:
			go client.closeConn()
		}
	}
}

// IsConnected reports whether the gateway still knows the handle.
func (h *Hub) IsConnected(handle string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[handle]
	return ok
}

// CloseClient force-closes a connection, e.g. on capacity eviction. The
// client's read pump then runs the ordinary disconnect path.
func (h *Hub) CloseClient(handle string) {
	h.mu.RLock()
	client, ok := h.clients[handle]
	h.mu.RUnlock()
	if ok {
		client.closeConn()
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
