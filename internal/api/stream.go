package api

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"trade-companion/backend/internal/trade"
)

// RateLimitEvent describes websocket payloads emitted whenever the limiter
// state changes.
type RateLimitEvent struct {
	Type      string            `json:"type"`
	Tiers     []trade.TierState `json:"tiers"`
	Message   string            `json:"message,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// wsClient wraps a websocket connection with write locking.
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// RateLimitNotifier keeps track of active websocket clients and broadcasts
// limiter state updates.
type RateLimitNotifier struct {
	mu         sync.Mutex
	clients    map[*wsClient]struct{}
	lastStatus *RateLimitEvent
}

// NewRateLimitNotifier constructs a notifier instance.
func NewRateLimitNotifier() *RateLimitNotifier {
	return &RateLimitNotifier{clients: make(map[*wsClient]struct{})}
}

// Register attaches a websocket connection and returns a client handle.
func (n *RateLimitNotifier) Register(conn *websocket.Conn) *wsClient {
	client := &wsClient{conn: conn}
	n.mu.Lock()
	n.clients[client] = struct{}{}
	status := n.lastStatus
	n.mu.Unlock()

	if status != nil {
		_ = client.writeJSON(*status)
	}
	return client
}

// Unregister removes the websocket client from the notifier and closes the socket.
func (n *RateLimitNotifier) Unregister(client *wsClient) {
	if client == nil {
		return
	}
	n.mu.Lock()
	delete(n.clients, client)
	n.mu.Unlock()
	_ = client.conn.Close()
}

// Broadcast sends the supplied event to all registered websocket clients.
func (n *RateLimitNotifier) Broadcast(event RateLimitEvent) {
	event.Timestamp = time.Now().UTC()

	n.mu.Lock()
	snapshot := event
	n.lastStatus = &snapshot

	for client := range n.clients {
		if err := client.writeJSON(event); err != nil {
			delete(n.clients, client)
			_ = client.conn.Close()
		}
	}
	n.mu.Unlock()
}

func (c *wsClient) writeJSON(payload interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteJSON(payload)
}

// LastStatus returns a copy of the most recently broadcast event.
func (n *RateLimitNotifier) LastStatus() *RateLimitEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.lastStatus == nil {
		return nil
	}
	copy := *n.lastStatus
	return &copy
}
