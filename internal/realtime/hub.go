package realtime

import (
	"encoding/json"
	"sync"

	"projectron-api/internal/logger"

	"go.uber.org/zap"
)

// Client represents a single websocket client connection.
// The network conn is managed in the ws handler.
type Client interface {
	Send(message []byte) bool
	Close()
}

// Hub maintains active user connections and broadcasts events to them.
type Hub struct {
	mu              sync.RWMutex
	userIdToClients map[string]map[Client]struct{}
}

var hubInstance *Hub
var once sync.Once

// GetHub returns the process hub used by package-level handlers.
func GetHub() *Hub {
	once.Do(func() {
		hubInstance = NewHub()
	})
	return hubInstance
}

func NewHub() *Hub {
	return &Hub{userIdToClients: make(map[string]map[Client]struct{})}
}

// Register adds a client under a user ID.
func (h *Hub) Register(userID string, client Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.userIdToClients[userID]; !ok {
		h.userIdToClients[userID] = make(map[Client]struct{})
	}
	h.userIdToClients[userID][client] = struct{}{}
}

// Unregister removes a client; if user has no more clients, cleans up map.
func (h *Hub) Unregister(userID string, client Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if clients, ok := h.userIdToClients[userID]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.userIdToClients, userID)
		}
	}
}

// Connected reports how many clients userID has open.
func (h *Hub) Connected(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.userIdToClients[userID])
}

// Broadcast sends a message to all clients of a user.
// Failed writes are cleaned up by the ws handler when its read loop exits.
func (h *Hub) Broadcast(userID string, message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.userIdToClients[userID] {
		c.Send(message)
	}
}

// Publish encodes event as JSON and broadcasts it to the user.
func (h *Hub) Publish(userID string, event any) {
	b, err := json.Marshal(event)
	if err != nil {
		logger.Log.Warn("encode realtime event", zap.String("user_id", userID), zap.Error(err))
		return
	}
	h.Broadcast(userID, b)
}

// Event builds the envelope shared by every pushed message.
func Event(kind string, fields map[string]any) map[string]any {
	ev := map[string]any{"type": kind, "version": 1}
	for k, v := range fields {
		ev[k] = v
	}
	return ev
}
