package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
)

// Message is a real-time event pushed to connected parents.
type Message struct {
	Type    string         `json:"type"`
	Entity  string         `json:"entity"`
	Action  string         `json:"action"`
	ID      int64          `json:"id,omitempty"`
	ChildID int64          `json:"child_id,omitempty"`
	Extra   map[string]any `json:"extra,omitempty"`
}

// NewMessage creates a Message with the Type field derived from entity and action.
func NewMessage(entity, action string, childID, id int64, extra map[string]any) Message {
	return Message{
		Type:    fmt.Sprintf("%s_%s", entity, action),
		Entity:  entity,
		Action:  action,
		ID:      id,
		ChildID: childID,
		Extra:   extra,
	}
}

// Hub tracks connected clients by user and routes messages either to one
// user or to every parent watching a child.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	byUser  map[int64]map[*Client]struct{}
	logger  *slog.Logger
}

// NewHub creates a new Hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		byUser:  make(map[int64]map[*Client]struct{}),
		logger:  logger,
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	set, ok := h.byUser[c.userID]
	if !ok {
		set = make(map[*Client]struct{})
		h.byUser[c.userID] = set
	}
	set[c] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes a client from the hub and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		if set := h.byUser[c.userID]; set != nil {
			delete(set, c)
			if len(set) == 0 {
				delete(h.byUser, c.userID)
			}
		}
		close(c.send)
	}
	h.mu.Unlock()
}

// Subscribe adds childID to every open connection of userID, so a parent
// linked mid-session starts receiving that child's events.
func (h *Hub) Subscribe(userID, childID int64) {
	h.mu.Lock()
	for c := range h.byUser[userID] {
		c.children[childID] = struct{}{}
	}
	h.mu.Unlock()
}

// SendToUser delivers msg to every connection of one user.
func (h *Hub) SendToUser(userID int64, msg Message) {
	data, ok := h.marshal(msg)
	if !ok {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.byUser[userID] {
		c.enqueue(data)
	}
}

// PublishToChild delivers msg to every connection subscribed to childID.
func (h *Hub) PublishToChild(childID int64, msg Message) {
	data, ok := h.marshal(msg)
	if !ok {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if _, ok := c.children[childID]; ok {
			c.enqueue(data)
		}
	}
}

func (h *Hub) marshal(msg Message) ([]byte, bool) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal message", "error", err)
		return nil, false
	}
	return data, true
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
