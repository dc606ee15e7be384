// Package chat fans chat events out to the websocket connections watching a
// pot. Each pot is a room; persistence is the chat service's job, the hub
// only delivers.
package chat

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// EventType distinguishes the wire messages a room can carry.
type EventType string

const (
	// EventEnter announces a user's first-ever join of the pot. Rejoins
	// after a leave do not produce one.
	EventEnter EventType = "ENTER"
	// EventTalk is an ordinary chat message.
	EventTalk EventType = "TALK"
)

// Event is the JSON payload delivered to every connection in a room.
type Event struct {
	Type           EventType `json:"type"`
	PotID          string    `json:"potId"`
	SenderID       string    `json:"senderId,omitempty"`
	SenderNickname string    `json:"senderNickname,omitempty"`
	Message        string    `json:"message"`
	SentAt         time.Time `json:"sentAt"`
}

// Broadcaster is the hub as seen by the HTTP layer: fire an event at a room.
type Broadcaster interface {
	Broadcast(potID string, ev Event)
}

// Conn wraps a websocket connection with a write lock. gorilla/websocket
// forbids concurrent writers, and broadcasts can race the handler's own
// writes on the same connection.
type Conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

// Send writes one event. Safe for concurrent use.
func (c *Conn) Send(ev Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteJSON(ev)
}

// Hub tracks which connections are in which pot's room.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[*Conn]bool
	logger *slog.Logger
}

var _ Broadcaster = (*Hub)(nil)

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		rooms:  make(map[string]map[*Conn]bool),
		logger: logger,
	}
}

// Register adds a websocket connection to a pot's room and returns the
// wrapped connection. The caller must Unregister it when the socket closes.
func (h *Hub) Register(potID string, ws *websocket.Conn) *Conn {
	c := &Conn{ws: ws}

	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[potID]
	if !ok {
		room = make(map[*Conn]bool)
		h.rooms[potID] = room
	}
	room[c] = true
	return c
}

// Unregister removes the connection from the room, dropping the room itself
// once it empties.
func (h *Hub) Unregister(potID string, c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[potID]
	if !ok {
		return
	}
	delete(room, c)
	if len(room) == 0 {
		delete(h.rooms, potID)
	}
}

// Broadcast delivers the event to every connection in the pot's room. A
// failed write only loses that one connection's delivery; its read loop
// will notice the broken socket and unregister it.
func (h *Hub) Broadcast(potID string, ev Event) {
	h.mu.RLock()
	conns := make([]*Conn, 0, len(h.rooms[potID]))
	for c := range h.rooms[potID] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		if err := c.Send(ev); err != nil {
			h.logger.Warn("failed to deliver chat event",
				slog.String("potID", potID),
				slog.String("error", err.Error()),
			)
		}
	}
}

// RoomSize reports how many connections are currently in the pot's room.
func (h *Hub) RoomSize(potID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[potID])
}
