package realtime

import (
	"log"
	"sync"
)

// Session is one authenticated realtime connection as the hub sees it
type Session interface {
	UserID() uint
	// Enqueue hands a frame to the connection's writer without blocking;
	// it reports false when the frame was dropped.
	Enqueue(data []byte) bool
}

// Hub is the in-process room registry: room = chat id, members = live
// sessions. It implements services.Broadcaster. Membership is process-local;
// horizontal scaling swaps this for a shared pub/sub fan-out behind the same
// interface.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[Session]struct{}
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[Session]struct{})}
}

// Join admits a session to a chat room
func (h *Hub) Join(chatID string, s Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[chatID] == nil {
		h.rooms[chatID] = make(map[Session]struct{})
	}
	h.rooms[chatID][s] = struct{}{}
}

// Leave removes a session from a chat room
func (h *Hub) Leave(chatID string, s Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if members, ok := h.rooms[chatID]; ok {
		delete(members, s)
		if len(members) == 0 {
			delete(h.rooms, chatID)
		}
	}
}

// LeaveAll removes a session from every room it joined
func (h *Hub) LeaveAll(s Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for chatID, members := range h.rooms {
		delete(members, s)
		if len(members) == 0 {
			delete(h.rooms, chatID)
		}
	}
}

// InRoom reports whether the session is currently a member of the room
func (h *Hub) InRoom(chatID string, s Session) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rooms[chatID][s]
	return ok
}

// EmitToChat pushes an event to every session in the room
func (h *Hub) EmitToChat(chatID, event string, payload interface{}) {
	h.emit(chatID, event, payload, nil)
}

// EmitToChatExcept pushes an event to every session in the room except those
// belonging to exceptUserID
func (h *Hub) EmitToChatExcept(chatID string, exceptUserID uint, event string, payload interface{}) {
	h.emit(chatID, event, payload, &exceptUserID)
}

func (h *Hub) emit(chatID, event string, payload interface{}, exceptUserID *uint) {
	data, err := encodeEvent(event, payload)
	if err != nil {
		log.Printf("failed to encode %s event for chat %s: %v", event, chatID, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.rooms[chatID] {
		if exceptUserID != nil && s.UserID() == *exceptUserID {
			continue
		}
		if !s.Enqueue(data) {
			// Slow consumer: the frame is dropped, durable history is the
			// reconciliation path.
			log.Printf("dropped %s event for user %d in chat %s", event, s.UserID(), chatID)
		}
	}
}
