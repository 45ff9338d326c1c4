package realtime

import (
	"log/slog"
	"sync"

	v1 "slate/contracts/realtime/v1"
)

// Hub owns in-memory canvas rooms and provides stable room handles.
// It is intentionally minimal: canvas persistence lives behind canvas.Store.
type Hub struct {
	log *slog.Logger

	mu    sync.RWMutex
	rooms map[string]*Room
}

// NewHub constructs a Hub instance.
func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		log:   log,
		rooms: make(map[string]*Room),
	}
}

// GetOrCreateRoom returns a stable in-memory room handle for a canvas.
func (h *Hub) GetOrCreateRoom(canvasID string) *Room {
	h.mu.Lock()
	defer h.mu.Unlock()

	if r, ok := h.rooms[canvasID]; ok {
		return r
	}

	r := NewRoom(h.log, canvasID)
	h.rooms[canvasID] = r
	return r
}

// Room is the broadcast scope for one canvas: an in-memory membership +
// fanout primitive.
//
// Concurrency guarantees:
// - Join/Leave are safe under concurrent Broadcast.
// - Broadcast never blocks (drops under backpressure).
// - Broadcast is panic-safe because Client.Send is never closed by the server.
//
// commitMu serializes persist-then-broadcast sections for object operations
// so broadcast order within the room matches persistence commit order. No
// ordering guarantee exists across rooms.
type Room struct {
	log      *slog.Logger
	CanvasID string

	commitMu sync.Mutex

	mu      sync.RWMutex
	members map[string]*Client
}

// NewRoom constructs a room.
func NewRoom(log *slog.Logger, canvasID string) *Room {
	return &Room{
		log:      log,
		CanvasID: canvasID,
		members:  make(map[string]*Client),
	}
}

// Join adds a client to membership.
func (r *Room) Join(client *Client) {
	if r == nil || client == nil || client.SessionID == "" {
		return
	}

	r.mu.Lock()
	r.members[client.SessionID] = client
	r.mu.Unlock()

	r.log.Info("room.member.join", "canvas_id", r.CanvasID, "session_id", client.SessionID)
}

// Leave removes a client from membership without tearing the client down;
// a connection outlives its room membership when switching canvases.
func (r *Room) Leave(sessionID string) {
	if r == nil || sessionID == "" {
		return
	}

	r.mu.Lock()
	delete(r.members, sessionID)
	r.mu.Unlock()

	r.log.Info("room.member.leave", "canvas_id", r.CanvasID, "session_id", sessionID)
}

// MemberCount returns the current membership size.
func (r *Room) MemberCount() int {
	if r == nil {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// Has reports whether sessionID is a member.
func (r *Room) Has(sessionID string) bool {
	if r == nil {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.members[sessionID]
	return ok
}

// Broadcast fanouts an envelope to all members, including the sender.
// Non-blocking: if a member queue is full or the client is shutting down,
// the envelope is dropped for that member.
func (r *Room) Broadcast(env v1.Envelope) {
	r.broadcast(env, "")
}

// BroadcastExcept fanouts an envelope to all members except one session.
func (r *Room) BroadcastExcept(exceptSessionID string, env v1.Envelope) {
	r.broadcast(env, exceptSessionID)
}

func (r *Room) broadcast(env v1.Envelope, except string) {
	if r == nil {
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for id, m := range r.members {
		if m == nil || (except != "" && id == except) {
			continue
		}

		select {
		case <-m.Done():
			// Skip clients that are shutting down.
			continue
		default:
		}

		select {
		case m.Send <- env:
		default:
			// Drop rather than block the whole room.
		}
	}
}
