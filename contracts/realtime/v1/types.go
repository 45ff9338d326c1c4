// Package v1 defines the Slate realtime protocol v1 contract.
//
// This package is intentionally stable and dependency-light.
// It is shared between server and clients to keep the wire protocol authoritative.
package v1

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Version is the protocol version identifier embedded into every envelope.
const Version = "v1"

// Inbound type constants (wire-stable, client -> server).
const (
	// TypeJoinCanvas requests membership in a canvas room.
	TypeJoinCanvas = "join_canvas"
	// TypeLeaveCanvas leaves a canvas room.
	TypeLeaveCanvas = "leave_canvas"

	// TypeObjectCreate requests creating a drawable object.
	TypeObjectCreate = "object_created"
	// TypeObjectUpdate requests updating object properties (last-write-wins).
	TypeObjectUpdate = "object_updated"
	// TypeObjectDelete requests deleting an object.
	TypeObjectDelete = "object_deleted"

	// TypeCursorMove reports a cursor position.
	TypeCursorMove = "cursor_move"
	// TypeCursorLeave clears the sender's cursor.
	TypeCursorLeave = "cursor_leave"

	// TypeUserOnline marks the sender online for a canvas.
	TypeUserOnline = "user_online"
	// TypeUserOffline marks the sender offline for a canvas.
	TypeUserOffline = "user_offline"
	// TypeHeartbeat refreshes presence/cursor TTLs without broadcasting.
	TypeHeartbeat = "heartbeat"

	// TypeGetCursors requests a point-in-time cursor snapshot.
	TypeGetCursors = "get_cursors"
	// TypeGetOnlineUsers requests a point-in-time presence snapshot.
	TypeGetOnlineUsers = "get_online_users"
)

// Outbound type constants (wire-stable, server -> client).
const (
	// TypeJoinedCanvas acknowledges a join to the requester only.
	TypeJoinedCanvas = "joined_canvas"
	// TypeUserJoined announces a new room member to existing members.
	TypeUserJoined = "user_joined"
	// TypeUserLeft announces a departure to remaining members.
	TypeUserLeft = "user_left"

	// TypeCursorMoved broadcasts a cursor position to the room (excluding sender).
	TypeCursorMoved = "cursor_moved"
	// TypeCursorLeft broadcasts a cursor removal.
	TypeCursorLeft = "cursor_left"

	// TypeUserCameOnline broadcasts a presence arrival.
	TypeUserCameOnline = "user_came_online"
	// TypeUserWentOffline broadcasts a presence departure.
	TypeUserWentOffline = "user_went_offline"

	// TypeCursorsData returns a cursor snapshot to the requester only.
	TypeCursorsData = "cursors_data"
	// TypeOnlineUsers returns a presence snapshot to the requester only.
	TypeOnlineUsers = "online_users"

	// TypeError is a generic error envelope (server -> client).
	TypeError = "error"
)

// Coordinate bounds accepted for cursor and object positions.
const (
	MinCoordinate = -100000
	MaxCoordinate = 100000
)

// MaxObjectBytes bounds the serialized size of a single object payload.
const MaxObjectBytes = 32 << 10

// Envelope is the canonical wire wrapper.
type Envelope struct {
	V       string          `json:"v"`
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	TS      time.Time       `json:"ts,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

var inboundTypes = map[string]struct{}{
	TypeJoinCanvas:     {},
	TypeLeaveCanvas:    {},
	TypeObjectCreate:   {},
	TypeObjectUpdate:   {},
	TypeObjectDelete:   {},
	TypeCursorMove:     {},
	TypeCursorLeave:    {},
	TypeUserOnline:     {},
	TypeUserOffline:    {},
	TypeHeartbeat:      {},
	TypeGetCursors:     {},
	TypeGetOnlineUsers: {},
}

// Validate performs strict structural validation for an inbound Envelope.
// Payload-level validation is the responsibility of the per-type payload types.
func (e Envelope) Validate() error {
	if strings.TrimSpace(e.V) == "" {
		return errors.New("missing field: v")
	}
	if e.V != Version {
		return fmt.Errorf("unsupported protocol version: %q", e.V)
	}
	if strings.TrimSpace(e.Type) == "" {
		return errors.New("missing field: type")
	}
	if _, ok := inboundTypes[e.Type]; !ok {
		return fmt.Errorf("unknown type: %q", e.Type)
	}
	if e.Payload == nil {
		return errors.New("missing payload")
	}
	return nil
}

// IsInbound reports whether typ is a known client -> server type.
func IsInbound(typ string) bool {
	_, ok := inboundTypes[typ]
	return ok
}

// ---- Inbound payloads ----

// Position is a canvas coordinate pair.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Validate checks the position is finite and within canvas bounds.
func (p Position) Validate() error {
	if p.X != p.X || p.Y != p.Y { // NaN
		return errors.New("position is not a number")
	}
	if p.X < MinCoordinate || p.X > MaxCoordinate || p.Y < MinCoordinate || p.Y > MaxCoordinate {
		return errors.New("position out of range")
	}
	return nil
}

// JoinCanvasPayload requests membership in a canvas room.
type JoinCanvasPayload struct {
	CanvasID   string `json:"canvas_id"`
	Credential string `json:"credential,omitempty"`
}

// Validate checks required fields.
func (p JoinCanvasPayload) Validate() error {
	return requireCanvasID(p.CanvasID)
}

// LeaveCanvasPayload leaves a canvas room.
type LeaveCanvasPayload struct {
	CanvasID   string `json:"canvas_id"`
	Credential string `json:"credential,omitempty"`
}

// Validate checks required fields.
func (p LeaveCanvasPayload) Validate() error {
	return requireCanvasID(p.CanvasID)
}

// ObjectCreatePayload requests creating a drawable object.
type ObjectCreatePayload struct {
	CanvasID string          `json:"canvas_id"`
	Object   json.RawMessage `json:"object"`
}

// Validate checks required fields and object size bounds.
func (p ObjectCreatePayload) Validate() error {
	if err := requireCanvasID(p.CanvasID); err != nil {
		return err
	}
	return validateObjectBlob(p.Object)
}

// ObjectUpdatePayload requests updating object properties.
type ObjectUpdatePayload struct {
	CanvasID   string          `json:"canvas_id"`
	ObjectID   string          `json:"object_id"`
	Properties json.RawMessage `json:"properties"`
}

// Validate checks required fields and properties size bounds.
func (p ObjectUpdatePayload) Validate() error {
	if err := requireCanvasID(p.CanvasID); err != nil {
		return err
	}
	if strings.TrimSpace(p.ObjectID) == "" {
		return errors.New("missing object_id")
	}
	return validateObjectBlob(p.Properties)
}

// ObjectDeletePayload requests deleting an object.
type ObjectDeletePayload struct {
	CanvasID string `json:"canvas_id"`
	ObjectID string `json:"object_id"`
}

// Validate checks required fields.
func (p ObjectDeletePayload) Validate() error {
	if err := requireCanvasID(p.CanvasID); err != nil {
		return err
	}
	if strings.TrimSpace(p.ObjectID) == "" {
		return errors.New("missing object_id")
	}
	return nil
}

// CursorMovePayload reports a cursor position.
type CursorMovePayload struct {
	CanvasID  string    `json:"canvas_id"`
	Position  Position  `json:"position"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// Validate checks required fields and position bounds.
func (p CursorMovePayload) Validate() error {
	if err := requireCanvasID(p.CanvasID); err != nil {
		return err
	}
	return p.Position.Validate()
}

// CanvasOnlyPayload is shared by events that carry only a canvas id:
// cursor_leave, user_online, user_offline, heartbeat, get_cursors, get_online_users.
type CanvasOnlyPayload struct {
	CanvasID string `json:"canvas_id"`
}

// Validate checks required fields.
func (p CanvasOnlyPayload) Validate() error {
	return requireCanvasID(p.CanvasID)
}

// ---- Outbound payloads ----

// JoinedCanvasPayload acknowledges a join and seeds the requester's presence view.
type JoinedCanvasPayload struct {
	CanvasID    string         `json:"canvas_id"`
	MemberCount int            `json:"member_count"`
	OnlineUsers []PresenceInfo `json:"online_users,omitempty"`
}

// UserEventPayload announces a member arrival or departure.
type UserEventPayload struct {
	CanvasID string `json:"canvas_id"`
	UserID   string `json:"user_id"`
	Name     string `json:"name,omitempty"`
}

// ObjectEventPayload broadcasts an authoritative object change.
type ObjectEventPayload struct {
	CanvasID   string          `json:"canvas_id"`
	ObjectID   string          `json:"object_id"`
	UserID     string          `json:"user_id"`
	Object     json.RawMessage `json:"object,omitempty"`
	Properties json.RawMessage `json:"properties,omitempty"`
}

// CursorInfo is one user's live cursor.
type CursorInfo struct {
	UserID    string    `json:"user_id"`
	Name      string    `json:"name,omitempty"`
	Position  Position  `json:"position"`
	Timestamp time.Time `json:"timestamp"`
}

// PresenceInfo is one user's online record.
type PresenceInfo struct {
	UserID    string    `json:"user_id"`
	Name      string    `json:"name,omitempty"`
	Email     string    `json:"email,omitempty"`
	Avatar    string    `json:"avatar,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// CursorsDataPayload is a point-in-time cursor snapshot for the requester.
type CursorsDataPayload struct {
	CanvasID string       `json:"canvas_id"`
	Cursors  []CursorInfo `json:"cursors"`
}

// OnlineUsersPayload is a point-in-time presence snapshot for the requester.
type OnlineUsersPayload struct {
	CanvasID string         `json:"canvas_id"`
	Users    []PresenceInfo `json:"users"`
}

// ErrorPayload is the single error shape for every denial and failure.
type ErrorPayload struct {
	Message    string  `json:"message"`
	Type       string  `json:"type"`
	Code       string  `json:"code"`
	RetryAfter float64 `json:"retry_after,omitempty"`
}

// ---- helpers ----

func requireCanvasID(id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("missing canvas_id")
	}
	// Canvas ids are used as segments of colon-delimited storage keys; a
	// colon inside one would collide with the delimiter.
	if strings.ContainsRune(id, ':') {
		return errors.New("invalid canvas_id: must not contain ':'")
	}
	return nil
}

func validateObjectBlob(raw json.RawMessage) error {
	if len(raw) == 0 {
		return errors.New("missing object")
	}
	if len(raw) > MaxObjectBytes {
		return fmt.Errorf("object too large: max=%d bytes", MaxObjectBytes)
	}
	if !json.Valid(raw) {
		return errors.New("object is not valid JSON")
	}
	return nil
}
