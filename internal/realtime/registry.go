package realtime

import (
	"encoding/json"
	"fmt"

	v1 "slate/contracts/realtime/v1"
	"slate/internal/canvas"
)

// eventSpec is one entry of the closed event table: how to decode and
// validate the payload, which permission the canvas must grant, and which
// rate-limit action gates it. Dispatch is table-driven; there is no
// stringly-typed branching outside this file.
type eventSpec struct {
	Type string

	// decode parses and validates the payload, returning the typed payload
	// and the target canvas id.
	decode func(raw json.RawMessage) (any, string, error)

	// permission is the level the canvas must grant. LevelNone skips the
	// authorization stage entirely (leave-style operations always succeed).
	permission canvas.Level

	// action names the rate-limit config gating this event.
	action string

	handle func(g *Gateway, ev *eventContext) error
}

func decodeAs[P interface{ Validate() error }](raw json.RawMessage, canvasID func(P) string) (any, string, error) {
	var p P
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, "", fmt.Errorf("invalid payload: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, "", err
	}
	return p, canvasID(p), nil
}

// eventTable is the closed set of inbound event kinds.
var eventTable = map[string]*eventSpec{
	v1.TypeJoinCanvas: {
		Type: v1.TypeJoinCanvas,
		decode: func(raw json.RawMessage) (any, string, error) {
			return decodeAs[v1.JoinCanvasPayload](raw, func(p v1.JoinCanvasPayload) string { return p.CanvasID })
		},
		permission: canvas.LevelView,
		action:     v1.TypeJoinCanvas,
		handle:     (*Gateway).onJoinCanvas,
	},
	v1.TypeLeaveCanvas: {
		Type: v1.TypeLeaveCanvas,
		decode: func(raw json.RawMessage) (any, string, error) {
			return decodeAs[v1.LeaveCanvasPayload](raw, func(p v1.LeaveCanvasPayload) string { return p.CanvasID })
		},
		permission: canvas.LevelNone,
		action:     v1.TypeLeaveCanvas,
		handle:     (*Gateway).onLeaveCanvas,
	},
	v1.TypeObjectCreate: {
		Type: v1.TypeObjectCreate,
		decode: func(raw json.RawMessage) (any, string, error) {
			return decodeAs[v1.ObjectCreatePayload](raw, func(p v1.ObjectCreatePayload) string { return p.CanvasID })
		},
		permission: canvas.LevelEdit,
		action:     v1.TypeObjectCreate,
		handle:     (*Gateway).onObjectCreate,
	},
	v1.TypeObjectUpdate: {
		Type: v1.TypeObjectUpdate,
		decode: func(raw json.RawMessage) (any, string, error) {
			return decodeAs[v1.ObjectUpdatePayload](raw, func(p v1.ObjectUpdatePayload) string { return p.CanvasID })
		},
		permission: canvas.LevelEdit,
		action:     v1.TypeObjectUpdate,
		handle:     (*Gateway).onObjectUpdate,
	},
	v1.TypeObjectDelete: {
		Type: v1.TypeObjectDelete,
		decode: func(raw json.RawMessage) (any, string, error) {
			return decodeAs[v1.ObjectDeletePayload](raw, func(p v1.ObjectDeletePayload) string { return p.CanvasID })
		},
		permission: canvas.LevelEdit,
		action:     v1.TypeObjectDelete,
		handle:     (*Gateway).onObjectDelete,
	},
	v1.TypeCursorMove: {
		Type: v1.TypeCursorMove,
		decode: func(raw json.RawMessage) (any, string, error) {
			return decodeAs[v1.CursorMovePayload](raw, func(p v1.CursorMovePayload) string { return p.CanvasID })
		},
		permission: canvas.LevelView,
		action:     v1.TypeCursorMove,
		handle:     (*Gateway).onCursorMove,
	},
	v1.TypeCursorLeave: {
		Type:       v1.TypeCursorLeave,
		decode:     decodeCanvasOnly,
		permission: canvas.LevelNone,
		action:     v1.TypeCursorLeave,
		handle:     (*Gateway).onCursorLeave,
	},
	v1.TypeUserOnline: {
		Type:       v1.TypeUserOnline,
		decode:     decodeCanvasOnly,
		permission: canvas.LevelView,
		action:     v1.TypeUserOnline,
		handle:     (*Gateway).onUserOnline,
	},
	v1.TypeUserOffline: {
		Type:       v1.TypeUserOffline,
		decode:     decodeCanvasOnly,
		permission: canvas.LevelNone,
		action:     v1.TypeUserOffline,
		handle:     (*Gateway).onUserOffline,
	},
	v1.TypeHeartbeat: {
		Type:       v1.TypeHeartbeat,
		decode:     decodeCanvasOnly,
		permission: canvas.LevelNone,
		action:     v1.TypeHeartbeat,
		handle:     (*Gateway).onHeartbeat,
	},
	v1.TypeGetCursors: {
		Type:       v1.TypeGetCursors,
		decode:     decodeCanvasOnly,
		permission: canvas.LevelView,
		action:     v1.TypeGetCursors,
		handle:     (*Gateway).onGetCursors,
	},
	v1.TypeGetOnlineUsers: {
		Type:       v1.TypeGetOnlineUsers,
		decode:     decodeCanvasOnly,
		permission: canvas.LevelView,
		action:     v1.TypeGetOnlineUsers,
		handle:     (*Gateway).onGetOnlineUsers,
	},
}

func decodeCanvasOnly(raw json.RawMessage) (any, string, error) {
	return decodeAs[v1.CanvasOnlyPayload](raw, func(p v1.CanvasOnlyPayload) string { return p.CanvasID })
}

// lookupEvent resolves a wire type to its spec.
func lookupEvent(typ string) (*eventSpec, bool) {
	spec, ok := eventTable[typ]
	return spec, ok
}
