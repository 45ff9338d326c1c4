package v1

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"
)

func TestEnvelope_Validate(t *testing.T) {
	valid := Envelope{
		V:       Version,
		Type:    TypeJoinCanvas,
		ID:      "01JABCDEF",
		TS:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Payload: json.RawMessage(`{"canvas_id":"c1"}`),
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid envelope rejected: %v", err)
	}

	tests := []struct {
		name    string
		mutate  func(e *Envelope)
		wantErr string
	}{
		{"missing v", func(e *Envelope) { e.V = "" }, "missing field: v"},
		{"wrong version", func(e *Envelope) { e.V = "v2" }, "unsupported protocol version"},
		{"missing type", func(e *Envelope) { e.Type = "  " }, "missing field: type"},
		{"unknown type", func(e *Envelope) { e.Type = "subscribe" }, "unknown type"},
		{"outbound type", func(e *Envelope) { e.Type = TypeJoinedCanvas }, "unknown type"},
		{"nil payload", func(e *Envelope) { e.Payload = nil }, "missing payload"},
	}
	for _, tc := range tests {
		e := valid
		tc.mutate(&e)
		err := e.Validate()
		if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
			t.Fatalf("%s: got %v, want %q", tc.name, err, tc.wantErr)
		}
	}
}

func TestIsInbound(t *testing.T) {
	if !IsInbound(TypeHeartbeat) {
		t.Fatalf("heartbeat is inbound")
	}
	if IsInbound(TypeError) || IsInbound("") {
		t.Fatalf("outbound and empty types are not inbound")
	}
}

func TestPosition_Validate(t *testing.T) {
	ok := []Position{
		{X: 0, Y: 0},
		{X: MinCoordinate, Y: MaxCoordinate},
		{X: -42.5, Y: 17.25},
	}
	for _, p := range ok {
		if err := p.Validate(); err != nil {
			t.Fatalf("Validate(%v) = %v", p, err)
		}
	}

	bad := []Position{
		{X: MaxCoordinate + 1, Y: 0},
		{X: 0, Y: MinCoordinate - 1},
		{X: math.NaN(), Y: 0},
		{X: 0, Y: math.NaN()},
	}
	for _, p := range bad {
		if err := p.Validate(); err == nil {
			t.Fatalf("Validate(%v) accepted an invalid position", p)
		}
	}
}

func TestJoinCanvasPayload_Validate(t *testing.T) {
	if err := (JoinCanvasPayload{CanvasID: "c1"}).Validate(); err != nil {
		t.Fatalf("valid payload rejected: %v", err)
	}
	if err := (JoinCanvasPayload{CanvasID: "   "}).Validate(); err == nil {
		t.Fatalf("blank canvas_id accepted")
	}
	// A colon would collide with the storage key delimiter: canvas "c1:x"
	// records must never surface in canvas "c1" scans.
	if err := (JoinCanvasPayload{CanvasID: "c1:x"}).Validate(); err == nil {
		t.Fatalf("canvas_id with ':' accepted")
	}
}

func TestObjectCreatePayload_Validate(t *testing.T) {
	if err := (ObjectCreatePayload{
		CanvasID: "c1",
		Object:   json.RawMessage(`{"type":"rect"}`),
	}).Validate(); err != nil {
		t.Fatalf("valid payload rejected: %v", err)
	}

	if err := (ObjectCreatePayload{CanvasID: "c1"}).Validate(); err == nil {
		t.Fatalf("missing object accepted")
	}
	if err := (ObjectCreatePayload{
		CanvasID: "c1",
		Object:   json.RawMessage(`{not json`),
	}).Validate(); err == nil {
		t.Fatalf("malformed object accepted")
	}

	huge := `{"blob":"` + strings.Repeat("a", MaxObjectBytes) + `"}`
	if err := (ObjectCreatePayload{
		CanvasID: "c1",
		Object:   json.RawMessage(huge),
	}).Validate(); err == nil || !strings.Contains(err.Error(), "too large") {
		t.Fatalf("oversized object: got %v", err)
	}
}

func TestObjectUpdatePayload_Validate(t *testing.T) {
	base := ObjectUpdatePayload{
		CanvasID:   "c1",
		ObjectID:   "o1",
		Properties: json.RawMessage(`{"x":1}`),
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("valid payload rejected: %v", err)
	}

	noID := base
	noID.ObjectID = ""
	if err := noID.Validate(); err == nil {
		t.Fatalf("missing object_id accepted")
	}

	noProps := base
	noProps.Properties = nil
	if err := noProps.Validate(); err == nil {
		t.Fatalf("missing properties accepted")
	}
}

func TestObjectDeletePayload_Validate(t *testing.T) {
	if err := (ObjectDeletePayload{CanvasID: "c1", ObjectID: "o1"}).Validate(); err != nil {
		t.Fatalf("valid payload rejected: %v", err)
	}
	if err := (ObjectDeletePayload{CanvasID: "c1"}).Validate(); err == nil {
		t.Fatalf("missing object_id accepted")
	}
}

func TestCursorMovePayload_Validate(t *testing.T) {
	if err := (CursorMovePayload{CanvasID: "c1", Position: Position{X: 1, Y: 2}}).Validate(); err != nil {
		t.Fatalf("valid payload rejected: %v", err)
	}
	if err := (CursorMovePayload{CanvasID: "c1", Position: Position{X: 2e5, Y: 0}}).Validate(); err == nil {
		t.Fatalf("out-of-range position accepted")
	}
	if err := (CursorMovePayload{Position: Position{X: 1, Y: 2}}).Validate(); err == nil {
		t.Fatalf("missing canvas_id accepted")
	}
}
