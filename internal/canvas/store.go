// Package canvas defines the persistence collaborator for canvases and
// drawable objects. The realtime layer treats it as an external service:
// object merging is last-write-wins, and no conflict resolution happens here.
package canvas

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound reports that a canvas (or object) does not exist. It is
// distinct from a permission denial and must stay distinguishable.
var ErrNotFound = errors.New("canvas: not found")

// Level is a permission level on a canvas.
type Level int

const (
	LevelNone Level = iota
	LevelView
	LevelEdit
)

// Allows reports whether the level grants the required one.
func (l Level) Allows(required Level) bool { return l >= required }

func (l Level) String() string {
	switch l {
	case LevelView:
		return "view"
	case LevelEdit:
		return "edit"
	default:
		return "none"
	}
}

// Object is one persisted drawable object.
type Object struct {
	ID        string
	CanvasID  string
	Data      json.RawMessage
	UpdatedBy string
	UpdatedAt time.Time
}

// CreateObjectInput describes an object creation request. ObjectID may be
// empty; the store then assigns one.
type CreateObjectInput struct {
	CanvasID string
	UserID   string
	ObjectID string
	Data     json.RawMessage
	Now      time.Time
}

// UpdateObjectInput describes a property update. Properties are overlaid
// onto the stored data last-write-wins.
type UpdateObjectInput struct {
	CanvasID   string
	UserID     string
	ObjectID   string
	Properties json.RawMessage
	Now        time.Time
}

// Store persists canvases and objects and answers permission queries.
type Store interface {
	// Permission returns subject's level on a canvas. A missing canvas
	// returns ErrNotFound, never LevelNone.
	Permission(ctx context.Context, canvasID, subject string) (Level, error)

	CreateObject(ctx context.Context, in CreateObjectInput) (Object, error)
	UpdateObject(ctx context.Context, in UpdateObjectInput) (Object, error)
	DeleteObject(ctx context.Context, canvasID, objectID string) error

	Close() error
}

// MergeProperties overlays properties onto data at the top JSON level.
// Both inputs must be JSON objects; a nil data starts from empty.
func MergeProperties(data, properties json.RawMessage) (json.RawMessage, error) {
	base := make(map[string]json.RawMessage)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &base); err != nil {
			return nil, err
		}
	}

	patch := make(map[string]json.RawMessage)
	if err := json.Unmarshal(properties, &patch); err != nil {
		return nil, err
	}

	for k, v := range patch {
		base[k] = v
	}
	return json.Marshal(base)
}
