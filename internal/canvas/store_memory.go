package canvas

import (
	"context"
	"crypto/rand"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// MemoryStore is an in-process Store for single-instance deployments and
// tests. Canvases and permissions are seeded through the Seed* helpers;
// canvas provisioning itself belongs to the external CRUD surface.
type MemoryStore struct {
	mu       sync.Mutex
	canvases map[string]*memCanvas
}

type memCanvas struct {
	permissions map[string]Level
	defaultPerm Level
	objects     map[string]Object
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{canvases: make(map[string]*memCanvas)}
}

// Close closes the store (noop for in-memory).
func (s *MemoryStore) Close() error { return nil }

// SeedCanvas creates a canvas with a default permission level for subjects
// that have no explicit grant.
func (s *MemoryStore) SeedCanvas(canvasID string, defaultPerm Level) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.canvases[canvasID]; !ok {
		s.canvases[canvasID] = &memCanvas{
			permissions: make(map[string]Level),
			defaultPerm: defaultPerm,
			objects:     make(map[string]Object),
		}
	}
}

// SeedPermission grants subject an explicit level on a canvas.
func (s *MemoryStore) SeedPermission(canvasID, subject string, level Level) {
	s.SeedCanvas(canvasID, LevelNone)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.canvases[canvasID].permissions[subject] = level
}

// Permission returns subject's level on a canvas.
func (s *MemoryStore) Permission(ctx context.Context, canvasID, subject string) (Level, error) {
	if err := ctx.Err(); err != nil {
		return LevelNone, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.canvases[canvasID]
	if !ok {
		return LevelNone, ErrNotFound
	}
	if lvl, ok := c.permissions[subject]; ok {
		return lvl, nil
	}
	return c.defaultPerm, nil
}

// CreateObject persists a new object, assigning an id when absent.
func (s *MemoryStore) CreateObject(ctx context.Context, in CreateObjectInput) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}
	if strings.TrimSpace(in.CanvasID) == "" || len(in.Data) == 0 {
		return Object{}, errors.New("canvas: invalid input")
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.canvases[in.CanvasID]
	if !ok {
		return Object{}, ErrNotFound
	}

	id := strings.TrimSpace(in.ObjectID)
	if id == "" {
		id = ulid.MustNew(ulid.Timestamp(now), rand.Reader).String()
	}

	obj := Object{
		ID:        id,
		CanvasID:  in.CanvasID,
		Data:      append([]byte(nil), in.Data...),
		UpdatedBy: in.UserID,
		UpdatedAt: now,
	}
	c.objects[id] = obj
	return obj, nil
}

// UpdateObject overlays properties onto the stored object, last write wins.
func (s *MemoryStore) UpdateObject(ctx context.Context, in UpdateObjectInput) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.canvases[in.CanvasID]
	if !ok {
		return Object{}, ErrNotFound
	}
	obj, ok := c.objects[in.ObjectID]
	if !ok {
		return Object{}, ErrNotFound
	}

	merged, err := MergeProperties(obj.Data, in.Properties)
	if err != nil {
		return Object{}, err
	}

	obj.Data = merged
	obj.UpdatedBy = in.UserID
	obj.UpdatedAt = now
	c.objects[in.ObjectID] = obj
	return obj, nil
}

// DeleteObject removes an object.
func (s *MemoryStore) DeleteObject(ctx context.Context, canvasID, objectID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.canvases[canvasID]
	if !ok {
		return ErrNotFound
	}
	if _, ok := c.objects[objectID]; !ok {
		return ErrNotFound
	}
	delete(c.objects, objectID)
	return nil
}

// GetObject returns a stored object. Intended for tests.
func (s *MemoryStore) GetObject(canvasID, objectID string) (Object, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.canvases[canvasID]
	if !ok {
		return Object{}, false
	}
	obj, ok := c.objects[objectID]
	return obj, ok
}
