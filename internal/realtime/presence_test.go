package realtime

import (
	"context"
	"errors"
	"testing"
	"time"

	v1 "slate/contracts/realtime/v1"
	"slate/internal/kv"
)

// downStore simulates a shared store outage for degradation tests.
type downStore struct{}

var errDown = errors.New("kv down")

func (downStore) Get(context.Context, string) (string, bool, error)           { return "", false, errDown }
func (downStore) SetEx(context.Context, string, string, time.Duration) error { return errDown }
func (downStore) IncrWindow(context.Context, string, time.Duration) (int64, error) {
	return 0, errDown
}
func (downStore) Expire(context.Context, string, time.Duration) error { return errDown }
func (downStore) Delete(context.Context, string) error                { return errDown }
func (downStore) ScanPrefix(context.Context, string) (map[string]string, error) {
	return nil, errDown
}
func (downStore) Close() error { return nil }

var _ kv.Store = downStore{}

func TestCursorTracker_TTLExpiry(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cur := start
	store := kv.NewMemoryStore()
	store.SetClock(func() time.Time { return cur })

	tr := NewCursorTracker(testLogger(), store)
	ctx := context.Background()

	tr.Set(ctx, "c1", v1.CursorInfo{UserID: "u1", Position: v1.Position{X: 1, Y: 2}, Timestamp: start})

	if got := tr.Snapshot(ctx, "c1"); len(got) != 1 || got[0].UserID != "u1" {
		t.Fatalf("unexpected snapshot: %v", got)
	}

	// Nothing removes the record; it simply ages out at 30s.
	cur = start.Add(31 * time.Second)
	if got := tr.Snapshot(ctx, "c1"); len(got) != 0 {
		t.Fatalf("cursor must age out after its TTL, got %v", got)
	}
}

func TestCursorTracker_RefreshExtendsTTL(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cur := start
	store := kv.NewMemoryStore()
	store.SetClock(func() time.Time { return cur })

	tr := NewCursorTracker(testLogger(), store)
	ctx := context.Background()

	tr.Set(ctx, "c1", v1.CursorInfo{UserID: "u1"})

	cur = start.Add(25 * time.Second)
	tr.Refresh(ctx, "c1", "u1")

	cur = start.Add(50 * time.Second)
	if got := tr.Snapshot(ctx, "c1"); len(got) != 1 {
		t.Fatalf("refreshed cursor must survive the original deadline")
	}

	cur = start.Add(56 * time.Second)
	if got := tr.Snapshot(ctx, "c1"); len(got) != 0 {
		t.Fatalf("refreshed cursor must expire at the new deadline, got %v", got)
	}
}

func TestCursorTracker_SnapshotIsSortedAndScoped(t *testing.T) {
	store := kv.NewMemoryStore()
	tr := NewCursorTracker(testLogger(), store)
	ctx := context.Background()

	tr.Set(ctx, "c1", v1.CursorInfo{UserID: "zed"})
	tr.Set(ctx, "c1", v1.CursorInfo{UserID: "amy"})
	tr.Set(ctx, "other", v1.CursorInfo{UserID: "bob"})

	got := tr.Snapshot(ctx, "c1")
	if len(got) != 2 || got[0].UserID != "amy" || got[1].UserID != "zed" {
		t.Fatalf("expected sorted per-canvas snapshot, got %v", got)
	}
}

func TestPresenceTracker_SetRemoveSnapshot(t *testing.T) {
	store := kv.NewMemoryStore()
	tr := NewPresenceTracker(testLogger(), store)
	ctx := context.Background()

	tr.Set(ctx, "c1", v1.PresenceInfo{UserID: "u1", Name: "Amy"})
	tr.Set(ctx, "c1", v1.PresenceInfo{UserID: "u2"})

	if got := tr.Snapshot(ctx, "c1"); len(got) != 2 {
		t.Fatalf("expected 2 online users, got %v", got)
	}

	tr.Remove(ctx, "c1", "u1")
	got := tr.Snapshot(ctx, "c1")
	if len(got) != 1 || got[0].UserID != "u2" {
		t.Fatalf("expected only u2 online, got %v", got)
	}
}

func TestTrackers_DegradeSilentlyOnStoreFailure(t *testing.T) {
	ctx := context.Background()

	cursors := NewCursorTracker(testLogger(), downStore{})
	presence := NewPresenceTracker(testLogger(), downStore{})

	// None of these may panic or surface an error.
	cursors.Set(ctx, "c1", v1.CursorInfo{UserID: "u1"})
	cursors.Refresh(ctx, "c1", "u1")
	cursors.Remove(ctx, "c1", "u1")
	presence.Set(ctx, "c1", v1.PresenceInfo{UserID: "u1"})
	presence.Refresh(ctx, "c1", "u1")
	presence.Remove(ctx, "c1", "u1")

	if got := cursors.Snapshot(ctx, "c1"); got != nil {
		t.Fatalf("degraded snapshot must be empty, got %v", got)
	}
	if got := presence.Snapshot(ctx, "c1"); got != nil {
		t.Fatalf("degraded snapshot must be empty, got %v", got)
	}
}
