package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"time"

	v1 "slate/contracts/realtime/v1"
	"slate/internal/kv"
)

// Key prefixes in the shared store. Records are keyed by (canvas, user) so
// the same user reconnecting overwrites rather than duplicates. Canvas ids
// never contain ':' (contract validation), so a canvas prefix scan cannot
// pick up another canvas's records.
const (
	cursorKeyPrefix   = "cursor:"
	presenceKeyPrefix = "presence:"
)

// CursorTracker keeps TTL-bound live cursor positions in the shared store.
//
// Every method degrades silently on store failure: live cursors are a
// best-effort feature and must never block canvas-object persistence.
type CursorTracker struct {
	log   *slog.Logger
	store kv.Store
	ttl   time.Duration
}

// NewCursorTracker constructs a tracker with the default TTL.
func NewCursorTracker(log *slog.Logger, store kv.Store) *CursorTracker {
	return &CursorTracker{log: log, store: store, ttl: cursorTTL}
}

func cursorKey(canvasID, userID string) string {
	return cursorKeyPrefix + canvasID + ":" + userID
}

// Set overwrites the cursor record for (canvas, user), refreshing its TTL.
func (t *CursorTracker) Set(ctx context.Context, canvasID string, info v1.CursorInfo) {
	raw, err := json.Marshal(info)
	if err != nil {
		t.log.Error("cursor.marshal.fail", "err", err)
		return
	}
	if err := t.store.SetEx(ctx, cursorKey(canvasID, info.UserID), string(raw), t.ttl); err != nil {
		t.log.Warn("cursor.store.degraded", "canvas_id", canvasID, "err", err)
	}
}

// Remove deletes the cursor record for (canvas, user).
func (t *CursorTracker) Remove(ctx context.Context, canvasID, userID string) {
	if err := t.store.Delete(ctx, cursorKey(canvasID, userID)); err != nil {
		t.log.Warn("cursor.store.degraded", "canvas_id", canvasID, "err", err)
	}
}

// Refresh extends the TTL of the cursor record without rewriting it.
func (t *CursorTracker) Refresh(ctx context.Context, canvasID, userID string) {
	if err := t.store.Expire(ctx, cursorKey(canvasID, userID), t.ttl); err != nil {
		t.log.Warn("cursor.store.degraded", "canvas_id", canvasID, "err", err)
	}
}

// Snapshot returns a point-in-time scan of all live cursors for a canvas.
// A store failure yields an empty snapshot, never an error to the caller.
func (t *CursorTracker) Snapshot(ctx context.Context, canvasID string) []v1.CursorInfo {
	raw, err := t.store.ScanPrefix(ctx, cursorKeyPrefix+canvasID+":")
	if err != nil {
		t.log.Warn("cursor.store.degraded", "canvas_id", canvasID, "err", err)
		return nil
	}

	out := make([]v1.CursorInfo, 0, len(raw))
	for _, v := range raw {
		var info v1.CursorInfo
		if err := json.Unmarshal([]byte(v), &info); err != nil {
			continue
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// PresenceTracker keeps TTL-bound online records in the shared store.
// Same degradation contract as CursorTracker.
type PresenceTracker struct {
	log   *slog.Logger
	store kv.Store
	ttl   time.Duration
}

// NewPresenceTracker constructs a tracker with the default TTL.
func NewPresenceTracker(log *slog.Logger, store kv.Store) *PresenceTracker {
	return &PresenceTracker{log: log, store: store, ttl: presenceTTL}
}

func presenceKey(canvasID, userID string) string {
	return presenceKeyPrefix + canvasID + ":" + userID
}

// Set overwrites the presence record for (canvas, user), refreshing its TTL.
func (t *PresenceTracker) Set(ctx context.Context, canvasID string, info v1.PresenceInfo) {
	raw, err := json.Marshal(info)
	if err != nil {
		t.log.Error("presence.marshal.fail", "err", err)
		return
	}
	if err := t.store.SetEx(ctx, presenceKey(canvasID, info.UserID), string(raw), t.ttl); err != nil {
		t.log.Warn("presence.store.degraded", "canvas_id", canvasID, "err", err)
	}
}

// Remove deletes the presence record for (canvas, user).
func (t *PresenceTracker) Remove(ctx context.Context, canvasID, userID string) {
	if err := t.store.Delete(ctx, presenceKey(canvasID, userID)); err != nil {
		t.log.Warn("presence.store.degraded", "canvas_id", canvasID, "err", err)
	}
}

// Refresh extends the TTL of the presence record without rewriting it.
func (t *PresenceTracker) Refresh(ctx context.Context, canvasID, userID string) {
	if err := t.store.Expire(ctx, presenceKey(canvasID, userID), t.ttl); err != nil {
		t.log.Warn("presence.store.degraded", "canvas_id", canvasID, "err", err)
	}
}

// Snapshot returns a point-in-time scan of all online users for a canvas.
func (t *PresenceTracker) Snapshot(ctx context.Context, canvasID string) []v1.PresenceInfo {
	raw, err := t.store.ScanPrefix(ctx, presenceKeyPrefix+canvasID+":")
	if err != nil {
		t.log.Warn("presence.store.degraded", "canvas_id", canvasID, "err", err)
		return nil
	}

	out := make([]v1.PresenceInfo, 0, len(raw))
	for _, v := range raw {
		var info v1.PresenceInfo
		if err := json.Unmarshal([]byte(v), &info); err != nil {
			continue
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}
