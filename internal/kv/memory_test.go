package kv

import (
	"context"
	"testing"
	"time"
)

func newClockedStore(start time.Time) (*MemoryStore, *time.Time) {
	cur := start
	s := NewMemoryStore()
	s.SetClock(func() time.Time { return cur })
	return s, &cur
}

func TestMemoryStore_SetExExpires(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s, cur := newClockedStore(start)
	ctx := context.Background()

	if err := s.SetEx(ctx, "cursor:c1:u1", `{"x":1}`, 30*time.Second); err != nil {
		t.Fatalf("setex: %v", err)
	}

	v, ok, err := s.Get(ctx, "cursor:c1:u1")
	if err != nil || !ok || v != `{"x":1}` {
		t.Fatalf("get before expiry = (%q, %v, %v)", v, ok, err)
	}

	*cur = start.Add(29 * time.Second)
	if _, ok, _ := s.Get(ctx, "cursor:c1:u1"); !ok {
		t.Fatalf("entry must still be live inside the TTL")
	}

	*cur = start.Add(30 * time.Second)
	if _, ok, _ := s.Get(ctx, "cursor:c1:u1"); ok {
		t.Fatalf("entry must expire at the TTL boundary")
	}
}

func TestMemoryStore_ExpireRefreshesTTL(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s, cur := newClockedStore(start)
	ctx := context.Background()

	if err := s.SetEx(ctx, "presence:c1:u1", "{}", 60*time.Second); err != nil {
		t.Fatalf("setex: %v", err)
	}

	// Heartbeat at 50s pushes expiry out to 110s.
	*cur = start.Add(50 * time.Second)
	if err := s.Expire(ctx, "presence:c1:u1", 60*time.Second); err != nil {
		t.Fatalf("expire: %v", err)
	}

	*cur = start.Add(100 * time.Second)
	if _, ok, _ := s.Get(ctx, "presence:c1:u1"); !ok {
		t.Fatalf("refreshed entry must survive the original deadline")
	}

	*cur = start.Add(111 * time.Second)
	if _, ok, _ := s.Get(ctx, "presence:c1:u1"); ok {
		t.Fatalf("refreshed entry must expire at the new deadline")
	}
}

func TestMemoryStore_ExpireMissingKeyIsNoop(t *testing.T) {
	s, _ := newClockedStore(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	if err := s.Expire(context.Background(), "nope", time.Minute); err != nil {
		t.Fatalf("expire on missing key: %v", err)
	}
}

func TestMemoryStore_IncrWindowArmsTTLOnce(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s, cur := newClockedStore(start)
	ctx := context.Background()

	n, err := s.IncrWindow(ctx, "ratelimit:fixed:k", time.Minute)
	if err != nil || n != 1 {
		t.Fatalf("first incr = (%d, %v)", n, err)
	}

	// Later increments must not push the window out.
	*cur = start.Add(59 * time.Second)
	n, err = s.IncrWindow(ctx, "ratelimit:fixed:k", time.Minute)
	if err != nil || n != 2 {
		t.Fatalf("second incr = (%d, %v)", n, err)
	}

	*cur = start.Add(61 * time.Second)
	n, err = s.IncrWindow(ctx, "ratelimit:fixed:k", time.Minute)
	if err != nil || n != 1 {
		t.Fatalf("expected fresh window counter 1, got (%d, %v)", n, err)
	}
}

func TestMemoryStore_ScanPrefixSkipsExpired(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s, cur := newClockedStore(start)
	ctx := context.Background()

	_ = s.SetEx(ctx, "cursor:c1:u1", "a", 10*time.Second)
	_ = s.SetEx(ctx, "cursor:c1:u2", "b", 60*time.Second)
	_ = s.SetEx(ctx, "cursor:c2:u3", "c", 60*time.Second)

	*cur = start.Add(30 * time.Second)
	got, err := s.ScanPrefix(ctx, "cursor:c1:")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(got) != 1 || got["cursor:c1:u2"] != "b" {
		t.Fatalf("unexpected scan result: %v", got)
	}
}

func TestMemoryStore_Delete(t *testing.T) {
	s, _ := newClockedStore(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()

	_ = s.SetEx(ctx, "k", "v", time.Minute)
	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Fatalf("deleted key must be gone")
	}
}
