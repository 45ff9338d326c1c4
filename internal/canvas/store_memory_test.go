package canvas

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestMemoryStore_PermissionDefaultsAndOverrides(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	s.SeedCanvas("c1", LevelView)
	s.SeedPermission("c1", "user:editor", LevelEdit)
	s.SeedPermission("c1", "user:banned", LevelNone)

	tests := []struct {
		subject string
		want    Level
	}{
		{subject: "user:editor", want: LevelEdit},
		{subject: "user:banned", want: LevelNone},
		{subject: "user:random", want: LevelView},
	}
	for _, tc := range tests {
		got, err := s.Permission(ctx, "c1", tc.subject)
		if err != nil {
			t.Fatalf("permission(%s): %v", tc.subject, err)
		}
		if got != tc.want {
			t.Fatalf("permission(%s) = %v, want %v", tc.subject, got, tc.want)
		}
	}

	if _, err := s.Permission(ctx, "missing", "user:editor"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing canvas, got %v", err)
	}
}

func TestLevelAllows(t *testing.T) {
	if LevelNone.Allows(LevelView) {
		t.Fatalf("none must not allow view")
	}
	if !LevelView.Allows(LevelView) {
		t.Fatalf("view must allow view")
	}
	if LevelView.Allows(LevelEdit) {
		t.Fatalf("view must not allow edit")
	}
	if !LevelEdit.Allows(LevelView) {
		t.Fatalf("edit must allow view")
	}
}

func TestMemoryStore_ObjectLifecycle(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	s.SeedCanvas("c1", LevelEdit)

	obj, err := s.CreateObject(ctx, CreateObjectInput{
		CanvasID: "c1",
		UserID:   "user:1",
		Data:     json.RawMessage(`{"type":"rect","x":10,"y":20,"fill":"red"}`),
		Now:      now,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if obj.ID == "" {
		t.Fatalf("create must assign an id")
	}
	if obj.UpdatedBy != "user:1" || !obj.UpdatedAt.Equal(now) {
		t.Fatalf("unexpected audit fields: %+v", obj)
	}

	later := now.Add(5 * time.Second)
	updated, err := s.UpdateObject(ctx, UpdateObjectInput{
		CanvasID:   "c1",
		UserID:     "user:2",
		ObjectID:   obj.ID,
		Properties: json.RawMessage(`{"x":99,"stroke":"blue"}`),
		Now:        later,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	var data map[string]any
	if err := json.Unmarshal(updated.Data, &data); err != nil {
		t.Fatalf("unmarshal merged data: %v", err)
	}
	if data["x"] != float64(99) || data["y"] != float64(20) || data["stroke"] != "blue" || data["fill"] != "red" {
		t.Fatalf("merge must overlay top-level keys, got %v", data)
	}
	if updated.UpdatedBy != "user:2" {
		t.Fatalf("last write must win on audit fields, got %q", updated.UpdatedBy)
	}

	if err := s.DeleteObject(ctx, "c1", obj.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.DeleteObject(ctx, "c1", obj.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("double delete must be ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_UpdateMissingObject(t *testing.T) {
	s := NewMemoryStore()
	s.SeedCanvas("c1", LevelEdit)

	_, err := s.UpdateObject(context.Background(), UpdateObjectInput{
		CanvasID:   "c1",
		ObjectID:   "ghost",
		Properties: json.RawMessage(`{"x":1}`),
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMergeProperties(t *testing.T) {
	merged, err := MergeProperties(
		json.RawMessage(`{"a":1,"b":{"deep":true},"c":"keep"}`),
		json.RawMessage(`{"a":2,"b":"flat"}`),
	)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}

	var data map[string]any
	if err := json.Unmarshal(merged, &data); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	// Overlay is top-level: nested values are replaced wholesale.
	if data["a"] != float64(2) || data["b"] != "flat" || data["c"] != "keep" {
		t.Fatalf("unexpected merge result: %v", data)
	}
}

func TestMergeProperties_RejectsNonObjects(t *testing.T) {
	if _, err := MergeProperties(json.RawMessage(`[1,2]`), json.RawMessage(`{"a":1}`)); err == nil {
		t.Fatalf("array base must be rejected")
	}
	if _, err := MergeProperties(json.RawMessage(`{"a":1}`), json.RawMessage(`"str"`)); err == nil {
		t.Fatalf("scalar overlay must be rejected")
	}
}
