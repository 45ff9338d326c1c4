package realtime

import (
	"encoding/json"
	"testing"
)

func TestDefaultSanitizer_StripsControlRunes(t *testing.T) {
	s := DefaultSanitizer{}

	tests := []struct {
		in   string
		want string
	}{
		{in: "hello\x00world", want: "helloworld"},
		{in: "  padded  ", want: "padded"},
		{in: "keep\nnewlines\tand tabs", want: "keep\nnewlines\tand tabs"},
		{in: "\x1b[31mansi\x1b[0m", want: "[31mansi[0m"},
		{in: "", want: ""},
	}
	for _, tc := range tests {
		if got := s.Sanitize(tc.in); got != tc.want {
			t.Fatalf("Sanitize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSanitizeJSON_WalksNestedValues(t *testing.T) {
	raw := json.RawMessage(`{"label":" text\u0000 ","nested":{"note":"a\u0007b"},"list":[" x ",1,true]}`)

	cleaned, err := sanitizeJSON(raw, DefaultSanitizer{}, nil)
	if err != nil {
		t.Fatalf("sanitize: %v", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(cleaned, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if doc["label"] != "text" {
		t.Fatalf("label = %q", doc["label"])
	}
	if doc["nested"].(map[string]any)["note"] != "ab" {
		t.Fatalf("nested.note = %v", doc["nested"])
	}
	list := doc["list"].([]any)
	if list[0] != "x" || list[1] != float64(1) || list[2] != true {
		t.Fatalf("list = %v", list)
	}
}

func TestSanitizeJSON_ExcludedKeysPassThrough(t *testing.T) {
	raw := json.RawMessage(`{"id":"  raw\u0000id  ","label":"  clean  "}`)

	cleaned, err := sanitizeJSON(raw, DefaultSanitizer{}, map[string]struct{}{"id": {}})
	if err != nil {
		t.Fatalf("sanitize: %v", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(cleaned, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if doc["id"] != "  raw\x00id  " {
		t.Fatalf("excluded key must pass through, got %q", doc["id"])
	}
	if doc["label"] != "clean" {
		t.Fatalf("label = %q", doc["label"])
	}
}

func TestSanitizeJSON_RejectsInvalidJSON(t *testing.T) {
	if _, err := sanitizeJSON(json.RawMessage(`{broken`), DefaultSanitizer{}, nil); err == nil {
		t.Fatalf("invalid JSON must be rejected")
	}
}
