package realtime

import (
	"encoding/json"
	"strings"
	"unicode"
)

// Sanitizer cleans untrusted string content before it reaches handlers or
// other clients. Full HTML/content sanitization is an external collaborator;
// the default implementation only strips control characters and trims.
type Sanitizer interface {
	Sanitize(s string) string
}

// DefaultSanitizer strips control characters and surrounding whitespace.
type DefaultSanitizer struct{}

// Sanitize removes control runes and trims the result.
func (DefaultSanitizer) Sanitize(s string) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(cleaned)
}

// sanitizeJSON walks a raw JSON document and sanitizes every string value.
// Keys in the exclusion set are passed through unmodified: opaque
// credentials and identifiers must not be altered.
func sanitizeJSON(raw json.RawMessage, s Sanitizer, excluded map[string]struct{}) (json.RawMessage, error) {
	if len(raw) == 0 {
		return raw, nil
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}

	doc = sanitizeValue(doc, s, excluded)
	return json.Marshal(doc)
}

func sanitizeValue(v any, s Sanitizer, excluded map[string]struct{}) any {
	switch t := v.(type) {
	case string:
		return s.Sanitize(t)
	case map[string]any:
		for k, child := range t {
			if _, skip := excluded[k]; skip {
				continue
			}
			t[k] = sanitizeValue(child, s, excluded)
		}
		return t
	case []any:
		for i, child := range t {
			t[i] = sanitizeValue(child, s, excluded)
		}
		return t
	default:
		return v
	}
}
