// Package kv provides the shared ephemeral key-value store used for
// presence/cursor records and cross-instance rate-limit counters.
package kv

import (
	"context"
	"time"
)

// Store is a key-value store with per-key expiration and atomic counters.
//
// Requirements:
//   - SetEx and IncrWindow must be atomic per key so concurrent callers
//     cannot under-count.
//   - A key past its TTL behaves exactly like a key that never existed.
type Store interface {
	// Get returns the value for key, reporting whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)

	// SetEx sets key to value with a TTL, replacing any prior value.
	SetEx(ctx context.Context, key, value string, ttl time.Duration) error

	// IncrWindow atomically increments key and arms its TTL on first
	// increment. The TTL is the window reset; callers never reset counters.
	IncrWindow(ctx context.Context, key string, window time.Duration) (int64, error)

	// Expire refreshes the TTL of an existing key without rewriting it.
	// Refreshing a missing key is not an error.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// ScanPrefix returns all live key/value pairs whose key starts with prefix.
	ScanPrefix(ctx context.Context, prefix string) (map[string]string, error)

	Close() error
}
