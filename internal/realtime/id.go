package realtime

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// newID returns a ULID string. ULIDs are preferable to random hex for
// tracing and ordering in logs.
func newID(now time.Time) string {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		// crypto/rand failing is effectively unrecoverable; return the
		// zero ULID so callers still produce a well-formed envelope.
		return ulid.ULID{}.String()
	}
	return id.String()
}
