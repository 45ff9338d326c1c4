package ratelimit

import (
	"math"
	"time"
)

// tokenBucketState tracks one key's token bucket. Pure per-key math: callers
// pass an explicit now and hold whatever lock guards the state.
type tokenBucketState struct {
	tokens     float64
	lastRefill time.Time
}

// check refills by elapsed time, then consumes cost tokens if available.
// Tokens never go negative. On denial, retryAfter is how long until cost
// tokens have accrued.
func (s *tokenBucketState) check(now time.Time, cost, capacity, refillRate float64) (allowed bool, remaining float64, retryAfter time.Duration) {
	if s.lastRefill.IsZero() {
		s.tokens = capacity
		s.lastRefill = now
	}

	elapsed := now.Sub(s.lastRefill).Seconds()
	if elapsed > 0 {
		s.tokens = math.Min(capacity, s.tokens+elapsed*refillRate)
		s.lastRefill = now
	}

	if s.tokens >= cost {
		s.tokens -= cost
		return true, s.tokens, 0
	}

	if refillRate <= 0 {
		return false, s.tokens, 0
	}
	wait := (cost - s.tokens) / refillRate
	return false, s.tokens, time.Duration(wait * float64(time.Second))
}

// slidingWindowState tracks one key's request timestamps. Entries are always
// within [now-window, now] after a check.
type slidingWindowState struct {
	events []time.Time
}

// check prunes expired entries, then records now if under limit. On denial,
// retryAfter is the time until the oldest entry leaves the window.
func (s *slidingWindowState) check(now time.Time, limit int, window time.Duration) (allowed bool, remaining int, retryAfter time.Duration) {
	cut := now.Add(-window)
	dst := s.events[:0]
	for _, t := range s.events {
		if t.After(cut) {
			dst = append(dst, t)
		}
	}
	s.events = dst

	if len(s.events) >= limit {
		// limit <= 0 denies with an empty window; there is no oldest entry
		// to wait out, so the soonest anything changes is a full window away.
		retry := window
		if len(s.events) > 0 {
			retry = s.events[0].Add(window).Sub(now)
			if retry < 0 {
				retry = 0
			}
		}
		return false, 0, retry
	}

	s.events = append(s.events, now)
	return true, limit - len(s.events), 0
}

// checkFixedWindow evaluates a fixed-window count obtained from the shared
// store. The count already includes the current request (atomic increment),
// so the request is allowed while count <= limit. Window reset is driven by
// the store's TTL, never by this function.
func checkFixedWindow(count int64, limit int) (allowed bool, remaining int) {
	if count <= int64(limit) {
		return true, limit - int(count)
	}
	return false, 0
}
