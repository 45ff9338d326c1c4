package ratelimit

import (
	"math"
	"sync"
	"time"
)

// Burst protection defaults.
const (
	defaultBurstWindow       = 5 * time.Second
	defaultMaxBurst          = 10
	defaultBackoffMultiplier = 2.0
)

// BurstProtector detects pathological rapid-fire traffic per subject.
// It runs before the main algorithm in the decision chain, so a burst denial
// never even touches the per-action budget.
type BurstProtector struct {
	mu      sync.Mutex
	events  map[string][]time.Time
	window  time.Duration
	max     int
	backoff float64
}

// NewBurstProtector constructs a protector, substituting defaults for
// non-positive inputs.
func NewBurstProtector(window time.Duration, maxBurst int, backoffMultiplier float64) *BurstProtector {
	if window <= 0 {
		window = defaultBurstWindow
	}
	if maxBurst <= 0 {
		maxBurst = defaultMaxBurst
	}
	if backoffMultiplier <= 1 {
		backoffMultiplier = defaultBackoffMultiplier
	}
	return &BurstProtector{
		events:  make(map[string][]time.Time),
		window:  window,
		max:     maxBurst,
		backoff: backoffMultiplier,
	}
}

// Check records an attempt at time now and reports whether it stays under
// the burst ceiling. A per-action allowance widens the ceiling for actions
// configured with extra burst headroom. Denials keep recording attempts, so
// a subject that keeps hammering sees its backoff grow exponentially with
// the excess.
func (b *BurstProtector) Check(subject string, now time.Time, allowance int) (allowed bool, backoff time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	cut := now.Add(-b.window)
	recent := b.events[subject][:0]
	for _, t := range b.events[subject] {
		if t.After(cut) {
			recent = append(recent, t)
		}
	}
	recent = append(recent, now)
	b.events[subject] = recent

	max := b.max
	if allowance > 0 {
		max += allowance
	}
	if len(recent) <= max {
		return true, 0
	}

	excess := len(recent) - max
	wait := float64(b.window) * math.Pow(b.backoff, float64(excess))
	return false, time.Duration(wait)
}

// Reset drops all tracked subjects. Intended for tests.
func (b *BurstProtector) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = make(map[string][]time.Time)
}
