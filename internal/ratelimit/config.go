// Package ratelimit implements the adaptive multi-algorithm rate-limiting
// engine that gates every realtime event: token-bucket, sliding-window and
// fixed-window algorithms composed with burst protection, per-subject trust
// scaling and per-region scaling.
package ratelimit

import (
	"errors"
	"fmt"
	"time"
)

// Algorithm selects how request history is tracked for an action type.
type Algorithm string

const (
	AlgorithmTokenBucket   Algorithm = "token_bucket"
	AlgorithmSlidingWindow Algorithm = "sliding_window"
	AlgorithmFixedWindow   Algorithm = "fixed_window"
)

// Tier identifies the caller class used for limit scaling.
type Tier string

const (
	TierAnonymous Tier = "anonymous"
	TierStandard  Tier = "standard"
	TierPremium   Tier = "premium"
)

// Config is the per-action rate-limit configuration.
//
// TierMultiplier and GeoMultiplier hold 1.0 in the registered template; the
// limiter resolves them per request so the config seen by the algorithm is an
// immutable snapshot.
type Config struct {
	Limit          int
	Window         time.Duration
	Algorithm      Algorithm
	BurstAllowance int
	TierMultiplier float64
	GeoMultiplier  float64
}

// Validate rejects unusable configs. Validation is fail-fast: a bad config
// must be caught at registration, never per request.
func (c Config) Validate() error {
	if c.Limit < 0 {
		return fmt.Errorf("ratelimit: negative limit: %d", c.Limit)
	}
	if c.Window <= 0 {
		return fmt.Errorf("ratelimit: non-positive window: %s", c.Window)
	}
	if c.BurstAllowance < 0 {
		return fmt.Errorf("ratelimit: negative burst allowance: %d", c.BurstAllowance)
	}
	switch c.Algorithm {
	case AlgorithmTokenBucket, AlgorithmSlidingWindow, AlgorithmFixedWindow:
		return nil
	case "":
		return errors.New("ratelimit: missing algorithm")
	default:
		return fmt.Errorf("ratelimit: unknown algorithm: %q", c.Algorithm)
	}
}

func (c Config) withDefaults() Config {
	if c.TierMultiplier == 0 {
		c.TierMultiplier = 1.0
	}
	if c.GeoMultiplier == 0 {
		c.GeoMultiplier = 1.0
	}
	return c
}

// DefaultTierMultipliers scales limits per caller class. Anonymous callers
// get half the budget of authenticated ones.
func DefaultTierMultipliers() map[Tier]float64 {
	return map[Tier]float64{
		TierAnonymous: 0.5,
		TierStandard:  1.0,
		TierPremium:   2.0,
	}
}
