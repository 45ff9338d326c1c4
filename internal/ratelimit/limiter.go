package ratelimit

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"slate/internal/kv"
	"slate/internal/metrics"
)

// Denial reasons carried in Result.Reason and the denial metric.
const (
	ReasonBurst = "burst_protection"
	ReasonLimit = "rate_limit_exceeded"
)

// Result is the single decision shape shared by every caller, HTTP and
// realtime alike.
type Result struct {
	Allowed    bool
	Remaining  int
	ResetTime  time.Time
	RetryAfter time.Duration
	Reason     string
}

// CheckInput describes one rate-limit decision request.
type CheckInput struct {
	Subject string
	Action  string
	IP      string
	Tier    Tier
	// Meta optionally carries behavior signals fed to the trust engine.
	// Feeding is asynchronous and never affects the current decision.
	Meta map[string]float64
}

// Limiter composes burst protection, trust scaling, geo scaling and the
// per-action algorithm into one allow/deny decision.
//
// Token-bucket and sliding-window state is per process; fixed-window
// counters live in the shared store so multiple instances enforce limits
// consistently. Any store failure fails open: availability of collaboration
// features outranks strict enforcement.
type Limiter struct {
	log     *slog.Logger
	store   kv.Store
	metrics *metrics.Metrics

	burst  *BurstProtector
	trust  *TrustEngine
	geo    *GeoMultiplier
	scorer BehaviorScorer

	tierMultipliers map[Tier]float64

	now func() time.Time

	mu      sync.Mutex
	configs map[string]Config
	buckets map[string]*tokenBucketState
	windows map[string]*slidingWindowState
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithStore sets the shared store backing fixed-window counters.
func WithStore(store kv.Store) Option {
	return func(l *Limiter) { l.store = store }
}

// WithMetrics wires denial counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Limiter) { l.metrics = m }
}

// WithBurstProtector replaces the default burst protector.
func WithBurstProtector(b *BurstProtector) Option {
	return func(l *Limiter) {
		if b != nil {
			l.burst = b
		}
	}
}

// WithGeoMultiplier sets per-region limit scaling.
func WithGeoMultiplier(g *GeoMultiplier) Option {
	return func(l *Limiter) { l.geo = g }
}

// WithBehaviorScorer replaces the neutral behavior-scoring stub.
func WithBehaviorScorer(s BehaviorScorer) Option {
	return func(l *Limiter) {
		if s != nil {
			l.scorer = s
		}
	}
}

// WithTierMultipliers replaces the default tier scaling table.
func WithTierMultipliers(t map[Tier]float64) Option {
	return func(l *Limiter) {
		if len(t) > 0 {
			l.tierMultipliers = t
		}
	}
}

// WithClock replaces the limiter's clock. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

// NewLimiter constructs a Limiter with default burst protection and a
// running trust engine.
func NewLimiter(log *slog.Logger, opts ...Option) *Limiter {
	if log == nil {
		log = slog.Default()
	}

	l := &Limiter{
		log:             log,
		burst:           NewBurstProtector(0, 0, 0),
		trust:           NewTrustEngine(),
		scorer:          NeutralScorer{},
		tierMultipliers: DefaultTierMultipliers(),
		now:             func() time.Time { return time.Now().UTC() },
		configs:         make(map[string]Config),
		buckets:         make(map[string]*tokenBucketState),
		windows:         make(map[string]*slidingWindowState),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// Close stops the trust engine.
func (l *Limiter) Close() {
	l.trust.Close()
}

// Trust exposes the trust engine, mainly for tests and admin surfaces.
func (l *Limiter) Trust() *TrustEngine { return l.trust }

// Register installs the config for an action type. Validation is fail-fast.
func (l *Limiter) Register(action string, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.configs[strings.TrimSpace(action)] = cfg.withDefaults()
	return nil
}

// Reset drops all in-process limiter state. Intended for tests.
func (l *Limiter) Reset() {
	l.mu.Lock()
	l.buckets = make(map[string]*tokenBucketState)
	l.windows = make(map[string]*slidingWindowState)
	l.mu.Unlock()

	l.burst.Reset()
	l.trust.Reset()
}

// Check runs the full decision chain for one request.
func (l *Limiter) Check(ctx context.Context, in CheckInput) Result {
	now := l.now()

	l.mu.Lock()
	cfg, ok := l.configs[in.Action]
	l.mu.Unlock()

	// No config means the action is not rate limited.
	if !ok {
		return Result{Allowed: true, Remaining: -1, ResetTime: now}
	}

	// Burst protection runs first so rapid-fire traffic never reaches the
	// main algorithm.
	if allowed, backoff := l.burst.Check(in.Subject, now, cfg.BurstAllowance); !allowed {
		l.log.Warn("ratelimit.burst.denied",
			"subject", in.Subject,
			"action", in.Action,
			"backoff_ms", backoff.Milliseconds(),
		)
		l.deniedMetric(in.Action, ReasonBurst)
		return Result{
			Allowed:    false,
			Remaining:  0,
			ResetTime:  now.Add(backoff),
			RetryAfter: backoff,
			Reason:     ReasonBurst,
		}
	}

	// Resolve the immutable per-request config snapshot.
	cfg.TierMultiplier *= l.tierMultiplier(in.Tier)
	cfg.GeoMultiplier = l.geo.Multiplier(in.IP)
	trustMult := l.trust.Multiplier(in.Subject)

	effective := int(math.Floor(float64(cfg.Limit) * cfg.TierMultiplier * cfg.GeoMultiplier * trustMult))
	if effective < 0 {
		effective = 0
	}

	res := l.evaluate(ctx, in, cfg, effective, now)

	// Feed behavior signals after the decision; never blocks.
	if len(in.Meta) > 0 {
		l.trust.Feed(in.Subject, l.scorer.Score(in.Meta))
	}

	if !res.Allowed {
		l.deniedMetric(in.Action, res.Reason)
	}
	return res
}

func (l *Limiter) evaluate(ctx context.Context, in CheckInput, cfg Config, effective int, now time.Time) Result {
	key := in.Subject + "|" + in.Action

	switch cfg.Algorithm {
	case AlgorithmTokenBucket:
		// Capacity is exactly the effective limit; BurstAllowance widens the
		// burst-protection ceiling instead so momentary spikes are judged by
		// the protector, not by extra bucket headroom.
		capacity := float64(effective)
		refillRate := float64(effective) / cfg.Window.Seconds()

		l.mu.Lock()
		st := l.buckets[key]
		if st == nil {
			st = &tokenBucketState{}
			l.buckets[key] = st
		}
		allowed, remaining, retry := st.check(now, 1, capacity, refillRate)
		l.mu.Unlock()

		res := Result{
			Allowed:   allowed,
			Remaining: int(remaining),
			ResetTime: now.Add(cfg.Window),
		}
		if !allowed {
			res.RetryAfter = retry
			res.Reason = ReasonLimit
		}
		return res

	case AlgorithmSlidingWindow:
		l.mu.Lock()
		st := l.windows[key]
		if st == nil {
			st = &slidingWindowState{}
			l.windows[key] = st
		}
		allowed, remaining, retry := st.check(now, effective, cfg.Window)
		l.mu.Unlock()

		res := Result{
			Allowed:   allowed,
			Remaining: remaining,
			ResetTime: now.Add(cfg.Window),
		}
		if !allowed {
			res.RetryAfter = retry
			res.Reason = ReasonLimit
		}
		return res

	case AlgorithmFixedWindow:
		if l.store == nil {
			// No shared store configured: nothing to count against.
			return Result{Allowed: true, Remaining: effective, ResetTime: now.Add(cfg.Window)}
		}

		count, err := l.store.IncrWindow(ctx, "ratelimit:fixed:"+key, cfg.Window)
		if err != nil {
			// Fail open: the shared store being down must not take
			// collaboration down with it.
			l.log.Error("ratelimit.store.fail_open", "action", in.Action, "err", err)
			return Result{Allowed: true, Remaining: effective, ResetTime: now.Add(cfg.Window)}
		}

		allowed, remaining := checkFixedWindow(count, effective)
		res := Result{
			Allowed:   allowed,
			Remaining: remaining,
			ResetTime: now.Add(cfg.Window),
		}
		if !allowed {
			// Upper bound: the store interface exposes no per-key TTL, so
			// the actual remainder of the window is unknown here. Requests
			// late in the window wait less than reported.
			res.RetryAfter = cfg.Window
			res.Reason = ReasonLimit
		}
		return res

	default:
		// Unreachable for registered configs; Validate rejects unknown algorithms.
		return Result{Allowed: true, Remaining: effective, ResetTime: now.Add(cfg.Window)}
	}
}

func (l *Limiter) tierMultiplier(tier Tier) float64 {
	if m, ok := l.tierMultipliers[tier]; ok && m > 0 {
		return m
	}
	return 1.0
}

func (l *Limiter) deniedMetric(action, reason string) {
	if l.metrics == nil {
		return
	}
	l.metrics.RateLimitDenials.WithLabelValues(action, reason).Inc()
}
