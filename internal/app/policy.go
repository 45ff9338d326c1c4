package app

import (
	"strconv"
	"strings"
	"time"

	"slate/internal/kv"
	"slate/internal/metrics"
	"slate/internal/ratelimit"
)

// Rate-limit policy defaults. Object mutations ride a token bucket so short
// editing bursts are absorbed; cursor movement uses a sliding window because
// its cost is purely fan-out; the cheap bookkeeping events sit on fixed
// windows.
var defaultPolicies = map[string]ratelimit.Config{
	"join_canvas": {
		Limit:          10,
		Window:         time.Minute,
		Algorithm:      ratelimit.AlgorithmSlidingWindow,
		BurstAllowance: 2,
	},
	"leave_canvas": {
		Limit:     30,
		Window:    time.Minute,
		Algorithm: ratelimit.AlgorithmFixedWindow,
	},
	"object_created": {
		Limit:          30,
		Window:         time.Minute,
		Algorithm:      ratelimit.AlgorithmTokenBucket,
		BurstAllowance: 5,
	},
	"object_updated": {
		Limit:          60,
		Window:         time.Minute,
		Algorithm:      ratelimit.AlgorithmTokenBucket,
		BurstAllowance: 10,
	},
	"object_deleted": {
		Limit:          30,
		Window:         time.Minute,
		Algorithm:      ratelimit.AlgorithmTokenBucket,
		BurstAllowance: 5,
	},
	"cursor_move": {
		Limit:     10,
		Window:    time.Second,
		Algorithm: ratelimit.AlgorithmSlidingWindow,
	},
	"cursor_leave": {
		Limit:     30,
		Window:    time.Minute,
		Algorithm: ratelimit.AlgorithmFixedWindow,
	},
	"user_online": {
		Limit:     20,
		Window:    time.Minute,
		Algorithm: ratelimit.AlgorithmFixedWindow,
	},
	"user_offline": {
		Limit:     20,
		Window:    time.Minute,
		Algorithm: ratelimit.AlgorithmFixedWindow,
	},
	"get_cursors": {
		Limit:     30,
		Window:    time.Minute,
		Algorithm: ratelimit.AlgorithmFixedWindow,
	},
	"get_online_users": {
		Limit:     30,
		Window:    time.Minute,
		Algorithm: ratelimit.AlgorithmFixedWindow,
	},
	// heartbeat is deliberately unregistered: unknown actions pass.
}

// NewLimiter assembles the unified limiter from policy defaults and env
// overrides (SLATE_RL_<ACTION>_LIMIT / _WINDOW per action).
func NewLimiter(log Logger, store kv.Store, m *metrics.Metrics) (*ratelimit.Limiter, error) {
	opts := []ratelimit.Option{
		ratelimit.WithStore(store),
		ratelimit.WithMetrics(m),
	}

	if geo := geoFromEnv(); geo != nil {
		opts = append(opts, ratelimit.WithGeoMultiplier(geo))
	}

	l := ratelimit.NewLimiter(log, opts...)

	for action, cfg := range defaultPolicies {
		envKey := "SLATE_RL_" + strings.ToUpper(action)
		cfg.Limit = EnvInt(envKey+"_LIMIT", cfg.Limit)
		cfg.Window = EnvDuration(envKey+"_WINDOW", cfg.Window)

		if err := l.Register(action, cfg); err != nil {
			l.Close()
			return nil, err
		}
	}

	return l, nil
}

// geoFromEnv builds the CIDR-to-region multiplier table from
// SLATE_GEO_REGIONS ("10.0.0.0/8=apac,172.16.0.0/12=emea") and
// SLATE_GEO_MULTIPLIERS ("apac=0.8,emea=1.2").
func geoFromEnv() *ratelimit.GeoMultiplier {
	regions := parsePairs(EnvString("SLATE_GEO_REGIONS", ""))
	if len(regions) == 0 {
		return nil
	}

	multipliers := make(map[string]float64)
	for region, raw := range parsePairs(EnvString("SLATE_GEO_MULTIPLIERS", "")) {
		if f := parseFloat(raw); f > 0 {
			multipliers[region] = f
		}
	}

	resolver := ratelimit.NewStaticResolver(regions)
	return ratelimit.NewGeoMultiplier(resolver, multipliers)
}

func parsePairs(raw string) map[string]string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	out := make(map[string]string)
	for _, part := range strings.Split(raw, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if ok && k != "" && v != "" {
			out[k] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}
