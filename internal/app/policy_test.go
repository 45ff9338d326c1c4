package app

import (
	"context"
	"testing"

	"slate/internal/kv"
	"slate/internal/metrics"
	"slate/internal/ratelimit"
)

func TestNewLimiter_RegistersDefaultPolicies(t *testing.T) {
	l, err := NewLimiter(testLogger(), kv.NewMemoryStore(), metrics.New())
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	defer l.Close()

	ctx := context.Background()

	// A registered action returns a concrete budget.
	res := l.Check(ctx, ratelimit.CheckInput{
		Subject: "user:amy",
		Action:  "object_created",
		Tier:    ratelimit.TierStandard,
	})
	if !res.Allowed || res.Remaining < 0 {
		t.Fatalf("object_created must be governed, got %+v", res)
	}

	// Heartbeat carries no policy on purpose; it passes untouched.
	res = l.Check(ctx, ratelimit.CheckInput{
		Subject: "user:amy",
		Action:  "heartbeat",
		Tier:    ratelimit.TierStandard,
	})
	if !res.Allowed || res.Remaining != -1 {
		t.Fatalf("heartbeat must be ungoverned, got %+v", res)
	}
}

func TestNewLimiter_EnvOverride(t *testing.T) {
	t.Setenv("SLATE_RL_CURSOR_MOVE_LIMIT", "1")

	l, err := NewLimiter(testLogger(), kv.NewMemoryStore(), nil)
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	defer l.Close()

	ctx := context.Background()
	in := ratelimit.CheckInput{
		Subject: "user:amy",
		Action:  "cursor_move",
		Tier:    ratelimit.TierStandard,
	}
	if res := l.Check(ctx, in); !res.Allowed {
		t.Fatalf("first request within override must pass, got %+v", res)
	}
	if res := l.Check(ctx, in); res.Allowed {
		t.Fatalf("override of 1 must deny the second request")
	}
}

func TestGeoFromEnv(t *testing.T) {
	t.Run("unset yields nil", func(t *testing.T) {
		if geo := geoFromEnv(); geo != nil {
			t.Fatalf("expected nil without SLATE_GEO_REGIONS")
		}
	})

	t.Run("regions and multipliers", func(t *testing.T) {
		t.Setenv("SLATE_GEO_REGIONS", "10.0.0.0/8=apac, 172.16.0.0/12=emea")
		t.Setenv("SLATE_GEO_MULTIPLIERS", "apac=0.5, emea=1.5, junk=zero")

		geo := geoFromEnv()
		if geo == nil {
			t.Fatalf("expected a geo multiplier")
		}
		if m := geo.Multiplier("10.1.2.3"); m != 0.5 {
			t.Fatalf("apac multiplier = %v", m)
		}
		if m := geo.Multiplier("172.16.0.9"); m != 1.5 {
			t.Fatalf("emea multiplier = %v", m)
		}
		// Unmapped addresses keep the neutral multiplier.
		if m := geo.Multiplier("192.0.2.1"); m != 1.0 {
			t.Fatalf("unmapped multiplier = %v", m)
		}
	})
}

func TestParsePairs(t *testing.T) {
	tests := []struct {
		in   string
		want map[string]string
	}{
		{"", nil},
		{"  ,  ", nil},
		{"a=1", map[string]string{"a": "1"}},
		{" a = 1 , b = 2 ", map[string]string{"a": "1", "b": "2"}},
		{"broken,a=1", map[string]string{"a": "1"}},
		{"=v,k=", nil},
	}
	for _, tc := range tests {
		got := parsePairs(tc.in)
		if tc.want == nil {
			if got != nil {
				t.Fatalf("parsePairs(%q) = %v, want nil", tc.in, got)
			}
			continue
		}
		if len(got) != len(tc.want) {
			t.Fatalf("parsePairs(%q) = %v, want %v", tc.in, got, tc.want)
		}
		for k, v := range tc.want {
			if got[k] != v {
				t.Fatalf("parsePairs(%q)[%q] = %q, want %q", tc.in, k, got[k], v)
			}
		}
	}
}
