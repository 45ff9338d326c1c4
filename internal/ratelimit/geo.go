package ratelimit

import (
	"net"
	"strings"
)

// RegionResolver maps a client IP to a coarse region label.
// Production deployments plug in a real geo-IP backend; the static resolver
// below is enough for private ranges and tests.
type RegionResolver interface {
	Region(ip string) string
}

// GeoMultiplier scales effective limits per region. Unknown regions and
// unparseable IPs fall back to 1.0.
type GeoMultiplier struct {
	resolver    RegionResolver
	multipliers map[string]float64
}

// NewGeoMultiplier constructs a GeoMultiplier. A nil resolver resolves every
// IP to the empty region.
func NewGeoMultiplier(resolver RegionResolver, multipliers map[string]float64) *GeoMultiplier {
	if multipliers == nil {
		multipliers = make(map[string]float64)
	}
	return &GeoMultiplier{resolver: resolver, multipliers: multipliers}
}

// Multiplier returns the limit scale for an IP.
func (g *GeoMultiplier) Multiplier(ip string) float64 {
	if g == nil || g.resolver == nil || strings.TrimSpace(ip) == "" {
		return 1.0
	}

	region := g.resolver.Region(ip)
	if region == "" {
		return 1.0
	}
	if m, ok := g.multipliers[region]; ok && m > 0 {
		return m
	}
	return 1.0
}

// StaticResolver resolves regions from a fixed CIDR table.
type StaticResolver struct {
	ranges []cidrRegion
}

type cidrRegion struct {
	net    *net.IPNet
	region string
}

// NewStaticResolver builds a resolver from cidr -> region pairs.
// Invalid CIDRs are skipped.
func NewStaticResolver(table map[string]string) *StaticResolver {
	r := &StaticResolver{}
	for cidr, region := range table {
		_, n, err := net.ParseCIDR(strings.TrimSpace(cidr))
		if err != nil || region == "" {
			continue
		}
		r.ranges = append(r.ranges, cidrRegion{net: n, region: region})
	}
	return r
}

// Region returns the region for ip, or "" when no range matches.
func (r *StaticResolver) Region(ip string) string {
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil {
		return ""
	}
	for _, c := range r.ranges {
		if c.net.Contains(parsed) {
			return c.region
		}
	}
	return ""
}
