package cache

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Policy configures entry lifetimes.
type Policy struct {
	// DefaultTTL is the TTL to use when the response does not specify one.
	// If zero, caching is disabled by default.
	DefaultTTL time.Duration

	// MaxTTL is the maximum allowed TTL. Override TTLs are clamped to this.
	// If zero, no maximum is enforced.
	MaxTTL time.Duration
}

// DefaultPolicy returns the default caching policy.
// DefaultTTL: 5 minutes, MaxTTL: 1 hour
func DefaultPolicy() Policy {
	return Policy{
		DefaultTTL: 5 * time.Minute,
		MaxTTL:     1 * time.Hour,
	}
}

// ShouldCache returns true if caching is enabled by this policy.
func (p Policy) ShouldCache() bool {
	return p.DefaultTTL > 0
}

// EffectiveTTL returns the TTL to use, applying defaults and clamping.
func (p Policy) EffectiveTTL(override time.Duration) time.Duration {
	ttl := override
	if ttl <= 0 {
		ttl = p.DefaultTTL
	}
	if p.MaxTTL > 0 && ttl > p.MaxTTL {
		ttl = p.MaxTTL
	}
	return ttl
}

// TTLFor returns the TTL for a handler response. Cache-Control no-store or
// private disables storage; max-age overrides DefaultTTL, still clamped to
// MaxTTL.
func (p Policy) TTLFor(h http.Header) time.Duration {
	var override time.Duration
	for _, directive := range strings.Split(h.Get("Cache-Control"), ",") {
		name, value, _ := strings.Cut(strings.TrimSpace(strings.ToLower(directive)), "=")
		switch name {
		case "no-store", "private":
			return 0
		case "max-age":
			secs, err := strconv.Atoi(value)
			if err != nil {
				continue
			}
			if secs <= 0 {
				return 0
			}
			override = time.Duration(secs) * time.Second
		}
	}
	if override == 0 && !p.ShouldCache() {
		return 0
	}
	return p.EffectiveTTL(override)
}
