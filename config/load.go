package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/jonwraymond/guardchain/httpguard"
	"github.com/jonwraymond/guardchain/observe"
	"github.com/jonwraymond/guardchain/ratelimit"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "GUARDCHAIN_"

var defaults = map[string]any{
	"server.addr":                    ":8080",
	"server.read_timeout":            "10s",
	"server.write_timeout":           "30s",
	"server.shutdown_timeout":        "15s",
	"server.max_body_bytes":          httpguard.DefaultMaxBodyBytes,
	"observe.service_name":           "guardchain",
	"observe.tracing.exporter":       "none",
	"observe.tracing.sample_pct":     1.0,
	"observe.metrics.exporter":       "none",
	"observe.logging.enabled":        true,
	"observe.logging.level":          "info",
	"trace.header":                   observe.DefaultTraceHeader,
	"trace.mirror":                   true,
	"bulkhead.max_concurrent":        100,
	"bulkhead.retry_after":           "1s",
	"auth.cache.ttl":                 "1m",
	"ratelimit.algorithm":            string(ratelimit.FixedWindow),
	"ratelimit.max":                  60,
	"ratelimit.window":               "1m",
	"ratelimit.key":                  "addr",
	"ratelimit.store":                "memory",
	"cache.store":                    "memory",
	"cache.size":                     1024,
	"cache.default_ttl":              "5m",
	"cache.max_ttl":                  "1h",
	"breaker.max_failures":           5,
	"breaker.reset_timeout":          "30s",
	"breaker.half_open_max_requests": 1,
}

// Load reads path (optional), applies environment overrides and defaults,
// and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config: file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("config: load %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("config: load environment: %w", err)
	}

	for key, val := range defaults {
		if !k.Exists(key) {
			if err := k.Set(key, val); err != nil {
				return nil, fmt.Errorf("config: default %s: %w", key, err)
			}
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	oc := c.Observe.ToObserve()
	if err := oc.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("%w: observe: %w", ErrInvalid, err))
	}

	if c.Server.MaxBodyBytes <= 0 {
		fail("server.max_body_bytes must be positive")
	}
	if c.Server.ShutdownTimeout < 0 {
		fail("server.shutdown_timeout must not be negative")
	}

	if c.Bulkhead.Enabled && c.Bulkhead.MaxConcurrent <= 0 {
		fail("bulkhead.max_concurrent must be positive")
	}

	for i, s := range c.Auth.Strategies {
		if strings.TrimSpace(s.Type) == "" {
			fail("auth.strategies[%d].type is required", i)
		}
	}
	if c.Auth.Authorization.Enabled() && len(c.Auth.Strategies) == 0 {
		fail("auth.authorization requires at least one auth strategy")
	}

	if c.RateLimit.Enabled {
		switch ratelimit.Algorithm(c.RateLimit.Algorithm) {
		case ratelimit.FixedWindow, ratelimit.SlidingWindow, ratelimit.TokenBucket:
		default:
			fail("ratelimit.algorithm %q is not one of fixed_window, sliding_window, token_bucket", c.RateLimit.Algorithm)
		}
		if c.RateLimit.Max <= 0 {
			fail("ratelimit.max must be positive")
		}
		if c.RateLimit.Window <= 0 {
			fail("ratelimit.window must be positive")
		}
		switch c.RateLimit.Key {
		case "addr", "principal":
		case "header":
			if c.RateLimit.KeyHeader == "" {
				fail("ratelimit.key_header is required when ratelimit.key is header")
			}
		default:
			fail("ratelimit.key %q is not one of addr, principal, header", c.RateLimit.Key)
		}
		if err := checkStore("ratelimit.store", c.RateLimit.Store); err != nil {
			errs = append(errs, err)
		}
	}

	if c.Cache.Enabled {
		if c.Cache.DefaultTTL <= 0 {
			fail("cache.default_ttl must be positive")
		}
		if c.Cache.MaxTTL > 0 && c.Cache.MaxTTL < c.Cache.DefaultTTL {
			fail("cache.max_ttl must not be below cache.default_ttl")
		}
		if err := checkStore("cache.store", c.Cache.Store); err != nil {
			errs = append(errs, err)
		}
	}

	if c.Breaker.Enabled && c.Breaker.MaxFailures <= 0 {
		fail("breaker.max_failures must be positive")
	}

	return errors.Join(errs...)
}

func checkStore(field, store string) error {
	switch store {
	case "memory", "redis":
		return nil
	default:
		return fmt.Errorf("%w: %s %q is not one of memory, redis", ErrInvalid, field, store)
	}
}

// usesRedis reports whether any enabled component stores state in redis.
func (c *Config) usesRedis() bool {
	return (c.RateLimit.Enabled && c.RateLimit.Store == "redis") ||
		(c.Cache.Enabled && c.Cache.Store == "redis")
}
