package config

import (
	"time"

	"github.com/jonwraymond/guardchain/observe"
)

// Config is the root configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Observe   ObserveConfig   `koanf:"observe"`
	Redis     RedisConfig     `koanf:"redis"`
	Secrets   SecretsConfig   `koanf:"secrets"`
	Trace     TraceConfig     `koanf:"trace"`
	Bulkhead  BulkheadConfig  `koanf:"bulkhead"`
	Auth      AuthConfig      `koanf:"auth"`
	RateLimit RateLimitConfig `koanf:"ratelimit"`
	Cache     CacheConfig     `koanf:"cache"`
	Breaker   BreakerConfig   `koanf:"breaker"`
}

type ServerConfig struct {
	// Default: ":8080"
	Addr string `koanf:"addr"`
	// Default: 10s
	ReadTimeout time.Duration `koanf:"read_timeout"`
	// Default: 30s
	WriteTimeout time.Duration `koanf:"write_timeout"`
	// Default: 15s
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	// MaxBodyBytes bounds decoded request bodies.
	// Default: 1 MiB
	MaxBodyBytes int64 `koanf:"max_body_bytes"`
	// Production hides internal error messages from clients.
	Production bool `koanf:"production"`
}

type ObserveConfig struct {
	// Default: "guardchain"
	ServiceName string `koanf:"service_name"`
	Version     string `koanf:"version"`
	Tracing     struct {
		Enabled bool `koanf:"enabled"`
		// Default: "none"
		Exporter string `koanf:"exporter"`
		// Default: 1.0
		SamplePct float64 `koanf:"sample_pct"`
	} `koanf:"tracing"`
	Metrics struct {
		Enabled bool `koanf:"enabled"`
		// Default: "none"
		Exporter string `koanf:"exporter"`
	} `koanf:"metrics"`
	Logging struct {
		// Default: true
		Enabled bool `koanf:"enabled"`
		// Default: "info"
		Level string `koanf:"level"`
	} `koanf:"logging"`
}

// ToObserve converts to observe.Config.
func (c ObserveConfig) ToObserve() observe.Config {
	return observe.Config{
		ServiceName: c.ServiceName,
		Version:     c.Version,
		Tracing: observe.TracingConfig{
			Enabled:   c.Tracing.Enabled,
			Exporter:  c.Tracing.Exporter,
			SamplePct: c.Tracing.SamplePct,
		},
		Metrics: observe.MetricsConfig{
			Enabled:  c.Metrics.Enabled,
			Exporter: c.Metrics.Exporter,
		},
		Logging: observe.LoggingConfig{
			Enabled: c.Logging.Enabled,
			Level:   c.Logging.Level,
		},
	}
}

// RedisConfig enables the shared redis client when Addr is set.
type RedisConfig struct {
	Addr string `koanf:"addr"`
	// Password may be a secret reference.
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

// Enabled reports whether a redis address is configured.
func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

// SecretsConfig configures the resolver applied to secret-bearing options.
type SecretsConfig struct {
	// Strict rejects references that resolve to empty values.
	Strict bool `koanf:"strict"`
	// Providers maps a secret.Registry name to its options. The env provider
	// is always available.
	Providers map[string]map[string]any `koanf:"providers"`
}

type TraceConfig struct {
	// Default: "X-Request-ID"
	Header string `koanf:"header"`
	// Default: true
	Mirror bool `koanf:"mirror"`
}

type BulkheadConfig struct {
	Enabled bool `koanf:"enabled"`
	// Default: 100
	MaxConcurrent int           `koanf:"max_concurrent"`
	MaxWait       time.Duration `koanf:"max_wait"`
	// Default: 1s
	RetryAfter time.Duration `koanf:"retry_after"`
}

type AuthConfig struct {
	// Strategies are tried in order. None disables authentication.
	Strategies []StrategyConfig `koanf:"strategies"`
	Realm      string           `koanf:"realm"`
	Cache      struct {
		// Size 0 disables the verification cache.
		Size int `koanf:"size"`
		// Default: 1m
		TTL time.Duration `koanf:"ttl"`
	} `koanf:"cache"`
	Authorization AuthorizationConfig `koanf:"authorization"`
}

// StrategyConfig names an auth.Registry strategy and its options.
type StrategyConfig struct {
	Type    string         `koanf:"type"`
	Options map[string]any `koanf:"options"`
}

type AuthorizationConfig struct {
	// Roles: any one is enough.
	Roles []string `koanf:"roles"`
	// Permissions: all are required.
	Permissions []string `koanf:"permissions"`
	Lookup      struct {
		// Type is an auth.Registry lookup name, or "sql".
		Type    string         `koanf:"type"`
		Options map[string]any `koanf:"options"`
		// CacheTTL wraps the lookup in a CachedLookup when positive.
		CacheTTL time.Duration `koanf:"cache_ttl"`
	} `koanf:"lookup"`
	Policy struct {
		// Files are Rego v1 sources read at build time.
		Files   []string          `koanf:"files"`
		Modules map[string]string `koanf:"modules"`
		Query   string            `koanf:"query"`
	} `koanf:"policy"`
}

// Enabled reports whether any authorization requirement is set.
func (c AuthorizationConfig) Enabled() bool {
	return len(c.Roles) > 0 || len(c.Permissions) > 0 || c.Lookup.Type != "" ||
		len(c.Policy.Files) > 0 || len(c.Policy.Modules) > 0
}

type RateLimitConfig struct {
	Enabled bool `koanf:"enabled"`
	// Default: "fixed_window"
	Algorithm string `koanf:"algorithm"`
	// Default: 60
	Max int64 `koanf:"max"`
	// Default: 1m
	Window     time.Duration `koanf:"window"`
	RefillRate float64       `koanf:"refill_rate"`
	// Key is "addr", "principal" or "header".
	// Default: "addr"
	Key               string `koanf:"key"`
	KeyHeader         string `koanf:"key_header"`
	TrustForwardedFor bool   `koanf:"trust_forwarded_for"`
	// Store is "memory" or "redis".
	// Default: "memory"
	Store    string `koanf:"store"`
	Prefix   string `koanf:"prefix"`
	FailOpen bool   `koanf:"fail_open"`
}

type CacheConfig struct {
	Enabled bool `koanf:"enabled"`
	// Store is "memory" or "redis".
	// Default: "memory"
	Store string `koanf:"store"`
	// Default: 1024
	Size int `koanf:"size"`
	// Default: 5m
	DefaultTTL time.Duration `koanf:"default_ttl"`
	// Default: 1h
	MaxTTL          time.Duration `koanf:"max_ttl"`
	VaryByPrincipal bool          `koanf:"vary_by_principal"`
}

// BreakerConfig guards redis-backed stores with circuit breakers.
type BreakerConfig struct {
	Enabled bool `koanf:"enabled"`
	// Default: 5
	MaxFailures int `koanf:"max_failures"`
	// Default: 30s
	ResetTimeout time.Duration `koanf:"reset_timeout"`
	// Default: 1
	HalfOpenMaxRequests int `koanf:"half_open_max_requests"`
}
