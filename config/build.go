package config

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jonwraymond/guardchain/auth"
	"github.com/jonwraymond/guardchain/cache"
	"github.com/jonwraymond/guardchain/guard"
	"github.com/jonwraymond/guardchain/health"
	"github.com/jonwraymond/guardchain/observe"
	"github.com/jonwraymond/guardchain/ratelimit"
	"github.com/jonwraymond/guardchain/resilience"
	"github.com/jonwraymond/guardchain/secret"
)

// Deps are resources Build uses instead of creating its own.
type Deps struct {
	// Redis overrides the client built from Config.Redis.
	Redis redis.UniversalClient

	// DB backs the "sql" permission lookup.
	DB *sql.DB

	// Observer receives guard and chain events.
	// Default: guard.NopObserver
	Observer guard.Observer

	// Tracer opens request spans in the trace guard.
	Tracer observe.Tracer

	// Default: auth.DefaultRegistry
	Registry *auth.Registry

	// Default: secret.DefaultRegistry
	Secrets *secret.Registry

	// Default: time.Now
	Now func() time.Time
}

// Guards holds everything Build assembled. Nil fields are disabled.
type Guards struct {
	Trace         *observe.TraceGuard
	Bulkhead      *resilience.BulkheadGuard
	Authenticator *auth.Authenticator
	Authorizer    *auth.Authorizer
	RateLimiter   *ratelimit.Limiter
	Cache         *cache.Guard

	ErrorHandler *guard.DefaultErrorHandler
	Breakers     []*resilience.CircuitBreaker
	Redis        redis.UniversalClient

	observer guard.Observer
	now      func() time.Time
	cancel   context.CancelFunc
	closers  []func() error
}

// Build assembles guards from cfg. The caller must Close the result.
func Build(ctx context.Context, cfg *Config, deps Deps) (*Guards, error) {
	if deps.Observer == nil {
		deps.Observer = guard.NopObserver{}
	}
	if deps.Registry == nil {
		deps.Registry = auth.DefaultRegistry
	}
	if deps.Secrets == nil {
		deps.Secrets = secret.DefaultRegistry
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	bg, cancel := context.WithCancel(context.WithoutCancel(ctx))
	g := &Guards{observer: deps.Observer, now: deps.Now, cancel: cancel}
	b := builder{cfg: cfg, deps: deps, out: g, bg: bg}
	if err := b.build(ctx); err != nil {
		_ = g.Close()
		return nil, err
	}
	return g, nil
}

type builder struct {
	cfg      *Config
	deps     Deps
	out      *Guards
	bg       context.Context
	resolver *secret.Resolver
}

func (b *builder) build(ctx context.Context) error {
	cfg := b.cfg

	resolver, err := b.newResolver()
	if err != nil {
		return err
	}
	b.resolver = resolver

	if err := b.connectRedis(ctx); err != nil {
		return err
	}

	b.out.ErrorHandler = guard.NewErrorHandler(guard.ErrorHandlerConfig{
		Production: cfg.Server.Production,
		Observer:   b.deps.Observer,
		Now:        b.deps.Now,
	})

	b.out.Trace = observe.NewTraceGuard(observe.TraceConfig{
		Header:   cfg.Trace.Header,
		Mirror:   cfg.Trace.Mirror,
		Observer: b.deps.Observer,
		Tracer:   b.deps.Tracer,
	})

	if cfg.Bulkhead.Enabled {
		b.out.Bulkhead = resilience.NewBulkheadGuard(resilience.BulkheadConfig{
			MaxConcurrent: cfg.Bulkhead.MaxConcurrent,
			MaxWait:       cfg.Bulkhead.MaxWait,
			RetryAfter:    cfg.Bulkhead.RetryAfter,
		})
	}

	if len(cfg.Auth.Strategies) > 0 {
		if b.out.Authenticator, err = b.authenticator(ctx); err != nil {
			return err
		}
	}
	if cfg.Auth.Authorization.Enabled() {
		if b.out.Authorizer, err = b.authorizer(ctx); err != nil {
			return err
		}
	}
	if cfg.RateLimit.Enabled {
		if b.out.RateLimiter, err = b.rateLimiter(); err != nil {
			return err
		}
	}
	if cfg.Cache.Enabled {
		if b.out.Cache, err = b.cache(); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) newResolver() (*secret.Resolver, error) {
	envProvider, err := b.deps.Secrets.Create("env", nil)
	if err != nil {
		return nil, fmt.Errorf("config: secrets: %w", err)
	}
	resolver := secret.NewResolver(b.cfg.Secrets.Strict, envProvider)
	for name, opts := range b.cfg.Secrets.Providers {
		p, err := b.deps.Secrets.Create(name, opts)
		if err != nil {
			return nil, fmt.Errorf("config: secrets.providers.%s: %w", name, err)
		}
		resolver.Register(p)
	}
	return resolver, nil
}

func (b *builder) connectRedis(ctx context.Context) error {
	switch {
	case b.deps.Redis != nil:
		b.out.Redis = b.deps.Redis
	case b.cfg.Redis.Enabled():
		password, err := b.resolver.ResolveValue(ctx, b.cfg.Redis.Password)
		if err != nil {
			return fmt.Errorf("config: redis.password: %w", err)
		}
		client := redis.NewClient(&redis.Options{
			Addr:     b.cfg.Redis.Addr,
			Password: password,
			DB:       b.cfg.Redis.DB,
		})
		b.out.Redis = client
		b.out.closers = append(b.out.closers, client.Close)
	case b.cfg.usesRedis():
		return ErrRedisRequired
	}
	return nil
}

// options resolves secrets in opts and injects the shared redis client.
func (b *builder) options(ctx context.Context, field string, opts map[string]any) (map[string]any, error) {
	resolved, err := b.resolver.ResolveTree(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", field, err)
	}
	out, _ := resolved.(map[string]any)
	if out == nil {
		out = make(map[string]any)
	}
	if b.out.Redis != nil {
		out[auth.RedisClientOption] = b.out.Redis
	}
	return out, nil
}

func (b *builder) authenticator(ctx context.Context) (*auth.Authenticator, error) {
	ac := b.cfg.Auth
	strategies := make([]auth.Strategy, 0, len(ac.Strategies))
	for i, sc := range ac.Strategies {
		field := fmt.Sprintf("auth.strategies[%d]", i)
		opts, err := b.options(ctx, field+".options", sc.Options)
		if err != nil {
			return nil, err
		}
		s, err := b.deps.Registry.CreateStrategy(sc.Type, opts)
		if err != nil {
			return nil, fmt.Errorf("config: %s (%s): %w", field, sc.Type, err)
		}
		strategies = append(strategies, s)
	}

	var vc *auth.VerificationCache
	if ac.Cache.Size > 0 {
		var err error
		vc, err = auth.NewVerificationCache(auth.VerificationCacheConfig{
			Size: ac.Cache.Size,
			TTL:  ac.Cache.TTL,
			Now:  b.deps.Now,
		})
		if err != nil {
			return nil, fmt.Errorf("config: auth.cache: %w", err)
		}
	}

	return auth.NewAuthenticator(auth.AuthenticatorConfig{
		Strategies: strategies,
		Cache:      vc,
		Realm:      ac.Realm,
		Now:        b.deps.Now,
	})
}

func (b *builder) authorizer(ctx context.Context) (*auth.Authorizer, error) {
	zc := b.cfg.Auth.Authorization
	config := auth.AuthorizerConfig{
		Roles:       zc.Roles,
		Permissions: zc.Permissions,
	}

	if zc.Lookup.Type != "" {
		lookup, err := b.lookup(ctx)
		if err != nil {
			return nil, err
		}
		if zc.Lookup.CacheTTL > 0 {
			lookup = auth.NewCachedLookup(lookup, auth.CachedLookupConfig{TTL: zc.Lookup.CacheTTL})
		}
		config.Lookup = lookup
	}

	modules := make(map[string]string, len(zc.Policy.Modules)+len(zc.Policy.Files))
	for name, src := range zc.Policy.Modules {
		modules[name] = src
	}
	for _, path := range zc.Policy.Files {
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: auth.authorization.policy: %w", err)
		}
		modules[filepath.Base(path)] = string(src)
	}
	if len(modules) > 0 {
		pred, err := auth.NewRegoPredicate(ctx, auth.RegoConfig{Modules: modules, Query: zc.Policy.Query})
		if err != nil {
			return nil, fmt.Errorf("config: auth.authorization.policy: %w", err)
		}
		config.Predicate = pred
	}

	return auth.NewAuthorizer(config), nil
}

func (b *builder) lookup(ctx context.Context) (auth.PermissionLookup, error) {
	lc := b.cfg.Auth.Authorization.Lookup
	if lc.Type == "sql" {
		if b.deps.DB == nil {
			return nil, fmt.Errorf("%w: sql lookup needs a database handle", ErrLookupUnavailable)
		}
		query, _ := lc.Options["query"].(string)
		l, err := auth.NewSQLLookup(auth.SQLLookupConfig{DB: b.deps.DB, Query: query})
		if err != nil {
			return nil, fmt.Errorf("config: auth.authorization.lookup: %w", err)
		}
		return l, nil
	}

	opts, err := b.options(ctx, "auth.authorization.lookup.options", lc.Options)
	if err != nil {
		return nil, err
	}
	l, err := b.deps.Registry.CreateLookup(lc.Type, opts)
	if err != nil {
		return nil, fmt.Errorf("config: auth.authorization.lookup (%s): %w", lc.Type, err)
	}
	return l, nil
}

func (b *builder) breaker(name string) *resilience.CircuitBreaker {
	bc := b.cfg.Breaker
	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:                name,
		MaxFailures:         bc.MaxFailures,
		ResetTimeout:        bc.ResetTimeout,
		HalfOpenMaxRequests: bc.HalfOpenMaxRequests,
		Now:                 b.deps.Now,
	})
	b.out.Breakers = append(b.out.Breakers, cb)
	return cb
}

func (b *builder) rateLimiter() (*ratelimit.Limiter, error) {
	rc := b.cfg.RateLimit

	var store ratelimit.CounterStore
	switch rc.Store {
	case "redis":
		store = ratelimit.NewRedisStore(b.out.Redis)
		if b.cfg.Breaker.Enabled {
			store = resilience.NewBreakerCounterStore(store, b.breaker("ratelimit-store"))
		}
	default:
		ms := ratelimit.NewMemoryStore(ratelimit.MemoryStoreConfig{Now: b.deps.Now})
		ms.StartJanitor(b.bg)
		store = ms
	}

	var key ratelimit.KeyFunc
	switch rc.Key {
	case "principal":
		key = ratelimit.ByPrincipal()
	case "header":
		key = ratelimit.ByHeader(rc.KeyHeader)
	default:
		key = ratelimit.ByRemoteAddr("", rc.TrustForwardedFor)
	}

	l, err := ratelimit.New(ratelimit.Config{
		Algorithm:  ratelimit.Algorithm(rc.Algorithm),
		Window:     rc.Window,
		Max:        rc.Max,
		RefillRate: rc.RefillRate,
		Key:        key,
		Store:      store,
		Prefix:     rc.Prefix,
		FailOpen:   rc.FailOpen,
		Observer:   b.deps.Observer,
		Now:        b.deps.Now,
	})
	if err != nil {
		return nil, fmt.Errorf("config: ratelimit: %w", err)
	}
	return l, nil
}

func (b *builder) cache() (*cache.Guard, error) {
	cc := b.cfg.Cache

	var store cache.Store
	switch cc.Store {
	case "redis":
		store = cache.NewRedisStore(b.out.Redis)
		if b.cfg.Breaker.Enabled {
			store = resilience.NewBreakerCacheStore(store, b.breaker("cache-store"))
		}
	default:
		ms, err := cache.NewMemoryStore(cache.MemoryStoreConfig{Size: cc.Size, Now: b.deps.Now})
		if err != nil {
			return nil, fmt.Errorf("config: cache: %w", err)
		}
		store = ms
	}

	var key cache.KeyFunc = cache.DefaultKey
	if cc.VaryByPrincipal {
		key = cache.VaryByPrincipal(cache.DefaultKey)
	}

	g, err := cache.New(cache.Config{
		Store:    store,
		Key:      key,
		Policy:   cache.Policy{DefaultTTL: cc.DefaultTTL, MaxTTL: cc.MaxTTL},
		Observer: b.deps.Observer,
		Now:      b.deps.Now,
	})
	if err != nil {
		return nil, fmt.Errorf("config: cache: %w", err)
	}
	return g, nil
}

// List returns the enabled guards in order, with route guards (typically a
// validator) placed after the bulkhead and before authentication.
func (g *Guards) List(route ...guard.Guard) []guard.Guard {
	var out []guard.Guard
	if g.Trace != nil {
		out = append(out, g.Trace)
	}
	if g.Bulkhead != nil {
		out = append(out, g.Bulkhead)
	}
	for _, r := range route {
		if r != nil {
			out = append(out, r)
		}
	}
	if g.Authenticator != nil {
		out = append(out, g.Authenticator)
	}
	if g.Authorizer != nil {
		out = append(out, g.Authorizer)
	}
	if g.RateLimiter != nil {
		out = append(out, g.RateLimiter)
	}
	if g.Cache != nil {
		out = append(out, g.Cache)
	}
	return out
}

// Chain builds a chain over List(route...).
func (g *Guards) Chain(route ...guard.Guard) *guard.Chain {
	return guard.New(
		guard.WithGuards(g.List(route...)...),
		guard.WithErrorHandler(g.ErrorHandler),
		guard.WithObserver(g.observer),
		guard.WithClock(g.now),
	)
}

// Checkers returns health checks for the redis client and every breaker.
func (g *Guards) Checkers() []health.Checker {
	var out []health.Checker
	if g.Redis != nil {
		out = append(out, health.NewRedisChecker("redis", g.Redis))
	}
	for _, cb := range g.Breakers {
		out = append(out, health.NewBreakerChecker(cb))
	}
	return out
}

// Close stops background work and closes clients Build created.
func (g *Guards) Close() error {
	if g.cancel != nil {
		g.cancel()
	}
	var errs []error
	for _, c := range g.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	g.closers = nil
	return errors.Join(errs...)
}
