package auth

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// StrategyFactory creates a strategy from configuration.
type StrategyFactory func(cfg map[string]any) (Strategy, error)

// LookupFactory creates a permission lookup from configuration.
type LookupFactory func(cfg map[string]any) (PermissionLookup, error)

// RedisClientOption is the configuration key under which callers may inject
// a shared redis.UniversalClient for Redis-backed stores.
const RedisClientOption = "redis_client"

// Registry manages strategy and lookup factories.
type Registry struct {
	mu         sync.RWMutex
	strategies map[string]StrategyFactory
	lookups    map[string]LookupFactory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		strategies: make(map[string]StrategyFactory),
		lookups:    make(map[string]LookupFactory),
	}
}

// RegisterStrategy adds a strategy factory.
func (r *Registry) RegisterStrategy(name string, factory StrategyFactory) error {
	if name == "" || factory == nil {
		return errors.New("auth: invalid strategy registration")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.strategies[name]; exists {
		return fmt.Errorf("auth: strategy %q already registered", name)
	}
	r.strategies[name] = factory
	return nil
}

// RegisterLookup adds a permission lookup factory.
func (r *Registry) RegisterLookup(name string, factory LookupFactory) error {
	if name == "" || factory == nil {
		return errors.New("auth: invalid lookup registration")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.lookups[name]; exists {
		return fmt.Errorf("auth: lookup %q already registered", name)
	}
	r.lookups[name] = factory
	return nil
}

// CreateStrategy instantiates a strategy by type name.
func (r *Registry) CreateStrategy(name string, cfg map[string]any) (Strategy, error) {
	r.mu.RLock()
	factory, ok := r.strategies[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("auth: strategy %q not found", name)
	}
	return factory(cfg)
}

// CreateLookup instantiates a permission lookup by type name.
func (r *Registry) CreateLookup(name string, cfg map[string]any) (PermissionLookup, error) {
	r.mu.RLock()
	factory, ok := r.lookups[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("auth: lookup %q not found", name)
	}
	return factory(cfg)
}

// ListStrategies returns registered strategy names.
func (r *Registry) ListStrategies() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ListLookups returns registered lookup names.
func (r *Registry) ListLookups() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.lookups))
	for name := range r.lookups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry holds the built-in factories.
var DefaultRegistry = NewRegistry()

func init() {
	_ = DefaultRegistry.RegisterStrategy("bearer_jwt", newJWTStrategy)
	_ = DefaultRegistry.RegisterStrategy("bearer_introspection", newIntrospectionStrategy)
	_ = DefaultRegistry.RegisterStrategy("api_key", newAPIKeyStrategyFromConfig)
	_ = DefaultRegistry.RegisterStrategy("session", newSessionStrategyFromConfig)
	_ = DefaultRegistry.RegisterLookup("rbac", newRBACLookupFromConfig)
}

func newJWTStrategy(cfg map[string]any) (Strategy, error) {
	config := JWTConfig{
		Issuer:           stringOpt(cfg, "issuer"),
		Audience:         stringOpt(cfg, "audience"),
		Methods:          stringsOpt(cfg, "methods"),
		PrincipalClaim:   stringOpt(cfg, "principal_claim"),
		RolesClaim:       stringOpt(cfg, "roles_claim"),
		PermissionsClaim: stringOpt(cfg, "permissions_claim"),
	}
	leeway, err := durationOpt(cfg, "leeway")
	if err != nil {
		return nil, err
	}
	config.Leeway = leeway

	var keys KeyProvider
	switch {
	case stringOpt(cfg, "jwks_url") != "":
		refresh, err := durationOpt(cfg, "refresh_interval")
		if err != nil {
			return nil, err
		}
		keys = NewJWKSProvider(JWKSConfig{URL: stringOpt(cfg, "jwks_url"), RefreshInterval: refresh})
	case stringOpt(cfg, "secret") != "":
		keys = NewStaticKeyProvider([]byte(stringOpt(cfg, "secret")))
	default:
		return nil, errors.New("auth: bearer_jwt requires jwks_url or secret")
	}

	return NewBearerStrategy(BearerConfig{
		Name:   stringOpt(cfg, "name"),
		Header: stringOpt(cfg, "header"),
	}, NewJWTVerifier(config, keys))
}

func newIntrospectionStrategy(cfg map[string]any) (Strategy, error) {
	endpoint := stringOpt(cfg, "endpoint")
	if endpoint == "" {
		return nil, errors.New("auth: bearer_introspection requires endpoint")
	}
	timeout, err := durationOpt(cfg, "timeout")
	if err != nil {
		return nil, err
	}
	name := stringOpt(cfg, "name")
	if name == "" {
		name = "introspection"
	}
	return NewBearerStrategy(BearerConfig{Name: name}, NewIntrospectionVerifier(IntrospectionConfig{
		Endpoint:         endpoint,
		ClientID:         stringOpt(cfg, "client_id"),
		ClientSecret:     stringOpt(cfg, "client_secret"),
		ClientAuthMethod: stringOpt(cfg, "client_auth_method"),
		Timeout:          timeout,
		PrincipalClaim:   stringOpt(cfg, "principal_claim"),
		RolesClaim:       stringOpt(cfg, "roles_claim"),
		ScopesClaim:      stringOpt(cfg, "scopes_claim"),
	}))
}

func newAPIKeyStrategyFromConfig(cfg map[string]any) (Strategy, error) {
	store := NewMemoryAPIKeyStore()
	if keys, ok := cfg["keys"].([]any); ok {
		for _, k := range keys {
			km, ok := k.(map[string]any)
			if !ok {
				continue
			}
			info := &APIKeyInfo{
				ID:          stringOpt(km, "id"),
				KeyHash:     stringOpt(km, "hash"),
				Principal:   stringOpt(km, "principal"),
				Roles:       stringsOpt(km, "roles"),
				Permissions: stringsOpt(km, "permissions"),
			}
			if info.KeyHash == "" {
				if raw := stringOpt(km, "key"); raw != "" {
					info.KeyHash = HashAPIKey(raw)
				}
			}
			if info.KeyHash == "" {
				return nil, fmt.Errorf("auth: api key %q has no hash", info.ID)
			}
			store.Add(info)
		}
	}
	return NewAPIKeyStrategy(APIKeyConfig{
		Name:       stringOpt(cfg, "name"),
		Header:     stringOpt(cfg, "header"),
		QueryParam: stringOpt(cfg, "query_param"),
	}, store)
}

func newSessionStrategyFromConfig(cfg map[string]any) (Strategy, error) {
	var store SessionStore
	if client, ok := cfg[RedisClientOption].(redis.UniversalClient); ok && client != nil {
		store = NewRedisSessionStore(client, stringOpt(cfg, "prefix"))
	} else {
		store = NewMemorySessionStore()
	}
	return NewSessionStrategy(SessionConfig{
		Name:   stringOpt(cfg, "name"),
		Cookie: stringOpt(cfg, "cookie"),
	}, store)
}

func newRBACLookupFromConfig(cfg map[string]any) (PermissionLookup, error) {
	config := RBACConfig{
		Roles:       make(map[string]RoleConfig),
		DefaultRole: stringOpt(cfg, "default_role"),
	}
	if roles, ok := cfg["roles"].(map[string]any); ok {
		for name, raw := range roles {
			rd, _ := raw.(map[string]any)
			config.Roles[name] = RoleConfig{
				Permissions: stringsOpt(rd, "permissions"),
				Inherits:    stringsOpt(rd, "inherits"),
			}
		}
	}
	return NewRBACLookup(config), nil
}

func stringOpt(cfg map[string]any, key string) string {
	s, _ := cfg[key].(string)
	return s
}

func stringsOpt(cfg map[string]any, key string) []string {
	return stringList(cfg[key])
}

func durationOpt(cfg map[string]any, key string) (time.Duration, error) {
	switch v := cfg[key].(type) {
	case nil:
		return 0, nil
	case time.Duration:
		return v, nil
	case string:
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("auth: option %s: %w", key, err)
		}
		return d, nil
	default:
		return 0, fmt.Errorf("auth: option %s: unsupported type %T", key, v)
	}
}
