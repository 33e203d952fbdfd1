package auth

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"

	"github.com/jonwraymond/guardchain/guard"
)

func TestDefaultRegistry_Lists(t *testing.T) {
	want := []string{"api_key", "bearer_introspection", "bearer_jwt", "session"}
	if got := DefaultRegistry.ListStrategies(); !slices.Equal(got, want) {
		t.Errorf("ListStrategies() = %v, want %v", got, want)
	}
	if got := DefaultRegistry.ListLookups(); !slices.Equal(got, []string{"rbac"}) {
		t.Errorf("ListLookups() = %v", got)
	}
}

func TestRegistry_DuplicateAndUnknown(t *testing.T) {
	r := NewRegistry()
	f := func(map[string]any) (Strategy, error) { return nil, nil }
	if err := r.RegisterStrategy("x", f); err != nil {
		t.Fatalf("RegisterStrategy() error = %v", err)
	}
	if err := r.RegisterStrategy("x", f); err == nil {
		t.Error("duplicate registration should fail")
	}
	if err := r.RegisterStrategy("", f); err == nil {
		t.Error("empty name should fail")
	}
	if _, err := r.CreateStrategy("missing", nil); err == nil {
		t.Error("unknown strategy should fail")
	}
	if _, err := r.CreateLookup("missing", nil); err == nil {
		t.Error("unknown lookup should fail")
	}
}

func TestCreateStrategy_BearerJWT(t *testing.T) {
	s, err := DefaultRegistry.CreateStrategy("bearer_jwt", map[string]any{
		"secret":            string(testSecret),
		"issuer":            "guardchain-test",
		"roles_claim":       "roles",
		"leeway":            "5s",
		"methods":           []any{"HS256"},
		"principal_claim":   "sub",
		"permissions_claim": "scope",
	})
	if err != nil {
		t.Fatalf("CreateStrategy() error = %v", err)
	}

	token := signHS256(t, jwt.MapClaims{
		"sub":   "alice",
		"iss":   "guardchain-test",
		"exp":   time.Now().Add(time.Hour).Unix(),
		"roles": []string{"admin"},
	})
	gc := guard.NewContext(&guard.Request{Headers: map[string][]string{"Authorization": {"Bearer " + token}}})
	cred, ok := s.Extract(gc)
	if !ok {
		t.Fatal("Extract() found no credential")
	}
	p, err := s.Verify(context.Background(), cred)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if p.ID != "alice" || !p.HasRole("admin") {
		t.Errorf("principal = %+v", p)
	}
}

func TestCreateStrategy_InvalidOptions(t *testing.T) {
	tests := []struct {
		name     string
		strategy string
		cfg      map[string]any
	}{
		{"jwt without key source", "bearer_jwt", map[string]any{}},
		{"jwt bad leeway", "bearer_jwt", map[string]any{"secret": "s", "leeway": "soon"}},
		{"introspection without endpoint", "bearer_introspection", map[string]any{}},
		{"api key without hash", "api_key", map[string]any{"keys": []any{map[string]any{"id": "k"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DefaultRegistry.CreateStrategy(tt.strategy, tt.cfg); err == nil {
				t.Error("CreateStrategy() error = nil, want failure")
			}
		})
	}
}

func TestCreateStrategy_APIKey(t *testing.T) {
	s, err := DefaultRegistry.CreateStrategy("api_key", map[string]any{
		"header": "X-Service-Key",
		"keys": []any{
			map[string]any{"id": "k1", "key": "plain-key", "principal": "svc-a", "roles": []any{"service"}},
			map[string]any{"id": "k2", "hash": HashAPIKey("other"), "principal": "svc-b"},
		},
	})
	if err != nil {
		t.Fatalf("CreateStrategy() error = %v", err)
	}

	for raw, want := range map[string]string{"plain-key": "svc-a", "other": "svc-b"} {
		p, err := s.Verify(context.Background(), Credential{Value: raw})
		if err != nil {
			t.Fatalf("Verify(%q) error = %v", raw, err)
		}
		if p.ID != want {
			t.Errorf("Verify(%q).ID = %q, want %q", raw, p.ID, want)
		}
	}
}

func TestCreateStrategy_SessionUsesInjectedRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()

	s, err := DefaultRegistry.CreateStrategy("session", map[string]any{
		RedisClientOption: redis.UniversalClient(client),
		"prefix":          "sess:",
	})
	if err != nil {
		t.Fatalf("CreateStrategy() error = %v", err)
	}

	store := NewRedisSessionStore(client, "sess:")
	if err := store.Put(context.Background(), "abc", &guard.Principal{ID: "dana"}, time.Minute); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	p, err := s.Verify(context.Background(), Credential{Value: "abc"})
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if p.ID != "dana" {
		t.Errorf("ID = %q, want dana", p.ID)
	}
}

func TestCreateLookup_RBAC(t *testing.T) {
	l, err := DefaultRegistry.CreateLookup("rbac", map[string]any{
		"roles": map[string]any{
			"viewer": map[string]any{"permissions": []any{"docs:read"}},
			"editor": map[string]any{"permissions": []any{"docs:write"}, "inherits": []any{"viewer"}},
		},
	})
	if err != nil {
		t.Fatalf("CreateLookup() error = %v", err)
	}
	perms, _ := l.Permissions(context.Background(), &guard.Principal{Roles: []string{"editor"}})
	if !slices.Contains(perms, "docs:read") || !slices.Contains(perms, "docs:write") {
		t.Errorf("Permissions() = %v", perms)
	}
}
