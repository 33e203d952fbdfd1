package auth

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonwraymond/guardchain/guard"
)

func newTestContext(headers map[string][]string) *guard.Context {
	return guard.NewContext(&guard.Request{Method: "GET", Path: "/docs", Headers: headers})
}

func staticStrategy(name, header string, verify func(ctx context.Context, cred Credential) (*guard.Principal, error)) *StrategyFunc {
	return &StrategyFunc{
		StrategyName: name,
		ExtractFn: func(gc *guard.Context) (Credential, bool) {
			v := gc.Request.Header(header)
			return Credential{Scheme: name, Value: v}, v != ""
		},
		VerifyFn: verify,
	}
}

func TestNewAuthenticator_RequiresStrategies(t *testing.T) {
	if _, err := NewAuthenticator(AuthenticatorConfig{}); !errors.Is(err, ErrNoStrategies) {
		t.Fatalf("NewAuthenticator() error = %v, want ErrNoStrategies", err)
	}
}

func TestAuthenticator_FirstExtractingStrategyOwnsOutcome(t *testing.T) {
	var bCalls atomic.Int32
	a := staticStrategy("a", "X-A", func(context.Context, Credential) (*guard.Principal, error) {
		return nil, ErrInvalidCredentials
	})
	b := staticStrategy("b", "X-B", func(context.Context, Credential) (*guard.Principal, error) {
		bCalls.Add(1)
		return &guard.Principal{ID: "b-user"}, nil
	})

	authn, err := NewAuthenticator(AuthenticatorConfig{Strategies: []Strategy{a, b}})
	if err != nil {
		t.Fatalf("NewAuthenticator() error = %v", err)
	}

	gc := newTestContext(map[string][]string{"X-A": {"bad"}, "X-B": {"good"}})
	err = authn.Attempt(context.Background(), gc)

	var ge *guard.Error
	if !errors.As(err, &ge) {
		t.Fatalf("Attempt() error = %v, want *guard.Error", err)
	}
	if ge.Kind != guard.KindAuthentication || ge.Code != "invalid_credentials" {
		t.Errorf("error = %s/%s, want authentication/invalid_credentials", ge.Kind, ge.Code)
	}
	if bCalls.Load() != 0 {
		t.Errorf("strategy b verified %d times, want 0", bCalls.Load())
	}
	if gc.Principal != nil {
		t.Error("Principal should stay nil on failure")
	}
}

func TestAuthenticator_SkipsStrategiesWithoutCredentials(t *testing.T) {
	a := staticStrategy("a", "X-A", func(context.Context, Credential) (*guard.Principal, error) {
		t.Fatal("strategy a should not verify")
		return nil, nil
	})
	b := staticStrategy("b", "X-B", func(_ context.Context, cred Credential) (*guard.Principal, error) {
		return &guard.Principal{ID: cred.Value}, nil
	})

	authn, _ := NewAuthenticator(AuthenticatorConfig{Strategies: []Strategy{a, b}})
	gc := newTestContext(map[string][]string{"X-B": {"bob"}})
	if err := authn.Attempt(context.Background(), gc); err != nil {
		t.Fatalf("Attempt() error = %v", err)
	}
	if gc.Principal == nil || gc.Principal.ID != "bob" {
		t.Errorf("Principal = %+v, want bob", gc.Principal)
	}
}

func TestAuthenticator_Failures(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		verify   func(context.Context, Credential) (*guard.Principal, error)
		headers  map[string][]string
		wantKind guard.Kind
		wantCode string
	}{
		{
			name:     "no credentials",
			headers:  map[string][]string{},
			wantKind: guard.KindAuthentication,
			wantCode: "missing_credentials",
		},
		{
			name: "expired token",
			verify: func(context.Context, Credential) (*guard.Principal, error) {
				return nil, ErrTokenExpired
			},
			wantKind: guard.KindAuthentication,
			wantCode: "token_expired",
		},
		{
			name: "expired principal",
			verify: func(context.Context, Credential) (*guard.Principal, error) {
				return &guard.Principal{ID: "u", ExpiresAt: now.Add(-time.Second)}, nil
			},
			wantKind: guard.KindAuthentication,
			wantCode: "token_expired",
		},
		{
			name: "backend failure",
			verify: func(context.Context, Credential) (*guard.Principal, error) {
				return nil, errors.New("connection refused")
			},
			wantKind: guard.KindInternal,
			wantCode: "auth_backend_error",
		},
		{
			name: "nil principal",
			verify: func(context.Context, Credential) (*guard.Principal, error) {
				return nil, nil
			},
			wantKind: guard.KindInternal,
			wantCode: "auth_backend_error",
		},
		{
			name: "guard error passes through",
			verify: func(context.Context, Credential) (*guard.Principal, error) {
				return nil, guard.NewAuthenticationError("mfa_required", "second factor required", nil)
			},
			wantKind: guard.KindAuthentication,
			wantCode: "mfa_required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := staticStrategy("token", "X-Token", tt.verify)
			authn, _ := NewAuthenticator(AuthenticatorConfig{
				Strategies: []Strategy{s},
				Now:        func() time.Time { return now },
			})
			headers := tt.headers
			if headers == nil {
				headers = map[string][]string{"X-Token": {"abc"}}
			}

			err := authn.Attempt(context.Background(), newTestContext(headers))
			ge := guard.AsError(err)
			if ge == nil {
				t.Fatal("Attempt() error = nil, want failure")
			}
			if ge.Kind != tt.wantKind || ge.Code != tt.wantCode {
				t.Errorf("error = %s/%s, want %s/%s", ge.Kind, ge.Code, tt.wantKind, tt.wantCode)
			}
		})
	}
}

func TestAuthenticator_RealmChallenge(t *testing.T) {
	s := staticStrategy("token", "X-Token", nil)
	authn, _ := NewAuthenticator(AuthenticatorConfig{Strategies: []Strategy{s}, Realm: "docs"})

	gc := newTestContext(nil)
	if err := authn.Attempt(context.Background(), gc); err == nil {
		t.Fatal("Attempt() error = nil, want missing credentials")
	}
	if got := gc.ResponseHeader().Get("WWW-Authenticate"); got != `Bearer realm="docs"` {
		t.Errorf("WWW-Authenticate = %q", got)
	}
}

func TestAuthenticator_UsesVerificationCache(t *testing.T) {
	var calls atomic.Int32
	s := staticStrategy("token", "X-Token", func(_ context.Context, cred Credential) (*guard.Principal, error) {
		calls.Add(1)
		return &guard.Principal{ID: cred.Value}, nil
	})
	cache, err := NewVerificationCache(VerificationCacheConfig{})
	if err != nil {
		t.Fatalf("NewVerificationCache() error = %v", err)
	}
	authn, _ := NewAuthenticator(AuthenticatorConfig{Strategies: []Strategy{s}, Cache: cache})

	for range 3 {
		gc := newTestContext(map[string][]string{"X-Token": {"alice"}})
		if err := authn.Attempt(context.Background(), gc); err != nil {
			t.Fatalf("Attempt() error = %v", err)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("verify calls = %d, want 1", calls.Load())
	}
}
