package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonwraymond/guardchain/guard"
)

// AuthenticatorConfig configures the Authenticator guard.
type AuthenticatorConfig struct {
	// Strategies are tried in order. At least one is required.
	Strategies []Strategy

	// Cache memoizes verified principals. Nil disables caching.
	Cache *VerificationCache

	// Realm, when set, adds a WWW-Authenticate challenge to failures.
	Realm string

	// Now is the clock used for expiry checks.
	// Default: time.Now
	Now func() time.Time
}

// Authenticator resolves the request's principal.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Context: verification honors ctx cancellation.
//   - Errors: credential failures become authentication errors, backend
//     failures become internal errors.
type Authenticator struct {
	strategies []Strategy
	cache      *VerificationCache
	realm      string
	now        func() time.Time
}

// NewAuthenticator creates an Authenticator guard.
func NewAuthenticator(config AuthenticatorConfig) (*Authenticator, error) {
	if len(config.Strategies) == 0 {
		return nil, ErrNoStrategies
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &Authenticator{
		strategies: append([]Strategy(nil), config.Strategies...),
		cache:      config.Cache,
		realm:      config.Realm,
		now:        config.Now,
	}, nil
}

// Name returns "authenticator".
func (a *Authenticator) Name() string {
	return "authenticator"
}

// Attempt attaches a principal to gc or fails the request.
func (a *Authenticator) Attempt(ctx context.Context, gc *guard.Context) error {
	for _, s := range a.strategies {
		cred, ok := s.Extract(gc)
		if !ok {
			continue
		}

		principal, err := a.verify(ctx, s, cred)
		if err == nil && principal == nil {
			err = fmt.Errorf("auth: strategy %q returned no principal", s.Name())
		}
		if err == nil && principal.IsExpired(a.now()) {
			err = ErrTokenExpired
		}
		if err != nil {
			return a.fail(gc, s.Name(), err)
		}

		gc.Principal = principal
		return nil
	}
	return a.fail(gc, "", ErrMissingCredentials)
}

func (a *Authenticator) verify(ctx context.Context, s Strategy, cred Credential) (*guard.Principal, error) {
	if a.cache == nil {
		return s.Verify(ctx, cred)
	}
	return a.cache.Verify(ctx, s.Name(), cred, func(ctx context.Context) (*guard.Principal, error) {
		return s.Verify(ctx, cred)
	})
}

func (a *Authenticator) fail(gc *guard.Context, strategy string, err error) error {
	ge := classify(strategy, err)
	if ge.Kind == guard.KindAuthentication && a.realm != "" {
		gc.SetResponseHeader("WWW-Authenticate", fmt.Sprintf("Bearer realm=%q", a.realm))
	}
	return ge
}

// classify converts a verification error into a guard error.
func classify(strategy string, err error) *guard.Error {
	var ge *guard.Error
	if errors.As(err, &ge) {
		return ge
	}
	for _, f := range authFailure {
		if errors.Is(err, f.err) {
			ae := guard.NewAuthenticationError(f.code, f.message, err)
			if strategy != "" {
				ae.Message = strategy + ": " + f.message
			}
			return ae
		}
	}
	return guard.NewInternalError("auth_backend_error", "authentication backend failure", err)
}

var _ guard.Guard = (*Authenticator)(nil)
