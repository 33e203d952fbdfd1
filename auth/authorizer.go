package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jonwraymond/guardchain/guard"
)

// Predicate is a custom authorization check evaluated last.
//
// Returning nil allows the request. Returning a *guard.Error passes it
// through unchanged; any other error rejects the request with its text as
// the reason.
type Predicate interface {
	Allow(ctx context.Context, gc *guard.Context) error
}

// PredicateFunc adapts a function to Predicate.
type PredicateFunc func(ctx context.Context, gc *guard.Context) error

// Allow calls f.
func (f PredicateFunc) Allow(ctx context.Context, gc *guard.Context) error {
	return f(ctx, gc)
}

// AuthorizerConfig configures the Authorizer guard.
type AuthorizerConfig struct {
	// Roles requires the principal to hold at least one.
	Roles []string

	// Permissions requires the principal to hold all. Grants ending in "*"
	// match by prefix.
	Permissions []string

	// Lookup supplies additional grants keyed by principal.
	Lookup PermissionLookup

	// Predicate runs after roles and permissions.
	Predicate Predicate
}

// Authorizer checks the principal attached by the Authenticator.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Context: lookups and predicates receive ctx.
//   - Errors: a missing principal is an internal ordering error; unmet
//     requirements are authorization errors naming the requirement.
type Authorizer struct {
	config AuthorizerConfig
}

// NewAuthorizer creates an Authorizer guard.
func NewAuthorizer(config AuthorizerConfig) *Authorizer {
	config.Roles = append([]string(nil), config.Roles...)
	config.Permissions = append([]string(nil), config.Permissions...)
	return &Authorizer{config: config}
}

// Name returns "authorizer".
func (a *Authorizer) Name() string {
	return "authorizer"
}

// Attempt evaluates roles, then permissions, then the predicate.
func (a *Authorizer) Attempt(ctx context.Context, gc *guard.Context) error {
	p := gc.Principal
	if p == nil {
		return guard.NewInternalError("guard_order", "authorizer requires an authenticated principal", nil)
	}

	if len(a.config.Roles) > 0 && !p.HasAnyRole(a.config.Roles...) {
		return deny("missing_role", "requires one of roles: "+strings.Join(a.config.Roles, ", "))
	}

	if len(a.config.Permissions) > 0 {
		granted := p.Permissions
		if a.config.Lookup != nil {
			extra, err := a.config.Lookup.Permissions(ctx, p)
			if err != nil {
				return guard.NewInternalError("permission_lookup_failed", "", fmt.Errorf("%w: %v", ErrLookupFailed, err))
			}
			granted = append(append([]string(nil), granted...), extra...)
		}

		var missing []string
		for _, perm := range a.config.Permissions {
			if !guard.MatchAny(granted, perm) {
				missing = append(missing, perm)
			}
		}
		if len(missing) > 0 {
			return deny("missing_permission", "missing permissions: "+strings.Join(missing, ", "))
		}
	}

	if a.config.Predicate != nil {
		if err := a.config.Predicate.Allow(ctx, gc); err != nil {
			var ge *guard.Error
			if errors.As(err, &ge) {
				return ge
			}
			return deny("predicate_rejected", err.Error())
		}
	}
	return nil
}

func deny(code, msg string) *guard.Error {
	e := guard.NewAuthorizationError(code, msg)
	e.Cause = ErrForbidden
	return e
}

// Owner is a predicate requiring a route parameter to equal the principal id,
// unless the principal holds one of the bypass roles.
func Owner(param string, bypassRoles ...string) Predicate {
	return PredicateFunc(func(_ context.Context, gc *guard.Context) error {
		if len(bypassRoles) > 0 && gc.Principal.HasAnyRole(bypassRoles...) {
			return nil
		}
		if gc.Request.Param(param) != gc.Principal.ID {
			return fmt.Errorf("principal does not own %s %q", param, gc.Request.Param(param))
		}
		return nil
	})
}

var (
	_ guard.Guard = (*Authorizer)(nil)
	_ Predicate   = PredicateFunc(nil)
)
