package auth

import (
	"context"
	"strings"

	"github.com/jonwraymond/guardchain/guard"
)

// Credential is a raw credential taken from a request.
type Credential struct {
	// Scheme identifies the credential type, e.g. "bearer".
	Scheme string

	// Value is the raw secret. Never log it.
	Value string
}

// Strategy extracts and verifies one kind of credential.
//
// Contract:
//   - Concurrency: implementations must be safe for concurrent use.
//   - Context: Verify must honor cancellation at its suspension points.
//   - Errors: Verify returns an auth sentinel (ErrInvalidCredentials,
//     ErrTokenExpired, ...) for bad credentials and any other error for
//     backend failures.
type Strategy interface {
	// Name identifies the strategy. It is part of verification cache keys.
	Name() string

	// Extract reports whether the request carries this strategy's credential.
	Extract(gc *guard.Context) (Credential, bool)

	// Verify resolves a credential into a principal.
	Verify(ctx context.Context, cred Credential) (*guard.Principal, error)
}

// StrategyFunc adapts a pair of functions to Strategy.
type StrategyFunc struct {
	StrategyName string
	ExtractFn    func(gc *guard.Context) (Credential, bool)
	VerifyFn     func(ctx context.Context, cred Credential) (*guard.Principal, error)
}

// Name returns the strategy name.
func (s *StrategyFunc) Name() string {
	return s.StrategyName
}

// Extract calls ExtractFn.
func (s *StrategyFunc) Extract(gc *guard.Context) (Credential, bool) {
	return s.ExtractFn(gc)
}

// Verify calls VerifyFn.
func (s *StrategyFunc) Verify(ctx context.Context, cred Credential) (*guard.Principal, error) {
	return s.VerifyFn(ctx, cred)
}

// extractScheme returns the credential following a case-insensitive scheme
// prefix, e.g. "Bearer abc" -> "abc".
func extractScheme(header, scheme string) (string, bool) {
	if len(header) <= len(scheme) || header[len(scheme)] != ' ' {
		return "", false
	}
	if !strings.EqualFold(header[:len(scheme)], scheme) {
		return "", false
	}
	token := strings.TrimSpace(header[len(scheme)+1:])
	if token == "" {
		return "", false
	}
	return token, true
}

var _ Strategy = (*StrategyFunc)(nil)
