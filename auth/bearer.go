package auth

import (
	"context"

	"github.com/jonwraymond/guardchain/guard"
)

// TokenVerifier turns a bearer token into a principal.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must honor cancellation for remote verification.
// - Errors: auth sentinels for bad tokens, other errors for backend failures.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (*guard.Principal, error)
}

// TokenVerifierFunc adapts a function to TokenVerifier.
type TokenVerifierFunc func(ctx context.Context, token string) (*guard.Principal, error)

// VerifyToken calls f.
func (f TokenVerifierFunc) VerifyToken(ctx context.Context, token string) (*guard.Principal, error) {
	return f(ctx, token)
}

// BearerConfig configures a BearerStrategy.
type BearerConfig struct {
	// Name identifies the strategy.
	// Default: "bearer"
	Name string

	// Header carries the token.
	// Default: "Authorization"
	Header string

	// Scheme precedes the token, matched case-insensitively.
	// Default: "Bearer"
	Scheme string
}

// BearerStrategy extracts "Bearer" tokens and delegates verification.
type BearerStrategy struct {
	config   BearerConfig
	verifier TokenVerifier
}

// NewBearerStrategy creates a bearer token strategy.
func NewBearerStrategy(config BearerConfig, verifier TokenVerifier) (*BearerStrategy, error) {
	if verifier == nil {
		return nil, ErrNoVerifier
	}
	if config.Name == "" {
		config.Name = "bearer"
	}
	if config.Header == "" {
		config.Header = "Authorization"
	}
	if config.Scheme == "" {
		config.Scheme = "Bearer"
	}
	return &BearerStrategy{config: config, verifier: verifier}, nil
}

// Name returns the configured name.
func (s *BearerStrategy) Name() string {
	return s.config.Name
}

// Extract reads the token from the configured header.
func (s *BearerStrategy) Extract(gc *guard.Context) (Credential, bool) {
	token, ok := extractScheme(gc.Request.Header(s.config.Header), s.config.Scheme)
	if !ok {
		return Credential{}, false
	}
	return Credential{Scheme: "bearer", Value: token}, true
}

// Verify delegates to the token verifier.
func (s *BearerStrategy) Verify(ctx context.Context, cred Credential) (*guard.Principal, error) {
	return s.verifier.VerifyToken(ctx, cred.Value)
}

var (
	_ Strategy      = (*BearerStrategy)(nil)
	_ TokenVerifier = TokenVerifierFunc(nil)
)
