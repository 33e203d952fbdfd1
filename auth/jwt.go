package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jonwraymond/guardchain/guard"
)

// JWTConfig configures the JWT verifier.
type JWTConfig struct {
	// Issuer is the expected token issuer (iss claim).
	Issuer string

	// Audience is the expected token audience (aud claim).
	Audience string

	// Methods lists accepted signing algorithms.
	// Default: HS256, RS256
	Methods []string

	// PrincipalClaim is the claim containing the principal id.
	// Default: "sub"
	PrincipalClaim string

	// RolesClaim is the claim containing roles, as a list or a
	// space-separated string.
	RolesClaim string

	// PermissionsClaim is the claim containing permissions, as a list or a
	// space-separated string such as an OAuth2 "scope".
	PermissionsClaim string

	// Leeway tolerates clock skew on exp/nbf/iat.
	Leeway time.Duration

	// Now is the verification clock.
	// Default: time.Now
	Now func() time.Time
}

// KeyProvider retrieves signing keys for JWT validation.
type KeyProvider interface {
	// GetKey returns the key for the given key ID.
	GetKey(ctx context.Context, keyID string) (any, error)
}

// StaticKeyProvider provides a static signing key.
type StaticKeyProvider struct {
	key any
}

// NewStaticKeyProvider creates a static key provider.
func NewStaticKeyProvider(key any) *StaticKeyProvider {
	return &StaticKeyProvider{key: key}
}

// GetKey returns the static key.
func (p *StaticKeyProvider) GetKey(_ context.Context, _ string) (any, error) {
	return p.key, nil
}

// JWTVerifier validates signed JWTs.
type JWTVerifier struct {
	config      JWTConfig
	keyProvider KeyProvider
	parser      *jwt.Parser
}

// NewJWTVerifier creates a JWT verifier.
func NewJWTVerifier(config JWTConfig, keyProvider KeyProvider) *JWTVerifier {
	if len(config.Methods) == 0 {
		config.Methods = []string{"HS256", "RS256"}
	}
	if config.PrincipalClaim == "" {
		config.PrincipalClaim = "sub"
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods(config.Methods),
		jwt.WithTimeFunc(config.Now),
		jwt.WithLeeway(config.Leeway),
	}
	if config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(config.Issuer))
	}
	if config.Audience != "" {
		opts = append(opts, jwt.WithAudience(config.Audience))
	}

	return &JWTVerifier{
		config:      config,
		keyProvider: keyProvider,
		parser:      jwt.NewParser(opts...),
	}
}

// VerifyToken parses and validates the token.
func (v *JWTVerifier) VerifyToken(ctx context.Context, token string) (*guard.Principal, error) {
	var keyErr error
	claims := jwt.MapClaims{}
	_, err := v.parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		key, err := v.keyProvider.GetKey(ctx, kid)
		if err != nil {
			keyErr = err
		}
		return key, err
	})
	if err != nil {
		return nil, v.mapError(err, keyErr)
	}
	return v.buildPrincipal(claims), nil
}

func (v *JWTVerifier) mapError(err, keyErr error) error {
	switch {
	case keyErr != nil && errors.Is(keyErr, ErrKeyNotFound):
		return fmt.Errorf("%w: %v", ErrKeyNotFound, keyErr)
	case keyErr != nil:
		return fmt.Errorf("%w: %v", ErrKeysUnavailable, keyErr)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrTokenExpired, err)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	default:
		return fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
}

func (v *JWTVerifier) buildPrincipal(claims jwt.MapClaims) *guard.Principal {
	p := &guard.Principal{
		Method: guard.MethodJWT,
		Claims: make(map[string]any, len(claims)),
	}
	for k, val := range claims {
		p.Claims[k] = val
	}

	if id, ok := claims[v.config.PrincipalClaim].(string); ok {
		p.ID = id
	}
	if v.config.RolesClaim != "" {
		p.Roles = stringList(claims[v.config.RolesClaim])
	}
	if v.config.PermissionsClaim != "" {
		p.Permissions = stringList(claims[v.config.PermissionsClaim])
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		p.ExpiresAt = exp.Time
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		p.IssuedAt = iat.Time
	}
	return p
}

// stringList reads a claim that is either a list of strings or a
// space-separated string.
func stringList(v any) []string {
	switch val := v.(type) {
	case string:
		return strings.Fields(val)
	case []string:
		return append([]string(nil), val...)
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

var (
	_ TokenVerifier = (*JWTVerifier)(nil)
	_ KeyProvider   = (*StaticKeyProvider)(nil)
)
