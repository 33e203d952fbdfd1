package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jonwraymond/guardchain/guard"
)

// IntrospectionConfig configures OAuth2 token introspection (RFC 7662).
type IntrospectionConfig struct {
	// Endpoint is the introspection URL.
	Endpoint string

	// ClientID and ClientSecret authenticate this service to the endpoint.
	ClientID     string
	ClientSecret string

	// ClientAuthMethod is "client_secret_basic" or "client_secret_post".
	// Default: "client_secret_basic"
	ClientAuthMethod string

	// Timeout bounds each introspection call.
	// Default: 10 seconds
	Timeout time.Duration

	// PrincipalClaim holds the principal id.
	// Default: "sub"
	PrincipalClaim string

	// RolesClaim holds roles.
	RolesClaim string

	// ScopesClaim holds space-separated scopes, mapped to permissions.
	// Default: "scope"
	ScopesClaim string

	// HTTPClient performs requests. If nil, a client with Timeout is used.
	HTTPClient *http.Client
}

// IntrospectionVerifier validates opaque tokens against an introspection
// endpoint. Results are not cached here; pair it with a VerificationCache.
type IntrospectionVerifier struct {
	config IntrospectionConfig
	client *http.Client
}

// NewIntrospectionVerifier creates an introspection verifier.
func NewIntrospectionVerifier(config IntrospectionConfig) *IntrospectionVerifier {
	if config.ClientAuthMethod == "" {
		config.ClientAuthMethod = "client_secret_basic"
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if config.PrincipalClaim == "" {
		config.PrincipalClaim = "sub"
	}
	if config.ScopesClaim == "" {
		config.ScopesClaim = "scope"
	}
	client := config.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: config.Timeout}
	}
	return &IntrospectionVerifier{config: config, client: client}
}

// VerifyToken introspects the token.
func (v *IntrospectionVerifier) VerifyToken(ctx context.Context, token string) (*guard.Principal, error) {
	claims, err := v.introspect(ctx, token)
	if err != nil {
		return nil, err
	}
	if active, _ := claims["active"].(bool); !active {
		return nil, ErrTokenInactive
	}
	return v.buildPrincipal(claims), nil
}

func (v *IntrospectionVerifier) introspect(ctx context.Context, token string) (map[string]any, error) {
	form := url.Values{}
	form.Set("token", token)
	form.Set("token_type_hint", "access_token")
	if v.config.ClientAuthMethod == "client_secret_post" {
		form.Set("client_id", v.config.ClientID)
		form.Set("client_secret", v.config.ClientSecret)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.config.Endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIntrospectionFailed, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	if v.config.ClientAuthMethod == "client_secret_basic" {
		req.SetBasicAuth(url.QueryEscape(v.config.ClientID), url.QueryEscape(v.config.ClientSecret))
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIntrospectionFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrIntrospectionFailed, resp.StatusCode)
	}

	var claims map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&claims); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrIntrospectionFailed, err)
	}
	return claims, nil
}

func (v *IntrospectionVerifier) buildPrincipal(claims map[string]any) *guard.Principal {
	p := &guard.Principal{
		Method: guard.MethodIntrospection,
		Claims: claims,
	}
	if id, ok := claims[v.config.PrincipalClaim].(string); ok {
		p.ID = id
	}
	if v.config.RolesClaim != "" {
		p.Roles = stringList(claims[v.config.RolesClaim])
	}
	p.Permissions = stringList(claims[v.config.ScopesClaim])
	if exp, ok := claims["exp"].(float64); ok && exp > 0 {
		p.ExpiresAt = time.Unix(int64(exp), 0)
	}
	if iat, ok := claims["iat"].(float64); ok && iat > 0 {
		p.IssuedAt = time.Unix(int64(iat), 0)
	}
	return p
}

var _ TokenVerifier = (*IntrospectionVerifier)(nil)
