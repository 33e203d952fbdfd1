package auth

import "errors"

// Sentinel errors for authentication and authorization.
var (
	// Authentication errors
	ErrMissingCredentials = errors.New("auth: missing credentials")
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrTokenExpired       = errors.New("auth: token expired")
	ErrTokenMalformed     = errors.New("auth: token malformed")
	ErrTokenInactive      = errors.New("auth: token inactive")
	ErrKeyNotFound        = errors.New("auth: signing key not found")
	ErrSessionNotFound    = errors.New("auth: session not found")

	// Backend errors, surfaced as internal failures
	ErrIntrospectionFailed = errors.New("auth: introspection failed")
	ErrKeysUnavailable     = errors.New("auth: signing keys unavailable")
	ErrLookupFailed        = errors.New("auth: permission lookup failed")

	// Configuration errors
	ErrNoStrategies = errors.New("auth: at least one strategy is required")
	ErrNoVerifier   = errors.New("auth: token verifier is required")
	ErrNoStore      = errors.New("auth: store is required")

	// Authorization errors
	ErrForbidden = errors.New("auth: access denied")
)

// authFailure maps credential failures to stable response codes.
var authFailure = []struct {
	err     error
	code    string
	message string
}{
	{ErrMissingCredentials, "missing_credentials", "credentials required"},
	{ErrTokenExpired, "token_expired", "credential expired"},
	{ErrTokenMalformed, "token_malformed", "credential malformed"},
	{ErrTokenInactive, "token_inactive", "credential inactive"},
	{ErrKeyNotFound, "signing_key_not_found", "credential signed with unknown key"},
	{ErrSessionNotFound, "session_not_found", "session not found"},
	{ErrInvalidCredentials, "invalid_credentials", "invalid credentials"},
}
