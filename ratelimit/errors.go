package ratelimit

import "errors"

// Sentinel errors for rate limiter configuration and stores.
var (
	ErrNoStore          = errors.New("ratelimit: store is required")
	ErrUnknownAlgorithm = errors.New("ratelimit: unknown algorithm")
	ErrInvalidLimit     = errors.New("ratelimit: max and window must be positive")
	ErrStoreUnavailable = errors.New("ratelimit: store unavailable")
)
