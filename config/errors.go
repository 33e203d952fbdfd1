package config

import "errors"

var (
	// ErrInvalid wraps every validation failure.
	ErrInvalid = errors.New("config: invalid configuration")

	// ErrRedisRequired is returned when a redis store is selected without a
	// redis address or client.
	ErrRedisRequired = errors.New("config: redis store selected but redis is not configured")

	// ErrLookupUnavailable is returned for a lookup whose dependency is missing.
	ErrLookupUnavailable = errors.New("config: permission lookup unavailable")
)
