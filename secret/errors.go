package secret

import "errors"

var (
	// ErrMissingEnv is returned when ${VAR} names an unset variable.
	ErrMissingEnv = errors.New("secret: missing environment variable")

	// ErrUnknownProvider is returned for a reference to an unregistered provider.
	ErrUnknownProvider = errors.New("secret: provider not registered")

	// ErrEmptyValue is returned by a strict resolver when a provider yields "".
	ErrEmptyValue = errors.New("secret: empty value")

	// ErrNotFound is returned by providers when the reference does not exist.
	ErrNotFound = errors.New("secret: not found")

	// ErrInvalidRegistration is returned for an empty name or nil factory.
	ErrInvalidRegistration = errors.New("secret: invalid provider registration")
)
