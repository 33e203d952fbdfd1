package validate

import "errors"

// Schema compilation errors.
var (
	ErrUnknownType   = errors.New("validate: unknown field type")
	ErrUnknownFormat = errors.New("validate: unknown string format")
	ErrBadPattern    = errors.New("validate: invalid pattern")
	ErrBadBounds     = errors.New("validate: minimum exceeds maximum")
	ErrNilField      = errors.New("validate: nil field definition")
)
