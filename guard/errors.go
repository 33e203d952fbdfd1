package guard

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Kind classifies a guard failure.
type Kind int

const (
	// KindInternal covers uncaught failures in guards or handlers.
	KindInternal Kind = iota
	// KindValidation reports one or more payload field violations.
	KindValidation
	// KindAuthentication reports missing or invalid credentials.
	KindAuthentication
	// KindAuthorization reports an insufficient role, permission, or a predicate rejection.
	KindAuthorization
	// KindRateLimit reports an exceeded quota.
	KindRateLimit
	// KindCache reports an unavailable cache store. It is recorded, never surfaced.
	KindCache
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindAuthorization:
		return "authorization"
	case KindRateLimit:
		return "rate_limit"
	case KindCache:
		return "cache"
	default:
		return "internal"
	}
}

// Kind sentinels, matched by errors.Is against any *Error of that kind.
var (
	ErrValidation     = errors.New("guard: validation failed")
	ErrAuthentication = errors.New("guard: authentication failed")
	ErrAuthorization  = errors.New("guard: authorization failed")
	ErrRateLimit      = errors.New("guard: rate limit exceeded")
	ErrCache          = errors.New("guard: cache unavailable")
	ErrInternal       = errors.New("guard: internal error")
)

var kindSentinels = map[Kind]error{
	KindValidation:     ErrValidation,
	KindAuthentication: ErrAuthentication,
	KindAuthorization:  ErrAuthorization,
	KindRateLimit:      ErrRateLimit,
	KindCache:          ErrCache,
	KindInternal:       ErrInternal,
}

var kindStatus = map[Kind]int{
	KindValidation:     http.StatusBadRequest,
	KindAuthentication: http.StatusUnauthorized,
	KindAuthorization:  http.StatusForbidden,
	KindRateLimit:      http.StatusTooManyRequests,
	KindCache:          http.StatusInternalServerError,
	KindInternal:       http.StatusInternalServerError,
}

var kindMessages = map[Kind]string{
	KindValidation:     "validation failed",
	KindAuthentication: "authentication required",
	KindAuthorization:  "access denied",
	KindRateLimit:      "rate limit exceeded",
	KindCache:          "internal server error",
	KindInternal:       "internal server error",
}

// StatusFor maps a kind to its HTTP status code. Unknown kinds map to 500.
func StatusFor(k Kind) int {
	if status, ok := kindStatus[k]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// FieldError describes a single schema violation.
type FieldError struct {
	// Path locates the offending value, e.g. "body.tags[2]".
	Path string `json:"path"`

	// Constraint names the violated rule, e.g. "required" or "min_length".
	Constraint string `json:"constraint"`

	// Message is a human-readable description.
	Message string `json:"message"`
}

func (f FieldError) String() string {
	return f.Path + ": " + f.Message
}

// Error is the single failure type flowing through a Chain.
type Error struct {
	// Kind selects the status code and body detail.
	Kind Kind

	// Code is a stable machine-readable identifier such as "missing_role".
	// Default: the kind string.
	Code string

	// Message is the human-readable description.
	Message string

	// Fields lists violations for KindValidation.
	Fields []FieldError

	// RetryAfter is set for KindRateLimit.
	RetryAfter time.Duration

	// Guard is the name of the stage that failed. Filled in by the Chain.
	Guard string

	// Cause is the underlying error, if any. Never rendered to clients.
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("guard: ")
	if e.Guard != "" {
		b.WriteString(e.Guard)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.String())
	b.WriteString(": ")
	b.WriteString(e.message())
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

// Status returns the HTTP status code for the error's kind.
func (e *Error) Status() int {
	return StatusFor(e.Kind)
}

// ErrorCode returns Code, or the kind string when Code is empty.
func (e *Error) ErrorCode() string {
	if e.Code != "" {
		return e.Code
	}
	return e.Kind.String()
}

func (e *Error) message() string {
	if e.Message != "" {
		return e.Message
	}
	return kindMessages[e.Kind]
}

// NewValidationError creates a validation error carrying every violation.
func NewValidationError(fields []FieldError) *Error {
	msg := "validation failed"
	if len(fields) == 1 {
		msg = "validation failed: " + fields[0].String()
	} else if len(fields) > 1 {
		msg = fmt.Sprintf("validation failed: %d fields invalid", len(fields))
	}
	return &Error{
		Kind:    KindValidation,
		Code:    "validation_failed",
		Message: msg,
		Fields:  fields,
	}
}

// NewAuthenticationError creates an authentication error.
func NewAuthenticationError(code, msg string, cause error) *Error {
	return &Error{Kind: KindAuthentication, Code: code, Message: msg, Cause: cause}
}

// NewAuthorizationError creates an authorization error naming the unmet requirement.
func NewAuthorizationError(code, msg string) *Error {
	return &Error{Kind: KindAuthorization, Code: code, Message: msg}
}

// NewRateLimitError creates a rate limit error with the given retry delay.
func NewRateLimitError(retryAfter time.Duration) *Error {
	return &Error{
		Kind:       KindRateLimit,
		Code:       "rate_limited",
		Message:    "rate limit exceeded",
		RetryAfter: retryAfter,
	}
}

// NewCacheError wraps a cache store failure.
func NewCacheError(cause error) *Error {
	return &Error{Kind: KindCache, Code: "cache_unavailable", Message: "cache store unavailable", Cause: cause}
}

// NewInternalError creates an internal error.
func NewInternalError(code, msg string, cause error) *Error {
	return &Error{Kind: KindInternal, Code: code, Message: msg, Cause: cause}
}

// AsError returns err as a *Error. A *Error anywhere in the chain is returned
// as is; anything else is wrapped as KindInternal. A nil err returns nil.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var ge *Error
	if errors.As(err, &ge) {
		return ge
	}
	return NewInternalError("internal_error", "", err)
}
