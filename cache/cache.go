package cache

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/jonwraymond/guardchain/guard"
)

// MaxKeyLength is the maximum allowed length for a cache key.
const MaxKeyLength = 512

// Sentinel errors for cache operations.
var (
	ErrNoStore    = errors.New("cache: store is required")
	ErrInvalidKey = errors.New("cache: key is invalid")
	ErrKeyTooLong = errors.New("cache: key exceeds max length")

	ErrStoreUnavailable = errors.New("cache: store unavailable")
)

// Entry is a stored response.
type Entry struct {
	Status    int         `json:"status"`
	Header    http.Header `json:"header,omitempty"`
	Body      []byte      `json:"body,omitempty"`
	StoredAt  time.Time   `json:"stored_at"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// NewEntry captures resp for storage.
func NewEntry(resp *guard.Response, now time.Time, ttl time.Duration) *Entry {
	c := resp.Clone()
	return &Entry{
		Status:    c.Status,
		Header:    c.Header,
		Body:      c.Body,
		StoredAt:  now,
		ExpiresAt: now.Add(ttl),
	}
}

// Expired reports whether the entry is stale at now.
func (e *Entry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && !now.Before(e.ExpiresAt)
}

// Response rebuilds a response from the entry.
func (e *Entry) Response() *guard.Response {
	return (&guard.Response{Status: e.Status, Header: e.Header, Body: e.Body}).Clone()
}

// Store holds cached responses.
//
// Contract:
//   - Concurrency: implementations must be safe for concurrent use; Set and
//     Delete are atomic per key.
//   - Context: methods should honor cancellation where applicable.
//   - Errors: Get returns (nil, false, nil) on miss; an error means the store
//     could not answer. Delete and Invalidate are idempotent.
//   - Variants: Invalidate removes each key and every key that extends it
//     with VariantSep (query hashes, principal scopes).
type Store interface {
	Get(ctx context.Context, key string) (*Entry, bool, error)
	Set(ctx context.Context, key string, entry *Entry, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Invalidate(ctx context.Context, keys ...string) error
}

// VariantSep separates a base key from its variant suffixes.
const VariantSep = ":"

// IsVariant reports whether key is base or one of its variants.
func IsVariant(key, base string) bool {
	return key == base || strings.HasPrefix(key, base+VariantSep)
}

// ValidateKey checks if a key is valid for caching.
func ValidateKey(key string) error {
	if key == "" || strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	// Reject keys with newlines or carriage returns
	if strings.ContainsAny(key, "\n\r") {
		return ErrInvalidKey
	}
	return nil
}
