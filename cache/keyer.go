package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/jonwraymond/guardchain/guard"
)

// KeyFunc derives a cache key for a request.
//
// Contract:
//   - Determinism: the same request must produce the same key regardless of
//     map iteration order.
type KeyFunc func(gc *guard.Context) (string, error)

// DefaultKey keys a request by method, path and query.
func DefaultKey(gc *guard.Context) (string, error) {
	return KeyFor(gc.Request.Method, gc.Request.Path, gc.Request.Query)
}

// KeyFor derives the key for a method, path and query.
// Format: cache:<METHOD>:<path>[:<hash>]
// where hash is the first 16 characters of SHA-256(canonical JSON(query)).
func KeyFor(method, path string, query map[string][]string) (string, error) {
	key := fmt.Sprintf("cache:%s:%s", strings.ToUpper(method), escapePath(path))
	if len(query) == 0 {
		return key, nil
	}

	m := make(map[string]any, len(query))
	for k, vals := range query {
		items := make([]any, len(vals))
		for i, v := range vals {
			items[i] = v
		}
		m[k] = items
	}
	canonical, err := canonicalize(m)
	if err != nil {
		return "", fmt.Errorf("cache: failed to canonicalize query: %w", err)
	}

	hash := sha256.Sum256(canonical)
	return key + VariantSep + hex.EncodeToString(hash[:8]), nil
}

// escapePath keeps a literal separator in a path from reading as a variant.
func escapePath(path string) string {
	return strings.ReplaceAll(path, VariantSep, "%3A")
}

// VaryByPrincipal scopes keys produced by next to the authenticated
// principal, so personalized responses are never shared.
func VaryByPrincipal(next KeyFunc) KeyFunc {
	return func(gc *guard.Context) (string, error) {
		key, err := next(gc)
		if err != nil {
			return "", err
		}
		id := "anonymous"
		if gc.Principal != nil && gc.Principal.ID != "" {
			id = gc.Principal.ID
		}
		sum := sha256.Sum256([]byte(id))
		return key + VariantSep + "p" + VariantSep + hex.EncodeToString(sum[:8]), nil
	}
}

// InvalidateFunc lists the base keys a mutating request makes stale. Every
// variant of a listed key is evicted with it.
type InvalidateFunc func(gc *guard.Context) []string

// InvalidateSelf evicts the GET entries for the request's own path, across
// all query strings.
func InvalidateSelf() InvalidateFunc {
	return func(gc *guard.Context) []string {
		key, _ := KeyFor(http.MethodGet, gc.Request.Path, nil)
		return []string{key}
	}
}

// InvalidatePaths evicts the GET entries for fixed paths, across all query
// strings.
func InvalidatePaths(paths ...string) InvalidateFunc {
	keys := make([]string, 0, len(paths))
	for _, p := range paths {
		key, _ := KeyFor(http.MethodGet, p, nil)
		keys = append(keys, key)
	}
	return func(*guard.Context) []string {
		return append([]string(nil), keys...)
	}
}

// canonicalize produces a deterministic JSON representation of the input.
// Maps are sorted by key to ensure consistent ordering.
func canonicalize(v any) ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}

	switch val := v.(type) {
	case map[string]any:
		return canonicalizeMap(val)
	case []any:
		return canonicalizeSlice(val)
	default:
		return json.Marshal(v)
	}
}

func canonicalizeMap(m map[string]any) ([]byte, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := []byte("{")
	for i, k := range keys {
		if i > 0 {
			result = append(result, ',')
		}
		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		result = append(result, keyBytes...)
		result = append(result, ':')

		valBytes, err := canonicalize(m[k])
		if err != nil {
			return nil, err
		}
		result = append(result, valBytes...)
	}
	return append(result, '}'), nil
}

func canonicalizeSlice(s []any) ([]byte, error) {
	result := []byte("[")
	for i, v := range s {
		if i > 0 {
			result = append(result, ',')
		}
		valBytes, err := canonicalize(v)
		if err != nil {
			return nil, err
		}
		result = append(result, valBytes...)
	}
	return append(result, ']'), nil
}
