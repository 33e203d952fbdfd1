package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/jonwraymond/guardchain/guard"
)

// APIKeyConfig configures the API key strategy.
type APIKeyConfig struct {
	// Name identifies the strategy.
	// Default: "api_key"
	Name string

	// Header carries the key.
	// Default: "X-API-Key"
	Header string

	// QueryParam, when set, is also checked after the header.
	QueryParam string

	// Now is the expiry clock.
	// Default: time.Now
	Now func() time.Time
}

// APIKeyInfo describes a registered API key.
type APIKeyInfo struct {
	// ID is a non-secret identifier for this key.
	ID string

	// KeyHash is the SHA-256 hex digest of the key.
	KeyHash string

	// Principal is the identity the key authenticates as.
	Principal string

	Roles       []string
	Permissions []string

	// ExpiresAt is when the key expires. Zero means never.
	ExpiresAt time.Time

	Metadata map[string]any
}

// APIKeyStore looks up keys by hash.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: an unknown hash returns (nil, nil); errors mean the store failed.
type APIKeyStore interface {
	Lookup(ctx context.Context, keyHash string) (*APIKeyInfo, error)
}

// APIKeyStrategy authenticates requests carrying an API key.
type APIKeyStrategy struct {
	config APIKeyConfig
	store  APIKeyStore
}

// NewAPIKeyStrategy creates an API key strategy.
func NewAPIKeyStrategy(config APIKeyConfig, store APIKeyStore) (*APIKeyStrategy, error) {
	if store == nil {
		return nil, ErrNoStore
	}
	if config.Name == "" {
		config.Name = "api_key"
	}
	if config.Header == "" {
		config.Header = "X-API-Key"
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &APIKeyStrategy{config: config, store: store}, nil
}

// Name returns the configured name.
func (s *APIKeyStrategy) Name() string {
	return s.config.Name
}

// Extract reads the key from the header, then the query parameter.
func (s *APIKeyStrategy) Extract(gc *guard.Context) (Credential, bool) {
	key := strings.TrimSpace(gc.Request.Header(s.config.Header))
	if key == "" && s.config.QueryParam != "" {
		key = strings.TrimSpace(gc.Request.QueryValue(s.config.QueryParam))
	}
	if key == "" {
		return Credential{}, false
	}
	return Credential{Scheme: "api_key", Value: key}, true
}

// Verify looks up the hashed key.
func (s *APIKeyStrategy) Verify(ctx context.Context, cred Credential) (*guard.Principal, error) {
	info, err := s.store.Lookup(ctx, HashAPIKey(cred.Value))
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, ErrInvalidCredentials
	}
	if !info.ExpiresAt.IsZero() && s.config.Now().After(info.ExpiresAt) {
		return nil, ErrTokenExpired
	}

	claims := make(map[string]any, len(info.Metadata)+1)
	for k, v := range info.Metadata {
		claims[k] = v
	}
	claims["key_id"] = info.ID

	return &guard.Principal{
		ID:          info.Principal,
		Roles:       append([]string(nil), info.Roles...),
		Permissions: append([]string(nil), info.Permissions...),
		Method:      guard.MethodAPIKey,
		Claims:      claims,
		ExpiresAt:   info.ExpiresAt,
	}, nil
}

// HashAPIKey returns the SHA-256 hex digest used to store keys.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// MemoryAPIKeyStore is an in-memory APIKeyStore.
type MemoryAPIKeyStore struct {
	mu   sync.RWMutex
	keys map[string]*APIKeyInfo
}

// NewMemoryAPIKeyStore creates an empty store.
func NewMemoryAPIKeyStore() *MemoryAPIKeyStore {
	return &MemoryAPIKeyStore{keys: make(map[string]*APIKeyInfo)}
}

// Lookup returns the key registered under keyHash, or nil.
func (s *MemoryAPIKeyStore) Lookup(_ context.Context, keyHash string) (*APIKeyInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.keys[keyHash], nil
}

// Add registers a key by its hash.
func (s *MemoryAPIKeyStore) Add(info *APIKeyInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[info.KeyHash] = info
}

// Remove drops a key.
func (s *MemoryAPIKeyStore) Remove(keyHash string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, keyHash)
}

var (
	_ Strategy    = (*APIKeyStrategy)(nil)
	_ APIKeyStore = (*MemoryAPIKeyStore)(nil)
)
