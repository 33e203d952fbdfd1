package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jonwraymond/guardchain/guard"
)

// SessionConfig configures the session cookie strategy.
type SessionConfig struct {
	// Name identifies the strategy.
	// Default: "session"
	Name string

	// Cookie is the session cookie name.
	// Default: "session_id"
	Cookie string
}

// SessionStore resolves session ids.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: unknown or expired sessions return ErrSessionNotFound.
type SessionStore interface {
	Session(ctx context.Context, id string) (*guard.Principal, error)
}

// SessionStrategy authenticates requests carrying a session cookie.
type SessionStrategy struct {
	config SessionConfig
	store  SessionStore
}

// NewSessionStrategy creates a session strategy.
func NewSessionStrategy(config SessionConfig, store SessionStore) (*SessionStrategy, error) {
	if store == nil {
		return nil, ErrNoStore
	}
	if config.Name == "" {
		config.Name = "session"
	}
	if config.Cookie == "" {
		config.Cookie = "session_id"
	}
	return &SessionStrategy{config: config, store: store}, nil
}

// Name returns the configured name.
func (s *SessionStrategy) Name() string {
	return s.config.Name
}

// Extract finds the session cookie.
func (s *SessionStrategy) Extract(gc *guard.Context) (Credential, bool) {
	for _, line := range gc.Request.Headers["Cookie"] {
		cookies, err := http.ParseCookie(line)
		if err != nil {
			continue
		}
		for _, c := range cookies {
			if c.Name == s.config.Cookie && c.Value != "" {
				return Credential{Scheme: "session", Value: c.Value}, true
			}
		}
	}
	return Credential{}, false
}

// Verify resolves the session.
func (s *SessionStrategy) Verify(ctx context.Context, cred Credential) (*guard.Principal, error) {
	return s.store.Session(ctx, cred.Value)
}

// MemorySessionStore keeps sessions in process memory.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*guard.Principal
	now      func() time.Time
}

// NewMemorySessionStore creates an empty session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]*guard.Principal), now: time.Now}
}

// Put stores a session. A positive ttl sets the principal's expiry.
func (s *MemorySessionStore) Put(id string, p *guard.Principal, ttl time.Duration) {
	cp := *p
	cp.Method = guard.MethodSession
	if ttl > 0 {
		cp.ExpiresAt = s.now().Add(ttl)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = &cp
}

// Delete removes a session.
func (s *MemorySessionStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Session returns the stored principal.
func (s *MemorySessionStore) Session(_ context.Context, id string) (*guard.Principal, error) {
	s.mu.RLock()
	p, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok || p.IsExpired(s.now()) {
		return nil, ErrSessionNotFound
	}
	return p, nil
}

// RedisSessionStore keeps sessions in Redis as JSON with a TTL.
type RedisSessionStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisSessionStore creates a Redis-backed session store.
// Default prefix: "session:"
func NewRedisSessionStore(client redis.UniversalClient, prefix string) *RedisSessionStore {
	if prefix == "" {
		prefix = "session:"
	}
	return &RedisSessionStore{client: client, prefix: prefix}
}

type sessionRecord struct {
	ID          string         `json:"id"`
	Roles       []string       `json:"roles,omitempty"`
	Permissions []string       `json:"permissions,omitempty"`
	Claims      map[string]any `json:"claims,omitempty"`
	ExpiresAt   time.Time      `json:"expires_at,omitzero"`
}

// Put stores a session with the given ttl.
func (s *RedisSessionStore) Put(ctx context.Context, id string, p *guard.Principal, ttl time.Duration) error {
	rec := sessionRecord{ID: p.ID, Roles: p.Roles, Permissions: p.Permissions, Claims: p.Claims}
	if ttl > 0 {
		rec.ExpiresAt = time.Now().Add(ttl).UTC()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("auth: encode session: %w", err)
	}
	return s.client.Set(ctx, s.prefix+id, data, ttl).Err()
}

// Delete removes a session.
func (s *RedisSessionStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, s.prefix+id).Err()
}

// Session loads the session.
func (s *RedisSessionStore) Session(ctx context.Context, id string) (*guard.Principal, error) {
	data, err := s.client.Get(ctx, s.prefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("auth: load session: %w", err)
	}
	var rec sessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("auth: decode session: %w", err)
	}
	return &guard.Principal{
		ID:          rec.ID,
		Roles:       rec.Roles,
		Permissions: rec.Permissions,
		Claims:      rec.Claims,
		Method:      guard.MethodSession,
		ExpiresAt:   rec.ExpiresAt,
	}, nil
}

var (
	_ Strategy     = (*SessionStrategy)(nil)
	_ SessionStore = (*MemorySessionStore)(nil)
	_ SessionStore = (*RedisSessionStore)(nil)
)
