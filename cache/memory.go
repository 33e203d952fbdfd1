package cache

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// MemoryStoreConfig configures a MemoryStore.
type MemoryStoreConfig struct {
	// Size bounds the number of entries; the least recently used is evicted.
	// Default: 4096
	Size int

	// Now is the expiry clock.
	// Default: time.Now
	Now func() time.Time
}

// MemoryStore is a bounded in-memory Store with per-entry expiry.
type MemoryStore struct {
	// mu orders expiry removal against Set so a fresh entry is never evicted
	// in place of the stale one.
	mu      sync.Mutex
	entries *lru.Cache[string, *Entry]
	now     func() time.Time
}

// NewMemoryStore creates a bounded in-memory store.
func NewMemoryStore(config MemoryStoreConfig) (*MemoryStore, error) {
	if config.Size <= 0 {
		config.Size = 4096
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	entries, err := lru.New[string, *Entry](config.Size)
	if err != nil {
		return nil, err
	}
	return &MemoryStore{entries: entries, now: config.Now}, nil
}

// Get retrieves an entry. Expired entries are removed lazily.
func (s *MemoryStore) Get(_ context.Context, key string) (*Entry, bool, error) {
	entry, ok := s.entries.Get(key)
	if !ok {
		return nil, false, nil
	}
	if entry.Expired(s.now()) {
		s.mu.Lock()
		if cur, ok := s.entries.Peek(key); ok && cur == entry {
			s.entries.Remove(key)
		}
		s.mu.Unlock()
		return nil, false, nil
	}
	return entry, true, nil
}

// Set stores an entry. A non-positive ttl stores nothing.
func (s *MemoryStore) Set(_ context.Context, key string, entry *Entry, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	stored := *entry
	stored.ExpiresAt = s.now().Add(ttl)
	s.mu.Lock()
	s.entries.Add(key, &stored)
	s.mu.Unlock()
	return nil
}

// Delete removes entries. Idempotent - no error on miss.
func (s *MemoryStore) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		s.entries.Remove(k)
	}
	return nil
}

// Invalidate removes keys and all of their variants.
func (s *MemoryStore) Invalidate(_ context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	for _, k := range s.entries.Keys() {
		for _, base := range keys {
			if IsVariant(k, base) {
				s.entries.Remove(k)
				break
			}
		}
	}
	return nil
}

// Len returns the number of resident entries, including expired ones.
func (s *MemoryStore) Len() int {
	return s.entries.Len()
}

var _ Store = (*MemoryStore)(nil)
