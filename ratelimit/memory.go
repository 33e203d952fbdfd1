package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// MemoryStoreConfig configures a MemoryStore.
type MemoryStoreConfig struct {
	// IdleTTL is how long an untouched token bucket is kept.
	// Default: 15 minutes
	IdleTTL time.Duration

	// CleanupEvery is the janitor interval.
	// Default: 2 minutes
	CleanupEvery time.Duration

	// Now is the clock for counter expiry.
	// Default: time.Now
	Now func() time.Time
}

type counter struct {
	count     int64
	expiresAt time.Time
}

type bucketEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// MemoryStore is an in-process CounterStore. Token buckets use
// golang.org/x/time/rate limiters, one per key.
type MemoryStore struct {
	config MemoryStoreConfig

	mu       sync.Mutex
	counters map[string]*counter
	buckets  map[string]*bucketEntry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(config MemoryStoreConfig) *MemoryStore {
	if config.IdleTTL <= 0 {
		config.IdleTTL = 15 * time.Minute
	}
	if config.CleanupEvery <= 0 {
		config.CleanupEvery = 2 * time.Minute
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &MemoryStore{
		config:   config,
		counters: make(map[string]*counter),
		buckets:  make(map[string]*bucketEntry),
	}
}

// Increment adds one to the counter at key.
func (s *MemoryStore) Increment(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}
	now := s.config.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.counters[key]
	if !ok || !now.Before(c.expiresAt) {
		c = &counter{expiresAt: now.Add(window)}
		s.counters[key] = c
	}
	c.count++
	return c.count, c.expiresAt.Sub(now), nil
}

// Count returns the live counter at key.
func (s *MemoryStore) Count(ctx context.Context, key string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	now := s.config.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.counters[key]
	if !ok || !now.Before(c.expiresAt) {
		return 0, nil
	}
	return c.count, nil
}

// Consume spends one token from the bucket at key.
func (s *MemoryStore) Consume(ctx context.Context, key string, capacity int64, refillRate float64, now time.Time) (BucketState, error) {
	if err := ctx.Err(); err != nil {
		return BucketState{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ent, ok := s.buckets[key]
	if !ok {
		ent = &bucketEntry{lim: rate.NewLimiter(rate.Limit(refillRate), int(capacity))}
		s.buckets[key] = ent
	}
	ent.lastSeen = now

	r := ent.lim.ReserveN(now, 1)
	if !r.OK() {
		return BucketState{RetryAfter: time.Duration(float64(time.Second) / refillRate)}, nil
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return BucketState{RetryAfter: delay}, nil
	}
	return BucketState{
		Admitted:  true,
		Remaining: int64(math.Floor(ent.lim.TokensAt(now))),
	}, nil
}

// Cleanup drops expired counters and idle buckets.
func (s *MemoryStore) Cleanup() {
	now := s.config.Now()
	cutoff := now.Add(-s.config.IdleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, c := range s.counters {
		if !now.Before(c.expiresAt) {
			delete(s.counters, k)
		}
	}
	for k, b := range s.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(s.buckets, k)
		}
	}
}

// Len returns the number of tracked counters and buckets.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.counters) + len(s.buckets)
}

// StartJanitor runs Cleanup every CleanupEvery until ctx is done.
func (s *MemoryStore) StartJanitor(ctx context.Context) {
	t := time.NewTicker(s.config.CleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}

var _ CounterStore = (*MemoryStore)(nil)
