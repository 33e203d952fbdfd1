package resilience

import (
	"context"
	"fmt"
	"time"

	"github.com/jonwraymond/guardchain/cache"
	"github.com/jonwraymond/guardchain/ratelimit"
)

// BreakerCounterStore routes rate limiter store calls through a breaker.
type BreakerCounterStore struct {
	next    ratelimit.CounterStore
	breaker *CircuitBreaker
}

// NewBreakerCounterStore wraps next with breaker.
func NewBreakerCounterStore(next ratelimit.CounterStore, breaker *CircuitBreaker) *BreakerCounterStore {
	return &BreakerCounterStore{next: next, breaker: breaker}
}

func (s *BreakerCounterStore) Increment(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if err := s.breaker.Allow(); err != nil {
		return 0, 0, fmt.Errorf("%w: %w", ratelimit.ErrStoreUnavailable, err)
	}
	n, ttl, err := s.next.Increment(ctx, key, window)
	s.breaker.Record(err)
	return n, ttl, err
}

func (s *BreakerCounterStore) Count(ctx context.Context, key string) (int64, error) {
	if err := s.breaker.Allow(); err != nil {
		return 0, fmt.Errorf("%w: %w", ratelimit.ErrStoreUnavailable, err)
	}
	n, err := s.next.Count(ctx, key)
	s.breaker.Record(err)
	return n, err
}

func (s *BreakerCounterStore) Consume(ctx context.Context, key string, capacity int64, refillRate float64, now time.Time) (ratelimit.BucketState, error) {
	if err := s.breaker.Allow(); err != nil {
		return ratelimit.BucketState{}, fmt.Errorf("%w: %w", ratelimit.ErrStoreUnavailable, err)
	}
	st, err := s.next.Consume(ctx, key, capacity, refillRate, now)
	s.breaker.Record(err)
	return st, err
}

// BreakerCacheStore routes response cache store calls through a breaker.
type BreakerCacheStore struct {
	next    cache.Store
	breaker *CircuitBreaker
}

// NewBreakerCacheStore wraps next with breaker.
func NewBreakerCacheStore(next cache.Store, breaker *CircuitBreaker) *BreakerCacheStore {
	return &BreakerCacheStore{next: next, breaker: breaker}
}

func (s *BreakerCacheStore) Get(ctx context.Context, key string) (*cache.Entry, bool, error) {
	if err := s.breaker.Allow(); err != nil {
		return nil, false, fmt.Errorf("%w: %w", cache.ErrStoreUnavailable, err)
	}
	e, ok, err := s.next.Get(ctx, key)
	s.breaker.Record(err)
	return e, ok, err
}

func (s *BreakerCacheStore) Set(ctx context.Context, key string, entry *cache.Entry, ttl time.Duration) error {
	if err := s.breaker.Allow(); err != nil {
		return fmt.Errorf("%w: %w", cache.ErrStoreUnavailable, err)
	}
	err := s.next.Set(ctx, key, entry, ttl)
	s.breaker.Record(err)
	return err
}

func (s *BreakerCacheStore) Delete(ctx context.Context, keys ...string) error {
	if err := s.breaker.Allow(); err != nil {
		return fmt.Errorf("%w: %w", cache.ErrStoreUnavailable, err)
	}
	err := s.next.Delete(ctx, keys...)
	s.breaker.Record(err)
	return err
}

func (s *BreakerCacheStore) Invalidate(ctx context.Context, keys ...string) error {
	if err := s.breaker.Allow(); err != nil {
		return fmt.Errorf("%w: %w", cache.ErrStoreUnavailable, err)
	}
	err := s.next.Invalidate(ctx, keys...)
	s.breaker.Record(err)
	return err
}

var (
	_ ratelimit.CounterStore = (*BreakerCounterStore)(nil)
	_ cache.Store            = (*BreakerCacheStore)(nil)
)
