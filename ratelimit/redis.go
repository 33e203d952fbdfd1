package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
)

// incrementScript increments a counter and sets its expiry on creation.
var incrementScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

// consumeScript refills and spends a token bucket stored as a hash of
// tokens and ts (unix milliseconds).
var consumeScript = redis.NewScript(`
local capacity = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local state = redis.call('HMGET', KEYS[1], 'tokens', 'ts')
local tokens = tonumber(state[1])
local ts = tonumber(state[2])
if tokens == nil or ts == nil then
  tokens = capacity
  ts = now
end
local elapsed = now - ts
if elapsed < 0 then
  elapsed = 0
end
tokens = math.min(capacity, tokens + elapsed * rate / 1000)
local admitted = 0
local retry = 0
if tokens >= 1 then
  tokens = tokens - 1
  admitted = 1
else
  retry = math.ceil((1 - tokens) * 1000 / rate)
end
redis.call('HSET', KEYS[1], 'tokens', tostring(tokens), 'ts', tostring(math.max(now, ts)))
redis.call('PEXPIRE', KEYS[1], math.ceil(capacity * 1000 / rate) + 1000)
return {admitted, retry, math.floor(tokens)}
`)

// RedisStore is a CounterStore backed by Redis. Every operation is a single
// command or Lua script, so concurrent instances never interleave a read and
// its write.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore creates a Redis-backed counter store.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

// Increment adds one to the counter at key.
func (s *RedisStore) Increment(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	res, err := incrementScript.Run(ctx, s.client, []string{key}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return 0, 0, fmt.Errorf("%w: increment: %v", ErrStoreUnavailable, err)
	}
	if len(res) != 2 {
		return 0, 0, fmt.Errorf("%w: increment: unexpected reply %v", ErrStoreUnavailable, res)
	}
	return res[0], time.Duration(res[1]) * time.Millisecond, nil
}

// Count returns the counter at key, or 0 when absent.
func (s *RedisStore) Count(ctx context.Context, key string) (int64, error) {
	n, err := s.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: count: %v", ErrStoreUnavailable, err)
	}
	return n, nil
}

// Consume spends one token from the bucket at key.
func (s *RedisStore) Consume(ctx context.Context, key string, capacity int64, refillRate float64, now time.Time) (BucketState, error) {
	res, err := consumeScript.Run(ctx, s.client, []string{key}, capacity, refillRate, now.UnixMilli()).Int64Slice()
	if err != nil {
		return BucketState{}, fmt.Errorf("%w: consume: %v", ErrStoreUnavailable, err)
	}
	if len(res) != 3 {
		return BucketState{}, fmt.Errorf("%w: consume: unexpected reply %v", ErrStoreUnavailable, res)
	}
	return BucketState{
		Admitted:   res[0] == 1,
		RetryAfter: time.Duration(res[1]) * time.Millisecond,
		Remaining:  int64(math.Max(0, float64(res[2]))),
	}, nil
}

var _ CounterStore = (*RedisStore)(nil)
