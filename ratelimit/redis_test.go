package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonwraymond/guardchain/guard"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client), mr
}

func TestRedisStore_Increment(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	count, ttl, err := store.Increment(ctx, "rl:k:1", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.InDelta(t, float64(time.Minute), float64(ttl), float64(time.Second))

	count, _, err = store.Increment(ctx, "rl:k:1", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	n, err := store.Count(ctx, "rl:k:1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	mr.FastForward(61 * time.Second)
	n, err = store.Count(ctx, "rl:k:1")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRedisStore_Consume(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := range 5 {
		st, err := store.Consume(ctx, "rl:bucket", 5, 1, now)
		require.NoError(t, err)
		assert.True(t, st.Admitted, "request %d", i+1)
		assert.Equal(t, int64(4-i), st.Remaining)
	}

	st, err := store.Consume(ctx, "rl:bucket", 5, 1, now)
	require.NoError(t, err)
	assert.False(t, st.Admitted)
	assert.Equal(t, time.Second, st.RetryAfter)

	st, err = store.Consume(ctx, "rl:bucket", 5, 1, now.Add(time.Second))
	require.NoError(t, err)
	assert.True(t, st.Admitted)
}

func TestRedisStore_Unavailable(t *testing.T) {
	store, mr := newRedisStore(t)
	mr.Close()

	_, _, err := store.Increment(context.Background(), "k", time.Minute)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	_, err = store.Consume(context.Background(), "k", 1, 1, time.Now())
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestLimiter_SharedRedisBudget(t *testing.T) {
	store, _ := newRedisStore(t)
	clock := newFakeClock()

	// Two limiters model two server instances sharing one budget.
	a := newTestLimiter(t, Config{Max: 2, Store: store}, clock)
	b := newTestLimiter(t, Config{Max: 2, Store: store}, clock)

	require.NoError(t, a.Attempt(context.Background(), requestFrom("10.1.1.1:1")))
	require.NoError(t, b.Attempt(context.Background(), requestFrom("10.1.1.1:2")))

	ge := guard.AsError(a.Attempt(context.Background(), requestFrom("10.1.1.1:3")))
	require.NotNil(t, ge)
	assert.Equal(t, guard.KindRateLimit, ge.Kind)
	assert.Equal(t, 429, ge.Status())
}
