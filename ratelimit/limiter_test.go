package ratelimit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonwraymond/guardchain/guard"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	// Aligned to a minute boundary so window math is predictable.
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func requestFrom(addr string) *guard.Context {
	return guard.NewContext(&guard.Request{Method: "GET", Path: "/", RemoteAddr: addr})
}

func newTestLimiter(t *testing.T, cfg Config, clock *fakeClock) *Limiter {
	t.Helper()
	if cfg.Store == nil {
		cfg.Store = NewMemoryStore(MemoryStoreConfig{Now: clock.Now})
	}
	cfg.Now = clock.Now
	l, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return l
}

func TestNew_Validation(t *testing.T) {
	store := NewMemoryStore(MemoryStoreConfig{})
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{"no store", Config{}, ErrNoStore},
		{"unknown algorithm", Config{Store: store, Algorithm: "leaky"}, ErrUnknownAlgorithm},
		{"negative max", Config{Store: store, Max: -1}, ErrInvalidLimit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg); !errors.Is(err, tt.wantErr) {
				t.Errorf("New() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestFixedWindow(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(t, Config{Algorithm: FixedWindow, Max: 3, Window: time.Minute}, clock)

	for i := range 3 {
		if err := l.Attempt(context.Background(), requestFrom("10.0.0.1:1234")); err != nil {
			t.Fatalf("request %d: Attempt() error = %v", i+1, err)
		}
	}

	clock.Advance(10 * time.Second)
	err := l.Attempt(context.Background(), requestFrom("10.0.0.1:1234"))
	ge := guard.AsError(err)
	if ge == nil || ge.Kind != guard.KindRateLimit {
		t.Fatalf("4th Attempt() error = %v, want rate limit", err)
	}
	if ge.RetryAfter != 50*time.Second {
		t.Errorf("RetryAfter = %v, want 50s", ge.RetryAfter)
	}
	if ge.Code != "rate_limited" {
		t.Errorf("Code = %q", ge.Code)
	}

	if err := l.Attempt(context.Background(), requestFrom("10.0.0.2:1234")); err != nil {
		t.Errorf("other client Attempt() error = %v", err)
	}

	clock.Advance(50 * time.Second)
	if err := l.Attempt(context.Background(), requestFrom("10.0.0.1:1234")); err != nil {
		t.Errorf("next window Attempt() error = %v", err)
	}
}

func TestFixedWindow_Headers(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(t, Config{Max: 2}, clock)

	gc := requestFrom("10.0.0.1:1")
	_ = l.Attempt(context.Background(), gc)
	if got := gc.ResponseHeader().Get(HeaderLimit); got != "2" {
		t.Errorf("%s = %q, want 2", HeaderLimit, got)
	}
	if got := gc.ResponseHeader().Get(HeaderRemaining); got != "1" {
		t.Errorf("%s = %q, want 1", HeaderRemaining, got)
	}

	_ = l.Attempt(context.Background(), requestFrom("10.0.0.1:1"))
	gc = requestFrom("10.0.0.1:1")
	_ = l.Attempt(context.Background(), gc)
	if got := gc.ResponseHeader().Get(HeaderRemaining); got != "0" {
		t.Errorf("%s on denial = %q, want 0", HeaderRemaining, got)
	}
}

func TestSlidingWindow(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(t, Config{Algorithm: SlidingWindow, Max: 4, Window: time.Minute}, clock)
	ctx := context.Background()

	// Fill the first window late so the boundary burst is visible.
	clock.Advance(50 * time.Second)
	for i := range 4 {
		if err := l.Attempt(ctx, requestFrom("c:1")); err != nil {
			t.Fatalf("request %d: Attempt() error = %v", i+1, err)
		}
	}

	// 15s into the next window the previous window still weighs 0.75*4 = 3.
	clock.Advance(25 * time.Second)
	if err := l.Attempt(ctx, requestFrom("c:1")); err != nil {
		t.Fatalf("first request in new window: %v", err)
	}
	err := l.Attempt(ctx, requestFrom("c:1"))
	ge := guard.AsError(err)
	if ge == nil || ge.Kind != guard.KindRateLimit {
		t.Fatalf("Attempt() error = %v, want rate limit", err)
	}
	if ge.RetryAfter <= 0 || ge.RetryAfter > 45*time.Second {
		t.Errorf("RetryAfter = %v, want within the current window", ge.RetryAfter)
	}

	// Once the previous window has fully decayed, budget returns.
	clock.Advance(45 * time.Second)
	if err := l.Attempt(ctx, requestFrom("c:1")); err != nil {
		t.Errorf("after decay Attempt() error = %v", err)
	}
}

func TestTokenBucket(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(t, Config{Algorithm: TokenBucket, Max: 5, RefillRate: 1}, clock)
	ctx := context.Background()

	for i := range 5 {
		if err := l.Attempt(ctx, requestFrom("c:1")); err != nil {
			t.Fatalf("request %d: Attempt() error = %v", i+1, err)
		}
	}
	ge := guard.AsError(l.Attempt(ctx, requestFrom("c:1")))
	if ge == nil || ge.Kind != guard.KindRateLimit {
		t.Fatalf("6th Attempt() = %v, want rate limit", ge)
	}
	if ge.RetryAfter <= 0 || ge.RetryAfter > time.Second {
		t.Errorf("RetryAfter = %v, want (0, 1s]", ge.RetryAfter)
	}

	clock.Advance(time.Second)
	if err := l.Attempt(ctx, requestFrom("c:1")); err != nil {
		t.Errorf("after refill Attempt() error = %v", err)
	}
}

type failingStore struct{}

func (failingStore) Increment(context.Context, string, time.Duration) (int64, time.Duration, error) {
	return 0, 0, ErrStoreUnavailable
}

func (failingStore) Count(context.Context, string) (int64, error) {
	return 0, ErrStoreUnavailable
}

func (failingStore) Consume(context.Context, string, int64, float64, time.Time) (BucketState, error) {
	return BucketState{}, ErrStoreUnavailable
}

func TestLimiter_StoreFailure(t *testing.T) {
	var recorded atomic.Int32
	obs := guard.ObserverFunc(func(_ context.Context, ev guard.Event) {
		if ev.Name == guard.EventStoreError {
			recorded.Add(1)
		}
	})

	t.Run("fail closed", func(t *testing.T) {
		l, _ := New(Config{Store: failingStore{}, Observer: obs})
		ge := guard.AsError(l.Attempt(context.Background(), requestFrom("c:1")))
		if ge == nil || ge.Kind != guard.KindInternal || ge.Code != "ratelimit_unavailable" {
			t.Errorf("Attempt() = %v, want internal ratelimit_unavailable", ge)
		}
		if !errors.Is(ge, ErrStoreUnavailable) {
			t.Error("error should wrap ErrStoreUnavailable")
		}
	})

	t.Run("fail open", func(t *testing.T) {
		l, _ := New(Config{Store: failingStore{}, Observer: obs, FailOpen: true, Algorithm: TokenBucket})
		if err := l.Attempt(context.Background(), requestFrom("c:1")); err != nil {
			t.Errorf("Attempt() error = %v, want admitted", err)
		}
	})

	if recorded.Load() != 2 {
		t.Errorf("store errors recorded = %d, want 2", recorded.Load())
	}
}

func TestFixedWindow_ConcurrentAdmissionsNeverExceedMax(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(t, Config{Max: 10}, clock)

	var admitted atomic.Int32
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Attempt(context.Background(), requestFrom("c:1")) == nil {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()
	if admitted.Load() != 10 {
		t.Errorf("admitted = %d, want 10", admitted.Load())
	}
}
