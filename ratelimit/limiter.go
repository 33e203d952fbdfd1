package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jonwraymond/guardchain/guard"
)

// Algorithm selects how requests are counted.
type Algorithm string

const (
	FixedWindow   Algorithm = "fixed_window"
	SlidingWindow Algorithm = "sliding_window"
	TokenBucket   Algorithm = "token_bucket"
)

// Response headers set on every checked request.
const (
	HeaderLimit     = "X-RateLimit-Limit"
	HeaderRemaining = "X-RateLimit-Remaining"
)

// Config configures a Limiter.
type Config struct {
	// Name identifies the guard in errors and events.
	// Default: "ratelimit"
	Name string

	// Algorithm selects the admission algorithm.
	// Default: FixedWindow
	Algorithm Algorithm

	// Window is the counting window.
	// Default: 1 minute
	Window time.Duration

	// Max is the admitted count per window, or the bucket capacity.
	// Default: 60
	Max int64

	// RefillRate is tokens per second for TokenBucket.
	// Default: Max / Window
	RefillRate float64

	// Key derives the per-client key.
	// Default: ByRemoteAddr("", false)
	Key KeyFunc

	// Store holds the counters. Required.
	Store CounterStore

	// Prefix namespaces store keys.
	// Default: "ratelimit"
	Prefix string

	// FailOpen admits requests when the store fails instead of failing them.
	FailOpen bool

	// Observer receives store failures.
	Observer guard.Observer

	// Now is the clock used for window alignment and refill.
	// Default: time.Now
	Now func() time.Time
}

// Limiter is the rate limiting guard.
//
// Contract:
//   - Concurrency: safe for concurrent use; atomicity is delegated to Store.
//   - Context: store calls receive ctx; a consumed slot is not returned if the
//     request is later cancelled.
//   - Errors: denial yields a rate-limit error with RetryAfter > 0; store
//     failures yield an internal error unless FailOpen is set.
type Limiter struct {
	config Config
}

// decision is the outcome of one admission check.
type decision struct {
	admitted   bool
	remaining  int64
	retryAfter time.Duration
}

// New creates a Limiter.
func New(config Config) (*Limiter, error) {
	if config.Store == nil {
		return nil, ErrNoStore
	}
	if config.Name == "" {
		config.Name = "ratelimit"
	}
	if config.Algorithm == "" {
		config.Algorithm = FixedWindow
	}
	switch config.Algorithm {
	case FixedWindow, SlidingWindow, TokenBucket:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, config.Algorithm)
	}
	if config.Window == 0 {
		config.Window = time.Minute
	}
	if config.Max == 0 {
		config.Max = 60
	}
	if config.Window < 0 || config.Max < 0 || config.RefillRate < 0 {
		return nil, ErrInvalidLimit
	}
	if config.RefillRate == 0 {
		config.RefillRate = float64(config.Max) / config.Window.Seconds()
	}
	if config.Key == nil {
		config.Key = ByRemoteAddr("", false)
	}
	if config.Prefix == "" {
		config.Prefix = "ratelimit"
	}
	if config.Observer == nil {
		config.Observer = guard.NopObserver{}
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &Limiter{config: config}, nil
}

// Name returns the configured name.
func (l *Limiter) Name() string {
	return l.config.Name
}

// Attempt admits or throttles the request.
func (l *Limiter) Attempt(ctx context.Context, gc *guard.Context) error {
	key := l.config.Prefix + ":" + l.config.Key(gc)

	var (
		d   decision
		err error
	)
	switch l.config.Algorithm {
	case SlidingWindow:
		d, err = l.sliding(ctx, key)
	case TokenBucket:
		d, err = l.bucket(ctx, key)
	default:
		d, err = l.fixed(ctx, key)
	}

	if err != nil {
		ev := guard.NewEvent(guard.EventStoreError, gc)
		ev.Guard = l.config.Name
		ev.Err = err
		ev.Message = err.Error()
		ev.Attrs = map[string]any{"fail_open": l.config.FailOpen}
		l.config.Observer.Record(ctx, ev)
		if l.config.FailOpen {
			return nil
		}
		return guard.NewInternalError("ratelimit_unavailable", "rate limit store unavailable", err)
	}

	gc.SetResponseHeader(HeaderLimit, strconv.FormatInt(l.config.Max, 10))
	gc.SetResponseHeader(HeaderRemaining, strconv.FormatInt(d.remaining, 10))

	if !d.admitted {
		retry := d.retryAfter
		if retry <= 0 {
			retry = time.Second
		}
		return guard.NewRateLimitError(retry)
	}
	return nil
}

func (l *Limiter) fixed(ctx context.Context, key string) (decision, error) {
	now := l.config.Now()
	idx := now.UnixNano() / int64(l.config.Window)
	count, _, err := l.config.Store.Increment(ctx, windowKey(key, idx), l.config.Window)
	if err != nil {
		return decision{}, err
	}
	if count <= l.config.Max {
		return decision{admitted: true, remaining: l.config.Max - count}, nil
	}
	windowEnd := time.Unix(0, (idx+1)*int64(l.config.Window))
	return decision{retryAfter: windowEnd.Sub(now)}, nil
}

func (l *Limiter) sliding(ctx context.Context, key string) (decision, error) {
	now := l.config.Now()
	window := l.config.Window
	idx := now.UnixNano() / int64(window)
	elapsed := time.Duration(now.UnixNano() - idx*int64(window))

	// The current window must outlive its successor to serve as "previous".
	curr, _, err := l.config.Store.Increment(ctx, windowKey(key, idx), 2*window)
	if err != nil {
		return decision{}, err
	}
	prev, err := l.config.Store.Count(ctx, windowKey(key, idx-1))
	if err != nil {
		return decision{}, err
	}

	weight := 1 - float64(elapsed)/float64(window)
	estimate := float64(prev)*weight + float64(curr)
	if estimate <= float64(l.config.Max) {
		return decision{admitted: true, remaining: int64(float64(l.config.Max) - estimate)}, nil
	}

	// Wait until the previous window's share decays enough, or for the next
	// window when the current one alone exceeds the limit.
	retry := window - elapsed
	if curr < l.config.Max && prev > 0 {
		need := 1 - float64(l.config.Max-curr)/float64(prev)
		if wait := time.Duration(need*float64(window)) - elapsed; wait > 0 && wait < retry {
			retry = wait
		}
	}
	return decision{retryAfter: retry}, nil
}

func (l *Limiter) bucket(ctx context.Context, key string) (decision, error) {
	st, err := l.config.Store.Consume(ctx, key+":bucket", l.config.Max, l.config.RefillRate, l.config.Now())
	if err != nil {
		return decision{}, err
	}
	return decision{admitted: st.Admitted, remaining: st.Remaining, retryAfter: st.RetryAfter}, nil
}

func windowKey(key string, idx int64) string {
	return key + ":" + strconv.FormatInt(idx, 10)
}

var _ guard.Guard = (*Limiter)(nil)
