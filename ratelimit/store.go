package ratelimit

import (
	"context"
	"time"
)

// BucketState is the outcome of a token bucket consumption.
type BucketState struct {
	// Admitted reports whether a token was spent.
	Admitted bool

	// Remaining is the whole number of tokens left after the call.
	Remaining int64

	// RetryAfter is how long until a token is available. Zero when admitted.
	RetryAfter time.Duration
}

// CounterStore holds rate limit records shared by all requests.
//
// Contract:
//   - Concurrency: implementations must be safe for concurrent use, and each
//     method must read and update a key atomically.
//   - Context: implementations must honor cancellation at I/O points.
//   - Errors: any error means the store could not answer.
type CounterStore interface {
	// Increment adds one to the counter at key, creating it with the given
	// window as expiry, and returns the new count and its remaining TTL.
	Increment(ctx context.Context, key string, window time.Duration) (count int64, ttl time.Duration, err error)

	// Count returns the counter at key, or 0 when absent.
	Count(ctx context.Context, key string) (int64, error)

	// Consume refills the bucket at key to now and spends one token if
	// available.
	Consume(ctx context.Context, key string, capacity int64, refillRate float64, now time.Time) (BucketState, error)
}
