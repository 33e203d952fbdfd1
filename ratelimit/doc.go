// Package ratelimit provides the rate limiter guard and its counter stores.
//
// A Limiter derives a key from each request, consults a shared CounterStore
// and either admits the request or fails it with a rate-limit error carrying
// the retry-after duration.
//
// # Algorithms
//
//   - FixedWindow counts requests in windows aligned to floor(now/window).
//   - SlidingWindow interpolates the previous and current fixed windows so the
//     admitted count approximates the trailing window.
//   - TokenBucket refills RefillRate tokens per second up to Max and spends one
//     token per request.
//
// # Stores
//
// MemoryStore keeps state in process memory and suits single instances.
// RedisStore keeps state in Redis so several instances share one budget.
// Both perform each check-and-update atomically per key.
//
// # Usage
//
//	limiter, err := ratelimit.New(ratelimit.Config{
//		Algorithm: ratelimit.TokenBucket,
//		Window:    time.Minute,
//		Max:       120,
//		Key:       ratelimit.ByPrincipal(),
//		Store:     ratelimit.NewRedisStore(client),
//	})
package ratelimit
