// Package resilience protects guardchain stages from slow or failing
// dependencies.
//
// # Circuit breaker
//
// A CircuitBreaker counts consecutive store failures and, past a threshold,
// rejects calls outright for ResetTimeout before letting a probe through.
// BreakerCounterStore and BreakerCacheStore wrap the rate limiter and
// response cache stores so a flapping Redis fails fast instead of adding
// latency to every request:
//
//	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
//	    Name:         "redis",
//	    MaxFailures:  5,
//	    ResetTimeout: 30 * time.Second,
//	})
//	counters := resilience.NewBreakerCounterStore(ratelimit.NewRedisStore(rdb), cb)
//	responses := resilience.NewBreakerCacheStore(cache.NewRedisStore(rdb), cb)
//
// Rejections surface as the wrapped package's ErrStoreUnavailable, so the
// rate limiter's FailOpen setting and the cache's degrade-to-miss behavior
// apply unchanged.
//
// # Bulkhead
//
// NewBulkheadGuard limits how many requests may be inside the chain at once.
// The slot is taken in Attempt and released when the request resolves:
//
//	chain := guard.New(guard.WithGuards(
//	    resilience.NewBulkheadGuard(resilience.BulkheadConfig{MaxConcurrent: 64}),
//	    limiter,
//	))
package resilience
