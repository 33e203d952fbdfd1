// Package health reports whether guardd's shared stores are usable.
//
// Checkers probe one dependency each: RedisChecker pings the counter and
// cache backend, BreakerChecker reports a circuit breaker's state. An
// Aggregator runs them in parallel under a timeout and Routes exposes the
// result as /healthz (liveness) and /readyz (readiness, JSON).
//
// A degraded dependency keeps the service ready: the rate limiter and
// response cache already tolerate store loss, so only an unhealthy result
// turns /readyz into a 503.
package health
