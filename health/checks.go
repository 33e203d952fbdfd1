package health

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/jonwraymond/guardchain/resilience"
)

// RedisChecker pings the Redis backend shared by the rate limiter,
// response cache and session store.
type RedisChecker struct {
	name   string
	client redis.UniversalClient
}

// NewRedisChecker creates a checker named name.
func NewRedisChecker(name string, client redis.UniversalClient) *RedisChecker {
	if name == "" {
		name = "redis"
	}
	return &RedisChecker{name: name, client: client}
}

func (c *RedisChecker) Name() string {
	return c.name
}

func (c *RedisChecker) Check(ctx context.Context) Result {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return Unhealthy("redis unreachable", err)
	}
	return Healthy("redis reachable")
}

// BreakerChecker reports a circuit breaker's state. An open or half-open
// breaker is degraded, not unhealthy: callers behind it fail open or fall
// back to misses.
type BreakerChecker struct {
	breaker *resilience.CircuitBreaker
}

// NewBreakerChecker creates a checker named after the breaker.
func NewBreakerChecker(breaker *resilience.CircuitBreaker) *BreakerChecker {
	return &BreakerChecker{breaker: breaker}
}

func (c *BreakerChecker) Name() string {
	return "breaker:" + c.breaker.Name()
}

func (c *BreakerChecker) Check(context.Context) Result {
	m := c.breaker.Metrics()
	details := map[string]any{
		"state":    m.State.String(),
		"failures": m.Failures,
		"rejected": m.Rejected,
	}
	if m.State == resilience.StateClosed {
		return Healthy("circuit closed").WithDetails(details)
	}
	return Degraded("circuit " + m.State.String()).WithDetails(details)
}

var (
	_ Checker = (*RedisChecker)(nil)
	_ Checker = (*BreakerChecker)(nil)
)
