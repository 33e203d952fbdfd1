package observe

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Cache results reported to RecordCache.
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"
)

// Metrics records request metrics for guard chains.
//
// Contract:
//   - Concurrency: implementations must be safe for concurrent use.
//   - Errors: implementations must not panic.
type Metrics interface {
	// RecordRequest records one resolved request.
	RecordRequest(ctx context.Context, method string, status int, duration time.Duration)

	// RecordError records one failure routed to the error handler.
	RecordError(ctx context.Context, kind, code, guardName string)

	// RecordCache records one response cache lookup or store result.
	RecordCache(ctx context.Context, result string)
}

type metricsImpl struct {
	requests     metric.Int64Counter
	errors       metric.Int64Counter
	cacheResults metric.Int64Counter
	durationHist metric.Float64Histogram
}

// NewMetrics creates the guard instruments on meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	requests, err := meter.Int64Counter(
		"guard.requests.total",
		metric.WithDescription("Total number of requests resolved by a guard chain"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	errs, err := meter.Int64Counter(
		"guard.errors.total",
		metric.WithDescription("Total number of guard chain failures"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	cacheResults, err := meter.Int64Counter(
		"guard.cache.results",
		metric.WithDescription("Response cache lookups and stores by result"),
		metric.WithUnit("{result}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		"guard.request.duration_ms",
		metric.WithDescription("Time from chain entry to resolution in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		requests:     requests,
		errors:       errs,
		cacheResults: cacheResults,
		durationHist: durationHist,
	}, nil
}

func (m *metricsImpl) RecordRequest(ctx context.Context, method string, status int, duration time.Duration) {
	opt := metric.WithAttributes(
		attribute.String("http.request.method", method),
		attribute.String("http.response.status_class", statusClass(status)),
	)
	m.requests.Add(ctx, 1, opt)
	m.durationHist.Record(ctx, float64(duration)/float64(time.Millisecond), opt)
}

func (m *metricsImpl) RecordError(ctx context.Context, kind, code, guardName string) {
	m.errors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("guard.error.kind", kind),
		attribute.String("guard.error.code", code),
		attribute.String("guard.name", guardName),
	))
}

func (m *metricsImpl) RecordCache(ctx context.Context, result string) {
	m.cacheResults.Add(ctx, 1, metric.WithAttributes(attribute.String("guard.cache.result", result)))
}

func statusClass(status int) string {
	if status < 100 || status > 599 {
		return "unknown"
	}
	return strconv.Itoa(status/100) + "xx"
}

type noopMetrics struct{}

// NopMetrics returns Metrics that discard everything.
func NopMetrics() Metrics {
	return noopMetrics{}
}

func (noopMetrics) RecordRequest(context.Context, string, int, time.Duration) {}
func (noopMetrics) RecordError(context.Context, string, string, string)       {}
func (noopMetrics) RecordCache(context.Context, string)                       {}
