package observe

import (
	"context"
	"time"

	"github.com/jonwraymond/guardchain/guard"
)

// Recorder turns chain events into log lines and metric points.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Errors: recording never fails or blocks the request beyond the logger's write.
type Recorder struct {
	logger  Logger
	metrics Metrics
}

// NewRecorder creates a Recorder. Nil arguments are replaced by no-ops.
func NewRecorder(logger Logger, metrics Metrics) *Recorder {
	if logger == nil {
		logger = NopLogger()
	}
	if metrics == nil {
		metrics = NopMetrics()
	}
	return &Recorder{logger: logger, metrics: metrics}
}

// Record implements guard.Observer.
func (r *Recorder) Record(ctx context.Context, ev guard.Event) {
	log := r.logger.WithRoute(RouteMeta{
		Method:  ev.Method,
		Path:    ev.Path,
		TraceID: ev.TraceID,
		Guard:   ev.Guard,
	})

	switch ev.Name {
	case guard.EventRequestStart:
		log.Debug(ctx, "request started")

	case guard.EventRequestEnd:
		r.metrics.RecordRequest(ctx, ev.Method, ev.Status, ev.Duration)
		fields := []Field{
			{Key: "status", Value: ev.Status},
			{Key: "duration_ms", Value: durationMillis(ev.Duration)},
		}
		if ev.Kind != "" {
			fields = append(fields, Field{Key: "error_kind", Value: ev.Kind})
		}
		log.Info(ctx, "request completed", fields...)

	case guard.EventError:
		r.metrics.RecordError(ctx, ev.Kind, ev.Code, ev.Guard)
		fields := []Field{
			{Key: "status", Value: ev.Status},
			{Key: "error_kind", Value: ev.Kind},
			{Key: "error_code", Value: ev.Code},
			{Key: "error", Value: errorText(ev)},
		}
		if ev.Status >= 500 {
			log.Error(ctx, "request failed", fields...)
		} else {
			log.Warn(ctx, "request rejected", fields...)
		}

	case guard.EventCacheHit:
		r.metrics.RecordCache(ctx, CacheHit)
		log.Debug(ctx, "cache hit", attrFields(ev)...)

	case guard.EventCacheMiss:
		r.metrics.RecordCache(ctx, CacheMiss)
		log.Debug(ctx, "cache miss", attrFields(ev)...)

	case guard.EventCacheError:
		r.metrics.RecordCache(ctx, CacheError)
		log.Warn(ctx, "cache store failed", append(attrFields(ev), Field{Key: "error", Value: errorText(ev)})...)

	case guard.EventStoreError:
		log.Warn(ctx, "counter store failed", append(attrFields(ev), Field{Key: "error", Value: errorText(ev)})...)

	case guard.EventPanic:
		log.Error(ctx, "recovered panic", Field{Key: "error", Value: errorText(ev)})

	case guard.EventWriteError:
		log.Warn(ctx, "response write failed",
			Field{Key: "status", Value: ev.Status},
			Field{Key: "error", Value: errorText(ev)},
		)

	default:
		log.Debug(ctx, ev.Name, attrFields(ev)...)
	}
}

func durationMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func errorText(ev guard.Event) string {
	if ev.Message != "" {
		return ev.Message
	}
	if ev.Err != nil {
		return ev.Err.Error()
	}
	return ""
}

func attrFields(ev guard.Event) []Field {
	if len(ev.Attrs) == 0 {
		return nil
	}
	fields := make([]Field, 0, len(ev.Attrs))
	for k, v := range ev.Attrs {
		fields = append(fields, Field{Key: k, Value: v})
	}
	return fields
}

var _ guard.Observer = (*Recorder)(nil)
