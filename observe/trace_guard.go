package observe

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/jonwraymond/guardchain/guard"
)

// DefaultTraceHeader carries the correlation id in and out.
const DefaultTraceHeader = "X-Request-ID"

// MaxTraceIDLength bounds accepted inbound correlation ids.
const MaxTraceIDLength = 128

const spanKey = "observe.span"

// TraceConfig configures a TraceGuard.
type TraceConfig struct {
	// Name identifies the guard.
	// Default: "trace"
	Name string

	// Header is read for an inbound id and written when Mirror is set.
	// Default: DefaultTraceHeader
	Header string

	// Mirror copies the id onto the response.
	Mirror bool

	// Observer receives request.start and request.end events.
	// Default: guard.NopObserver
	Observer guard.Observer

	// Tracer opens one span per request when set.
	Tracer Tracer

	// Generate creates a new id.
	// Default: uuid.NewString
	Generate func() string
}

// TraceGuard assigns correlation ids and reports request boundaries.
// It never fails a request.
type TraceGuard struct {
	config TraceConfig
}

// NewTraceGuard creates a TraceGuard.
func NewTraceGuard(config TraceConfig) *TraceGuard {
	if config.Name == "" {
		config.Name = "trace"
	}
	if config.Header == "" {
		config.Header = DefaultTraceHeader
	}
	if config.Observer == nil {
		config.Observer = guard.NopObserver{}
	}
	if config.Generate == nil {
		config.Generate = uuid.NewString
	}
	return &TraceGuard{config: config}
}

// Name returns the configured name.
func (g *TraceGuard) Name() string {
	return g.config.Name
}

// Attempt sets gc.TraceID from the inbound header or a fresh id.
func (g *TraceGuard) Attempt(ctx context.Context, gc *guard.Context) error {
	id := gc.Request.Header(g.config.Header)
	if !validTraceID(id) {
		id = g.config.Generate()
	}
	gc.TraceID = id
	if g.config.Mirror {
		gc.SetResponseHeader(g.config.Header, id)
	}

	if g.config.Tracer != nil {
		_, span := g.config.Tracer.StartSpan(ctx, RouteMeta{
			Method:  gc.Request.Method,
			Path:    gc.Request.Path,
			TraceID: id,
		})
		gc.Set(spanKey, span)
	}

	ev := guard.NewEvent(guard.EventRequestStart, gc)
	ev.Guard = g.config.Name
	g.config.Observer.Record(ctx, ev)
	return nil
}

// Complete reports the request's status and elapsed time and ends the span.
func (g *TraceGuard) Complete(ctx context.Context, gc *guard.Context, out guard.Outcome) {
	ev := guard.NewEvent(guard.EventRequestEnd, gc)
	ev.Guard = g.config.Name
	ev.Status = out.Status
	ev.Duration = out.Duration
	if out.Err != nil {
		ev.Kind = out.Err.Kind.String()
		ev.Code = out.Err.ErrorCode()
	}
	if out.Early {
		ev.Attrs = map[string]any{"early": true}
	}
	g.config.Observer.Record(ctx, ev)

	if v, ok := gc.Get(spanKey); ok {
		if span, ok := v.(trace.Span); ok {
			var err error
			if out.Err != nil {
				err = out.Err
			}
			g.config.Tracer.EndSpan(span, out.Status, err)
		}
	}
}

// ObservesRejections lets the id and boundary events cover requests the
// transport rejects.
func (g *TraceGuard) ObservesRejections() {}

func validTraceID(id string) bool {
	if id == "" || len(id) > MaxTraceIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-' || c == '_' || c == '.' || c == ':':
		default:
			return false
		}
	}
	return true
}

var (
	_ guard.Guard     = (*TraceGuard)(nil)
	_ guard.Completer = (*TraceGuard)(nil)
	_ guard.Observing = (*TraceGuard)(nil)
)
