package guard

import (
	"context"
	"time"
)

// Event names emitted by the chain and its guards.
const (
	EventRequestStart = "request.start"
	EventRequestEnd   = "request.end"
	EventError        = "request.error"
	EventCacheError   = "cache.error"
	EventCacheHit     = "cache.hit"
	EventCacheMiss    = "cache.miss"
	EventStoreError   = "store.error"
	EventWriteError   = "response.write_error"
	EventPanic        = "guard.panic"
)

// Event is a single observation reported to an Observer.
type Event struct {
	Name     string
	TraceID  string
	Guard    string
	Method   string
	Path     string
	Status   int
	Kind     string
	Code     string
	Message  string
	Duration time.Duration
	Err      error
	Attrs    map[string]any
}

// Observer receives events for logging and metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: recording is best-effort and must not panic or block the request.
type Observer interface {
	Record(ctx context.Context, ev Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, ev Event)

// Record calls f.
func (f ObserverFunc) Record(ctx context.Context, ev Event) {
	f(ctx, ev)
}

// NopObserver discards every event.
type NopObserver struct{}

// Record does nothing.
func (NopObserver) Record(context.Context, Event) {}

// MultiObserver fans an event out to several observers.
type MultiObserver []Observer

// Record forwards ev to every non-nil observer.
func (m MultiObserver) Record(ctx context.Context, ev Event) {
	for _, o := range m {
		if o != nil {
			o.Record(ctx, ev)
		}
	}
}

// NewEvent fills request identity fields from gc.
func NewEvent(name string, gc *Context) Event {
	ev := Event{Name: name}
	if gc != nil {
		ev.TraceID = gc.TraceID
		if gc.Request != nil {
			ev.Method = gc.Request.Method
			ev.Path = gc.Request.Path
		}
	}
	return ev
}

var (
	_ Observer = NopObserver{}
	_ Observer = ObserverFunc(nil)
	_ Observer = MultiObserver(nil)
)
