package guard

import (
	"context"
	"time"
)

// Guard is a single stage of a Chain.
//
// Contract:
//   - Concurrency: Attempt is called concurrently for different requests and
//     must be safe for concurrent use. The Context itself is request-owned.
//   - Context: Attempt must return promptly when ctx is cancelled.
//   - Errors: a nil return admits the request; anything else fails it. Guards
//     never write responses.
type Guard interface {
	// Name identifies the guard in errors and events.
	Name() string

	// Attempt inspects or mutates gc and reports whether the request may continue.
	Attempt(ctx context.Context, gc *Context) error
}

// Completer is implemented by guards that need to act after the request
// resolves, such as storing a cached response or closing a span.
//
// Complete is called in reverse order for every guard whose Attempt
// succeeded, before the final response is written. It must not write a
// response; it may queue headers on gc.
type Completer interface {
	Complete(ctx context.Context, gc *Context, out Outcome)
}

// Observing marks guards that never reject and must see every request, even
// one the transport refuses before the chain runs. Reject runs them, and
// their completers, ahead of the error handler.
type Observing interface {
	Guard
	ObservesRejections()
}

// Outcome describes how a request resolved.
type Outcome struct {
	// Response is the success response. Nil when Err is set.
	Response *Response

	// Err is the failure routed to the ErrorHandler, if any.
	Err *Error

	// Status is the status code that will be written.
	Status int

	// Duration is the time from chain entry to resolution.
	Duration time.Duration

	// Early reports that a guard supplied the response.
	Early bool
}

// Failed reports whether the request resolved with an error.
func (o Outcome) Failed() bool {
	return o.Err != nil
}

// GuardFunc adapts a function to a Guard.
type GuardFunc struct {
	GuardName string
	Fn        func(ctx context.Context, gc *Context) error
}

// Func creates a named GuardFunc.
func Func(name string, fn func(ctx context.Context, gc *Context) error) *GuardFunc {
	return &GuardFunc{GuardName: name, Fn: fn}
}

// Name returns the configured name.
func (g *GuardFunc) Name() string {
	return g.GuardName
}

// Attempt calls the wrapped function.
func (g *GuardFunc) Attempt(ctx context.Context, gc *Context) error {
	return g.Fn(ctx, gc)
}

var _ Guard = (*GuardFunc)(nil)
