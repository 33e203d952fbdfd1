package guard

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"time"
)

// Handler is the business logic protected by a Chain.
type Handler func(ctx context.Context, gc *Context) (*Response, error)

// Endpoint is the request-handling function returned by Protect.
type Endpoint func(ctx context.Context, gc *Context, w ResponseWriter)

// Chain runs an ordered list of guards before a handler.
//
// Contract:
// - Concurrency: a Chain is immutable and safe for concurrent use.
// - Ownership: Use and Clone return chains with their own guard slices.
// - Errors: every failure reaches the ErrorHandler exactly once.
type Chain struct {
	guards       []Guard
	errorHandler ErrorHandler
	observer     Observer
	now          func() time.Time
}

// Option configures a Chain.
type Option func(*Chain)

// WithGuards appends guards in order.
func WithGuards(guards ...Guard) Option {
	return func(c *Chain) {
		c.guards = append(c.guards, guards...)
	}
}

// WithErrorHandler sets the error handler.
// Default: NewErrorHandler with the chain's observer.
func WithErrorHandler(h ErrorHandler) Option {
	return func(c *Chain) {
		c.errorHandler = h
	}
}

// WithObserver sets the observer used for chain-level events.
// Default: NopObserver.
func WithObserver(o Observer) Option {
	return func(c *Chain) {
		c.observer = o
	}
}

// WithClock overrides the time source used for durations.
func WithClock(now func() time.Time) Option {
	return func(c *Chain) {
		c.now = now
	}
}

// New creates a Chain.
func New(opts ...Option) *Chain {
	c := &Chain{}
	for _, opt := range opts {
		opt(c)
	}
	if c.observer == nil {
		c.observer = NopObserver{}
	}
	if c.errorHandler == nil {
		c.errorHandler = NewErrorHandler(ErrorHandlerConfig{Observer: c.observer})
	}
	if c.now == nil {
		c.now = time.Now
	}
	c.guards = slices.Clip(c.guards)
	return c
}

// Use returns a new chain with guards appended. The receiver is unchanged.
func (c *Chain) Use(guards ...Guard) *Chain {
	out := c.Clone()
	out.guards = append(out.guards, guards...)
	out.guards = slices.Clip(out.guards)
	return out
}

// Clone returns an independent copy of the chain.
func (c *Chain) Clone() *Chain {
	out := *c
	out.guards = slices.Clone(c.guards)
	return &out
}

// Len returns the number of guards.
func (c *Chain) Len() int {
	return len(c.guards)
}

// Guards returns a copy of the guard list.
func (c *Chain) Guards() []Guard {
	return slices.Clone(c.guards)
}

// Protect wraps h so it only runs after every guard admits the request.
func (c *Chain) Protect(h Handler) Endpoint {
	return func(ctx context.Context, gc *Context, w ResponseWriter) {
		c.Serve(ctx, gc, w, h)
	}
}

// Serve runs the chain for one request and writes the final response to w.
func (c *Chain) Serve(ctx context.Context, gc *Context, w ResponseWriter, h Handler) {
	if gc == nil {
		gc = NewContext(nil)
	}
	start := c.now()

	completers := make([]Completer, 0, len(c.guards))
	resp, gerr, early := c.run(ctx, gc, h, &completers)

	out := Outcome{Response: resp, Err: gerr, Early: early}
	if gerr != nil {
		out.Status = gerr.Status()
	} else {
		if resp == nil {
			resp = &Response{}
			out.Response = resp
		}
		if resp.Status == 0 {
			resp.Status = http.StatusOK
		}
		out.Status = resp.Status
	}
	out.Duration = c.now().Sub(start)

	for i := len(completers) - 1; i >= 0; i-- {
		c.complete(ctx, gc, completers[i], out)
	}

	if gerr != nil {
		c.errorHandler.HandleError(ctx, gc, gerr, w)
		return
	}
	if err := writeResponse(gc, resp, w); err != nil {
		ev := NewEvent(EventWriteError, gc)
		ev.Status = resp.Status
		ev.Err = err
		c.observer.Record(ctx, ev)
	}
}

// Reject routes err to the error handler without admitting the request.
// Only Observing guards run, so the rejection still carries a correlation id
// and request boundary events. Transport adapters use it for requests they
// cannot decode.
func (c *Chain) Reject(ctx context.Context, gc *Context, w ResponseWriter, err *Error) {
	if gc == nil {
		gc = NewContext(nil)
	}
	start := c.now()

	var completers []Completer
	for _, g := range c.guards {
		if _, ok := g.(Observing); !ok {
			continue
		}
		if gerr := c.attempt(ctx, gc, g); gerr != nil {
			continue
		}
		if cp, ok := g.(Completer); ok {
			completers = append(completers, cp)
		}
	}

	out := Outcome{Err: err, Status: err.Status(), Duration: c.now().Sub(start)}
	for i := len(completers) - 1; i >= 0; i-- {
		c.complete(ctx, gc, completers[i], out)
	}
	c.errorHandler.HandleError(ctx, gc, err, w)
}

func (c *Chain) run(ctx context.Context, gc *Context, h Handler, completers *[]Completer) (*Response, *Error, bool) {
	for _, g := range c.guards {
		if err := ctx.Err(); err != nil {
			gerr := NewInternalError("request_cancelled", "request cancelled", err)
			gerr.Guard = g.Name()
			return nil, gerr, false
		}
		if gerr := c.attempt(ctx, gc, g); gerr != nil {
			return nil, gerr, false
		}
		if cp, ok := g.(Completer); ok {
			*completers = append(*completers, cp)
		}
		if early := gc.EarlyResponse(); early != nil {
			return early, nil, true
		}
	}
	resp, gerr := c.invoke(ctx, gc, h)
	return resp, gerr, false
}

func (c *Chain) attempt(ctx context.Context, gc *Context, g Guard) (gerr *Error) {
	defer func() {
		if r := recover(); r != nil {
			gerr = NewInternalError("guard_panic", "", fmt.Errorf("panic: %v", r))
			gerr.Guard = g.Name()
		}
	}()

	err := g.Attempt(ctx, gc)
	if err == nil {
		return nil
	}
	// Copy so shared *Error values returned by guards are never mutated.
	cp := *AsError(err)
	if cp.Guard == "" {
		cp.Guard = g.Name()
	}
	return &cp
}

func (c *Chain) invoke(ctx context.Context, gc *Context, h Handler) (resp *Response, gerr *Error) {
	defer func() {
		if r := recover(); r != nil {
			resp = nil
			gerr = NewInternalError("handler_panic", "", fmt.Errorf("panic: %v", r))
			gerr.Guard = "handler"
		}
	}()

	resp, err := h(ctx, gc)
	if err != nil {
		gerr = NewInternalError("handler_error", "", err)
		gerr.Guard = "handler"
		return nil, gerr
	}
	return resp, nil
}

func (c *Chain) complete(ctx context.Context, gc *Context, cp Completer, out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			ev := NewEvent(EventPanic, gc)
			ev.Err = fmt.Errorf("completer panic: %v", r)
			c.observer.Record(ctx, ev)
		}
	}()
	cp.Complete(ctx, gc, out)
}
