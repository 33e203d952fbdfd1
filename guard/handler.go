package guard

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"time"
)

// ErrorHandler is the single sink for failures in a Chain.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Ownership: it is the only component that writes failure responses.
// - Errors: write failures are reported to an observer, never returned.
type ErrorHandler interface {
	HandleError(ctx context.Context, gc *Context, err *Error, w ResponseWriter)
}

// ErrorHandlerFunc adapts a function to ErrorHandler.
type ErrorHandlerFunc func(ctx context.Context, gc *Context, err *Error, w ResponseWriter)

// HandleError calls f.
func (f ErrorHandlerFunc) HandleError(ctx context.Context, gc *Context, err *Error, w ResponseWriter) {
	f(ctx, gc, err, w)
}

// ErrorHandlerConfig configures the default error handler.
type ErrorHandlerConfig struct {
	// Production redacts internal error messages in responses.
	Production bool

	// GenericMessage replaces internal messages in production.
	// Default: "internal server error"
	GenericMessage string

	// Observer receives one EventError per handled failure, with the
	// unredacted message.
	// Default: NopObserver
	Observer Observer

	// Now supplies the response timestamp.
	// Default: time.Now
	Now func() time.Time
}

// ErrorBody is the JSON shape of every failure response.
type ErrorBody struct {
	Error      string       `json:"error"`
	Code       string       `json:"code"`
	TraceID    string       `json:"traceId"`
	Timestamp  string       `json:"timestamp"`
	Fields     []FieldError `json:"fields,omitempty"`
	RetryAfter int          `json:"retryAfter,omitempty"`
}

// DefaultErrorHandler renders errors as JSON using the kind status table.
type DefaultErrorHandler struct {
	config ErrorHandlerConfig
}

// NewErrorHandler creates the default error handler.
func NewErrorHandler(config ErrorHandlerConfig) *DefaultErrorHandler {
	if config.GenericMessage == "" {
		config.GenericMessage = "internal server error"
	}
	if config.Observer == nil {
		config.Observer = NopObserver{}
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &DefaultErrorHandler{config: config}
}

// HandleError writes the failure response and records it.
func (h *DefaultErrorHandler) HandleError(ctx context.Context, gc *Context, err *Error, w ResponseWriter) {
	if err == nil {
		err = NewInternalError("internal_error", "", nil)
	}
	if gc == nil {
		gc = NewContext(nil)
	}
	status := err.Status()
	body := h.Body(gc, err)

	ev := NewEvent(EventError, gc)
	ev.Guard = err.Guard
	ev.Status = status
	ev.Kind = err.Kind.String()
	ev.Code = body.Code
	ev.Message = err.message()
	ev.Err = err
	h.config.Observer.Record(ctx, ev)

	data, merr := json.Marshal(body)
	if merr != nil {
		data = []byte(`{"error":"internal server error","code":"internal_error"}`)
		status = http.StatusInternalServerError
	}

	for k, vals := range gc.ResponseHeader() {
		if len(vals) > 0 {
			w.SetHeader(k, vals[0])
		}
	}
	w.SetHeader("Content-Type", "application/json")
	if err.Kind == KindRateLimit {
		w.SetHeader("Retry-After", strconv.Itoa(body.RetryAfter))
	}
	w.SetStatus(status)
	if werr := w.SendBody(data); werr != nil {
		wev := NewEvent(EventWriteError, gc)
		wev.Status = status
		wev.Err = werr
		h.config.Observer.Record(ctx, wev)
	}
}

// Body composes the response body for err without writing it.
func (h *DefaultErrorHandler) Body(gc *Context, err *Error) ErrorBody {
	msg := err.message()
	if h.config.Production && (err.Kind == KindInternal || err.Kind == KindCache) {
		msg = h.config.GenericMessage
	}
	body := ErrorBody{
		Error:     msg,
		Code:      err.ErrorCode(),
		TraceID:   gc.TraceID,
		Timestamp: h.config.Now().UTC().Format(time.RFC3339),
	}
	switch err.Kind {
	case KindValidation:
		body.Fields = err.Fields
	case KindRateLimit:
		body.RetryAfter = RetryAfterSeconds(err.RetryAfter)
	}
	return body
}

// RetryAfterSeconds rounds d up to whole seconds, with a minimum of 1.
func RetryAfterSeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

var (
	_ ErrorHandler = (*DefaultErrorHandler)(nil)
	_ ErrorHandler = ErrorHandlerFunc(nil)
)
