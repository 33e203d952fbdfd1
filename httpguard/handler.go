package httpguard

import (
	"net/http"

	"github.com/jonwraymond/guardchain/guard"
)

type options struct {
	maxBodyBytes int64
	params       func(*http.Request) map[string]string
}

// Option configures Handler.
type Option func(*options)

// WithMaxBodyBytes overrides DefaultMaxBodyBytes.
func WithMaxBodyBytes(n int64) Option {
	return func(o *options) {
		if n > 0 {
			o.maxBodyBytes = n
		}
	}
}

// WithParams overrides how route parameters are read.
// Default: ChiParams
func WithParams(fn func(*http.Request) map[string]string) Option {
	return func(o *options) {
		if fn != nil {
			o.params = fn
		}
	}
}

// Handler serves h behind chain.
func Handler(chain *guard.Chain, h guard.Handler, opts ...Option) http.Handler {
	o := options{maxBodyBytes: DefaultMaxBodyBytes, params: ChiParams}
	for _, opt := range opts {
		opt(&o)
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		req, err := FromRequestLimit(r, o.params(r), o.maxBodyBytes)
		gc := guard.NewContext(req)
		out := NewWriter(w)
		if err != nil {
			chain.Reject(ctx, gc, out, guard.AsError(err))
			return
		}
		chain.Serve(ctx, gc, out, h)
	})
}
