package guard

import (
	"net/http"
	"net/textproto"
	"strings"
)

// Request is the transport-neutral view of an inbound request.
//
// Header keys are expected in canonical MIME form. Body holds the decoded
// payload, usually map[string]any for JSON objects.
type Request struct {
	Method     string
	Path       string
	Params     map[string]string
	Query      map[string][]string
	Headers    map[string][]string
	Body       any
	RemoteAddr string
}

// Header returns the first value of the named header, or "".
func (r *Request) Header(name string) string {
	if r.Headers == nil {
		return ""
	}
	if vals := r.Headers[textproto.CanonicalMIMEHeaderKey(name)]; len(vals) > 0 {
		return vals[0]
	}
	for k, vals := range r.Headers {
		if strings.EqualFold(k, name) && len(vals) > 0 {
			return vals[0]
		}
	}
	return ""
}

// QueryValue returns the first value of the named query parameter, or "".
func (r *Request) QueryValue(name string) string {
	if vals := r.Query[name]; len(vals) > 0 {
		return vals[0]
	}
	return ""
}

// Param returns the named route parameter, or "".
func (r *Request) Param(name string) string {
	return r.Params[name]
}

// Context carries per-request state through a Chain.
//
// A Context is owned by exactly one in-flight request and is not safe for
// concurrent use.
type Context struct {
	// Request is the request being processed. Guards may normalize it.
	Request *Request

	// TraceID is the correlation id assigned by the tracing guard.
	TraceID string

	// Principal is set by the authenticator.
	Principal *Principal

	values map[string]any
	header http.Header
	early  *Response
}

// NewContext creates a Context for req. A nil req gets an empty Request.
func NewContext(req *Request) *Context {
	if req == nil {
		req = &Request{}
	}
	return &Context{
		Request: req,
		header:  make(http.Header),
	}
}

// Set stores a value in the context bag.
func (c *Context) Set(key string, value any) {
	if c.values == nil {
		c.values = make(map[string]any)
	}
	c.values[key] = value
}

// Get retrieves a value from the context bag.
func (c *Context) Get(key string) (any, bool) {
	v, ok := c.values[key]
	return v, ok
}

// SetResponseHeader queues a header for whatever response is finally
// written, success or failure.
func (c *Context) SetResponseHeader(key, value string) {
	if c.header == nil {
		c.header = make(http.Header)
	}
	c.header.Set(key, value)
}

// ResponseHeader returns the queued response headers.
func (c *Context) ResponseHeader() http.Header {
	return c.header
}

// Respond supplies an early response. The Chain stops running guards,
// skips the handler, and writes resp as a success.
func (c *Context) Respond(resp *Response) {
	c.early = resp
}

// EarlyResponse returns the response supplied through Respond, if any.
func (c *Context) EarlyResponse() *Response {
	return c.early
}
