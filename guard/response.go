package guard

import (
	"encoding/json"
	"net/http"
)

// Response is a fully materialized response produced by a handler or
// supplied early by a guard.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// JSON builds a response with a JSON-encoded body.
func JSON(status int, v any) (*Response, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	h := make(http.Header)
	h.Set("Content-Type", "application/json")
	return &Response{Status: status, Header: h, Body: body}, nil
}

// Clone returns a deep copy of r.
func (r *Response) Clone() *Response {
	if r == nil {
		return nil
	}
	out := &Response{Status: r.Status, Header: r.Header.Clone()}
	if r.Body != nil {
		out.Body = append([]byte(nil), r.Body...)
	}
	return out
}

// ResponseWriter is the sink a collaborator provides for the final response.
//
// Contract:
// - Ordering: callers set headers and status before SendBody.
// - Errors: SendBody reports transport failures; it is called at most once.
type ResponseWriter interface {
	SetStatus(status int)
	SetHeader(key, value string)
	SendBody(body []byte) error
}

// Recorder is an in-memory ResponseWriter.
type Recorder struct {
	Status int
	Header http.Header
	Body   []byte
	Sent   bool
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{Header: make(http.Header)}
}

func (r *Recorder) SetStatus(status int) {
	r.Status = status
}

func (r *Recorder) SetHeader(key, value string) {
	if r.Header == nil {
		r.Header = make(http.Header)
	}
	r.Header.Set(key, value)
}

func (r *Recorder) SendBody(body []byte) error {
	r.Body = append(r.Body[:0], body...)
	r.Sent = true
	return nil
}

// Response returns the recorded response.
func (r *Recorder) Response() *Response {
	return &Response{Status: r.Status, Header: r.Header.Clone(), Body: append([]byte(nil), r.Body...)}
}

var _ ResponseWriter = (*Recorder)(nil)

func writeResponse(gc *Context, resp *Response, w ResponseWriter) error {
	for k, vals := range gc.ResponseHeader() {
		if len(vals) > 0 {
			w.SetHeader(k, vals[0])
		}
	}
	for k, vals := range resp.Header {
		if len(vals) > 0 {
			w.SetHeader(k, vals[0])
		}
	}
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.SetStatus(status)
	return w.SendBody(resp.Body)
}
