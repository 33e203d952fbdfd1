package httpguard

import (
	"net/http"

	"github.com/jonwraymond/guardchain/guard"
)

// Writer adapts http.ResponseWriter to guard.ResponseWriter. The status is
// held until SendBody so headers set after SetStatus still apply.
type Writer struct {
	w      http.ResponseWriter
	status int
	sent   bool
}

// NewWriter wraps w.
func NewWriter(w http.ResponseWriter) *Writer {
	return &Writer{w: w}
}

func (wr *Writer) SetStatus(status int) {
	wr.status = status
}

func (wr *Writer) SetHeader(key, value string) {
	wr.w.Header().Set(key, value)
}

// SendBody writes the status line and body. A zero status writes 200.
func (wr *Writer) SendBody(body []byte) error {
	if wr.sent {
		return ErrAlreadyWritten
	}
	wr.sent = true
	status := wr.status
	if status == 0 {
		status = http.StatusOK
	}
	wr.w.WriteHeader(status)
	if len(body) == 0 {
		return nil
	}
	_, err := wr.w.Write(body)
	return err
}

// Status returns the status set so far.
func (wr *Writer) Status() int {
	return wr.status
}

var _ guard.ResponseWriter = (*Writer)(nil)
