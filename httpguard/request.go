package httpguard

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/jonwraymond/guardchain/guard"
)

// DefaultMaxBodyBytes bounds decoded request bodies.
const DefaultMaxBodyBytes int64 = 1 << 20

// FromRequest builds a guard.Request from r with DefaultMaxBodyBytes.
func FromRequest(r *http.Request, params map[string]string) (*guard.Request, error) {
	return FromRequestLimit(r, params, DefaultMaxBodyBytes)
}

// FromRequestLimit builds a guard.Request, reading at most limit body bytes.
//
// JSON bodies (application/json, */*+json, or no content type) decode into
// their natural Go values; URL-encoded forms decode into map[string]any with
// repeated keys as []any. Other content types are kept as a string.
//
// On a decode failure the returned request has no body and the error is a
// *guard.Error of kind validation whose cause wraps ErrBodyTooLarge or
// ErrInvalidBody.
func FromRequestLimit(r *http.Request, params map[string]string, limit int64) (*guard.Request, error) {
	req := &guard.Request{
		Method:     r.Method,
		Path:       r.URL.Path,
		Params:     params,
		Query:      map[string][]string(r.URL.Query()),
		Headers:    map[string][]string(r.Header.Clone()),
		RemoteAddr: r.RemoteAddr,
	}
	if req.Params == nil {
		req.Params = map[string]string{}
	}
	if r.Body == nil || r.Body == http.NoBody {
		return req, nil
	}

	raw, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return req, bodyError("read", fmt.Errorf("%w: %v", ErrInvalidBody, err))
	}
	if int64(len(raw)) > limit {
		return req, bodyError("max_bytes", fmt.Errorf("%w: limit %d bytes", ErrBodyTooLarge, limit))
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return req, nil
	}

	body, err := decodeBody(r.Header.Get("Content-Type"), raw)
	if err != nil {
		return req, bodyError("format", err)
	}
	req.Body = body
	return req, nil
}

func decodeBody(contentType string, raw []byte) (any, error) {
	mediaType := ""
	if contentType != "" {
		mt, _, err := mime.ParseMediaType(contentType)
		if err != nil {
			return nil, fmt.Errorf("%w: content type: %v", ErrInvalidBody, err)
		}
		mediaType = mt
	}

	switch {
	case mediaType == "" || mediaType == "application/json" || strings.HasSuffix(mediaType, "+json"):
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidBody, err)
		}
		return v, nil
	case mediaType == "application/x-www-form-urlencoded":
		values, err := url.ParseQuery(string(raw))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidBody, err)
		}
		form := make(map[string]any, len(values))
		for k, vals := range values {
			if len(vals) == 1 {
				form[k] = vals[0]
				continue
			}
			items := make([]any, len(vals))
			for i, v := range vals {
				items[i] = v
			}
			form[k] = items
		}
		return form, nil
	default:
		return string(raw), nil
	}
}

func bodyError(constraint string, cause error) *guard.Error {
	msg := "request body could not be decoded"
	if errors.Is(cause, ErrBodyTooLarge) {
		msg = "request body too large"
	}
	gerr := guard.NewValidationError([]guard.FieldError{{
		Path:       "body",
		Constraint: constraint,
		Message:    msg,
	}})
	gerr.Cause = cause
	return gerr
}

// ChiParams returns the URL parameters chi matched for r, or nil.
func ChiParams(r *http.Request) map[string]string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil || len(rctx.URLParams.Keys) == 0 {
		return nil
	}
	params := make(map[string]string, len(rctx.URLParams.Keys))
	for i, k := range rctx.URLParams.Keys {
		if k == "*" || i >= len(rctx.URLParams.Values) {
			continue
		}
		params[k] = rctx.URLParams.Values[i]
	}
	return params
}
