package guard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"
)

func fixedNow() time.Time {
	return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
}

func TestErrorHandler_StatusTable(t *testing.T) {
	tests := []struct {
		err    *Error
		status int
	}{
		{NewValidationError([]FieldError{{Path: "body.email", Constraint: "format", Message: "must be an email"}}), http.StatusBadRequest},
		{NewAuthenticationError("missing_credentials", "", nil), http.StatusUnauthorized},
		{NewAuthorizationError("missing_role", "requires role admin"), http.StatusForbidden},
		{NewRateLimitError(1500 * time.Millisecond), http.StatusTooManyRequests},
		{NewInternalError("boom", "", nil), http.StatusInternalServerError},
		{&Error{Kind: Kind(99)}, http.StatusInternalServerError},
	}

	h := NewErrorHandler(ErrorHandlerConfig{Now: fixedNow})
	for _, tt := range tests {
		t.Run(tt.err.Kind.String(), func(t *testing.T) {
			rec := NewRecorder()
			h.HandleError(context.Background(), NewContext(nil), tt.err, rec)
			if rec.Status != tt.status {
				t.Errorf("status = %d, want %d", rec.Status, tt.status)
			}
			if rec.Header.Get("Content-Type") != "application/json" {
				t.Errorf("Content-Type = %q", rec.Header.Get("Content-Type"))
			}
		})
	}
}

func TestErrorHandler_Body(t *testing.T) {
	h := NewErrorHandler(ErrorHandlerConfig{Now: fixedNow})
	gc := NewContext(nil)
	gc.TraceID = "trace-1"

	rec := NewRecorder()
	h.HandleError(context.Background(), gc, NewRateLimitError(1500*time.Millisecond), rec)

	var body ErrorBody
	if err := json.Unmarshal(rec.Body, &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.Code != "rate_limited" {
		t.Errorf("code = %q", body.Code)
	}
	if body.TraceID != "trace-1" {
		t.Errorf("traceId = %q", body.TraceID)
	}
	if body.Timestamp != "2026-01-02T03:04:05Z" {
		t.Errorf("timestamp = %q", body.Timestamp)
	}
	if body.RetryAfter != 2 {
		t.Errorf("retryAfter = %d, want 2", body.RetryAfter)
	}
	if rec.Header.Get("Retry-After") != "2" {
		t.Errorf("Retry-After = %q, want 2", rec.Header.Get("Retry-After"))
	}
}

func TestErrorHandler_ValidationFields(t *testing.T) {
	h := NewErrorHandler(ErrorHandlerConfig{})
	fields := []FieldError{
		{Path: "body.email", Constraint: "format", Message: "must be a valid email"},
		{Path: "query.page", Constraint: "type", Message: "must be an integer"},
	}
	rec := NewRecorder()
	h.HandleError(context.Background(), NewContext(nil), NewValidationError(fields), rec)

	var body ErrorBody
	if err := json.Unmarshal(rec.Body, &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(body.Fields) != 2 {
		t.Fatalf("fields = %v, want 2 entries", body.Fields)
	}
	if body.Fields[1].Path != "query.page" {
		t.Errorf("fields[1].path = %q", body.Fields[1].Path)
	}
}

func TestErrorHandler_ProductionRedaction(t *testing.T) {
	var events []Event
	obs := ObserverFunc(func(_ context.Context, ev Event) { events = append(events, ev) })

	tests := []struct {
		name       string
		production bool
		wantMsg    string
	}{
		{"development", false, "database password rejected"},
		{"production", true, "internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events = nil
			h := NewErrorHandler(ErrorHandlerConfig{Production: tt.production, Observer: obs})
			rec := NewRecorder()
			h.HandleError(context.Background(), NewContext(nil),
				NewInternalError("db", "database password rejected", errors.New("auth failed")), rec)

			var body ErrorBody
			if err := json.Unmarshal(rec.Body, &body); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if body.Error != tt.wantMsg {
				t.Errorf("error = %q, want %q", body.Error, tt.wantMsg)
			}
			if len(events) != 1 {
				t.Fatalf("events = %d, want 1", len(events))
			}
			if events[0].Message != "database password rejected" {
				t.Errorf("observer message = %q, want real message", events[0].Message)
			}
		})
	}
}

func TestErrorHandler_ProductionKeepsClientErrors(t *testing.T) {
	h := NewErrorHandler(ErrorHandlerConfig{Production: true})
	rec := NewRecorder()
	h.HandleError(context.Background(), NewContext(nil), NewAuthorizationError("missing_role", "requires role admin"), rec)

	var body ErrorBody
	_ = json.Unmarshal(rec.Body, &body)
	if body.Error != "requires role admin" {
		t.Errorf("error = %q", body.Error)
	}
}

func TestErrorHandler_AppliesPendingHeaders(t *testing.T) {
	h := NewErrorHandler(ErrorHandlerConfig{})
	gc := NewContext(nil)
	gc.SetResponseHeader("X-Request-ID", "r-1")
	rec := NewRecorder()
	h.HandleError(context.Background(), gc, NewAuthenticationError("missing_credentials", "", nil), rec)

	if rec.Header.Get("X-Request-ID") != "r-1" {
		t.Errorf("X-Request-ID = %q", rec.Header.Get("X-Request-ID"))
	}
}

func TestRetryAfterSeconds(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want int
	}{
		{0, 1},
		{100 * time.Millisecond, 1},
		{time.Second, 1},
		{1001 * time.Millisecond, 2},
		{59 * time.Second, 59},
	}
	for _, tt := range tests {
		if got := RetryAfterSeconds(tt.in); got != tt.want {
			t.Errorf("RetryAfterSeconds(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
