package observe

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"

	"github.com/jonwraymond/guardchain/guard"
)

type eventLog struct {
	mu     sync.Mutex
	events []guard.Event
}

func (l *eventLog) Record(_ context.Context, ev guard.Event) {
	l.mu.Lock()
	l.events = append(l.events, ev)
	l.mu.Unlock()
}

func (l *eventLog) named(name string) []guard.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []guard.Event
	for _, ev := range l.events {
		if ev.Name == name {
			out = append(out, ev)
		}
	}
	return out
}

func steppingClock(step time.Duration) func() time.Time {
	var mu sync.Mutex
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(step)
		return now
	}
}

func serveWith(chain *guard.Chain, req *guard.Request, h guard.Handler) (*guard.Context, *guard.Recorder) {
	gc := guard.NewContext(req)
	rec := guard.NewRecorder()
	chain.Protect(h)(context.Background(), gc, rec)
	return gc, rec
}

func okHandler(context.Context, *guard.Context) (*guard.Response, error) {
	return &guard.Response{Status: http.StatusOK, Body: []byte("ok")}, nil
}

func TestTraceGuard_GeneratesID(t *testing.T) {
	log := &eventLog{}
	chain := guard.New(guard.WithGuards(NewTraceGuard(TraceConfig{Mirror: true, Observer: log})))

	gc, rec := serveWith(chain, &guard.Request{Method: "GET", Path: "/docs"}, okHandler)

	if _, err := uuid.Parse(gc.TraceID); err != nil {
		t.Fatalf("TraceID %q is not a uuid: %v", gc.TraceID, err)
	}
	if got := rec.Header.Get(DefaultTraceHeader); got != gc.TraceID {
		t.Errorf("mirrored header = %q, want %q", got, gc.TraceID)
	}
}

func TestTraceGuard_PropagatesInboundID(t *testing.T) {
	chain := guard.New(guard.WithGuards(NewTraceGuard(TraceConfig{Header: "X-Correlation-ID"})))
	req := &guard.Request{
		Method:  "GET",
		Path:    "/",
		Headers: map[string][]string{"X-Correlation-Id": {"upstream-42"}},
	}

	gc, rec := serveWith(chain, req, okHandler)

	if gc.TraceID != "upstream-42" {
		t.Errorf("TraceID = %q, want upstream-42", gc.TraceID)
	}
	if got := rec.Header.Get("X-Correlation-ID"); got != "" {
		t.Errorf("header mirrored without Mirror: %q", got)
	}
}

func TestTraceGuard_RejectsMalformedInboundID(t *testing.T) {
	tests := []string{
		"has space",
		"new\nline",
		strings.Repeat("a", MaxTraceIDLength+1),
	}
	for _, inbound := range tests {
		g := NewTraceGuard(TraceConfig{Generate: func() string { return "fresh" }})
		gc := guard.NewContext(&guard.Request{Headers: map[string][]string{"X-Request-Id": {inbound}}})
		if err := g.Attempt(context.Background(), gc); err != nil {
			t.Fatalf("Attempt() error = %v", err)
		}
		if gc.TraceID != "fresh" {
			t.Errorf("inbound %q accepted as TraceID", inbound)
		}
	}
}

func TestTraceGuard_StartEndEvents(t *testing.T) {
	log := &eventLog{}
	chain := guard.New(
		guard.WithGuards(NewTraceGuard(TraceConfig{Observer: log, Generate: func() string { return "id-1" }})),
		guard.WithClock(steppingClock(5*time.Millisecond)),
	)

	serveWith(chain, &guard.Request{Method: "PUT", Path: "/docs/1"}, okHandler)

	starts, ends := log.named(guard.EventRequestStart), log.named(guard.EventRequestEnd)
	if len(starts) != 1 || len(ends) != 1 {
		t.Fatalf("start=%d end=%d, want 1 each", len(starts), len(ends))
	}
	end := ends[0]
	if end.TraceID != "id-1" || end.Method != "PUT" || end.Path != "/docs/1" {
		t.Errorf("end event identity = %+v", end)
	}
	if end.Status != http.StatusOK {
		t.Errorf("end status = %d, want 200", end.Status)
	}
	if end.Duration != 5*time.Millisecond {
		t.Errorf("end duration = %v, want 5ms", end.Duration)
	}
}

func TestTraceGuard_EndEventOnFailure(t *testing.T) {
	log := &eventLog{}
	deny := guard.Func("deny", func(context.Context, *guard.Context) error {
		return guard.NewAuthorizationError("missing_role", "admin required")
	})
	chain := guard.New(guard.WithGuards(NewTraceGuard(TraceConfig{Observer: log, Mirror: true}), deny))

	gc, rec := serveWith(chain, &guard.Request{Method: "GET", Path: "/admin"}, okHandler)

	if rec.Status != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Status)
	}
	if rec.Header.Get(DefaultTraceHeader) != gc.TraceID {
		t.Error("trace header missing on error response")
	}
	end := log.named(guard.EventRequestEnd)[0]
	if end.Status != http.StatusForbidden || end.Kind != "authorization" || end.Code != "missing_role" {
		t.Errorf("end event = %+v", end)
	}
}

func TestTraceGuard_Span(t *testing.T) {
	tr, recorder := newTestTracer()
	deny := guard.Func("deny", func(context.Context, *guard.Context) error {
		return guard.NewInternalError("boom", "", nil)
	})
	g := NewTraceGuard(TraceConfig{Tracer: tr})

	serveWith(guard.New(guard.WithGuards(g)), &guard.Request{Method: "GET", Path: "/a"}, okHandler)
	serveWith(guard.New(guard.WithGuards(g, deny)), &guard.Request{Method: "GET", Path: "/b"}, okHandler)

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("got %d spans, want 2", len(spans))
	}
	if spans[0].Status().Code != codes.Ok {
		t.Errorf("first span status = %v, want Ok", spans[0].Status().Code)
	}
	if spans[1].Status().Code != codes.Error {
		t.Errorf("second span status = %v, want Error", spans[1].Status().Code)
	}
}
