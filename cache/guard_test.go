package cache

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/jonwraymond/guardchain/guard"
)

type eventLog struct {
	mu     sync.Mutex
	events []guard.Event
}

func (l *eventLog) Record(_ context.Context, ev guard.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) count(name string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, ev := range l.events {
		if ev.Name == name {
			n++
		}
	}
	return n
}

type countingHandler struct {
	calls  int
	status int
	header http.Header
	err    error
}

func (h *countingHandler) serve(_ context.Context, gc *guard.Context) (*guard.Response, error) {
	h.calls++
	if h.err != nil {
		return nil, h.err
	}
	status := h.status
	if status == 0 {
		status = http.StatusOK
	}
	return &guard.Response{Status: status, Header: h.header.Clone(), Body: []byte(gc.Request.Method + " " + gc.Request.Path)}, nil
}

func serve(t *testing.T, chain *guard.Chain, h guard.Handler, method, path string) *guard.Recorder {
	t.Helper()
	rec := guard.NewRecorder()
	chain.Protect(h)(context.Background(), guard.NewContext(&guard.Request{Method: method, Path: path}), rec)
	return rec
}

func newTestGuard(t *testing.T, store Store, obs guard.Observer) *Guard {
	t.Helper()
	g, err := New(Config{Store: store, Observer: obs})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return g
}

func newMemory(t *testing.T) *MemoryStore {
	t.Helper()
	s, err := NewMemoryStore(MemoryStoreConfig{})
	if err != nil {
		t.Fatalf("NewMemoryStore() error = %v", err)
	}
	return s
}

func TestNew_RequiresStore(t *testing.T) {
	if _, err := New(Config{}); !errors.Is(err, ErrNoStore) {
		t.Errorf("New() error = %v, want ErrNoStore", err)
	}
}

func TestGuard_MissStoreHitInvalidate(t *testing.T) {
	log := &eventLog{}
	chain := guard.New(guard.WithGuards(newTestGuard(t, newMemory(t), log)))
	h := &countingHandler{}

	first := serve(t, chain, h.serve, "GET", "/docs")
	if first.Header.Get(HeaderCache) != "MISS" {
		t.Errorf("first X-Cache = %q, want MISS", first.Header.Get(HeaderCache))
	}

	second := serve(t, chain, h.serve, "GET", "/docs")
	if second.Header.Get(HeaderCache) != "HIT" {
		t.Errorf("second X-Cache = %q, want HIT", second.Header.Get(HeaderCache))
	}
	if string(second.Body) != "GET /docs" || second.Status != http.StatusOK {
		t.Errorf("cached response = %d %q", second.Status, second.Body)
	}
	if h.calls != 1 {
		t.Fatalf("handler calls = %d, want 1", h.calls)
	}

	serve(t, chain, h.serve, "POST", "/docs")
	if h.calls != 2 {
		t.Fatalf("handler calls after POST = %d, want 2", h.calls)
	}

	third := serve(t, chain, h.serve, "GET", "/docs")
	if third.Header.Get(HeaderCache) != "MISS" {
		t.Errorf("GET after POST X-Cache = %q, want MISS", third.Header.Get(HeaderCache))
	}
	if h.calls != 3 {
		t.Errorf("handler calls = %d, want 3", h.calls)
	}

	if log.count(guard.EventCacheHit) != 1 || log.count(guard.EventCacheMiss) != 2 {
		t.Errorf("hits=%d misses=%d, want 1 and 2", log.count(guard.EventCacheHit), log.count(guard.EventCacheMiss))
	}
}

func TestGuard_DoesNotStoreFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler *countingHandler
	}{
		{"non-2xx", &countingHandler{status: http.StatusNotFound}},
		{"handler error", &countingHandler{err: errors.New("db down")}},
		{"no-store", &countingHandler{header: http.Header{"Cache-Control": {"no-store"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemory(t)
			chain := guard.New(guard.WithGuards(newTestGuard(t, store, nil)))
			serve(t, chain, tt.handler.serve, "GET", "/x")
			serve(t, chain, tt.handler.serve, "GET", "/x")
			if tt.handler.calls != 2 {
				t.Errorf("handler calls = %d, want 2", tt.handler.calls)
			}
			if store.Len() != 0 {
				t.Errorf("store Len() = %d, want 0", store.Len())
			}
		})
	}
}

func TestGuard_FailedMutationKeepsEntry(t *testing.T) {
	store := newMemory(t)
	chain := guard.New(guard.WithGuards(newTestGuard(t, store, nil)))
	ok := &countingHandler{}
	serve(t, chain, ok.serve, "GET", "/docs")

	failing := &countingHandler{err: errors.New("conflict")}
	serve(t, chain, failing.serve, "DELETE", "/docs")

	if rec := serve(t, chain, ok.serve, "GET", "/docs"); rec.Header.Get(HeaderCache) != "HIT" {
		t.Errorf("X-Cache = %q, want HIT after failed mutation", rec.Header.Get(HeaderCache))
	}
}

type brokenStore struct{}

func (brokenStore) Get(context.Context, string) (*Entry, bool, error) {
	return nil, false, ErrStoreUnavailable
}

func (brokenStore) Set(context.Context, string, *Entry, time.Duration) error {
	return ErrStoreUnavailable
}

func (brokenStore) Delete(context.Context, ...string) error {
	return ErrStoreUnavailable
}

func (brokenStore) Invalidate(context.Context, ...string) error {
	return ErrStoreUnavailable
}

func TestGuard_StoreFailureIsAMiss(t *testing.T) {
	log := &eventLog{}
	chain := guard.New(guard.WithGuards(newTestGuard(t, brokenStore{}, log)))
	h := &countingHandler{}

	rec := serve(t, chain, h.serve, "GET", "/docs")
	if rec.Status != http.StatusOK || string(rec.Body) != "GET /docs" {
		t.Errorf("response = %d %q, want handler output", rec.Status, rec.Body)
	}
	if h.calls != 1 {
		t.Errorf("handler calls = %d, want 1", h.calls)
	}
	// One failure on Get, one on Set.
	if got := log.count(guard.EventCacheError); got != 2 {
		t.Errorf("cache errors = %d, want 2", got)
	}

	log.mu.Lock()
	ev := log.events[0]
	log.mu.Unlock()
	if ev.Kind != guard.KindCache.String() {
		t.Errorf("event kind = %q, want cache", ev.Kind)
	}
}

func TestGuard_QueryVariantsCachedSeparately(t *testing.T) {
	chain := guard.New(guard.WithGuards(newTestGuard(t, newMemory(t), nil)))
	h := &countingHandler{}

	for _, q := range []string{"1", "2", "1"} {
		rec := guard.NewRecorder()
		gc := guard.NewContext(&guard.Request{Method: "GET", Path: "/list", Query: map[string][]string{"page": {q}}})
		chain.Protect(h.serve)(context.Background(), gc, rec)
	}
	if h.calls != 2 {
		t.Errorf("handler calls = %d, want 2", h.calls)
	}
}

func TestGuard_MutationEvictsQueryVariants(t *testing.T) {
	chain := guard.New(guard.WithGuards(newTestGuard(t, newMemory(t), nil)))
	h := &countingHandler{}

	get := func() {
		gc := guard.NewContext(&guard.Request{Method: "GET", Path: "/items", Query: map[string][]string{"page": {"1"}}})
		chain.Protect(h.serve)(context.Background(), gc, guard.NewRecorder())
	}
	get()
	get()
	if h.calls != 1 {
		t.Fatalf("handler calls = %d, want 1 after a hit", h.calls)
	}

	serve(t, chain, h.serve, "POST", "/items")
	if h.calls != 2 {
		t.Fatalf("handler calls = %d, want 2 after POST", h.calls)
	}

	get()
	if h.calls != 3 {
		t.Errorf("handler calls = %d, want 3: stale query variant served", h.calls)
	}
}
