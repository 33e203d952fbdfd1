package cache

import (
	"context"
	"net/http"
	"time"

	"github.com/jonwraymond/guardchain/guard"
)

// HeaderCache reports HIT or MISS on cacheable responses.
const HeaderCache = "X-Cache"

// stateKey holds the per-request plan between Attempt and Complete.
const stateKey = "cache.state"

// Config configures the cache Guard.
type Config struct {
	// Name identifies the guard in events.
	// Default: "cache"
	Name string

	// Store holds entries. Required.
	Store Store

	// Key derives the entry key.
	// Default: DefaultKey
	Key KeyFunc

	// Policy controls entry lifetimes.
	// Default: DefaultPolicy()
	Policy Policy

	// Cacheable selects requests eligible for lookup and storage.
	// Default: GET and HEAD
	Cacheable func(gc *guard.Context) bool

	// Invalidate lists keys evicted after a successful non-cacheable request.
	// Default: InvalidateSelf()
	Invalidate InvalidateFunc

	// Observer receives hit, miss and store error events.
	Observer guard.Observer

	// Now is the clock for entry timestamps.
	// Default: time.Now
	Now func() time.Time
}

// Guard is the response cache guard.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Errors: never fails a request. Store errors are recorded and treated as
//     misses.
type Guard struct {
	config Config
}

type state struct {
	key        string
	invalidate []string
}

// New creates a cache Guard.
func New(config Config) (*Guard, error) {
	if config.Store == nil {
		return nil, ErrNoStore
	}
	if config.Name == "" {
		config.Name = "cache"
	}
	if config.Key == nil {
		config.Key = DefaultKey
	}
	if config.Policy == (Policy{}) {
		config.Policy = DefaultPolicy()
	}
	if config.Cacheable == nil {
		config.Cacheable = SafeMethods
	}
	if config.Invalidate == nil {
		config.Invalidate = InvalidateSelf()
	}
	if config.Observer == nil {
		config.Observer = guard.NopObserver{}
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &Guard{config: config}, nil
}

// SafeMethods reports whether the request is a GET or HEAD.
func SafeMethods(gc *guard.Context) bool {
	m := gc.Request.Method
	return m == http.MethodGet || m == http.MethodHead
}

// Name returns the configured name.
func (g *Guard) Name() string {
	return g.config.Name
}

// Attempt serves a hit early or prepares storage or invalidation.
func (g *Guard) Attempt(ctx context.Context, gc *guard.Context) error {
	if !g.config.Cacheable(gc) {
		if keys := g.config.Invalidate(gc); len(keys) > 0 {
			gc.Set(stateKey, &state{invalidate: keys})
		}
		return nil
	}

	key, err := g.config.Key(gc)
	if err == nil {
		err = ValidateKey(key)
	}
	if err != nil {
		// Unkeyable requests bypass the cache.
		return nil
	}

	entry, ok, err := g.config.Store.Get(ctx, key)
	if err != nil {
		g.storeError(ctx, gc, err)
		ok = false
	}
	if ok {
		resp := entry.Response()
		if resp.Header == nil {
			resp.Header = make(http.Header)
		}
		resp.Header.Set(HeaderCache, "HIT")
		gc.Respond(resp)
		g.record(ctx, gc, guard.EventCacheHit, key)
		return nil
	}

	gc.SetResponseHeader(HeaderCache, "MISS")
	gc.Set(stateKey, &state{key: key})
	g.record(ctx, gc, guard.EventCacheMiss, key)
	return nil
}

// Complete stores a successful miss or evicts stale keys.
func (g *Guard) Complete(ctx context.Context, gc *guard.Context, out guard.Outcome) {
	if out.Early || out.Failed() || out.Response == nil {
		return
	}
	v, ok := gc.Get(stateKey)
	if !ok {
		return
	}
	st := v.(*state)
	status := out.Response.Status
	if status == 0 {
		status = http.StatusOK
	}

	switch {
	case st.key != "":
		if status < 200 || status > 299 {
			return
		}
		ttl := g.config.Policy.TTLFor(out.Response.Header)
		if ttl <= 0 {
			return
		}
		resp := out.Response.Clone()
		resp.Status = status
		if err := g.config.Store.Set(ctx, st.key, NewEntry(resp, g.config.Now(), ttl), ttl); err != nil {
			g.storeError(ctx, gc, err)
		}
	case len(st.invalidate) > 0:
		if status >= 400 {
			return
		}
		if err := g.config.Store.Invalidate(ctx, st.invalidate...); err != nil {
			g.storeError(ctx, gc, err)
		}
	}
}

func (g *Guard) storeError(ctx context.Context, gc *guard.Context, err error) {
	ce := guard.NewCacheError(err)
	ev := guard.NewEvent(guard.EventCacheError, gc)
	ev.Guard = g.config.Name
	ev.Kind = ce.Kind.String()
	ev.Code = ce.ErrorCode()
	ev.Message = err.Error()
	ev.Err = ce
	g.config.Observer.Record(ctx, ev)
}

func (g *Guard) record(ctx context.Context, gc *guard.Context, name, key string) {
	ev := guard.NewEvent(name, gc)
	ev.Guard = g.config.Name
	ev.Attrs = map[string]any{"key": key}
	g.config.Observer.Record(ctx, ev)
}

var (
	_ guard.Guard     = (*Guard)(nil)
	_ guard.Completer = (*Guard)(nil)
)
