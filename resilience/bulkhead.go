package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/jonwraymond/guardchain/guard"
)

// BulkheadConfig configures the bulkhead.
type BulkheadConfig struct {
	// Name identifies the guard.
	// Default: "bulkhead"
	Name string

	// MaxConcurrent is the maximum number of requests in flight.
	// Default: 10
	MaxConcurrent int

	// MaxWait is how long a request may queue for a slot.
	// Default: 0 (reject immediately)
	MaxWait time.Duration

	// RetryAfter is advertised to rejected clients.
	// Default: 1 second
	RetryAfter time.Duration
}

// Bulkhead is a counting semaphore with wait and rejection accounting.
type Bulkhead struct {
	config BulkheadConfig
	sem    chan struct{}

	mu        sync.Mutex
	active    int
	maxActive int
	rejected  int64
}

// NewBulkhead creates a bulkhead.
func NewBulkhead(config BulkheadConfig) *Bulkhead {
	if config.Name == "" {
		config.Name = "bulkhead"
	}
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 10
	}
	if config.RetryAfter <= 0 {
		config.RetryAfter = time.Second
	}
	return &Bulkhead{
		config: config,
		sem:    make(chan struct{}, config.MaxConcurrent),
	}
}

// Acquire takes a slot, waiting up to MaxWait.
// Returns ErrBulkheadFull when none frees up, or ctx.Err() on cancellation.
func (b *Bulkhead) Acquire(ctx context.Context) error {
	select {
	case b.sem <- struct{}{}:
		b.acquired()
		return nil
	default:
	}

	if b.config.MaxWait <= 0 {
		b.reject()
		return ErrBulkheadFull
	}

	timer := time.NewTimer(b.config.MaxWait)
	defer timer.Stop()

	select {
	case b.sem <- struct{}{}:
		b.acquired()
		return nil
	case <-timer.C:
		b.reject()
		return ErrBulkheadFull
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Bulkhead) acquired() {
	b.mu.Lock()
	b.active++
	if b.active > b.maxActive {
		b.maxActive = b.active
	}
	b.mu.Unlock()
}

func (b *Bulkhead) reject() {
	b.mu.Lock()
	b.rejected++
	b.mu.Unlock()
}

// Release frees a slot taken by Acquire.
func (b *Bulkhead) Release() {
	select {
	case <-b.sem:
		b.mu.Lock()
		b.active--
		b.mu.Unlock()
	default:
	}
}

// Metrics returns current bulkhead metrics.
func (b *Bulkhead) Metrics() BulkheadMetrics {
	b.mu.Lock()
	defer b.mu.Unlock()

	return BulkheadMetrics{
		Active:        b.active,
		MaxActive:     b.maxActive,
		Available:     b.config.MaxConcurrent - b.active,
		MaxConcurrent: b.config.MaxConcurrent,
		Rejected:      b.rejected,
	}
}

// BulkheadMetrics contains bulkhead statistics.
type BulkheadMetrics struct {
	Active        int
	MaxActive     int
	Available     int
	MaxConcurrent int
	Rejected      int64
}

const slotKey = "bulkhead.slot"

// BulkheadGuard holds a bulkhead slot for the lifetime of a request.
type BulkheadGuard struct {
	*Bulkhead
}

// NewBulkheadGuard creates a guard backed by a new Bulkhead.
func NewBulkheadGuard(config BulkheadConfig) *BulkheadGuard {
	return &BulkheadGuard{Bulkhead: NewBulkhead(config)}
}

// Name returns the configured name.
func (g *BulkheadGuard) Name() string {
	return g.config.Name
}

// Attempt takes a slot or rejects the request with a rate limit error
// coded "too_many_in_flight".
func (g *BulkheadGuard) Attempt(ctx context.Context, gc *guard.Context) error {
	if err := g.Acquire(ctx); err != nil {
		if err != ErrBulkheadFull {
			return err
		}
		gerr := guard.NewRateLimitError(g.config.RetryAfter)
		gerr.Code = "too_many_in_flight"
		gerr.Message = "too many requests in flight"
		gerr.Cause = err
		return gerr
	}
	gc.Set(slotKey, true)
	return nil
}

// Complete releases the slot taken in Attempt.
func (g *BulkheadGuard) Complete(_ context.Context, gc *guard.Context, _ guard.Outcome) {
	if held, _ := gc.Get(slotKey); held == true {
		gc.Set(slotKey, false)
		g.Release()
	}
}

var (
	_ guard.Guard     = (*BulkheadGuard)(nil)
	_ guard.Completer = (*BulkheadGuard)(nil)
)
