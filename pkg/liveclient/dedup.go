package liveclient

import (
	"context"
	"sync"
	"time"
)

const (
	// DedupWindow is how long a processed notification id suppresses
	// repeated user-visible effects. Redelivery after eviction counts as
	// a new event.
	DedupWindow = 5 * time.Minute

	// SweepInterval is the cadence of the periodic eviction sweep.
	SweepInterval = time.Minute
)

// Deduper tracks which pushed notification ids have already been applied.
// It is constructed and injected explicitly; there is no package-level
// instance. It also guards live-listener attachment so the same push is
// never handled by two listeners in one session.
type Deduper struct {
	mu       sync.Mutex
	seen     map[string]time.Time
	window   time.Duration
	now      func() time.Time
	attached bool
}

// DeduperOption customises a Deduper.
type DeduperOption func(*Deduper)

// WithWindow overrides the eviction window.
func WithWindow(window time.Duration) DeduperOption {
	return func(d *Deduper) {
		if window > 0 {
			d.window = window
		}
	}
}

// WithClock overrides the time source, primarily for tests.
func WithClock(now func() time.Time) DeduperOption {
	return func(d *Deduper) {
		if now != nil {
			d.now = now
		}
	}
}

// NewDeduper constructs a Deduper with the standard 5-minute window.
func NewDeduper(opts ...DeduperOption) *Deduper {
	d := &Deduper{
		seen:   make(map[string]time.Time),
		window: DedupWindow,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// HasProcessed reports whether the id is in the processed set.
func (d *Deduper) HasProcessed(id string) bool {
	if id == "" {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.seen[id]
	return ok
}

// MarkProcessed records the id with the current time. Idempotent: the
// first-seen time is kept on repeat calls.
func (d *Deduper) MarkProcessed(id string) {
	if id == "" {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.seen[id]; !ok {
		d.seen[id] = d.now()
	}
}

// CheckAndMark atomically reports whether the id was already processed and,
// if not, marks it. The check happens before any asynchronous work so two
// concurrent deliveries of the same id cannot both pass.
func (d *Deduper) CheckAndMark(id string) bool {
	if id == "" {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.seen[id]; ok {
		return false
	}
	d.seen[id] = d.now()
	return true
}

// Sweep evicts entries older than the window.
func (d *Deduper) Sweep() {
	d.mu.Lock()
	defer d.mu.Unlock()

	cutoff := d.now().Add(-d.window)
	for id, seenAt := range d.seen {
		if seenAt.Before(cutoff) {
			delete(d.seen, id)
		}
	}
}

// Run sweeps periodically until the context is cancelled.
func (d *Deduper) Run(ctx context.Context) {
	ticker := time.NewTicker(SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.Sweep()
		}
	}
}

// Len reports the current number of tracked ids.
func (d *Deduper) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}

// TryAttachListener claims the single live-listener slot for this session.
// It returns false if a listener is already attached.
func (d *Deduper) TryAttachListener() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.attached {
		return false
	}
	d.attached = true
	return true
}

// DetachListener releases the live-listener slot.
func (d *Deduper) DetachListener() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.attached = false
}
