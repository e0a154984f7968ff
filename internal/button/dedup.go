package button

import (
	"sync"
	"time"
)

// DefaultDebounce is the window inside which a repeated code is treated as a
// duplicate delivery rather than a new press.
const DefaultDebounce = 100 * time.Millisecond

// Deduplicator collapses duplicate notifications. The housing notifies on two
// characteristics (legacy and current) for every physical event, so the same
// byte routinely arrives twice within a few milliseconds. Safe for concurrent
// use: both notification callbacks share one instance.
type Deduplicator struct {
	mu     sync.Mutex
	window time.Duration
	last   byte
	lastAt time.Time
	seen   bool

	now func() time.Time // injected in tests
}

// NewDeduplicator creates a Deduplicator with the given debounce window.
// A non-positive window falls back to DefaultDebounce.
func NewDeduplicator(window time.Duration) *Deduplicator {
	if window <= 0 {
		window = DefaultDebounce
	}
	return &Deduplicator{window: window, now: time.Now}
}

// Accept reports whether the raw code should be processed. It returns false
// only when the identical code arrived within the debounce window of the
// previously accepted one; otherwise it records the code and returns true.
func (d *Deduplicator) Accept(raw byte) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if d.seen && raw == d.last && now.Sub(d.lastAt) < d.window {
		return false
	}

	d.last = raw
	d.lastAt = now
	d.seen = true
	return true
}

// Reset clears the debounce history, used when a new connection session
// starts so a stale code cannot suppress the first real press.
func (d *Deduplicator) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen = false
}
