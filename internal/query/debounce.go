package query

import (
	"sync"
	"time"

	"giffer/internal/metrics"
)

// DefaultDebounce is the search input debounce window.
const DefaultDebounce = 300 * time.Millisecond

// Debouncer runs fn with the last submitted term once no newer term has
// arrived for the delay. Superseded terms are discarded, not queued.
type Debouncer struct {
	delay time.Duration
	fn    func(term string)

	mu      sync.Mutex
	timer   *time.Timer
	gen     uint64
	stopped bool
}

// NewDebouncer creates a Debouncer. A non-positive delay uses
// DefaultDebounce.
func NewDebouncer(delay time.Duration, fn func(term string)) *Debouncer {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &Debouncer{delay: delay, fn: fn}
}

// Submit schedules term, cancelling any evaluation still pending.
func (d *Debouncer) Submit(term string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if d.timer != nil && d.timer.Stop() {
		metrics.SearchDebounced.Inc()
	}

	d.gen++
	gen := d.gen
	d.timer = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		current := gen == d.gen && !d.stopped
		d.mu.Unlock()

		if current {
			d.fn(term)
		}
	})
}

// Stop cancels any pending evaluation. Later Submits are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
}
