package preview

import (
	"sync"
	"time"
)

// Debouncer coalesces bursts of Trigger calls into a single call of fn that
// fires once no Trigger has happened for the configured window.
type Debouncer struct {
	mu      sync.Mutex
	wait    time.Duration
	fn      func()
	timer   *time.Timer
	gen     uint64
	stopped bool
}

// NewDebouncer returns a trailing-edge debouncer for fn.
func NewDebouncer(wait time.Duration, fn func()) *Debouncer {
	return &Debouncer{wait: wait, fn: fn}
}

// Trigger re-arms the timer. fn runs on the timer's goroutine when it fires.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = time.AfterFunc(d.wait, func() { d.fire(gen) })
}

// Flush runs fn immediately if a call is pending and reports whether it did.
func (d *Debouncer) Flush() bool {
	d.mu.Lock()
	pending := d.timer != nil && !d.stopped
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	// a timer that already fired and is waiting on mu must not run fn again
	d.gen++
	d.mu.Unlock()

	if pending {
		d.fn()
	}
	return pending
}

// Pending reports whether a call is armed.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// Stop cancels any pending call; later Triggers are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if gen != d.gen || d.stopped {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.mu.Unlock()

	d.fn()
}
