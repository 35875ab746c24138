// internal/events/debounce.go
package events

import (
	"sync"
	"time"
)

// Debouncer coalesces bursts of values. A value arriving while idle is
// delivered at once; values arriving within wait of a delivery are held and
// only the latest is delivered when the window closes.
//
// fn runs without the debouncer's lock held and may run on a timer goroutine.
type Debouncer[T any] struct {
	mu      sync.Mutex
	wait    time.Duration
	fn      func(T)
	timer   *time.Timer
	latest  T
	pending bool
	stopped bool
}

func NewDebouncer[T any](wait time.Duration, fn func(T)) *Debouncer[T] {
	return &Debouncer[T]{wait: wait, fn: fn}
}

// Trigger offers a new value.
func (d *Debouncer[T]) Trigger(v T) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	if d.timer == nil {
		d.timer = time.AfterFunc(d.wait, d.flush)
		d.mu.Unlock()
		d.fn(v)
		return
	}
	d.latest = v
	d.pending = true
	d.mu.Unlock()
}

func (d *Debouncer[T]) flush() {
	d.mu.Lock()
	if d.stopped || !d.pending {
		d.timer = nil
		d.mu.Unlock()
		return
	}
	v := d.latest
	var zero T
	d.latest = zero
	d.pending = false
	d.timer = time.AfterFunc(d.wait, d.flush)
	d.mu.Unlock()
	d.fn(v)
}

// Stop discards any held value. Further triggers are ignored.
func (d *Debouncer[T]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	d.pending = false
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
