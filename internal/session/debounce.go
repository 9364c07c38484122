package session

import (
	"sync"
	"time"
)

// debouncer owns at most one pending scheduled task. Scheduling while a task
// is pending cancels the old task and starts a fresh quiet window, so a burst
// of calls yields a single fire carrying whatever the callback reads then.
type debouncer struct {
	window time.Duration

	mu      sync.Mutex
	pending *time.Timer
}

func newDebouncer(window time.Duration) *debouncer {
	return &debouncer{window: window}
}

// Schedule arms the timer, replacing any pending one. It reports whether a
// pending task was collapsed.
func (d *debouncer) Schedule(fn func()) (collapsed bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.pending != nil {
		d.pending.Stop()
		collapsed = true
	}

	var timer *time.Timer
	timer = time.AfterFunc(d.window, func() {
		d.mu.Lock()
		if d.pending == timer {
			d.pending = nil
		}
		d.mu.Unlock()
		fn()
	})
	d.pending = timer
	return collapsed
}

// Cancel stops the pending task, if any. A task whose timer already fired may
// still run concurrently; callers guard against that with their own staleness
// check.
func (d *debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending != nil {
		d.pending.Stop()
		d.pending = nil
	}
}
