package app

import "time"

// Timer measures the elapsed time handed to the kernel. Time spent paused
// is excluded, so animations resume where they stopped.
type Timer struct {
	now      func() time.Time
	start    time.Time
	stopped  bool
	stopAt   time.Time
	excluded time.Duration
}

// NewTimer starts a timer reading now. A nil now uses time.Now.
func NewTimer(now func() time.Time) *Timer {
	if now == nil {
		now = time.Now
	}
	return &Timer{now: now, start: now()}
}

// Elapsed returns the running time since the timer started.
func (t *Timer) Elapsed() time.Duration {
	end := t.now()
	if t.stopped {
		end = t.stopAt
	}
	return end.Sub(t.start) - t.excluded
}

// Stop freezes the elapsed time.
func (t *Timer) Stop() {
	if t.stopped {
		return
	}
	t.stopped = true
	t.stopAt = t.now()
}

// Start resumes a stopped timer.
func (t *Timer) Start() {
	if !t.stopped {
		return
	}
	t.excluded += t.now().Sub(t.stopAt)
	t.stopped = false
}

// Stopped reports whether the timer is stopped.
func (t *Timer) Stopped() bool { return t.stopped }
