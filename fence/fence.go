package fence

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/framepipe"
	"github.com/gogpu/framepipe/gpu"
)

// DefaultTimeout bounds a single Wait. A fence that does not advance for this
// long means the device is hung or lost.
const DefaultTimeout = 5 * time.Second

// ErrReleased is returned by operations on a released Synchronizer.
var ErrReleased = errors.New("fence: synchronizer released")

// ErrNotSignaled is returned when waiting for a value that was never signaled.
var ErrNotSignaled = errors.New("fence: value not signaled")

// Options configures a Synchronizer.
type Options struct {
	// Timeout bounds each Wait. Zero means DefaultTimeout.
	Timeout time.Duration

	// Initial is the fence's starting value.
	Initial uint64
}

// Synchronizer signals and waits on a fence over one queue.
type Synchronizer struct {
	mu      sync.Mutex
	queue   gpu.Queue
	fence   gpu.Fence
	next    uint64 // last value handed to Signal
	timeout time.Duration
}

// New creates a fence on dev and binds it to queue.
func New(dev gpu.Device, queue gpu.Queue, opts Options) (*Synchronizer, error) {
	f, err := dev.CreateFence(opts.Initial)
	if err != nil {
		return nil, fmt.Errorf("create fence: %w", err)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Synchronizer{
		queue:   queue,
		fence:   f,
		next:    opts.Initial,
		timeout: timeout,
	}, nil
}

// Signal schedules the next counter value on the queue and returns it.
// The counter only advances when the signal was accepted.
func (s *Synchronizer) Signal() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fence == nil {
		return s.next, ErrReleased
	}
	v := s.next + 1
	if err := s.queue.Signal(s.fence, v); err != nil {
		return s.next, fmt.Errorf("signal fence %d: %w", v, err)
	}
	s.next = v
	return v, nil
}

// LastSignaled returns the last value passed to Signal.
func (s *Synchronizer) LastSignaled() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

// Completed returns the highest value the GPU has reached.
func (s *Synchronizer) Completed() uint64 {
	s.mu.Lock()
	f := s.fence
	s.mu.Unlock()
	if f == nil {
		return 0
	}
	return f.Completed()
}

// Reached reports whether the GPU has reached v.
func (s *Synchronizer) Reached(v uint64) bool {
	return s.Completed() >= v
}

// Wait blocks the calling goroutine until the GPU reaches v.
func (s *Synchronizer) Wait(v uint64) error {
	s.mu.Lock()
	f, next, timeout := s.fence, s.next, s.timeout
	s.mu.Unlock()
	if f == nil {
		return ErrReleased
	}
	if v > next {
		return fmt.Errorf("wait for %d, last signaled %d: %w", v, next, ErrNotSignaled)
	}
	if f.Completed() >= v {
		return nil
	}
	start := time.Now()
	if err := f.Wait(v, timeout); err != nil {
		return fmt.Errorf("wait fence %d: %w", v, err)
	}
	framepipe.Logger().Debug("fence: waited",
		"value", v,
		"elapsed", time.Since(start))
	return nil
}

// WaitIfPending blocks until v is reached if it has not been reached
// already. It reports whether it blocked.
func (s *Synchronizer) WaitIfPending(v uint64) (bool, error) {
	if s.Reached(v) {
		return false, nil
	}
	return true, s.Wait(v)
}

// Flush signals the next value and waits for it, draining all work
// submitted to the queue. It returns the drained value.
func (s *Synchronizer) Flush() (uint64, error) {
	v, err := s.Signal()
	if err != nil {
		return v, err
	}
	return v, s.Wait(v)
}

// Release destroys the fence. It is safe to call more than once.
func (s *Synchronizer) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fence != nil {
		s.fence.Release()
		s.fence = nil
	}
}
