package simgpu

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/framepipe/gpu"
)

// Fence is a simulated timeline fence.
type Fence struct {
	dev      *Device
	mu       sync.Mutex
	cond     *sync.Cond
	value    uint64
	released atomic.Bool
}

var _ gpu.Fence = (*Fence)(nil)

func newFence(d *Device, initial uint64) *Fence {
	f := &Fence{dev: d, value: initial}
	f.cond = sync.NewCond(&f.mu)
	return f
}

// Completed returns the highest value written by the GPU timeline.
func (f *Fence) Completed() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value
}

// Wait blocks until the fence reaches value, the timeout elapses or the
// device is lost.
func (f *Fence) Wait(value uint64, timeout time.Duration) error {
	if f.released.Load() {
		return gpu.ErrReleased
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.value >= value {
		return nil
	}
	f.dev.trace.add(Event{Kind: EventWait, Value: value})

	var expired atomic.Bool
	timer := time.AfterFunc(timeout, func() {
		expired.Store(true)
		f.wake()
	})
	defer timer.Stop()

	for f.value < value {
		if err := f.dev.Err(); err != nil {
			return err
		}
		if expired.Load() {
			return fmt.Errorf("fence at %d, waiting for %d after %v: %w", f.value, value, timeout, gpu.ErrTimeout)
		}
		f.cond.Wait()
	}
	return nil
}

// complete writes value on the GPU timeline.
func (f *Fence) complete(value uint64) {
	f.mu.Lock()
	if value > f.value {
		f.value = value
	}
	f.mu.Unlock()
	f.dev.trace.add(Event{Kind: EventComplete, Value: value})
	f.cond.Broadcast()
}

func (f *Fence) wake() {
	f.mu.Lock()
	f.cond.Broadcast()
	f.mu.Unlock()
}

// Release destroys the fence.
func (f *Fence) Release() {
	if f.released.CompareAndSwap(false, true) {
		f.dev.live.Add(-1)
		f.wake()
	}
}
