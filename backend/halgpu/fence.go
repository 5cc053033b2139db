// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package halgpu

import (
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/framepipe/gpu"
)

// waiter is the part of hal.Device fences are polled through.
type waiter interface {
	Wait(fence hal.Fence, value uint64, timeout time.Duration) (bool, error)
}

// reachedValue returns the largest v in (lo, hi] the fence has reached,
// or lo if none. Fence values are monotonic, so a binary search over
// zero-timeout waits finds it.
func reachedValue(w waiter, f hal.Fence, lo, hi uint64) uint64 {
	for lo < hi {
		mid := lo + (hi-lo+1)/2
		ok, err := w.Wait(f, mid, 0)
		if err != nil || !ok {
			hi = mid - 1
		} else {
			lo = mid
		}
	}
	return lo
}

// Fence is a HAL timeline fence.
type Fence struct {
	dev   *Device
	fence hal.Fence

	mu        sync.Mutex
	signaled  uint64 // highest value submitted
	completed uint64 // highest value observed complete
	released  bool
}

var _ gpu.Fence = (*Fence)(nil)

func (f *Fence) noteSignaled(v uint64) {
	f.mu.Lock()
	if v > f.signaled {
		f.signaled = v
	}
	f.mu.Unlock()
}

// Completed returns the highest value the GPU has written, as far as can
// be observed without blocking.
func (f *Fence) Completed() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.released || f.completed >= f.signaled {
		return f.completed
	}
	f.completed = reachedValue(f.dev.dev, f.fence, f.completed, f.signaled)
	return f.completed
}

// Wait blocks until the fence reaches value or the timeout elapses.
func (f *Fence) Wait(value uint64, timeout time.Duration) error {
	f.mu.Lock()
	if f.released {
		f.mu.Unlock()
		return gpu.ErrReleased
	}
	if f.completed >= value {
		f.mu.Unlock()
		return nil
	}
	f.mu.Unlock()

	ok, err := f.dev.dev.Wait(f.fence, value, timeout)
	if err != nil {
		return fmt.Errorf("halgpu: wait for fence value %d: %w: %w", value, gpu.ErrDeviceLost, err)
	}
	if !ok {
		return gpu.ErrTimeout
	}

	f.mu.Lock()
	if value > f.completed {
		f.completed = value
	}
	f.mu.Unlock()
	return nil
}

// Release destroys the fence.
func (f *Fence) Release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.released {
		return
	}
	f.released = true
	f.dev.dev.DestroyFence(f.fence)
	f.dev.live.Add(-1)
}
