// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package halgpu

import (
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/framepipe"
	"github.com/gogpu/framepipe/gpu"
)

// retirement is work to run once the retire fence reaches value.
type retirement struct {
	value uint64
	fn    func()
}

// Queue submits to the device's HAL queue. Every submission advances a
// private retire fence that tells when resources used by it may be freed.
type Queue struct {
	dev    *Device
	retire hal.Fence

	mu        sync.Mutex
	submitted uint64
	completed uint64
	pending   []retirement
	released  bool
	destroyed bool
}

var _ gpu.Queue = (*Queue)(nil)

// Submit executes closed lists in order.
func (q *Queue) Submit(lists ...gpu.CommandList) error {
	recorded := make([]*List, 0, len(lists))
	for _, cl := range lists {
		l, ok := cl.(*List)
		if !ok || l.dev != q.dev {
			return ErrForeignObject
		}
		if err := l.ready(); err != nil {
			return err
		}
		recorded = append(recorded, l)
	}
	bufs := make([]hal.CommandBuffer, len(recorded))
	for i, l := range recorded {
		bufs[i] = l.buf
	}
	v, err := q.submit(bufs)
	if err != nil {
		return err
	}
	for _, l := range recorded {
		l.buf = nil
		l.alloc.submittedOn(q, v)
	}
	return nil
}

// submit sends bufs and advances the retire fence. It returns the retire
// value of the submission.
func (q *Queue) submit(bufs []hal.CommandBuffer, retire ...func()) (uint64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.released {
		return 0, gpu.ErrReleased
	}
	v := q.submitted + 1
	if err := q.dev.queue.Submit(bufs, q.retire, v); err != nil {
		return 0, fmt.Errorf("halgpu: submit: %w", err)
	}
	q.submitted = v
	for _, fn := range retire {
		q.pending = append(q.pending, retirement{value: v, fn: fn})
	}
	q.collectLocked()
	return v, nil
}

// retireAfterLast runs fn once everything submitted so far has finished.
func (q *Queue) retireAfterLast(fn func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.destroyed || q.submitted == 0 || q.reachedLocked(q.submitted) {
		fn()
		return
	}
	q.pending = append(q.pending, retirement{value: q.submitted, fn: fn})
}

// Signal writes value to fence once prior work completes.
func (q *Queue) Signal(fence gpu.Fence, value uint64) error {
	f, ok := fence.(*Fence)
	if !ok || f.dev != q.dev {
		return ErrForeignObject
	}
	q.mu.Lock()
	released := q.released
	q.mu.Unlock()
	if released {
		return gpu.ErrReleased
	}
	if err := q.dev.queue.Submit(nil, f.fence, value); err != nil {
		return fmt.Errorf("halgpu: signal fence value %d: %w", value, err)
	}
	f.noteSignaled(value)
	return nil
}

func (q *Queue) reached(v uint64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.reachedLocked(v)
}

func (q *Queue) reachedLocked(v uint64) bool {
	if v <= q.completed {
		return true
	}
	if q.destroyed {
		return false
	}
	q.completed = reachedValue(q.dev.dev, q.retire, q.completed, q.submitted)
	return v <= q.completed
}

func (q *Queue) collectLocked() {
	n := 0
	for _, r := range q.pending {
		if !q.reachedLocked(r.value) {
			break
		}
		r.fn()
		n++
	}
	q.pending = q.pending[n:]
}

// drain waits for all submitted work and runs every pending retirement.
func (q *Queue) drain(timeout time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.destroyed {
		return
	}
	if q.submitted > q.completed {
		ok, err := q.dev.dev.Wait(q.retire, q.submitted, timeout)
		if err != nil || !ok {
			framepipe.Logger().Warn("halgpu: queue did not drain", "submitted", q.submitted, "err", err)
		} else {
			q.completed = q.submitted
		}
	}
	for _, r := range q.pending {
		r.fn()
	}
	q.pending = nil
}

func (q *Queue) isReleased() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.released
}

func (q *Queue) destroyRetireFence() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.destroyed {
		return
	}
	q.destroyed = true
	q.dev.dev.DestroyFence(q.retire)
}

// Release stops accepting work. Outstanding work is drained when the
// device is destroyed.
func (q *Queue) Release() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.released {
		return
	}
	q.released = true
	q.dev.live.Add(-1)
}
