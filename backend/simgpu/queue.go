package simgpu

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/gogpu/framepipe/gpu"
)

// queueDepth bounds how many operations may wait on the GPU timeline before
// Submit blocks.
const queueDepth = 64

// Queue is a simulated queue. Operations execute in submission order on a
// dedicated goroutine.
type Queue struct {
	dev  *Device
	work chan func()
	wg   sync.WaitGroup

	mu       sync.RWMutex // guards sends on work against Release
	released bool
}

var _ gpu.Queue = (*Queue)(nil)

func newQueue(d *Device) *Queue {
	q := &Queue{dev: d, work: make(chan func(), queueDepth)}
	q.wg.Add(1)
	go q.run()
	return q
}

func (q *Queue) run() {
	defer q.wg.Done()
	for fn := range q.work {
		fn()
	}
}

// enqueue schedules fn on the GPU timeline.
func (q *Queue) enqueue(fn func()) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.released {
		return gpu.ErrReleased
	}
	q.work <- fn
	return nil
}

// Submit schedules closed command lists for execution.
func (q *Queue) Submit(lists ...gpu.CommandList) error {
	if err := q.dev.check(OpSubmit); err != nil {
		return err
	}

	type batch struct {
		alloc *Allocator
		cmds  []command
	}
	batches := make([]batch, 0, len(lists))
	for _, cl := range lists {
		l, ok := cl.(*List)
		if !ok || l.dev != q.dev {
			return fmt.Errorf("simgpu: list %T does not belong to this device", cl)
		}
		switch {
		case l.released:
			return gpu.ErrReleased
		case l.open:
			return fmt.Errorf("submit: %w", gpu.ErrListOpen)
		case l.err != nil:
			return fmt.Errorf("submit list that failed recording: %w", l.err)
		}
		for _, c := range l.cmds {
			for _, img := range c.images() {
				if img.released.Load() {
					return fmt.Errorf("submit references destroyed image %q: %w", img.label, gpu.ErrReleased)
				}
			}
		}
		batches = append(batches, batch{alloc: l.alloc, cmds: slices.Clone(l.cmds)})
	}

	for _, b := range batches {
		b.alloc.pending.Add(1)
		for _, c := range b.cmds {
			for _, img := range c.images() {
				img.pending.Add(1)
			}
		}
	}
	q.dev.trace.add(Event{Kind: EventSubmit, Value: uint64(len(batches))})

	latency := q.dev.opts.Latency
	err := q.enqueue(func() {
		if latency > 0 {
			time.Sleep(latency)
		}
		for _, b := range batches {
			for _, c := range b.cmds {
				q.execute(c)
			}
			b.alloc.pending.Add(-1)
		}
	})
	if err != nil {
		for _, b := range batches {
			b.alloc.pending.Add(-1)
			for _, c := range b.cmds {
				for _, img := range c.images() {
					img.pending.Add(-1)
				}
			}
		}
	}
	return err
}

// execute runs one command on the GPU timeline. Commands are skipped once
// the device is lost, but their references are still dropped.
func (q *Queue) execute(c command) {
	imgs := c.images()
	defer func() {
		for _, img := range imgs {
			img.pending.Add(-1)
		}
	}()
	if q.dev.Err() != nil {
		return
	}
	for _, img := range imgs {
		if img.released.Load() {
			q.dev.fault(fmt.Errorf("command references destroyed image %q", img.label))
			return
		}
	}

	switch c.kind {
	case cmdBarrier:
		for _, b := range c.barriers {
			if err := b.img.transition(b.before, b.after); err != nil {
				q.dev.fault(err)
				return
			}
		}
	case cmdCopy:
		if err := c.src.expect(gpu.StateCopySource); err != nil {
			q.dev.fault(err)
			return
		}
		if err := c.dst.expect(gpu.StateCopyDest); err != nil {
			q.dev.fault(err)
			return
		}
		c.dst.copyFrom(c.src)
		q.dev.trace.add(Event{
			Kind:       EventCopy,
			Label:      c.dst.label,
			Generation: c.dst.generation,
			Width:      c.dst.width,
			Height:     c.dst.height,
		})
	}
}

// Signal schedules a write of value to fence after all submitted work.
func (q *Queue) Signal(fence gpu.Fence, value uint64) error {
	if err := q.dev.check(OpSignal); err != nil {
		return err
	}
	f, ok := fence.(*Fence)
	if !ok || f.dev != q.dev {
		return fmt.Errorf("simgpu: fence %T does not belong to this device", fence)
	}
	if f.released.Load() {
		return gpu.ErrReleased
	}
	q.dev.trace.add(Event{Kind: EventSignal, Value: value})
	return q.enqueue(func() {
		if q.dev.Err() != nil {
			return
		}
		f.complete(value)
	})
}

// Release drains the queue and stops its goroutine.
func (q *Queue) Release() {
	q.mu.Lock()
	if q.released {
		q.mu.Unlock()
		return
	}
	q.released = true
	close(q.work)
	q.mu.Unlock()

	q.wg.Wait()
	q.dev.live.Add(-1)
}
