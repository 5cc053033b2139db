package simgpu

import (
	"fmt"
	"sync"

	"github.com/gogpu/framepipe"
	"github.com/gogpu/framepipe/gpu"
)

// Swapchain is a simulated flip-model swapchain.
type Swapchain struct {
	dev   *Device
	queue *Queue
	desc  gpu.SwapchainDesc

	mu         sync.Mutex
	buffers    []*Image
	current    int
	generation int
	presents   int64
	released   bool
}

var _ gpu.Swapchain = (*Swapchain)(nil)

// allocate creates a new generation of buffers. The caller holds mu or has
// exclusive access.
func (sc *Swapchain) allocate(w, h uint32) error {
	if (w == 0 || h == 0) && sc.desc.Window != nil {
		fw, fh := sc.desc.Window.FramebufferSize()
		if w == 0 {
			w = fw
		}
		if h == 0 {
			h = fh
		}
	}
	if err := sc.dev.validSize(w, h); err != nil {
		return err
	}

	sc.generation++
	buffers := make([]*Image, sc.desc.BufferCount)
	for i := range buffers {
		buffers[i] = newImage(sc.dev, gpu.ImageDesc{
			Label:        fmt.Sprintf("swapchain/gen%d/buffer%d", sc.generation, i),
			Width:        w,
			Height:       h,
			Format:       sc.desc.Format,
			InitialState: gpu.StateCommon,
		}, sc, sc.generation)
	}
	sc.buffers = buffers
	sc.current = 0
	sc.desc.Width, sc.desc.Height = w, h
	return nil
}

// BufferCount returns the number of buffers.
func (sc *Swapchain) BufferCount() int {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return len(sc.buffers)
}

// Buffer returns a reference to buffer i.
func (sc *Swapchain) Buffer(i int) (gpu.Image, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.released {
		return nil, gpu.ErrReleased
	}
	if i < 0 || i >= len(sc.buffers) {
		return nil, fmt.Errorf("simgpu: buffer %d of %d", i, len(sc.buffers))
	}
	b := sc.buffers[i]
	b.refs.Add(1)
	return b, nil
}

// CurrentBackBufferIndex returns the index the next Present shows.
func (sc *Swapchain) CurrentBackBufferIndex() int {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.current
}

// Generation returns the current buffer generation, starting at 1.
func (sc *Swapchain) Generation() int {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.generation
}

// Presents returns the number of Present calls accepted.
func (sc *Swapchain) Presents() int64 {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.presents
}

// ResizeBuffers destroys every buffer and allocates a new generation.
// Zero dimensions are taken from the window. The rotation restarts at 0.
func (sc *Swapchain) ResizeBuffers(width, height uint32) error {
	if err := sc.dev.check(OpResize); err != nil {
		return err
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.released {
		return gpu.ErrReleased
	}
	for _, b := range sc.buffers {
		if n := b.refs.Load(); n > 0 {
			return fmt.Errorf("resize with %d references to %q: %w", n, b.label, gpu.ErrOutstandingReferences)
		}
	}

	for _, b := range sc.buffers {
		b.destroy()
	}
	sc.buffers = nil
	if err := sc.allocate(width, height); err != nil {
		return err
	}
	sc.dev.trace.add(Event{
		Kind:       EventResize,
		Generation: sc.generation,
		Width:      sc.desc.Width,
		Height:     sc.desc.Height,
	})
	framepipe.Logger().Debug("simgpu: swapchain resized",
		"width", sc.desc.Width,
		"height", sc.desc.Height,
		"generation", sc.generation)
	return nil
}

// Present queues presentation of the current back buffer and advances the
// rotation.
func (sc *Swapchain) Present() error {
	if err := sc.dev.check(OpPresent); err != nil {
		return err
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.released || len(sc.buffers) == 0 {
		return gpu.ErrReleased
	}
	index := sc.current
	b := sc.buffers[index]

	b.pending.Add(1)
	err := sc.queue.enqueue(func() {
		defer b.pending.Add(-1)
		if sc.dev.Err() != nil {
			return
		}
		if b.released.Load() {
			sc.dev.fault(fmt.Errorf("present of destroyed buffer %q", b.label))
			return
		}
		if err := b.expect(gpu.StateCommon); err != nil {
			sc.dev.fault(fmt.Errorf("present: %w", err))
			return
		}
		sc.dev.trace.add(Event{
			Kind:       EventPresent,
			Label:      b.label,
			Index:      index,
			Generation: b.generation,
			Width:      b.width,
			Height:     b.height,
		})
	})
	if err != nil {
		b.pending.Add(-1)
		return err
	}
	sc.current = (sc.current + 1) % len(sc.buffers)
	sc.presents++
	return nil
}

// Release destroys the buffers.
func (sc *Swapchain) Release() {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.released {
		return
	}
	sc.released = true
	for _, b := range sc.buffers {
		b.destroy()
	}
	sc.buffers = nil
	sc.dev.live.Add(-1)
}
