// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package halgpu

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/framepipe/gpu"
)

// Allocator owns the command buffers of the lists recorded from it until
// its next Reset.
type Allocator struct {
	dev *Device

	mu        sync.Mutex
	open      int
	bufs      []hal.CommandBuffer
	queue     *Queue
	submitted uint64 // retire value of the last submission
	released  bool
}

var _ gpu.CommandAllocator = (*Allocator)(nil)

func (a *Allocator) submittedOn(q *Queue, v uint64) {
	a.mu.Lock()
	a.queue = q
	a.submitted = v
	a.mu.Unlock()
}

// Reset frees the command buffers of earlier frames. It fails while a
// list records from the allocator or while its last submission executes.
func (a *Allocator) Reset() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.released {
		return gpu.ErrReleased
	}
	if a.open > 0 {
		return fmt.Errorf("reset allocator with %d open lists: %w", a.open, gpu.ErrListOpen)
	}
	if a.queue != nil && !a.queue.reached(a.submitted) {
		return fmt.Errorf("reset allocator before submission %d retired: %w", a.submitted, gpu.ErrInFlight)
	}
	for _, b := range a.bufs {
		a.dev.dev.FreeCommandBuffer(b)
	}
	a.bufs = a.bufs[:0]
	return nil
}

// Release frees the allocator once its work has retired.
func (a *Allocator) Release() {
	a.mu.Lock()
	if a.released {
		a.mu.Unlock()
		return
	}
	a.released = true
	bufs := a.bufs
	a.bufs = nil
	q := a.queue
	a.mu.Unlock()

	free := func() {
		for _, b := range bufs {
			a.dev.dev.FreeCommandBuffer(b)
		}
	}
	if q != nil {
		q.retireAfterLast(free)
	} else {
		free()
	}
	a.dev.live.Add(-1)
}

// List records into a HAL command encoder.
type List struct {
	dev   *Device
	label string
	alloc *Allocator

	enc  hal.CommandEncoder
	open bool
	buf  hal.CommandBuffer
	err  error // first recording error, reported by Close

	released bool
}

var _ gpu.CommandList = (*List)(nil)

// Reset opens the list against alloc with a new encoder.
func (l *List) Reset(alloc gpu.CommandAllocator) error {
	if l.released {
		return gpu.ErrReleased
	}
	if l.open {
		return gpu.ErrListOpen
	}
	a, ok := alloc.(*Allocator)
	if !ok || a.dev != l.dev {
		return ErrForeignObject
	}
	enc, err := l.dev.dev.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: l.label})
	if err != nil {
		return fmt.Errorf("halgpu: create command encoder: %w", err)
	}
	if err := enc.BeginEncoding(l.label); err != nil {
		return fmt.Errorf("halgpu: begin encoding: %w", err)
	}

	a.mu.Lock()
	if a.released {
		a.mu.Unlock()
		enc.DiscardEncoding()
		return gpu.ErrReleased
	}
	a.open++
	a.mu.Unlock()

	l.alloc = a
	l.enc = enc
	l.open = true
	l.buf = nil
	l.err = nil
	return nil
}

func (l *List) fail(err error) {
	if l.err == nil {
		l.err = err
	}
}

// ResourceBarrier records layout transitions.
func (l *List) ResourceBarrier(barriers ...gpu.Barrier) {
	if !l.open {
		l.fail(gpu.ErrListClosed)
		return
	}
	hb := make([]hal.TextureBarrier, 0, len(barriers))
	for _, b := range barriers {
		img, err := l.dev.image(b.Image)
		if err != nil {
			l.fail(err)
			return
		}
		if s := img.getState(); s != b.Before {
			l.fail(fmt.Errorf("barrier on %q: image is %v, barrier expects %v: %w", img.label, s, b.Before, gpu.ErrStateMismatch))
			return
		}
		tex, err := img.texture()
		if err != nil {
			l.fail(err)
			return
		}
		hb = append(hb, hal.TextureBarrier{
			Texture: tex,
			Usage: hal.TextureUsageTransition{
				OldUsage: usage(b.Before),
				NewUsage: usage(b.After),
			},
		})
		img.setState(b.After)
	}
	l.enc.TransitionTextures(hb)
}

// CopyImage records a full copy of src into dst.
func (l *List) CopyImage(dst, src gpu.Image) {
	if !l.open {
		l.fail(gpu.ErrListClosed)
		return
	}
	d, err := l.dev.image(dst)
	if err != nil {
		l.fail(err)
		return
	}
	s, err := l.dev.image(src)
	if err != nil {
		l.fail(err)
		return
	}
	switch {
	case d.width != s.width || d.height != s.height:
		l.fail(fmt.Errorf("copy %dx%d %q into %dx%d %q: %w", s.width, s.height, s.label, d.width, d.height, d.label, gpu.ErrInvalidSize))
		return
	case d.format != s.format:
		l.fail(fmt.Errorf("copy %v into %v: %w", s.format, d.format, gpu.ErrStateMismatch))
		return
	case s.getState() != gpu.StateCopySource:
		l.fail(fmt.Errorf("copy source %q is %v: %w", s.label, s.getState(), gpu.ErrStateMismatch))
		return
	case d.getState() != gpu.StateCopyDest:
		l.fail(fmt.Errorf("copy destination %q is %v: %w", d.label, d.getState(), gpu.ErrStateMismatch))
		return
	}
	st, err := s.texture()
	if err != nil {
		l.fail(err)
		return
	}
	dt, err := d.texture()
	if err != nil {
		l.fail(err)
		return
	}
	l.enc.CopyTextureToTexture(st, dt, []hal.TextureCopy{{
		SrcBase: hal.ImageCopyTexture{Texture: st, MipLevel: 0},
		DstBase: hal.ImageCopyTexture{Texture: dt, MipLevel: 0},
		Size:    hal.Extent3D{Width: d.width, Height: d.height, DepthOrArrayLayers: 1},
	}})
}

// Close ends recording. It reports the first recording error, in which
// case nothing was recorded.
func (l *List) Close() error {
	if !l.open {
		return gpu.ErrListClosed
	}
	l.open = false
	a := l.alloc
	a.mu.Lock()
	a.open--
	a.mu.Unlock()

	if l.err != nil {
		l.enc.DiscardEncoding()
		l.enc = nil
		return l.err
	}
	buf, err := l.enc.EndEncoding()
	l.enc = nil
	if err != nil {
		return fmt.Errorf("halgpu: end encoding: %w", err)
	}
	l.buf = buf
	a.mu.Lock()
	a.bufs = append(a.bufs, buf)
	a.mu.Unlock()
	return nil
}

// ready reports whether the list holds a command buffer to submit.
func (l *List) ready() error {
	switch {
	case l.released:
		return gpu.ErrReleased
	case l.open:
		return fmt.Errorf("submit open list: %w", gpu.ErrListOpen)
	case l.buf == nil:
		return errors.New("halgpu: submit of a list with nothing recorded")
	}
	return nil
}

// Release destroys the list. An open recording is discarded.
func (l *List) Release() {
	if l.released {
		return
	}
	if l.open {
		l.enc.DiscardEncoding()
		l.open = false
		l.alloc.mu.Lock()
		l.alloc.open--
		l.alloc.mu.Unlock()
	}
	l.released = true
	l.dev.live.Add(-1)
}
