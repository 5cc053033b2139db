package simgpu

import (
	"fmt"
	"sync/atomic"

	"github.com/gogpu/framepipe/gpu"
)

// Allocator is a simulated command allocator.
type Allocator struct {
	dev *Device

	open     atomic.Int32 // lists currently recording from this allocator
	pending  atomic.Int32 // submitted lists not yet executed
	resets   atomic.Int64
	released atomic.Bool
}

var _ gpu.CommandAllocator = (*Allocator)(nil)

// Reset reclaims the allocator. It fails with gpu.ErrListOpen while a list
// records from it and with gpu.ErrInFlight while its work executes.
func (a *Allocator) Reset() error {
	if a.released.Load() {
		return gpu.ErrReleased
	}
	if n := a.open.Load(); n > 0 {
		return fmt.Errorf("reset allocator with %d open lists: %w", n, gpu.ErrListOpen)
	}
	if n := a.pending.Load(); n > 0 {
		return fmt.Errorf("reset allocator with %d lists executing: %w", n, gpu.ErrInFlight)
	}
	a.resets.Add(1)
	return nil
}

// Resets returns the number of successful resets.
func (a *Allocator) Resets() int64 { return a.resets.Load() }

// Release destroys the allocator.
func (a *Allocator) Release() {
	if a.released.CompareAndSwap(false, true) {
		a.dev.live.Add(-1)
	}
}

type cmdKind uint8

const (
	cmdBarrier cmdKind = iota
	cmdCopy
)

type command struct {
	kind     cmdKind
	barriers []barrier
	dst, src *Image
}

type barrier struct {
	img           *Image
	before, after gpu.ResourceState
}

// images returns the images referenced by c.
func (c command) images() []*Image {
	if c.kind == cmdCopy {
		return []*Image{c.dst, c.src}
	}
	imgs := make([]*Image, len(c.barriers))
	for i, b := range c.barriers {
		imgs[i] = b.img
	}
	return imgs
}

// List is a simulated command list. It is not safe for concurrent use.
type List struct {
	dev   *Device
	alloc *Allocator

	open     bool
	cmds     []command
	err      error // first recording error, reported by Close
	released bool
}

var _ gpu.CommandList = (*List)(nil)

// Reset opens the list for recording against alloc.
func (l *List) Reset(alloc gpu.CommandAllocator) error {
	if l.released {
		return gpu.ErrReleased
	}
	if l.open {
		return fmt.Errorf("reset list: %w", gpu.ErrListOpen)
	}
	a, err := l.dev.allocator(alloc)
	if err != nil {
		return err
	}
	if a.released.Load() {
		return gpu.ErrReleased
	}
	l.alloc = a
	l.open = true
	l.cmds = l.cmds[:0]
	l.err = nil
	a.open.Add(1)
	return nil
}

func (l *List) fail(err error) {
	if l.err == nil {
		l.err = err
	}
}

// ResourceBarrier records usage transitions.
func (l *List) ResourceBarrier(barriers ...gpu.Barrier) {
	if !l.open {
		l.fail(fmt.Errorf("record barrier: %w", gpu.ErrListClosed))
		return
	}
	cmd := command{kind: cmdBarrier, barriers: make([]barrier, 0, len(barriers))}
	for _, b := range barriers {
		img, err := l.dev.image(b.Image)
		if err != nil {
			l.fail(err)
			return
		}
		if img.recorded != b.Before {
			l.fail(fmt.Errorf("barrier on %q: recorded state %v, barrier expects %v: %w",
				img.label, img.recorded, b.Before, gpu.ErrStateMismatch))
			return
		}
		img.recorded = b.After
		cmd.barriers = append(cmd.barriers, barrier{img: img, before: b.Before, after: b.After})
	}
	l.cmds = append(l.cmds, cmd)
}

// CopyImage records a full-image copy from src to dst.
func (l *List) CopyImage(dst, src gpu.Image) {
	if !l.open {
		l.fail(fmt.Errorf("record copy: %w", gpu.ErrListClosed))
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
	case d == s:
		l.fail(fmt.Errorf("copy %q onto itself", d.label))
	case d.width != s.width || d.height != s.height:
		l.fail(fmt.Errorf("copy %dx%d %q to %dx%d %q: %w",
			s.width, s.height, s.label, d.width, d.height, d.label, gpu.ErrInvalidSize))
	case d.format != s.format:
		l.fail(fmt.Errorf("copy %q to %q: format %v != %v", s.label, d.label, s.format, d.format))
	case s.recorded != gpu.StateCopySource:
		l.fail(fmt.Errorf("copy source %q is %v: %w", s.label, s.recorded, gpu.ErrStateMismatch))
	case d.recorded != gpu.StateCopyDest:
		l.fail(fmt.Errorf("copy destination %q is %v: %w", d.label, d.recorded, gpu.ErrStateMismatch))
	default:
		l.cmds = append(l.cmds, command{kind: cmdCopy, dst: d, src: s})
	}
}

// Close ends recording and returns the first recording error.
func (l *List) Close() error {
	if !l.open {
		return fmt.Errorf("close list: %w", gpu.ErrListClosed)
	}
	l.open = false
	l.alloc.open.Add(-1)
	return l.err
}

// Release destroys the list.
func (l *List) Release() {
	if l.released {
		return
	}
	if l.open {
		l.open = false
		l.alloc.open.Add(-1)
	}
	l.released = true
	l.dev.live.Add(-1)
}
