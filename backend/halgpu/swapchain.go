// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package halgpu

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/framepipe"
	"github.com/gogpu/framepipe/gpu"
)

// Presenter shows frames on a platform surface.
type Presenter interface {
	// Configure (re)creates the surface images at the given size.
	Configure(width, height uint32, format gputypes.TextureFormat, syncInterval int) error

	// Acquire returns the texture of the next frame.
	Acquire() (hal.Texture, error)

	// Present queues the acquired texture for display on queue.
	Present(queue hal.Queue) error

	// Discard drops the acquired texture without presenting it.
	Discard()

	Release()
}

// PresenterWindow is a window that supplies its own Presenter.
type PresenterWindow interface {
	gpu.Window
	Presenter(d *Device) (Presenter, error)
}

// NativeWindow is a window that exposes the platform handles a HAL
// surface is created from.
type NativeWindow interface {
	gpu.Window
	NativeHandles() (display, window uintptr, err error)
}

// Swapchain presents through a Presenter. Buffer returns proxies that
// resolve to the surface texture acquired for the current frame, so only
// the current back buffer can be recorded.
type Swapchain struct {
	dev   *Device
	queue *Queue
	pres  Presenter
	desc  gpu.SwapchainDesc

	mu         sync.Mutex
	width      uint32
	height     uint32
	current    int
	refs       int
	states     [gpu.BufferCount]gpu.ResourceState
	acquired   hal.Texture
	presents   int64
	generation int
	released   bool
}

var _ gpu.Swapchain = (*Swapchain)(nil)

func (s *Swapchain) configure(width, height uint32) error {
	if (width == 0 || height == 0) && s.desc.Window != nil {
		width, height = s.desc.Window.FramebufferSize()
	}
	if err := s.dev.validSize(width, height); err != nil {
		return err
	}
	if err := s.pres.Configure(width, height, s.desc.Format, s.desc.SyncInterval); err != nil {
		return fmt.Errorf("halgpu: configure surface %dx%d: %w", width, height, err)
	}
	s.width, s.height = width, height
	s.current = 0
	s.states = [gpu.BufferCount]gpu.ResourceState{}
	s.generation++
	framepipe.Logger().Debug("halgpu: surface configured", "width", width, "height", height, "generation", s.generation)
	return nil
}

// BufferCount returns 2.
func (s *Swapchain) BufferCount() int { return gpu.BufferCount }

// Buffer returns a reference to buffer i.
func (s *Swapchain) Buffer(i int) (gpu.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return nil, gpu.ErrReleased
	}
	if i < 0 || i >= gpu.BufferCount {
		return nil, fmt.Errorf("halgpu: swapchain buffer %d out of range", i)
	}
	s.refs++
	return &Image{
		dev:    s.dev,
		label:  fmt.Sprintf("swapchain/gen%d/buffer%d", s.generation, i),
		width:  s.width,
		height: s.height,
		format: s.desc.Format,
		chain:  s,
		index:  i,
	}, nil
}

// CurrentBackBufferIndex returns the buffer the next Present shows.
func (s *Swapchain) CurrentBackBufferIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Generation counts surface configurations.
func (s *Swapchain) Generation() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// Presents returns the number of successful presents.
func (s *Swapchain) Presents() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.presents
}

// ResizeBuffers reconfigures the surface. All buffer references must have
// been released.
func (s *Swapchain) ResizeBuffers(width, height uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return gpu.ErrReleased
	}
	if s.refs > 0 {
		return fmt.Errorf("halgpu: resize with %d buffer references: %w", s.refs, gpu.ErrOutstandingReferences)
	}
	if s.acquired != nil {
		s.pres.Discard()
		s.acquired = nil
	}
	return s.configure(width, height)
}

// Present shows the current back buffer and advances the rotation.
func (s *Swapchain) Present() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return gpu.ErrReleased
	}
	if s.states[s.current] != gpu.StateCommon {
		return fmt.Errorf("halgpu: present buffer %d in state %v: %w", s.current, s.states[s.current], gpu.ErrStateMismatch)
	}
	if s.acquired == nil {
		if _, err := s.acquireLocked(); err != nil {
			return err
		}
	}
	err := s.pres.Present(s.dev.queue)
	s.acquired = nil
	if err != nil {
		return fmt.Errorf("halgpu: present: %w", err)
	}
	s.current = (s.current + 1) % gpu.BufferCount
	s.presents++
	return nil
}

func (s *Swapchain) acquire(index int) (hal.Texture, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return nil, gpu.ErrReleased
	}
	if index != s.current {
		return nil, fmt.Errorf("halgpu: buffer %d recorded while %d is the back buffer: %w", index, s.current, gpu.ErrStateMismatch)
	}
	if s.acquired != nil {
		return s.acquired, nil
	}
	return s.acquireLocked()
}

func (s *Swapchain) acquireLocked() (hal.Texture, error) {
	tex, err := s.pres.Acquire()
	if err != nil {
		return nil, fmt.Errorf("halgpu: acquire surface texture: %w", err)
	}
	if tex == nil {
		return nil, errors.New("halgpu: presenter returned no texture")
	}
	s.acquired = tex
	return tex, nil
}

func (s *Swapchain) state(i int) gpu.ResourceState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[i]
}

func (s *Swapchain) setState(i int, st gpu.ResourceState) {
	s.mu.Lock()
	s.states[i] = st
	s.mu.Unlock()
}

func (s *Swapchain) drop() {
	s.mu.Lock()
	s.refs--
	s.mu.Unlock()
}

// Release destroys the surface.
func (s *Swapchain) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return
	}
	s.released = true
	if s.acquired != nil {
		s.pres.Discard()
		s.acquired = nil
	}
	s.pres.Release()
	s.dev.live.Add(-1)
}
