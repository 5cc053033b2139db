// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package halgpu

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// ErrNoInstance is returned when a surface is requested from a shared
// device, which has no HAL instance to create it from.
var ErrNoInstance = errors.New("halgpu: device has no instance to create surfaces")

// surfacePresenter presents through a HAL surface.
type surfacePresenter struct {
	dev        hal.Device
	surface    hal.Surface
	configured bool
	acquired   hal.SurfaceTexture
}

func newSurfacePresenter(d *Device, w NativeWindow) (*surfacePresenter, error) {
	if d.instance == nil {
		return nil, ErrNoInstance
	}
	display, window, err := w.NativeHandles()
	if err != nil {
		return nil, fmt.Errorf("halgpu: native window handles: %w", err)
	}
	surface, err := d.instance.CreateSurface(display, window)
	if err != nil {
		return nil, fmt.Errorf("halgpu: create surface: %w", err)
	}
	return &surfacePresenter{dev: d.dev, surface: surface}, nil
}

func presentMode(syncInterval int) hal.PresentMode {
	if syncInterval == 0 {
		return hal.PresentModeImmediate
	}
	return hal.PresentModeFifo
}

func (p *surfacePresenter) Configure(width, height uint32, format gputypes.TextureFormat, syncInterval int) error {
	if p.configured {
		p.surface.Unconfigure(p.dev)
		p.configured = false
	}
	err := p.surface.Configure(p.dev, &hal.SurfaceConfiguration{
		Width:       width,
		Height:      height,
		Format:      format,
		Usage:       gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopyDst,
		PresentMode: presentMode(syncInterval),
		AlphaMode:   hal.CompositeAlphaModeOpaque,
	})
	if err != nil {
		return err
	}
	p.configured = true
	return nil
}

func (p *surfacePresenter) Acquire() (hal.Texture, error) {
	acq, err := p.surface.AcquireTexture(nil)
	if err != nil {
		return nil, err
	}
	p.acquired = acq.Texture
	return acq.Texture, nil
}

func (p *surfacePresenter) Present(queue hal.Queue) error {
	if p.acquired == nil {
		return errors.New("no surface texture acquired")
	}
	tex := p.acquired
	p.acquired = nil
	return queue.Present(p.surface, tex)
}

func (p *surfacePresenter) Discard() {
	if p.acquired != nil {
		p.surface.DiscardTexture(p.acquired)
		p.acquired = nil
	}
}

func (p *surfacePresenter) Release() {
	p.Discard()
	if p.configured {
		p.surface.Unconfigure(p.dev)
		p.configured = false
	}
	p.surface.Destroy()
}
