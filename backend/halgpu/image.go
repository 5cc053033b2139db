// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package halgpu

import (
	"fmt"
	"sync/atomic"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/framepipe/gpu"
)

// Image is a HAL texture, or a proxy for a swapchain buffer.
type Image struct {
	dev    *Device
	label  string
	width  uint32
	height uint32
	format gputypes.TextureFormat

	tex   hal.Texture // nil for swapchain buffers
	state gpu.ResourceState

	chain *Swapchain
	index int

	released atomic.Bool
}

var _ gpu.Image = (*Image)(nil)

func (i *Image) Label() string                  { return i.label }
func (i *Image) Width() uint32                  { return i.width }
func (i *Image) Height() uint32                 { return i.height }
func (i *Image) Format() gputypes.TextureFormat { return i.format }

func (i *Image) getState() gpu.ResourceState {
	if i.chain != nil {
		return i.chain.state(i.index)
	}
	return i.state
}

func (i *Image) setState(s gpu.ResourceState) {
	if i.chain != nil {
		i.chain.setState(i.index, s)
		return
	}
	i.state = s
}

// texture returns the HAL texture to record against. For a swapchain
// buffer this acquires the surface texture of the frame being recorded.
func (i *Image) texture() (hal.Texture, error) {
	if i.released.Load() {
		return nil, fmt.Errorf("image %q: %w", i.label, gpu.ErrReleased)
	}
	if i.chain != nil {
		return i.chain.acquire(i.index)
	}
	return i.tex, nil
}

// Release destroys the texture, or drops the swapchain buffer reference.
func (i *Image) Release() {
	if !i.released.CompareAndSwap(false, true) {
		return
	}
	if i.chain != nil {
		i.chain.drop()
		return
	}
	i.dev.dev.DestroyTexture(i.tex)
	i.dev.live.Add(-1)
}
