// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package halgpu

import (
	"errors"
	"fmt"
	"image"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/framepipe/gpu"
)

var _ gpu.Reader = (*Device)(nil)

// ReadImage copies an off-screen image back to the CPU. It submits its own
// work and waits for it; the caller must make sure nothing else writes img.
func (d *Device) ReadImage(src gpu.Image) (*image.RGBA, error) {
	img, err := d.image(src)
	if err != nil {
		return nil, err
	}
	if img.chain != nil {
		return nil, errors.New("halgpu: swapchain buffers cannot be read back")
	}
	if img.released.Load() {
		return nil, gpu.ErrReleased
	}
	swap := false
	switch img.format {
	case gputypes.TextureFormatRGBA8Unorm:
	case gputypes.TextureFormatBGRA8Unorm:
		swap = true
	default:
		return nil, fmt.Errorf("halgpu: read back of %v is not supported", img.format)
	}

	w, h := img.width, img.height
	bytesPerRow := w * 4
	alignedBytesPerRow := (bytesPerRow + copyPitchAlignment - 1) &^ (copyPitchAlignment - 1)
	stagingSize := uint64(alignedBytesPerRow) * uint64(h)

	staging, err := d.dev.CreateBuffer(&hal.BufferDescriptor{
		Label: "readback_staging",
		Size:  stagingSize,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("halgpu: create staging buffer: %w", err)
	}
	defer d.dev.DestroyBuffer(staging)

	encoder, err := d.dev.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "readback"})
	if err != nil {
		return nil, fmt.Errorf("halgpu: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("readback"); err != nil {
		return nil, fmt.Errorf("halgpu: begin encoding: %w", err)
	}
	state := usage(img.state)
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: img.tex,
		Usage:   hal.TextureUsageTransition{OldUsage: state, NewUsage: gputypes.TextureUsageCopySrc},
	}})
	encoder.CopyTextureToBuffer(img.tex, staging, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{Offset: 0, BytesPerRow: alignedBytesPerRow, RowsPerImage: h},
		TextureBase:  hal.ImageCopyTexture{Texture: img.tex, MipLevel: 0},
		Size:         hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	}})
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: img.tex,
		Usage:   hal.TextureUsageTransition{OldUsage: gputypes.TextureUsageCopySrc, NewUsage: state},
	}})
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("halgpu: end encoding: %w", err)
	}
	defer d.dev.FreeCommandBuffer(cmdBuf)

	fence, err := d.dev.CreateFence()
	if err != nil {
		return nil, fmt.Errorf("halgpu: create fence: %w", err)
	}
	defer d.dev.DestroyFence(fence)
	if err := d.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return nil, fmt.Errorf("halgpu: submit: %w", err)
	}
	ok, err := d.dev.Wait(fence, 1, d.opts.DrainTimeout)
	if err != nil {
		return nil, fmt.Errorf("halgpu: wait for read back: %w", err)
	}
	if !ok {
		return nil, gpu.ErrTimeout
	}

	readback := make([]byte, stagingSize)
	if err := d.queue.ReadBuffer(staging, 0, readback); err != nil {
		return nil, fmt.Errorf("halgpu: read back: %w", err)
	}
	return unpackRows(readback, int(w), int(h), int(alignedBytesPerRow), swap), nil
}

// unpackRows strips row padding and, for BGRA data, swaps red and blue.
func unpackRows(data []byte, w, h, pitch int, swapRB bool) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		row := out.Pix[y*out.Stride : y*out.Stride+w*4]
		copy(row, data[y*pitch:y*pitch+w*4])
		if swapRB {
			for x := 0; x < len(row); x += 4 {
				row[x], row[x+2] = row[x+2], row[x]
			}
		}
	}
	return out
}
