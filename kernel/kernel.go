// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package kernel

import (
	"errors"
	"image/color"
	"time"

	"github.com/gogpu/framepipe/gpu"
)

// WorkgroupSize is the edge of the square compute workgroup.
const WorkgroupSize = 8

// EntryPoint is the compute entry point of every kernel shader.
const EntryPoint = "main"

// ErrUnknownKernel is returned when looking up a kernel that does not exist.
var ErrUnknownKernel = errors.New("kernel: unknown kernel")

// Invoker fills a target image.
type Invoker interface {
	// Render overwrites target for the given elapsed time. The target is in
	// the UnorderedAccess state before and after the call.
	Render(elapsed time.Duration, target gpu.Image) error
}

// Func adapts a function to the Invoker interface.
type Func func(elapsed time.Duration, target gpu.Image) error

// Render calls f.
func (f Func) Render(elapsed time.Duration, target gpu.Image) error {
	return f(elapsed, target)
}

// ShadeFunc computes the color of pixel (x, y) of a width x height image at
// time t in seconds.
type ShadeFunc func(x, y, width, height int, t float64) color.RGBA

// Spec describes a kernel.
type Spec struct {
	Name        string
	Description string

	// WGSL is the compute shader source.
	WGSL string

	// Shade is the CPU form of the shader.
	Shade ShadeFunc
}

// Compiler builds invokers for a device.
type Compiler interface {
	Compile(spec Spec) (Invoker, error)
}

// GroupCount returns the number of workgroups needed to cover n pixels.
func GroupCount(n uint32) uint32 {
	return (n + WorkgroupSize - 1) / WorkgroupSize
}
