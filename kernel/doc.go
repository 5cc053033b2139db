// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package kernel describes the compute kernels that fill the off-screen
// target each frame.
//
// The frame pipeline only sees an Invoker: given the elapsed time and the
// target image, it overwrites the image and leaves it in the
// UnorderedAccess state with its writes ordered before any later
// submission on the same queue.
//
// A Spec describes one kernel in two equivalent forms. WGSL is the compute
// shader a hardware backend compiles (with naga), and Shade is the per-pixel
// function a CPU backend evaluates. Both forms share the binding layout
//
//	@group(0) @binding(0) var<uniform> params: Params;  // time, width, height, stride
//	@group(0) @binding(1) var<storage, read_write> out_pixels: array<u32>;
//
// and an entry point "main" with an 8x8 workgroup. Pixels are packed with
// pack4x8unorm at out_pixels[y*stride + x]; stride is the row pitch in
// pixels, which may exceed width when the backend pads rows.
//
// A Compiler turns a Spec into an Invoker for a particular device; a Library
// holds the available kernels and the selected one.
package kernel
