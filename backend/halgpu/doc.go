// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package halgpu implements the gpu interfaces on top of the wgpu HAL
// (Vulkan, Metal, DX12).
//
// # Mapping
//
//   - gpu.Fence is a HAL timeline fence. Queue.Signal submits an empty batch
//     that writes the fence; Fence.Wait is Device.Wait.
//   - gpu.CommandList records into a fresh HAL command encoder on every
//     Reset. Close ends encoding and hands the command buffer to the list's
//     allocator, which frees it on its next Reset once the GPU is done.
//   - ResourceBarrier becomes TransitionTextures, CopyImage becomes
//     CopyTextureToTexture.
//   - gpu.Swapchain wraps a Presenter, normally a configured HAL surface.
//     Its two buffers are proxies: the surface texture is acquired lazily
//     when the current back buffer is first recorded and presented by
//     Swapchain.Present.
//
// Every submission also advances a private retire fence, so command
// buffers and evicted pipelines are freed only after the GPU has finished
// with them.
//
// # Kernels
//
// Device implements kernel.Compiler. WGSL is compiled to SPIR-V with naga;
// compute pipelines are kept in an LRU cache keyed by kernel name and
// source. A dispatch writes packed RGBA into a storage buffer and copies it
// into the target image, so targets need CopyDst usage.
//
// # Opening a device
//
// Open creates a standalone device on the first available backend.
// FromProvider shares the device of a host application that exposes its
// HAL handles through gpucontext.
package halgpu
