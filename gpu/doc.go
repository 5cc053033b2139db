// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package gpu defines the graphics API surface the frame pipeline is written
// against.
//
// The interfaces follow the explicit-API model (D3D12, Vulkan, wgpu-hal):
// commands are recorded into a CommandList backed by a CommandAllocator,
// submitted to a Queue, and completion is tracked with a monotonically
// increasing Fence. Resource usage transitions are declared with Barriers.
//
// # Implementations
//
//   - backend/halgpu: real hardware through gogpu/wgpu/hal (Vulkan, Metal, DX12)
//   - backend/simgpu: an instrumented simulation that validates the same
//     invariants a debug layer would, used by tests and headless runs
//
// # Lifetime rules
//
// A CommandList must be closed before the CommandAllocator it records into is
// reset, and must be reset before new commands are recorded. A
// CommandAllocator must not be reset while work recorded from it is still
// executing on the GPU. Swapchain buffers must all be released before
// ResizeBuffers is called.
//
// # Errors
//
// Every failure is reported as an error. The pipeline packages wrap them in
// *Error, which carries the failure Class (initialization, resize or frame)
// together with the fence value and frame index at the time of failure.
package gpu
