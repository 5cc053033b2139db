// Package framepipe presents frames produced by a GPU compute kernel onto a
// window surface in real time.
//
// # Overview
//
// The heart of the module is the frame-submission pipeline: a per-frame
// state machine that records GPU commands, synchronizes the CPU with the GPU
// through a fence, rotates two presentation buffers and reacts to resize and
// pause requests coming from the windowing system.
//
// # Architecture
//
//	event source ──► app.Context ──► swapchain.Surface.Resize
//	                     │
//	                     └─ tick ──► compositor.Compositor
//	                                   ├─ kernel.Invoker (fills off-screen image)
//	                                   ├─ barrier / copy / barrier
//	                                   ├─ submit + fence.Synchronizer.Signal
//	                                   └─ present
//
// The packages, leaves first:
//
//   - gpu: the graphics API abstraction (device, queue, fence, command
//     allocator and list, images, swapchain) and the error taxonomy
//   - fence: the fence synchronizer (monotonic counter + blocking wait)
//   - device: the device context (queue, allocator, command list, fence)
//   - swapchain: the double-buffered presentation surface and off-screen target
//   - kernel: the render kernel invoker contract and built-in kernels
//   - compositor: the per-frame blit and submit sequence
//   - event: normalized window events and the handle registry
//   - app: the application driver (pause/resize state machine, status line)
//
// Backends implementing package gpu live under backend/: halgpu drives real
// hardware through gogpu/wgpu/hal, simgpu is an instrumented simulation used
// by tests and headless runs.
//
// # Threading
//
// Everything in the pipeline runs on one goroutine, the one that owns the
// window event pump. The only asynchrony is between CPU submission and GPU
// execution and it is bridged exclusively by the fence.
//
// # Logging
//
// framepipe produces no log output by default. Call [SetLogger] to enable it:
//
//	framepipe.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))
package framepipe
