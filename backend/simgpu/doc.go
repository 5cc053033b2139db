// Package simgpu is an instrumented, CPU-backed implementation of the gpu
// interfaces.
//
// Submitted work runs in submission order on a separate goroutine, the GPU
// timeline, after an optional latency. The CPU can therefore run ahead of
// the GPU exactly as it does with real hardware, and fences are the only
// way to observe completion.
//
// The device validates what a debug layer validates:
//
//   - resetting an allocator while a list recorded from it is open or its
//     work is still executing
//   - recording into a closed list and submitting an open one
//   - barriers whose Before state does not match the image's state
//   - copies between images of different sizes or formats
//   - destroying an image that queued GPU work still references
//   - resizing a swapchain while buffer references are outstanding
//   - zero or oversized dimensions
//
// Recording errors are returned by CommandList.Close. Hazards detected on
// the GPU timeline put the device in the lost state, after which every
// submission and fence wait fails with gpu.ErrDeviceLost.
//
// Images hold real RGBA pixels, so copies move data and a snapshot can read
// a presented frame back. Kernels run their CPU Shade function over
// horizontal bands of the target on a worker pool.
//
// Every observable action is appended to an optional Trace so tests can
// assert ordering between CPU and GPU timelines.
package simgpu
