// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import (
	"image"
	"time"

	"github.com/gogpu/gputypes"
)

// DefaultFormat is the presentation format: 8 bits per channel RGBA.
const DefaultFormat = gputypes.TextureFormatRGBA8Unorm

// BufferCount is the number of presentation buffers (double buffering).
const BufferCount = 2

// Image is a GPU-resident 2D color image.
type Image interface {
	// Label returns the debug label given at creation.
	Label() string

	// Width returns the image width in pixels.
	Width() uint32

	// Height returns the image height in pixels.
	Height() uint32

	// Format returns the pixel format.
	Format() gputypes.TextureFormat

	// Release drops the caller's reference. For images created with
	// Device.CreateImage this destroys the image; for swapchain buffers it
	// only releases the reference obtained from Swapchain.Buffer.
	Release()
}

// ImageDesc describes an image created with Device.CreateImage.
type ImageDesc struct {
	Label  string
	Width  uint32
	Height uint32
	Format gputypes.TextureFormat
	Usage  gputypes.TextureUsage

	// InitialState is the usage state the image is created in.
	InitialState ResourceState
}

// CommandAllocator is the memory pool backing recorded commands.
type CommandAllocator interface {
	// Reset reclaims the memory of all commands recorded from this
	// allocator. It fails if a list recorded from it is still open or if
	// its previous work has not finished executing.
	Reset() error

	Release()
}

// CommandList records GPU commands for submission.
//
// A new list is created closed. Reset opens it against an allocator;
// Close ends recording. Recording errors are deferred and reported by Close.
type CommandList interface {
	Reset(alloc CommandAllocator) error
	ResourceBarrier(barriers ...Barrier)
	CopyImage(dst, src Image)
	Close() error
	Release()
}

// Queue executes command lists in submission order.
type Queue interface {
	// Submit schedules closed command lists for execution.
	Submit(lists ...CommandList) error

	// Signal schedules a GPU-side write of value to fence once all work
	// previously submitted to this queue completes.
	Signal(fence Fence, value uint64) error

	Release()
}

// Fence is a GPU/CPU synchronization primitive with a monotonically
// increasing completion counter.
type Fence interface {
	// Completed returns the highest value the GPU has written.
	Completed() uint64

	// Wait blocks the calling goroutine until Completed() >= value or the
	// timeout elapses, in which case it returns ErrTimeout.
	Wait(value uint64, timeout time.Duration) error

	Release()
}

// Window is the presentation target of a swapchain.
type Window interface {
	// FramebufferSize returns the drawable size in pixels. It is used when
	// a swapchain is resized with zero dimensions.
	FramebufferSize() (width, height uint32)
}

// SwapchainDesc describes the presentation surface.
type SwapchainDesc struct {
	Width       uint32
	Height      uint32
	BufferCount int
	Format      gputypes.TextureFormat

	// SampleCount must be 1; presentation buffers are never multisampled.
	SampleCount uint32

	// SyncInterval is passed to Present: 0 presents immediately, 1 waits
	// for vertical blank.
	SyncInterval int

	Window Window
}

// DefaultSwapchainDesc returns the flip-model, double-buffered, 8-bit RGBA,
// single-sample description used by the pipeline.
func DefaultSwapchainDesc(w Window, width, height uint32) SwapchainDesc {
	return SwapchainDesc{
		Width:        width,
		Height:       height,
		BufferCount:  BufferCount,
		Format:       DefaultFormat,
		SampleCount:  1,
		SyncInterval: 1,
		Window:       w,
	}
}

// Swapchain is a ring of presentation buffers.
type Swapchain interface {
	// BufferCount returns the number of buffers in the ring.
	BufferCount() int

	// Buffer returns a reference to buffer i. The caller must Release it
	// before the next ResizeBuffers.
	Buffer(i int) (Image, error)

	// CurrentBackBufferIndex returns the index of the buffer that the next
	// Present will show.
	CurrentBackBufferIndex() int

	// ResizeBuffers reallocates all buffers. Zero dimensions are replaced
	// by the window's framebuffer size. The rotation may restart.
	ResizeBuffers(width, height uint32) error

	// Present shows the current back buffer and advances the rotation.
	Present() error

	Release()
}

// Device creates GPU objects.
type Device interface {
	CreateQueue() (Queue, error)
	CreateCommandAllocator() (CommandAllocator, error)

	// CreateCommandList creates a closed command list bound to alloc.
	CreateCommandList(alloc CommandAllocator) (CommandList, error)

	CreateFence(initial uint64) (Fence, error)
	CreateImage(desc ImageDesc) (Image, error)
	CreateSwapchain(queue Queue, desc SwapchainDesc) (Swapchain, error)

	// Destroy releases the device. All objects created from it must be
	// released first.
	Destroy()
}

// Reader is implemented by devices that can copy an image back to the CPU.
// The caller must make sure no GPU work still writes img.
type Reader interface {
	ReadImage(img Image) (*image.RGBA, error)
}
