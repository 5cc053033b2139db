// Package swapchain implements the double-buffered presentation surface and
// the off-screen target the kernel renders into.
//
// The surface keeps the two presentation buffers in a fixed array indexed by
// the current back buffer index, which flips with index ^= 1 once per
// frame. Resize replaces both buffers and the off-screen target together
// after draining the GPU, so no in-flight command ever references a
// destroyed image.
package swapchain

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/framepipe"
	"github.com/gogpu/framepipe/device"
	"github.com/gogpu/framepipe/gpu"
)

// ErrBroken is returned after a failed resize left the surface without
// buffers. The session cannot continue.
var ErrBroken = errors.New("swapchain: surface broken by failed resize")

// TargetLabel is the debug label of the off-screen target.
const TargetLabel = "offscreen-target"

// Surface is the presentation surface. It is not safe for concurrent use.
type Surface struct {
	ctx   *device.Context
	chain gpu.Swapchain

	buffers [gpu.BufferCount]gpu.Image
	current int
	target  gpu.Image

	width, height uint32
	resizes       int
	broken        bool
}

// New creates the swapchain described by desc, takes references to both
// buffers and creates the off-screen target at the buffer size. Failures are
// classified gpu.ClassInit.
func New(ctx *device.Context, desc gpu.SwapchainDesc) (*Surface, error) {
	if desc.BufferCount != gpu.BufferCount {
		return nil, gpu.Wrap(gpu.ClassInit, "create swapchain", 0, 0,
			fmt.Errorf("buffer count %d, surface is double-buffered", desc.BufferCount))
	}
	chain, err := ctx.Device().CreateSwapchain(ctx.Queue(), desc)
	if err != nil {
		return nil, gpu.Wrap(gpu.ClassInit, "create swapchain", 0, 0, err)
	}
	s := &Surface{ctx: ctx, chain: chain}
	if err := s.acquire(); err != nil {
		s.Release()
		return nil, gpu.Wrap(gpu.ClassInit, "acquire swapchain buffers", 0, 0, err)
	}
	if err := s.recreateTarget(); err != nil {
		s.Release()
		return nil, gpu.Wrap(gpu.ClassInit, "create off-screen target", 0, 0, err)
	}
	framepipe.Logger().Info("swapchain: created",
		"width", s.width,
		"height", s.height,
		"index", s.current)
	return s, nil
}

// acquire takes references to every buffer and re-queries the size and the
// current index.
func (s *Surface) acquire() error {
	if n := s.chain.BufferCount(); n != gpu.BufferCount {
		return fmt.Errorf("swapchain reports %d buffers, want %d", n, gpu.BufferCount)
	}
	for i := range s.buffers {
		b, err := s.chain.Buffer(i)
		if err != nil {
			s.releaseBuffers()
			return fmt.Errorf("buffer %d: %w", i, err)
		}
		s.buffers[i] = b
	}
	s.width, s.height = s.buffers[0].Width(), s.buffers[0].Height()
	s.current = s.chain.CurrentBackBufferIndex()
	return nil
}

func (s *Surface) releaseBuffers() {
	for i, b := range s.buffers {
		if b != nil {
			b.Release()
			s.buffers[i] = nil
		}
	}
}

// recreateTarget destroys the off-screen target and creates a new one at the
// buffer size, ready for the kernel in the UnorderedAccess state.
func (s *Surface) recreateTarget() error {
	if s.target != nil {
		s.target.Release()
		s.target = nil
	}
	t, err := s.ctx.Device().CreateImage(gpu.ImageDesc{
		Label:        TargetLabel,
		Width:        s.width,
		Height:       s.height,
		Format:       s.buffers[0].Format(),
		Usage:        gputypes.TextureUsageStorageBinding | gputypes.TextureUsageCopySrc | gputypes.TextureUsageCopyDst | gputypes.TextureUsageTextureBinding,
		InitialState: gpu.StateUnorderedAccess,
	})
	if err != nil {
		return err
	}
	s.target = t
	return nil
}

// Resize drains the GPU and replaces both buffers and the off-screen target.
// Zero dimensions are taken from the window. Any failure is classified
// gpu.ClassResize and leaves the surface broken: resources that were
// reallocated are released and every later call fails.
func (s *Surface) Resize(width, height uint32) error {
	if s.broken {
		return ErrBroken
	}
	fail := func(op string, err error) error {
		s.broken = true
		s.releaseBuffers()
		if s.target != nil {
			s.target.Release()
			s.target = nil
		}
		return gpu.Wrap(gpu.ClassResize, op, s.ctx.Fence().LastSignaled(), 0, err)
	}

	v, err := s.ctx.Flush()
	if err != nil {
		return fail("drain before resize", err)
	}
	s.releaseBuffers()
	if err := s.chain.ResizeBuffers(width, height); err != nil {
		return fail("resize buffers", err)
	}
	if err := s.acquire(); err != nil {
		return fail("acquire buffers", err)
	}
	if err := s.recreateTarget(); err != nil {
		return fail("recreate off-screen target", err)
	}
	s.resizes++

	framepipe.Logger().Info("swapchain: resized",
		"width", s.width,
		"height", s.height,
		"index", s.current,
		"fence", v)
	return nil
}

// Advance returns the buffer the frame being recorded copies into and flips
// the index for the next frame.
func (s *Surface) Advance() (gpu.Image, error) {
	if s.broken {
		return nil, ErrBroken
	}
	b := s.buffers[s.current]
	s.current ^= 1
	return b, nil
}

// Present shows the swapchain's current back buffer.
func (s *Surface) Present() error {
	if s.broken {
		return ErrBroken
	}
	return s.chain.Present()
}

// ChainIndex returns the back buffer index reported by the swapchain.
func (s *Surface) ChainIndex() int { return s.chain.CurrentBackBufferIndex() }

// Current returns the index of the buffer the next frame copies into.
func (s *Surface) Current() int { return s.current }

// Buffers returns both presentation buffers.
func (s *Surface) Buffers() [gpu.BufferCount]gpu.Image { return s.buffers }

// Target returns the off-screen target.
func (s *Surface) Target() gpu.Image { return s.target }

// Size returns the buffer size.
func (s *Surface) Size() (width, height uint32) { return s.width, s.height }

// Resizes returns the number of completed resizes.
func (s *Surface) Resizes() int { return s.resizes }

// Broken reports whether a failed resize left the surface unusable.
func (s *Surface) Broken() bool { return s.broken }

// Release destroys the target, drops the buffer references and releases the
// swapchain. The caller drains the GPU first.
func (s *Surface) Release() {
	if s.target != nil {
		s.target.Release()
		s.target = nil
	}
	s.releaseBuffers()
	if s.chain != nil {
		s.chain.Release()
		s.chain = nil
	}
}
