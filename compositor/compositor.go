// Package compositor records and submits the per-frame blit of the kernel's
// off-screen target into the presentation surface.
package compositor

import (
	"time"

	"github.com/gogpu/framepipe"
	"github.com/gogpu/framepipe/device"
	"github.com/gogpu/framepipe/gpu"
	"github.com/gogpu/framepipe/kernel"
	"github.com/gogpu/framepipe/swapchain"
)

// Compositor produces one presented frame per RenderFrame call.
// It is not safe for concurrent use.
type Compositor struct {
	ctx    *device.Context
	surf   *swapchain.Surface
	kernel kernel.Invoker

	frames uint64
	stalls uint64
}

// New creates a compositor that renders inv into surf's target.
func New(ctx *device.Context, surf *swapchain.Surface, inv kernel.Invoker) *Compositor {
	return &Compositor{ctx: ctx, surf: surf, kernel: inv}
}

// SetKernel replaces the kernel used by later frames.
func (c *Compositor) SetKernel(inv kernel.Invoker) { c.kernel = inv }

// Frames returns the number of frames presented.
func (c *Compositor) Frames() uint64 { return c.frames }

// Stalls returns how many frames blocked on the fence after presenting.
func (c *Compositor) Stalls() uint64 { return c.stalls }

// RenderFrame renders the kernel for elapsed, copies the result into the
// current back buffer, submits, presents and applies backpressure. Every
// failure is classified gpu.ClassFrame with the fence value and frame index.
func (c *Compositor) RenderFrame(elapsed time.Duration) error {
	frame := c.frames + 1
	fail := func(op string, err error) error {
		err = gpu.Wrap(gpu.ClassFrame, op, c.ctx.Fence().LastSignaled(), frame, err)
		framepipe.Logger().Error("compositor: frame failed",
			"op", op,
			"fence", c.ctx.Fence().LastSignaled(),
			"frame", frame,
			"error", err)
		return err
	}

	target := c.surf.Target()
	if err := c.kernel.Render(elapsed, target); err != nil {
		return fail("render kernel", err)
	}

	back, err := c.surf.Advance()
	if err != nil {
		return fail("advance back buffer", err)
	}

	list, err := c.ctx.Begin()
	if err != nil {
		return fail("begin frame", err)
	}
	pre := [2]gpu.Barrier{
		gpu.Transition(target, gpu.StateUnorderedAccess, gpu.StateCopySource),
		gpu.Transition(back, gpu.StateCommon, gpu.StateCopyDest),
	}
	list.ResourceBarrier(pre[:]...)
	list.CopyImage(back, target)
	list.ResourceBarrier(pre[0].Reverse(), pre[1].Reverse())

	v, err := c.ctx.Execute()
	if err != nil {
		return fail("execute", err)
	}
	if err := c.surf.Present(); err != nil {
		return fail("present", err)
	}
	c.frames++

	blocked, err := c.ctx.Fence().WaitIfPending(v)
	if err != nil {
		return fail("wait for frame", err)
	}
	if blocked {
		c.stalls++
	}

	framepipe.Logger().Debug("compositor: frame presented",
		"frame", frame,
		"fence", v,
		"buffer", back.Label(),
		"blocked", blocked)
	return nil
}
