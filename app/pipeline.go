package app

import (
	"fmt"
	"time"

	"github.com/gogpu/framepipe/compositor"
	"github.com/gogpu/framepipe/device"
	"github.com/gogpu/framepipe/gpu"
	"github.com/gogpu/framepipe/kernel"
	"github.com/gogpu/framepipe/snapshot"
	"github.com/gogpu/framepipe/swapchain"
)

// PipelineOptions configures NewPipeline.
type PipelineOptions struct {
	Width, Height uint32
	Window        gpu.Window
	SyncInterval  int
	FenceTimeout  time.Duration

	// Kernel is the name of the initially selected kernel. Empty selects
	// the first one.
	Kernel string

	// Kernels defaults to kernel.Builtins().
	Kernels []kernel.Spec
}

// Pipeline is the assembled frame pipeline of one window.
type Pipeline struct {
	Context    *device.Context
	Surface    *swapchain.Surface
	Kernels    *kernel.Library
	Compositor *compositor.Compositor
}

// NewPipeline builds the device context, the surface, the kernel library and
// the compositor on dev, which must also implement kernel.Compiler. It takes
// ownership of dev. Failures are classified gpu.ClassInit and release
// everything created so far.
func NewPipeline(dev gpu.Device, opts PipelineOptions) (*Pipeline, error) {
	compiler, ok := dev.(kernel.Compiler)
	if !ok {
		dev.Destroy()
		return nil, gpu.Wrap(gpu.ClassInit, "kernel compiler", 0, 0,
			fmt.Errorf("device %T cannot compile kernels", dev))
	}

	ctx, err := device.New(dev, device.Options{FenceTimeout: opts.FenceTimeout})
	if err != nil {
		return nil, err
	}
	desc := gpu.DefaultSwapchainDesc(opts.Window, opts.Width, opts.Height)
	desc.SyncInterval = opts.SyncInterval
	surf, err := swapchain.New(ctx, desc)
	if err != nil {
		_ = ctx.Close()
		return nil, err
	}

	p := &Pipeline{Context: ctx, Surface: surf}
	lib, err := kernel.NewLibrary(compiler, opts.Kernels...)
	if err != nil {
		_ = p.Close()
		return nil, gpu.Wrap(gpu.ClassInit, "kernel library", 0, 0, err)
	}
	if opts.Kernel != "" {
		if err := lib.SelectName(opts.Kernel); err != nil {
			_ = p.Close()
			return nil, gpu.Wrap(gpu.ClassInit, "select kernel", 0, 0, err)
		}
	}
	p.Kernels = lib
	p.Compositor = compositor.New(ctx, surf, lib)
	return p, nil
}

// Snapshots returns a snapshot taker capturing the off-screen target, which
// holds the last composited frame once the GPU is drained.
func (p *Pipeline) Snapshots(dir string, format snapshot.Format) *snapshot.Taker {
	return &snapshot.Taker{
		Dir:    dir,
		Format: format,
		Device: p.Context.Device(),
		Drain: func() error {
			_, err := p.Context.Flush()
			return err
		},
		Image: p.Surface.Target,
	}
}

// Options fills the pipeline collaborators of o.
func (p *Pipeline) Options(o Options) Options {
	o.Renderer = p.Compositor
	o.Surface = p.Surface
	o.Kernels = p.Kernels
	return o
}

// Close drains the GPU and releases the surface and the device context.
func (p *Pipeline) Close() error {
	_, drainErr := p.Context.Flush()
	p.Surface.Release()
	if err := p.Context.Close(); err != nil {
		return err
	}
	return drainErr
}
