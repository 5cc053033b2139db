package simgpu

import (
	"errors"
	"fmt"
	"time"

	"github.com/gogpu/framepipe/gpu"
	"github.com/gogpu/framepipe/kernel"
)

var _ kernel.Compiler = (*Device)(nil)

// Compile returns an invoker that shades spec on the device's first queue.
func (d *Device) Compile(spec kernel.Spec) (kernel.Invoker, error) {
	if spec.Shade == nil {
		return nil, fmt.Errorf("simgpu: kernel %q has no CPU form", spec.Name)
	}
	return &invoker{dev: d, spec: spec}, nil
}

type invoker struct {
	dev  *Device
	spec kernel.Spec
}

// Render queues a dispatch that shades every pixel of target. The target
// must be recorded in the UnorderedAccess state.
func (k *invoker) Render(elapsed time.Duration, target gpu.Image) error {
	img, err := k.dev.image(target)
	if err != nil {
		return err
	}
	if img.released.Load() {
		return gpu.ErrReleased
	}
	if img.recorded != gpu.StateUnorderedAccess {
		return fmt.Errorf("kernel %q target %q is %v: %w", k.spec.Name, img.label, img.recorded, gpu.ErrStateMismatch)
	}
	q := k.dev.defaultQueue()
	if q == nil {
		return errors.New("simgpu: kernel dispatch needs a queue")
	}
	if err := k.dev.check(OpDispatch); err != nil {
		return err
	}

	t := elapsed.Seconds()
	img.pending.Add(1)
	err = q.enqueue(func() {
		defer img.pending.Add(-1)
		if k.dev.Err() != nil {
			return
		}
		if img.released.Load() {
			k.dev.fault(fmt.Errorf("dispatch into destroyed image %q", img.label))
			return
		}
		if err := img.expect(gpu.StateUnorderedAccess); err != nil {
			k.dev.fault(fmt.Errorf("dispatch: %w", err))
			return
		}
		k.shade(img, t)
		k.dev.trace.add(Event{
			Kind:   EventDispatch,
			Label:  k.spec.Name,
			Width:  img.width,
			Height: img.height,
		})
	})
	if err != nil {
		img.pending.Add(-1)
	}
	return err
}

func (k *invoker) shade(img *Image, t float64) {
	w, h := int(img.width), int(img.height)
	img.mu.Lock()
	defer img.mu.Unlock()
	pix := img.pix
	k.dev.pool.Bands(h, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			row := pix[y*w*4 : (y+1)*w*4]
			for x := range w {
				c := k.spec.Shade(x, y, w, h, t)
				row[x*4+0] = c.R
				row[x*4+1] = c.G
				row[x*4+2] = c.B
				row[x*4+3] = c.A
			}
		}
	})
}
