package compositor

import (
	"errors"
	"testing"
	"time"

	"github.com/gogpu/framepipe/backend/simgpu"
	"github.com/gogpu/framepipe/device"
	"github.com/gogpu/framepipe/gpu"
	"github.com/gogpu/framepipe/kernel"
	"github.com/gogpu/framepipe/swapchain"
)

type rig struct {
	dev  *simgpu.Device
	ctx  *device.Context
	surf *swapchain.Surface
	comp *Compositor
}

func newRig(t *testing.T, opts simgpu.Options, spec kernel.Spec) *rig {
	t.Helper()
	if opts.Trace == nil {
		opts.Trace = simgpu.NewTrace()
	}
	dev := simgpu.New(opts)
	ctx, err := device.New(dev, device.Options{})
	if err != nil {
		t.Fatal(err)
	}
	surf, err := swapchain.New(ctx, gpu.DefaultSwapchainDesc(nil, 64, 48))
	if err != nil {
		t.Fatal(err)
	}
	inv, err := dev.Compile(spec)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		_, _ = ctx.Flush()
		surf.Release()
		_ = ctx.Close()
	})
	return &rig{dev: dev, ctx: ctx, surf: surf, comp: New(ctx, surf, inv)}
}

func TestFenceAdvancesByOnePerFrame(t *testing.T) {
	r := newRig(t, simgpu.Options{}, kernel.Gradient)

	prev := r.ctx.Fence().LastSignaled()
	for i := range 10 {
		if err := r.comp.RenderFrame(time.Duration(i) * time.Millisecond); err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		got := r.ctx.Fence().LastSignaled()
		if got != prev+1 {
			t.Fatalf("frame %d: fence %d, want %d", i, got, prev+1)
		}
		prev = got
	}
	if r.comp.Frames() != 10 {
		t.Errorf("Frames() = %d, want 10", r.comp.Frames())
	}
}

func TestBufferIndexAlternates(t *testing.T) {
	r := newRig(t, simgpu.Options{}, kernel.Gradient)
	initial := r.surf.Current()

	for i := 1; i <= 7; i++ {
		if err := r.comp.RenderFrame(0); err != nil {
			t.Fatal(err)
		}
		if got, want := r.surf.Current(), (initial+i)%2; got != want {
			t.Fatalf("after frame %d: index %d, want %d", i, got, want)
		}
		if r.surf.Current() != r.surf.ChainIndex() {
			t.Fatalf("after frame %d: surface index %d, swapchain index %d", i, r.surf.Current(), r.surf.ChainIndex())
		}
	}
}

func TestFrameSequence(t *testing.T) {
	trace := simgpu.NewTrace()
	r := newRig(t, simgpu.Options{Trace: trace}, kernel.Gradient)

	if err := r.comp.RenderFrame(0); err != nil {
		t.Fatal(err)
	}
	if _, err := r.ctx.Flush(); err != nil {
		t.Fatal(err)
	}

	var kinds []simgpu.EventKind
	for _, e := range trace.Events() {
		switch e.Kind {
		case simgpu.EventDispatch, simgpu.EventCopy, simgpu.EventPresent:
			kinds = append(kinds, e.Kind)
		}
	}
	want := []simgpu.EventKind{simgpu.EventDispatch, simgpu.EventCopy, simgpu.EventPresent}
	if len(kinds) != len(want) {
		t.Fatalf("GPU events = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("GPU events = %v, want %v", kinds, want)
		}
	}
}

func TestPresentedBufferHoldsKernelOutput(t *testing.T) {
	r := newRig(t, simgpu.Options{}, kernel.Plasma)

	back := r.surf.Buffers()[r.surf.Current()]
	if err := r.comp.RenderFrame(1500 * time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if _, err := r.ctx.Flush(); err != nil {
		t.Fatal(err)
	}
	img, err := r.dev.ReadImage(back)
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range [][2]int{{0, 0}, {31, 20}, {63, 47}} {
		want := kernel.Plasma.Shade(p[0], p[1], 64, 48, 1.5)
		if got := img.RGBAAt(p[0], p[1]); got != want {
			t.Errorf("pixel %v = %v, want %v", p, got, want)
		}
	}
	for i, b := range r.surf.Buffers() {
		if s := b.(*simgpu.Image).State(); s != gpu.StateCommon {
			t.Errorf("buffer %d state = %v, want Common", i, s)
		}
	}
	if s := r.surf.Target().(*simgpu.Image).State(); s != gpu.StateUnorderedAccess {
		t.Errorf("target state = %v, want UnorderedAccess", s)
	}
}

func TestBackpressure(t *testing.T) {
	r := newRig(t, simgpu.Options{Latency: 3 * time.Millisecond}, kernel.Gradient)
	for range 5 {
		if err := r.comp.RenderFrame(0); err != nil {
			t.Fatal(err)
		}
		// The CPU never runs more than one frame ahead.
		if r.ctx.Fence().Completed() != r.ctx.Fence().LastSignaled() {
			t.Fatalf("returned with fence %d completed, %d signaled",
				r.ctx.Fence().Completed(), r.ctx.Fence().LastSignaled())
		}
	}
	if r.comp.Stalls() == 0 {
		t.Error("no frame stalled despite GPU latency")
	}
}

func TestFrameFailureClassified(t *testing.T) {
	r := newRig(t, simgpu.Options{}, kernel.Gradient)
	if err := r.comp.RenderFrame(0); err != nil {
		t.Fatal(err)
	}

	r.dev.FailNext(simgpu.OpSubmit, gpu.ErrDeviceLost)
	err := r.comp.RenderFrame(0)
	var ge *gpu.Error
	if !errors.As(err, &ge) {
		t.Fatalf("RenderFrame = %v, want *gpu.Error", err)
	}
	if ge.Class != gpu.ClassFrame || ge.Frame != 2 || ge.Fence != 1 {
		t.Errorf("error = %+v, want class frame, frame 2, fence 1", ge)
	}
	if !errors.Is(err, gpu.ErrDeviceLost) {
		t.Errorf("RenderFrame = %v, want ErrDeviceLost", err)
	}
}

func TestKernelFailure(t *testing.T) {
	r := newRig(t, simgpu.Options{}, kernel.Gradient)
	boom := errors.New("kernel exploded")
	r.comp.SetKernel(kernel.Func(func(time.Duration, gpu.Image) error { return boom }))

	err := r.comp.RenderFrame(0)
	if gpu.ClassOf(err) != gpu.ClassFrame || !errors.Is(err, boom) {
		t.Errorf("RenderFrame = %v, want frame-class kernel error", err)
	}
	if r.ctx.Fence().LastSignaled() != 0 {
		t.Error("failed frame signaled the fence")
	}
	if r.comp.Frames() != 0 {
		t.Error("failed frame counted")
	}
}
