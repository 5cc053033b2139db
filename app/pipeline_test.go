package app

import (
	"errors"
	"image/color"
	"testing"
	"time"

	"github.com/gogpu/framepipe/backend/simgpu"
	"github.com/gogpu/framepipe/event"
	"github.com/gogpu/framepipe/gpu"
	"github.com/gogpu/framepipe/kernel"
)

var flat = kernel.Spec{
	Name: "flat",
	Shade: func(x, y, _, _ int, _ float64) color.RGBA {
		return color.RGBA{R: uint8(x), G: uint8(y), A: 255}
	},
}

func newPipeline(t *testing.T, opts simgpu.Options, w, h uint32) (*Pipeline, *simgpu.Device, *simgpu.Trace) {
	t.Helper()
	trace := simgpu.NewTrace()
	opts.Trace = trace
	dev := simgpu.New(opts)
	p, err := NewPipeline(dev, PipelineOptions{
		Width:   w,
		Height:  h,
		Window:  simgpu.NewWindow(w, h),
		Kernels: []kernel.Spec{flat, kernel.Gradient},
	})
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	return p, dev, trace
}

func TestEndToEnd(t *testing.T) {
	p, dev, trace := newPipeline(t, simgpu.Options{}, 1280, 720)
	clock := &fakeClock{t: time.Unix(0, 0)}
	ctx := New(p.Options(Options{
		Title:    "framepipe",
		Width:    1280,
		Height:   720,
		PauseKey: event.KeyP,
		Now:      clock.Now,
	}))

	startFence := p.Context.Fence().LastSignaled()
	startIndex := p.Surface.Current()
	for range 120 {
		clock.Advance(time.Second / 60)
		ctx.Tick()
	}
	if err := ctx.Err(); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if _, err := p.Context.Flush(); err != nil {
		t.Fatal(err)
	}

	if n := trace.Count(simgpu.EventCopy); n != 120 {
		t.Errorf("copies = %d, want 120", n)
	}
	if n := trace.Count(simgpu.EventPresent); n != 120 {
		t.Errorf("presents = %d, want 120", n)
	}
	// One signal per frame plus the flush above.
	if got := p.Context.Fence().LastSignaled() - startFence; got != 121 {
		t.Errorf("fence advanced by %d, want 120 frames + 1 flush", got)
	}
	if got, want := p.Surface.Current(), (startIndex+120)%2; got != want {
		t.Errorf("buffer index = %d, want %d", got, want)
	}

	ctx.HandleEvent(event.Event{Kind: event.EnterResize})
	ctx.HandleEvent(event.Resized(800, 600, false))
	ctx.HandleEvent(event.Event{Kind: event.ExitResize})

	resizes := trace.Filter(simgpu.EventResize)
	if len(resizes) != 1 || resizes[0].Width != 800 || resizes[0].Height != 600 {
		t.Fatalf("resizes = %v, want exactly one 800x600", resizes)
	}
	if p.Surface.Resizes() != 1 {
		t.Errorf("Surface.Resizes() = %d", p.Surface.Resizes())
	}
	for i, b := range p.Surface.Buffers() {
		if b.Width() != 800 || b.Height() != 600 {
			t.Errorf("buffer %d = %dx%d, want 800x600", i, b.Width(), b.Height())
		}
	}
	if tg := p.Surface.Target(); tg.Width() != 800 || tg.Height() != 600 {
		t.Errorf("target = %dx%d, want 800x600", tg.Width(), tg.Height())
	}

	ctx.Tick()
	if err := ctx.Err(); err != nil {
		t.Fatalf("tick after resize: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if dev.Live() != 0 {
		t.Errorf("Live() = %d after Close", dev.Live())
	}
}

func TestResizeNeverRacesInFlightWork(t *testing.T) {
	p, dev, trace := newPipeline(t, simgpu.Options{Latency: time.Millisecond}, 64, 48)
	ctx := New(p.Options(Options{Title: "t", Width: 64, Height: 48}))

	sizes := [][2]uint32{{32, 32}, {100, 20}, {64, 48}}
	for _, sz := range sizes {
		for range 5 {
			ctx.Tick()
		}
		ctx.HandleEvent(event.Resized(sz[0], sz[1], false))
	}
	for range 5 {
		ctx.Tick()
	}
	if err := ctx.Err(); err != nil {
		t.Fatal(err)
	}
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
	if err := dev.Err(); err != nil {
		t.Fatalf("device lost: %v", err)
	}

	// After generation g's buffers are released, no GPU work on generation
	// g may execute.
	retired := map[int]bool{}
	for _, e := range trace.Events() {
		switch e.Kind {
		case simgpu.EventRelease:
			if e.Generation > 0 {
				retired[e.Generation] = true
			}
		case simgpu.EventCopy, simgpu.EventPresent:
			if retired[e.Generation] {
				t.Fatalf("%v executed after its generation was released", e)
			}
		}
	}
	if len(retired) != 4 {
		t.Errorf("retired generations = %d, want 4", len(retired))
	}
}

func TestNewPipelineSelectsKernel(t *testing.T) {
	dev := simgpu.New(simgpu.Options{})
	p, err := NewPipeline(dev, PipelineOptions{Width: 8, Height: 8, Kernel: "gradient"})
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()
	if p.Kernels.Name() != "gradient" {
		t.Errorf("kernel = %q, want gradient", p.Kernels.Name())
	}
}

func TestNewPipelineFailures(t *testing.T) {
	dev := simgpu.New(simgpu.Options{})
	_, err := NewPipeline(dev, PipelineOptions{Width: 8, Height: 8, Kernel: "teapot"})
	if gpu.ClassOf(err) != gpu.ClassInit || !errors.Is(err, kernel.ErrUnknownKernel) {
		t.Errorf("unknown kernel: %v", err)
	}
	if dev.Live() != 0 {
		t.Errorf("Live() = %d after failed NewPipeline", dev.Live())
	}

	dev = simgpu.New(simgpu.Options{})
	dev.FailNext(simgpu.OpCreateSwapchain, gpu.ErrDeviceLost)
	if _, err := NewPipeline(dev, PipelineOptions{Width: 8, Height: 8}); gpu.ClassOf(err) != gpu.ClassInit {
		t.Errorf("swapchain failure: %v", err)
	}
	if dev.Live() != 0 {
		t.Errorf("Live() = %d after failed NewPipeline", dev.Live())
	}
}

func TestPipelineSnapshot(t *testing.T) {
	p, _, _ := newPipeline(t, simgpu.Options{}, 16, 8)
	defer p.Close()
	if err := p.Compositor.RenderFrame(0); err != nil {
		t.Fatal(err)
	}
	taker := p.Snapshots(t.TempDir(), "png")
	path, err := taker.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if path == "" {
		t.Error("empty snapshot path")
	}
}
