package swapchain

import (
	"errors"
	"testing"
	"time"

	"github.com/gogpu/framepipe/backend/simgpu"
	"github.com/gogpu/framepipe/device"
	"github.com/gogpu/framepipe/gpu"
)

type harness struct {
	dev    *simgpu.Device
	ctx    *device.Context
	window *simgpu.Window
	surf   *Surface
}

func newHarness(t *testing.T, opts simgpu.Options, w, h uint32) *harness {
	t.Helper()
	if opts.Trace == nil {
		opts.Trace = simgpu.NewTrace()
	}
	dev := simgpu.New(opts)
	ctx, err := device.New(dev, device.Options{})
	if err != nil {
		t.Fatalf("device.New: %v", err)
	}
	win := simgpu.NewWindow(w, h)
	surf, err := New(ctx, gpu.DefaultSwapchainDesc(win, w, h))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() {
		_, _ = ctx.Flush()
		surf.Release()
		_ = ctx.Close()
	})
	return &harness{dev: dev, ctx: ctx, window: win, surf: surf}
}

func assertSize(t *testing.T, s *Surface, w, h uint32) {
	t.Helper()
	if gw, gh := s.Size(); gw != w || gh != h {
		t.Errorf("Size() = %dx%d, want %dx%d", gw, gh, w, h)
	}
	if tg := s.Target(); tg.Width() != w || tg.Height() != h {
		t.Errorf("target = %dx%d, want %dx%d", tg.Width(), tg.Height(), w, h)
	}
	for i, b := range s.Buffers() {
		if b.Width() != w || b.Height() != h {
			t.Errorf("buffer %d = %dx%d, want %dx%d", i, b.Width(), b.Height(), w, h)
		}
	}
}

func TestNew(t *testing.T) {
	h := newHarness(t, simgpu.Options{}, 1280, 720)
	assertSize(t, h.surf, 1280, 720)
	if h.surf.Current() != 0 {
		t.Errorf("Current() = %d, want 0", h.surf.Current())
	}
	if s := h.surf.Target().(*simgpu.Image).State(); s != gpu.StateUnorderedAccess {
		t.Errorf("target state = %v, want UnorderedAccess", s)
	}
}

func TestNewRejectsTripleBuffering(t *testing.T) {
	dev := simgpu.New(simgpu.Options{})
	ctx, err := device.New(dev, device.Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer ctx.Close()

	desc := gpu.DefaultSwapchainDesc(nil, 64, 64)
	desc.BufferCount = 3
	_, err = New(ctx, desc)
	if gpu.ClassOf(err) != gpu.ClassInit {
		t.Errorf("New(3 buffers) = %v, want init-class error", err)
	}
}

func TestAdvanceFlips(t *testing.T) {
	h := newHarness(t, simgpu.Options{}, 64, 64)
	bufs := h.surf.Buffers()

	for i := range 6 {
		b, err := h.surf.Advance()
		if err != nil {
			t.Fatal(err)
		}
		if b != bufs[i%2] {
			t.Fatalf("Advance %d returned buffer %q, want %q", i, b.Label(), bufs[i%2].Label())
		}
		if h.surf.Current() != (i+1)%2 {
			t.Fatalf("Current() after %d advances = %d", i+1, h.surf.Current())
		}
	}
}

func TestResizeDimensionConsistency(t *testing.T) {
	h := newHarness(t, simgpu.Options{}, 1280, 720)

	if err := h.surf.Resize(800, 600); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	assertSize(t, h.surf, 800, 600)
	if h.surf.Resizes() != 1 {
		t.Errorf("Resizes() = %d, want 1", h.surf.Resizes())
	}
	if h.surf.Current() != h.surf.ChainIndex() {
		t.Errorf("Current() = %d, swapchain index %d", h.surf.Current(), h.surf.ChainIndex())
	}
}

func TestResizeAutoDetect(t *testing.T) {
	h := newHarness(t, simgpu.Options{}, 640, 480)
	h.window.SetSize(320, 200)
	if err := h.surf.Resize(0, 0); err != nil {
		t.Fatalf("Resize(0, 0): %v", err)
	}
	assertSize(t, h.surf, 320, 200)
}

func TestResizeDrainsBeforeDestroying(t *testing.T) {
	trace := simgpu.NewTrace()
	h := newHarness(t, simgpu.Options{Latency: 5 * time.Millisecond, Trace: trace}, 64, 64)

	// Queue a copy into the current buffer and leave it executing.
	list, err := h.ctx.Begin()
	if err != nil {
		t.Fatal(err)
	}
	back, _ := h.surf.Advance()
	pre := []gpu.Barrier{
		gpu.Transition(h.surf.Target(), gpu.StateUnorderedAccess, gpu.StateCopySource),
		gpu.Transition(back, gpu.StateCommon, gpu.StateCopyDest),
	}
	list.ResourceBarrier(pre...)
	list.CopyImage(back, h.surf.Target())
	list.ResourceBarrier(pre[0].Reverse(), pre[1].Reverse())
	if _, err := h.ctx.Execute(); err != nil {
		t.Fatal(err)
	}
	if err := h.surf.Present(); err != nil {
		t.Fatal(err)
	}

	if err := h.surf.Resize(32, 32); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	if err := h.dev.Err(); err != nil {
		t.Fatalf("device lost during resize: %v", err)
	}

	// Every generation-1 copy and present precedes the first release.
	events := trace.Events()
	released := false
	for _, e := range events {
		switch e.Kind {
		case simgpu.EventRelease:
			released = true
		case simgpu.EventCopy, simgpu.EventPresent:
			if released && e.Generation == 1 {
				t.Errorf("%v executed after buffers were released", e)
			}
		}
	}
	if !released {
		t.Error("no release event")
	}
}

func TestResizeFailureIsFatal(t *testing.T) {
	h := newHarness(t, simgpu.Options{MaxDimension: 1024}, 64, 64)

	err := h.surf.Resize(4096, 4096)
	if gpu.ClassOf(err) != gpu.ClassResize {
		t.Fatalf("Resize(4096) = %v, want resize-class error", err)
	}
	if !errors.Is(err, gpu.ErrInvalidSize) {
		t.Errorf("Resize(4096) = %v, want ErrInvalidSize", err)
	}
	if !h.surf.Broken() {
		t.Error("surface not broken after failed resize")
	}
	if h.surf.Target() != nil {
		t.Error("target kept after failed resize")
	}
	if _, err := h.surf.Advance(); !errors.Is(err, ErrBroken) {
		t.Errorf("Advance after failure = %v, want ErrBroken", err)
	}
	if err := h.surf.Resize(64, 64); !errors.Is(err, ErrBroken) {
		t.Errorf("Resize after failure = %v, want ErrBroken", err)
	}
}

func TestResizeOnLostDevice(t *testing.T) {
	h := newHarness(t, simgpu.Options{}, 64, 64)
	h.dev.Lose("removed")

	err := h.surf.Resize(32, 32)
	if gpu.ClassOf(err) != gpu.ClassResize || !errors.Is(err, gpu.ErrDeviceLost) {
		t.Errorf("Resize on lost device = %v, want resize-class ErrDeviceLost", err)
	}
}
