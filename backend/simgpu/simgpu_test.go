package simgpu

import (
	"errors"
	"testing"
	"time"

	"github.com/gogpu/framepipe/gpu"
	"github.com/gogpu/framepipe/kernel"
)

type fixture struct {
	dev   *Device
	queue gpu.Queue
	alloc gpu.CommandAllocator
	list  gpu.CommandList
	fence gpu.Fence
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	if opts.Trace == nil {
		opts.Trace = NewTrace()
	}
	d := New(opts)
	t.Cleanup(d.Destroy)

	q, err := d.CreateQueue()
	if err != nil {
		t.Fatalf("CreateQueue: %v", err)
	}
	t.Cleanup(q.Release)
	a, err := d.CreateCommandAllocator()
	if err != nil {
		t.Fatalf("CreateCommandAllocator: %v", err)
	}
	t.Cleanup(a.Release)
	l, err := d.CreateCommandList(a)
	if err != nil {
		t.Fatalf("CreateCommandList: %v", err)
	}
	t.Cleanup(l.Release)
	f, err := d.CreateFence(0)
	if err != nil {
		t.Fatalf("CreateFence: %v", err)
	}
	t.Cleanup(f.Release)
	return &fixture{dev: d, queue: q, alloc: a, list: l, fence: f}
}

func (fx *fixture) image(t *testing.T, label string, w, h uint32, s gpu.ResourceState) gpu.Image {
	t.Helper()
	img, err := fx.dev.CreateImage(gpu.ImageDesc{Label: label, Width: w, Height: h, InitialState: s})
	if err != nil {
		t.Fatalf("CreateImage(%s): %v", label, err)
	}
	return img
}

// drain signals v and waits for it.
func (fx *fixture) drain(t *testing.T, v uint64) {
	t.Helper()
	if err := fx.queue.Signal(fx.fence, v); err != nil {
		t.Fatalf("Signal(%d): %v", v, err)
	}
	if err := fx.fence.Wait(v, time.Second); err != nil {
		t.Fatalf("Wait(%d): %v", v, err)
	}
}

func TestFenceSignalAndWait(t *testing.T) {
	fx := newFixture(t, Options{Latency: 2 * time.Millisecond})

	for v := uint64(1); v <= 3; v++ {
		fx.drain(t, v)
		if got := fx.fence.Completed(); got != v {
			t.Errorf("Completed() = %d, want %d", got, v)
		}
	}
	if n := fx.dev.Trace().Count(EventComplete); n != 3 {
		t.Errorf("complete events = %d, want 3", n)
	}
}

func TestFenceWaitTimeout(t *testing.T) {
	fx := newFixture(t, Options{})
	err := fx.fence.Wait(1, 10*time.Millisecond)
	if !errors.Is(err, gpu.ErrTimeout) {
		t.Fatalf("Wait on unsignaled value = %v, want ErrTimeout", err)
	}
}

func TestFenceWaitAlreadyReached(t *testing.T) {
	d := New(Options{Trace: NewTrace()})
	defer d.Destroy()
	f, _ := d.CreateFence(5)
	defer f.Release()
	if err := f.Wait(5, time.Millisecond); err != nil {
		t.Fatalf("Wait(5) on fence at 5: %v", err)
	}
	if d.Trace().Count(EventWait) != 0 {
		t.Error("reached wait was traced as blocking")
	}
}

func TestAllocatorResetRules(t *testing.T) {
	fx := newFixture(t, Options{Latency: 20 * time.Millisecond})

	if err := fx.list.Reset(fx.alloc); err != nil {
		t.Fatalf("list Reset: %v", err)
	}
	if err := fx.alloc.Reset(); !errors.Is(err, gpu.ErrListOpen) {
		t.Errorf("allocator Reset with open list = %v, want ErrListOpen", err)
	}
	if err := fx.list.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := fx.queue.Submit(fx.list); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := fx.alloc.Reset(); !errors.Is(err, gpu.ErrInFlight) {
		t.Errorf("allocator Reset in flight = %v, want ErrInFlight", err)
	}
	fx.drain(t, 1)
	if err := fx.alloc.Reset(); err != nil {
		t.Errorf("allocator Reset after drain: %v", err)
	}
}

func TestListStateRules(t *testing.T) {
	fx := newFixture(t, Options{})

	// Created closed.
	if err := fx.list.Close(); !errors.Is(err, gpu.ErrListClosed) {
		t.Errorf("Close on new list = %v, want ErrListClosed", err)
	}
	if err := fx.list.Reset(fx.alloc); err != nil {
		t.Fatal(err)
	}
	if err := fx.list.Reset(fx.alloc); !errors.Is(err, gpu.ErrListOpen) {
		t.Errorf("double Reset = %v, want ErrListOpen", err)
	}
	if err := fx.queue.Submit(fx.list); !errors.Is(err, gpu.ErrListOpen) {
		t.Errorf("Submit open list = %v, want ErrListOpen", err)
	}
	if err := fx.list.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestBarrierStateMismatch(t *testing.T) {
	fx := newFixture(t, Options{})
	img := fx.image(t, "img", 4, 4, gpu.StateCommon)
	defer img.Release()

	if err := fx.list.Reset(fx.alloc); err != nil {
		t.Fatal(err)
	}
	fx.list.ResourceBarrier(gpu.Transition(img, gpu.StateUnorderedAccess, gpu.StateCopySource))
	if err := fx.list.Close(); !errors.Is(err, gpu.ErrStateMismatch) {
		t.Fatalf("Close = %v, want ErrStateMismatch", err)
	}
	if err := fx.queue.Submit(fx.list); err == nil {
		t.Error("Submit of a list that failed recording succeeded")
	}
}

func TestCopyMovesPixels(t *testing.T) {
	fx := newFixture(t, Options{Latency: 20 * time.Millisecond})
	src := fx.image(t, "src", 8, 4, gpu.StateUnorderedAccess)
	defer src.Release()
	dst := fx.image(t, "dst", 8, 4, gpu.StateCommon)
	defer dst.Release()

	inv, err := fx.dev.Compile(kernel.Gradient)
	if err != nil {
		t.Fatal(err)
	}
	if err := inv.Render(0, src); err != nil {
		t.Fatalf("Render: %v", err)
	}

	pre := []gpu.Barrier{
		gpu.Transition(src, gpu.StateUnorderedAccess, gpu.StateCopySource),
		gpu.Transition(dst, gpu.StateCommon, gpu.StateCopyDest),
	}
	if err := fx.list.Reset(fx.alloc); err != nil {
		t.Fatal(err)
	}
	fx.list.ResourceBarrier(pre...)
	fx.list.CopyImage(dst, src)
	fx.list.ResourceBarrier(pre[0].Reverse(), pre[1].Reverse())
	if err := fx.list.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := fx.queue.Submit(fx.list); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if _, err := fx.dev.ReadImage(dst); !errors.Is(err, gpu.ErrInFlight) {
		t.Errorf("ReadImage in flight = %v, want ErrInFlight", err)
	}
	fx.drain(t, 1)

	got, err := fx.dev.ReadImage(dst)
	if err != nil {
		t.Fatalf("ReadImage: %v", err)
	}
	want := kernel.Gradient.Shade(7, 3, 8, 4, 0)
	if c := got.RGBAAt(7, 3); c != want {
		t.Errorf("dst(7,3) = %v, want %v", c, want)
	}
	if s := dst.(*Image).State(); s != gpu.StateCommon {
		t.Errorf("dst state = %v, want Common", s)
	}
	if n := fx.dev.Trace().Count(EventCopy); n != 1 {
		t.Errorf("copy events = %d, want 1", n)
	}
}

func TestCopyValidation(t *testing.T) {
	fx := newFixture(t, Options{})
	a := fx.image(t, "a", 8, 8, gpu.StateCopySource)
	defer a.Release()
	b := fx.image(t, "b", 4, 4, gpu.StateCopyDest)
	defer b.Release()

	if err := fx.list.Reset(fx.alloc); err != nil {
		t.Fatal(err)
	}
	fx.list.CopyImage(b, a)
	if err := fx.list.Close(); !errors.Is(err, gpu.ErrInvalidSize) {
		t.Errorf("size mismatch Close = %v, want ErrInvalidSize", err)
	}
}

func TestReleaseWhileInFlightLosesDevice(t *testing.T) {
	fx := newFixture(t, Options{Latency: 20 * time.Millisecond})
	src := fx.image(t, "src", 4, 4, gpu.StateCopySource)
	dst := fx.image(t, "dst", 4, 4, gpu.StateCopyDest)
	defer src.Release()

	if err := fx.list.Reset(fx.alloc); err != nil {
		t.Fatal(err)
	}
	fx.list.CopyImage(dst, src)
	if err := fx.list.Close(); err != nil {
		t.Fatal(err)
	}
	if err := fx.queue.Submit(fx.list); err != nil {
		t.Fatal(err)
	}
	dst.Release()

	if err := fx.fence.Wait(1, time.Second); err == nil {
		t.Fatal("Wait succeeded on a lost device")
	}
	if !errors.Is(fx.dev.Err(), gpu.ErrDeviceLost) {
		t.Errorf("device Err = %v, want ErrDeviceLost", fx.dev.Err())
	}
	if fx.dev.Trace().Count(EventFault) != 1 {
		t.Error("missing fault event")
	}
	if err := fx.queue.Signal(fx.fence, 1); !errors.Is(err, gpu.ErrDeviceLost) {
		t.Errorf("Signal after loss = %v, want ErrDeviceLost", err)
	}
}

func TestLoseWakesWaiters(t *testing.T) {
	fx := newFixture(t, Options{})
	done := make(chan error, 1)
	go func() { done <- fx.fence.Wait(1, 5*time.Second) }()

	time.Sleep(5 * time.Millisecond)
	fx.dev.Lose("test removal")

	select {
	case err := <-done:
		if !errors.Is(err, gpu.ErrDeviceLost) {
			t.Errorf("Wait = %v, want ErrDeviceLost", err)
		}
	case <-time.After(time.Second):
		t.Fatal("waiter not woken by device loss")
	}
}

func TestFailNext(t *testing.T) {
	d := New(Options{})
	defer d.Destroy()
	boom := errors.New("boom")

	d.FailNext(OpCreateFence, boom)
	if _, err := d.CreateFence(0); !errors.Is(err, boom) {
		t.Errorf("CreateFence = %v, want injected error", err)
	}
	f, err := d.CreateFence(0)
	if err != nil {
		t.Fatalf("second CreateFence: %v", err)
	}
	f.Release()
}

func TestCreateImageInvalidSize(t *testing.T) {
	d := New(Options{MaxDimension: 64})
	defer d.Destroy()
	for _, sz := range [][2]uint32{{0, 1}, {1, 0}, {65, 1}, {1, 65}} {
		if _, err := d.CreateImage(gpu.ImageDesc{Width: sz[0], Height: sz[1]}); !errors.Is(err, gpu.ErrInvalidSize) {
			t.Errorf("CreateImage(%v) = %v, want ErrInvalidSize", sz, err)
		}
	}
}

func TestLiveObjects(t *testing.T) {
	d := New(Options{})
	defer d.Destroy()

	q, _ := d.CreateQueue()
	a, _ := d.CreateCommandAllocator()
	l, _ := d.CreateCommandList(a)
	f, _ := d.CreateFence(0)
	img, _ := d.CreateImage(gpu.ImageDesc{Width: 1, Height: 1})
	sc, _ := d.CreateSwapchain(q, gpu.DefaultSwapchainDesc(nil, 2, 2))
	if d.Live() != 6 {
		t.Fatalf("Live() = %d, want 6", d.Live())
	}
	for _, r := range []interface{ Release() }{sc, img, f, l, a, q} {
		r.Release()
		r.Release()
	}
	if d.Live() != 0 {
		t.Errorf("Live() after release = %d, want 0", d.Live())
	}
}

func TestEventString(t *testing.T) {
	tests := []struct {
		e    Event
		want string
	}{
		{Event{Kind: EventSignal, Value: 3}, "signal 3"},
		{Event{Kind: EventPresent, Index: 1, Generation: 2}, "present 1 gen 2"},
		{Event{Kind: EventResize, Width: 800, Height: 600, Generation: 2}, "resize 800x600 gen 2"},
		{Event{Kind: EventCopy, Label: "x"}, "copy x"},
	}
	for _, tt := range tests {
		if got := tt.e.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
