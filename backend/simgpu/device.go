package simgpu

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/framepipe"
	"github.com/gogpu/framepipe/gpu"
	"github.com/gogpu/framepipe/internal/parallel"
)

// DefaultMaxDimension is the largest image edge accepted by default.
const DefaultMaxDimension = 16384

// Op names a device operation that can be made to fail with FailNext.
type Op string

// Operations accepted by FailNext.
const (
	OpCreateQueue     Op = "create queue"
	OpCreateAllocator Op = "create allocator"
	OpCreateList      Op = "create list"
	OpCreateFence     Op = "create fence"
	OpCreateImage     Op = "create image"
	OpCreateSwapchain Op = "create swapchain"
	OpSubmit          Op = "submit"
	OpDispatch        Op = "dispatch"
	OpSignal          Op = "signal"
	OpResize          Op = "resize"
	OpPresent         Op = "present"
)

// Options configures a simulated device.
type Options struct {
	// Latency delays the execution of every submission on the GPU
	// timeline. It makes the CPU run ahead of the GPU.
	Latency time.Duration

	// Workers is the number of goroutines shading kernels.
	// Zero means GOMAXPROCS.
	Workers int

	// MaxDimension is the largest accepted image edge.
	// Zero means DefaultMaxDimension.
	MaxDimension uint32

	// Trace, if set, receives every observable action.
	Trace *Trace
}

// Device is a simulated GPU device.
type Device struct {
	opts  Options
	trace *Trace
	pool  *parallel.Pool

	mu       sync.Mutex
	lost     error
	inject   map[Op]error
	fences   []*Fence
	queue    *Queue // first queue; kernels dispatch on it
	live     atomic.Int64
	imageSeq int
}

// New creates a simulated device.
func New(opts Options) *Device {
	if opts.MaxDimension == 0 {
		opts.MaxDimension = DefaultMaxDimension
	}
	return &Device{
		opts:   opts,
		trace:  opts.Trace,
		pool:   parallel.NewPool(opts.Workers),
		inject: make(map[Op]error),
	}
}

var _ gpu.Device = (*Device)(nil)
var _ gpu.Reader = (*Device)(nil)

// Trace returns the device's trace, or nil.
func (d *Device) Trace() *Trace {
	return d.trace
}

// Live returns the number of created objects that have not been released.
func (d *Device) Live() int {
	return int(d.live.Load())
}

// FailNext makes the next call of op fail with err.
func (d *Device) FailNext(op Op, err error) {
	d.mu.Lock()
	d.inject[op] = err
	d.mu.Unlock()
}

// Lose puts the device in the lost state, waking every fence waiter.
func (d *Device) Lose(reason string) {
	d.fault(errors.New(reason))
}

// Err returns the reason the device was lost, or nil.
func (d *Device) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lost
}

// check returns the lost error or a pending injected failure for op.
func (d *Device) check(op Op) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lost != nil {
		return d.lost
	}
	if err, ok := d.inject[op]; ok {
		delete(d.inject, op)
		return err
	}
	return nil
}

func (d *Device) fault(cause error) {
	d.mu.Lock()
	if d.lost != nil {
		d.mu.Unlock()
		return
	}
	d.lost = fmt.Errorf("%w: %v", gpu.ErrDeviceLost, cause)
	fences := append([]*Fence(nil), d.fences...)
	d.mu.Unlock()

	d.trace.add(Event{Kind: EventFault, Label: cause.Error()})
	framepipe.Logger().Error("simgpu: device lost", "cause", cause)
	for _, f := range fences {
		f.wake()
	}
}

func (d *Device) validSize(w, h uint32) error {
	if w == 0 || h == 0 || w > d.opts.MaxDimension || h > d.opts.MaxDimension {
		return fmt.Errorf("%dx%d (max %d): %w", w, h, d.opts.MaxDimension, gpu.ErrInvalidSize)
	}
	return nil
}

// CreateQueue creates a queue with its own GPU timeline goroutine.
func (d *Device) CreateQueue() (gpu.Queue, error) {
	if err := d.check(OpCreateQueue); err != nil {
		return nil, err
	}
	q := newQueue(d)
	d.mu.Lock()
	if d.queue == nil {
		d.queue = q
	}
	d.mu.Unlock()
	d.live.Add(1)
	return q, nil
}

// CreateCommandAllocator creates a command allocator.
func (d *Device) CreateCommandAllocator() (gpu.CommandAllocator, error) {
	if err := d.check(OpCreateAllocator); err != nil {
		return nil, err
	}
	d.live.Add(1)
	return &Allocator{dev: d}, nil
}

// CreateCommandList creates a closed command list bound to alloc.
func (d *Device) CreateCommandList(alloc gpu.CommandAllocator) (gpu.CommandList, error) {
	if err := d.check(OpCreateList); err != nil {
		return nil, err
	}
	a, err := d.allocator(alloc)
	if err != nil {
		return nil, err
	}
	d.live.Add(1)
	return &List{dev: d, alloc: a}, nil
}

// CreateFence creates a fence starting at initial.
func (d *Device) CreateFence(initial uint64) (gpu.Fence, error) {
	if err := d.check(OpCreateFence); err != nil {
		return nil, err
	}
	f := newFence(d, initial)
	d.mu.Lock()
	d.fences = append(d.fences, f)
	d.mu.Unlock()
	d.live.Add(1)
	return f, nil
}

// CreateImage creates an image with zeroed pixels.
func (d *Device) CreateImage(desc gpu.ImageDesc) (gpu.Image, error) {
	if err := d.check(OpCreateImage); err != nil {
		return nil, err
	}
	if err := d.validSize(desc.Width, desc.Height); err != nil {
		return nil, err
	}
	if desc.Format == 0 {
		desc.Format = gpu.DefaultFormat
	}
	if desc.Label == "" {
		d.mu.Lock()
		d.imageSeq++
		desc.Label = fmt.Sprintf("image#%d", d.imageSeq)
		d.mu.Unlock()
	}
	d.live.Add(1)
	return newImage(d, desc, nil, 0), nil
}

// CreateSwapchain creates a swapchain presenting through queue.
func (d *Device) CreateSwapchain(queue gpu.Queue, desc gpu.SwapchainDesc) (gpu.Swapchain, error) {
	if err := d.check(OpCreateSwapchain); err != nil {
		return nil, err
	}
	q, ok := queue.(*Queue)
	if !ok || q.dev != d {
		return nil, fmt.Errorf("simgpu: queue %T does not belong to this device", queue)
	}
	if desc.BufferCount < 2 {
		return nil, fmt.Errorf("simgpu: buffer count %d, need at least 2", desc.BufferCount)
	}
	if desc.SampleCount > 1 {
		return nil, fmt.Errorf("simgpu: multisampled swapchain (%d samples) is not presentable", desc.SampleCount)
	}
	if desc.Format == 0 {
		desc.Format = gpu.DefaultFormat
	}
	sc := &Swapchain{dev: d, queue: q, desc: desc}
	if err := sc.allocate(desc.Width, desc.Height); err != nil {
		return nil, err
	}
	d.live.Add(1)
	return sc, nil
}

// Destroy stops the shading workers. Objects still alive are reported.
func (d *Device) Destroy() {
	if n := d.Live(); n > 0 {
		framepipe.Logger().Warn("simgpu: device destroyed with live objects", "count", n)
	}
	d.pool.Close()
}

func (d *Device) allocator(a gpu.CommandAllocator) (*Allocator, error) {
	sa, ok := a.(*Allocator)
	if !ok || sa.dev != d {
		return nil, fmt.Errorf("simgpu: allocator %T does not belong to this device", a)
	}
	return sa, nil
}

func (d *Device) image(img gpu.Image) (*Image, error) {
	si, ok := img.(*Image)
	if !ok || si.dev != d {
		return nil, fmt.Errorf("simgpu: image %T does not belong to this device", img)
	}
	return si, nil
}

func (d *Device) defaultQueue() *Queue {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.queue
}
