// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package halgpu

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/gogpu/framepipe"
	"github.com/gogpu/framepipe/gpu"
)

const (
	// DefaultPipelineCacheSize is the number of compiled kernels kept.
	DefaultPipelineCacheSize = 16

	// DefaultDrainTimeout bounds the wait for outstanding work on Destroy.
	DefaultDrainTimeout = 5 * time.Second

	// MaxDimension is the largest image edge accepted.
	MaxDimension = 16384
)

var (
	// ErrNoBackend is returned by Open when no HAL backend is compiled in
	// or none of them exposes an adapter.
	ErrNoBackend = errors.New("halgpu: no usable backend")

	// ErrForeignObject is returned when an object created by another
	// device implementation is passed in.
	ErrForeignObject = errors.New("halgpu: object does not belong to this device")
)

// Options configures a device.
type Options struct {
	// Backends are tried in order by Open. Empty means Vulkan, Metal, DX12.
	Backends []gputypes.Backend

	// PipelineCacheSize bounds the kernel pipeline cache.
	// Zero means DefaultPipelineCacheSize.
	PipelineCacheSize int

	// DrainTimeout bounds the final wait in Destroy.
	// Zero means DefaultDrainTimeout.
	DrainTimeout time.Duration
}

func (o *Options) setDefaults() {
	if len(o.Backends) == 0 {
		o.Backends = []gputypes.Backend{gputypes.BackendVulkan, gputypes.BackendMetal, gputypes.BackendDX12}
	}
	if o.PipelineCacheSize <= 0 {
		o.PipelineCacheSize = DefaultPipelineCacheSize
	}
	if o.DrainTimeout <= 0 {
		o.DrainTimeout = DefaultDrainTimeout
	}
}

// Device is a gpu.Device backed by a HAL device.
type Device struct {
	opts     Options
	instance hal.Instance // nil for shared devices
	dev      hal.Device
	queue    hal.Queue
	owned    bool
	adapter  string

	mu        sync.Mutex
	queues    []*Queue
	invokers  []*invoker
	pipelines *lru.Cache[pipelineKey, *pipeline]
	closing   bool
	destroyed bool

	live atomic.Int64
}

var _ gpu.Device = (*Device)(nil)

// Open creates a standalone device on the first backend in opts.Backends
// that has an adapter.
func Open(opts Options) (*Device, error) {
	opts.setDefaults()
	var errs []error
	for _, b := range opts.Backends {
		backend, ok := hal.GetBackend(b)
		if !ok {
			continue
		}
		instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
		if err != nil {
			errs = append(errs, fmt.Errorf("create instance: %w", err))
			continue
		}
		d, err := OpenInstance(instance, opts)
		if err != nil {
			instance.Destroy()
			errs = append(errs, err)
			continue
		}
		return d, nil
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrNoBackend, errors.Join(errs...))
	}
	return nil, ErrNoBackend
}

// OpenInstance opens a device on the best adapter of instance. The device
// takes ownership of the instance and destroys it in Destroy.
func OpenInstance(instance hal.Instance, opts Options) (*Device, error) {
	opts.setDefaults()
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		return nil, fmt.Errorf("%w: no adapters found", ErrNoBackend)
	}

	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		return nil, fmt.Errorf("open device: %w", err)
	}
	d, err := newDevice(openDev.Device, openDev.Queue, opts)
	if err != nil {
		openDev.Device.Destroy()
		return nil, err
	}
	d.instance = instance
	d.owned = true
	d.adapter = selected.Info.Name
	framepipe.Logger().Info("halgpu: device opened", "adapter", d.adapter)
	return d, nil
}

// FromProvider wraps the HAL device of a host application. The provider
// must implement HalDevice() any and HalQueue() any returning hal.Device
// and hal.Queue. Destroy does not destroy a shared device.
func FromProvider(provider gpucontext.DeviceProvider, opts Options) (*Device, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, errors.New("halgpu: provider does not expose HAL types")
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, errors.New("halgpu: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, errors.New("halgpu: provider HalQueue is not hal.Queue")
	}
	opts.setDefaults()
	d, err := newDevice(device, queue, opts)
	if err != nil {
		return nil, err
	}
	framepipe.Logger().Debug("halgpu: using shared device")
	return d, nil
}

func newDevice(dev hal.Device, queue hal.Queue, opts Options) (*Device, error) {
	d := &Device{opts: opts, dev: dev, queue: queue}
	cache, err := lru.NewWithEvict[pipelineKey, *pipeline](opts.PipelineCacheSize, d.evictPipeline)
	if err != nil {
		return nil, fmt.Errorf("halgpu: pipeline cache: %w", err)
	}
	d.pipelines = cache
	return d, nil
}

// HAL returns the underlying HAL device and queue.
func (d *Device) HAL() (hal.Device, hal.Queue) { return d.dev, d.queue }

// AdapterName returns the name of the opened adapter, empty for shared
// devices.
func (d *Device) AdapterName() string { return d.adapter }

// Live returns the number of objects created and not yet released.
func (d *Device) Live() int64 { return d.live.Load() }

func (d *Device) validSize(w, h uint32) error {
	if w == 0 || h == 0 || w > MaxDimension || h > MaxDimension {
		return fmt.Errorf("halgpu: size %dx%d: %w", w, h, gpu.ErrInvalidSize)
	}
	return nil
}

// CreateQueue returns a queue on the device's single HAL queue. The first
// queue created also carries kernel dispatches.
func (d *Device) CreateQueue() (gpu.Queue, error) {
	fence, err := d.dev.CreateFence()
	if err != nil {
		return nil, fmt.Errorf("halgpu: create retire fence: %w", err)
	}
	q := &Queue{dev: d, retire: fence}
	d.mu.Lock()
	d.queues = append(d.queues, q)
	d.mu.Unlock()
	d.live.Add(1)
	return q, nil
}

func (d *Device) defaultQueue() *Queue {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, q := range d.queues {
		if !q.isReleased() {
			return q
		}
	}
	return nil
}

// CreateCommandAllocator creates an allocator.
func (d *Device) CreateCommandAllocator() (gpu.CommandAllocator, error) {
	d.live.Add(1)
	return &Allocator{dev: d}, nil
}

// CreateCommandList creates a closed list bound to alloc.
func (d *Device) CreateCommandList(alloc gpu.CommandAllocator) (gpu.CommandList, error) {
	a, ok := alloc.(*Allocator)
	if !ok || a.dev != d {
		return nil, ErrForeignObject
	}
	d.live.Add(1)
	return &List{dev: d, label: "framepipe-list", alloc: a}, nil
}

// CreateFence creates a timeline fence. A non-zero initial value is
// signaled immediately on the device queue.
func (d *Device) CreateFence(initial uint64) (gpu.Fence, error) {
	hf, err := d.dev.CreateFence()
	if err != nil {
		return nil, fmt.Errorf("halgpu: create fence: %w", err)
	}
	f := &Fence{dev: d, fence: hf}
	if initial > 0 {
		if err := d.queue.Submit(nil, hf, initial); err != nil {
			d.dev.DestroyFence(hf)
			return nil, fmt.Errorf("halgpu: signal initial fence value: %w", err)
		}
		f.signaled = initial
	}
	d.live.Add(1)
	return f, nil
}

// CreateImage creates a 2D single-sample texture.
func (d *Device) CreateImage(desc gpu.ImageDesc) (gpu.Image, error) {
	if err := d.validSize(desc.Width, desc.Height); err != nil {
		return nil, err
	}
	format := desc.Format
	if format == gputypes.TextureFormatUndefined {
		format = gpu.DefaultFormat
	}
	tex, err := d.dev.CreateTexture(&hal.TextureDescriptor{
		Label:         desc.Label,
		Size:          hal.Extent3D{Width: desc.Width, Height: desc.Height, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        format,
		Usage:         desc.Usage,
	})
	if err != nil {
		return nil, fmt.Errorf("halgpu: create texture %q: %w", desc.Label, err)
	}
	d.live.Add(1)
	return &Image{
		dev:    d,
		label:  desc.Label,
		width:  desc.Width,
		height: desc.Height,
		format: format,
		tex:    tex,
		state:  desc.InitialState,
	}, nil
}

// CreateSwapchain creates a double-buffered swapchain presenting to
// desc.Window. The window must implement PresenterWindow or NativeWindow.
func (d *Device) CreateSwapchain(queue gpu.Queue, desc gpu.SwapchainDesc) (gpu.Swapchain, error) {
	q, ok := queue.(*Queue)
	if !ok || q.dev != d {
		return nil, ErrForeignObject
	}
	if desc.BufferCount != gpu.BufferCount {
		return nil, fmt.Errorf("halgpu: %d swapchain buffers requested, only %d supported", desc.BufferCount, gpu.BufferCount)
	}
	if desc.SampleCount > 1 {
		return nil, fmt.Errorf("halgpu: multisampled swapchain (%d samples) is not supported", desc.SampleCount)
	}
	if desc.Format == gputypes.TextureFormatUndefined {
		desc.Format = gpu.DefaultFormat
	}
	pres, err := d.presenterFor(desc.Window)
	if err != nil {
		return nil, err
	}
	sc := &Swapchain{dev: d, queue: q, pres: pres, desc: desc}
	if err := sc.configure(desc.Width, desc.Height); err != nil {
		pres.Release()
		return nil, err
	}
	d.live.Add(1)
	return sc, nil
}

func (d *Device) presenterFor(w gpu.Window) (Presenter, error) {
	switch w := w.(type) {
	case PresenterWindow:
		return w.Presenter(d)
	case NativeWindow:
		return newSurfacePresenter(d, w)
	case nil:
		return nil, errors.New("halgpu: swapchain needs a window")
	default:
		return nil, fmt.Errorf("halgpu: window %T exposes no surface", w)
	}
}

func (d *Device) image(img gpu.Image) (*Image, error) {
	i, ok := img.(*Image)
	if !ok || i.dev != d {
		return nil, ErrForeignObject
	}
	return i, nil
}

// Destroy waits for outstanding work, frees cached pipelines and kernel
// resources and, for devices opened by Open, destroys the HAL device.
func (d *Device) Destroy() {
	d.mu.Lock()
	if d.destroyed {
		d.mu.Unlock()
		return
	}
	d.destroyed = true
	d.closing = true
	queues := append([]*Queue(nil), d.queues...)
	invokers := d.invokers
	d.invokers = nil
	d.mu.Unlock()

	for _, q := range queues {
		q.drain(d.opts.DrainTimeout)
	}
	for _, k := range invokers {
		k.releaseBinding(nil)
	}
	d.pipelines.Purge()
	for _, q := range queues {
		q.destroyRetireFence()
	}

	if n := d.live.Load(); n != 0 {
		framepipe.Logger().Warn("halgpu: device destroyed with live objects", "live", n)
	}
	if !d.owned {
		return
	}
	d.dev.Destroy()
	if d.instance != nil {
		d.instance.Destroy()
	}
}

// usage maps a resource state to the HAL texture usage used for layout
// transitions. Presentation buffers are in RenderAttachment when Common.
func usage(s gpu.ResourceState) gputypes.TextureUsage {
	switch s {
	case gpu.StateUnorderedAccess:
		return gputypes.TextureUsageStorageBinding
	case gpu.StateCopySource:
		return gputypes.TextureUsageCopySrc
	case gpu.StateCopyDest:
		return gputypes.TextureUsageCopyDst
	default:
		return gputypes.TextureUsageRenderAttachment
	}
}
