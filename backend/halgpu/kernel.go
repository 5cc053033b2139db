// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package halgpu

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/framepipe"
	"github.com/gogpu/framepipe/gpu"
	"github.com/gogpu/framepipe/kernel"
)

// paramsSize is the size of the kernel Params uniform (time, width,
// height, stride).
const paramsSize = 16

// copyPitchAlignment is the row alignment of buffer/texture copies.
const copyPitchAlignment = 256

var _ kernel.Compiler = (*Device)(nil)

type pipelineKey struct {
	name   string
	source string
}

type pipeline struct {
	module     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipe       hal.ComputePipeline
}

func (p *pipeline) destroy(dev hal.Device) {
	if p.pipe != nil {
		dev.DestroyComputePipeline(p.pipe)
	}
	if p.pipeLayout != nil {
		dev.DestroyPipelineLayout(p.pipeLayout)
	}
	if p.bindLayout != nil {
		dev.DestroyBindGroupLayout(p.bindLayout)
	}
	if p.module != nil {
		dev.DestroyShaderModule(p.module)
	}
}

// compileSPIRV compiles WGSL to little-endian SPIR-V words.
func compileSPIRV(wgsl string) ([]uint32, error) {
	spirvBytes, err := naga.Compile(wgsl)
	if err != nil {
		return nil, err
	}
	words := make([]uint32, len(spirvBytes)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(spirvBytes[i*4:])
	}
	return words, nil
}

func (d *Device) buildPipeline(spec kernel.Spec) (*pipeline, error) {
	spirv, err := compileSPIRV(spec.WGSL)
	if err != nil {
		return nil, fmt.Errorf("compile %s shader: %w", spec.Name, err)
	}
	p := &pipeline{}
	p.module, err = d.dev.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "kernel/" + spec.Name,
		Source: hal.ShaderSource{SPIRV: spirv},
	})
	if err != nil {
		return nil, fmt.Errorf("create %s shader module: %w", spec.Name, err)
	}
	p.bindLayout, err = d.dev.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "kernel/" + spec.Name + "/bind_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{Binding: 0, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform}},
			{Binding: 1, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage}},
		},
	})
	if err != nil {
		p.destroy(d.dev)
		return nil, fmt.Errorf("create %s bind group layout: %w", spec.Name, err)
	}
	p.pipeLayout, err = d.dev.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "kernel/" + spec.Name + "/pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{p.bindLayout},
	})
	if err != nil {
		p.destroy(d.dev)
		return nil, fmt.Errorf("create %s pipeline layout: %w", spec.Name, err)
	}
	p.pipe, err = d.dev.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:   "kernel/" + spec.Name,
		Layout:  p.pipeLayout,
		Compute: hal.ComputeState{Module: p.module, EntryPoint: kernel.EntryPoint},
	})
	if err != nil {
		p.destroy(d.dev)
		return nil, fmt.Errorf("create %s compute pipeline: %w", spec.Name, err)
	}
	framepipe.Logger().Debug("halgpu: kernel pipeline created", "kernel", spec.Name, "spirv_words", len(spirv))
	return p, nil
}

func (d *Device) pipelineFor(spec kernel.Spec) (*pipeline, error) {
	key := pipelineKey{name: spec.Name, source: spec.WGSL}
	if p, ok := d.pipelines.Get(key); ok {
		return p, nil
	}
	p, err := d.buildPipeline(spec)
	if err != nil {
		return nil, err
	}
	d.pipelines.Add(key, p)
	return p, nil
}

// evictPipeline frees a pipeline once the GPU no longer uses it.
func (d *Device) evictPipeline(key pipelineKey, p *pipeline) {
	d.mu.Lock()
	closing := d.closing
	d.mu.Unlock()
	if q := d.defaultQueue(); q != nil && !closing {
		q.retireAfterLast(func() { p.destroy(d.dev) })
		return
	}
	framepipe.Logger().Debug("halgpu: kernel pipeline evicted", "kernel", key.name)
	p.destroy(d.dev)
}

// PipelineCacheLen returns the number of cached kernel pipelines.
func (d *Device) PipelineCacheLen() int { return d.pipelines.Len() }

// Compile builds the compute pipeline of spec and returns its invoker.
func (d *Device) Compile(spec kernel.Spec) (kernel.Invoker, error) {
	if spec.WGSL == "" {
		return nil, fmt.Errorf("halgpu: kernel %q has no WGSL source", spec.Name)
	}
	if _, err := d.pipelineFor(spec); err != nil {
		return nil, fmt.Errorf("halgpu: %w", err)
	}
	k := &invoker{dev: d, spec: spec}
	d.mu.Lock()
	d.invokers = append(d.invokers, k)
	d.mu.Unlock()
	return k, nil
}

// binding holds the per-target buffers of an invoker.
type binding struct {
	target *Image
	pipe   *pipeline
	stride uint32 // row pitch in pixels
	params hal.Buffer
	pixels hal.Buffer
	group  hal.BindGroup
}

func (b *binding) destroy(dev hal.Device) {
	if b.group != nil {
		dev.DestroyBindGroup(b.group)
	}
	if b.pixels != nil {
		dev.DestroyBuffer(b.pixels)
	}
	if b.params != nil {
		dev.DestroyBuffer(b.params)
	}
}

type invoker struct {
	dev  *Device
	spec kernel.Spec

	mu  sync.Mutex
	res *binding
}

// Render dispatches the kernel over target and copies the result into it.
// The target must be an off-screen image in the UnorderedAccess state.
func (k *invoker) Render(elapsed time.Duration, target gpu.Image) error {
	img, err := k.dev.image(target)
	if err != nil {
		return err
	}
	if img.chain != nil {
		return errors.New("halgpu: kernels cannot write swapchain buffers")
	}
	if img.released.Load() {
		return gpu.ErrReleased
	}
	if img.state != gpu.StateUnorderedAccess {
		return fmt.Errorf("kernel %q target %q is %v: %w", k.spec.Name, img.label, img.state, gpu.ErrStateMismatch)
	}
	q := k.dev.defaultQueue()
	if q == nil {
		return errors.New("halgpu: kernel dispatch needs a queue")
	}
	p, err := k.dev.pipelineFor(k.spec)
	if err != nil {
		return fmt.Errorf("halgpu: %w", err)
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	res, err := k.bind(q, p, img)
	if err != nil {
		return err
	}

	var params [paramsSize]byte
	binary.LittleEndian.PutUint32(params[0:], math.Float32bits(float32(elapsed.Seconds())))
	binary.LittleEndian.PutUint32(params[4:], img.width)
	binary.LittleEndian.PutUint32(params[8:], img.height)
	binary.LittleEndian.PutUint32(params[12:], res.stride)
	k.dev.queue.WriteBuffer(res.params, 0, params[:])

	enc, err := k.dev.dev.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "kernel/" + k.spec.Name})
	if err != nil {
		return fmt.Errorf("halgpu: create command encoder: %w", err)
	}
	if err := enc.BeginEncoding("kernel/" + k.spec.Name); err != nil {
		return fmt.Errorf("halgpu: begin encoding: %w", err)
	}

	pass := enc.BeginComputePass(&hal.ComputePassDescriptor{Label: "kernel/" + k.spec.Name})
	pass.SetPipeline(p.pipe)
	pass.SetBindGroup(0, res.group, nil)
	pass.Dispatch(kernel.GroupCount(img.width), kernel.GroupCount(img.height), 1)
	pass.End()

	enc.TransitionTextures([]hal.TextureBarrier{{
		Texture: img.tex,
		Usage: hal.TextureUsageTransition{
			OldUsage: usage(gpu.StateUnorderedAccess),
			NewUsage: usage(gpu.StateCopyDest),
		},
	}})
	enc.CopyBufferToTexture(res.pixels, img.tex, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{Offset: 0, BytesPerRow: res.stride * 4, RowsPerImage: img.height},
		TextureBase:  hal.ImageCopyTexture{Texture: img.tex, MipLevel: 0},
		Size:         hal.Extent3D{Width: img.width, Height: img.height, DepthOrArrayLayers: 1},
	}})
	enc.TransitionTextures([]hal.TextureBarrier{{
		Texture: img.tex,
		Usage: hal.TextureUsageTransition{
			OldUsage: usage(gpu.StateCopyDest),
			NewUsage: usage(gpu.StateUnorderedAccess),
		},
	}})

	buf, err := enc.EndEncoding()
	if err != nil {
		return fmt.Errorf("halgpu: end encoding: %w", err)
	}
	if _, err := q.submit([]hal.CommandBuffer{buf}, func() { k.dev.dev.FreeCommandBuffer(buf) }); err != nil {
		k.dev.dev.FreeCommandBuffer(buf)
		return err
	}
	return nil
}

// bind returns the buffers for target, recreating them when the target or
// the pipeline changed. Called with k.mu held.
func (k *invoker) bind(q *Queue, p *pipeline, img *Image) (*binding, error) {
	if k.res != nil && k.res.target == img && k.res.pipe == p {
		return k.res, nil
	}
	if k.res != nil {
		old := k.res
		k.res = nil
		q.retireAfterLast(func() { old.destroy(k.dev.dev) })
	}

	stride := ((img.width*4 + copyPitchAlignment - 1) &^ (copyPitchAlignment - 1)) / 4
	res := &binding{target: img, pipe: p, stride: stride}
	var err error
	res.params, err = k.dev.dev.CreateBuffer(&hal.BufferDescriptor{
		Label: "kernel/" + k.spec.Name + "/params",
		Size:  paramsSize,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("halgpu: create params buffer: %w", err)
	}
	pixelSize := uint64(stride) * 4 * uint64(img.height)
	res.pixels, err = k.dev.dev.CreateBuffer(&hal.BufferDescriptor{
		Label: "kernel/" + k.spec.Name + "/pixels",
		Size:  pixelSize,
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc,
	})
	if err != nil {
		res.destroy(k.dev.dev)
		return nil, fmt.Errorf("halgpu: create pixel buffer: %w", err)
	}
	res.group, err = k.dev.dev.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "kernel/" + k.spec.Name + "/bind",
		Layout: p.bindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: res.params.NativeHandle(), Offset: 0, Size: paramsSize}},
			{Binding: 1, Resource: gputypes.BufferBinding{Buffer: res.pixels.NativeHandle(), Offset: 0, Size: pixelSize}},
		},
	})
	if err != nil {
		res.destroy(k.dev.dev)
		return nil, fmt.Errorf("halgpu: create bind group: %w", err)
	}
	k.res = res
	return res, nil
}

// releaseBinding frees the invoker's buffers, through q when given.
func (k *invoker) releaseBinding(q *Queue) {
	k.mu.Lock()
	res := k.res
	k.res = nil
	k.mu.Unlock()
	if res == nil {
		return
	}
	if q != nil {
		q.retireAfterLast(func() { res.destroy(k.dev.dev) })
		return
	}
	res.destroy(k.dev.dev)
}
