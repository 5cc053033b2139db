// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package halgpu

import (
	"errors"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/framepipe/gpu"
	"github.com/gogpu/framepipe/kernel"
)

// newNoopDevice opens a device on the noop HAL backend.
func newNoopDevice(t *testing.T) *Device {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	d, err := OpenInstance(instance, Options{})
	if err != nil {
		instance.Destroy()
		t.Fatalf("OpenInstance failed: %v", err)
	}
	t.Cleanup(d.Destroy)
	return d
}

func newImage(t *testing.T, d *Device, label string, state gpu.ResourceState) gpu.Image {
	t.Helper()
	img, err := d.CreateImage(gpu.ImageDesc{
		Label:        label,
		Width:        64,
		Height:       32,
		Usage:        gputypes.TextureUsageCopySrc | gputypes.TextureUsageCopyDst,
		InitialState: state,
	})
	if err != nil {
		t.Fatalf("CreateImage(%s): %v", label, err)
	}
	return img
}

func TestCreateAndReleaseObjects(t *testing.T) {
	d := newNoopDevice(t)

	q, err := d.CreateQueue()
	if err != nil {
		t.Fatal(err)
	}
	alloc, err := d.CreateCommandAllocator()
	if err != nil {
		t.Fatal(err)
	}
	list, err := d.CreateCommandList(alloc)
	if err != nil {
		t.Fatal(err)
	}
	f, err := d.CreateFence(0)
	if err != nil {
		t.Fatal(err)
	}
	img := newImage(t, d, "target", gpu.StateUnorderedAccess)

	if d.Live() != 5 {
		t.Errorf("Live() = %d, want 5", d.Live())
	}
	if img.Format() != gpu.DefaultFormat {
		t.Errorf("Format() = %v, want the default format", img.Format())
	}

	img.Release()
	img.Release()
	f.Release()
	list.Release()
	alloc.Release()
	q.Release()
	if d.Live() != 0 {
		t.Errorf("Live() after release = %d, want 0", d.Live())
	}
}

func TestCreateImageInvalidSize(t *testing.T) {
	d := newNoopDevice(t)
	for _, size := range [][2]uint32{{0, 10}, {10, 0}, {MaxDimension + 1, 1}} {
		_, err := d.CreateImage(gpu.ImageDesc{Width: size[0], Height: size[1]})
		if !errors.Is(err, gpu.ErrInvalidSize) {
			t.Errorf("CreateImage(%dx%d) = %v, want ErrInvalidSize", size[0], size[1], err)
		}
	}
}

func TestListLifecycle(t *testing.T) {
	d := newNoopDevice(t)
	alloc, _ := d.CreateCommandAllocator()
	defer alloc.Release()
	list, _ := d.CreateCommandList(alloc)
	defer list.Release()

	if err := list.Close(); !errors.Is(err, gpu.ErrListClosed) {
		t.Errorf("Close of a new list = %v, want ErrListClosed", err)
	}
	if err := list.Reset(alloc); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if err := list.Reset(alloc); !errors.Is(err, gpu.ErrListOpen) {
		t.Errorf("second Reset = %v, want ErrListOpen", err)
	}
	if err := alloc.Reset(); !errors.Is(err, gpu.ErrListOpen) {
		t.Errorf("allocator Reset with open list = %v, want ErrListOpen", err)
	}

	src := newImage(t, d, "src", gpu.StateUnorderedAccess)
	defer src.Release()
	dst := newImage(t, d, "dst", gpu.StateCommon)
	defer dst.Release()

	b := []gpu.Barrier{
		gpu.Transition(src, gpu.StateUnorderedAccess, gpu.StateCopySource),
		gpu.Transition(dst, gpu.StateCommon, gpu.StateCopyDest),
	}
	list.ResourceBarrier(b...)
	list.CopyImage(dst, src)
	list.ResourceBarrier(b[1].Reverse(), b[0].Reverse())
	if err := list.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := alloc.Reset(); err != nil {
		t.Errorf("allocator Reset after Close = %v", err)
	}
}

func TestListDefersRecordingErrors(t *testing.T) {
	d := newNoopDevice(t)
	alloc, _ := d.CreateCommandAllocator()
	defer alloc.Release()
	list, _ := d.CreateCommandList(alloc)
	defer list.Release()

	a := newImage(t, d, "a", gpu.StateCopySource)
	defer a.Release()
	small, err := d.CreateImage(gpu.ImageDesc{Label: "small", Width: 8, Height: 8, InitialState: gpu.StateCopyDest})
	if err != nil {
		t.Fatal(err)
	}
	defer small.Release()

	tests := []struct {
		name   string
		record func(gpu.CommandList)
		want   error
	}{
		{"barrier state mismatch", func(l gpu.CommandList) {
			l.ResourceBarrier(gpu.Transition(a, gpu.StateCommon, gpu.StateCopyDest))
		}, gpu.ErrStateMismatch},
		{"copy size mismatch", func(l gpu.CommandList) {
			l.CopyImage(small, a)
		}, gpu.ErrInvalidSize},
		{"copy wrong source state", func(l gpu.CommandList) {
			l.CopyImage(a, a)
		}, gpu.ErrStateMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := list.Reset(alloc); err != nil {
				t.Fatal(err)
			}
			tt.record(list)
			if err := list.Close(); !errors.Is(err, tt.want) {
				t.Errorf("Close = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSubmitValidation(t *testing.T) {
	d := newNoopDevice(t)
	q, _ := d.CreateQueue()
	defer q.Release()
	alloc, _ := d.CreateCommandAllocator()
	defer alloc.Release()
	list, _ := d.CreateCommandList(alloc)
	defer list.Release()

	if err := q.Submit(list); err == nil {
		t.Error("Submit of a list with nothing recorded succeeded")
	}
	if err := list.Reset(alloc); err != nil {
		t.Fatal(err)
	}
	if err := q.Submit(list); !errors.Is(err, gpu.ErrListOpen) {
		t.Errorf("Submit of open list = %v, want ErrListOpen", err)
	}
	if err := list.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestForeignObjects(t *testing.T) {
	d := newNoopDevice(t)
	other := newNoopDevice(t)

	alloc, _ := other.CreateCommandAllocator()
	defer alloc.Release()
	if _, err := d.CreateCommandList(alloc); !errors.Is(err, ErrForeignObject) {
		t.Errorf("CreateCommandList(foreign allocator) = %v, want ErrForeignObject", err)
	}
	q, _ := other.CreateQueue()
	defer q.Release()
	if _, err := d.CreateSwapchain(q, gpu.DefaultSwapchainDesc(nil, 64, 64)); !errors.Is(err, ErrForeignObject) {
		t.Errorf("CreateSwapchain(foreign queue) = %v, want ErrForeignObject", err)
	}
}

func TestCompileRequiresWGSL(t *testing.T) {
	d := newNoopDevice(t)
	if _, err := d.Compile(kernel.Spec{Name: "cpu-only"}); err == nil {
		t.Error("Compile accepted a kernel without WGSL")
	}
	if _, err := d.Compile(kernel.Spec{Name: "broken", WGSL: "fn main( {"}); err == nil {
		t.Error("Compile accepted invalid WGSL")
	}
	if n := d.PipelineCacheLen(); n != 0 {
		t.Errorf("PipelineCacheLen() = %d after failed compiles, want 0", n)
	}
}

func TestPipelineCacheEvicts(t *testing.T) {
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatal(err)
	}
	d, err := OpenInstance(instance, Options{PipelineCacheSize: 2})
	if err != nil {
		t.Fatal(err)
	}
	defer d.Destroy()

	for _, name := range []string{"a", "b", "c"} {
		d.pipelines.Add(pipelineKey{name: name}, &pipeline{})
	}
	if n := d.PipelineCacheLen(); n != 2 {
		t.Errorf("PipelineCacheLen() = %d, want 2", n)
	}
	if _, ok := d.pipelines.Get(pipelineKey{name: "a"}); ok {
		t.Error("oldest pipeline was not evicted")
	}
}

func TestUsageMapping(t *testing.T) {
	tests := map[gpu.ResourceState]gputypes.TextureUsage{
		gpu.StateCommon:          gputypes.TextureUsageRenderAttachment,
		gpu.StateUnorderedAccess: gputypes.TextureUsageStorageBinding,
		gpu.StateCopySource:      gputypes.TextureUsageCopySrc,
		gpu.StateCopyDest:        gputypes.TextureUsageCopyDst,
	}
	for s, want := range tests {
		if got := usage(s); got != want {
			t.Errorf("usage(%v) = %v, want %v", s, got, want)
		}
	}
}

func TestUnpackRows(t *testing.T) {
	// 2x2 image, pitch 12 bytes, BGRA.
	data := []byte{
		1, 2, 3, 4, 5, 6, 7, 8, 0, 0, 0, 0,
		9, 10, 11, 12, 13, 14, 15, 16, 0, 0, 0, 0,
	}
	img := unpackRows(data, 2, 2, 12, true)
	want := []byte{3, 2, 1, 4, 7, 6, 5, 8, 11, 10, 9, 12, 15, 14, 13, 16}
	for i, b := range want {
		if img.Pix[i] != b {
			t.Fatalf("Pix = %v, want %v", img.Pix, want)
		}
	}
}
