// Package device owns the GPU objects shared by every frame: the device, one
// queue, one command allocator, one reusable command list and the fence.
//
// One frame is in flight at a time. Begin gates the allocator reset on the
// GPU having finished the previous frame, so the allocator is never reset
// while its commands still execute, even when the caller skipped the
// post-present wait.
package device

import (
	"errors"
	"fmt"
	"time"

	"github.com/gogpu/framepipe"
	"github.com/gogpu/framepipe/fence"
	"github.com/gogpu/framepipe/gpu"
)

// ErrNotRecording is returned by Execute when Begin was not called.
var ErrNotRecording = errors.New("device: no frame is being recorded")

// ErrRecording is returned by Begin when the previous frame was not executed.
var ErrRecording = errors.New("device: frame already being recorded")

// Options configures a Context.
type Options struct {
	// FenceTimeout bounds every fence wait. Zero means fence.DefaultTimeout.
	FenceTimeout time.Duration
}

// Context is the GPU device context. It is not safe for concurrent use; the
// frame loop owns it.
type Context struct {
	dev   gpu.Device
	queue gpu.Queue
	alloc gpu.CommandAllocator
	list  gpu.CommandList
	fence *fence.Synchronizer

	recording bool
	last      uint64 // fence value signaled by the last Execute
	closed    bool
}

// New creates the queue, allocator, command list and fence on dev and takes
// ownership of dev. On failure every object created so far is released and
// the error is classified gpu.ClassInit.
func New(dev gpu.Device, opts Options) (*Context, error) {
	c := &Context{dev: dev}
	var err error
	fail := func(op string, err error) (*Context, error) {
		c.release()
		return nil, gpu.Wrap(gpu.ClassInit, op, 0, 0, err)
	}

	if c.queue, err = dev.CreateQueue(); err != nil {
		return fail("create queue", err)
	}
	if c.alloc, err = dev.CreateCommandAllocator(); err != nil {
		return fail("create command allocator", err)
	}
	if c.list, err = dev.CreateCommandList(c.alloc); err != nil {
		return fail("create command list", err)
	}
	if c.fence, err = fence.New(dev, c.queue, fence.Options{Timeout: opts.FenceTimeout}); err != nil {
		return fail("create fence", err)
	}

	framepipe.Logger().Info("device: context created")
	return c, nil
}

// Device returns the underlying device.
func (c *Context) Device() gpu.Device { return c.dev }

// Queue returns the execution queue.
func (c *Context) Queue() gpu.Queue { return c.queue }

// Fence returns the fence synchronizer.
func (c *Context) Fence() *fence.Synchronizer { return c.fence }

// LastExecuted returns the fence value signaled by the last Execute.
func (c *Context) LastExecuted() uint64 { return c.last }

// Begin waits for the previous frame to finish on the GPU, resets the
// allocator and reopens the command list. The returned list records the
// frame's commands until Execute.
func (c *Context) Begin() (gpu.CommandList, error) {
	if c.recording {
		return nil, ErrRecording
	}
	if c.last > 0 {
		if _, err := c.fence.WaitIfPending(c.last); err != nil {
			return nil, fmt.Errorf("wait for previous frame: %w", err)
		}
	}
	if err := c.alloc.Reset(); err != nil {
		return nil, fmt.Errorf("reset allocator: %w", err)
	}
	if err := c.list.Reset(c.alloc); err != nil {
		return nil, fmt.Errorf("reset command list: %w", err)
	}
	c.recording = true
	return c.list, nil
}

// Execute closes the command list, submits it and signals the fence with
// the next value, which it returns.
func (c *Context) Execute() (uint64, error) {
	if !c.recording {
		return 0, ErrNotRecording
	}
	c.recording = false
	if err := c.list.Close(); err != nil {
		return 0, fmt.Errorf("close command list: %w", err)
	}
	if err := c.queue.Submit(c.list); err != nil {
		return 0, fmt.Errorf("submit: %w", err)
	}
	v, err := c.fence.Signal()
	if err != nil {
		return 0, err
	}
	c.last = v
	return v, nil
}

// Flush drains the queue.
func (c *Context) Flush() (uint64, error) {
	return c.fence.Flush()
}

// Close drains the queue and releases every object in reverse creation
// order, the device last. It is safe to call more than once.
func (c *Context) Close() error {
	if c.closed {
		return nil
	}
	var err error
	if c.recording {
		c.recording = false
		if cerr := c.list.Close(); cerr != nil {
			framepipe.Logger().Debug("device: discarding open command list", "error", cerr)
		}
	}
	if _, ferr := c.fence.Flush(); ferr != nil {
		err = fmt.Errorf("drain before close: %w", ferr)
	}
	c.release()
	framepipe.Logger().Info("device: context closed")
	return err
}

func (c *Context) release() {
	c.closed = true
	if c.fence != nil {
		c.fence.Release()
	}
	if c.list != nil {
		c.list.Release()
	}
	if c.alloc != nil {
		c.alloc.Release()
	}
	if c.queue != nil {
		c.queue.Release()
	}
	if c.dev != nil {
		c.dev.Destroy()
	}
}
