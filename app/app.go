// Package app is the application driver: the state machine that turns the
// window event stream into surface resizes, pause toggles and per-tick
// frames, and keeps the status line current.
//
// All of its methods run on the UI goroutine. The driver never blocks except
// inside the frame and resize calls, which wait on the GPU fence.
package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/gogpu/framepipe"
	"github.com/gogpu/framepipe/event"
)

// DefaultStatusInterval is how often the status line is refreshed.
const DefaultStatusInterval = time.Second

// State is the top-level driver state.
type State uint8

const (
	// Running renders a frame on every tick.
	Running State = iota
	// Paused skips rendering and stops the frame timer.
	Paused
)

// String returns "Running" or "Paused".
func (s State) String() string {
	if s == Paused {
		return "Paused"
	}
	return "Running"
}

// Renderer produces one frame. The compositor implements it.
type Renderer interface {
	RenderFrame(elapsed time.Duration) error
}

// Resizer reallocates the presentation surface. Zero dimensions mean the
// window's current size.
type Resizer interface {
	Resize(width, height uint32) error
}

// TitleSetter displays the status line.
type TitleSetter interface {
	SetTitle(title string)
}

// KernelSelector switches the active kernel.
type KernelSelector interface {
	Select(i int) error
	Len() int
}

// Snapshotter saves the current frame and returns where it was written.
type Snapshotter interface {
	Snapshot() (string, error)
}

// Options configures a Context.
type Options struct {
	Title string

	// Width and Height are the initial surface size.
	Width, Height uint32

	PauseKey    event.Key
	QuitKey     event.Key
	SnapshotKey event.Key

	// StatusInterval is the status line refresh period.
	// Zero means DefaultStatusInterval.
	StatusInterval time.Duration

	// Now is the clock. Nil means time.Now.
	Now func() time.Time

	Renderer Renderer
	Surface  Resizer

	// Optional collaborators.
	Display   TitleSetter
	Kernels   KernelSelector
	Snapshots Snapshotter
}

// Context holds the driver state of one window. It implements
// event.Handler.
type Context struct {
	opts  Options
	timer *Timer

	state     State
	resizing  bool
	minimized bool
	width     uint32
	height    uint32

	frames     uint64 // since the last status update
	total      uint64
	lastStatus time.Time
	status     string

	done bool
	err  error
}

var _ event.Handler = (*Context)(nil)

// New creates a running driver.
func New(opts Options) *Context {
	if opts.StatusInterval <= 0 {
		opts.StatusInterval = DefaultStatusInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	c := &Context{
		opts:   opts,
		timer:  NewTimer(opts.Now),
		width:  opts.Width,
		height: opts.Height,
		status: opts.Title,
	}
	c.lastStatus = opts.Now()
	return c
}

// State returns Running or Paused.
func (c *Context) State() State { return c.state }

// Resizing reports whether an interactive resize is in progress.
func (c *Context) Resizing() bool { return c.resizing }

// Minimized reports whether the window is minimized.
func (c *Context) Minimized() bool { return c.minimized }

// Size returns the last size reported by the window.
func (c *Context) Size() (width, height uint32) { return c.width, c.height }

// Status returns the current status line.
func (c *Context) Status() string { return c.status }

// Frames returns the number of frames rendered.
func (c *Context) Frames() uint64 { return c.total }

// Elapsed returns the time handed to the kernel for the next frame.
func (c *Context) Elapsed() time.Duration { return c.timer.Elapsed() }

// Done reports whether the loop must stop.
func (c *Context) Done() bool { return c.done }

// Err returns the fatal error that stopped the loop, if any.
func (c *Context) Err() error { return c.err }

func (c *Context) setState(s State) {
	if c.state == s {
		return
	}
	c.state = s
	if s == Paused {
		c.timer.Stop()
	} else {
		c.timer.Start()
	}
	framepipe.Logger().Info("app: state changed", "state", s)
}

func (c *Context) fail(err error) {
	if c.err == nil {
		c.err = err
	}
	c.done = true
}

func (c *Context) resize() {
	if c.opts.Surface == nil {
		return
	}
	if err := c.opts.Surface.Resize(c.width, c.height); err != nil {
		framepipe.Logger().Error("app: resize failed",
			"width", c.width,
			"height", c.height,
			"error", err)
		c.fail(err)
	}
}

// HandleEvent advances the state machine.
func (c *Context) HandleEvent(e event.Event) {
	if c.done {
		return
	}
	switch e.Kind {
	case event.Activate:
		c.setState(Running)
	case event.Deactivate:
		c.setState(Paused)
	case event.EnterResize:
		c.resizing = true
	case event.ExitResize:
		c.resizing = false
		if !c.minimized {
			c.resize()
		}
	case event.Size:
		c.handleSize(e)
	case event.KeyDown:
		c.handleKey(e.Key)
	case event.Destroy:
		framepipe.Logger().Info("app: window destroyed")
		c.done = true
	default:
		framepipe.Logger().Debug("app: ignoring event", "event", e)
	}
}

func (c *Context) handleSize(e event.Event) {
	if e.Minimized {
		c.minimized = true
		return
	}
	c.minimized = false
	c.width, c.height = e.Width, e.Height
	if !c.resizing {
		c.resize()
	}
}

func (c *Context) handleKey(k event.Key) {
	switch {
	case k == c.opts.PauseKey && k != event.KeyUnknown:
		if c.state == Running {
			c.setState(Paused)
		} else {
			c.setState(Running)
		}
	case k == c.opts.QuitKey && k != event.KeyUnknown:
		c.HandleEvent(event.Event{Kind: event.Destroy})
	case k == c.opts.SnapshotKey && k != event.KeyUnknown:
		c.snapshot()
	case k.Digit() >= 1:
		c.selectKernel(k.Digit() - 1)
	}
}

func (c *Context) snapshot() {
	if c.opts.Snapshots == nil {
		return
	}
	path, err := c.opts.Snapshots.Snapshot()
	if err != nil {
		framepipe.Logger().Warn("app: snapshot failed", "error", err)
		return
	}
	framepipe.Logger().Info("app: snapshot saved", "path", path)
}

func (c *Context) selectKernel(i int) {
	if c.opts.Kernels == nil || i >= c.opts.Kernels.Len() {
		return
	}
	if err := c.opts.Kernels.Select(i); err != nil {
		framepipe.Logger().Warn("app: kernel selection failed", "index", i, "error", err)
	}
}

// Tick renders one frame when running, not minimized and not inside an
// interactive resize, and refreshes the status line.
func (c *Context) Tick() {
	if c.done {
		return
	}
	if c.state == Running && !c.minimized && !c.resizing && c.opts.Renderer != nil {
		if err := c.opts.Renderer.RenderFrame(c.timer.Elapsed()); err != nil {
			c.fail(err)
			return
		}
		c.frames++
		c.total++
	}

	now := c.opts.Now()
	if now.Sub(c.lastStatus) < c.opts.StatusInterval {
		return
	}
	if c.state == Running {
		c.status = fmt.Sprintf("%s - FPS: %d", c.opts.Title, c.frames)
	} else {
		c.status = c.opts.Title + " - Paused"
	}
	if c.opts.Display != nil {
		c.opts.Display.SetTitle(c.status)
	}
	c.frames = 0
	c.lastStatus = now
}

// ErrNoSource is returned by Run without an event source.
var ErrNoSource = errors.New("app: no event source")

// Run pumps events and ticks until the window is destroyed or a fatal error
// occurs, which it returns. While paused it blocks on the source if the
// source supports waiting.
func (c *Context) Run(src event.Source) error {
	if src == nil {
		return ErrNoSource
	}
	waiter, canWait := src.(event.Waiter)
	for !c.done {
		if c.state == Paused && canWait {
			waiter.WaitTimeout(c.opts.StatusInterval)
		} else {
			src.Poll()
		}
		if c.done {
			break
		}
		c.Tick()
	}
	return c.err
}
