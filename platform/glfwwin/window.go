package glfwwin

import (
	"fmt"
	"runtime"
	"time"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/gogpu/framepipe"
	"github.com/gogpu/framepipe/event"
)

// DefaultSettleDelay is how long the size must be stable before a burst of
// size changes ends with ExitResize.
const DefaultSettleDelay = 150 * time.Millisecond

func init() {
	// GLFW event processing must happen on the main thread.
	runtime.LockOSThread()
}

// Options configures a window.
type Options struct {
	Title  string
	Width  int
	Height int

	// Registry routes callbacks to Handler. Nil means a private registry.
	Registry *event.Registry
	Handler  event.Handler

	// SettleDelay is zero for DefaultSettleDelay.
	SettleDelay time.Duration
}

// Window is a GLFW window. It is an event.Source and event.Waiter, and it
// satisfies gpu.Window and the title setter of the application driver.
type Window struct {
	win      *glfw.Window
	handle   uintptr
	registry *event.Registry
	resize   resizeTracker
	now      func() time.Time
}

// New creates and shows a window.
func New(opts Options) (*Window, error) {
	if opts.Registry == nil {
		opts.Registry = event.NewRegistry()
	}
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = DefaultSettleDelay
	}
	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("initialize glfw: %w", err)
	}
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfw.True)

	win, err := glfw.CreateWindow(opts.Width, opts.Height, opts.Title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, fmt.Errorf("create window: %w", err)
	}

	w := &Window{
		win:      win,
		handle:   uintptr(unsafe.Pointer(win)),
		registry: opts.Registry,
		resize:   resizeTracker{settle: opts.SettleDelay},
		now:      time.Now,
	}
	if opts.Handler != nil {
		w.registry.Register(w.handle, opts.Handler)
	}
	w.installCallbacks()
	framepipe.Logger().Info("glfwwin: window created", "title", opts.Title, "width", opts.Width, "height", opts.Height)
	return w, nil
}

// Handle returns the registry key of the window.
func (w *Window) Handle() uintptr { return w.handle }

// SetHandler routes the window's events to h.
func (w *Window) SetHandler(h event.Handler) {
	w.registry.Register(w.handle, h)
}

func handleOf(gw *glfw.Window) uintptr { return uintptr(unsafe.Pointer(gw)) }

func (w *Window) installCallbacks() {
	reg := w.registry
	dispatch := func(gw *glfw.Window, e event.Event) {
		if !reg.Dispatch(handleOf(gw), e) {
			framepipe.Logger().Debug("glfwwin: event for unregistered window", "event", e.String())
		}
	}

	w.win.SetFocusCallback(func(gw *glfw.Window, focused bool) {
		if focused {
			dispatch(gw, event.Event{Kind: event.Activate})
		} else {
			dispatch(gw, event.Event{Kind: event.Deactivate})
		}
	})

	w.win.SetFramebufferSizeCallback(func(gw *glfw.Window, width, height int) {
		if width <= 0 || height <= 0 || gw.GetAttrib(glfw.Iconified) == glfw.True {
			return // reported by the iconify callback
		}
		if w.resize.changed(w.now()) {
			dispatch(gw, event.Event{Kind: event.EnterResize})
		}
		dispatch(gw, event.Resized(uint32(width), uint32(height), false))
	})

	w.win.SetIconifyCallback(func(gw *glfw.Window, iconified bool) {
		if iconified {
			dispatch(gw, event.Resized(0, 0, true))
			return
		}
		width, height := gw.GetFramebufferSize()
		dispatch(gw, event.Resized(uint32(width), uint32(height), false))
	})

	w.win.SetKeyCallback(func(gw *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
		if action != glfw.Press {
			return
		}
		k, ok := keyOf(key)
		if !ok {
			framepipe.Logger().Debug("glfwwin: unmapped key", "key", int(key))
			return
		}
		dispatch(gw, event.Pressed(k))
	})

	w.win.SetCloseCallback(func(gw *glfw.Window) {
		dispatch(gw, event.Event{Kind: event.Destroy})
	})
}

// settle ends a resize burst once the size has been stable long enough.
func (w *Window) settle() {
	if w.resize.settled(w.now()) {
		w.registry.Dispatch(w.handle, event.Event{Kind: event.ExitResize})
	}
}

// Poll processes pending events without blocking.
func (w *Window) Poll() {
	glfw.PollEvents()
	w.settle()
}

// WaitTimeout blocks until an event arrives or d elapses.
func (w *Window) WaitTimeout(d time.Duration) {
	if w.resize.active {
		// Wake up in time to end the burst.
		d = min(d, w.resize.settle)
	}
	glfw.WaitEventsTimeout(d.Seconds())
	w.settle()
}

// FramebufferSize returns the drawable size in pixels.
func (w *Window) FramebufferSize() (uint32, uint32) {
	width, height := w.win.GetFramebufferSize()
	return uint32(max(width, 0)), uint32(max(height, 0))
}

// SetTitle sets the title bar text.
func (w *Window) SetTitle(title string) {
	w.win.SetTitle(title)
}

// Close destroys the window and terminates GLFW.
func (w *Window) Close() {
	w.registry.Unregister(w.handle)
	w.win.Destroy()
	glfw.Terminate()
}

// resizeTracker turns a stream of size changes into bursts.
type resizeTracker struct {
	settle time.Duration
	active bool
	last   time.Time
}

// changed records a size change and reports whether it starts a burst.
func (r *resizeTracker) changed(now time.Time) bool {
	r.last = now
	if r.active {
		return false
	}
	r.active = true
	return true
}

// settled reports whether an active burst has just ended.
func (r *resizeTracker) settled(now time.Time) bool {
	if !r.active || now.Sub(r.last) < r.settle {
		return false
	}
	r.active = false
	return true
}
