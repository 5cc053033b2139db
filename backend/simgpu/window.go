package simgpu

import "sync"

// Window is an in-memory presentation target with a settable framebuffer
// size.
type Window struct {
	mu            sync.Mutex
	width, height uint32
}

// NewWindow returns a window with the given framebuffer size.
func NewWindow(width, height uint32) *Window {
	return &Window{width: width, height: height}
}

// FramebufferSize returns the current size, zero for a nil window.
func (w *Window) FramebufferSize() (uint32, uint32) {
	if w == nil {
		return 0, 0
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.width, w.height
}

// SetSize changes the framebuffer size.
func (w *Window) SetSize(width, height uint32) {
	w.mu.Lock()
	w.width, w.height = width, height
	w.mu.Unlock()
}
