// Package event defines the normalized window event stream consumed by the
// application driver, and the registry that routes platform callbacks to the
// driver that owns a window.
package event

import (
	"fmt"
	"sync"
	"time"
)

// Kind identifies an event.
type Kind uint8

// Event kinds.
const (
	Activate Kind = iota + 1
	Deactivate
	EnterResize
	ExitResize
	Size
	KeyDown
	Destroy
)

var kindNames = [...]string{
	Activate:    "Activate",
	Deactivate:  "Deactivate",
	EnterResize: "EnterResize",
	ExitResize:  "ExitResize",
	Size:        "Size",
	KeyDown:     "KeyDown",
	Destroy:     "Destroy",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// Event is one window event.
type Event struct {
	Kind Kind

	// Width, Height and Minimized are set for Size.
	Width, Height uint32
	Minimized     bool

	// Key is set for KeyDown.
	Key Key
}

func (e Event) String() string {
	switch e.Kind {
	case Size:
		if e.Minimized {
			return fmt.Sprintf("Size(%d, %d, minimized)", e.Width, e.Height)
		}
		return fmt.Sprintf("Size(%d, %d)", e.Width, e.Height)
	case KeyDown:
		return fmt.Sprintf("KeyDown(%s)", e.Key)
	default:
		return e.Kind.String()
	}
}

// Resized returns a Size event.
func Resized(width, height uint32, minimized bool) Event {
	return Event{Kind: Size, Width: width, Height: height, Minimized: minimized}
}

// Pressed returns a KeyDown event.
func Pressed(k Key) Event {
	return Event{Kind: KeyDown, Key: k}
}

// Handler receives events on the UI goroutine.
type Handler interface {
	HandleEvent(e Event)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(e Event)

// HandleEvent calls f(e).
func (f HandlerFunc) HandleEvent(e Event) { f(e) }

// Source delivers the events of one window.
type Source interface {
	// Poll dispatches every pending event and returns without blocking.
	Poll()
}

// Waiter is implemented by sources that can block until an event arrives.
// The driver uses it while paused instead of spinning.
type Waiter interface {
	WaitTimeout(d time.Duration)
}

// Registry maps native window handles to their handlers, so a platform
// callback that only receives a handle can reach the driver owning the
// window. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	handlers map[uintptr]Handler
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[uintptr]Handler)}
}

// Register routes events of handle to h, replacing any previous handler.
func (r *Registry) Register(handle uintptr, h Handler) {
	r.mu.Lock()
	r.handlers[handle] = h
	r.mu.Unlock()
}

// Unregister removes the handler of handle.
func (r *Registry) Unregister(handle uintptr) {
	r.mu.Lock()
	delete(r.handlers, handle)
	r.mu.Unlock()
}

// Lookup returns the handler of handle.
func (r *Registry) Lookup(handle uintptr) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[handle]
	return h, ok
}

// Dispatch delivers e to the handler of handle and reports whether one was
// registered. Events for unknown windows are dropped.
func (r *Registry) Dispatch(handle uintptr, e Event) bool {
	h, ok := r.Lookup(handle)
	if !ok {
		return false
	}
	h.HandleEvent(e)
	return true
}

// Len returns the number of registered windows.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}

// Queue is an in-memory Source. Events pushed to it are delivered to the
// handler on the next Poll, in order.
type Queue struct {
	mu      sync.Mutex
	pending []Event
	handler Handler
}

// NewQueue returns a queue delivering to h.
func NewQueue(h Handler) *Queue {
	return &Queue{handler: h}
}

// SetHandler replaces the handler.
func (q *Queue) SetHandler(h Handler) {
	q.mu.Lock()
	q.handler = h
	q.mu.Unlock()
}

// Push appends events.
func (q *Queue) Push(events ...Event) {
	q.mu.Lock()
	q.pending = append(q.pending, events...)
	q.mu.Unlock()
}

// Pending returns the number of undelivered events.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Poll delivers every pending event. Events pushed by the handler are
// delivered by the next Poll.
func (q *Queue) Poll() {
	q.mu.Lock()
	events := q.pending
	q.pending = nil
	h := q.handler
	q.mu.Unlock()

	if h == nil {
		return
	}
	for _, e := range events {
		h.HandleEvent(e)
	}
}
