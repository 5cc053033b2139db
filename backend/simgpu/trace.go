package simgpu

import (
	"fmt"
	"sync"
)

// EventKind identifies a traced action.
type EventKind uint8

// Traced actions. CPU-side events are recorded when the call is made,
// GPU-side events when the GPU timeline executes them.
const (
	EventSubmit   EventKind = iota + 1 // CPU: lists submitted
	EventDispatch                      // GPU: kernel executed
	EventCopy                          // GPU: image copy executed
	EventSignal                        // CPU: fence signal queued
	EventComplete                      // GPU: fence value written
	EventWait                          // CPU: blocked on a fence
	EventPresent                       // GPU: buffer presented
	EventResize                        // CPU: swapchain buffers reallocated
	EventRelease                       // CPU: image destroyed
	EventFault                         // GPU: hazard detected, device lost
)

var eventNames = [...]string{
	EventSubmit:   "submit",
	EventDispatch: "dispatch",
	EventCopy:     "copy",
	EventSignal:   "signal",
	EventComplete: "complete",
	EventWait:     "wait",
	EventPresent:  "present",
	EventResize:   "resize",
	EventRelease:  "release",
	EventFault:    "fault",
}

func (k EventKind) String() string {
	if int(k) < len(eventNames) && eventNames[k] != "" {
		return eventNames[k]
	}
	return fmt.Sprintf("EventKind(%d)", k)
}

// Event is one traced action.
type Event struct {
	Kind  EventKind
	Label string

	// Value is the fence value for signal, complete and wait events.
	Value uint64

	// Index is the buffer index for present events.
	Index int

	// Generation is the swapchain buffer generation of the image involved,
	// zero for images not owned by a swapchain.
	Generation int

	Width, Height uint32
}

func (e Event) String() string {
	switch e.Kind {
	case EventSignal, EventComplete, EventWait:
		return fmt.Sprintf("%s %d", e.Kind, e.Value)
	case EventPresent:
		return fmt.Sprintf("%s %d gen %d", e.Kind, e.Index, e.Generation)
	case EventResize:
		return fmt.Sprintf("%s %dx%d gen %d", e.Kind, e.Width, e.Height, e.Generation)
	default:
		return fmt.Sprintf("%s %s", e.Kind, e.Label)
	}
}

// Trace records events from both timelines. It is safe for concurrent use.
type Trace struct {
	mu     sync.Mutex
	events []Event
}

// NewTrace returns an empty trace.
func NewTrace() *Trace {
	return &Trace{}
}

func (t *Trace) add(e Event) {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.events = append(t.events, e)
	t.mu.Unlock()
}

// Events returns a copy of the recorded events in order.
func (t *Trace) Events() []Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Event(nil), t.events...)
}

// Filter returns the events of the given kind in order.
func (t *Trace) Filter(kind EventKind) []Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []Event
	for _, e := range t.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// Count returns the number of events of the given kind.
func (t *Trace) Count(kind EventKind) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, e := range t.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

// Reset discards all events.
func (t *Trace) Reset() {
	t.mu.Lock()
	t.events = t.events[:0]
	t.mu.Unlock()
}
