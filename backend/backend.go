package backend

import (
	"errors"
	"time"

	"github.com/gogpu/framepipe/gpu"
	"github.com/gogpu/framepipe/kernel"
)

// Backend names.
const (
	BackendHAL = "hal"
	BackendSim = "sim"
)

// Common backend errors.
var (
	// ErrBackendNotAvailable is returned when a requested backend is not
	// registered or none can be opened.
	ErrBackendNotAvailable = errors.New("backend: not available")
)

// Device is what the frame pipeline needs from a backend: the gpu
// interfaces plus kernel compilation.
type Device interface {
	gpu.Device
	kernel.Compiler
}

// Options are passed to backend factories. Each backend uses the fields
// that apply to it.
type Options struct {
	// Latency delays simulated GPU execution.
	Latency time.Duration

	// Workers is the number of CPU shading goroutines of the simulator.
	Workers int
}
