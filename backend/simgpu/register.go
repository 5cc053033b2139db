package simgpu

import "github.com/gogpu/framepipe/backend"

func init() {
	backend.Register(backend.BackendSim, func(o backend.Options) (backend.Device, error) {
		return New(Options{Latency: o.Latency, Workers: o.Workers}), nil
	})
}
