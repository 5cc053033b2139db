// Package backend selects the GPU implementation the frame pipeline runs on.
//
// Backends register a Factory under a name from an init() function, so a
// backend is available as soon as its package is imported:
//
//	import (
//		_ "github.com/gogpu/framepipe/backend/halgpu"
//		_ "github.com/gogpu/framepipe/backend/simgpu"
//	)
//
// # Backend Selection
//
// Use Open with a name to request a specific backend, or Default to get
// the best one that opens:
//
//	dev, err := backend.Open("", backend.Options{})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer dev.Destroy()
//
// Priority is hal (Vulkan, Metal or DX12 through the wgpu HAL), then sim
// (the CPU simulator).
package backend
