// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import "fmt"

// ResourceState is the usage state of an image as seen by the GPU.
type ResourceState uint8

const (
	// StateCommon is the state presentation buffers are in outside of a
	// copy. Presentation requires it.
	StateCommon ResourceState = iota

	// StateUnorderedAccess is read/write access from compute shaders.
	StateUnorderedAccess

	// StateCopySource is the source of a copy.
	StateCopySource

	// StateCopyDest is the destination of a copy.
	StateCopyDest
)

var stateNames = [...]string{
	StateCommon:          "Common",
	StateUnorderedAccess: "UnorderedAccess",
	StateCopySource:      "CopySource",
	StateCopyDest:        "CopyDest",
}

// String returns the state name.
func (s ResourceState) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("ResourceState(%d)", s)
}

// Barrier declares a usage transition of an image.
type Barrier struct {
	Image  Image
	Before ResourceState
	After  ResourceState
}

// Transition returns a barrier moving img from before to after.
func Transition(img Image, before, after ResourceState) Barrier {
	return Barrier{Image: img, Before: before, After: after}
}

// Reverse returns the barrier that undoes b.
func (b Barrier) Reverse() Barrier {
	return Barrier{Image: b.Image, Before: b.After, After: b.Before}
}
