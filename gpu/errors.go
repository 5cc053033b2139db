// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import (
	"errors"
	"fmt"
)

// Sentinel errors reported by implementations of this package.
var (
	// ErrTimeout is returned by Fence.Wait when the value is not reached in time.
	ErrTimeout = errors.New("gpu: fence wait timed out")

	// ErrDeviceLost is returned when the device was removed or reset.
	ErrDeviceLost = errors.New("gpu: device lost")

	// ErrInvalidSize is returned for zero or oversized image dimensions.
	ErrInvalidSize = errors.New("gpu: invalid size")

	// ErrListClosed is returned when recording into a closed command list.
	ErrListClosed = errors.New("gpu: command list is closed")

	// ErrListOpen is returned when a command list is submitted or reset
	// while still recording, or an allocator is reset under an open list.
	ErrListOpen = errors.New("gpu: command list is open")

	// ErrInFlight is returned when an allocator is reset while work
	// recorded from it is still executing.
	ErrInFlight = errors.New("gpu: allocator work still in flight")

	// ErrOutstandingReferences is returned by Swapchain.ResizeBuffers when
	// buffer references obtained with Buffer are still held.
	ErrOutstandingReferences = errors.New("gpu: swapchain buffer references outstanding")

	// ErrStateMismatch is returned when a barrier's Before state does not
	// match the tracked state of the image.
	ErrStateMismatch = errors.New("gpu: resource state mismatch")

	// ErrReleased is returned when using a released object.
	ErrReleased = errors.New("gpu: object released")
)

// Class classifies a pipeline failure by the phase it happened in.
type Class uint8

const (
	// ClassInit is a device, queue, fence or surface creation failure.
	// Fatal: startup aborts.
	ClassInit Class = iota + 1

	// ClassResize is a surface reallocation failure. Fatal to the session.
	ClassResize

	// ClassFrame is a recording or submission failure.
	ClassFrame
)

// String returns the class name.
func (c Class) String() string {
	switch c {
	case ClassInit:
		return "init"
	case ClassResize:
		return "resize"
	case ClassFrame:
		return "frame"
	default:
		return fmt.Sprintf("Class(%d)", uint8(c))
	}
}

// Error is a pipeline failure with the context needed to reproduce it.
type Error struct {
	Class Class
	Op    string // operation that failed, e.g. "create fence"

	// Fence is the last fence value signaled when the failure happened.
	Fence uint64

	// Frame is the index of the frame being produced, zero for failures
	// outside the frame loop.
	Frame uint64

	Err error
}

func (e *Error) Error() string {
	if e.Frame > 0 {
		return fmt.Sprintf("gpu: %s: %s (fence %d, frame %d): %v", e.Class, e.Op, e.Fence, e.Frame, e.Err)
	}
	return fmt.Sprintf("gpu: %s: %s (fence %d): %v", e.Class, e.Op, e.Fence, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap returns err classified as c, or nil when err is nil. An err that is
// already an *Error is returned unchanged so the innermost classification
// wins.
func Wrap(c Class, op string, fence, frame uint64, err error) error {
	if err == nil {
		return nil
	}
	var ge *Error
	if errors.As(err, &ge) {
		return err
	}
	return &Error{Class: c, Op: op, Fence: fence, Frame: frame, Err: err}
}

// ClassOf returns the class of err, or 0 if err carries no classification.
func ClassOf(err error) Class {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Class
	}
	return 0
}

// IsFatal reports whether err ends the session. Every classified failure is
// fatal: GPU errors at this layer are not transient and are never retried.
func IsFatal(err error) bool {
	return ClassOf(err) != 0
}
