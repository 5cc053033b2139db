// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestResourceStateString(t *testing.T) {
	tests := []struct {
		s    ResourceState
		want string
	}{
		{StateCommon, "Common"},
		{StateUnorderedAccess, "UnorderedAccess"},
		{StateCopySource, "CopySource"},
		{StateCopyDest, "CopyDest"},
		{ResourceState(42), "ResourceState(42)"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("ResourceState(%d).String() = %q, want %q", tt.s, got, tt.want)
		}
	}
}

func TestBarrierReverse(t *testing.T) {
	b := Transition(nil, StateUnorderedAccess, StateCopySource)
	r := b.Reverse()
	if r.Before != StateCopySource || r.After != StateUnorderedAccess {
		t.Errorf("Reverse() = %v -> %v, want CopySource -> UnorderedAccess", r.Before, r.After)
	}
	if r.Reverse() != b {
		t.Error("Reverse() is not an involution")
	}
}

func TestWrap(t *testing.T) {
	if Wrap(ClassFrame, "submit", 1, 1, nil) != nil {
		t.Fatal("Wrap(nil) should be nil")
	}

	err := Wrap(ClassFrame, "submit", 41, 7, ErrDeviceLost)
	if !errors.Is(err, ErrDeviceLost) {
		t.Errorf("errors.Is(err, ErrDeviceLost) = false")
	}
	if got := ClassOf(err); got != ClassFrame {
		t.Errorf("ClassOf = %v, want frame", got)
	}
	if !IsFatal(err) {
		t.Error("IsFatal = false for classified error")
	}
	msg := err.Error()
	for _, want := range []string{"frame", "submit", "fence 41", "frame 7", "device lost"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, missing %q", msg, want)
		}
	}

	// Inner classification wins.
	outer := Wrap(ClassResize, "resize", 0, 0, fmt.Errorf("context: %w", err))
	if got := ClassOf(outer); got != ClassFrame {
		t.Errorf("ClassOf(rewrapped) = %v, want frame", got)
	}
}

func TestErrorWithoutFrame(t *testing.T) {
	err := Wrap(ClassInit, "create fence", 0, 0, errors.New("boom"))
	if strings.Contains(err.Error(), "frame 0") {
		t.Errorf("Error() = %q, should omit zero frame", err.Error())
	}
}

func TestClassOfPlainError(t *testing.T) {
	if ClassOf(errors.New("x")) != 0 {
		t.Error("ClassOf(plain) != 0")
	}
	if IsFatal(nil) {
		t.Error("IsFatal(nil) = true")
	}
}

func TestClassString(t *testing.T) {
	if ClassInit.String() != "init" || ClassResize.String() != "resize" || ClassFrame.String() != "frame" {
		t.Error("unexpected class names")
	}
	if Class(9).String() != "Class(9)" {
		t.Errorf("Class(9).String() = %q", Class(9).String())
	}
}

func TestDefaultSwapchainDesc(t *testing.T) {
	d := DefaultSwapchainDesc(nil, 1280, 720)
	if d.BufferCount != 2 || d.SampleCount != 1 || d.Format != DefaultFormat {
		t.Errorf("DefaultSwapchainDesc = %+v", d)
	}
}
