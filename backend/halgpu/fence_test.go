// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package halgpu

import (
	"errors"
	"testing"
	"time"

	"github.com/gogpu/wgpu/hal"
)

// timeline is a waiter whose fence has reached a fixed value.
type timeline struct {
	reached uint64
	calls   int
	err     error
}

func (tl *timeline) Wait(_ hal.Fence, value uint64, _ time.Duration) (bool, error) {
	tl.calls++
	if tl.err != nil {
		return false, tl.err
	}
	return value <= tl.reached, nil
}

func TestReachedValue(t *testing.T) {
	tests := []struct {
		name    string
		reached uint64
		lo, hi  uint64
		want    uint64
	}{
		{"none", 3, 3, 10, 3},
		{"all", 10, 0, 10, 10},
		{"middle", 6, 2, 10, 6},
		{"first", 1, 0, 1, 1},
		{"empty range", 5, 7, 7, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tl := &timeline{reached: tt.reached}
			if got := reachedValue(tl, nil, tt.lo, tt.hi); got != tt.want {
				t.Errorf("reachedValue(lo=%d, hi=%d) = %d, want %d", tt.lo, tt.hi, got, tt.want)
			}
		})
	}
}

func TestReachedValueLogarithmic(t *testing.T) {
	tl := &timeline{reached: 700}
	if got := reachedValue(tl, nil, 0, 1024); got != 700 {
		t.Fatalf("reachedValue = %d, want 700", got)
	}
	if tl.calls > 11 {
		t.Errorf("reachedValue polled %d times, want at most 11", tl.calls)
	}
}

func TestReachedValueError(t *testing.T) {
	tl := &timeline{reached: 9, err: errors.New("device lost")}
	if got := reachedValue(tl, nil, 4, 9); got != 4 {
		t.Errorf("reachedValue with failing waits = %d, want 4", got)
	}
}
