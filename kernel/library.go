// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package kernel

import (
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/framepipe"
	"github.com/gogpu/framepipe/gpu"
)

// Library holds a set of kernels for one device and renders with the
// selected one. Kernels are compiled on first selection.
//
// Library is itself an Invoker.
type Library struct {
	mu       sync.Mutex
	compiler Compiler
	specs    []Spec
	invokers []Invoker
	current  int
}

// NewLibrary creates a library over specs and selects the first one.
// It compiles the first kernel eagerly so that a broken shader is an
// initialization failure rather than a frame failure.
func NewLibrary(c Compiler, specs ...Spec) (*Library, error) {
	if len(specs) == 0 {
		specs = Builtins()
	}
	l := &Library{
		compiler: c,
		specs:    specs,
		invokers: make([]Invoker, len(specs)),
	}
	if err := l.Select(0); err != nil {
		return nil, err
	}
	return l, nil
}

// Len returns the number of kernels.
func (l *Library) Len() int {
	return len(l.specs)
}

// Specs returns the kernels in selection order.
func (l *Library) Specs() []Spec {
	return append([]Spec(nil), l.specs...)
}

// Current returns the index of the selected kernel.
func (l *Library) Current() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

// Name returns the name of the selected kernel.
func (l *Library) Name() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.specs[l.current].Name
}

// Select makes kernel i current, compiling it if needed. On failure the
// selection is unchanged.
func (l *Library) Select(i int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i < 0 || i >= len(l.specs) {
		return fmt.Errorf("%w: index %d of %d", ErrUnknownKernel, i, len(l.specs))
	}
	if l.invokers[i] == nil {
		inv, err := l.compiler.Compile(l.specs[i])
		if err != nil {
			return fmt.Errorf("compile kernel %q: %w", l.specs[i].Name, err)
		}
		l.invokers[i] = inv
	}
	if l.current != i {
		framepipe.Logger().Info("kernel: selected", "name", l.specs[i].Name)
	}
	l.current = i
	return nil
}

// SelectName makes the kernel with the given name current.
func (l *Library) SelectName(name string) error {
	for i, s := range l.specs {
		if s.Name == name {
			return l.Select(i)
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownKernel, name)
}

// Render renders with the selected kernel.
func (l *Library) Render(elapsed time.Duration, target gpu.Image) error {
	l.mu.Lock()
	inv := l.invokers[l.current]
	l.mu.Unlock()
	return inv.Render(elapsed, target)
}
