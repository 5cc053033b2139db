// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package halgpu

import "github.com/gogpu/framepipe/backend"

func init() {
	backend.Register(backend.BackendHAL, func(backend.Options) (backend.Device, error) {
		return Open(Options{})
	})
}
