//go:build !windows && !(linux && !wayland)

package glfwwin

import (
	"fmt"
	"runtime"
)

// NativeHandles is not supported on this platform.
func (w *Window) NativeHandles() (display, window uintptr, err error) {
	return 0, 0, fmt.Errorf("glfwwin: native surface handles are not supported on %s", runtime.GOOS)
}
