//go:build windows

package glfwwin

import "unsafe"

// NativeHandles returns the HWND of the window. The module instance is
// looked up by the surface itself.
func (w *Window) NativeHandles() (display, window uintptr, err error) {
	return 0, uintptr(unsafe.Pointer(w.win.GetWin32Window())), nil
}
