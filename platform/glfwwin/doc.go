// Package glfwwin provides the desktop window of the frame pipeline, built
// on GLFW with no client API so a Vulkan, Metal or DX12 surface can be
// attached.
//
// GLFW callbacks only receive the *glfw.Window; they are routed to the
// owning driver through an event.Registry keyed by the window handle and
// normalized to event.Event values:
//
//   - focus gained and lost become Activate and Deactivate
//   - framebuffer size changes become Size, bracketed by EnterResize and
//     ExitResize once the size has been stable for the settle delay
//   - iconify becomes a minimized Size, restore a Size with the new size
//   - key presses become KeyDown
//   - the close button becomes Destroy
//
// GLFW must be used from the main thread; the package locks it in init.
package glfwwin
