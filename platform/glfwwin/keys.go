package glfwwin

import (
	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/gogpu/framepipe/event"
)

var glfwToKey = map[glfw.Key]event.Key{
	glfw.KeyEscape:    event.KeyEscape,
	glfw.KeySpace:     event.KeySpace,
	glfw.KeyEnter:     event.KeyEnter,
	glfw.KeyKPEnter:   event.KeyEnter,
	glfw.KeyTab:       event.KeyTab,
	glfw.KeyBackspace: event.KeyBackspace,
	glfw.KeyPause:     event.KeyPause,
}

// keyOf maps a GLFW key to an event key.
func keyOf(k glfw.Key) (event.Key, bool) {
	switch {
	case k >= glfw.Key0 && k <= glfw.Key9:
		return event.Key0 + event.Key(k-glfw.Key0), true
	case k >= glfw.KeyKP0 && k <= glfw.KeyKP9:
		return event.Key0 + event.Key(k-glfw.KeyKP0), true
	case k >= glfw.KeyA && k <= glfw.KeyZ:
		return event.KeyA + event.Key(k-glfw.KeyA), true
	case k >= glfw.KeyF1 && k <= glfw.KeyF12:
		return event.KeyF1 + event.Key(k-glfw.KeyF1), true
	}
	key, ok := glfwToKey[k]
	return key, ok
}
