package event

import (
	"fmt"
	"strings"
)

// Key is a platform-independent key code.
type Key uint16

// Keys. Letters and digits are contiguous.
const (
	KeyUnknown Key = iota
	KeyEscape
	KeySpace
	KeyEnter
	KeyTab
	KeyBackspace
	KeyPause

	Key0
	Key1
	Key2
	Key3
	Key4
	Key5
	Key6
	Key7
	Key8
	Key9

	KeyA
	KeyB
	KeyC
	KeyD
	KeyE
	KeyF
	KeyG
	KeyH
	KeyI
	KeyJ
	KeyK
	KeyL
	KeyM
	KeyN
	KeyO
	KeyP
	KeyQ
	KeyR
	KeyS
	KeyT
	KeyU
	KeyV
	KeyW
	KeyX
	KeyY
	KeyZ

	KeyF1
	KeyF2
	KeyF3
	KeyF4
	KeyF5
	KeyF6
	KeyF7
	KeyF8
	KeyF9
	KeyF10
	KeyF11
	KeyF12

	keyCount
)

var namedKeys = map[Key]string{
	KeyEscape:    "escape",
	KeySpace:     "space",
	KeyEnter:     "enter",
	KeyTab:       "tab",
	KeyBackspace: "backspace",
	KeyPause:     "pause",
}

// String returns the key name as accepted by ParseKey.
func (k Key) String() string {
	switch {
	case k >= Key0 && k <= Key9:
		return string(rune('0' + k - Key0))
	case k >= KeyA && k <= KeyZ:
		return string(rune('a' + k - KeyA))
	case k >= KeyF1 && k <= KeyF12:
		return fmt.Sprintf("f%d", k-KeyF1+1)
	}
	if name, ok := namedKeys[k]; ok {
		return name
	}
	return "unknown"
}

// Digit returns the digit of a number key, or -1.
func (k Key) Digit() int {
	if k >= Key0 && k <= Key9 {
		return int(k - Key0)
	}
	return -1
}

// ParseKey returns the key with the given name. Names are case-insensitive:
// "escape", "space", "p", "7", "f12", "esc" and "spacebar" are accepted.
func ParseKey(name string) (Key, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	switch n {
	case "esc":
		return KeyEscape, nil
	case "spacebar":
		return KeySpace, nil
	case "return":
		return KeyEnter, nil
	}
	for k := KeyUnknown + 1; k < keyCount; k++ {
		if k.String() == n {
			return k, nil
		}
	}
	return KeyUnknown, fmt.Errorf("event: unknown key %q", name)
}
