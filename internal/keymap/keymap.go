// Package keymap translates raw evdev key codes into canonical keys.
//
// Translation is a pure, total function over the evdev code space: every
// code yields a Key, unknown codes yield the Unknown sentinel. There is no
// hidden state, so Translate is safe from any goroutine.
package keymap

import (
	evdev "github.com/holoplot/go-evdev"
)

// UnknownLabel is the display label of the sentinel key.
const UnknownLabel = "Unknown"

// Key is the layout-independent identity of a key: the evdev code, a
// human-readable label, and whether the key is a modifier.
type Key struct {
	Code     evdev.EvCode
	Label    string
	Modifier bool
}

// IsUnknown reports whether k is the sentinel for an unrecognized code.
func (k Key) IsUnknown() bool {
	return k.Label == UnknownLabel
}

// Translate maps an evdev key code to its canonical Key. Codes with a
// curated label use it; codes known to evdev but not curated fall back to
// the evdev name with its KEY_ prefix stripped; anything else becomes the
// Unknown sentinel.
func Translate(code evdev.EvCode) Key {
	if label, ok := labels[code]; ok {
		return Key{Code: code, Label: label, Modifier: IsModifier(code)}
	}
	if name, ok := evdev.KEYToString[code]; ok {
		return Key{Code: code, Label: trimKeyPrefix(name), Modifier: IsModifier(code)}
	}
	return Key{Code: code, Label: UnknownLabel}
}

// IsModifier reports whether code is a modifier key. Modifiers are shown
// only while physically held and never decay by timeout.
func IsModifier(code evdev.EvCode) bool {
	switch code {
	case evdev.KEY_LEFTCTRL, evdev.KEY_RIGHTCTRL,
		evdev.KEY_LEFTSHIFT, evdev.KEY_RIGHTSHIFT,
		evdev.KEY_LEFTALT, evdev.KEY_RIGHTALT,
		evdev.KEY_LEFTMETA, evdev.KEY_RIGHTMETA:
		return true
	}
	return false
}

// FromName resolves an evdev key name (e.g. "KEY_CAPSLOCK") to its code.
// Used for the ignored-keys configuration list.
func FromName(name string) (evdev.EvCode, bool) {
	code, ok := evdev.KEYFromString[name]
	return code, ok
}

func trimKeyPrefix(name string) string {
	const prefix = "KEY_"
	if len(name) > len(prefix) && name[:len(prefix)] == prefix {
		return name[len(prefix):]
	}
	return name
}

// labels holds curated display labels. Everything not listed falls back to
// the stripped evdev name.
var labels = map[evdev.EvCode]string{
	evdev.KEY_LEFTCTRL:   "Ctrl",
	evdev.KEY_RIGHTCTRL:  "Ctrl",
	evdev.KEY_LEFTSHIFT:  "Shift",
	evdev.KEY_RIGHTSHIFT: "Shift",
	evdev.KEY_LEFTALT:    "Alt",
	evdev.KEY_RIGHTALT:   "AltGr",
	evdev.KEY_LEFTMETA:   "Super",
	evdev.KEY_RIGHTMETA:  "Super",
	evdev.KEY_CAPSLOCK:   "Caps",

	evdev.KEY_ESC:       "Esc",
	evdev.KEY_TAB:       "Tab",
	evdev.KEY_BACKSPACE: "Backspace",
	evdev.KEY_ENTER:     "Enter",
	evdev.KEY_SPACE:     "Space",
	evdev.KEY_INSERT:    "Ins",
	evdev.KEY_DELETE:    "Del",
	evdev.KEY_HOME:      "Home",
	evdev.KEY_END:       "End",
	evdev.KEY_PAGEUP:    "PgUp",
	evdev.KEY_PAGEDOWN:  "PgDn",
	evdev.KEY_UP:        "Up",
	evdev.KEY_DOWN:      "Down",
	evdev.KEY_LEFT:      "Left",
	evdev.KEY_RIGHT:     "Right",

	evdev.KEY_0: "0",
	evdev.KEY_1: "1",
	evdev.KEY_2: "2",
	evdev.KEY_3: "3",
	evdev.KEY_4: "4",
	evdev.KEY_5: "5",
	evdev.KEY_6: "6",
	evdev.KEY_7: "7",
	evdev.KEY_8: "8",
	evdev.KEY_9: "9",

	evdev.KEY_A: "A",
	evdev.KEY_B: "B",
	evdev.KEY_C: "C",
	evdev.KEY_D: "D",
	evdev.KEY_E: "E",
	evdev.KEY_F: "F",
	evdev.KEY_G: "G",
	evdev.KEY_H: "H",
	evdev.KEY_I: "I",
	evdev.KEY_J: "J",
	evdev.KEY_K: "K",
	evdev.KEY_L: "L",
	evdev.KEY_M: "M",
	evdev.KEY_N: "N",
	evdev.KEY_O: "O",
	evdev.KEY_P: "P",
	evdev.KEY_Q: "Q",
	evdev.KEY_R: "R",
	evdev.KEY_S: "S",
	evdev.KEY_T: "T",
	evdev.KEY_U: "U",
	evdev.KEY_V: "V",
	evdev.KEY_W: "W",
	evdev.KEY_X: "X",
	evdev.KEY_Y: "Y",
	evdev.KEY_Z: "Z",

	evdev.KEY_MINUS:      "-",
	evdev.KEY_EQUAL:      "=",
	evdev.KEY_LEFTBRACE:  "[",
	evdev.KEY_RIGHTBRACE: "]",
	evdev.KEY_SEMICOLON:  ";",
	evdev.KEY_APOSTROPHE: "'",
	evdev.KEY_GRAVE:      "`",
	evdev.KEY_BACKSLASH:  "\\",
	evdev.KEY_COMMA:      ",",
	evdev.KEY_DOT:        ".",
	evdev.KEY_SLASH:      "/",

	evdev.KEY_NUMLOCK:    "NumLock",
	evdev.KEY_KP0:        "Num0",
	evdev.KEY_KP1:        "Num1",
	evdev.KEY_KP2:        "Num2",
	evdev.KEY_KP3:        "Num3",
	evdev.KEY_KP4:        "Num4",
	evdev.KEY_KP5:        "Num5",
	evdev.KEY_KP6:        "Num6",
	evdev.KEY_KP7:        "Num7",
	evdev.KEY_KP8:        "Num8",
	evdev.KEY_KP9:        "Num9",
	evdev.KEY_KPPLUS:     "Num+",
	evdev.KEY_KPMINUS:    "Num-",
	evdev.KEY_KPASTERISK: "Num*",
	evdev.KEY_KPSLASH:    "Num/",
	evdev.KEY_KPDOT:      "Num.",
	evdev.KEY_KPENTER:    "NumEnter",

	evdev.KEY_MUTE:         "Mute",
	evdev.KEY_VOLUMEDOWN:   "Vol-",
	evdev.KEY_VOLUMEUP:     "Vol+",
	evdev.KEY_PLAYPAUSE:    "Play/Pause",
	evdev.KEY_STOPCD:       "Stop",
	evdev.KEY_PREVIOUSSONG: "Prev",
	evdev.KEY_NEXTSONG:     "Next",

	evdev.KEY_PRINT:      "Print",
	evdev.KEY_SCROLLLOCK: "ScrollLock",
	evdev.KEY_PAUSE:      "Pause",
	evdev.KEY_SYSRQ:      "SysRq",
}
