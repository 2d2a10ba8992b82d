// Package keymap is the static catalog of recordable keys and mouse buttons.
//
// Keyboard keys are identified by DirectInput-style scan codes: the low seven
// bits are the hardware scan code and bit 0x80 marks keys that arrive with the
// E0 prefix on the wire (arrows, navigation block, right-hand modifiers...).
// Mouse buttons are identified by their Windows virtual key codes.
package keymap

import "strings"

// MouseMove is the reserved subject used for relative mouse motion events.
const MouseMove = "mouseMove"

// Device tells which code space a Key belongs to.
type Device int

const (
	Keyboard Device = iota
	Mouse
)

// Key is one entry of the catalog.
type Key struct {
	Name   string
	Code   uint16
	Device Device
	// SideVK is the side-specific virtual key used to query the state of
	// left/right modifiers, which otherwise share one legacy virtual key.
	SideVK uint16
}

// IsMouse reports whether k is a mouse button.
func (k Key) IsMouse() bool {
	return k.Device == Mouse
}

// Extended reports whether k must be injected with the extended-key flag.
func (k Key) Extended() bool {
	return k.Device == Keyboard && IsExtended(k.Code)
}

// ScanCode returns the hardware scan code without the extended marker.
func (k Key) ScanCode() uint16 {
	if k.Extended() {
		return k.Code & 0x7F
	}
	return k.Code
}

// Mouse button names.
const (
	MouseLeft   = "mouseLeft"
	MouseRight  = "mouseRight"
	MouseMiddle = "mouseMiddle"
	MouseSide1  = "mouseSide1"
	MouseSide2  = "mouseSide2"
)

// Side-specific virtual keys for the modifiers.
const (
	vkLShift   = 0xA0
	vkRShift   = 0xA1
	vkLControl = 0xA2
	vkRControl = 0xA3
	vkLMenu    = 0xA4
	vkRMenu    = 0xA5
)

var mouseButtons = []Key{
	{Name: MouseLeft, Code: 0x01, Device: Mouse},
	{Name: MouseRight, Code: 0x02, Device: Mouse},
	{Name: MouseMiddle, Code: 0x04, Device: Mouse},
	{Name: MouseSide1, Code: 0x05, Device: Mouse},
	{Name: MouseSide2, Code: 0x06, Device: Mouse},
}

var keyboard = []Key{
	{Name: "Esc", Code: 0x01},
	{Name: "1", Code: 0x02},
	{Name: "2", Code: 0x03},
	{Name: "3", Code: 0x04},
	{Name: "4", Code: 0x05},
	{Name: "5", Code: 0x06},
	{Name: "6", Code: 0x07},
	{Name: "7", Code: 0x08},
	{Name: "8", Code: 0x09},
	{Name: "9", Code: 0x0A},
	{Name: "0", Code: 0x0B},
	{Name: "-", Code: 0x0C},
	{Name: "=", Code: 0x0D},
	{Name: "BackSpace", Code: 0x0E},
	{Name: "Tab", Code: 0x0F},
	{Name: "Q", Code: 0x10},
	{Name: "W", Code: 0x11},
	{Name: "E", Code: 0x12},
	{Name: "R", Code: 0x13},
	{Name: "T", Code: 0x14},
	{Name: "Y", Code: 0x15},
	{Name: "U", Code: 0x16},
	{Name: "I", Code: 0x17},
	{Name: "O", Code: 0x18},
	{Name: "P", Code: 0x19},
	{Name: "[", Code: 0x1A},
	{Name: "]", Code: 0x1B},
	{Name: "Enter", Code: 0x1C},
	{Name: "Ctrl(Left)", Code: 0x1D, SideVK: vkLControl},
	{Name: "A", Code: 0x1E},
	{Name: "S", Code: 0x1F},
	{Name: "D", Code: 0x20},
	{Name: "F", Code: 0x21},
	{Name: "G", Code: 0x22},
	{Name: "H", Code: 0x23},
	{Name: "J", Code: 0x24},
	{Name: "K", Code: 0x25},
	{Name: "L", Code: 0x26},
	{Name: ";", Code: 0x27},
	{Name: "'", Code: 0x28},
	{Name: "`", Code: 0x29},
	{Name: "Shift(Left)", Code: 0x2A, SideVK: vkLShift},
	{Name: "\\", Code: 0x2B},
	{Name: "Z", Code: 0x2C},
	{Name: "X", Code: 0x2D},
	{Name: "C", Code: 0x2E},
	{Name: "V", Code: 0x2F},
	{Name: "B", Code: 0x30},
	{Name: "N", Code: 0x31},
	{Name: "M", Code: 0x32},
	{Name: ",", Code: 0x33},
	{Name: ".", Code: 0x34},
	{Name: "/", Code: 0x35},
	{Name: "Shift(Right)", Code: 0x36, SideVK: vkRShift},
	{Name: "*(Numpad)", Code: 0x37},
	{Name: "Alt(Left)", Code: 0x38, SideVK: vkLMenu},
	{Name: "Space", Code: 0x39},
	{Name: "Caps Lock", Code: 0x3A},
	{Name: "F1", Code: 0x3B},
	{Name: "F2", Code: 0x3C},
	{Name: "F3", Code: 0x3D},
	{Name: "F4", Code: 0x3E},
	{Name: "F5", Code: 0x3F},
	{Name: "F6", Code: 0x40},
	{Name: "F7", Code: 0x41},
	{Name: "F8", Code: 0x42},
	{Name: "F9", Code: 0x43},
	{Name: "F10", Code: 0x44},
	{Name: "Num Lock", Code: 0x45},
	{Name: "Scroll Lock", Code: 0x46},
	{Name: "7(Numpad)", Code: 0x47},
	{Name: "8(Numpad)", Code: 0x48},
	{Name: "9(Numpad)", Code: 0x49},
	{Name: "-(Numpad)", Code: 0x4A},
	{Name: "4(Numpad)", Code: 0x4B},
	{Name: "5(Numpad)", Code: 0x4C},
	{Name: "6(Numpad)", Code: 0x4D},
	{Name: "+(Numpad)", Code: 0x4E},
	{Name: "1(Numpad)", Code: 0x4F},
	{Name: "2(Numpad)", Code: 0x50},
	{Name: "3(Numpad)", Code: 0x51},
	{Name: "0(Numpad)", Code: 0x52},
	{Name: ".(Numpad)", Code: 0x53},
	{Name: "F11", Code: 0x57},
	{Name: "F12", Code: 0x58},
	{Name: "F13", Code: 0x64},
	{Name: "F14", Code: 0x65},
	{Name: "F15", Code: 0x66},
	{Name: "$", Code: 0x7D},
	{Name: "=(Numpad)", Code: 0x8D},
	{Name: "^", Code: 0x90},
	{Name: "@", Code: 0x91},
	{Name: ":", Code: 0x92},
	{Name: "_", Code: 0x93},
	{Name: "Enter(Numpad)", Code: 0x9C},
	{Name: "Ctrl(Right)", Code: 0x9D, SideVK: vkRControl},
	{Name: ",(Numpad)", Code: 0xB3},
	{Name: "/(Numpad)", Code: 0xB5},
	{Name: "Sys Rq", Code: 0xB7},
	{Name: "Alt(Right)", Code: 0xB8, SideVK: vkRMenu},
	{Name: "Pause", Code: 0xC5},
	{Name: "Home", Code: 0xC7},
	{Name: "↑", Code: 0xC8},
	{Name: "Page Up", Code: 0xC9},
	{Name: "←", Code: 0xCB},
	{Name: "→", Code: 0xCD},
	{Name: "End", Code: 0xCF},
	{Name: "↓", Code: 0xD0},
	{Name: "Page Down", Code: 0xD1},
	{Name: "Insert", Code: 0xD2},
	{Name: "Delete", Code: 0xD3},
	{Name: "Windows(Left)", Code: 0xDB},
	{Name: "Windows(Right)", Code: 0xDC},
	{Name: "Menu", Code: 0xDD},
	{Name: "Power", Code: 0xDE},
	{Name: "Sleep", Code: 0xDF},
}

var (
	byName     = make(map[string]Key, len(mouseButtons)+len(keyboard))
	byFoldName = make(map[string]Key, len(mouseButtons)+len(keyboard))
	all        []Key
)

func init() {
	all = append(all, mouseButtons...)
	all = append(all, keyboard...)
	for _, k := range all {
		byName[k.Name] = k
		byFoldName[strings.ToLower(k.Name)] = k
	}
}

// IsExtended reports whether a keyboard code carries the E0 prefix.
func IsExtended(code uint16) bool {
	switch {
	case code == 0x9C, code == 0x9D, code == 0xB5, code == 0xB7, code == 0xB8:
		return true
	case code >= 0xC5 && code <= 0xDF:
		return true
	}
	return false
}

// legacyNames maps names written by older logs onto catalog names. Those
// logs used "Windows" for three codes and only the last, 0xDF, was ever
// recorded or replayed. Accepted by Lookup, never written.
var legacyNames = map[string]string{
	"Windows": "Sleep",
}

// Lookup finds a key or mouse button by its exact name.
func Lookup(name string) (Key, bool) {
	if k, ok := byName[name]; ok {
		return k, true
	}
	if alias, ok := legacyNames[name]; ok {
		k, ok := byName[alias]
		return k, ok
	}
	return Key{}, false
}

// LookupFold finds a key ignoring case, for names typed by users in config.
func LookupFold(name string) (Key, bool) {
	k, ok := byFoldName[strings.ToLower(strings.TrimSpace(name))]
	return k, ok
}

// All returns every catalog entry, mouse buttons first.
func All() []Key {
	out := make([]Key, len(all))
	copy(out, all)
	return out
}

// Tracked returns the catalog minus the named keys (matched ignoring case).
func Tracked(exclude ...string) []Key {
	skip := make(map[string]bool, len(exclude))
	for _, name := range exclude {
		if k, ok := LookupFold(name); ok {
			skip[k.Name] = true
		}
	}

	out := make([]Key, 0, len(all))
	for _, k := range all {
		if !skip[k.Name] {
			out = append(out, k)
		}
	}
	return out
}
