package platform

import (
	"context"
	"errors"

	"markestedt/keyrecorder/keymap"
)

var (
	// ErrHookInstall is returned when the global keyboard hook cannot be set.
	ErrHookInstall = errors.New("failed to install keyboard hook")
	// ErrRawInputRegistration is returned when raw mouse input is unavailable.
	ErrRawInputRegistration = errors.New("failed to register raw mouse input")
	// ErrUnsupported is returned on platforms without input injection.
	ErrUnsupported = errors.New("input capture and injection are not supported on this platform")
)

// Hotkeys holds the virtual key codes of the two toggle hotkeys.
type Hotkeys struct {
	Record int
	Play   int
}

// EventType represents the type of hotkey event
type EventType int

const (
	HotkeyRecord EventType = iota
	HotkeyPlay
)

func (t EventType) String() string {
	if t == HotkeyRecord {
		return "record"
	}
	return "play"
}

// Event represents a hotkey event
type Event struct {
	Type EventType
}

// Hotkey provides global hotkey detection
type Hotkey interface {
	Listen(ctx context.Context, keys Hotkeys) (<-chan Event, error)
}

// RawMouse delivers relative mouse motion for the lifetime of ctx.
type RawMouse interface {
	Register(ctx context.Context, fn func(dx, dy int)) error
}

// Injector emits single synthetic input events.
type Injector interface {
	Key(code uint16, release bool) error
	MouseRelative(dx, dy int) error
	MouseAbsolute(x, y int) error
	MouseButton(button string, release bool) error
}

// KeyState reports whether a key or mouse button is physically down.
type KeyState interface {
	IsPressed(k keymap.Key) bool
}

// Cursor reads the pointer position in screen coordinates.
type Cursor interface {
	CursorPos() (x, y int, err error)
}

// MouseSettings changes pointer speed and acceleration.
type MouseSettings interface {
	Normalize(speed int) (restore func() error, err error)
}
