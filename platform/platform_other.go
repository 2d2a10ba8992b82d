//go:build !windows

package platform

import (
	"context"

	"markestedt/keyrecorder/keymap"
)

type unsupported struct{}

// NewHotkey returns a listener that always fails off Windows.
func NewHotkey() Hotkey { return unsupported{} }

// NewRawMouse returns a raw mouse source that always fails off Windows.
func NewRawMouse() RawMouse { return unsupported{} }

// NewInjector returns an injector that always fails off Windows.
func NewInjector() Injector { return unsupported{} }

// NewKeyState returns a key state that reports nothing pressed.
func NewKeyState() KeyState { return unsupported{} }

// NewCursor returns a cursor reader that always fails off Windows.
func NewCursor() Cursor { return unsupported{} }

// NewMouseSettings returns a settings controller that always fails off Windows.
func NewMouseSettings() MouseSettings { return unsupported{} }

func (unsupported) Listen(context.Context, Hotkeys) (<-chan Event, error) {
	return nil, ErrUnsupported
}

func (unsupported) Register(context.Context, func(dx, dy int)) error { return ErrUnsupported }

func (unsupported) Key(uint16, bool) error              { return ErrUnsupported }
func (unsupported) MouseRelative(int, int) error        { return ErrUnsupported }
func (unsupported) MouseAbsolute(int, int) error        { return ErrUnsupported }
func (unsupported) MouseButton(string, bool) error      { return ErrUnsupported }
func (unsupported) IsPressed(keymap.Key) bool           { return false }
func (unsupported) CursorPos() (int, int, error)        { return 0, 0, ErrUnsupported }
func (unsupported) Normalize(int) (func() error, error) { return nil, ErrUnsupported }

// TimerResolution is a no-op off Windows.
type TimerResolution struct{}

// Acquire does nothing and returns a no-op release.
func (TimerResolution) Acquire() func() { return func() {} }
