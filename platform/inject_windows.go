//go:build windows

package platform

import (
	"fmt"
	"unsafe"

	"markestedt/keyrecorder/keymap"
)

var (
	sendInput        = user32.NewProc("SendInput")
	getSystemMetrics = user32.NewProc("GetSystemMetrics")
)

const (
	inputMouse    = 0
	inputKeyboard = 1

	keyeventfExtendedKey = 0x0001
	keyeventfKeyup       = 0x0002
	keyeventfScancode    = 0x0008

	mouseeventfMove       = 0x0001
	mouseeventfLeftDown   = 0x0002
	mouseeventfLeftUp     = 0x0004
	mouseeventfRightDown  = 0x0008
	mouseeventfRightUp    = 0x0010
	mouseeventfMiddleDown = 0x0020
	mouseeventfMiddleUp   = 0x0040
	mouseeventfXDown      = 0x0080
	mouseeventfXUp        = 0x0100
	mouseeventfAbsolute   = 0x8000

	xbutton1 = 0x0001
	xbutton2 = 0x0002

	smCxScreen = 0
	smCyScreen = 1
)

type keyboardInput struct {
	wVk         uint16
	wScan       uint16
	dwFlags     uint32
	time        uint32
	dwExtraInfo uintptr
}

type mouseInput struct {
	dx          int32
	dy          int32
	mouseData   uint32
	dwFlags     uint32
	time        uint32
	dwExtraInfo uintptr
}

type input struct {
	inputType uint32
	ki        keyboardInput
	padding   [8]byte // Padding to match C struct size
}

type mInput struct {
	inputType uint32
	mi        mouseInput
}

// WindowsInjector implements the Injector interface with SendInput.
type WindowsInjector struct{}

// NewInjector creates a new Windows injector instance
func NewInjector() Injector {
	return &WindowsInjector{}
}

// Key sends a scan code press or release. Scan codes rather than virtual keys
// reach games and elevated windows that read hardware codes.
func (p *WindowsInjector) Key(code uint16, release bool) error {
	flags := uint32(keyeventfScancode)
	scan := code
	if keymap.IsExtended(code) {
		flags |= keyeventfExtendedKey
		scan = code & 0x7F
	}
	if release {
		flags |= keyeventfKeyup
	}

	in := input{
		inputType: inputKeyboard,
		ki: keyboardInput{
			wScan:   scan,
			dwFlags: flags,
		},
	}
	return send(unsafe.Pointer(&in), unsafe.Sizeof(in))
}

// MouseRelative moves the pointer by a raw delta.
func (p *WindowsInjector) MouseRelative(dx, dy int) error {
	return sendMouse(mouseInput{dx: int32(dx), dy: int32(dy), dwFlags: mouseeventfMove})
}

// MouseAbsolute moves the pointer to a screen pixel, normalized to the
// 0..65535 range SendInput expects.
func (p *WindowsInjector) MouseAbsolute(x, y int) error {
	w, h := screenSize()
	if w <= 1 || h <= 1 {
		return fmt.Errorf("invalid screen size %dx%d", w, h)
	}
	return sendMouse(mouseInput{
		dx:      int32(x * 65535 / (w - 1)),
		dy:      int32(y * 65535 / (h - 1)),
		dwFlags: mouseeventfMove | mouseeventfAbsolute,
	})
}

// MouseButton presses or releases a named mouse button.
func (p *WindowsInjector) MouseButton(button string, release bool) error {
	var mi mouseInput
	switch button {
	case keymap.MouseLeft:
		mi.dwFlags = pick(release, mouseeventfLeftUp, mouseeventfLeftDown)
	case keymap.MouseRight:
		mi.dwFlags = pick(release, mouseeventfRightUp, mouseeventfRightDown)
	case keymap.MouseMiddle:
		mi.dwFlags = pick(release, mouseeventfMiddleUp, mouseeventfMiddleDown)
	case keymap.MouseSide1:
		mi.dwFlags = pick(release, mouseeventfXUp, mouseeventfXDown)
		mi.mouseData = xbutton1
	case keymap.MouseSide2:
		mi.dwFlags = pick(release, mouseeventfXUp, mouseeventfXDown)
		mi.mouseData = xbutton2
	default:
		return fmt.Errorf("unknown mouse button: %s", button)
	}
	return sendMouse(mi)
}

func pick(release bool, up, down uint32) uint32 {
	if release {
		return up
	}
	return down
}

func sendMouse(mi mouseInput) error {
	in := mInput{inputType: inputMouse, mi: mi}
	return send(unsafe.Pointer(&in), unsafe.Sizeof(in))
}

func send(in unsafe.Pointer, size uintptr) error {
	ret, _, err := sendInput.Call(1, uintptr(in), size)
	if ret == 0 {
		return fmt.Errorf("SendInput failed: %w", err)
	}
	return nil
}

func screenSize() (int, int) {
	w, _, _ := getSystemMetrics.Call(smCxScreen)
	h, _, _ := getSystemMetrics.Call(smCyScreen)
	return int(int32(w)), int(int32(h))
}
