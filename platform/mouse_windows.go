//go:build windows

package platform

import (
	"fmt"
	"unsafe"
)

var (
	getCursorPos          = user32.NewProc("GetCursorPos")
	systemParametersInfoW = user32.NewProc("SystemParametersInfoW")
)

const (
	spiGetMouse      = 0x0003
	spiSetMouse      = 0x0004
	spiGetMouseSpeed = 0x0070
	spiSetMouseSpeed = 0x0071
	spifSendChange   = 0x0002
)

type point struct {
	x, y int32
}

// WindowsCursor implements Cursor with GetCursorPos.
type WindowsCursor struct{}

// NewCursor creates a new cursor reader
func NewCursor() Cursor {
	return &WindowsCursor{}
}

// CursorPos returns the pointer position in screen pixels.
func (c *WindowsCursor) CursorPos() (int, int, error) {
	var p point
	ret, _, err := getCursorPos.Call(uintptr(unsafe.Pointer(&p)))
	if ret == 0 {
		return 0, 0, fmt.Errorf("GetCursorPos failed: %w", err)
	}
	return int(p.x), int(p.y), nil
}

// WindowsMouseSettings implements MouseSettings through SystemParametersInfo.
// Changes are broadcast but never written to the user profile.
type WindowsMouseSettings struct{}

// NewMouseSettings creates a new pointer settings controller
func NewMouseSettings() MouseSettings {
	return &WindowsMouseSettings{}
}

// Normalize sets the pointer speed and turns acceleration off. The returned
// function puts the previous values back.
func (m *WindowsMouseSettings) Normalize(speed int) (func() error, error) {
	var oldSpeed uint32
	if ret, _, err := systemParametersInfoW.Call(spiGetMouseSpeed, 0, uintptr(unsafe.Pointer(&oldSpeed)), 0); ret == 0 {
		return nil, fmt.Errorf("failed to read mouse speed: %w", err)
	}

	var oldAccel [3]int32
	if ret, _, err := systemParametersInfoW.Call(spiGetMouse, 0, uintptr(unsafe.Pointer(&oldAccel)), 0); ret == 0 {
		return nil, fmt.Errorf("failed to read mouse acceleration: %w", err)
	}

	if err := setMouse(uint32(speed), [3]int32{0, 0, 0}); err != nil {
		// Partial changes are rolled back before reporting.
		_ = setMouse(oldSpeed, oldAccel)
		return nil, err
	}

	return func() error {
		return setMouse(oldSpeed, oldAccel)
	}, nil
}

func setMouse(speed uint32, accel [3]int32) error {
	if ret, _, err := systemParametersInfoW.Call(spiSetMouseSpeed, 0, uintptr(speed), spifSendChange); ret == 0 {
		return fmt.Errorf("failed to set mouse speed: %w", err)
	}
	if ret, _, err := systemParametersInfoW.Call(spiSetMouse, 0, uintptr(unsafe.Pointer(&accel)), spifSendChange); ret == 0 {
		return fmt.Errorf("failed to set mouse acceleration: %w", err)
	}
	return nil
}
