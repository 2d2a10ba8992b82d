//go:build windows

package platform

import (
	"sync"

	"markestedt/keyrecorder/keymap"
)

var (
	getAsyncKeyState = user32.NewProc("GetAsyncKeyState")
	mapVirtualKeyW   = user32.NewProc("MapVirtualKeyW")
)

const mapvkVscToVkEx = 3

// WindowsKeyState implements KeyState with GetAsyncKeyState. Scan codes are
// translated to virtual keys once and cached.
type WindowsKeyState struct {
	mu  sync.Mutex
	vks map[string]uintptr
}

// NewKeyState creates a new key state reader
func NewKeyState() KeyState {
	return &WindowsKeyState{vks: make(map[string]uintptr)}
}

// IsPressed reports whether the key is down right now.
func (s *WindowsKeyState) IsPressed(k keymap.Key) bool {
	vk := s.vk(k)
	if vk == 0 {
		return false
	}
	r, _, _ := getAsyncKeyState.Call(vk)
	return r&0x8000 != 0
}

func (s *WindowsKeyState) vk(k keymap.Key) uintptr {
	s.mu.Lock()
	defer s.mu.Unlock()

	if vk, ok := s.vks[k.Name]; ok {
		return vk
	}

	var vk uintptr
	switch {
	case k.IsMouse():
		vk = uintptr(k.Code)
	case k.SideVK != 0:
		vk = uintptr(k.SideVK)
	default:
		scan := uintptr(k.ScanCode())
		if k.Extended() {
			scan |= 0xE000
		}
		vk, _, _ = mapVirtualKeyW.Call(scan, mapvkVscToVkEx)
	}
	s.vks[k.Name] = vk
	return vk
}
