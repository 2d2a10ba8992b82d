//go:build windows

package platform

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	setWindowsHookEx    = user32.NewProc("SetWindowsHookExW")
	callNextHookEx      = user32.NewProc("CallNextHookEx")
	unhookWindowsHookEx = user32.NewProc("UnhookWindowsHookEx")
	getMessage          = user32.NewProc("GetMessageW")
	translateMessage    = user32.NewProc("TranslateMessage")
	dispatchMessage     = user32.NewProc("DispatchMessageW")
	postThreadMessage   = user32.NewProc("PostThreadMessageW")
)

const (
	whKeyboardLL = 13
	wmQuit       = 0x0012
	wmKeydown    = 0x0100
	wmSyskeydown = 0x0104
)

type kbdllhookstruct struct {
	vkCode      uint32
	scanCode    uint32
	flags       uint32
	time        uint32
	dwExtraInfo uintptr
}

type msg struct {
	hwnd    uintptr
	message uint32
	wParam  uintptr
	lParam  uintptr
	time    uint32
	pt      struct{ x, y int32 }
}

// WindowsHotkey implements the Hotkey interface with one low-level keyboard
// hook for the whole process.
type WindowsHotkey struct {
	mu       sync.Mutex
	keys     Hotkeys
	events   chan Event
	hook     uintptr
	threadID uint32
}

// NewHotkey creates a new Windows hotkey listener
func NewHotkey() Hotkey {
	return &WindowsHotkey{}
}

// Listen installs the hook and reports hotkey presses until ctx is done.
func (h *WindowsHotkey) Listen(ctx context.Context, keys Hotkeys) (<-chan Event, error) {
	h.mu.Lock()
	if h.hook != 0 {
		h.mu.Unlock()
		return nil, fmt.Errorf("%w: hook already installed", ErrHookInstall)
	}
	h.keys = keys
	h.events = make(chan Event, 10)
	h.mu.Unlock()

	errCh := make(chan error, 1)
	go h.runHook(errCh)

	select {
	case err := <-errCh:
		if err != nil {
			return nil, err
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		tid := h.threadID
		h.mu.Unlock()
		postThreadMessage.Call(uintptr(tid), wmQuit, 0, 0)
	}()

	return h.events, nil
}

func (h *WindowsHotkey) runHook(errCh chan<- error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	hookProc := func(nCode int32, wParam uintptr, lParam uintptr) uintptr {
		if nCode >= 0 && (wParam == wmKeydown || wParam == wmSyskeydown) {
			kbInfo := (*kbdllhookstruct)(unsafe.Pointer(lParam))
			h.handleKeyDown(kbInfo.vkCode)
		}
		r, _, _ := callNextHookEx.Call(0, uintptr(nCode), wParam, lParam)
		return r
	}

	hook, _, err := setWindowsHookEx.Call(
		whKeyboardLL,
		windows.NewCallback(hookProc),
		0,
		0,
	)
	if hook == 0 {
		errCh <- fmt.Errorf("%w: SetWindowsHookEx: %v", ErrHookInstall, err)
		return
	}

	h.mu.Lock()
	h.hook = hook
	h.threadID = windows.GetCurrentThreadId()
	h.mu.Unlock()

	errCh <- nil

	// The hook is called from this thread's message pump.
	var m msg
	for {
		r, _, _ := getMessage.Call(uintptr(unsafe.Pointer(&m)), 0, 0, 0)
		if int32(r) <= 0 {
			break
		}
		translateMessage.Call(uintptr(unsafe.Pointer(&m)))
		dispatchMessage.Call(uintptr(unsafe.Pointer(&m)))
	}

	unhookWindowsHookEx.Call(hook)

	h.mu.Lock()
	h.hook = 0
	close(h.events)
	h.mu.Unlock()
}

// handleKeyDown runs on the hook thread and must return quickly, so events
// are dropped rather than queued when nobody is reading.
func (h *WindowsHotkey) handleKeyDown(vk uint32) {
	var evt Event
	switch int(vk) {
	case h.keys.Record:
		evt = Event{Type: HotkeyRecord}
	case h.keys.Play:
		evt = Event{Type: HotkeyPlay}
	default:
		return
	}

	select {
	case h.events <- evt:
	default:
	}
}
