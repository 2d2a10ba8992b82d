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
	registerClassExW        = user32.NewProc("RegisterClassExW")
	createWindowExW         = user32.NewProc("CreateWindowExW")
	destroyWindow           = user32.NewProc("DestroyWindow")
	defWindowProcW          = user32.NewProc("DefWindowProcW")
	registerRawInputDevices = user32.NewProc("RegisterRawInputDevices")
	getRawInputData         = user32.NewProc("GetRawInputData")
	postMessageW            = user32.NewProc("PostMessageW")
	postQuitMessage         = user32.NewProc("PostQuitMessage")
	getModuleHandleW        = kernel32.NewProc("GetModuleHandleW")
)

const (
	hwndMessage    = ^uintptr(2) // (HWND)-3
	wmInput        = 0x00FF
	wmClose        = 0x0010
	ridInput       = 0x10000003
	ridevInputSink = 0x00000100
	ridevRemove    = 0x00000001
	rimTypeMouse   = 0
	mouseMoveRel   = 0x00
	usagePageDesk  = 0x01
	usageMouse     = 0x02
	rawInputClass  = "KeyRecorderRawInput"
)

type wndClassEx struct {
	cbSize        uint32
	style         uint32
	lpfnWndProc   uintptr
	cbClsExtra    int32
	cbWndExtra    int32
	hInstance     uintptr
	hIcon         uintptr
	hCursor       uintptr
	hbrBackground uintptr
	lpszMenuName  *uint16
	lpszClassName *uint16
	hIconSm       uintptr
}

type rawInputDevice struct {
	usUsagePage uint16
	usUsage     uint16
	dwFlags     uint32
	hwndTarget  uintptr
}

type rawInputHeader struct {
	dwType  uint32
	dwSize  uint32
	hDevice uintptr
	wParam  uintptr
}

type rawMouse struct {
	usFlags            uint16
	_                  uint16
	usButtonFlags      uint16
	usButtonData       uint16
	ulRawButtons       uint32
	lLastX             int32
	lLastY             int32
	ulExtraInformation uint32
}

type rawInput struct {
	header rawInputHeader
	mouse  rawMouse
}

var registerClassOnce sync.Once

// WindowsRawMouse implements RawMouse with a message-only window that
// receives WM_INPUT in the background.
type WindowsRawMouse struct {
	mu   sync.Mutex
	hwnd uintptr
	fn   func(dx, dy int)
}

// NewRawMouse creates a new raw mouse source
func NewRawMouse() RawMouse {
	return &WindowsRawMouse{}
}

// Register starts delivering relative motion to fn until ctx is done.
func (r *WindowsRawMouse) Register(ctx context.Context, fn func(dx, dy int)) error {
	r.mu.Lock()
	if r.hwnd != 0 {
		r.mu.Unlock()
		return fmt.Errorf("%w: already registered", ErrRawInputRegistration)
	}
	r.fn = fn
	r.mu.Unlock()

	errCh := make(chan error, 1)
	go r.pump(errCh)

	if err := <-errCh; err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		r.mu.Lock()
		hwnd := r.hwnd
		r.mu.Unlock()
		postMessageW.Call(hwnd, wmClose, 0, 0)
	}()

	return nil
}

func (r *WindowsRawMouse) pump(errCh chan<- error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	className, _ := windows.UTF16PtrFromString(rawInputClass)
	hInstance, _, _ := getModuleHandleW.Call(0)

	var classErr error
	registerClassOnce.Do(func() {
		wc := wndClassEx{
			lpfnWndProc:   windows.NewCallback(r.wndProc),
			hInstance:     hInstance,
			lpszClassName: className,
		}
		wc.cbSize = uint32(unsafe.Sizeof(wc))
		if ret, _, err := registerClassExW.Call(uintptr(unsafe.Pointer(&wc))); ret == 0 {
			classErr = fmt.Errorf("%w: RegisterClassEx: %v", ErrRawInputRegistration, err)
		}
	})
	if classErr != nil {
		errCh <- classErr
		return
	}

	hwnd, _, err := createWindowExW.Call(
		0,
		uintptr(unsafe.Pointer(className)),
		0, 0, 0, 0, 0, 0,
		hwndMessage,
		0, hInstance, 0,
	)
	if hwnd == 0 {
		errCh <- fmt.Errorf("%w: CreateWindowEx: %v", ErrRawInputRegistration, err)
		return
	}

	dev := rawInputDevice{
		usUsagePage: usagePageDesk,
		usUsage:     usageMouse,
		dwFlags:     ridevInputSink,
		hwndTarget:  hwnd,
	}
	if ret, _, err := registerRawInputDevices.Call(
		uintptr(unsafe.Pointer(&dev)), 1, unsafe.Sizeof(dev),
	); ret == 0 {
		destroyWindow.Call(hwnd)
		errCh <- fmt.Errorf("%w: RegisterRawInputDevices: %v", ErrRawInputRegistration, err)
		return
	}

	r.mu.Lock()
	r.hwnd = hwnd
	r.mu.Unlock()

	errCh <- nil

	var m msg
	for {
		ret, _, _ := getMessage.Call(uintptr(unsafe.Pointer(&m)), 0, 0, 0)
		if int32(ret) <= 0 {
			break
		}
		translateMessage.Call(uintptr(unsafe.Pointer(&m)))
		dispatchMessage.Call(uintptr(unsafe.Pointer(&m)))
	}

	dev.dwFlags = ridevRemove
	dev.hwndTarget = 0
	registerRawInputDevices.Call(uintptr(unsafe.Pointer(&dev)), 1, unsafe.Sizeof(dev))

	r.mu.Lock()
	r.hwnd = 0
	r.mu.Unlock()
}

func (r *WindowsRawMouse) wndProc(hwnd uintptr, message uint32, wParam, lParam uintptr) uintptr {
	switch message {
	case wmInput:
		r.handleInput(lParam)
	case wmClose:
		destroyWindow.Call(hwnd)
		postQuitMessage.Call(0)
		return 0
	}
	ret, _, _ := defWindowProcW.Call(hwnd, uintptr(message), wParam, lParam)
	return ret
}

func (r *WindowsRawMouse) handleInput(lParam uintptr) {
	var ri rawInput
	size := uint32(unsafe.Sizeof(ri))
	ret, _, _ := getRawInputData.Call(
		lParam,
		ridInput,
		uintptr(unsafe.Pointer(&ri)),
		uintptr(unsafe.Pointer(&size)),
		unsafe.Sizeof(rawInputHeader{}),
	)
	if int32(ret) <= 0 {
		return
	}

	if ri.header.dwType != rimTypeMouse || ri.mouse.usFlags != mouseMoveRel {
		return
	}
	if ri.mouse.lLastX == 0 && ri.mouse.lLastY == 0 {
		return
	}

	r.mu.Lock()
	fn := r.fn
	r.mu.Unlock()
	if fn != nil {
		fn(int(ri.mouse.lLastX), int(ri.mouse.lLastY))
	}
}
