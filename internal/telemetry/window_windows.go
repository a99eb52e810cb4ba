//go:build windows
// +build windows

package telemetry

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"appwatch/internal/shared"

	"golang.org/x/sys/windows"
)

var (
	modUser32                    = windows.NewLazySystemDLL("user32.dll")
	procEnumWindows              = modUser32.NewProc("EnumWindows")
	procIsWindowVisible          = modUser32.NewProc("IsWindowVisible")
	procIsWindow                 = modUser32.NewProc("IsWindow")
	procGetWindowTextLengthW     = modUser32.NewProc("GetWindowTextLengthW")
	procGetWindowTextW           = modUser32.NewProc("GetWindowTextW")
	procGetWindowThreadProcessId = modUser32.NewProc("GetWindowThreadProcessId")
	procPostMessageW             = modUser32.NewProc("PostMessageW")
)

const (
	wmClose                  = 0x0010
	errorInvalidWindowHandle = windows.Errno(1400)
)

// EnumWindows needs a callback registered once for the process lifetime;
// enumMu guards the slice it appends to.
var (
	enumMu       sync.Mutex
	enumSink     *[]shared.WindowRecord
	enumCallback = windows.NewCallback(enumWindowProc)
)

func enumWindowProc(hwnd, _ uintptr) uintptr {
	if r, _, _ := procIsWindowVisible.Call(hwnd); r == 0 {
		return 1
	}
	title := windowTitle(hwnd)
	if title == "" {
		return 1
	}

	var pid uint32
	procGetWindowThreadProcessId.Call(hwnd, uintptr(unsafe.Pointer(&pid)))
	if pid == 0 {
		return 1
	}

	*enumSink = append(*enumSink, shared.WindowRecord{
		Handle: shared.WindowHandle(hwnd),
		PID:    int(pid),
		Title:  title,
	})
	return 1
}

func windowTitle(hwnd uintptr) string {
	n, _, _ := procGetWindowTextLengthW.Call(hwnd)
	if n == 0 {
		return ""
	}
	buf := make([]uint16, n+1)
	r, _, _ := procGetWindowTextW.Call(hwnd, uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	if r == 0 {
		return ""
	}
	return windows.UTF16ToString(buf[:r])
}

// EnumerateWindows lists visible top-level windows that carry a title.
func (d *Desktop) EnumerateWindows() ([]shared.WindowRecord, error) {
	enumMu.Lock()
	defer enumMu.Unlock()

	var out []shared.WindowRecord
	enumSink = &out
	r, _, e := procEnumWindows.Call(enumCallback, 0)
	enumSink = nil

	if r == 0 && !errors.Is(e, windows.ERROR_SUCCESS) {
		return out, fmt.Errorf("EnumWindows: %w", e)
	}
	return out, nil
}

// PostClose queues WM_CLOSE and returns without waiting for the window.
func (d *Desktop) PostClose(h shared.WindowHandle) error {
	r, _, e := procPostMessageW.Call(uintptr(h), wmClose, 0, 0)
	if r != 0 {
		return nil
	}
	if errors.Is(e, errorInvalidWindowHandle) {
		return fmt.Errorf("post WM_CLOSE to %s: %w", h, ErrStaleHandle)
	}
	return fmt.Errorf("post WM_CLOSE to %s: %w", h, e)
}

func (d *Desktop) IsWindowValid(h shared.WindowHandle) bool {
	if h == 0 {
		return false
	}
	r, _, _ := procIsWindow.Call(uintptr(h))
	return r != 0
}
