//go:build windows
// +build windows

package telemetry

import (
	"fmt"

	"golang.org/x/sys/windows"
)

const stillActive = 259

// IsProcessRunning reports whether pid refers to a process that has not
// exited. A process we may not open is assumed to be running.
func (d *Desktop) IsProcessRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		return err == windows.ERROR_ACCESS_DENIED
	}
	defer windows.CloseHandle(h)

	var code uint32
	if err := windows.GetExitCodeProcess(h, &code); err != nil {
		return true
	}
	return code == stillActive
}

// ForceTerminate terminates the process with the given PID.
func (d *Desktop) ForceTerminate(pid int) error {
	if pid <= 0 {
		return fmt.Errorf("invalid pid: %d", pid)
	}

	h, err := windows.OpenProcess(windows.PROCESS_TERMINATE, false, uint32(pid))
	if err != nil {
		return fmt.Errorf("open process: %w", mapErrno(err))
	}
	defer windows.CloseHandle(h)

	if err := windows.TerminateProcess(h, 1); err != nil {
		return fmt.Errorf("terminate process: %w", mapErrno(err))
	}

	return nil
}
