//go:build !windows
// +build !windows

package telemetry

import (
	"errors"
	"fmt"
	"image"
	"os"

	"appwatch/internal/registry"
	"appwatch/internal/shared"

	"github.com/shirou/gopsutil/v4/process"
)

// EnumerateWindows lists titled X11 top-level windows through wmctrl.
func (d *Desktop) EnumerateWindows() ([]shared.WindowRecord, error) {
	return listWmctrlWindows()
}

func (d *Desktop) PostClose(h shared.WindowHandle) error {
	if !wmctrlWindowExists(h) {
		return fmt.Errorf("close %s: %w", h, ErrStaleHandle)
	}
	return closeWmctrlWindow(h)
}

func (d *Desktop) IsWindowValid(h shared.WindowHandle) bool {
	if h == 0 {
		return false
	}
	return wmctrlWindowExists(h)
}

func (d *Desktop) IsProcessRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	ok, err := process.PidExists(int32(pid))
	return err == nil && ok
}

func (d *Desktop) ForceTerminate(pid int) error {
	if pid <= 0 {
		return fmt.Errorf("invalid pid: %d", pid)
	}
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return fmt.Errorf("open process: %w", mapProcessErr(err))
	}
	if err := p.Kill(); err != nil {
		return fmt.Errorf("kill process: %w", mapProcessErr(err))
	}
	return nil
}

// ResolveIcon has no desktop-independent source for icons outside Windows.
func (d *Desktop) ResolveIcon(string) (image.Image, error) {
	return nil, nil
}

// Open wraps a gopsutil process. Percent(0) measures against the previous
// call, so the first reading only seeds the baseline.
func (d *Desktop) Open(pid int) (registry.Handle, error) {
	if pid <= 0 {
		return nil, fmt.Errorf("invalid pid: %d", pid)
	}
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return nil, fmt.Errorf("open process %d: %w", pid, mapProcessErr(err))
	}
	return &psHandle{p: p}, nil
}

type psHandle struct {
	p   *process.Process
	exe string
}

func (h *psHandle) CPUPercent() (float64, error) {
	v, err := h.p.Percent(0)
	if err != nil {
		return 0, mapProcessErr(err)
	}
	return v, nil
}

func (h *psHandle) MemoryMB() (float64, error) {
	mi, err := h.p.MemoryInfo()
	if err != nil {
		return 0, mapProcessErr(err)
	}
	return float64(mi.RSS) / bytesPerMB, nil
}

func (h *psHandle) Name() (string, error) {
	name, err := h.p.Name()
	if err != nil {
		return "", mapProcessErr(err)
	}
	return name, nil
}

func (h *psHandle) ExecutablePath() (string, error) {
	if h.exe != "" {
		return h.exe, nil
	}
	exe, err := h.p.Exe()
	if err != nil {
		return "", mapProcessErr(err)
	}
	h.exe = exe
	return exe, nil
}

func (h *psHandle) Close() error { return nil }

func mapProcessErr(err error) error {
	switch {
	case errors.Is(err, process.ErrorProcessNotRunning), errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("%w: %w", ErrProcessGone, err)
	case errors.Is(err, os.ErrPermission):
		return fmt.Errorf("%w: %w", ErrAccessDenied, err)
	default:
		return err
	}
}
