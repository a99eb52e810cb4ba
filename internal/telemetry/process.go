//go:build windows
// +build windows

package telemetry

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"
	"unsafe"

	"appwatch/internal/registry"

	"golang.org/x/sys/windows"
)

var (
	modKernel32              = windows.NewLazySystemDLL("kernel32.dll")
	procGetProcessTimes      = modKernel32.NewProc("GetProcessTimes")
	modPsapi                 = windows.NewLazySystemDLL("psapi.dll")
	procGetProcessMemoryInfo = modPsapi.NewProc("GetProcessMemoryInfo")
)

type processMemoryCounters struct {
	Cb                         uint32
	PageFaultCount             uint32
	PeakWorkingSetSize         uintptr
	WorkingSetSize             uintptr
	QuotaPeakPagedPoolUsage    uintptr
	QuotaPagedPoolUsage        uintptr
	QuotaPeakNonPagedPoolUsage uintptr
	QuotaNonPagedPoolUsage     uintptr
	PagefileUsage              uintptr
	PeakPagefileUsage          uintptr
}

// processHandle keeps one OpenProcess handle for the lifetime of a registry
// entry so CPU deltas are measured against the same kernel object.
type processHandle struct {
	pid      int
	h        windows.Handle
	exe      string
	lastCPU  time.Duration
	lastWall time.Time
	primed   bool
}

// Open opens pid for repeated sampling.
func (d *Desktop) Open(pid int) (registry.Handle, error) {
	if pid <= 0 {
		return nil, fmt.Errorf("invalid pid: %d", pid)
	}

	const access = windows.PROCESS_QUERY_INFORMATION | windows.PROCESS_VM_READ
	h, err := windows.OpenProcess(access, false, uint32(pid))
	if err != nil {
		h, err = windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	}
	if err != nil {
		return nil, fmt.Errorf("open process %d: %w", pid, mapErrno(err))
	}
	return &processHandle{pid: pid, h: h}, nil
}

// CPUPercent is the CPU time used since the previous call over the wall time
// elapsed, not normalized by core count. The first call returns 0.
func (p *processHandle) CPUPercent() (float64, error) {
	cpu, err := processTimes(p.h)
	if err != nil {
		return 0, err
	}
	now := time.Now()
	if !p.primed {
		p.primed = true
		p.lastCPU, p.lastWall = cpu, now
		return 0, nil
	}

	wall := now.Sub(p.lastWall)
	used := cpu - p.lastCPU
	p.lastCPU, p.lastWall = cpu, now
	if wall <= 0 || used < 0 {
		return 0, nil
	}
	return float64(used) / float64(wall) * 100, nil
}

func (p *processHandle) MemoryMB() (float64, error) {
	var pmc processMemoryCounters
	pmc.Cb = uint32(unsafe.Sizeof(pmc))

	r, _, e := procGetProcessMemoryInfo.Call(
		uintptr(p.h),
		uintptr(unsafe.Pointer(&pmc)),
		uintptr(pmc.Cb),
	)
	if r == 0 {
		return 0, fmt.Errorf("GetProcessMemoryInfo pid %d: %w", p.pid, mapErrno(e))
	}
	return float64(pmc.WorkingSetSize) / bytesPerMB, nil
}

func (p *processHandle) Name() (string, error) {
	exe, err := p.ExecutablePath()
	if err != nil {
		return "", err
	}
	return filepath.Base(exe), nil
}

func (p *processHandle) ExecutablePath() (string, error) {
	if p.exe != "" {
		return p.exe, nil
	}

	size := uint32(260)
	for i := 0; i < 4; i++ {
		buf := make([]uint16, size)
		sz := size
		err := windows.QueryFullProcessImageName(p.h, 0, &buf[0], &sz)
		if err == nil {
			p.exe = windows.UTF16ToString(buf[:sz])
			return p.exe, nil
		}
		if size < 32768 && err == windows.ERROR_INSUFFICIENT_BUFFER {
			size *= 2
			continue
		}
		return "", fmt.Errorf("image name pid %d: %w", p.pid, mapErrno(err))
	}
	return "", fmt.Errorf("image name pid %d: path too long", p.pid)
}

func (p *processHandle) Close() error {
	if p.h == 0 {
		return nil
	}
	err := windows.CloseHandle(p.h)
	p.h = 0
	return err
}

func processTimes(h windows.Handle) (time.Duration, error) {
	var c, e, k, u windows.Filetime
	r, _, errno := procGetProcessTimes.Call(
		uintptr(h),
		uintptr(unsafe.Pointer(&c)),
		uintptr(unsafe.Pointer(&e)),
		uintptr(unsafe.Pointer(&k)),
		uintptr(unsafe.Pointer(&u)),
	)
	if r == 0 {
		return 0, fmt.Errorf("GetProcessTimes: %w", mapErrno(errno))
	}
	return filetimeToDuration(k) + filetimeToDuration(u), nil
}

func filetimeToDuration(ft windows.Filetime) time.Duration {
	v := (uint64(ft.HighDateTime) << 32) | uint64(ft.LowDateTime)
	return time.Duration(v * 100)
}

// mapErrno attaches the package sentinel matching a Win32 error, keeping the
// original errno in the chain.
func mapErrno(err error) error {
	switch {
	case errors.Is(err, windows.ERROR_ACCESS_DENIED):
		return fmt.Errorf("%w: %w", ErrAccessDenied, err)
	case errors.Is(err, windows.ERROR_INVALID_PARAMETER):
		return fmt.Errorf("%w: %w", ErrProcessGone, err)
	case errors.Is(err, windows.ERROR_INVALID_HANDLE):
		return fmt.Errorf("%w: %w", ErrStaleHandle, err)
	default:
		return err
	}
}
