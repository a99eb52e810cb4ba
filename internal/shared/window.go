package shared

import (
	"image"
	"strconv"
)

// WindowHandle identifies one OS top-level window (an HWND on Windows, an
// X11 window id elsewhere). Zero never names a window.
type WindowHandle uintptr

func (h WindowHandle) String() string {
	return "0x" + strconv.FormatUint(uint64(h), 16)
}

// WindowRecord is one visible top-level window as reported by the
// enumerator. Records are re-derived every refresh.
type WindowRecord struct {
	Handle WindowHandle `json:"handle" yaml:"handle"`
	PID    int          `json:"pid" yaml:"pid"`
	Title  string       `json:"title" yaml:"title"`
}

// DisplayRow is the read-only view of one window for the presentation layer.
type DisplayRow struct {
	PID        int          `json:"pid" yaml:"pid"`
	Window     WindowHandle `json:"window" yaml:"window"`
	Name       string       `json:"name" yaml:"name"`
	CPUPercent float64      `json:"cpu_percent" yaml:"cpu_percent"`
	MemoryMB   float64      `json:"memory_mb" yaml:"memory_mb"`
	Title      string       `json:"title" yaml:"title"`
	Selected   bool         `json:"selected,omitempty" yaml:"selected,omitempty"`

	Icon image.Image `json:"-" yaml:"-"`
}

// HasIcon reports whether an icon bitmap was resolved for the row.
func (r DisplayRow) HasIcon() bool {
	return r.Icon != nil
}

// DedupeWindows drops repeated handles, keeping the first occurrence and
// the original order.
func DedupeWindows(in []WindowRecord) []WindowRecord {
	seen := make(map[WindowHandle]struct{}, len(in))
	out := make([]WindowRecord, 0, len(in))
	for _, w := range in {
		if _, ok := seen[w.Handle]; ok {
			continue
		}
		seen[w.Handle] = struct{}{}
		out = append(out, w)
	}
	return out
}

// PIDSet returns the distinct owning process ids of windows.
func PIDSet(windows []WindowRecord) map[int]struct{} {
	set := make(map[int]struct{}, len(windows))
	for _, w := range windows {
		set[w.PID] = struct{}{}
	}
	return set
}

// Target names one window to close and the process that owns it.
type Target struct {
	Window WindowHandle `json:"window" yaml:"window"`
	PID    int          `json:"pid" yaml:"pid"`
}
