package ui

import (
	"fmt"
	"strings"

	"appwatch/internal/shared"

	"github.com/gdamore/tcell/v2"
)

// DrawInspector shows every window of the inspected process.
func DrawInspector(app *AppState, exePath string) {
	s := app.Screen
	s.Clear()

	w, h := s.Size()

	var windows []shared.DisplayRow
	for _, r := range app.Rows {
		if r.PID == app.InspectPID {
			windows = append(windows, r)
		}
	}

	if len(windows) == 0 {
		PutString(s, 0, 0, "Process no longer present. Press ESC.", tcell.StyleDefault)
		return
	}
	first := windows[0]

	y := 0
	title := fmt.Sprintf(" %s (PID %d) ", first.Name, first.PID)
	sep := strings.Repeat("─", min(len([]rune(title)), w))

	PutString(s, 0, y, sep, tcell.StyleDefault)
	y++
	PutString(s, 0, y, TruncateToWidth(title, w), styleHeader)
	y++
	PutString(s, 0, y, sep, tcell.StyleDefault)
	y += 2

	PutString(s, 0, y, fmt.Sprintf("CPU:      %s", shared.FormatCPU(first.CPUPercent)), tcell.StyleDefault)
	y++
	PutString(s, 0, y, fmt.Sprintf("Memory:   %s", shared.FormatMemory(first.MemoryMB)), tcell.StyleDefault)
	y++
	selected := "no"
	if first.Selected {
		selected = "yes"
	}
	PutString(s, 0, y, "Selected: "+selected, tcell.StyleDefault)
	y++

	if exePath == "" {
		exePath = "(unknown)"
	}
	PutString(s, 0, y, TruncateToWidth("Path:     "+exePath, w), tcell.StyleDefault)
	y++
	icon := "none"
	if first.HasIcon() {
		b := first.Icon.Bounds()
		icon = fmt.Sprintf("%dx%d", b.Dx(), b.Dy())
	}
	PutString(s, 0, y, "Icon:     "+icon, tcell.StyleDefault)
	y += 2

	PutString(s, 0, y, fmt.Sprintf("Windows (%d):", len(windows)), tcell.StyleDefault)
	y++
	for _, r := range windows {
		if y >= h-2 {
			break
		}
		line := fmt.Sprintf("%-12s %s", r.Window, r.Title)
		PutString(s, 2, y, TruncateToWidth(line, w-2), tcell.StyleDefault)
		y++
	}

	if status := statusLine(app); status != "" && h >= 2 {
		PutString(s, 0, h-2, TruncateToWidth(status, w), tcell.StyleDefault)
	}

	PutString(s, 0, h-1, "ESC return | k end task | o open location | q quit", styleHint)
}
