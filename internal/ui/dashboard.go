package ui

import (
	"fmt"
	"strconv"

	"appwatch/internal/filter"
	"appwatch/internal/shared"

	"github.com/gdamore/tcell/v2"
)

const headerRows = 6

var (
	styleHeader   = tcell.StyleDefault.Bold(true)
	styleCursor   = tcell.StyleDefault.Reverse(true)
	styleSelected = tcell.StyleDefault.Foreground(tcell.ColorYellow)
	styleHint     = tcell.StyleDefault.Foreground(tcell.ColorGray)
)

func DrawDashboard(app *AppState) {
	s := app.Screen
	s.Clear()

	w, h := s.Size()

	stamp := "--:--:--"
	if !app.LastUpdate.IsZero() {
		stamp = app.LastUpdate.Format("15:04:05")
	}
	PutString(s, 0, 0,
		TruncateToWidth(fmt.Sprintf("Updated: %s | rows %d | windows %d | every %s",
			stamp, len(app.Rows), app.WindowCount, app.Interval), w),
		styleHeader,
	)

	PutString(s, 0, 1,
		TruncateToWidth("UP/DOWN move | SPACE select | / search | DEL end task | o open location | ENTER details | q quit", w),
		styleHint,
	)

	PutString(s, 0, 2, TruncateToWidth(searchLine(app), w), tcell.StyleDefault)

	if status := statusLine(app); status != "" {
		PutString(s, 0, 3, TruncateToWidth(status, w), tcell.StyleDefault)
	}

	y := 5
	if len(app.Rows) == 0 {
		PutString(s, 0, y, "no windows matching filter", tcell.StyleDefault)
		return
	}

	PutString(s, 0, y, TruncateToWidth(headerLine(), w), styleHeader)
	y++

	visible := h - headerRows
	app.scroll(visible)
	for i := app.Offset; i < len(app.Rows) && y < h; i++ {
		r := app.Rows[i]
		style := tcell.StyleDefault
		if r.Selected {
			style = styleSelected
		}
		if i == app.CursorIdx {
			style = styleCursor
		}
		PutString(s, 0, y, TruncateToWidth(formatRow(r, i == app.CursorIdx), w), style)
		y++
	}
}

func searchLine(app *AppState) string {
	text := app.Search
	if text == "" && app.Mode != ModeSearch {
		text = filter.Placeholder
	}
	if app.Mode == ModeSearch {
		return "Search: " + text + "_"
	}
	return "Search: " + text
}

func statusLine(app *AppState) string {
	status := app.Status
	if app.Pending > 0 {
		pending := strconv.Itoa(app.Pending) + " closing"
		if status == "" {
			return "Status: " + pending
		}
		return "Status: " + status + " | " + pending
	}
	if status == "" {
		return ""
	}
	return "Status: " + status
}

func headerLine() string {
	return fmt.Sprintf("%-1s %-1s %-1s %-24s %9s %11s %-7s %s",
		" ", " ", " ", "NAME", "CPU", "RAM", "PID", "TITLE")
}

func formatRow(r shared.DisplayRow, cursor bool) string {
	arrow := " "
	if cursor {
		arrow = ">"
	}
	mark := " "
	if r.Selected {
		mark = "*"
	}
	icon := " "
	if r.HasIcon() {
		icon = "■"
	}
	return fmt.Sprintf("%-1s %-1s %-1s %-24s %9s %11s %-7d %s",
		arrow,
		mark,
		icon,
		shared.TrimName(r.Name, 24),
		shared.FormatCPU(r.CPUPercent),
		shared.FormatMemory(r.MemoryMB),
		r.PID,
		r.Title,
	)
}
