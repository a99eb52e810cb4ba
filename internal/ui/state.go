package ui

import (
	"time"

	"appwatch/internal/shared"

	"github.com/gdamore/tcell/v2"
)

type AppMode int

const (
	ModeDashboard AppMode = iota
	ModeSearch
	ModeInspect
	ModeConfirm
)

type AppState struct {
	Screen tcell.Screen

	Mode AppMode

	Rows        []shared.DisplayRow
	WindowCount int
	LastUpdate  time.Time
	Interval    time.Duration

	// Cursor follows a pid across refreshes, like the selection.
	CursorIdx int
	CursorPID int
	Offset    int

	Search     string
	InspectPID int
	Prompt     string
	Status     string
	Pending    int
}

// ApplyRows installs freshly built rows and moves the cursor to the row of
// the pid it was on, or clamps it when that pid is gone.
func (app *AppState) ApplyRows(rows []shared.DisplayRow) {
	app.Rows = rows
	if len(rows) == 0 {
		app.CursorIdx = -1
		app.CursorPID = 0
		return
	}
	if idx := FindIndexByPID(rows, app.CursorPID); idx >= 0 && app.CursorPID != 0 {
		app.CursorIdx = idx
		return
	}
	if app.CursorIdx < 0 {
		app.CursorIdx = 0
	}
	if app.CursorIdx >= len(rows) {
		app.CursorIdx = len(rows) - 1
	}
	app.CursorPID = rows[app.CursorIdx].PID
}

// MoveCursor shifts the cursor by delta rows, stopping at the ends.
func (app *AppState) MoveCursor(delta int) {
	if len(app.Rows) == 0 {
		return
	}
	idx := app.CursorIdx + delta
	if idx < 0 {
		idx = 0
	}
	if idx >= len(app.Rows) {
		idx = len(app.Rows) - 1
	}
	app.CursorIdx = idx
	app.CursorPID = app.Rows[idx].PID
}

// CursorRow returns the row under the cursor.
func (app *AppState) CursorRow() (shared.DisplayRow, bool) {
	if app.CursorIdx < 0 || app.CursorIdx >= len(app.Rows) {
		return shared.DisplayRow{}, false
	}
	return app.Rows[app.CursorIdx], true
}

// scroll keeps the cursor inside a viewport of height lines.
func (app *AppState) scroll(height int) {
	if height <= 0 {
		app.Offset = 0
		return
	}
	if app.CursorIdx < app.Offset {
		app.Offset = app.CursorIdx
	}
	if app.CursorIdx >= app.Offset+height {
		app.Offset = app.CursorIdx - height + 1
	}
	if app.Offset < 0 {
		app.Offset = 0
	}
}

/* ---------- helpers ---------- */

func PutString(s tcell.Screen, x, y int, text string, style tcell.Style) {
	col := 0
	for _, r := range text {
		s.SetContent(x+col, y, r, nil, style)
		col++
	}
}

func FindIndexByPID(rows []shared.DisplayRow, pid int) int {
	for i, r := range rows {
		if r.PID == pid {
			return i
		}
	}
	return -1
}

func TruncateToWidth(s string, w int) string {
	r := []rune(s)
	if w <= 0 || len(r) <= w {
		return s
	}
	if w <= 3 {
		return string(r[:w])
	}
	return string(r[:w-3]) + "..."
}
