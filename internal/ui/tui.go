package ui

import (
	"context"
	"fmt"
	"io"
	"log"
	"path/filepath"

	"appwatch/internal/inventory"
	"appwatch/internal/shared"
	"appwatch/internal/termination"

	"github.com/gdamore/tcell/v2"
)

// Queue is the execution context the TUI drains between key presses.
type Queue interface {
	Wake() <-chan struct{}
	Drain()
}

// Terminator starts close attempts for the end-task action.
type Terminator interface {
	RequestClose(targets []shared.Target) []string
	Pending() []termination.Attempt
	OnResolved(fn func(termination.Attempt))
}

type Options struct {
	Engine *inventory.Engine
	Queue  Queue
	// Reveal opens a directory in the desktop file manager.
	Reveal func(dir string) error
	Logger *log.Logger
}

// TUI owns the screen. Every method runs on the goroutine that called Run,
// which is also the one draining the queue.
type TUI struct {
	app    *AppState
	engine *inventory.Engine
	term   Terminator
	queue  Queue
	reveal func(string) error
	logger *log.Logger

	events chan tcell.Event
	ctx    context.Context
}

func New(screen tcell.Screen, opts Options) *TUI {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	t := &TUI{
		app:    &AppState{Screen: screen, CursorIdx: -1},
		engine: opts.Engine,
		queue:  opts.Queue,
		reveal: opts.Reveal,
		logger: logger,
		events: make(chan tcell.Event, 16),
		ctx:    context.Background(),
	}
	if t.engine != nil {
		t.app.Interval = t.engine.Interval()
		t.app.Search = t.engine.FilterText()
		t.engine.OnUpdate(t.rowsUpdated)
	}
	return t
}

// SetTerminator attaches the close controller. It is separate from New
// because the controller prompts through the TUI.
func (t *TUI) SetTerminator(term Terminator) {
	t.term = term
	if term != nil {
		term.OnResolved(t.attemptResolved)
	}
}

func (t *TUI) State() *AppState {
	return t.app
}

func (t *TUI) rowsUpdated(rows []shared.DisplayRow) {
	t.app.ApplyRows(rows)
	t.app.WindowCount = t.engine.WindowCount()
	t.app.LastUpdate = t.engine.LastRefresh()
	t.app.Interval = t.engine.Interval()
	t.syncPending()
}

func (t *TUI) syncPending() {
	if t.term != nil {
		t.app.Pending = len(t.term.Pending())
	}
}

func (t *TUI) attemptResolved(a termination.Attempt) {
	switch {
	case a.Err != nil:
		t.app.Status = a.Err.Error()
	default:
		t.app.Status = fmt.Sprintf("PID %d %s", a.Target.PID, a.State)
	}
	t.syncPending()
}

// Run pumps terminal events and queued work until q, ctrl+c or ctx ends.
func (t *TUI) Run(ctx context.Context) error {
	s := t.app.Screen
	t.ctx = ctx

	go func() {
		for {
			ev := s.PollEvent()
			if ev == nil {
				return
			}
			select {
			case t.events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wake <-chan struct{}
	if t.queue != nil {
		wake = t.queue.Wake()
	}

	for {
		t.draw()
		s.Show()

		select {
		case <-ctx.Done():
			return nil
		case ev := <-t.events:
			if t.HandleEvent(ev) {
				return nil
			}
		case <-wake:
			t.queue.Drain()
		}
	}
}

func (t *TUI) draw() {
	switch t.app.Mode {
	case ModeInspect:
		path := ""
		if t.engine != nil {
			path, _ = t.engine.RevealPath(t.app.InspectPID)
		}
		DrawInspector(t.app, path)
	default:
		DrawDashboard(t.app)
	}
}

// HandleEvent applies one terminal event and reports whether to quit.
func (t *TUI) HandleEvent(ev tcell.Event) bool {
	switch tev := ev.(type) {
	case *tcell.EventResize:
		t.app.Screen.Sync()
	case *tcell.EventKey:
		if tev.Key() == tcell.KeyCtrlC || isCtrl(tev, 'c') {
			return true
		}
		switch t.app.Mode {
		case ModeSearch:
			t.searchKey(tev)
		case ModeInspect:
			return t.inspectKey(tev)
		default:
			return t.dashboardKey(tev)
		}
	}
	return false
}

func (t *TUI) dashboardKey(ev *tcell.EventKey) bool {
	switch ev.Key() {
	case tcell.KeyUp:
		t.app.MoveCursor(-1)
	case tcell.KeyDown:
		t.app.MoveCursor(1)
	case tcell.KeyPgUp:
		t.app.MoveCursor(-10)
	case tcell.KeyPgDn:
		t.app.MoveCursor(10)
	case tcell.KeyHome:
		t.app.MoveCursor(-len(t.app.Rows))
	case tcell.KeyEnd:
		t.app.MoveCursor(len(t.app.Rows))
	case tcell.KeyEnter:
		if r, ok := t.app.CursorRow(); ok {
			t.app.InspectPID = r.PID
			t.app.Mode = ModeInspect
		}
	case tcell.KeyEscape:
		t.engine.ClearSelection()
		t.rowsUpdated(t.engine.Rows())
	case tcell.KeyDelete, tcell.KeyCtrlQ:
		t.endTask(0)
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'q':
			if isCtrl(ev, 'q') {
				t.endTask(0)
				return false
			}
			return true
		case ' ':
			if r, ok := t.app.CursorRow(); ok {
				t.engine.ToggleSelected(r.PID)
				t.rowsUpdated(t.engine.Rows())
			}
		case '/':
			t.app.Mode = ModeSearch
		case 'k', 'K':
			t.endTask(0)
		case 'o', 'O':
			if r, ok := t.app.CursorRow(); ok {
				t.openLocation(r.PID)
			}
		case 'r':
			t.engine.Refresh()
		}
	}
	return false
}

// isCtrl matches ctrl+letter when the terminal reports it as a modified rune.
func isCtrl(ev *tcell.EventKey, r rune) bool {
	return ev.Key() == tcell.KeyRune && ev.Rune() == r && ev.Modifiers()&tcell.ModCtrl != 0
}

func (t *TUI) inspectKey(ev *tcell.EventKey) bool {
	switch ev.Key() {
	case tcell.KeyEscape:
		t.app.Mode = ModeDashboard
	case tcell.KeyDelete, tcell.KeyCtrlQ:
		t.endTask(t.app.InspectPID)
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'q':
			return true
		case 'k', 'K':
			t.endTask(t.app.InspectPID)
		case 'o', 'O':
			t.openLocation(t.app.InspectPID)
		}
	}
	return false
}

func (t *TUI) searchKey(ev *tcell.EventKey) {
	text := t.app.Search
	switch ev.Key() {
	case tcell.KeyEnter:
		t.app.Mode = ModeDashboard
		return
	case tcell.KeyEscape:
		t.app.Mode = ModeDashboard
		text = ""
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		if r := []rune(text); len(r) > 0 {
			text = string(r[:len(r)-1])
		}
	case tcell.KeyRune:
		text += string(ev.Rune())
	default:
		return
	}
	t.app.Search = text
	t.engine.SetFilterText(text)
}

// endTask closes every window of the selection. With nothing selected it
// falls back to pid, or to the row under the cursor when pid is 0.
func (t *TUI) endTask(pid int) {
	if t.term == nil {
		t.app.Status = "end task unavailable"
		return
	}

	targets := t.engine.Targets()
	if pid != 0 || len(targets) == 0 {
		if pid == 0 {
			r, ok := t.app.CursorRow()
			if !ok {
				t.app.Status = "nothing selected"
				return
			}
			pid = r.PID
		}
		targets = targets[:0]
		for _, r := range t.app.Rows {
			if r.PID == pid {
				targets = append(targets, shared.Target{Window: r.Window, PID: r.PID})
			}
		}
	}

	ids := t.term.RequestClose(targets)
	switch {
	case len(targets) == 0:
		t.app.Status = "nothing selected"
	case len(ids) == 0:
		t.app.Status = "no window accepted the close request"
	default:
		t.app.Status = fmt.Sprintf("closing %d window(s)", len(ids))
	}
	t.syncPending()
}

func (t *TUI) openLocation(pid int) {
	path, ok := t.engine.RevealPath(pid)
	if !ok {
		t.app.Status = fmt.Sprintf("location of PID %d unavailable", pid)
		return
	}
	if t.reveal == nil {
		t.app.Status = path
		return
	}
	if err := t.reveal(filepath.Dir(path)); err != nil {
		t.logger.Printf("reveal %s: %v", path, err)
		t.app.Status = "open location failed: " + err.Error()
		return
	}
	t.app.Status = "opened " + filepath.Dir(path)
}
