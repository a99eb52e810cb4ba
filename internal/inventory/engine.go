// Package inventory turns the live window list into ordered display rows on
// a fixed refresh period.
package inventory

import (
	"io"
	"log"
	"os"
	"sort"
	"time"

	"appwatch/internal/filter"
	"appwatch/internal/iconcache"
	"appwatch/internal/loop"
	"appwatch/internal/registry"
	"appwatch/internal/shared"
)

// DefaultInterval is the delay between the end of one refresh and the start
// of the next.
const DefaultInterval = 1000 * time.Millisecond

// UnknownName is shown when neither the process name nor the window title is
// available.
const UnknownName = "Unknown"

// statFile allows tests to stub the existence check behind RevealPath.
var statFile = os.Stat

// WindowSource lists visible top-level windows. On error it may still return
// the windows it managed to collect.
type WindowSource interface {
	EnumerateWindows() ([]shared.WindowRecord, error)
}

// WindowSourceFunc adapts a function to WindowSource.
type WindowSourceFunc func() ([]shared.WindowRecord, error)

func (f WindowSourceFunc) EnumerateWindows() ([]shared.WindowRecord, error) { return f() }

// Options configures an Engine. Zero values select the defaults.
type Options struct {
	Interval time.Duration
	Filter   string
	Logger   *log.Logger
}

// Engine owns the process registry, the icon cache and the selection. All of
// its methods must be called from the scheduler's execution context.
type Engine struct {
	windows  WindowSource
	registry *registry.Registry
	icons    *iconcache.Cache
	sched    loop.Scheduler
	logger   *log.Logger

	interval  time.Duration
	filter    string
	selection map[int]struct{}
	rows      []shared.DisplayRow

	running     bool
	gen         int
	next        loop.Task
	lastRefresh time.Time
	windowCount int
	listeners   []func([]shared.DisplayRow)
}

func New(windows WindowSource, opener registry.Opener, resolver iconcache.Resolver, sched loop.Scheduler, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Engine{
		windows:   windows,
		registry:  registry.New(opener, logger),
		icons:     iconcache.New(resolver, logger),
		sched:     sched,
		logger:    logger,
		interval:  interval,
		filter:    filter.Normalize(opts.Filter),
		selection: make(map[int]struct{}),
	}
}

// OnUpdate registers fn to receive the rows after every refresh.
func (e *Engine) OnUpdate(fn func([]shared.DisplayRow)) {
	if fn != nil {
		e.listeners = append(e.listeners, fn)
	}
}

// Start queues the first refresh; every refresh schedules the next one
// Interval after it completes.
func (e *Engine) Start() {
	if e.running {
		return
	}
	e.running = true
	e.gen++
	gen := e.gen
	e.sched.Post(func() { e.tick(gen) })
}

// Stop cancels the pending refresh and releases every metrics handle.
func (e *Engine) Stop() {
	e.running = false
	e.gen++
	if e.next != nil {
		e.next.Cancel()
		e.next = nil
	}
	e.registry.Close()
	e.icons.Prune(nil)
}

// tick belongs to the Start call that issued gen. A tick left over from an
// earlier Start/Stop cycle is dropped so only one chain ever runs.
func (e *Engine) tick(gen int) {
	if !e.running || gen != e.gen {
		return
	}
	e.next = nil
	e.refresh()
	if e.running && gen == e.gen {
		e.next = e.sched.After(e.interval, func() { e.tick(gen) })
	}
}

// Refresh rebuilds the rows now without touching the repeating schedule.
func (e *Engine) Refresh() {
	e.refresh()
}

// SetInterval changes the delay used from the next scheduling onwards.
// Non-positive values are ignored.
func (e *Engine) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	e.interval = d
}

func (e *Engine) Interval() time.Duration {
	return e.interval
}

// SetFilterText changes the name filter and refreshes immediately.
func (e *Engine) SetFilterText(text string) {
	text = filter.Normalize(text)
	if text == e.filter {
		return
	}
	e.filter = text
	e.refresh()
}

func (e *Engine) FilterText() string {
	return e.filter
}

func (e *Engine) refresh() {
	selected := e.selection

	windows, err := e.windows.EnumerateWindows()
	if err != nil {
		e.logger.Printf("enumerate windows: %v (%d collected)", err, len(windows))
	}
	windows = shared.DedupeWindows(windows)
	pids := shared.PIDSet(windows)

	e.registry.Reconcile(pids)

	samples := make(map[int]registry.Sample, len(pids))
	rows := make([]shared.DisplayRow, 0, len(windows))
	kept := make(map[int]struct{}, len(selected))

	for _, w := range windows {
		s, ok := samples[w.PID]
		if !ok {
			s, ok = e.registry.Sample(w.PID)
			if !ok {
				continue
			}
			samples[w.PID] = s
		}

		row := shared.DisplayRow{
			PID:        w.PID,
			Window:     w.Handle,
			Name:       displayName(s.Name, w.Title),
			CPUPercent: s.CPUPercent,
			MemoryMB:   s.MemoryMB,
			Title:      w.Title,
		}
		if !filter.Match(row.Name, e.filter) {
			continue
		}

		pid := w.PID
		row.Icon = e.icons.GetOrResolve(pid, func() (string, error) {
			return e.registry.ExecutablePath(pid)
		})

		if _, ok := selected[pid]; ok {
			row.Selected = true
			kept[pid] = struct{}{}
		}
		rows = append(rows, row)
	}

	e.icons.Prune(pids)
	e.selection = kept
	e.rows = rows
	e.windowCount = len(windows)
	e.lastRefresh = e.sched.Now()

	for _, fn := range e.listeners {
		fn(e.Rows())
	}
}

func displayName(processName, title string) string {
	if processName != "" {
		return processName
	}
	if title != "" {
		return title
	}
	return UnknownName
}

// Rows returns a copy of the rows produced by the last refresh.
func (e *Engine) Rows() []shared.DisplayRow {
	out := make([]shared.DisplayRow, len(e.rows))
	copy(out, e.rows)
	return out
}

// WindowCount is the number of distinct windows seen by the last refresh.
func (e *Engine) WindowCount() int {
	return e.windowCount
}

// LastRefresh is the scheduler time at which the last refresh finished.
func (e *Engine) LastRefresh() time.Time {
	return e.lastRefresh
}

func (e *Engine) visible(pid int) bool {
	for _, r := range e.rows {
		if r.PID == pid {
			return true
		}
	}
	return false
}

func (e *Engine) markRows() {
	for i := range e.rows {
		_, e.rows[i].Selected = e.selection[e.rows[i].PID]
	}
}

// Select marks pid as selected. Only pids with a visible row can be selected.
func (e *Engine) Select(pid int) bool {
	if !e.visible(pid) {
		return false
	}
	e.selection[pid] = struct{}{}
	e.markRows()
	return true
}

func (e *Engine) Deselect(pid int) {
	delete(e.selection, pid)
	e.markRows()
}

// ToggleSelected flips the selection state of pid and reports the new state.
func (e *Engine) ToggleSelected(pid int) bool {
	if _, ok := e.selection[pid]; ok {
		e.Deselect(pid)
		return false
	}
	return e.Select(pid)
}

// SetSelection replaces the selection with the visible subset of pids.
func (e *Engine) SetSelection(pids ...int) {
	e.selection = make(map[int]struct{}, len(pids))
	for _, pid := range pids {
		if e.visible(pid) {
			e.selection[pid] = struct{}{}
		}
	}
	e.markRows()
}

func (e *Engine) ClearSelection() {
	e.SetSelection()
}

// Selection returns the selected pids in ascending order.
func (e *Engine) Selection() []int {
	out := make([]int, 0, len(e.selection))
	for pid := range e.selection {
		out = append(out, pid)
	}
	sort.Ints(out)
	return out
}

// Targets lists every window of the selected processes.
func (e *Engine) Targets() []shared.Target {
	var out []shared.Target
	for _, r := range e.rows {
		if _, ok := e.selection[r.PID]; ok {
			out = append(out, shared.Target{Window: r.Window, PID: r.PID})
		}
	}
	return out
}

// RevealPath returns the executable of pid when it exists on disk, for the
// open-file-location action.
func (e *Engine) RevealPath(pid int) (string, bool) {
	exe, err := e.registry.ExecutablePath(pid)
	if err != nil || exe == "" {
		return "", false
	}
	if _, err := statFile(exe); err != nil {
		return "", false
	}
	return exe, true
}
