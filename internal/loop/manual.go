package loop

import (
	"sort"
	"time"
)

// Manual is a Scheduler driven by Advance instead of a wall clock.
// It is used by tests that need exact control over grace periods and ticks.
type Manual struct {
	now    time.Time
	seq    int
	posted []func()
	tasks  []*manualTask
}

type manualTask struct {
	at       time.Time
	seq      int
	fn       func()
	canceled bool
	ran      bool
}

func (t *manualTask) Cancel() bool {
	if t.canceled || t.ran {
		return false
	}
	t.canceled = true
	return true
}

func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

func (m *Manual) Now() time.Time {
	return m.now
}

func (m *Manual) Post(fn func()) {
	if fn != nil {
		m.posted = append(m.posted, fn)
	}
}

func (m *Manual) After(d time.Duration, fn func()) Task {
	m.seq++
	t := &manualTask{at: m.now.Add(d), seq: m.seq, fn: fn}
	m.tasks = append(m.tasks, t)
	return t
}

// Pending reports how many timed tasks are still waiting.
func (m *Manual) Pending() int {
	n := 0
	for _, t := range m.tasks {
		if !t.canceled && !t.ran {
			n++
		}
	}
	return n
}

// Flush runs posted functions until none are left.
func (m *Manual) Flush() {
	for len(m.posted) > 0 {
		batch := m.posted
		m.posted = nil
		for _, fn := range batch {
			fn()
		}
	}
}

// Advance moves the clock forward by d, running posted work and every task
// that falls due, in deadline order. Tasks scheduled while advancing run if
// their deadline is still inside the window.
func (m *Manual) Advance(d time.Duration) {
	end := m.now.Add(d)
	m.Flush()
	for {
		next := m.nextDue(end)
		if next == nil {
			break
		}
		m.now = next.at
		next.ran = true
		next.fn()
		m.Flush()
	}
	m.now = end
	m.compact()
}

func (m *Manual) nextDue(end time.Time) *manualTask {
	var due []*manualTask
	for _, t := range m.tasks {
		if t.canceled || t.ran || t.at.After(end) {
			continue
		}
		due = append(due, t)
	}
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].at.Equal(due[j].at) {
			return due[i].seq < due[j].seq
		}
		return due[i].at.Before(due[j].at)
	})
	return due[0]
}

func (m *Manual) compact() {
	live := m.tasks[:0]
	for _, t := range m.tasks {
		if !t.canceled && !t.ran {
			live = append(live, t)
		}
	}
	m.tasks = live
}
