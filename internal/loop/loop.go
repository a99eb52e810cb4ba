package loop

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Task is a deferred function that has not run yet.
type Task interface {
	// Cancel prevents the task from running. It reports whether the task
	// was still pending.
	Cancel() bool
}

// Scheduler runs functions on a single execution context.
type Scheduler interface {
	Post(fn func())
	After(d time.Duration, fn func()) Task
	Now() time.Time
}

// Loop serializes every posted function onto the goroutine that drains it.
// Timers fire on runtime goroutines but only post work, so nothing scheduled
// through a Loop ever runs concurrently with anything else scheduled on it.
type Loop struct {
	mu      sync.Mutex
	pending []func()
	wake    chan struct{}
}

func New() *Loop {
	return &Loop{wake: make(chan struct{}, 1)}
}

// Post queues fn. Safe from any goroutine, including the loop itself.
func (l *Loop) Post(fn func()) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	l.pending = append(l.pending, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Wake signals that Drain has work. Callers that own their own select loop
// (the terminal UI) wait on it next to their other event sources.
func (l *Loop) Wake() <-chan struct{} {
	return l.wake
}

// Drain runs everything queued so far. Functions posted while draining run
// on the next Drain.
func (l *Loop) Drain() {
	l.mu.Lock()
	batch := l.pending
	l.pending = nil
	l.mu.Unlock()

	for _, fn := range batch {
		fn()
	}
}

// Run drains the queue until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
			l.Drain()
		}
	}
}

func (l *Loop) Now() time.Time {
	return time.Now()
}

type timerTask struct {
	timer    *time.Timer
	canceled atomic.Bool
	done     atomic.Bool
}

func (t *timerTask) Cancel() bool {
	if t.done.Load() {
		return false
	}
	wasPending := !t.canceled.Swap(true)
	t.timer.Stop()
	return wasPending
}

// After posts fn to the loop once d has elapsed. The cancel flag is checked
// on the loop right before fn runs, so a task cancelled from the loop never
// runs even if its timer already fired.
func (l *Loop) After(d time.Duration, fn func()) Task {
	task := &timerTask{}
	task.timer = time.AfterFunc(d, func() {
		l.Post(func() {
			if task.canceled.Load() {
				return
			}
			task.done.Store(true)
			fn()
		})
	})
	return task
}
