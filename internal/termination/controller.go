// Package termination closes windows gracefully and, when a process outlives
// its grace period, asks before terminating it.
package termination

import (
	"fmt"
	"io"
	"log"
	"sort"
	"time"

	"appwatch/internal/loop"
	"appwatch/internal/shared"

	"github.com/google/uuid"
)

// DefaultGrace is how long a window gets to close after the close request.
const DefaultGrace = 700 * time.Millisecond

type State int

const (
	Idle State = iota
	CloseRequested
	WaitingGrace
	Closed
	ForcePromptPending
	ForcedTerminated
	LeftRunning
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case CloseRequested:
		return "close requested"
	case WaitingGrace:
		return "waiting"
	case Closed:
		return "closed"
	case ForcePromptPending:
		return "awaiting confirmation"
	case ForcedTerminated:
		return "terminated"
	case LeftRunning:
		return "left running"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Final reports whether s ends an attempt.
func (s State) Final() bool {
	return s == Closed || s == ForcedTerminated || s == LeftRunning
}

type WindowControl interface {
	// PostClose asks the window to close without waiting for it.
	PostClose(h shared.WindowHandle) error
	IsWindowValid(h shared.WindowHandle) bool
}

type ProcessControl interface {
	IsProcessRunning(pid int) bool
	ForceTerminate(pid int) error
}

// Prompter asks the user a yes/no question and blocks until answered.
type Prompter interface {
	Confirm(message string) bool
}

type PrompterFunc func(message string) bool

func (f PrompterFunc) Confirm(message string) bool { return f(message) }

// Attempt is the record of one close request.
type Attempt struct {
	ID          string
	Target      shared.Target
	RequestedAt time.Time
	State       State
	Err         error
}

type attempt struct {
	Attempt
	task loop.Task
}

type Options struct {
	Grace  time.Duration
	Logger *log.Logger
	// NewID generates attempt ids. Defaults to random UUIDs.
	NewID func() string
}

// Controller runs one attempt per target. All methods must be called from
// the scheduler's execution context.
type Controller struct {
	windows WindowControl
	procs   ProcessControl
	prompt  Prompter
	sched   loop.Scheduler
	logger  *log.Logger
	grace   time.Duration
	newID   func() string

	attempts map[string]*attempt
	byTarget map[shared.Target]string
	resolved []func(Attempt)
}

func New(windows WindowControl, procs ProcessControl, prompt Prompter, sched loop.Scheduler, opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	grace := opts.Grace
	if grace <= 0 {
		grace = DefaultGrace
	}
	newID := opts.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	return &Controller{
		windows:  windows,
		procs:    procs,
		prompt:   prompt,
		sched:    sched,
		logger:   logger,
		grace:    grace,
		newID:    newID,
		attempts: make(map[string]*attempt),
		byTarget: make(map[shared.Target]string),
	}
}

// OnResolved registers fn to run after every attempt reaches a final state.
func (c *Controller) OnResolved(fn func(Attempt)) {
	if fn != nil {
		c.resolved = append(c.resolved, fn)
	}
}

// SetGrace changes the grace period of future requests.
func (c *Controller) SetGrace(d time.Duration) {
	if d <= 0 {
		return
	}
	c.grace = d
}

func (c *Controller) Grace() time.Duration {
	return c.grace
}

// RequestClose posts a close to every valid target and schedules its grace
// check. Targets with a zero or stale handle, a failed post, or an attempt
// already in flight are skipped. It returns the ids of the new attempts.
func (c *Controller) RequestClose(targets []shared.Target) []string {
	var ids []string
	for _, t := range targets {
		if id, ok := c.start(t); ok {
			ids = append(ids, id)
		}
	}
	return ids
}

func (c *Controller) start(t shared.Target) (string, bool) {
	if t.Window == 0 {
		return "", false
	}
	if _, busy := c.byTarget[t]; busy {
		return "", false
	}
	if !c.windows.IsWindowValid(t.Window) {
		c.logger.Printf("close %s (pid %d): window no longer valid", t.Window, t.PID)
		return "", false
	}

	a := &attempt{Attempt: Attempt{
		ID:          c.newID(),
		Target:      t,
		RequestedAt: c.sched.Now(),
		State:       CloseRequested,
	}}
	if err := c.windows.PostClose(t.Window); err != nil {
		c.logger.Printf("close %s (pid %d): %v", t.Window, t.PID, err)
		return "", false
	}

	a.State = WaitingGrace
	id := a.ID
	a.task = c.sched.After(c.grace, func() { c.expire(id) })
	c.attempts[id] = a
	c.byTarget[t] = id
	return id, true
}

func (c *Controller) expire(id string) {
	a, ok := c.attempts[id]
	if !ok || a.State != WaitingGrace {
		return
	}
	a.task = nil
	t := a.Target

	switch {
	case !c.windows.IsWindowValid(t.Window):
		a.State = Closed
	case !c.procs.IsProcessRunning(t.PID):
		a.State = Closed
	default:
		a.State = ForcePromptPending
		msg := fmt.Sprintf("Process %d did not close. Force terminate?", t.PID)
		if c.prompt != nil && c.prompt.Confirm(msg) {
			if err := c.procs.ForceTerminate(t.PID); err != nil {
				a.Err = fmt.Errorf("force terminate pid %d: %w", t.PID, err)
				c.logger.Printf("%v", a.Err)
			}
			a.State = ForcedTerminated
		} else {
			a.State = LeftRunning
		}
	}

	c.finish(a)
}

func (c *Controller) finish(a *attempt) {
	delete(c.attempts, a.ID)
	delete(c.byTarget, a.Target)
	c.logger.Printf("close %s (pid %d): %s", a.Target.Window, a.Target.PID, a.State)

	result := a.Attempt
	for _, fn := range c.resolved {
		fn(result)
	}
}

// Cancel drops a pending attempt before its grace check runs. It reports
// whether the attempt was still pending.
func (c *Controller) Cancel(id string) bool {
	a, ok := c.attempts[id]
	if !ok {
		return false
	}
	if a.task != nil {
		a.task.Cancel()
	}
	delete(c.attempts, id)
	delete(c.byTarget, a.Target)
	return true
}

// Close cancels every pending attempt.
func (c *Controller) Close() {
	for id := range c.attempts {
		c.Cancel(id)
	}
}

// Pending lists attempts still waiting on their grace check, oldest first.
func (c *Controller) Pending() []Attempt {
	out := make([]Attempt, 0, len(c.attempts))
	for _, a := range c.attempts {
		out = append(out, a.Attempt)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RequestedAt.Equal(out[j].RequestedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].RequestedAt.Before(out[j].RequestedAt)
	})
	return out
}
