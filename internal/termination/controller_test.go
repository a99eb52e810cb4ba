package termination

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"appwatch/internal/loop"
	"appwatch/internal/shared"

	"github.com/stretchr/testify/require"
)

type fakeDesktop struct {
	valid      map[shared.WindowHandle]bool
	running    map[int]bool
	postErr    error
	posts      []shared.WindowHandle
	terminated []int
	killErr    error

	// closeOnPost makes the window disappear as soon as it is asked to close.
	closeOnPost bool
}

func newDesktop() *fakeDesktop {
	return &fakeDesktop{valid: map[shared.WindowHandle]bool{}, running: map[int]bool{}}
}

func (d *fakeDesktop) PostClose(h shared.WindowHandle) error {
	if d.postErr != nil {
		return d.postErr
	}
	d.posts = append(d.posts, h)
	if d.closeOnPost {
		d.valid[h] = false
	}
	return nil
}

func (d *fakeDesktop) IsWindowValid(h shared.WindowHandle) bool { return d.valid[h] }
func (d *fakeDesktop) IsProcessRunning(pid int) bool { return d.running[pid] }

func (d *fakeDesktop) ForceTerminate(pid int) error {
	d.terminated = append(d.terminated, pid)
	if d.killErr != nil {
		return d.killErr
	}
	d.running[pid] = false
	return nil
}

type fakePrompt struct {
	answer   bool
	messages []string
}

func (p *fakePrompt) Confirm(msg string) bool {
	p.messages = append(p.messages, msg)
	return p.answer
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("a%d", n)
	}
}

func newController(d *fakeDesktop, p Prompter) (*Controller, *loop.Manual, *[]Attempt) {
	m := loop.NewManual(time.Unix(0, 0))
	c := New(d, d, p, m, Options{NewID: sequentialIDs()})
	var resolved []Attempt
	c.OnResolved(func(a Attempt) { resolved = append(resolved, a) })
	return c, m, &resolved
}

func TestWindowClosesWithinGrace(t *testing.T) {
	d := newDesktop()
	d.valid[1] = true
	d.running[100] = true
	d.closeOnPost = true
	p := &fakePrompt{answer: true}
	c, m, resolved := newController(d, p)

	ids := c.RequestClose([]shared.Target{{Window: 1, PID: 100}})
	require.Len(t, ids, 1)

	m.Advance(699 * time.Millisecond)
	require.Empty(t, *resolved, "grace check ran early")
	m.Advance(time.Millisecond)

	require.Len(t, *resolved, 1)
	require.Equal(t, Closed, (*resolved)[0].State)
	require.Empty(t, p.messages, "no prompt")
	require.Empty(t, d.terminated, "no terminate")
}

func TestWindowClosingMidGraceIsClosedWithoutPrompt(t *testing.T) {
	d := newDesktop()
	d.valid[1] = true
	d.running[100] = true
	p := &fakePrompt{answer: true}
	c, m, resolved := newController(d, p)

	c.RequestClose([]shared.Target{{Window: 1, PID: 100}})
	m.Advance(300 * time.Millisecond)
	require.Empty(t, *resolved)
	d.valid[1] = false

	m.Advance(400 * time.Millisecond)
	require.Len(t, *resolved, 1)
	require.Equal(t, Closed, (*resolved)[0].State)
	require.NoError(t, (*resolved)[0].Err)
	require.Empty(t, p.messages)
	require.Empty(t, d.terminated)
}

func TestHungWindowPromptsOnceAndForces(t *testing.T) {
	d := newDesktop()
	d.valid[1] = true
	d.running[100] = true
	p := &fakePrompt{answer: true}
	c, m, resolved := newController(d, p)

	c.RequestClose([]shared.Target{{Window: 1, PID: 100}})
	m.Advance(time.Second)
	m.Advance(time.Second)

	require.Equal(t, []string{"Process 100 did not close. Force terminate?"}, p.messages)
	require.Equal(t, []int{100}, d.terminated)
	require.Equal(t, ForcedTerminated, (*resolved)[0].State)
}

func TestDeclinedForceLeavesProcessRunning(t *testing.T) {
	d := newDesktop()
	d.valid[1] = true
	d.running[100] = true
	p := &fakePrompt{answer: false}
	c, m, resolved := newController(d, p)

	c.RequestClose([]shared.Target{{Window: 1, PID: 100}})
	m.Advance(time.Second)

	require.Empty(t, d.terminated, "declined prompt must not terminate")
	a := (*resolved)[0]
	require.Equal(t, LeftRunning, a.State)
	require.NoError(t, a.Err)
}

func TestWindowValidButProcessGoneIsClosed(t *testing.T) {
	d := newDesktop()
	d.valid[1] = true
	p := &fakePrompt{answer: true}
	c, m, resolved := newController(d, p)

	c.RequestClose([]shared.Target{{Window: 1, PID: 100}})
	m.Advance(time.Second)

	require.Empty(t, p.messages)
	require.Equal(t, Closed, (*resolved)[0].State)
}

func TestTerminateErrorIsRecorded(t *testing.T) {
	d := newDesktop()
	d.valid[1] = true
	d.running[100] = true
	d.killErr = errors.New("access denied")
	c, m, resolved := newController(d, &fakePrompt{answer: true})

	c.RequestClose([]shared.Target{{Window: 1, PID: 100}})
	m.Advance(time.Second)

	a := (*resolved)[0]
	require.Equal(t, ForcedTerminated, a.State)
	require.ErrorIs(t, a.Err, d.killErr)
}

func TestRequestCloseSkipsUnusableTargets(t *testing.T) {
	cases := []struct {
		name    string
		target  shared.Target
		valid   bool
		postErr error
	}{
		{name: "zero handle", target: shared.Target{Window: 0, PID: 1}, valid: true},
		{name: "stale handle", target: shared.Target{Window: 5, PID: 1}, valid: false},
		{name: "post fails", target: shared.Target{Window: 5, PID: 1}, valid: true, postErr: errors.New("denied")},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := newDesktop()
			d.valid[tc.target.Window] = tc.valid
			d.postErr = tc.postErr
			c, m, resolved := newController(d, &fakePrompt{answer: true})

			require.Empty(t, c.RequestClose([]shared.Target{tc.target}))
			require.Zero(t, m.Pending(), "no timer")
			m.Advance(time.Second)
			require.Empty(t, *resolved)
			require.Empty(t, c.Pending())
		})
	}
}

func TestRequestCloseIsIdempotentPerTarget(t *testing.T) {
	d := newDesktop()
	d.valid[1] = true
	d.running[100] = true
	p := &fakePrompt{answer: true}
	c, m, _ := newController(d, p)

	target := shared.Target{Window: 1, PID: 100}
	c.RequestClose([]shared.Target{target})
	m.Advance(300 * time.Millisecond)
	require.Empty(t, c.RequestClose([]shared.Target{target}), "second request while in flight is ignored")
	require.Len(t, d.posts, 1)

	m.Advance(time.Second)
	require.Len(t, p.messages, 1)
}

func TestTargetsResolveIndependently(t *testing.T) {
	d := newDesktop()
	d.valid[1] = true
	d.valid[2] = true
	d.running[100] = true
	d.running[200] = true
	p := &fakePrompt{answer: false}
	c, m, resolved := newController(d, p)

	c.RequestClose([]shared.Target{{Window: 1, PID: 100}, {Window: 2, PID: 200}})
	d.valid[2] = false
	m.Advance(time.Second)

	states := map[int]State{}
	for _, a := range *resolved {
		states[a.Target.PID] = a.State
	}
	require.Equal(t, map[int]State{100: LeftRunning, 200: Closed}, states)
}

func TestCancelAndClose(t *testing.T) {
	d := newDesktop()
	d.valid[1] = true
	d.valid[2] = true
	d.running[100] = true
	p := &fakePrompt{answer: true}
	c, m, resolved := newController(d, p)

	ids := c.RequestClose([]shared.Target{{Window: 1, PID: 100}, {Window: 2, PID: 100}})
	require.Len(t, c.Pending(), 2)
	require.True(t, c.Cancel(ids[0]))
	require.False(t, c.Cancel(ids[0]), "second cancel reports false")

	c.Close()
	m.Advance(time.Second)

	require.Empty(t, *resolved, "cancelled attempts must not resolve")
	require.Empty(t, p.messages)
	require.Empty(t, c.Pending())
}

func TestPendingOrderAndGrace(t *testing.T) {
	d := newDesktop()
	d.valid[1] = true
	d.valid[2] = true
	c, m, resolved := newController(d, &fakePrompt{})

	c.SetGrace(0)
	require.Equal(t, DefaultGrace, c.Grace(), "non-positive grace is ignored")
	c.SetGrace(2 * time.Second)

	c.RequestClose([]shared.Target{{Window: 2, PID: 20}})
	m.Advance(100 * time.Millisecond)
	c.RequestClose([]shared.Target{{Window: 1, PID: 10}})

	pending := c.Pending()
	require.Len(t, pending, 2)
	require.Equal(t, 20, pending[0].Target.PID, "oldest first")
	require.Equal(t, 10, pending[1].Target.PID)
	require.Equal(t, WaitingGrace, pending[0].State)

	m.Advance(time.Second)
	require.Empty(t, *resolved, "resolved before the longer grace elapsed")
	m.Advance(2 * time.Second)
	require.Len(t, *resolved, 2)
}

func TestStateFinal(t *testing.T) {
	final := map[State]bool{
		Idle: false, CloseRequested: false, WaitingGrace: false, ForcePromptPending: false,
		Closed: true, ForcedTerminated: true, LeftRunning: true,
	}
	for s, want := range final {
		if s.Final() != want {
			t.Fatalf("%s: expected final=%v", s, want)
		}
	}
}
