package registry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeHandle struct {
	pid      int
	cpuCalls int
	cpu      []float64
	mem      float64
	memErr   error
	name     string
	nameErr  error
	exe      string
	closed   int
}

func (h *fakeHandle) CPUPercent() (float64, error) {
	h.cpuCalls++
	if h.cpuCalls == 1 {
		return 0, nil
	}
	if len(h.cpu) == 0 {
		return 0, errors.New("gone")
	}
	v := h.cpu[0]
	h.cpu = h.cpu[1:]
	return v, nil
}

func (h *fakeHandle) MemoryMB() (float64, error) { return h.mem, h.memErr }
func (h *fakeHandle) Name() (string, error) { return h.name, h.nameErr }
func (h *fakeHandle) ExecutablePath() (string, error) { return h.exe, nil }
func (h *fakeHandle) Close() error {
	h.closed++
	return nil
}

type fakeOpener struct {
	opens   map[int]int
	handles map[int]*fakeHandle
	exited  map[int]bool
}

func newFakeOpener() *fakeOpener {
	return &fakeOpener{opens: map[int]int{}, handles: map[int]*fakeHandle{}, exited: map[int]bool{}}
}

func (o *fakeOpener) Open(pid int) (Handle, error) {
	if o.exited[pid] {
		return nil, errors.New("no such process")
	}
	o.opens[pid]++
	h, ok := o.handles[pid]
	if !ok {
		h = &fakeHandle{pid: pid, name: "proc.exe", mem: 10}
		o.handles[pid] = h
	}
	return h, nil
}

func set(pids ...int) map[int]struct{} {
	s := make(map[int]struct{}, len(pids))
	for _, p := range pids {
		s[p] = struct{}{}
	}
	return s
}

func TestReconcileIsIdempotent(t *testing.T) {
	o := newFakeOpener()
	r := New(o, nil)

	r.Reconcile(set(1, 2))
	r.Reconcile(set(1, 2))

	require.Equal(t, map[int]int{1: 1, 2: 1}, o.opens, "one open per pid")
	require.Zero(t, o.handles[1].closed)
	require.Zero(t, o.handles[2].closed)
	require.Equal(t, 2, r.Len())
}

func TestReconcileEvictsAndReleases(t *testing.T) {
	o := newFakeOpener()
	r := New(o, nil)

	r.Reconcile(set(1, 2))
	r.Reconcile(set(2))

	require.Equal(t, 1, o.handles[1].closed, "evicted handle closed once")
	require.False(t, r.Has(1))
	require.True(t, r.Has(2))
	require.Zero(t, o.handles[2].closed)

	r.Reconcile(set(2))
	require.Equal(t, 1, o.handles[1].closed, "evicted handle released twice")
}

func TestReconcileSkipsExitedProcess(t *testing.T) {
	o := newFakeOpener()
	o.exited[3] = true
	r := New(o, nil)

	r.Reconcile(set(1, 3))

	require.False(t, r.Has(3), "exited pid must not be tracked")
	_, ok := r.Sample(3)
	require.False(t, ok)
	require.True(t, r.Has(1))

	o.exited[3] = false
	r.Reconcile(set(1, 3))
	require.True(t, r.Has(3), "pid is retried on the next round")
}

func TestSampleBaselineThenMeasurement(t *testing.T) {
	o := newFakeOpener()
	o.handles[1] = &fakeHandle{pid: 1, name: "app.exe", mem: 42, cpu: []float64{12.5, 30}}
	r := New(o, nil)
	r.Reconcile(set(1))

	first, ok := r.Sample(1)
	require.True(t, ok)
	require.Zero(t, first.CPUPercent, "baseline")
	require.Equal(t, 1, o.handles[1].cpuCalls, "first sample must not take a second CPU reading")
	require.Equal(t, 42.0, first.MemoryMB)
	require.Equal(t, "app.exe", first.Name)

	second, _ := r.Sample(1)
	require.Equal(t, 12.5, second.CPUPercent)
}

func TestSampleKeepsLastKnownOnFailure(t *testing.T) {
	o := newFakeOpener()
	h := &fakeHandle{pid: 1, name: "app.exe", mem: 42, cpu: []float64{20}}
	o.handles[1] = h
	r := New(o, nil)
	r.Reconcile(set(1))
	r.Sample(1)
	r.Sample(1)

	h.memErr = errors.New("gone")
	h.nameErr = errors.New("gone")
	got, ok := r.Sample(1)
	require.True(t, ok)
	require.Equal(t, Sample{CPUPercent: 20, MemoryMB: 42, Name: "app.exe"}, got)
}

func TestCloseReleasesEverything(t *testing.T) {
	o := newFakeOpener()
	r := New(o, nil)
	r.Reconcile(set(1, 2, 3))
	r.Close()

	require.Zero(t, r.Len())
	for pid, h := range o.handles {
		require.Equal(t, 1, h.closed, "pid %d", pid)
	}
}

func TestExecutablePath(t *testing.T) {
	o := newFakeOpener()
	o.handles[1] = &fakeHandle{pid: 1, exe: `C:\app.exe`}
	r := New(o, nil)
	r.Reconcile(set(1))

	p, err := r.ExecutablePath(1)
	require.NoError(t, err)
	require.Equal(t, `C:\app.exe`, p)

	_, err = r.ExecutablePath(9)
	require.ErrorIs(t, err, ErrNotTracked)
}
