// Package registry tracks one long-lived metrics handle per observed process.
package registry

import (
	"errors"
	"io"
	"log"
)

// ErrNotTracked is returned for pids the registry holds no handle for.
var ErrNotTracked = errors.New("pid not tracked")

// Handle samples one process repeatedly without reopening it.
// The first CPUPercent call on a fresh handle returns 0 and seeds the baseline.
type Handle interface {
	CPUPercent() (float64, error)
	MemoryMB() (float64, error)
	Name() (string, error)
	ExecutablePath() (string, error)
	Close() error
}

// Opener opens metrics handles. It fails if the process has already exited.
type Opener interface {
	Open(pid int) (Handle, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(pid int) (Handle, error)

func (f OpenerFunc) Open(pid int) (Handle, error) { return f(pid) }

// Sample is the last known state of a tracked process.
type Sample struct {
	CPUPercent float64
	MemoryMB   float64
	Name       string
}

type entry struct {
	pid    int
	handle Handle
	last   Sample
	fresh  bool
}

// Registry maps pid to its metrics handle. It is not safe for concurrent
// use; all calls come from the scheduling loop.
type Registry struct {
	opener  Opener
	logger  *log.Logger
	entries map[int]*entry
}

func New(opener Opener, logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Registry{
		opener:  opener,
		logger:  logger,
		entries: make(map[int]*entry),
	}
}

// Reconcile opens handles for newly seen pids and releases handles of pids
// that are no longer present. A pid whose process exited before it could be
// opened is skipped for this round and retried next time it is seen.
func (r *Registry) Reconcile(current map[int]struct{}) {
	for pid, e := range r.entries {
		if _, ok := current[pid]; ok {
			continue
		}
		r.release(e)
		delete(r.entries, pid)
	}

	for pid := range current {
		if _, ok := r.entries[pid]; ok {
			continue
		}
		h, err := r.opener.Open(pid)
		if err != nil {
			r.logger.Printf("open pid %d: %v", pid, err)
			continue
		}
		// Seed the CPU baseline; this reading is meaningless by contract.
		_, _ = h.CPUPercent()

		e := &entry{pid: pid, handle: h, fresh: true}
		if name, err := h.Name(); err == nil {
			e.last.Name = name
		}
		r.entries[pid] = e
	}
}

// Sample refreshes and returns the metrics for pid. Calls that fail keep the
// previously cached value for that field. The first sample after opening
// reports 0% CPU. It returns false if pid is not tracked.
func (r *Registry) Sample(pid int) (Sample, bool) {
	e, ok := r.entries[pid]
	if !ok {
		return Sample{}, false
	}

	if e.fresh {
		e.fresh = false
		e.last.CPUPercent = 0
	} else if cpu, err := e.handle.CPUPercent(); err == nil {
		e.last.CPUPercent = cpu
	}

	if mem, err := e.handle.MemoryMB(); err == nil {
		e.last.MemoryMB = mem
	}

	if name, err := e.handle.Name(); err == nil && name != "" {
		e.last.Name = name
	}

	return e.last, true
}

// ExecutablePath returns the image path of a tracked process.
func (r *Registry) ExecutablePath(pid int) (string, error) {
	e, ok := r.entries[pid]
	if !ok {
		return "", ErrNotTracked
	}
	return e.handle.ExecutablePath()
}

// Has reports whether pid currently has an open handle.
func (r *Registry) Has(pid int) bool {
	_, ok := r.entries[pid]
	return ok
}

func (r *Registry) Len() int {
	return len(r.entries)
}

// Close releases every handle. The registry is empty afterwards.
func (r *Registry) Close() {
	for pid, e := range r.entries {
		r.release(e)
		delete(r.entries, pid)
	}
}

func (r *Registry) release(e *entry) {
	if err := e.handle.Close(); err != nil {
		r.logger.Printf("close pid %d: %v", e.pid, err)
	}
}
