// Package registry is the single source of truth for task state. Insertion,
// removal and enumeration take the registry lock; status writes go through
// the entry, which is only ever written by the task's own executor.
package registry

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/TsubakiDev/btr/internal/task"
)

// Entry wraps one task with the flags the manager and executor coordinate on.
type Entry struct {
	mu   sync.Mutex
	task *task.Task

	cancel          context.CancelFunc
	cancelRequested bool
	// committed is set while an order confirmation is in flight or has been
	// sent; past that point cancellation is refused.
	committed bool
	// observed is set once a terminal snapshot has been handed out; sweeping
	// never evicts an unobserved terminal task.
	observed bool
}

func (e *Entry) Snapshot() task.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.task.Snapshot()
	if task.IsTerminal(s.Status) {
		e.observed = true
	}
	return s
}

// SetStatus moves the task through its state machine. Invalid transitions are
// programming errors and surface as such.
func (e *Entry) SetStatus(to task.Status) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := task.ValidateTransition(e.task.Status, to); err != nil {
		return err
	}
	e.task.Status = to
	return nil
}

// Finish records the terminal state with its human-readable result message.
func (e *Entry) Finish(to task.Status, result string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := task.ValidateTransition(e.task.Status, to); err != nil {
		return err
	}
	now := time.Now()
	e.task.Status = to
	e.task.Result = result
	e.task.FinishedAt = &now
	return nil
}

func (e *Entry) IncAttempts() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.task.Attempts++
	return e.task.Attempts
}

func (e *Entry) CancelRequested() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancelRequested
}

func (e *Entry) SetCommitted(v bool) {
	e.mu.Lock()
	e.committed = v
	e.mu.Unlock()
}

func (e *Entry) Task() *task.Task { return e.task }

// Registry is a bounded concurrent map of live and recently-terminal tasks.
type Registry struct {
	mu        sync.RWMutex
	entries   map[string]*Entry
	capacity  int
	retention time.Duration
}

func New(capacity int, retention time.Duration) *Registry {
	if capacity <= 0 {
		capacity = 256
	}
	if retention <= 0 {
		retention = 10 * time.Minute
	}
	return &Registry{
		entries:   make(map[string]*Entry),
		capacity:  capacity,
		retention: retention,
	}
}

// Insert stores a fresh pending task. cancel aborts the task's context.
func (r *Registry) Insert(t *task.Task, cancel context.CancelFunc) (*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.entries) >= r.capacity {
		return nil, ErrFull
	}
	e := &Entry{task: t, cancel: cancel}
	r.entries[t.ID] = e
	return e, nil
}

func (r *Registry) Get(id string) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	return e, ok
}

// Snapshot returns the caller-visible state of one task.
func (r *Registry) Snapshot(id string) (task.Snapshot, bool) {
	e, ok := r.Get(id)
	if !ok {
		return task.Snapshot{}, false
	}
	return e.Snapshot(), true
}

// List enumerates every task, newest first.
func (r *Registry) List() []task.Snapshot {
	r.mu.RLock()
	entries := make([]*Entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	out := make([]task.Snapshot, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Cancel requests cooperative cancellation. It only has effect while the task
// is pending or running and no irrevocable remote side effect is in flight;
// otherwise the task is left to finish naturally.
func (r *Registry) Cancel(id string) error {
	e, ok := r.Get(id)
	if !ok {
		return ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if task.IsTerminal(e.task.Status) {
		return ErrAlreadyTerminal
	}
	if e.committed {
		return ErrTooLate
	}
	e.cancelRequested = true
	if e.cancel != nil {
		e.cancel()
	}
	return nil
}

// Sweep evicts terminal tasks that have been observed at least once and whose
// retention window has elapsed. Returns the number of evicted entries.
func (r *Registry) Sweep(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	for id, e := range r.entries {
		e.mu.Lock()
		expired := e.observed &&
			task.IsTerminal(e.task.Status) &&
			e.task.FinishedAt != nil &&
			now.Sub(*e.task.FinishedAt) >= r.retention
		e.mu.Unlock()
		if expired {
			delete(r.entries, id)
			evicted++
		}
	}
	return evicted
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
