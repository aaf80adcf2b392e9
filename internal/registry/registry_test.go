package registry

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/TsubakiDev/btr/internal/task"
)

func newTask(id string) *task.Task {
	return &task.Task{
		ID:        id,
		Kind:      task.KindGrab,
		Status:    task.StatusPending,
		CreatedAt: time.Now(),
	}
}

func TestInsertAndSnapshot(t *testing.T) {
	r := New(8, time.Minute)

	_, err := r.Insert(newTask("a"), nil)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	snap, ok := r.Snapshot("a")
	if !ok {
		t.Fatalf("expected snapshot for a")
	}
	if snap.Status != task.StatusPending {
		t.Fatalf("expected pending, got %s", snap.Status)
	}

	if _, ok := r.Snapshot("missing"); ok {
		t.Fatalf("expected miss for unknown id")
	}
}

func TestInsertPastCapacity(t *testing.T) {
	r := New(2, time.Minute)
	for i := 0; i < 2; i++ {
		if _, err := r.Insert(newTask(fmt.Sprintf("t%d", i)), nil); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}
	_, err := r.Insert(newTask("overflow"), nil)
	if !errors.Is(err, ErrFull) {
		t.Fatalf("expected ErrFull, got %v", err)
	}
}

func TestCancelStates(t *testing.T) {
	r := New(8, time.Minute)

	if err := r.Cancel("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	cancelled := false
	e, _ := r.Insert(newTask("a"), func() { cancelled = true })

	if err := r.Cancel("a"); err != nil {
		t.Fatalf("cancel pending: %v", err)
	}
	if !cancelled {
		t.Fatalf("expected cancel func invoked")
	}
	if !e.CancelRequested() {
		t.Fatalf("expected cancel flag set")
	}

	// Terminal task cannot be cancelled.
	e2, _ := r.Insert(newTask("b"), nil)
	if err := e2.SetStatus(task.StatusAttempting); err != nil {
		t.Fatalf("set status: %v", err)
	}
	if err := e2.Finish(task.StatusSucceeded, "done"); err != nil {
		t.Fatalf("finish: %v", err)
	}
	if err := r.Cancel("b"); !errors.Is(err, ErrAlreadyTerminal) {
		t.Fatalf("expected ErrAlreadyTerminal, got %v", err)
	}
}

func TestCancelTooLateWhileCommitted(t *testing.T) {
	r := New(8, time.Minute)
	e, _ := r.Insert(newTask("a"), nil)
	if err := e.SetStatus(task.StatusAttempting); err != nil {
		t.Fatalf("set status: %v", err)
	}

	e.SetCommitted(true)
	if err := r.Cancel("a"); !errors.Is(err, ErrTooLate) {
		t.Fatalf("expected ErrTooLate, got %v", err)
	}

	// Confirmation failed transiently: cancellable again.
	e.SetCommitted(false)
	if err := r.Cancel("a"); err != nil {
		t.Fatalf("cancel after uncommit: %v", err)
	}
}

func TestSweepRequiresObservation(t *testing.T) {
	r := New(8, 10*time.Millisecond)
	e, _ := r.Insert(newTask("a"), nil)
	_ = e.SetStatus(task.StatusAttempting)
	_ = e.Finish(task.StatusFailed, "boom")

	// Terminal and past retention, but never observed: must not be evicted.
	if n := r.Sweep(time.Now().Add(time.Hour)); n != 0 {
		t.Fatalf("swept unobserved task, evicted=%d", n)
	}

	_, _ = r.Snapshot("a") // observe
	if n := r.Sweep(time.Now().Add(time.Hour)); n != 1 {
		t.Fatalf("expected 1 eviction, got %d", n)
	}
	if _, ok := r.Snapshot("a"); ok {
		t.Fatalf("expected a gone after sweep")
	}
}

func TestSweepKeepsFreshTerminal(t *testing.T) {
	r := New(8, time.Hour)
	e, _ := r.Insert(newTask("a"), nil)
	_ = e.SetStatus(task.StatusAttempting)
	_ = e.Finish(task.StatusSucceeded, "ok")
	_, _ = r.Snapshot("a")

	if n := r.Sweep(time.Now()); n != 0 {
		t.Fatalf("evicted inside retention window, n=%d", n)
	}
}

func TestConcurrentInsertAndList(t *testing.T) {
	r := New(512, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := r.Insert(newTask(fmt.Sprintf("t%03d", i)), nil); err != nil {
				t.Errorf("insert %d: %v", i, err)
			}
			r.List()
		}(i)
	}
	wg.Wait()

	if r.Len() != 100 {
		t.Fatalf("expected 100 entries, got %d", r.Len())
	}
	if got := len(r.List()); got != 100 {
		t.Fatalf("expected 100 listed, got %d", got)
	}
}
