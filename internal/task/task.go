package task

import "time"

type Kind string

const (
	KindGrab   Kind = "grab"
	KindNotify Kind = "notify"
)

// Task is one submitted unit of work. Owned by the registry once submitted;
// callers keep only the ID.
type Task struct {
	ID        string
	Kind      Kind
	Request   Request
	Status    Status
	Result    string
	Attempts  int
	CreatedAt time.Time
	// StartTime, when set, is the sale-opening instant the executor waits for.
	StartTime  *time.Time
	FinishedAt *time.Time
}

// Snapshot is the caller-visible view of a task. It is a value copy; mutating
// it has no effect on registry state.
type Snapshot struct {
	ID         string     `json:"id"`
	Kind       Kind       `json:"kind"`
	Status     Status     `json:"status"`
	Result     string     `json:"result,omitempty"`
	Attempts   int        `json:"attempts"`
	CreatedAt  time.Time  `json:"created_at"`
	StartTime  *time.Time `json:"start_time,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

func (t *Task) Snapshot() Snapshot {
	return Snapshot{
		ID:         t.ID,
		Kind:       t.Kind,
		Status:     t.Status,
		Result:     t.Result,
		Attempts:   t.Attempts,
		CreatedAt:  t.CreatedAt,
		StartTime:  t.StartTime,
		FinishedAt: t.FinishedAt,
	}
}
