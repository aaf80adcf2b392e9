package task

import "fmt"

type Status string

const (
	StatusPending    Status = "pending"
	StatusWaiting    Status = "waiting"
	StatusAttempting Status = "attempting"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

var terminalStatuses = map[Status]bool{
	StatusSucceeded: true,
	StatusFailed:    true,
	StatusCancelled: true,
}

// waiting and attempting are both externally "running"; the split exists for
// the executor state machine (scheduled wait vs. live attempt loop).
var runningStatuses = map[Status]bool{
	StatusWaiting:    true,
	StatusAttempting: true,
}

var validTransitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusWaiting:    true,
		StatusAttempting: true,
		StatusCancelled:  true,
	},
	StatusWaiting: {
		StatusAttempting: true,
		StatusCancelled:  true,
	},
	StatusAttempting: {
		StatusAttempting: true, // retry loop
		StatusSucceeded:  true,
		StatusFailed:     true,
		StatusCancelled:  true,
	},
}

func IsTerminal(s Status) bool {
	return terminalStatuses[s]
}

func IsRunning(s Status) bool {
	return runningStatuses[s]
}

func ValidateTransition(from, to Status) error {
	if IsTerminal(from) {
		return fmt.Errorf("cannot transition from terminal status %q", from)
	}
	allowed, ok := validTransitions[from]
	if !ok {
		return fmt.Errorf("unknown status %q", from)
	}
	if !allowed[to] {
		return fmt.Errorf("invalid transition: %q → %q", from, to)
	}
	return nil
}
