package registry

import "errors"

var (
	ErrNotFound        = errors.New("task not found")
	ErrFull            = errors.New("registry full")
	ErrAlreadyTerminal = errors.New("task already terminal")
	ErrTooLate         = errors.New("too late to cancel")
)
