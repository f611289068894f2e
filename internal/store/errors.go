package store

import "errors"

// Common store errors used by the registry.
var (
	// ErrNotFound is returned when the requested task id is unknown to
	// the registry.
	ErrNotFound = errors.New("task not found")

	// ErrIllegalState is returned when an operation is rejected because
	// of the task's current status, such as deleting a task that has
	// not reached a terminal status yet.
	ErrIllegalState = errors.New("illegal task state")
)
