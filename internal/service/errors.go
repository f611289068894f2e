package service

import "errors"

// Common service errors. ErrNotFound and ErrIllegalState from the store
// pass through Get, Cancel and Delete unchanged; these are the errors the
// service itself originates.
var (
	// ErrCapacityExceeded is returned by Submit when the worker pool's
	// queue is full. Recoverable by retrying later.
	ErrCapacityExceeded = errors.New("evaluation capacity exceeded")

	// ErrInvalidScript is returned by Submit when the code fails to
	// parse; no task is created and no queue slot is consumed.
	ErrInvalidScript = errors.New("invalid script")
)
