package task

import "fmt"

// Status represents the current state of a task's lifecycle.
// The zero value is StatusQueued, the state every task starts in.
type Status int32

// Possible task status values.
const (
	StatusQueued Status = iota
	StatusRunning
	StatusCompleted
	StatusFailed
	StatusInterrupted
)

var statusNames = map[Status]string{
	StatusQueued:      "QUEUED",
	StatusRunning:     "RUNNING",
	StatusCompleted:   "COMPLETED",
	StatusFailed:      "FAILED",
	StatusInterrupted: "INTERRUPTED",
}

// String returns the canonical upper-case name of the status.
func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Status(%d)", int32(s))
}

// Terminal reports whether the status is final. Once a task reaches a
// terminal status no further transition is permitted.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusInterrupted:
		return true
	default:
		return false
	}
}

// ParseStatus maps a canonical status name back to a Status. It is used
// by callers translating externally supplied filter values.
func ParseStatus(name string) (Status, error) {
	for s, n := range statusNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown status %q", name)
}
