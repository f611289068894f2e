package service

import (
	"fmt"
	"time"

	"github.com/evalbox/evalbox/internal/task"
)

// Execution-time placeholders for tasks that have no recorded duration.
const (
	executionNotStarted = "not yet executed"
	executionInFlight   = "currently running"
)

// Snapshot is the read model handed to the outer layer: a consistent
// copy of a task's externally visible state at one point in time.
type Snapshot struct {
	ID             int64
	Status         task.Status
	ExecutionTime  string
	ScheduledAt    time.Time
	LastModifiedAt time.Time
	Body           string
	Output         string
}

// newSnapshot captures the task's current state. The execution time is
// rendered human-readably: a duration once recorded, a progress phrase
// before that.
func newSnapshot(t *task.Task) Snapshot {
	return Snapshot{
		ID:             t.ID(),
		Status:         t.Status(),
		ExecutionTime:  renderExecutionTime(t),
		ScheduledAt:    t.ScheduledAt(),
		LastModifiedAt: t.LastModifiedAt(),
		Body:           t.Body(),
		Output:         t.Output(),
	}
}

func renderExecutionTime(t *task.Task) string {
	if d, ok := t.ExecutionTime(); ok {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}

	if t.Status() == task.StatusRunning {
		return executionInFlight
	}

	return executionNotStarted
}
