package task

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/evalbox/evalbox/internal/buffer"
)

// ErrIllegalTransition indicates a status transition was attempted
// against a stale expected status. It signals a coordination bug between
// execution and cancellation, not a business error, and is logged loudly
// wherever it surfaces.
var ErrIllegalTransition = errors.New("illegal status transition")

// Task is one submitted unit of script code together with its execution
// state and captured output.
//
// id, body and scheduledAt are immutable after creation. status is
// mutated only through compare-and-set transitions, because it is the
// one field touched by two goroutines: the worker executing the task and
// a caller cancelling it. The output buffer carries its own mutex. The
// engine program is owned exclusively by the task and released exactly
// once, on every exit path.
type Task struct {
	id          int64
	body        string
	scheduledAt time.Time

	status       atomic.Int32
	lastModified atomic.Int64 // unix milliseconds
	execMillis   atomic.Int64
	execSet      atomic.Bool

	out     buffer.Buffer
	program Program
	release sync.Once
}

// New creates a task in StatusQueued owning the given parsed program and
// output buffer.
func New(id int64, body string, program Program, out buffer.Buffer) *Task {
	t := &Task{
		id:          id,
		body:        body,
		scheduledAt: time.Now(),
		out:         out,
		program:     program,
	}
	t.status.Store(int32(StatusQueued))
	t.lastModified.Store(t.scheduledAt.UnixMilli())

	return t
}

// ID returns the task's process-unique identifier.
func (t *Task) ID() int64 { return t.id }

// Body returns the submitted source text.
func (t *Task) Body() string { return t.body }

// ScheduledAt returns the submission timestamp.
func (t *Task) ScheduledAt() time.Time { return t.scheduledAt }

// LastModifiedAt returns the time of the most recent status transition.
func (t *Task) LastModifiedAt() time.Time {
	return time.UnixMilli(t.lastModified.Load())
}

// Status returns the current status. Safe for concurrent use without
// further locking.
func (t *Task) Status() Status {
	return Status(t.status.Load())
}

// Output returns the currently retained output text. Safe to call while
// the task is still writing.
func (t *Task) Output() string {
	return t.out.String()
}

// ExecutionTime returns the wall-clock execution duration and whether it
// has been recorded yet. It is recorded exactly once, when the task
// leaves StatusRunning, or as zero when cancelled while still queued.
func (t *Task) ExecutionTime() (time.Duration, bool) {
	if !t.execSet.Load() {
		return 0, false
	}
	return time.Duration(t.execMillis.Load()) * time.Millisecond, true
}

// TryTransition atomically moves the task from the expected status to
// the next one, refreshing lastModifiedAt on success. It reports whether
// the compare-and-set won; a false return against a stale expectation is
// how execution/cancellation races are arbitrated.
func (t *Task) TryTransition(from, to Status) bool {
	// Terminal statuses admit no further transition, whatever a caller
	// claims to expect.
	if from.Terminal() {
		return false
	}

	if !t.status.CompareAndSwap(int32(from), int32(to)) {
		return false
	}

	t.lastModified.Store(time.Now().UnixMilli())
	return true
}

// Run executes the task on the calling worker goroutine: transition to
// RUNNING, evaluate, record the execution time, transition to a terminal
// status matching the evaluation outcome. Resources are released
// unconditionally, whichever exit path is taken, and a panicking engine
// is contained so the worker survives.
func (t *Task) Run(logger *slog.Logger) {
	defer t.releaseResources()

	if !t.TryTransition(StatusQueued, StatusRunning) {
		// Cancelled between dequeue and start; nothing to run.
		logger.Debug("skipping task, no longer queued",
			"task_id", t.id,
			"status", t.Status().String())
		return
	}

	start := time.Now()
	res := t.evaluate()
	t.setExecutionTime(time.Since(start))

	switch res.Outcome {
	case EvalOK:
		t.mustTransition(StatusRunning, StatusCompleted, logger)

	case EvalGuestError:
		// The script's own failure belongs to its recorded output.
		if res.Err != nil {
			fmt.Fprintf(t.out, "%s\n", res.Err.Error())
		}
		t.mustTransition(StatusRunning, StatusFailed, logger)

	case EvalInterrupted:
		t.mustTransition(StatusRunning, StatusInterrupted, logger)

	case EvalHostError:
		// Engine-internal failure: full detail stays server-side, the
		// task's output never sees it.
		logger.Error("engine failure during evaluation",
			"task_id", t.id,
			"error", res.Err)
		t.mustTransition(StatusRunning, StatusFailed, logger)
	}
}

// evaluate invokes the engine, containing panics as host errors so an
// engine fault can never kill the worker goroutine.
func (t *Task) evaluate() (res EvalResult) {
	defer func() {
		if r := recover(); r != nil {
			res = EvalResult{
				Outcome: EvalHostError,
				Err:     fmt.Errorf("panic during evaluation: %v", r),
			}
		}
	}()

	return t.program.Evaluate(t.out)
}

// Cancel stops an actively executing task: first a graceful interrupt
// bounded by timeout, then a forced close of the engine context if the
// interrupt goes unacknowledged. The terminal status is set by the
// executing goroutine's own exit path in either case, never here, so the
// two goroutines cannot race on the transition.
func (t *Task) Cancel(timeout time.Duration, logger *slog.Logger) bool {
	if t.program.Interrupt(timeout) {
		logger.Debug("task interrupted gracefully", "task_id", t.id)
		return true
	}

	logger.Warn("graceful interrupt unacknowledged, force-closing engine",
		"task_id", t.id,
		"timeout", timeout)
	t.program.Close()

	return true
}

// CancelQueued interrupts a task that never started running, moving it
// straight from QUEUED to INTERRUPTED with zero execution time. It
// reports false when the task is no longer queued, which means a worker
// won the race and the caller should look for it there instead.
func (t *Task) CancelQueued(logger *slog.Logger) bool {
	if !t.TryTransition(StatusQueued, StatusInterrupted) {
		return false
	}

	logger.Debug("queued task cancelled before execution", "task_id", t.id)
	t.setExecutionTime(0)
	t.releaseResources()

	return true
}

// mustTransition performs a transition that only a coordination bug can
// make fail, logging loudly when it does.
func (t *Task) mustTransition(from, to Status, logger *slog.Logger) {
	if t.TryTransition(from, to) {
		return
	}

	logger.Error("illegal status transition",
		"task_id", t.id,
		"expected", from.String(),
		"target", to.String(),
		"actual", t.Status().String(),
		"error", ErrIllegalTransition)
}

// setExecutionTime records the wall-clock duration exactly once. The
// status state machine already guarantees a single caller; the value is
// stored before the flag so readers never observe the flag without it.
func (t *Task) setExecutionTime(d time.Duration) {
	if t.execSet.Load() {
		return
	}

	t.execMillis.Store(d.Milliseconds())
	t.execSet.Store(true)
}

// Release frees the engine resources of a task that was never admitted
// to a queue, such as one rejected by admission control. For admitted
// tasks the run and cancel paths release automatically.
func (t *Task) Release() {
	t.releaseResources()
}

// releaseResources closes the engine program and flushes the output
// buffer, exactly once regardless of how many exit paths reach it.
func (t *Task) releaseResources() {
	t.release.Do(func() {
		t.program.Close()
		_ = t.out.Close()
	})
}
