package task

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evalbox/evalbox/internal/buffer"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

func newTestTask(t *testing.T, id int64, program Program) *Task {
	t.Helper()

	out, err := buffer.NewLineBuffer(4, 64)
	require.NoError(t, err)

	return New(id, "console.log(1)", program, out)
}

func TestNew(t *testing.T) {
	t.Parallel()

	tk := newTestTask(t, 7, &MockProgram{})

	assert.Equal(t, int64(7), tk.ID())
	assert.Equal(t, "console.log(1)", tk.Body())
	assert.Equal(t, StatusQueued, tk.Status())
	assert.False(t, tk.ScheduledAt().IsZero())

	_, recorded := tk.ExecutionTime()
	assert.False(t, recorded)
}

func TestTask_TryTransition(t *testing.T) {
	t.Parallel()

	t.Run("succeeds against the expected status", func(t *testing.T) {
		tk := newTestTask(t, 1, &MockProgram{})

		assert.True(t, tk.TryTransition(StatusQueued, StatusRunning))
		assert.Equal(t, StatusRunning, tk.Status())
	})

	t.Run("fails against a stale expected status", func(t *testing.T) {
		tk := newTestTask(t, 1, &MockProgram{})

		assert.False(t, tk.TryTransition(StatusRunning, StatusCompleted))
		assert.Equal(t, StatusQueued, tk.Status())
	})

	t.Run("refreshes lastModifiedAt on success", func(t *testing.T) {
		tk := newTestTask(t, 1, &MockProgram{})
		before := tk.LastModifiedAt()

		time.Sleep(5 * time.Millisecond)
		require.True(t, tk.TryTransition(StatusQueued, StatusRunning))

		assert.False(t, tk.LastModifiedAt().Before(before))
	})

	t.Run("exactly one contender wins a transition", func(t *testing.T) {
		tk := newTestTask(t, 1, &MockProgram{})

		var wins atomic.Int32
		done := make(chan struct{})
		for i := 0; i < 8; i++ {
			go func() {
				if tk.TryTransition(StatusQueued, StatusRunning) {
					wins.Add(1)
				}
				done <- struct{}{}
			}()
		}
		for i := 0; i < 8; i++ {
			<-done
		}

		assert.Equal(t, int32(1), wins.Load())
	})
}

func TestTask_Run(t *testing.T) {
	t.Parallel()

	t.Run("successful evaluation completes the task", func(t *testing.T) {
		program := &MockProgram{
			EvaluateFn: func(sink io.Writer) EvalResult {
				io.WriteString(sink, "2\n")
				return EvalResult{Outcome: EvalOK}
			},
		}
		tk := newTestTask(t, 1, program)

		tk.Run(testLogger())

		assert.Equal(t, StatusCompleted, tk.Status())
		assert.Equal(t, "2\n", tk.Output())

		_, recorded := tk.ExecutionTime()
		assert.True(t, recorded)
	})

	t.Run("guest error fails the task and lands in its output", func(t *testing.T) {
		program := &MockProgram{
			EvaluateFn: func(sink io.Writer) EvalResult {
				return EvalResult{
					Outcome: EvalGuestError,
					Err:     errors.New("ReferenceError: boom is not defined"),
				}
			},
		}
		tk := newTestTask(t, 1, program)

		tk.Run(testLogger())

		assert.Equal(t, StatusFailed, tk.Status())
		assert.Contains(t, tk.Output(), "ReferenceError: boom is not defined")
	})

	t.Run("interrupted evaluation marks the task interrupted", func(t *testing.T) {
		program := &MockProgram{
			EvaluateFn: func(sink io.Writer) EvalResult {
				return EvalResult{Outcome: EvalInterrupted}
			},
		}
		tk := newTestTask(t, 1, program)

		tk.Run(testLogger())

		assert.Equal(t, StatusInterrupted, tk.Status())
	})

	t.Run("host error fails the task without leaking detail", func(t *testing.T) {
		program := &MockProgram{
			EvaluateFn: func(sink io.Writer) EvalResult {
				return EvalResult{
					Outcome: EvalHostError,
					Err:     errors.New("internal engine stack trace"),
				}
			},
		}
		tk := newTestTask(t, 1, program)

		tk.Run(testLogger())

		assert.Equal(t, StatusFailed, tk.Status())
		assert.NotContains(t, tk.Output(), "internal engine stack trace")
	})

	t.Run("a panicking engine is contained", func(t *testing.T) {
		program := &MockProgram{
			EvaluateFn: func(sink io.Writer) EvalResult {
				panic("engine bug")
			},
		}
		tk := newTestTask(t, 1, program)

		require.NotPanics(t, func() { tk.Run(testLogger()) })

		assert.Equal(t, StatusFailed, tk.Status())
		assert.NotContains(t, tk.Output(), "engine bug")
	})

	t.Run("skips execution when the task is no longer queued", func(t *testing.T) {
		var evaluated atomic.Bool
		program := &MockProgram{
			EvaluateFn: func(sink io.Writer) EvalResult {
				evaluated.Store(true)
				return EvalResult{Outcome: EvalOK}
			},
		}
		tk := newTestTask(t, 1, program)
		require.True(t, tk.CancelQueued(testLogger()))

		tk.Run(testLogger())

		assert.False(t, evaluated.Load())
		assert.Equal(t, StatusInterrupted, tk.Status())
	})

	t.Run("releases resources exactly once", func(t *testing.T) {
		var closes atomic.Int32
		program := &MockProgram{
			CloseFn: func() { closes.Add(1) },
		}
		tk := newTestTask(t, 1, program)

		tk.Run(testLogger())
		tk.Release()
		tk.Release()

		assert.Equal(t, int32(1), closes.Load())
	})
}

func TestTask_CancelQueued(t *testing.T) {
	t.Parallel()

	t.Run("moves straight to INTERRUPTED with zero execution time", func(t *testing.T) {
		tk := newTestTask(t, 1, &MockProgram{})

		require.True(t, tk.CancelQueued(testLogger()))

		assert.Equal(t, StatusInterrupted, tk.Status())
		d, recorded := tk.ExecutionTime()
		assert.True(t, recorded)
		assert.Equal(t, time.Duration(0), d)
	})

	t.Run("reports false once the task left the queue", func(t *testing.T) {
		tk := newTestTask(t, 1, &MockProgram{})
		require.True(t, tk.TryTransition(StatusQueued, StatusRunning))

		assert.False(t, tk.CancelQueued(testLogger()))
		assert.Equal(t, StatusRunning, tk.Status())
	})
}

func TestTask_Cancel(t *testing.T) {
	t.Parallel()

	t.Run("graceful interrupt is enough when acknowledged", func(t *testing.T) {
		program, _ := NewBlockingProgram()
		tk := newTestTask(t, 1, program)
		done := make(chan struct{})
		go func() {
			tk.Run(testLogger())
			close(done)
		}()

		// Let the evaluation start before cancelling.
		require.Eventually(t, func() bool {
			return tk.Status() == StatusRunning
		}, time.Second, time.Millisecond)

		assert.True(t, tk.Cancel(time.Second, testLogger()))

		<-done
		assert.Equal(t, StatusInterrupted, tk.Status())
	})

	t.Run("force-closes when the interrupt goes unacknowledged", func(t *testing.T) {
		program := NewStubbornProgram()
		tk := newTestTask(t, 1, program)

		done := make(chan struct{})
		go func() {
			tk.Run(testLogger())
			close(done)
		}()

		require.Eventually(t, func() bool {
			return tk.Status() == StatusRunning
		}, time.Second, time.Millisecond)

		assert.True(t, tk.Cancel(10*time.Millisecond, testLogger()))

		<-done
		assert.Equal(t, StatusInterrupted, tk.Status())
	})
}

func TestTask_TerminalStability(t *testing.T) {
	t.Parallel()

	tk := newTestTask(t, 1, &MockProgram{})
	tk.Run(testLogger())
	require.Equal(t, StatusCompleted, tk.Status())

	for _, next := range []Status{StatusQueued, StatusRunning, StatusFailed, StatusInterrupted} {
		assert.False(t, tk.TryTransition(StatusCompleted, next),
			"terminal status must not transition to %s", next)
	}
}
