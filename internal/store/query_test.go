package store

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evalbox/evalbox/internal/buffer"
	"github.com/evalbox/evalbox/internal/task"
)

// addTaskWithRuntime registers a task whose evaluation sleeps for d, so
// its recorded execution time orders predictably against the others.
func addTaskWithRuntime(t *testing.T, r *Registry, d time.Duration, outcome task.EvalOutcome) *task.Task {
	t.Helper()

	out, err := buffer.NewLineBuffer(4, 16)
	require.NoError(t, err)

	program := &task.MockProgram{
		EvaluateFn: func(sink io.Writer) task.EvalResult {
			time.Sleep(d)
			return task.EvalResult{Outcome: outcome}
		},
	}

	tk := task.New(r.NextID(), "script", program, out)
	r.Add(tk)
	tk.Run(testLogger())
	return tk
}

func ids(tasks []*task.Task) []int64 {
	out := make([]int64, len(tasks))
	for i, tk := range tasks {
		out[i] = tk.ID()
	}
	return out
}

func TestRegistry_List_Filter(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	completed := addTaskWithRuntime(t, r, 0, task.EvalOK)
	failed := addTaskWithRuntime(t, r, 0, task.EvalGuestError)
	queued := newStoredTask(t, r)

	t.Run("empty filter matches everything", func(t *testing.T) {
		assert.Len(t, r.List(Filter{}, nil), 3)
	})

	t.Run("single status", func(t *testing.T) {
		got := r.List(Filter{Statuses: []task.Status{task.StatusCompleted}}, nil)
		require.Len(t, got, 1)
		assert.Equal(t, completed.ID(), got[0].ID())
	})

	t.Run("multiple statuses", func(t *testing.T) {
		got := r.List(Filter{Statuses: []task.Status{task.StatusFailed, task.StatusQueued}}, nil)
		assert.ElementsMatch(t, []int64{failed.ID(), queued.ID()}, ids(got))
	})

	t.Run("no match yields an empty slice", func(t *testing.T) {
		got := r.List(Filter{Statuses: []task.Status{task.StatusRunning}}, nil)
		assert.Empty(t, got)
	})
}

func TestRegistry_List_Sort(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	slow := addTaskWithRuntime(t, r, 120*time.Millisecond, task.EvalOK)  // id 1
	fast := addTaskWithRuntime(t, r, 0, task.EvalOK)                     // id 2
	medium := addTaskWithRuntime(t, r, 60*time.Millisecond, task.EvalOK) // id 3

	t.Run("id ascending", func(t *testing.T) {
		got := r.List(Filter{}, []string{"id"})
		assert.Equal(t, []int64{slow.ID(), fast.ID(), medium.ID()}, ids(got))
	})

	t.Run("id descending", func(t *testing.T) {
		got := r.List(Filter{}, []string{"ID"})
		assert.Equal(t, []int64{medium.ID(), fast.ID(), slow.ID()}, ids(got))
	})

	t.Run("execution time ascending", func(t *testing.T) {
		got := r.List(Filter{}, []string{"time"})
		assert.Equal(t, []int64{fast.ID(), medium.ID(), slow.ID()}, ids(got))
	})

	t.Run("execution time descending", func(t *testing.T) {
		got := r.List(Filter{}, []string{"TIME"})
		assert.Equal(t, []int64{slow.ID(), medium.ID(), fast.ID()}, ids(got))
	})

	t.Run("unknown tokens are ignored, not fatal", func(t *testing.T) {
		got := r.List(Filter{}, []string{"bogus", "id", "nope"})
		assert.Equal(t, []int64{slow.ID(), fast.ID(), medium.ID()}, ids(got))
	})

	t.Run("only unknown tokens leaves order unspecified but complete", func(t *testing.T) {
		got := r.List(Filter{}, []string{"bogus"})
		assert.Len(t, got, 3)
	})
}

func TestRegistry_List_MultiKeySort(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	// Two queued tasks tie on execution time (none recorded yet), one
	// completed task sorts after them.
	a := newStoredTask(t, r)
	b := newStoredTask(t, r)
	c := addTaskWithRuntime(t, r, 0, task.EvalOK)

	// Primary key execution time ascending, ties broken by id descending.
	got := r.List(Filter{}, []string{"time", "ID"})
	assert.Equal(t, []int64{b.ID(), a.ID(), c.ID()}, ids(got))
}

func TestRegistry_List_ScheduledSort(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	first := newStoredTask(t, r)
	time.Sleep(5 * time.Millisecond)
	second := newStoredTask(t, r)

	got := r.List(Filter{}, []string{"scheduled"})
	assert.Equal(t, []int64{first.ID(), second.ID()}, ids(got))

	got = r.List(Filter{}, []string{"SCHEDULED"})
	assert.Equal(t, []int64{second.ID(), first.ID()}, ids(got))
}

func TestComparatorCache(t *testing.T) {
	t.Parallel()

	c := newComparatorCache()

	t.Run("reuses the composed comparator per token sequence", func(t *testing.T) {
		first := c.get([]string{"time", "ID"})
		require.NotNil(t, first)

		c.mu.RLock()
		_, cached := c.cache["time,ID"]
		c.mu.RUnlock()
		assert.True(t, cached)

		again := c.get([]string{"time", "ID"})
		assert.NotNil(t, again)
		assert.Len(t, c.cache, 1)
	})

	t.Run("empty sequence composes nothing", func(t *testing.T) {
		assert.Nil(t, c.get(nil))
	})
}

func TestTasksWithoutExecutionTimeSortFirst(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	done := addTaskWithRuntime(t, r, 0, task.EvalOK)
	pending := newStoredTask(t, r)

	got := r.List(Filter{}, []string{"time"})
	assert.Equal(t, []int64{pending.ID(), done.ID()}, ids(got))
}
