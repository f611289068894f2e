package store

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/evalbox/evalbox/internal/task"
)

// Registry is the concurrent id-to-task map shared by submission,
// listing and deletion. Insert, removal and iteration are safe to run
// concurrently without external locking by callers.
type Registry struct {
	mu     sync.RWMutex
	tasks  map[int64]*task.Task
	nextID atomic.Int64

	sorts *comparatorCache
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tasks: make(map[int64]*task.Task),
		sorts: newComparatorCache(),
	}
}

// NextID returns the next task id from the registry-owned monotonic
// counter. Ids are unique for the process lifetime.
func (r *Registry) NextID() int64 {
	return r.nextID.Add(1)
}

// Add registers a task under its id.
func (r *Registry) Add(t *task.Task) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tasks[t.ID()] = t
}

// Get returns the task with the given id, or ErrNotFound.
func (r *Registry) Get(id int64) (*task.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}

	return t, nil
}

// Delete removes the task with the given id, but only once its status is
// terminal; deleting a task that is still queued or running is rejected
// with ErrIllegalState.
func (r *Registry) Delete(id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}

	if status := t.Status(); !status.Terminal() {
		return fmt.Errorf("%w: cannot delete task %d in status %s", ErrIllegalState, id, status)
	}

	delete(r.tasks, id)
	return nil
}

// Len returns the number of registered tasks.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.tasks)
}

// List returns the registered tasks matching the filter, ordered by the
// given sort token sequence. Unknown tokens are ignored; with no usable
// tokens the order is unspecified.
func (r *Registry) List(filter Filter, sorts []string) []*task.Task {
	r.mu.RLock()
	result := make([]*task.Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		if filter.matches(t) {
			result = append(result, t)
		}
	}
	r.mu.RUnlock()

	r.sorts.sort(result, sorts)
	return result
}
