package store

import (
	"cmp"
	"slices"
	"strings"
	"sync"

	"github.com/evalbox/evalbox/internal/task"
)

// Filter selects tasks by status. An empty status set matches everything.
type Filter struct {
	Statuses []task.Status
}

// matches reports whether the task passes the filter.
func (f Filter) matches(t *task.Task) bool {
	if len(f.Statuses) == 0 {
		return true
	}

	return slices.Contains(f.Statuses, t.Status())
}

// comparator orders two tasks; negative, zero, positive like cmp.Compare.
type comparator func(a, b *task.Task) int

// Sort tokens: a lower-case token sorts ascending, its upper-case twin
// descending. Tokens compose left to right into a multi-key comparator,
// the first token carrying the highest priority.
var sortTokens = map[string]comparator{
	"id":        byID,
	"ID":        descending(byID),
	"time":      byExecutionTime,
	"TIME":      descending(byExecutionTime),
	"scheduled": byScheduledAt,
	"SCHEDULED": descending(byScheduledAt),
}

func byID(a, b *task.Task) int {
	return cmp.Compare(a.ID(), b.ID())
}

func byExecutionTime(a, b *task.Task) int {
	return cmp.Compare(executionMillis(a), executionMillis(b))
}

func byScheduledAt(a, b *task.Task) int {
	return a.ScheduledAt().Compare(b.ScheduledAt())
}

// executionMillis orders tasks without a recorded execution time before
// every task that has one.
func executionMillis(t *task.Task) int64 {
	d, ok := t.ExecutionTime()
	if !ok {
		return -1
	}
	return d.Milliseconds()
}

func descending(c comparator) comparator {
	return func(a, b *task.Task) int { return -c(a, b) }
}

// comparatorCache memoizes the composed comparator for each sort-token
// sequence, since the same sequences are requested repeatedly. Purely a
// performance cache; a miss just rebuilds the chain.
type comparatorCache struct {
	mu    sync.RWMutex
	cache map[string]comparator
}

func newComparatorCache() *comparatorCache {
	return &comparatorCache{cache: make(map[string]comparator)}
}

// sort orders tasks in place by the token sequence. Unknown tokens are
// skipped rather than aborting the sort.
func (c *comparatorCache) sort(tasks []*task.Task, sorts []string) {
	cmpFn := c.get(sorts)
	if cmpFn == nil {
		return
	}

	slices.SortStableFunc(tasks, cmpFn)
}

func (c *comparatorCache) get(sorts []string) comparator {
	if len(sorts) == 0 {
		return nil
	}

	key := strings.Join(sorts, ",")

	c.mu.RLock()
	cached, ok := c.cache[key]
	c.mu.RUnlock()
	if ok {
		return cached
	}

	composed := compose(sorts)

	c.mu.Lock()
	c.cache[key] = composed
	c.mu.Unlock()

	return composed
}

// compose chains the comparators for the known tokens; nil when none of
// the tokens is known.
func compose(sorts []string) comparator {
	chain := make([]comparator, 0, len(sorts))
	for _, token := range sorts {
		if cmpFn, ok := sortTokens[token]; ok {
			chain = append(chain, cmpFn)
		}
	}

	if len(chain) == 0 {
		return nil
	}

	return func(a, b *task.Task) int {
		for _, cmpFn := range chain {
			if r := cmpFn(a, b); r != 0 {
				return r
			}
		}
		return 0
	}
}
