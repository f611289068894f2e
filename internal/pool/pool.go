// Package pool executes tasks on a fixed set of worker goroutines fed by
// a bounded FIFO queue. Submission is admission-controlled: when the
// queue is at capacity it fails fast instead of blocking. Cancellation
// reaches both queued tasks (removed before they ever run) and in-flight
// tasks (through the owning worker's task handle).
package pool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/evalbox/evalbox/internal/task"
)

// Common errors returned by the pool.
var (
	// ErrQueueFull is returned by Submit when the bounded queue is at
	// capacity. Recoverable by caller retry; never a bug.
	ErrQueueFull = errors.New("task queue is full")

	// ErrShutdown is returned by Submit after Shutdown has been called.
	ErrShutdown = errors.New("worker pool is shut down")
)

// Config holds construction parameters for the pool.
type Config struct {
	// WorkerCount is the fixed number of worker goroutines. Never
	// resized after construction. If zero or negative, defaults to 1.
	WorkerCount int

	// QueueCapacity bounds the pending-task FIFO queue.
	QueueCapacity int

	// CancelTimeout bounds the graceful-interrupt phase when cancelling
	// a running task; after it elapses the engine context is
	// force-closed.
	CancelTimeout time.Duration
}

// DefaultConfig returns a Config with reasonable defaults.
func DefaultConfig() Config {
	return Config{
		WorkerCount:   2,
		QueueCapacity: 100,
		CancelTimeout: 2 * time.Second,
	}
}

// worker is one execution goroutine. current is the atomically swapped
// reference identifying the task this worker owns right now, so a
// concurrent cancel request can discover the owning worker by task id.
type worker struct {
	id      int
	current atomic.Pointer[task.Task]
}

// Pool is a fixed-size worker pool over a bounded task queue.
type Pool struct {
	tasks   chan *task.Task
	pending sync.Map // task id -> *task.Task, enqueued but not yet dequeued
	workers []*worker

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed atomic.Bool

	cancelTimeout time.Duration
	logger        *slog.Logger
}

// New creates the pool and starts its workers immediately.
func New(cfg Config, logger *slog.Logger) *Pool {
	workerCount := cfg.WorkerCount
	if workerCount <= 0 {
		workerCount = 1
		logger.Warn("invalid worker count specified, using default",
			"specified_count", cfg.WorkerCount,
			"default_count", workerCount)
	}

	queueCapacity := cfg.QueueCapacity
	if queueCapacity <= 0 {
		queueCapacity = DefaultConfig().QueueCapacity
	}

	cancelTimeout := cfg.CancelTimeout
	if cancelTimeout <= 0 {
		cancelTimeout = DefaultConfig().CancelTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())

	p := &Pool{
		tasks:         make(chan *task.Task, queueCapacity),
		ctx:           ctx,
		cancel:        cancel,
		cancelTimeout: cancelTimeout,
		logger:        logger,
	}

	for i := 0; i < workerCount; i++ {
		w := &worker{id: i}
		p.workers = append(p.workers, w)
		p.wg.Add(1)
		go p.runWorker(w)
	}

	logger.Debug("worker pool is up",
		"worker_count", workerCount,
		"queue_capacity", queueCapacity)

	return p
}

// Submit enqueues a task for execution. It never blocks: when the queue
// is at capacity it returns ErrQueueFull immediately, and after shutdown
// it returns ErrShutdown.
func (p *Pool) Submit(t *task.Task) error {
	if p.closed.Load() {
		return ErrShutdown
	}

	// Register in the pending index first so a cancel arriving right
	// after the enqueue can find the task by id.
	p.pending.Store(t.ID(), t)

	select {
	case p.tasks <- t:
		p.logger.Debug("task enqueued",
			"task_id", t.ID(),
			"queue_len", len(p.tasks),
			"queue_cap", cap(p.tasks))
		return nil
	default:
		p.pending.Delete(t.ID())
		return fmt.Errorf("%w: queue capacity %d reached", ErrQueueFull, cap(p.tasks))
	}
}

// Cancel stops the task with the given id, wherever it currently lives:
//
//  1. Still pending in the queue: it transitions straight from QUEUED to
//     INTERRUPTED without ever running.
//  2. Owned by a worker: the task's graceful-then-forceful handshake is
//     delegated to.
//  3. Neither: the task already reached a terminal state (or never
//     existed here), a legitimate race outcome reported as false.
func (p *Pool) Cancel(id int64) bool {
	if e, ok := p.pending.Load(id); ok {
		t := e.(*task.Task)
		if t.CancelQueued(p.logger) {
			p.pending.Delete(id)
			return true
		}
		// A worker won the dequeue race; fall through to the
		// ownership scan.
	}

	for _, w := range p.workers {
		if cur := w.current.Load(); cur != nil && cur.ID() == id {
			return cur.Cancel(p.cancelTimeout, p.logger)
		}
	}

	return false
}

// QueueLen returns the number of tasks currently waiting in the queue.
func (p *Pool) QueueLen() int {
	return len(p.tasks)
}

// Shutdown stops accepting new tasks and signals workers to stop pulling
// further work, then waits for them to exit. In-flight tasks are not
// forcibly killed; that is always routed through Cancel.
func (p *Pool) Shutdown() {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}

	p.cancel()
	p.wg.Wait()
	// The task channel is deliberately left open: closing it could
	// panic a Submit racing this shutdown, and the workers already
	// stopped through the context.
	p.logger.Debug("worker pool shut down")
}

// runWorker is the per-worker loop: block for the next task, record
// ownership, execute synchronously, clear ownership, repeat.
func (p *Pool) runWorker(w *worker) {
	defer p.wg.Done()

	p.logger.Debug("starting worker", "worker_id", w.id)

	for {
		select {
		case <-p.ctx.Done():
			p.logger.Debug("stopping worker", "worker_id", w.id)
			return

		case t, ok := <-p.tasks:
			if !ok {
				p.logger.Debug("task channel closed, stopping worker", "worker_id", w.id)
				return
			}

			// Ownership is recorded before the pending entry is
			// dropped so a concurrent cancel always finds the task in
			// at least one of the two places.
			w.current.Store(t)
			p.pending.Delete(t.ID())
			t.Run(p.logger.With("worker_id", w.id))
			w.current.Store(nil)
		}
	}
}
