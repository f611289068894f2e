package service

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/evalbox/evalbox/internal/buffer"
	"github.com/evalbox/evalbox/internal/config"
	"github.com/evalbox/evalbox/internal/pool"
	"github.com/evalbox/evalbox/internal/store"
	"github.com/evalbox/evalbox/internal/task"
)

// Construction errors.
var (
	ErrNilEngine   = errors.New("engine cannot be nil")
	ErrNilRegistry = errors.New("registry cannot be nil")
	ErrNilPool     = errors.New("pool cannot be nil")
	ErrNilLogger   = errors.New("logger cannot be nil")
)

// ExecutionService creates, runs, queries, cancels and deletes tasks. It
// is the single entry point the transport layer talks to.
type ExecutionService struct {
	engine   task.Engine
	registry *store.Registry
	pool     *pool.Pool
	bufOpts  buffer.Options
	logger   *slog.Logger
}

// NewExecutionService wires the service from its collaborators.
func NewExecutionService(
	engine task.Engine,
	registry *store.Registry,
	p *pool.Pool,
	bufOpts buffer.Options,
	logger *slog.Logger,
) (*ExecutionService, error) {
	switch {
	case engine == nil:
		return nil, ErrNilEngine
	case registry == nil:
		return nil, ErrNilRegistry
	case p == nil:
		return nil, ErrNilPool
	case logger == nil:
		return nil, ErrNilLogger
	}

	return &ExecutionService{
		engine:   engine,
		registry: registry,
		pool:     p,
		bufOpts:  bufOpts,
		logger:   logger,
	}, nil
}

// NewFromConfig builds the registry and worker pool from configuration
// and wires the service around the given engine.
func NewFromConfig(cfg *config.Config, engine task.Engine, logger *slog.Logger) (*ExecutionService, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}

	p := pool.New(pool.Config{
		WorkerCount:   cfg.Pool.WorkerCount,
		QueueCapacity: cfg.Pool.QueueCapacity,
		CancelTimeout: cfg.Pool.CancelTimeout,
	}, logger)

	return NewExecutionService(engine, store.NewRegistry(), p, buffer.Options{
		Strategy:     buffer.Strategy(cfg.Buffer.Strategy),
		InitialLines: cfg.Buffer.InitialLines,
		MaxLines:     cfg.Buffer.MaxLines,
		MaxBytes:     cfg.Buffer.MaxBytes,
	}, logger)
}

// Submit validates the code, creates a task and hands it to the worker
// pool. Invalid code is rejected before a task is even created, so it
// never consumes a queue slot; a saturated pool is reported as
// ErrCapacityExceeded with the queue untouched.
func (s *ExecutionService) Submit(code string) (int64, error) {
	program, err := s.engine.Parse(code)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrInvalidScript, err)
	}

	out, err := buffer.New(s.bufOpts)
	if err != nil {
		program.Close()
		return 0, fmt.Errorf("creating output buffer: %w", err)
	}

	t := task.New(s.registry.NextID(), code, program, out)

	if err := s.pool.Submit(t); err != nil {
		t.Release()
		return 0, fmt.Errorf("%w: %s", ErrCapacityExceeded, err)
	}

	s.registry.Add(t)
	s.logger.Debug("task submitted", "task_id", t.ID())

	return t.ID(), nil
}

// Get returns a snapshot of the task with the given id, or
// store.ErrNotFound.
func (s *ExecutionService) Get(id int64) (Snapshot, error) {
	t, err := s.registry.Get(id)
	if err != nil {
		return Snapshot{}, err
	}

	return newSnapshot(t), nil
}

// List returns snapshots of the tasks matching the filter, ordered by
// the sort token sequence.
func (s *ExecutionService) List(filter store.Filter, sorts []string) []Snapshot {
	tasks := s.registry.List(filter, sorts)

	snapshots := make([]Snapshot, len(tasks))
	for i, t := range tasks {
		snapshots[i] = newSnapshot(t)
	}

	return snapshots
}

// Cancel stops the task with the given id. It returns store.ErrNotFound
// for ids the registry has never seen; for known tasks it reports
// whether the task was actually cancelled — false means the task had
// already reached a terminal state, a legitimate race outcome rather
// than an error.
func (s *ExecutionService) Cancel(id int64) (bool, error) {
	if _, err := s.registry.Get(id); err != nil {
		return false, err
	}

	return s.pool.Cancel(id), nil
}

// Delete removes a terminal task from the registry. Deleting a task
// that is still queued or running is rejected with store.ErrIllegalState.
func (s *ExecutionService) Delete(id int64) error {
	return s.registry.Delete(id)
}

// Shutdown stops the worker pool. Queued tasks are abandoned; in-flight
// tasks finish on their own or through Cancel.
func (s *ExecutionService) Shutdown() {
	s.pool.Shutdown()
}
