// Package task defines the unit of asynchronous script execution: the
// task entity with its compare-and-set status state machine, the narrow
// capability contract expected from an embeddable script engine, and the
// run/cancel primitives driven by the worker pool. A task is executed by
// at most one worker, at most once, and always ends in a terminal status
// with its engine resources released exactly once.
package task
