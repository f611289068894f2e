package task

import (
	"io"
	"time"
)

// EvalOutcome classifies how an evaluation ended. It replaces exception
// hierarchies with a tagged result callers can switch on.
type EvalOutcome int

const (
	// EvalOK means the script ran to completion without error.
	EvalOK EvalOutcome = iota

	// EvalGuestError means the script itself failed (a thrown exception
	// or a runtime fault in the evaluated code). Expected and routine.
	EvalGuestError

	// EvalInterrupted means the evaluation was externally interrupted
	// or force-closed before finishing.
	EvalInterrupted

	// EvalHostError means the engine itself failed for reasons
	// unrelated to the guest script. Always a server-side incident.
	EvalHostError
)

// EvalResult is the tagged outcome of a blocking evaluation.
type EvalResult struct {
	Outcome EvalOutcome

	// Err carries detail for any non-OK outcome. For EvalGuestError it
	// is the script's own error text; for EvalHostError it is internal
	// detail that must never reach the task's output.
	Err error
}

// Program is a parsed script ready for one evaluation, together with the
// cancellation primitives the engine grants over that evaluation.
type Program interface {
	// Evaluate runs the program, streaming its output into sink, and
	// blocks until the evaluation finishes for any reason.
	Evaluate(sink io.Writer) EvalResult

	// Interrupt asks the engine to stop the in-flight evaluation and
	// waits up to timeout for it to acknowledge. It reports whether the
	// evaluation acknowledged the interrupt in time.
	Interrupt(timeout time.Duration) bool

	// Close force-terminates the evaluation context and releases the
	// engine resources behind it. It is unconditional and idempotent.
	Close()
}

// Engine is the capability contract the core consumes from an embeddable
// script interpreter. Parsing upfront lets submission reject invalid code
// before it ever occupies a queue slot.
type Engine interface {
	// Parse validates and compiles source code, returning a Program
	// ready for a single evaluation, or a syntax error.
	Parse(code string) (Program, error)
}
