package jsengine

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"

	"github.com/evalbox/evalbox/internal/task"
)

// maxCallStackSize bounds guest-script recursion depth.
const maxCallStackSize = 2048

// Interrupt reasons surfaced to the evaluation goroutine.
var (
	errEvaluationInterrupted = errors.New("evaluation interrupted")
	errEvaluationClosed      = errors.New("evaluation context closed")
)

// Engine parses and evaluates JavaScript with goja. Each parsed program
// gets its own isolated runtime, so concurrent evaluations never share
// interpreter state.
type Engine struct {
	logger *slog.Logger
}

// New creates a goja-backed engine.
func New(logger *slog.Logger) *Engine {
	return &Engine{logger: logger}
}

// Parse compiles the source upfront, so syntactically invalid code is
// rejected before a task is created for it.
func (e *Engine) Parse(code string) (task.Program, error) {
	compiled, err := goja.Compile("script.js", code, false)
	if err != nil {
		return nil, fmt.Errorf("parsing script: %w", err)
	}

	vm := goja.New()
	// Bound guest recursion so a runaway script raises a catchable
	// stack-overflow error instead of exhausting the host stack.
	vm.SetMaxCallStackSize(maxCallStackSize)

	return &program{
		compiled: compiled,
		vm:       vm,
		done:     make(chan struct{}),
		logger:   e.logger,
	}, nil
}

// program is one parsed script bound to a dedicated runtime, good for a
// single evaluation.
type program struct {
	compiled *goja.Program
	vm       *goja.Runtime
	done     chan struct{} // closed when Evaluate returns
	closeOne sync.Once
	logger   *slog.Logger
}

// Evaluate binds console output to sink, runs the program to completion
// and classifies how it ended. It blocks on the calling goroutine;
// Interrupt and Close are the only concurrent entry points.
func (p *program) Evaluate(sink io.Writer) task.EvalResult {
	defer close(p.done)

	if err := p.bindConsole(sink); err != nil {
		return task.EvalResult{
			Outcome: task.EvalHostError,
			Err:     fmt.Errorf("binding console: %w", err),
		}
	}

	_, err := p.vm.RunProgram(p.compiled)
	return classify(err)
}

// Interrupt asks the runtime to stop at its next interrupt check and
// waits up to timeout for the evaluation to return. goja checks the
// interrupt flag inside loops, so even `while(true){}` yields.
func (p *program) Interrupt(timeout time.Duration) bool {
	p.vm.Interrupt(errEvaluationInterrupted)

	select {
	case <-p.done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Close force-terminates the evaluation context. goja has no stronger
// kill than the interrupt flag, so Close re-arms it and abandons the
// runtime; an evaluation that never started simply never runs.
func (p *program) Close() {
	p.closeOne.Do(func() {
		p.vm.Interrupt(errEvaluationClosed)
		p.logger.Debug("evaluation context closed")
	})
}

// bindConsole installs console.log and console.error, both writing
// space-joined arguments plus a newline into sink.
func (p *program) bindConsole(sink io.Writer) error {
	console := p.vm.NewObject()

	print := func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}
		fmt.Fprintln(sink, strings.Join(parts, " "))
		return goja.Undefined()
	}

	if err := console.Set("log", print); err != nil {
		return err
	}
	if err := console.Set("error", print); err != nil {
		return err
	}

	return p.vm.Set("console", console)
}

// classify maps a goja evaluation error onto the tagged result the core
// switches on: script-level faults are guest errors, interrupt flags are
// interruptions, anything else is an engine-internal failure.
func classify(err error) task.EvalResult {
	if err == nil {
		return task.EvalResult{Outcome: task.EvalOK}
	}

	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		return task.EvalResult{Outcome: task.EvalInterrupted, Err: interrupted}
	}

	var exception *goja.Exception
	if errors.As(err, &exception) {
		return task.EvalResult{Outcome: task.EvalGuestError, Err: exception}
	}

	var overflow *goja.StackOverflowError
	if errors.As(err, &overflow) {
		// Unbounded recursion is the script's fault, not the engine's.
		return task.EvalResult{Outcome: task.EvalGuestError, Err: overflow}
	}

	return task.EvalResult{Outcome: task.EvalHostError, Err: err}
}
