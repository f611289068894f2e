package task

import (
	"io"
	"sync"
	"time"
)

// MockEngine is a simple Engine implementation for testing. Its zero
// value parses everything into a program that completes immediately.
type MockEngine struct {
	ParseFn func(code string) (Program, error)
}

// Parse delegates to ParseFn when set, otherwise returns a trivially
// succeeding MockProgram.
func (e *MockEngine) Parse(code string) (Program, error) {
	if e.ParseFn != nil {
		return e.ParseFn(code)
	}
	return &MockProgram{}, nil
}

// MockProgram is a configurable Program for testing. The zero value
// evaluates to EvalOK instantly, acknowledges interrupts, and closes
// without effect.
type MockProgram struct {
	EvaluateFn  func(sink io.Writer) EvalResult
	InterruptFn func(timeout time.Duration) bool
	CloseFn     func()

	closeOnce sync.Once
}

// Evaluate runs EvaluateFn when set, otherwise succeeds immediately.
func (p *MockProgram) Evaluate(sink io.Writer) EvalResult {
	if p.EvaluateFn != nil {
		return p.EvaluateFn(sink)
	}
	return EvalResult{Outcome: EvalOK}
}

// Interrupt runs InterruptFn when set, otherwise acknowledges.
func (p *MockProgram) Interrupt(timeout time.Duration) bool {
	if p.InterruptFn != nil {
		return p.InterruptFn(timeout)
	}
	return true
}

// Close runs CloseFn at most once.
func (p *MockProgram) Close() {
	p.closeOnce.Do(func() {
		if p.CloseFn != nil {
			p.CloseFn()
		}
	})
}

// NewBlockingProgram returns a program that blocks inside Evaluate until
// it is interrupted or force-closed, mimicking a script stuck in an
// infinite loop that still yields to the engine's interrupt check. The
// returned release function unblocks the evaluation as a normal
// completion instead.
func NewBlockingProgram() (*MockProgram, func()) {
	stop := make(chan EvalOutcome, 1)
	var once sync.Once

	signal := func(outcome EvalOutcome) {
		once.Do(func() { stop <- outcome })
	}

	p := &MockProgram{
		EvaluateFn: func(sink io.Writer) EvalResult {
			outcome := <-stop
			return EvalResult{Outcome: outcome}
		},
		InterruptFn: func(timeout time.Duration) bool {
			signal(EvalInterrupted)
			return true
		},
		CloseFn: func() {
			signal(EvalInterrupted)
		},
	}

	return p, func() { signal(EvalOK) }
}

// NewStubbornProgram returns a program that ignores graceful interrupts
// entirely and only returns from Evaluate once force-closed, mimicking a
// misbehaving script the engine cannot stop cooperatively.
func NewStubbornProgram() *MockProgram {
	stop := make(chan struct{})
	var once sync.Once

	return &MockProgram{
		EvaluateFn: func(sink io.Writer) EvalResult {
			<-stop
			return EvalResult{Outcome: EvalInterrupted}
		},
		InterruptFn: func(timeout time.Duration) bool {
			// Never acknowledges; simulate the bounded wait elapsing.
			time.Sleep(timeout)
			return false
		},
		CloseFn: func() {
			once.Do(func() { close(stop) })
		},
	}
}
