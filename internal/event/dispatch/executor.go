package dispatch

import (
	"context"
	"runtime/debug"
	"time"
)

// Func is one unit of handler work.
type Func func(ctx context.Context) error

// Result represents the outcome of a handler execution.
type Result struct {
	// Error is the error returned by the handler, if any.
	Error error

	// Panicked is true if the handler panicked.
	Panicked bool

	// PanicValue is the value passed to panic(), if Panicked is true.
	PanicValue any

	// PanicStack is the stack trace at the point of panic.
	PanicStack []byte

	// Duration is how long the handler took to execute.
	Duration time.Duration
}

// IsSuccess returns true if the handler returned nil without panicking.
func (r Result) IsSuccess() bool {
	return !r.Panicked && r.Error == nil
}

// IsPanic returns true if the handler panicked.
func (r Result) IsPanic() bool {
	return r.Panicked
}

// PanicHandler is called when a handler panics, with the panic value and the
// stack trace captured at the point of recovery.
type PanicHandler func(panicValue any, stack []byte)

// Executor handles the actual execution of event handlers with
// panic recovery and timing.
type Executor struct {
	panicHandler PanicHandler
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithPanicHandler sets the panic handler for the executor.
func WithPanicHandler(h PanicHandler) ExecutorOption {
	return func(e *Executor) {
		e.panicHandler = h
	}
}

// NewExecutor creates a new executor with the given options.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs fn and returns the result. It recovers from panics and
// captures timing information. The context is passed through untouched;
// cancellation is the handler's business.
func (e *Executor) Execute(ctx context.Context, fn Func) (result Result) {
	if fn == nil {
		return Result{Error: ErrNilFunc}
	}

	start := time.Now()

	defer func() {
		result.Duration = time.Since(start)

		if r := recover(); r != nil {
			stack := debug.Stack()

			result.Error = nil
			result.Panicked = true
			result.PanicValue = r
			result.PanicStack = stack

			// A panicking panic handler must not take the dispatch down.
			if e.panicHandler != nil {
				func() {
					defer func() { _ = recover() }()
					e.panicHandler(r, stack)
				}()
			}
		}
	}()

	result.Error = fn(ctx)
	return result
}
