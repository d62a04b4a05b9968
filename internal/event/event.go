package event

import "context"

// Event is one canonical emission.
type Event struct {
	// Name is the canonical event name.
	Name string

	// Kind is the subtype discriminant. It is set when one canonical event
	// covers several native notifications ("attack", "damage", "Actor"),
	// and empty otherwise.
	Kind string

	// Args is the normalized canonical argument list.
	Args []any

	// Native is the host event that produced this emission, or empty for a
	// direct dispatch.
	Native string
}

// Arg returns the i-th argument, or nil when out of range.
func (e Event) Arg(i int) any {
	if i < 0 || i >= len(e.Args) {
		return nil
	}
	return e.Args[i]
}

// Handler receives canonical events.
type Handler interface {
	Handle(ctx context.Context, ev Event) error
}

// HandlerFunc is a function adapter for Handler.
type HandlerFunc func(ctx context.Context, ev Event) error

// Handle implements the Handler interface.
func (f HandlerFunc) Handle(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}

// Outcome summarizes one dispatch.
type Outcome struct {
	// Handlers is the number of handlers invoked.
	Handlers int

	// Failures is the number of handlers that returned an error or panicked.
	Failures int

	// Errors holds a *HandlerError or *PanicError per failure, in order.
	Errors []error
}

// OK reports whether every handler succeeded.
func (o Outcome) OK() bool {
	return o.Failures == 0
}
