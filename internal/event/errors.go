package event

import (
	"errors"
	"fmt"
)

// Sentinel errors for the listener registry.
var (
	// ErrInvalidEvent is returned when an event name is empty.
	ErrInvalidEvent = errors.New("invalid event")

	// ErrNilHandler is returned when a nil handler is provided.
	ErrNilHandler = errors.New("handler cannot be nil")

	// ErrHandlerPanic matches a PanicError.
	ErrHandlerPanic = errors.New("handler panicked")
)

// HandlerError wraps an error from a handler with additional context.
type HandlerError struct {
	// SubscriptionID is the ID of the subscription whose handler failed.
	SubscriptionID string

	// Label is the subscription's label, if any.
	Label string

	// Event is the canonical event being dispatched.
	Event string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler %s on %s: %v", subscriberName(e.SubscriptionID, e.Label), e.Event, e.Err)
}

// Unwrap returns the underlying error.
func (e *HandlerError) Unwrap() error {
	return e.Err
}

// PanicError wraps a panic value as an error.
type PanicError struct {
	// SubscriptionID is the ID of the subscription whose handler panicked.
	SubscriptionID string

	// Label is the subscription's label, if any.
	Label string

	// Event is the canonical event being dispatched.
	Event string

	// Value is the value passed to panic().
	Value any

	// Stack is the stack trace at the time of the panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("handler %s on %s panicked: %v", subscriberName(e.SubscriptionID, e.Label), e.Event, e.Value)
}

// Is allows errors.Is to match PanicError with ErrHandlerPanic.
func (e *PanicError) Is(target error) bool {
	return target == ErrHandlerPanic
}

func subscriberName(id, label string) string {
	if label == "" {
		return id
	}
	return label + " (" + id + ")"
}
