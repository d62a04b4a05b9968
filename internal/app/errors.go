package app

import (
	"errors"
	"fmt"
)

// Core errors.
var (
	// ErrStageOrder is returned when a lifecycle checkpoint is called out of
	// order or more than once.
	ErrStageOrder = errors.New("lifecycle checkpoint out of order")

	// ErrNilHost is returned by New without a host.
	ErrNilHost = errors.New("host is required")
)

// ComponentError represents an error from a specific component.
type ComponentError struct {
	Component string // Component name (e.g., "patch", "hook", "deprecation")
	Action    string // Action being performed
	Err       error  // Underlying error
}

func (e *ComponentError) Error() string {
	if e.Action != "" {
		return fmt.Sprintf("%s: %s: %v", e.Component, e.Action, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Component, e.Err)
}

func (e *ComponentError) Unwrap() error {
	return e.Err
}

// StageError reports a checkpoint called in the wrong state.
type StageError struct {
	Want    Stage // Stage the call expected to follow
	Current Stage // Stage the core was in
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%v: core is %s, want %s", ErrStageOrder, e.Current, e.Want)
}

// Is allows errors.Is to match StageError with ErrStageOrder.
func (e *StageError) Is(target error) bool {
	return target == ErrStageOrder
}
