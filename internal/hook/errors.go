package hook

import (
	"errors"
	"fmt"
)

// Hook bridge errors.
var (
	// ErrAlreadyEstablished is returned by a second call to Establish.
	ErrAlreadyEstablished = errors.New("bridge already established")

	// ErrInvalidTable matches a TableError.
	ErrInvalidTable = errors.New("invalid event table")
)

// TableError describes a structural problem in the canonical event table.
type TableError struct {
	// Event is the canonical event the problem belongs to, if any.
	Event string

	// Message describes the problem.
	Message string
}

// Error implements the error interface.
func (e *TableError) Error() string {
	if e.Event == "" {
		return "event table: " + e.Message
	}
	return fmt.Sprintf("event table: %s: %s", e.Event, e.Message)
}

// Is allows errors.Is to match TableError with ErrInvalidTable.
func (e *TableError) Is(target error) bool {
	return target == ErrInvalidTable
}
