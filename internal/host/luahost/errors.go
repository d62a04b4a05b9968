package luahost

import "errors"

// Scripted host errors.
var (
	// ErrClosed is returned by operations on a closed host.
	ErrClosed = errors.New("lua host is closed")

	// ErrInvalidPath is returned for an empty path or a path with an empty
	// segment.
	ErrInvalidPath = errors.New("invalid namespace path")

	// ErrNotFound is returned when an alias source does not exist.
	ErrNotFound = errors.New("namespace not found")

	// ErrNotTable is returned when a path walks through a non-table value.
	ErrNotTable = errors.New("namespace is not a table")

	// ErrNoScenario is returned by RunScenario when the script defines no
	// scenario function.
	ErrNoScenario = errors.New("script defines no scenario function")
)
