package patch

import "errors"

// Patch registry errors.
var (
	// ErrDuplicatePatch is returned when a name is registered twice.
	ErrDuplicatePatch = errors.New("patch already registered")

	// ErrInvalidPatch is returned for an empty name or nil apply function.
	ErrInvalidPatch = errors.New("invalid patch")

	// ErrPatchPanic marks a failure caused by a panic rather than an error.
	ErrPatchPanic = errors.New("patch panicked")

	// ErrUnknownAction is returned for a table patch with an unsupported action.
	ErrUnknownAction = errors.New("unknown patch action")
)

// ApplyError records why a patch failed.
type ApplyError struct {
	// Patch is the descriptor name.
	Patch string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *ApplyError) Error() string {
	return "patch " + e.Patch + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *ApplyError) Unwrap() error {
	return e.Err
}
