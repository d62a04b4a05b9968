package patch

// Status is the lifecycle state of a patch descriptor.
type Status int

// Patch states. Every state except StatusPending is terminal.
const (
	// StatusPending - not yet attempted.
	StatusPending Status = iota

	// StatusApplied - predicate matched and apply succeeded.
	StatusApplied

	// StatusFailed - apply (or the predicate) returned an error or panicked.
	StatusFailed

	// StatusSkipped - predicate did not match at the patch's checkpoint.
	StatusSkipped
)

// String returns a string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusApplied:
		return "applied"
	case StatusFailed:
		return "failed"
	case StatusSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether the status can no longer change.
func (s Status) IsTerminal() bool {
	return s != StatusPending
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Stage is the lifecycle checkpoint at which a patch runs.
type Stage int

// Lifecycle checkpoints, in boot order.
const (
	// StageBootstrap runs right after environment detection.
	StageBootstrap Stage = iota

	// StagePreActivation runs before the hook bridge is established.
	StagePreActivation

	// StagePostActivation runs once the host reports it is ready.
	StagePostActivation
)

// String returns a string representation of the stage.
func (s Stage) String() string {
	switch s {
	case StageBootstrap:
		return "bootstrap"
	case StagePreActivation:
		return "pre-activation"
	case StagePostActivation:
		return "post-activation"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ParseStage parses a stage name. The empty string is pre-activation.
func ParseStage(name string) (Stage, bool) {
	switch name {
	case "bootstrap":
		return StageBootstrap, true
	case "", "pre-activation":
		return StagePreActivation, true
	case "post-activation":
		return StagePostActivation, true
	default:
		return 0, false
	}
}
