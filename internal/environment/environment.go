// Package environment detects which host API generation and which major
// version of the secondary dependency are present, and captures the result
// as an immutable Environment snapshot.
//
// Detection never fails. Missing or malformed version data is classified as
// the oldest supported generation, which selects the most conservative and
// most heavily patched behavior, and the fallback is recorded as a note for
// diagnostics.
package environment

import "sort"

// Flag names a derived boolean feature of an Environment.
type Flag string

// Derived flags.
const (
	// FlagHostLegacy is set when the host generation is older than the
	// latest known generation.
	FlagHostLegacy Flag = "host.legacy"

	// FlagHostLatest is set when the host generation is at or beyond the
	// latest known generation.
	FlagHostLatest Flag = "host.latest"

	// FlagNewMajor is set when the dependency major is at or beyond the
	// configured "new major" threshold.
	FlagNewMajor Flag = "dependency.new-major"

	// FlagDependencyMissing is set when no usable dependency version exists.
	FlagDependencyMissing Flag = "dependency.missing"
)

// Probe is the tri-state result of checking a host namespace.
type Probe int

// Probe states.
const (
	// ProbeUnknown means presence could not be determined.
	ProbeUnknown Probe = iota

	// ProbePresent means the namespace exists.
	ProbePresent

	// ProbeAbsent means the namespace does not exist.
	ProbeAbsent
)

// String returns a human-readable probe state.
func (p Probe) String() string {
	switch p {
	case ProbePresent:
		return "present"
	case ProbeAbsent:
		return "absent"
	default:
		return "unknown"
	}
}

// Environment is a snapshot of the detected runtime. It is passed by value;
// accessors return copies, so a snapshot cannot change once computed.
type Environment struct {
	// Generation is the host's major API generation.
	Generation int

	// DependencyMajor is the secondary dependency's major version, 0 when
	// it is missing.
	DependencyMajor int

	// HostVersion and DependencyVersion are the raw strings the host reported.
	HostVersion       string
	DependencyVersion string

	flags      map[Flag]bool
	companions map[string]struct{}
	probes     map[string]Probe
	notes      []string
}

// Flag reports whether the derived flag f is set.
func (e Environment) Flag(f Flag) bool {
	return e.flags[f]
}

// Flags returns a copy of all derived flags.
func (e Environment) Flags() map[Flag]bool {
	out := make(map[Flag]bool, len(e.flags))
	for k, v := range e.flags {
		out[k] = v
	}
	return out
}

// HasCompanion reports whether the companion plugin id was detected.
func (e Environment) HasCompanion(id string) bool {
	_, ok := e.companions[id]
	return ok
}

// Companions returns the detected companion ids, sorted.
func (e Environment) Companions() []string {
	out := make([]string, 0, len(e.companions))
	for id := range e.companions {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Probe returns the probe state recorded for path. Paths that were never
// probed report ProbeUnknown.
func (e Environment) Probe(path string) Probe {
	if p, ok := e.probes[path]; ok {
		return p
	}
	return ProbeUnknown
}

// Probes returns a copy of every recorded probe.
func (e Environment) Probes() map[string]Probe {
	out := make(map[string]Probe, len(e.probes))
	for k, v := range e.probes {
		out[k] = v
	}
	return out
}

// Notes returns the detection notes, one per ambiguous input.
func (e Environment) Notes() []string {
	return append([]string(nil), e.notes...)
}

// Ambiguous reports whether any input required a fallback.
func (e Environment) Ambiguous() bool {
	return len(e.notes) > 0
}
