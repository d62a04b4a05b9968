// Package host defines the seam between the compatibility core and the host
// application that loads it as a plugin.
//
// The core never reads ambient globals. Everything it needs from the host
// (native event registration, version metadata, the global warning sink and
// the handful of namespace mutations patches are allowed to perform) arrives
// through the interfaces in this package, so tests and the scripted host in
// luahost can substitute their own implementations.
package host

// Callback receives a native host event. Native events have no fixed arity;
// each event name defines its own argument list.
type Callback func(args ...any)

// Sink is the shape of the host's global warning function.
type Sink func(args ...any)

// Events is the host's native event registration API.
type Events interface {
	// On registers cb for the native event name. Registrations are never
	// removed by the core.
	On(name string, cb Callback)
}

// Metadata is the read-only version and capability information the host
// exposes.
type Metadata interface {
	// HostVersion returns the raw host version string, or "" when unknown.
	HostVersion() string

	// DependencyVersion returns the raw version of the secondary dependency
	// (the rules engine running inside the host), or "" when absent.
	DependencyVersion() string

	// Companions returns the identifiers of active companion plugins.
	Companions() []string

	// Lookup resolves a dotted namespace path such as "CONFIG.Actor.sheets".
	// It returns found=false when the path does not exist and a non-nil
	// error when presence cannot be determined.
	Lookup(path string) (value any, found bool, err error)
}

// Console is the host's overridable warning sink.
type Console interface {
	WarnSink() Sink
	SetWarnSink(Sink)
}

// Mutator covers the host mutations patches are allowed to perform.
type Mutator interface {
	// Alias makes the namespace at to refer to the value found at from.
	Alias(from, to string) error

	// Set assigns value at the dotted path, creating intermediate tables.
	Set(path string, value any) error
}

// Host is the full collaborator surface.
type Host interface {
	Events
	Metadata
	Console
	Mutator
}
