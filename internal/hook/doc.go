// Package hook binds canonical, version-independent event names to the
// host's generation-dependent native events.
//
// A Table lists, for each canonical event, one or more generation-ranged
// mappings to native events. When established against a detected
// environment, the Bridge registers a callback for every native event of
// the matching mapping. Each callback normalizes its payload (discriminant
// plus argument selection) and dispatches a single canonical event.Event
// into the listener registry.
//
// Where one generation fires a unified notification and another fires
// several type-specific ones, both normalize to the same canonical event
// with Kind identifying the subtype, so a handler written once works on
// every generation.
//
// A canonical event with no mapping for the detected generation is left
// unbound. That is reported through Bindings, never as an error.
package hook
