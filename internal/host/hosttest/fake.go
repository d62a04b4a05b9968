// Package hosttest provides an in-memory host.Host for tests.
package hosttest

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/dshills/hostcompat/internal/host"
)

// ErrLookupFailed is returned by Lookup for paths registered with FailLookup.
var ErrLookupFailed = errors.New("lookup failed")

// Fake is a scriptable host. The zero value is not usable; call New.
type Fake struct {
	mu sync.Mutex

	Version          string
	Dependency       string
	ActiveCompanions []string
	Warnings         [][]any
	PanicOnVersion   bool
	AliasErr         error
	SetErr           error

	namespaces map[string]any
	failing    map[string]bool
	callbacks  map[string][]host.Callback
	sink       host.Sink
}

// New creates a fake host with the given host and dependency versions.
func New(version, dependency string) *Fake {
	f := &Fake{
		Version:    version,
		Dependency: dependency,
		namespaces: make(map[string]any),
		failing:    make(map[string]bool),
		callbacks:  make(map[string][]host.Callback),
	}
	f.sink = f.record
	return f
}

func (f *Fake) record(args ...any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Warnings = append(f.Warnings, args)
}

// Define makes path resolvable by Lookup.
func (f *Fake) Define(path string, value any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.namespaces[path] = value
}

// FailLookup makes Lookup return an error for path.
func (f *Fake) FailLookup(path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing[path] = true
}

// Fire invokes every callback registered for the native event name.
func (f *Fake) Fire(name string, args ...any) int {
	f.mu.Lock()
	cbs := append([]host.Callback(nil), f.callbacks[name]...)
	f.mu.Unlock()

	for _, cb := range cbs {
		cb(args...)
	}
	return len(cbs)
}

// Registered returns the number of callbacks registered for name.
func (f *Fake) Registered(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.callbacks[name])
}

// Warn calls the currently installed warning sink.
func (f *Fake) Warn(args ...any) {
	f.mu.Lock()
	sink := f.sink
	f.mu.Unlock()
	sink(args...)
}

// WarningCount returns the number of warnings that reached the original sink.
func (f *Fake) WarningCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Warnings)
}

// On implements host.Events.
func (f *Fake) On(name string, cb host.Callback) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callbacks[name] = append(f.callbacks[name], cb)
}

// HostVersion implements host.Metadata.
func (f *Fake) HostVersion() string {
	if f.PanicOnVersion {
		panic("version metadata unavailable")
	}
	return f.Version
}

// DependencyVersion implements host.Metadata.
func (f *Fake) DependencyVersion() string { return f.Dependency }

// Companions implements host.Metadata.
func (f *Fake) Companions() []string { return f.ActiveCompanions }

// Lookup implements host.Metadata.
func (f *Fake) Lookup(path string) (any, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failing[path] {
		return nil, false, fmt.Errorf("%s: %w", path, ErrLookupFailed)
	}
	v, ok := f.namespaces[path]
	return v, ok, nil
}

// WarnSink implements host.Console.
func (f *Fake) WarnSink() host.Sink {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sink
}

// SetWarnSink implements host.Console.
func (f *Fake) SetWarnSink(s host.Sink) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sink = s
}

// Alias implements host.Mutator.
func (f *Fake) Alias(from, to string) error {
	if f.AliasErr != nil {
		return f.AliasErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	v, ok := f.namespaces[from]
	if !ok {
		return fmt.Errorf("alias %s: source %q not found", to, from)
	}
	f.namespaces[to] = v
	return nil
}

// Set implements host.Mutator.
func (f *Fake) Set(path string, value any) error {
	if f.SetErr != nil {
		return f.SetErr
	}
	if strings.TrimSpace(path) == "" {
		return errors.New("empty path")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.namespaces[path] = value
	return nil
}

var _ host.Host = (*Fake)(nil)
