package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

//go:embed tables.toml
var defaultTables []byte

// Tables is the core's static configuration: the canonical event table, the
// patch table and the deprecation pattern list. Tables are data shipped with
// the plugin, not settings end users change at runtime.
type Tables struct {
	Environment EnvironmentSpec `toml:"environment"`
	Events      []EventSpec     `toml:"events"`
	Patches     []PatchSpec     `toml:"patches"`
	Deprecation DeprecationSpec `toml:"deprecation"`
}

// EnvironmentSpec configures detection.
type EnvironmentSpec struct {
	OldestGeneration int      `toml:"oldest_generation"`
	LatestGeneration int      `toml:"latest_generation"`
	NewMajor         int      `toml:"new_major"`
	Companions       []string `toml:"companions"`
	Probes           []string `toml:"probes"`
}

// EventSpec maps one canonical event to native events per generation range.
type EventSpec struct {
	Name     string        `toml:"name"`
	Mappings []MappingSpec `toml:"mappings"`
}

// MappingSpec applies to host generations in [MinGeneration, MaxGeneration].
// A zero bound is open.
type MappingSpec struct {
	MinGeneration int          `toml:"min_generation"`
	MaxGeneration int          `toml:"max_generation"`
	Natives       []NativeSpec `toml:"natives"`
}

// NativeSpec describes one native event and how its payload is normalized.
type NativeSpec struct {
	Name     string        `toml:"name"`
	Kind     string        `toml:"kind"`
	KindFrom *KindFromSpec `toml:"kind_from"`
	Args     []int         `toml:"args"`
}

// KindFromSpec reads the discriminant from a map field of a payload argument.
type KindFromSpec struct {
	Arg int    `toml:"arg"`
	Key string `toml:"key"`
}

// PatchSpec is a table-driven patch.
type PatchSpec struct {
	Name   string        `toml:"name"`
	Stage  string        `toml:"stage"`
	Action string        `toml:"action"`
	From   string        `toml:"from"`
	To     string        `toml:"to"`
	Path   string        `toml:"path"`
	Value  any           `toml:"value"`
	When   ConditionSpec `toml:"when"`
}

// ConditionSpec is the applicability predicate of a table-driven patch.
// Zero-valued fields impose no constraint.
type ConditionSpec struct {
	MinGeneration int      `toml:"min_generation"`
	MaxGeneration int      `toml:"max_generation"`
	MinDependency int      `toml:"min_dependency"`
	MaxDependency int      `toml:"max_dependency"`
	Flags         []string `toml:"flags"`
	Companions    []string `toml:"companions"`
	Present       []string `toml:"present"`
	Absent        []string `toml:"absent"`
}

// DeprecationSpec lists the warning patterns to suppress.
type DeprecationSpec struct {
	Patterns []string `toml:"patterns"`
}

// DefaultTables returns the tables embedded in the binary.
func DefaultTables() (*Tables, error) {
	return ParseTables("<embedded>", defaultTables)
}

// LoadTables reads tables from path, or the embedded defaults when path is
// empty.
func LoadTables(path string) (*Tables, error) {
	if path == "" {
		return DefaultTables()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("reading tables %s: %w", path, err)
	}
	return ParseTables(path, data)
}

// ParseTables decodes and validates TOML tables. Unknown keys are rejected.
func ParseTables(source string, data []byte) (*Tables, error) {
	var t Tables
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&t); err != nil {
		perr := &ParseError{Path: source, Message: err.Error(), Err: err}
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			perr.Line, perr.Column = derr.Position()
		}
		return nil, perr
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// Validate checks the structural requirements the loaders rely on. Deeper
// checks (overlapping generation ranges, regex syntax) belong to the
// packages that consume each section.
func (t *Tables) Validate() error {
	env := t.Environment
	if env.OldestGeneration < 0 || env.LatestGeneration < 0 || env.NewMajor < 0 {
		return &ValidationError{Section: "environment", Message: "bounds must not be negative"}
	}
	if env.LatestGeneration > 0 && env.OldestGeneration > env.LatestGeneration {
		return &ValidationError{Section: "environment", Message: "oldest_generation is newer than latest_generation"}
	}

	for i, ev := range t.Events {
		if ev.Name == "" {
			return &ValidationError{Section: "events", Message: fmt.Sprintf("entry %d has no name", i)}
		}
		for _, m := range ev.Mappings {
			for _, n := range m.Natives {
				if n.Name == "" {
					return &ValidationError{Section: "events", Name: ev.Name, Message: "native without a name"}
				}
			}
		}
	}

	for i, p := range t.Patches {
		if p.Name == "" {
			return &ValidationError{Section: "patches", Message: fmt.Sprintf("entry %d has no name", i)}
		}
		if p.Action == "" {
			return &ValidationError{Section: "patches", Name: p.Name, Message: "missing action"}
		}
	}
	return nil
}
