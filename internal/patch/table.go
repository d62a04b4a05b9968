package patch

import (
	"fmt"

	"github.com/dshills/hostcompat/internal/config"
	"github.com/dshills/hostcompat/internal/environment"
	"github.com/dshills/hostcompat/internal/host"
)

// Table patch actions.
const (
	ActionAlias = "alias"
	ActionSet   = "set"
)

// RegisterTable registers one descriptor per table entry. Each descriptor
// performs its action through m, the only host mutation surface patches
// get. Registration stops at the first invalid entry.
func RegisterTable(r *Registry, specs []config.PatchSpec, m host.Mutator) error {
	for _, spec := range specs {
		stage, ok := ParseStage(spec.Stage)
		if !ok {
			return fmt.Errorf("%w: %s has unknown stage %q", ErrInvalidPatch, spec.Name, spec.Stage)
		}

		apply, err := tableAction(spec, m)
		if err != nil {
			return err
		}

		if err := r.Register(spec.Name, Condition(spec.When), apply, WithStage(stage)); err != nil {
			return err
		}
	}
	return nil
}

func tableAction(spec config.PatchSpec, m host.Mutator) (ApplyFunc, error) {
	switch spec.Action {
	case ActionAlias:
		if spec.From == "" || spec.To == "" {
			return nil, fmt.Errorf("%w: %s: alias needs from and to", ErrInvalidPatch, spec.Name)
		}
		from, to := spec.From, spec.To
		return func() error { return m.Alias(from, to) }, nil

	case ActionSet:
		if spec.Path == "" {
			return nil, fmt.Errorf("%w: %s: set needs a path", ErrInvalidPatch, spec.Name)
		}
		path, value := spec.Path, spec.Value
		return func() error { return m.Set(path, value) }, nil

	default:
		return nil, fmt.Errorf("%w: %s: %q", ErrUnknownAction, spec.Name, spec.Action)
	}
}

// Condition builds a predicate from a table condition. Every constraint must
// hold. An absent probe also accepts an unknown state, so a namespace whose
// presence could not be determined still gets patched.
func Condition(c config.ConditionSpec) Predicate {
	return func(env environment.Environment) bool {
		if !inRange(env.Generation, c.MinGeneration, c.MaxGeneration) {
			return false
		}
		if !inRange(env.DependencyMajor, c.MinDependency, c.MaxDependency) {
			return false
		}
		for _, f := range c.Flags {
			if !env.Flag(environment.Flag(f)) {
				return false
			}
		}
		for _, id := range c.Companions {
			if !env.HasCompanion(id) {
				return false
			}
		}
		for _, path := range c.Present {
			if env.Probe(path) != environment.ProbePresent {
				return false
			}
		}
		for _, path := range c.Absent {
			if env.Probe(path) == environment.ProbePresent {
				return false
			}
		}
		return true
	}
}

// inRange reports whether v lies in [lo, hi]; zero bounds are open.
func inRange(v, lo, hi int) bool {
	if lo > 0 && v < lo {
		return false
	}
	if hi > 0 && v > hi {
		return false
	}
	return true
}
