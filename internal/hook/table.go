package hook

import (
	"fmt"

	"github.com/dshills/hostcompat/internal/config"
)

// KindFrom reads an event's discriminant from a payload argument: the
// value stored under Key in argument Arg. The argument must be a
// map[string]any, a map[string]string or a Getter; any other payload
// yields no discriminant and the native's static Kind applies.
type KindFrom struct {
	Arg int
	Key string
}

// Getter is a document payload that exposes its fields by key. Hosts that
// pass structured documents rather than plain maps implement it so KindFrom
// can read them.
type Getter interface {
	Get(key string) any
}

// Native is one host event and the rule that normalizes its payload.
type Native struct {
	// Name is the host's event name.
	Name string

	// Kind is a fixed discriminant, for type-specific natives that split
	// one conceptual event.
	Kind string

	// KindFrom reads the discriminant from the payload, for unified
	// natives. It takes precedence over Kind when it yields a value.
	KindFrom *KindFrom

	// Args selects and orders native arguments into the canonical list.
	// Empty passes every argument through unchanged.
	Args []int
}

// Mapping binds a canonical event to natives for host generations in
// [MinGeneration, MaxGeneration]. A zero bound is open.
type Mapping struct {
	MinGeneration int
	MaxGeneration int
	Natives       []Native
}

// Contains reports whether gen falls inside the mapping's range.
func (m Mapping) Contains(gen int) bool {
	if m.MinGeneration > 0 && gen < m.MinGeneration {
		return false
	}
	if m.MaxGeneration > 0 && gen > m.MaxGeneration {
		return false
	}
	return true
}

// lo and hi return the range with open bounds widened.
func (m Mapping) lo() int {
	if m.MinGeneration > 0 {
		return m.MinGeneration
	}
	return -1 << 31
}

func (m Mapping) hi() int {
	if m.MaxGeneration > 0 {
		return m.MaxGeneration
	}
	return 1<<31 - 1
}

func (m Mapping) overlaps(o Mapping) bool {
	return m.lo() <= o.hi() && o.lo() <= m.hi()
}

func (m Mapping) String() string {
	switch {
	case m.MinGeneration == 0 && m.MaxGeneration == 0:
		return "all generations"
	case m.MinGeneration == 0:
		return fmt.Sprintf("generations up to %d", m.MaxGeneration)
	case m.MaxGeneration == 0:
		return fmt.Sprintf("generations %d and later", m.MinGeneration)
	default:
		return fmt.Sprintf("generations %d-%d", m.MinGeneration, m.MaxGeneration)
	}
}

// CanonicalEvent is a version-independent event and its native mappings.
type CanonicalEvent struct {
	Name     string
	Mappings []Mapping
}

// Resolve returns the mapping covering gen.
func (c CanonicalEvent) Resolve(gen int) (Mapping, bool) {
	for _, m := range c.Mappings {
		if m.Contains(gen) {
			return m, true
		}
	}
	return Mapping{}, false
}

// Table is the canonical event table.
type Table []CanonicalEvent

// Validate rejects duplicate canonical names, unnamed natives, repeated
// natives within a mapping, inverted ranges, negative argument indices and
// overlapping ranges within one event.
func (t Table) Validate() error {
	seen := make(map[string]bool, len(t))
	for i, ev := range t {
		if ev.Name == "" {
			return &TableError{Message: fmt.Sprintf("entry %d has no name", i)}
		}
		if seen[ev.Name] {
			return &TableError{Event: ev.Name, Message: "duplicate canonical name"}
		}
		seen[ev.Name] = true

		for j, m := range ev.Mappings {
			if m.MinGeneration > 0 && m.MaxGeneration > 0 && m.MinGeneration > m.MaxGeneration {
				return &TableError{Event: ev.Name, Message: fmt.Sprintf("mapping %d has an inverted range", j)}
			}
			if err := validateNatives(ev.Name, m.Natives); err != nil {
				return err
			}
			for k := 0; k < j; k++ {
				if m.overlaps(ev.Mappings[k]) {
					return &TableError{Event: ev.Name, Message: fmt.Sprintf("mappings %d and %d overlap", k, j)}
				}
			}
		}
	}
	return nil
}

func validateNatives(event string, natives []Native) error {
	if len(natives) == 0 {
		return &TableError{Event: event, Message: "mapping without natives"}
	}
	names := make(map[string]bool, len(natives))
	for _, n := range natives {
		if n.Name == "" {
			return &TableError{Event: event, Message: "native without a name"}
		}
		if names[n.Name] {
			return &TableError{Event: event, Message: fmt.Sprintf("native %q repeated", n.Name)}
		}
		names[n.Name] = true

		for _, idx := range n.Args {
			if idx < 0 {
				return &TableError{Event: event, Message: fmt.Sprintf("native %q has a negative argument index", n.Name)}
			}
		}
		if n.KindFrom != nil && (n.KindFrom.Arg < 0 || n.KindFrom.Key == "") {
			return &TableError{Event: event, Message: fmt.Sprintf("native %q has an incomplete kind_from", n.Name)}
		}
	}
	return nil
}

// Resolve computes the binding of every canonical event for gen, in table
// order, without touching the host.
func (t Table) Resolve(gen int) []Binding {
	out := make([]Binding, 0, len(t))
	for _, ev := range t {
		b := Binding{Event: ev.Name}
		m, ok := ev.Resolve(gen)
		if !ok {
			b.Reason = fmt.Sprintf("no native mapping for generation %d", gen)
			out = append(out, b)
			continue
		}
		b.Bound = true
		for _, n := range m.Natives {
			b.Natives = append(b.Natives, n.Name)
		}
		out = append(out, b)
	}
	return out
}

// TableFromConfig converts the [[events]] section of the tables file.
func TableFromConfig(specs []config.EventSpec) Table {
	t := make(Table, 0, len(specs))
	for _, spec := range specs {
		ev := CanonicalEvent{Name: spec.Name}
		for _, ms := range spec.Mappings {
			m := Mapping{MinGeneration: ms.MinGeneration, MaxGeneration: ms.MaxGeneration}
			for _, ns := range ms.Natives {
				n := Native{
					Name: ns.Name,
					Kind: ns.Kind,
					Args: append([]int(nil), ns.Args...),
				}
				if ns.KindFrom != nil {
					n.KindFrom = &KindFrom{Arg: ns.KindFrom.Arg, Key: ns.KindFrom.Key}
				}
				m.Natives = append(m.Natives, n)
			}
			ev.Mappings = append(ev.Mappings, m)
		}
		t = append(t, ev)
	}
	return t
}
