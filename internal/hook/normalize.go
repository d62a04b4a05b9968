package hook

import (
	"fmt"

	"github.com/dshills/hostcompat/internal/event"
)

// Normalize turns one native invocation into a canonical emission. It never
// panics: missing arguments become nil and an unreadable discriminant falls
// back to the static Kind.
func Normalize(canonical string, n Native, args []any) event.Event {
	ev := event.Event{
		Name:   canonical,
		Kind:   n.Kind,
		Native: n.Name,
	}

	if n.KindFrom != nil {
		if kind, ok := readKind(args, *n.KindFrom); ok {
			ev.Kind = kind
		}
	}

	if len(n.Args) == 0 {
		ev.Args = append([]any(nil), args...)
		return ev
	}
	ev.Args = make([]any, len(n.Args))
	for i, idx := range n.Args {
		if idx >= 0 && idx < len(args) {
			ev.Args[i] = args[idx]
		}
	}
	return ev
}

func readKind(args []any, from KindFrom) (string, bool) {
	if from.Arg < 0 || from.Arg >= len(args) {
		return "", false
	}

	var v any
	switch payload := args[from.Arg].(type) {
	case map[string]any:
		v = payload[from.Key]
	case map[string]string:
		s, ok := payload[from.Key]
		if !ok {
			return "", false
		}
		return s, true
	case Getter:
		v = get(payload, from.Key)
	default:
		return "", false
	}

	switch kind := v.(type) {
	case nil:
		return "", false
	case string:
		return kind, kind != ""
	case fmt.Stringer:
		return kind.String(), true
	default:
		return fmt.Sprint(kind), true
	}
}

// get reads key from g. A Getter that panics, such as a nil pointer
// receiver, reads as absent.
func get(g Getter, key string) (v any) {
	defer func() {
		if recover() != nil {
			v = nil
		}
	}()
	return g.Get(key)
}
