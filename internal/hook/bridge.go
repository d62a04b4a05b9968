package hook

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/dshills/hostcompat/internal/environment"
	"github.com/dshills/hostcompat/internal/event"
	"github.com/dshills/hostcompat/internal/host"
	"github.com/dshills/hostcompat/internal/metrics"
)

// Binding is the resolved state of one canonical event.
type Binding struct {
	Event   string   `json:"event"`
	Bound   bool     `json:"bound"`
	Natives []string `json:"natives,omitempty"`
	Reason  string   `json:"reason,omitempty"`
}

func (b Binding) clone() Binding {
	b.Natives = append([]string(nil), b.Natives...)
	return b
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *Bridge) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithMetrics sets the metrics collectors.
func WithMetrics(m *metrics.Collectors) Option {
	return func(b *Bridge) {
		b.metrics = m
	}
}

// Bridge subscribes to the host's native events and re-emits them into a
// listener registry under their canonical names.
type Bridge struct {
	events    host.Events
	listeners *event.Registry
	table     Table

	logger  *zap.Logger
	metrics *metrics.Collectors

	mu          sync.RWMutex
	established bool
	bindings    []Binding
	byName      map[string]int
}

// NewBridge creates a bridge. Nothing is registered with the host until
// Establish.
func NewBridge(events host.Events, listeners *event.Registry, table Table, opts ...Option) *Bridge {
	b := &Bridge{
		events:    events,
		listeners: listeners,
		table:     table,
		logger:    zap.NewNop(),
		byName:    make(map[string]int),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.Named("hook")
	return b
}

// Establish registers one native callback per native event of every mapping
// that covers env.Generation. Canonical events without a mapping are
// recorded as unbound and logged; they are not an error. Establish runs
// once; later calls return ErrAlreadyEstablished.
//
// Native callbacks dispatch with a context that carries ctx's values but
// not its cancellation, since they fire for the life of the process.
func (b *Bridge) Establish(ctx context.Context, env environment.Environment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := b.table.Validate(); err != nil {
		return err
	}

	b.mu.Lock()
	if b.established {
		b.mu.Unlock()
		return ErrAlreadyEstablished
	}
	b.established = true
	b.bindings = b.table.Resolve(env.Generation)
	for i, binding := range b.bindings {
		b.byName[binding.Event] = i
	}
	b.mu.Unlock()

	dctx := context.WithoutCancel(ctx)
	for _, ev := range b.table {
		m, ok := ev.Resolve(env.Generation)
		if !ok {
			b.logger.Info("canonical event unbound",
				zap.String("event", ev.Name),
				zap.Int("generation", env.Generation),
			)
			continue
		}
		for _, n := range m.Natives {
			b.events.On(n.Name, b.callback(dctx, ev.Name, n))
		}
		b.logger.Debug("canonical event bound",
			zap.String("event", ev.Name),
			zap.Stringer("mapping", m),
			zap.Int("natives", len(m.Natives)),
		)
	}
	return nil
}

func (b *Bridge) callback(ctx context.Context, canonical string, n Native) host.Callback {
	return func(args ...any) {
		b.metrics.ObserveNative(n.Name)
		ev := Normalize(canonical, n, args)
		if n.KindFrom != nil && ev.Kind == "" {
			b.logger.Debug("discriminant not found",
				zap.String("event", canonical),
				zap.String("native", n.Name),
				zap.String("key", n.KindFrom.Key),
			)
		}
		b.listeners.DispatchEvent(ctx, ev)
	}
}

// Established reports whether Establish has run.
func (b *Bridge) Established() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.established
}

// ReasonNotEstablished is the reason reported for every table event before
// Establish has run.
const ReasonNotEstablished = "bridge not established"

// Bindings returns every binding in table order. Before Establish each
// table event is reported unbound with ReasonNotEstablished.
func (b *Bridge) Bindings() []Binding {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.established {
		return b.pending()
	}
	out := make([]Binding, len(b.bindings))
	for i, binding := range b.bindings {
		out[i] = binding.clone()
	}
	return out
}

// Binding returns the binding for one canonical event. ok is false only for
// names missing from the table.
func (b *Bridge) Binding(name string) (Binding, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.established {
		for _, binding := range b.pending() {
			if binding.Event == name {
				return binding, true
			}
		}
		return Binding{}, false
	}
	i, ok := b.byName[name]
	if !ok {
		return Binding{}, false
	}
	return b.bindings[i].clone(), true
}

// pending lists the table events as unbound. The caller holds b.mu.
func (b *Bridge) pending() []Binding {
	out := make([]Binding, len(b.table))
	for i, ev := range b.table {
		out[i] = Binding{Event: ev.Name, Reason: ReasonNotEstablished}
	}
	return out
}
