package event

import "sync/atomic"

// Subscription is the token returned by On. It identifies one registration
// of a handler under a canonical name.
type Subscription struct {
	id      string
	name    string
	label   string
	handler Handler

	registry *Registry
	removed  atomic.Bool
}

// ID returns the unique subscription identifier.
func (s *Subscription) ID() string { return s.id }

// Name returns the canonical event name.
func (s *Subscription) Name() string { return s.name }

// Label returns the label given at subscription time.
func (s *Subscription) Label() string { return s.label }

// Active reports whether the subscription is still registered.
func (s *Subscription) Active() bool { return !s.removed.Load() }

// Unsubscribe removes the subscription. It reports whether anything was
// removed; calling it again is a no-op.
func (s *Subscription) Unsubscribe() bool {
	if s.registry == nil {
		return false
	}
	return s.registry.OffID(s.name, s.id)
}

// SubscribeOption configures a subscription.
type SubscribeOption func(*Subscription)

// WithLabel attaches a human-readable label used in logs and diagnostics.
func WithLabel(label string) SubscribeOption {
	return func(s *Subscription) {
		s.label = label
	}
}
