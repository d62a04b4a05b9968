package event

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dshills/hostcompat/internal/event/dispatch"
	"github.com/dshills/hostcompat/internal/metrics"
)

// Registry manages subscriptions keyed by canonical event name.
// It is thread-safe for concurrent access.
type Registry struct {
	mu sync.RWMutex

	// subs slices are replaced, never modified in place, so a slice read
	// under the lock is a stable snapshot for the rest of a dispatch.
	subs map[string][]*Subscription

	executor *dispatch.Executor
	logger   *zap.Logger
	metrics  *metrics.Collectors
}

// NewRegistry creates an empty listener registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		subs:   make(map[string][]*Subscription),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.Named("event")
	r.executor = dispatch.NewExecutor(dispatch.WithPanicHandler(func(any, []byte) {
		r.metrics.ObserveHandlerPanic()
	}))
	return r
}

// On subscribes h to the canonical event name. Handlers run in subscription
// order; subscribing the same handler twice makes it run twice.
func (r *Registry) On(name string, h Handler, opts ...SubscribeOption) (*Subscription, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty name", ErrInvalidEvent)
	}
	if h == nil {
		return nil, ErrNilHandler
	}

	sub := &Subscription{
		id:       uuid.NewString(),
		name:     name,
		handler:  h,
		registry: r,
	}
	for _, opt := range opts {
		opt(sub)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.subs[name]
	next := make([]*Subscription, len(cur), len(cur)+1)
	copy(next, cur)
	r.subs[name] = append(next, sub)
	return sub, nil
}

// OnFunc subscribes a function.
func (r *Registry) OnFunc(name string, fn func(ctx context.Context, ev Event) error, opts ...SubscribeOption) (*Subscription, error) {
	if fn == nil {
		return nil, ErrNilHandler
	}
	return r.On(name, HandlerFunc(fn), opts...)
}

// Off removes sub from name. It is a no-op when sub is not registered there.
func (r *Registry) Off(name string, sub *Subscription) bool {
	if sub == nil {
		return false
	}
	return r.remove(name, func(s *Subscription) bool { return s == sub })
}

// OffID removes the subscription with the given id from name.
func (r *Registry) OffID(name, id string) bool {
	return r.remove(name, func(s *Subscription) bool { return s.id == id })
}

// OffHandler removes the first subscription of h under name, comparing
// handlers with ==. Handlers of a non-comparable dynamic type (HandlerFunc
// and other func types) never match; unsubscribe those with their
// Subscription.
func (r *Registry) OffHandler(name string, h Handler) bool {
	if h == nil || !reflect.TypeOf(h).Comparable() {
		return false
	}
	return r.remove(name, func(s *Subscription) bool {
		return reflect.TypeOf(s.handler).Comparable() && s.handler == h
	})
}

func (r *Registry) remove(name string, match func(*Subscription) bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.subs[name]
	for i, s := range cur {
		if !match(s) {
			continue
		}
		s.removed.Store(true)
		if len(cur) == 1 {
			delete(r.subs, name)
			return true
		}
		next := make([]*Subscription, 0, len(cur)-1)
		next = append(next, cur[:i]...)
		r.subs[name] = append(next, cur[i+1:]...)
		return true
	}
	return false
}

// Dispatch delivers a canonical event with the given arguments.
func (r *Registry) Dispatch(ctx context.Context, name string, args ...any) Outcome {
	return r.DispatchEvent(ctx, Event{Name: name, Args: args})
}

// DispatchEvent invokes every handler subscribed to ev.Name, in order,
// against the handler list as it was when the dispatch started. Handler
// failures are isolated: they are logged, counted and returned in the
// Outcome, and never reach the caller as a panic.
func (r *Registry) DispatchEvent(ctx context.Context, ev Event) Outcome {
	if ctx == nil {
		ctx = context.Background()
	}

	r.mu.RLock()
	snapshot := r.subs[ev.Name]
	r.mu.RUnlock()

	r.metrics.ObserveDispatch(ev.Name)

	var out Outcome
	for _, sub := range snapshot {
		out.Handlers++

		h := sub.handler
		res := r.executor.Execute(ctx, func(ctx context.Context) error {
			return h.Handle(ctx, ev)
		})
		if res.IsSuccess() {
			continue
		}

		out.Failures++
		out.Errors = append(out.Errors, r.failure(sub, ev, res))
	}
	return out
}

// failure logs and counts a failed handler and returns its error.
func (r *Registry) failure(sub *Subscription, ev Event, res dispatch.Result) error {
	r.metrics.ObserveHandlerFailure(ev.Name)

	fields := []zap.Field{
		zap.String("event", ev.Name),
		zap.String("subscription", sub.id),
		zap.String("label", sub.label),
		zap.Duration("duration", res.Duration),
	}
	if ev.Native != "" {
		fields = append(fields, zap.String("native", ev.Native))
	}

	if res.IsPanic() {
		r.logger.Error("handler panicked", append(fields,
			zap.Any("panic", res.PanicValue),
			zap.ByteString("stack", res.PanicStack),
		)...)
		return &PanicError{
			SubscriptionID: sub.id,
			Label:          sub.label,
			Event:          ev.Name,
			Value:          res.PanicValue,
			Stack:          string(res.PanicStack),
		}
	}

	r.logger.Warn("handler failed", append(fields, zap.Error(res.Error))...)
	return &HandlerError{
		SubscriptionID: sub.id,
		Label:          sub.label,
		Event:          ev.Name,
		Err:            res.Error,
	}
}

// HandlerCount returns the number of handlers subscribed to name.
func (r *Registry) HandlerCount(name string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs[name])
}

// Names returns the canonical names with at least one handler, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.subs))
	for name := range r.subs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Subscriptions returns the subscriptions for name in dispatch order.
func (r *Registry) Subscriptions(name string) []*Subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Subscription(nil), r.subs[name]...)
}
