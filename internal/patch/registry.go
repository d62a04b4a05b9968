// Package patch holds the table of named compatibility patches and applies
// the ones whose predicates match the detected environment.
//
// Patches are registered during module load and attempted exactly once, at
// the lifecycle checkpoint they belong to. A failing patch is recorded and
// never retried within the boot; it never prevents later patches from being
// attempted.
package patch

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/dshills/hostcompat/internal/environment"
	"github.com/dshills/hostcompat/internal/metrics"
)

// Predicate decides whether a patch applies to an environment.
type Predicate func(env environment.Environment) bool

// ApplyFunc performs the patch.
type ApplyFunc func() error

// Always is a predicate that matches every environment.
func Always(environment.Environment) bool { return true }

// Entry is the reported state of one descriptor.
type Entry struct {
	Name   string `json:"name"`
	Stage  Stage  `json:"stage"`
	Status Status `json:"status"`
	Error  string `json:"error,omitempty"`
}

// descriptor is a registered patch.
type descriptor struct {
	name      string
	stage     Stage
	predicate Predicate
	apply     ApplyFunc

	// Guarded by Registry.mu.
	claimed bool
	status  Status
	err     error
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithMetrics sets the metrics collectors.
func WithMetrics(m *metrics.Collectors) Option {
	return func(r *Registry) {
		r.metrics = m
	}
}

// DescriptorOption configures a single registration.
type DescriptorOption func(*descriptor)

// WithStage sets the checkpoint at which the patch is attempted. The default
// is StagePreActivation.
func WithStage(s Stage) DescriptorOption {
	return func(d *descriptor) {
		d.stage = s
	}
}

// Registry holds patch descriptors in registration order.
// It is safe for concurrent use.
type Registry struct {
	mu          sync.Mutex
	descriptors []*descriptor
	byName      map[string]*descriptor

	logger  *zap.Logger
	metrics *metrics.Collectors
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		byName: make(map[string]*descriptor),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.Named("patch")
	return r
}

// Register adds a patch. It has no side effect until the patch's checkpoint.
// A nil predicate matches every environment.
func (r *Registry) Register(name string, predicate Predicate, apply ApplyFunc, opts ...DescriptorOption) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidPatch)
	}
	if apply == nil {
		return fmt.Errorf("%w: %s has no apply function", ErrInvalidPatch, name)
	}
	if predicate == nil {
		predicate = Always
	}

	d := &descriptor{
		name:      name,
		stage:     StagePreActivation,
		predicate: predicate,
		apply:     apply,
	}
	for _, opt := range opts {
		opt(d)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicatePatch, name)
	}
	r.descriptors = append(r.descriptors, d)
	r.byName[name] = d
	return nil
}

// ApplyAll attempts every pending patch, in registration order, regardless
// of stage. Patches already attempted are not revisited.
func (r *Registry) ApplyAll(env environment.Environment) {
	r.applyMatching(env, func(*descriptor) bool { return true })
}

// ApplyStage attempts the pending patches registered for stage, in
// registration order.
func (r *Registry) ApplyStage(env environment.Environment, stage Stage) {
	r.applyMatching(env, func(d *descriptor) bool { return d.stage == stage })
}

func (r *Registry) applyMatching(env environment.Environment, include func(*descriptor) bool) {
	// Claim under the lock so concurrent callers never attempt a patch twice.
	r.mu.Lock()
	var claimed []*descriptor
	for _, d := range r.descriptors {
		if d.claimed || d.status.IsTerminal() || !include(d) {
			continue
		}
		d.claimed = true
		claimed = append(claimed, d)
	}
	r.mu.Unlock()

	for _, d := range claimed {
		r.attempt(env, d)
	}
}

// attempt evaluates and applies one descriptor. It never panics.
func (r *Registry) attempt(env environment.Environment, d *descriptor) {
	matched, err := evaluate(d, env)
	if err != nil {
		r.finish(d, StatusFailed, err)
		return
	}
	if !matched {
		r.finish(d, StatusSkipped, nil)
		return
	}
	if err := run(d); err != nil {
		r.finish(d, StatusFailed, err)
		return
	}
	r.finish(d, StatusApplied, nil)
}

func evaluate(d *descriptor, env environment.Environment) (matched bool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w in predicate: %v", ErrPatchPanic, rec)
		}
	}()
	return d.predicate(env), nil
}

func run(d *descriptor) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", ErrPatchPanic, rec)
		}
	}()
	return d.apply()
}

func (r *Registry) finish(d *descriptor, status Status, err error) {
	r.mu.Lock()
	d.status = status
	if err != nil {
		d.err = &ApplyError{Patch: d.name, Err: err}
	}
	r.mu.Unlock()

	r.metrics.ObservePatch(status.String())

	switch status {
	case StatusFailed:
		r.logger.Warn("patch failed",
			zap.String("patch", d.name),
			zap.Stringer("stage", d.stage),
			zap.Error(err),
		)
	case StatusApplied:
		r.logger.Info("patch applied", zap.String("patch", d.name), zap.Stringer("stage", d.stage))
	case StatusSkipped:
		r.logger.Debug("patch not applicable", zap.String("patch", d.name), zap.Stringer("stage", d.stage))
	}
}

// Report returns the state of every descriptor, in registration order.
func (r *Registry) Report() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := make([]Entry, len(r.descriptors))
	for i, d := range r.descriptors {
		entries[i] = Entry{
			Name:   d.name,
			Stage:  d.stage,
			Status: d.status,
		}
		if d.err != nil {
			var ae *ApplyError
			if errors.As(d.err, &ae) {
				entries[i].Error = ae.Err.Error()
			} else {
				entries[i].Error = d.err.Error()
			}
		}
	}
	return entries
}

// Status returns the status of the named patch.
func (r *Registry) Status(name string) (Status, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.byName[name]
	if !ok {
		return StatusPending, false
	}
	return d.status, true
}

// Err returns the failure recorded for the named patch, or nil.
func (r *Registry) Err(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if d, ok := r.byName[name]; ok {
		return d.err
	}
	return nil
}

// Len returns the number of registered patches.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.descriptors)
}
