// Package deprecation suppresses known-noisy deprecation warnings by
// wrapping the host's global warning sink.
//
// Matching is plain pattern matching on message text and is best effort:
// upstream wording changes silently disable a pattern. The wrapper is
// always removable, so the original sink is never permanently shadowed.
package deprecation

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"unsafe"

	"go.uber.org/zap"

	"github.com/dshills/hostcompat/internal/host"
	"github.com/dshills/hostcompat/internal/metrics"
)

// Compile compiles patterns in order. The first invalid pattern aborts.
func Compile(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for i, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("deprecation pattern %d: %w", i, err)
		}
		out = append(out, re)
	}
	return out, nil
}

// Option configures a Filter.
type Option func(*Filter)

// WithLogger sets the logger dropped messages are re-logged to at debug level.
func WithLogger(l *zap.Logger) Option {
	return func(f *Filter) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithMetrics sets the metrics collectors.
func WithMetrics(m *metrics.Collectors) Option {
	return func(f *Filter) {
		f.metrics = m
	}
}

// Filter decides which warnings reach the original sink.
type Filter struct {
	original host.Sink
	sink     host.Sink
	patterns []*regexp.Regexp

	logger  *zap.Logger
	metrics *metrics.Collectors

	bypass     atomic.Bool
	suppressed atomic.Int64
}

// Wrap returns a filter in front of original.
func Wrap(original host.Sink, patterns []*regexp.Regexp, opts ...Option) *Filter {
	f := &Filter{
		original: original,
		patterns: patterns,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = f.logger.Named("deprecation")
	f.sink = f.handle
	return f
}

// Sink returns the replacement sink. It has the same shape as the original
// and is the same func value on every call.
func (f *Filter) Sink() host.Sink {
	return f.sink
}

// sameSink reports whether a and b are one func value, not merely two
// closures over the same code.
func sameSink(a, b host.Sink) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *(*unsafe.Pointer)(unsafe.Pointer(&a)) == *(*unsafe.Pointer)(unsafe.Pointer(&b))
}

func (f *Filter) handle(args ...any) {
	if !f.bypass.Load() {
		msg := Join(args)
		if re := f.Match(msg); re != nil {
			f.suppressed.Add(1)
			f.metrics.ObserveSuppressed()
			f.logger.Debug("deprecation warning suppressed",
				zap.String("message", msg),
				zap.String("pattern", re.String()),
			)
			return
		}
	}
	if f.original != nil {
		f.original(args...)
	}
}

// Match returns the first pattern matching msg, or nil.
func (f *Filter) Match(msg string) *regexp.Regexp {
	for _, re := range f.patterns {
		if re.MatchString(msg) {
			return re
		}
	}
	return nil
}

// Suppressed returns the number of dropped calls.
func (f *Filter) Suppressed() int64 {
	return f.suppressed.Load()
}

// Patterns returns the pattern sources in match order.
func (f *Filter) Patterns() []string {
	out := make([]string, len(f.patterns))
	for i, re := range f.patterns {
		out[i] = re.String()
	}
	return out
}

// Join renders sink arguments as one message, separated by single spaces.
func Join(args []any) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = fmt.Sprint(a)
	}
	return strings.Join(parts, " ")
}

// Handle is an installed filter.
type Handle struct {
	console host.Console
	filter  *Filter

	mu        sync.Mutex
	installed bool
}

// Install wraps the console's current sink and installs the replacement.
func Install(console host.Console, patterns []*regexp.Regexp, opts ...Option) *Handle {
	f := Wrap(console.WarnSink(), patterns, opts...)
	console.SetWarnSink(f.Sink())
	return &Handle{console: console, filter: f, installed: true}
}

// Uninstall stops filtering. The original sink is restored only while the
// console still holds this filter's replacement; if something has wrapped
// it since, that wrapper stays installed and the replacement forwards every
// message from then on. Calling it more than once is a no-op.
func (h *Handle) Uninstall() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.installed {
		return
	}
	h.installed = false
	h.filter.bypass.Store(true)
	if sameSink(h.console.WarnSink(), h.filter.Sink()) {
		h.console.SetWarnSink(h.filter.original)
		return
	}
	h.filter.logger.Debug("warning sink rewrapped since install, leaving it in place")
}

// Installed reports whether the filter is still installed.
func (h *Handle) Installed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.installed
}

// Suppressed returns the number of dropped calls.
func (h *Handle) Suppressed() int64 {
	return h.filter.Suppressed()
}

// Filter returns the underlying filter.
func (h *Handle) Filter() *Filter {
	return h.filter
}
