package event

import (
	"go.uber.org/zap"

	"github.com/dshills/hostcompat/internal/metrics"
)

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used for handler failures.
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
