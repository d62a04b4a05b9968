// Package metrics provides the Prometheus collectors shared by the
// compatibility core.
//
// Collectors are registered on a caller-supplied registerer rather than the
// global default so each boot (and each test) gets an isolated set. All
// methods are safe on a nil *Collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "hostcompat"

// Collectors groups the core's counters.
type Collectors struct {
	patches         *prometheus.CounterVec
	dispatches      *prometheus.CounterVec
	handlerFailures *prometheus.CounterVec
	handlerPanics   prometheus.Counter
	nativeEvents    *prometheus.CounterVec
	suppressed      prometheus.Counter
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) (*Collectors, error) {
	c := &Collectors{
		patches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "patches_total",
				Help:      "Patch outcomes by terminal status.",
			},
			[]string{"status"},
		),
		dispatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dispatches_total",
				Help:      "Canonical event dispatches.",
			},
			[]string{"event"},
		),
		handlerFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "handler_failures_total",
				Help:      "Handlers that returned an error or panicked during dispatch.",
			},
			[]string{"event"},
		),
		handlerPanics: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "handler_panics_total",
				Help:      "Handler panics recovered during dispatch.",
			},
		),
		nativeEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "native_events_total",
				Help:      "Native host events received by the hook bridge.",
			},
			[]string{"native"},
		),
		suppressed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "deprecations_suppressed_total",
				Help:      "Warnings dropped by the deprecation filter.",
			},
		),
	}

	for _, col := range []prometheus.Collector{c.patches, c.dispatches, c.handlerFailures, c.handlerPanics, c.nativeEvents, c.suppressed} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// ObservePatch counts a patch reaching a terminal status.
func (c *Collectors) ObservePatch(status string) {
	if c == nil {
		return
	}
	c.patches.WithLabelValues(status).Inc()
}

// ObserveDispatch counts a canonical dispatch.
func (c *Collectors) ObserveDispatch(event string) {
	if c == nil {
		return
	}
	c.dispatches.WithLabelValues(event).Inc()
}

// ObserveHandlerFailure counts a failed handler invocation.
func (c *Collectors) ObserveHandlerFailure(event string) {
	if c == nil {
		return
	}
	c.handlerFailures.WithLabelValues(event).Inc()
}

// ObserveHandlerPanic counts a recovered handler panic. Panics are also
// counted as failures by ObserveHandlerFailure.
func (c *Collectors) ObserveHandlerPanic() {
	if c == nil {
		return
	}
	c.handlerPanics.Inc()
}

// ObserveNative counts a native event received by the bridge.
func (c *Collectors) ObserveNative(native string) {
	if c == nil {
		return
	}
	c.nativeEvents.WithLabelValues(native).Inc()
}

// ObserveSuppressed counts a warning dropped by the deprecation filter.
func (c *Collectors) ObserveSuppressed() {
	if c == nil {
		return
	}
	c.suppressed.Inc()
}
