// Package diagnostics aggregates the state of the compatibility core for
// operator troubleshooting: the detected environment, every patch outcome,
// the binding and subscriber count of every canonical event, the
// deprecation filter and a snapshot of the core's metrics.
package diagnostics

import (
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/dshills/hostcompat/internal/deprecation"
	"github.com/dshills/hostcompat/internal/environment"
	"github.com/dshills/hostcompat/internal/event"
	"github.com/dshills/hostcompat/internal/hook"
	"github.com/dshills/hostcompat/internal/patch"
)

// Sources are the components a report is collected from. Nil components
// contribute nothing.
type Sources struct {
	Environment environment.Environment
	Patches     *patch.Registry
	Bridge      *hook.Bridge
	Listeners   *event.Registry
	Deprecation *deprecation.Handle
	Gatherer    prometheus.Gatherer
}

// Report is a point-in-time view of the core.
type Report struct {
	Environment EnvironmentReport `json:"environment"`
	Patches     []patch.Entry     `json:"patches"`
	Events      []EventReport     `json:"events"`
	Deprecation DeprecationReport `json:"deprecation"`
	Metrics     []MetricSample    `json:"metrics,omitempty"`
}

// EnvironmentReport is the serializable form of an environment.Environment.
type EnvironmentReport struct {
	Generation        int               `json:"generation"`
	DependencyMajor   int               `json:"dependency_major"`
	HostVersion       string            `json:"host_version"`
	DependencyVersion string            `json:"dependency_version"`
	Flags             []string          `json:"flags"`
	Companions        []string          `json:"companions"`
	Probes            map[string]string `json:"probes,omitempty"`
	Notes             []string          `json:"notes,omitempty"`
}

// EventReport describes one canonical event.
type EventReport struct {
	Name     string   `json:"name"`
	Bound    bool     `json:"bound"`
	Natives  []string `json:"natives,omitempty"`
	Reason   string   `json:"reason,omitempty"`
	Handlers int      `json:"handlers"`

	// Subscribers are the labels of labeled subscriptions, in dispatch
	// order.
	Subscribers []string `json:"subscribers,omitempty"`
}

// DeprecationReport describes the warning filter.
type DeprecationReport struct {
	Installed  bool     `json:"installed"`
	Patterns   []string `json:"patterns,omitempty"`
	Suppressed int64    `json:"suppressed"`
}

// MetricSample is one sample of a counter or gauge.
type MetricSample struct {
	Name   string            `json:"name"`
	Labels map[string]string `json:"labels,omitempty"`
	Value  float64           `json:"value"`
}

// Reason recorded for events that have subscribers but no table entry.
const reasonNotInTable = "not in event table"

// Collect builds a report.
func Collect(src Sources) Report {
	r := Report{
		Environment: environmentReport(src.Environment),
	}

	if src.Patches != nil {
		r.Patches = src.Patches.Report()
	}

	r.Events = eventReports(src.Bridge, src.Listeners)

	if src.Deprecation != nil {
		r.Deprecation = DeprecationReport{
			Installed:  src.Deprecation.Installed(),
			Patterns:   src.Deprecation.Filter().Patterns(),
			Suppressed: src.Deprecation.Suppressed(),
		}
	}

	if src.Gatherer != nil {
		r.Metrics = snapshot(src.Gatherer)
	}
	return r
}

// Event returns the report for one canonical event.
func (r Report) Event(name string) (EventReport, bool) {
	for _, ev := range r.Events {
		if ev.Name == name {
			return ev, true
		}
	}
	return EventReport{}, false
}

// Patch returns the report entry for one patch.
func (r Report) Patch(name string) (patch.Entry, bool) {
	for _, p := range r.Patches {
		if p.Name == name {
			return p, true
		}
	}
	return patch.Entry{}, false
}

// Metric returns the value of the sample with the given name and labels.
func (r Report) Metric(name string, labels map[string]string) (float64, bool) {
	for _, s := range r.Metrics {
		if s.Name == name && sameLabels(s.Labels, labels) {
			return s.Value, true
		}
	}
	return 0, false
}

func sameLabels(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

func environmentReport(env environment.Environment) EnvironmentReport {
	er := EnvironmentReport{
		Generation:        env.Generation,
		DependencyMajor:   env.DependencyMajor,
		HostVersion:       env.HostVersion,
		DependencyVersion: env.DependencyVersion,
		Flags:             []string{},
		Companions:        env.Companions(),
		Notes:             env.Notes(),
	}
	for f, set := range env.Flags() {
		if set {
			er.Flags = append(er.Flags, string(f))
		}
	}
	sort.Strings(er.Flags)

	if probes := env.Probes(); len(probes) > 0 {
		er.Probes = make(map[string]string, len(probes))
		for path, p := range probes {
			er.Probes[path] = p.String()
		}
	}
	return er
}

// eventReports lists bindings in table order, followed by any subscribed
// names the table does not know, sorted.
func eventReports(bridge *hook.Bridge, listeners *event.Registry) []EventReport {
	fill := func(r EventReport) EventReport {
		if listeners == nil {
			return r
		}
		for _, sub := range listeners.Subscriptions(r.Name) {
			r.Handlers++
			if sub.Label() != "" {
				r.Subscribers = append(r.Subscribers, sub.Label())
			}
		}
		return r
	}

	var out []EventReport
	known := make(map[string]bool)
	if bridge != nil {
		for _, b := range bridge.Bindings() {
			known[b.Event] = true
			out = append(out, fill(EventReport{
				Name:    b.Event,
				Bound:   b.Bound,
				Natives: b.Natives,
				Reason:  b.Reason,
			}))
		}
	}

	if listeners != nil {
		for _, name := range listeners.Names() {
			if known[name] {
				continue
			}
			out = append(out, fill(EventReport{
				Name:   name,
				Reason: reasonNotInTable,
			}))
		}
	}
	return out
}

// snapshot flattens counters and gauges. A gather error yields whatever
// families were returned alongside it.
func snapshot(g prometheus.Gatherer) []MetricSample {
	families, _ := g.Gather()

	var out []MetricSample
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			value, ok := sampleValue(mf.GetType(), m)
			if !ok {
				continue
			}
			s := MetricSample{Name: mf.GetName(), Value: value}
			if len(m.GetLabel()) > 0 {
				s.Labels = make(map[string]string, len(m.GetLabel()))
				for _, lp := range m.GetLabel() {
					s.Labels[lp.GetName()] = lp.GetValue()
				}
			}
			out = append(out, s)
		}
	}
	return out
}

func sampleValue(t dto.MetricType, m *dto.Metric) (float64, bool) {
	switch t {
	case dto.MetricType_COUNTER:
		return m.GetCounter().GetValue(), true
	case dto.MetricType_GAUGE:
		return m.GetGauge().GetValue(), true
	case dto.MetricType_UNTYPED:
		return m.GetUntyped().GetValue(), true
	default:
		return 0, false
	}
}
