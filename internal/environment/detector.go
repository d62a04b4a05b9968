package environment

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/dshills/hostcompat/internal/host"
)

// Default classification bounds.
const (
	DefaultOldestGeneration = 11
	DefaultLatestGeneration = 13
	DefaultNewMajor         = 4
)

// Detector reads version metadata from the host and classifies it.
type Detector struct {
	src host.Metadata

	oldest     int
	latest     int
	newMajor   int
	probes     []string
	companions []string
	logger     *zap.Logger
}

// Option configures a Detector.
type Option func(*Detector)

// WithOldestGeneration sets the oldest supported host generation, the
// fallback for missing or malformed version data.
func WithOldestGeneration(gen int) Option {
	return func(d *Detector) {
		if gen > 0 {
			d.oldest = gen
		}
	}
}

// WithLatestGeneration sets the newest host generation the tables know about.
func WithLatestGeneration(gen int) Option {
	return func(d *Detector) {
		if gen > 0 {
			d.latest = gen
		}
	}
}

// WithNewMajor sets the dependency major at which FlagNewMajor turns on.
func WithNewMajor(major int) Option {
	return func(d *Detector) {
		if major > 0 {
			d.newMajor = major
		}
	}
}

// WithProbes sets the namespace paths to probe.
func WithProbes(paths ...string) Option {
	return func(d *Detector) {
		d.probes = append(d.probes, paths...)
	}
}

// WithCompanions restricts companion detection to the given ids. Without it
// every id the host reports is recorded.
func WithCompanions(ids ...string) Option {
	return func(d *Detector) {
		d.companions = append(d.companions, ids...)
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(d *Detector) {
		if l != nil {
			d.logger = l
		}
	}
}

// NewDetector creates a detector reading from src.
func NewDetector(src host.Metadata, opts ...Option) *Detector {
	d := &Detector{
		src:      src,
		oldest:   DefaultOldestGeneration,
		latest:   DefaultLatestGeneration,
		newMajor: DefaultNewMajor,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.latest < d.oldest {
		d.latest = d.oldest
	}
	if d.src == nil {
		d.src = noMetadata{}
	}
	d.logger = d.logger.Named("environment")
	return d
}

// noMetadata stands in for a host that exposes no metadata at all.
type noMetadata struct{}

func (noMetadata) HostVersion() string { return "" }
func (noMetadata) DependencyVersion() string { return "" }
func (noMetadata) Companions() []string { return nil }
func (noMetadata) Lookup(string) (any, bool, error) { return nil, false, nil }

// Detect reads the host metadata and returns the classified Environment.
// It never panics and never fails; callers are expected to cache the result.
func (d *Detector) Detect() Environment {
	env := Environment{
		flags:      make(map[Flag]bool),
		companions: make(map[string]struct{}),
		probes:     make(map[string]Probe),
	}

	env.HostVersion = d.read("host version", d.src.HostVersion, &env)
	gen, ok := ParseMajor(env.HostVersion)
	switch {
	case !ok:
		env.notes = append(env.notes, fmt.Sprintf("host version %q unusable, assuming generation %d", env.HostVersion, d.oldest))
		gen = d.oldest
	case gen < d.oldest:
		env.notes = append(env.notes, fmt.Sprintf("host generation %d below oldest supported, assuming %d", gen, d.oldest))
		gen = d.oldest
	}
	env.Generation = gen

	env.DependencyVersion = d.read("dependency version", d.src.DependencyVersion, &env)
	if major, ok := ParseMajor(env.DependencyVersion); ok {
		env.DependencyMajor = major
	} else {
		env.notes = append(env.notes, fmt.Sprintf("dependency version %q unusable", env.DependencyVersion))
		env.flags[FlagDependencyMissing] = true
	}

	env.flags[FlagHostLegacy] = env.Generation < d.latest
	env.flags[FlagHostLatest] = env.Generation >= d.latest
	env.flags[FlagNewMajor] = env.DependencyMajor >= d.newMajor

	d.detectCompanions(&env)
	for _, path := range d.probes {
		env.probes[path] = d.probe(path)
	}

	for _, note := range env.notes {
		d.logger.Info("detection fallback", zap.String("note", note))
	}
	d.logger.Debug("environment detected",
		zap.Int("generation", env.Generation),
		zap.Int("dependency_major", env.DependencyMajor),
		zap.Strings("companions", env.Companions()),
	)
	return env
}

// read calls a metadata accessor, converting a panic into an empty value.
func (d *Detector) read(what string, fn func() string, env *Environment) (v string) {
	defer func() {
		if r := recover(); r != nil {
			env.notes = append(env.notes, fmt.Sprintf("reading %s panicked: %v", what, r))
			v = ""
		}
	}()
	return fn()
}

func (d *Detector) detectCompanions(env *Environment) {
	var reported []string
	func() {
		defer func() {
			if r := recover(); r != nil {
				env.notes = append(env.notes, fmt.Sprintf("reading companions panicked: %v", r))
			}
		}()
		reported = d.src.Companions()
	}()

	if len(d.companions) == 0 {
		for _, id := range reported {
			env.companions[id] = struct{}{}
		}
		return
	}

	watched := make(map[string]struct{}, len(d.companions))
	for _, id := range d.companions {
		watched[id] = struct{}{}
	}
	for _, id := range reported {
		if _, ok := watched[id]; ok {
			env.companions[id] = struct{}{}
		}
	}
}

// probe classifies a namespace path. Lookup errors and panics yield unknown.
func (d *Detector) probe(path string) (p Probe) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Debug("probe panicked", zap.String("path", path), zap.Any("panic", r))
			p = ProbeUnknown
		}
	}()

	_, found, err := d.src.Lookup(path)
	switch {
	case err != nil:
		d.logger.Debug("probe failed", zap.String("path", path), zap.Error(err))
		return ProbeUnknown
	case found:
		return ProbePresent
	default:
		return ProbeAbsent
	}
}
