// Package app wires the compatibility core together and drives its
// lifecycle.
//
// A Core is booted through three checkpoints, each run exactly once and in
// order:
//
//  1. Bootstrap detects and caches the environment, installs the
//     deprecation filter and applies bootstrap patches.
//  2. PreActivate applies pre-activation patches and establishes the hook
//     bridge.
//  3. PostActivate applies post-activation patches once the host is ready.
//
// Feature modules register patches through Patches before Bootstrap and
// subscribe to canonical events through Listeners at any time.
package app

import (
	"context"
	"regexp"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/dshills/hostcompat/internal/config"
	"github.com/dshills/hostcompat/internal/deprecation"
	"github.com/dshills/hostcompat/internal/diagnostics"
	"github.com/dshills/hostcompat/internal/environment"
	"github.com/dshills/hostcompat/internal/event"
	"github.com/dshills/hostcompat/internal/hook"
	"github.com/dshills/hostcompat/internal/host"
	"github.com/dshills/hostcompat/internal/metrics"
	"github.com/dshills/hostcompat/internal/patch"
)

// Stage is the lifecycle position of a Core.
type Stage int

// Lifecycle positions, in boot order.
const (
	StageNew Stage = iota
	StageBootstrapped
	StagePreActivated
	StageActive
)

// String returns a human-readable stage name.
func (s Stage) String() string {
	switch s {
	case StageNew:
		return "new"
	case StageBootstrapped:
		return "bootstrapped"
	case StagePreActivated:
		return "pre-activated"
	case StageActive:
		return "active"
	default:
		return "unknown"
	}
}

// Option configures a Core.
type Option func(*Core)

// WithLogger sets the root logger handed to every component.
func WithLogger(l *zap.Logger) Option {
	return func(c *Core) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithRegistry sets the Prometheus registry the core's collectors are
// registered on. The default is a fresh registry per core.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(c *Core) {
		if reg != nil {
			c.registry = reg
		}
	}
}

// Core is one boot of the compatibility core.
type Core struct {
	host   host.Host
	tables *config.Tables

	logger   *zap.Logger // root logger handed to components
	log      *zap.Logger
	registry *prometheus.Registry
	metrics  *metrics.Collectors

	detector  *environment.Detector
	patches   *patch.Registry
	listeners *event.Registry
	bridge    *hook.Bridge
	patterns  []*regexp.Regexp

	// mu is held for the whole of each checkpoint. Patches and handlers
	// must not call checkpoint methods.
	mu     sync.Mutex
	stage  Stage
	env    environment.Environment
	filter *deprecation.Handle
}

// New builds a core over h. A nil tables value uses the embedded defaults.
// Table-driven patches are registered immediately; nothing touches the host
// until Bootstrap.
func New(h host.Host, tables *config.Tables, opts ...Option) (*Core, error) {
	if h == nil {
		return nil, ErrNilHost
	}
	if tables == nil {
		def, err := config.DefaultTables()
		if err != nil {
			return nil, &ComponentError{Component: "config", Action: "load default tables", Err: err}
		}
		tables = def
	}

	c := &Core{
		host:   h,
		tables: tables,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.registry == nil {
		c.registry = prometheus.NewRegistry()
	}
	c.log = c.logger.Named("app")

	m, err := metrics.New(c.registry)
	if err != nil {
		return nil, &ComponentError{Component: "metrics", Action: "register collectors", Err: err}
	}
	c.metrics = m

	envSpec := tables.Environment
	c.detector = environment.NewDetector(h,
		environment.WithOldestGeneration(envSpec.OldestGeneration),
		environment.WithLatestGeneration(envSpec.LatestGeneration),
		environment.WithNewMajor(envSpec.NewMajor),
		environment.WithCompanions(envSpec.Companions...),
		environment.WithProbes(envSpec.Probes...),
		environment.WithLogger(c.logger),
	)

	c.patterns, err = deprecation.Compile(tables.Deprecation.Patterns)
	if err != nil {
		return nil, &ComponentError{Component: "deprecation", Action: "compile patterns", Err: err}
	}

	table := hook.TableFromConfig(tables.Events)
	if err := table.Validate(); err != nil {
		return nil, &ComponentError{Component: "hook", Action: "validate event table", Err: err}
	}

	c.patches = patch.NewRegistry(patch.WithLogger(c.logger), patch.WithMetrics(m))
	if err := patch.RegisterTable(c.patches, tables.Patches, h); err != nil {
		return nil, &ComponentError{Component: "patch", Action: "register table patches", Err: err}
	}

	c.listeners = event.NewRegistry(event.WithLogger(c.logger), event.WithMetrics(m))
	c.bridge = hook.NewBridge(h, c.listeners, table, hook.WithLogger(c.logger), hook.WithMetrics(m))
	return c, nil
}

// advance checks that the core is at want. The caller holds c.mu.
func (c *Core) advance(ctx context.Context, want Stage) error {
	if c.stage != want {
		return &StageError{Want: want, Current: c.stage}
	}
	return ctx.Err()
}

// Bootstrap runs the first checkpoint.
func (c *Core) Bootstrap(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.advance(ctx, StageNew); err != nil {
		return err
	}

	c.env = c.detector.Detect()
	c.filter = deprecation.Install(c.host, c.patterns,
		deprecation.WithLogger(c.logger),
		deprecation.WithMetrics(c.metrics),
	)
	c.patches.ApplyStage(c.env, patch.StageBootstrap)

	c.stage = StageBootstrapped
	c.log.Info("bootstrap complete",
		zap.Int("generation", c.env.Generation),
		zap.Int("dependency_major", c.env.DependencyMajor),
		zap.Bool("ambiguous", c.env.Ambiguous()),
	)
	return nil
}

// PreActivate runs the second checkpoint.
func (c *Core) PreActivate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.advance(ctx, StageBootstrapped); err != nil {
		return err
	}

	c.patches.ApplyStage(c.env, patch.StagePreActivation)
	if err := c.bridge.Establish(ctx, c.env); err != nil {
		return &ComponentError{Component: "hook", Action: "establish bridge", Err: err}
	}

	c.stage = StagePreActivated
	c.log.Debug("pre-activation complete")
	return nil
}

// PostActivate runs the last checkpoint.
func (c *Core) PostActivate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.advance(ctx, StagePreActivated); err != nil {
		return err
	}

	c.patches.ApplyStage(c.env, patch.StagePostActivation)

	c.stage = StageActive
	c.log.Info("core active")
	return nil
}

// Boot runs every checkpoint in order.
func (c *Core) Boot(ctx context.Context) error {
	for _, step := range []func(context.Context) error{c.Bootstrap, c.PreActivate, c.PostActivate} {
		if err := step(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Shutdown uninstalls the deprecation filter. Bridge registrations stay
// with the host, which offers no way to remove them.
func (c *Core) Shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.filter != nil {
		c.filter.Uninstall()
	}
}

// Stage returns the current lifecycle position.
func (c *Core) Stage() Stage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stage
}

// Environment returns the cached environment. ok is false before Bootstrap.
func (c *Core) Environment() (env environment.Environment, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.env, c.stage >= StageBootstrapped
}

// Listeners returns the registry feature modules subscribe to.
func (c *Core) Listeners() *event.Registry { return c.listeners }

// Patches returns the patch registry. Register feature patches before
// Bootstrap; a patch registered after its checkpoint stays pending.
func (c *Core) Patches() *patch.Registry { return c.patches }

// Bridge returns the hook bridge.
func (c *Core) Bridge() *hook.Bridge { return c.bridge }

// Gatherer exposes the core's metrics.
func (c *Core) Gatherer() prometheus.Gatherer { return c.registry }

// Diagnostics collects a report of the core's current state.
func (c *Core) Diagnostics() diagnostics.Report {
	c.mu.Lock()
	env, filter := c.env, c.filter
	c.mu.Unlock()

	return diagnostics.Collect(diagnostics.Sources{
		Environment: env,
		Patches:     c.patches,
		Bridge:      c.bridge,
		Listeners:   c.listeners,
		Deprecation: filter,
		Gatherer:    c.registry,
	})
}
