package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/hostcompat/internal/app"
	"github.com/dshills/hostcompat/internal/config"
	"github.com/dshills/hostcompat/internal/diagnostics"
	"github.com/dshills/hostcompat/internal/event"
	"github.com/dshills/hostcompat/internal/host/luahost"
	"github.com/dshills/hostcompat/internal/watch"
)

// traceLabel labels the subscriptions the run command adds to every
// canonical event.
const traceLabel = "hostcompat.trace"

type runOptions struct {
	json  bool
	watch bool
}

func newRunCmd(c *cli) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run <scenario.lua>",
		Short: "Boot the core against a scripted host and print diagnostics",
		Long: `run loads a Lua script describing the host, boots the compatibility core
against it, calls the script's scenario function if it defines one and
prints the resulting diagnostics report.

With --watch the script (and the tables file, when set) is watched and the
whole run repeats after every change until interrupted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.watch {
				return c.watchScenario(cmd.Context(), args[0], opts, cmd.OutOrStdout())
			}
			return c.runScenario(cmd.Context(), args[0], opts, cmd.OutOrStdout())
		},
	}

	def := config.DefaultSettings()
	f := cmd.Flags()
	f.BoolVar(&opts.json, "json", false, "print the report as JSON")
	f.BoolVar(&opts.watch, "watch", false, "re-run when the scenario or tables change")
	f.Duration("timeout", def.Scenario.Timeout, "limit on script execution per run (0 disables)")
	f.Duration("debounce", def.Watch.Debounce, "quiet period before a watched change re-runs")
	return cmd
}

// runScenario performs one boot of the core against the script at path.
func (c *cli) runScenario(ctx context.Context, path string, opts runOptions, w io.Writer) error {
	tables, err := c.tables()
	if err != nil {
		return err
	}

	if c.settings.Scenario.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.settings.Scenario.Timeout)
		defer cancel()
	}

	h := luahost.New(luahost.WithLogger(c.logger))
	defer h.Close()

	if err := h.LoadFile(ctx, path); err != nil {
		return fmt.Errorf("loading scenario: %w", err)
	}

	core, err := app.New(h, tables, app.WithLogger(c.logger))
	if err != nil {
		return err
	}
	defer core.Shutdown()

	if err := c.trace(core.Listeners(), tables); err != nil {
		return err
	}
	if err := core.Boot(ctx); err != nil {
		return err
	}

	if err := h.RunScenario(ctx); err != nil {
		if !errors.Is(err, luahost.ErrNoScenario) {
			return fmt.Errorf("running scenario: %w", err)
		}
		c.logger.Debug("script defines no scenario", zap.String("path", path))
	}

	report := core.Diagnostics()
	if opts.json {
		return diagnostics.RenderJSON(w, report)
	}
	return diagnostics.RenderText(w, report)
}

// trace subscribes a debug logger to every canonical event in the table.
func (c *cli) trace(listeners *event.Registry, tables *config.Tables) error {
	logger := c.logger.Named("trace")
	for _, spec := range tables.Events {
		_, err := listeners.OnFunc(spec.Name, func(_ context.Context, ev event.Event) error {
			logger.Debug("canonical event",
				zap.String("event", ev.Name),
				zap.String("kind", ev.Kind),
				zap.String("native", ev.Native),
				zap.Int("args", len(ev.Args)),
			)
			return nil
		}, event.WithLabel(traceLabel))
		if err != nil {
			return err
		}
	}
	return nil
}

// watchScenario runs once, then again after every change to the script or
// the tables file, until ctx is done. Failed runs are logged, not fatal.
func (c *cli) watchScenario(ctx context.Context, path string, opts runOptions, w io.Writer) error {
	once := func() {
		if err := c.runScenario(ctx, path, opts, w); err != nil {
			c.logger.Error("scenario run failed", zap.String("path", path), zap.Error(err))
		}
	}

	paths := []string{path}
	if c.settings.Tables != "" {
		paths = append(paths, c.settings.Tables)
	}

	watcher, err := watch.New(paths, once,
		watch.WithDebounce(c.settings.Watch.Debounce),
		watch.WithLogger(c.logger),
	)
	if err != nil {
		return err
	}

	once()
	c.logger.Info("watching for changes", zap.Strings("paths", paths))
	return watcher.Run(ctx)
}
