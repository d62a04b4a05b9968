package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/hostcompat/internal/app"
	"github.com/dshills/hostcompat/internal/config"
)

// cli is the state shared by every subcommand once flags are parsed.
type cli struct {
	configPath string

	settings config.Settings
	logger   *zap.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{
		settings: config.DefaultSettings(),
		logger:   zap.NewNop(),
	}

	root := &cobra.Command{
		Use:   "hostcompat",
		Short: "Exercise the host compatibility core against scripted hosts",
		Long: `hostcompat boots the compatibility core (environment detection, patches,
the canonical event bridge and the deprecation filter) against a host
described by a Lua script, then reports what happened.

Settings come from, in increasing precedence: built-in defaults, the file
given with --config, HOSTCOMPAT_* environment variables and flags.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
		PersistentPostRun: func(*cobra.Command, []string) { _ = c.logger.Sync() },
	}

	def := config.DefaultSettings()
	pf := root.PersistentFlags()
	pf.StringVar(&c.configPath, "config", "", "settings file (toml, yaml or json)")
	pf.String("log-level", def.Log.Level, "log level (debug, info, warn, error)")
	pf.String("log-format", def.Log.Format, "log format (console, json)")
	pf.String("tables", def.Tables, "event and patch tables file (default: embedded)")

	root.AddCommand(newRunCmd(c), newTablesCmd(c), newVersionCmd())
	return root
}

// setup resolves settings and builds the logger. Logs go to stderr so
// reports on stdout stay machine-readable.
func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	s, err := config.LoadSettings(c.configPath, cmd.Flags())
	if err != nil {
		return err
	}
	logger, err := app.NewLogger(s.Log.Level, s.Log.Format, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	c.settings = s
	c.logger = logger
	c.logger.Debug("settings loaded",
		zap.String("config", c.configPath),
		zap.String("tables", s.Tables),
		zap.Duration("timeout", s.Scenario.Timeout),
	)
	return nil
}

// tables loads the configured tables, or the embedded defaults.
func (c *cli) tables() (*config.Tables, error) {
	t, err := config.LoadTables(c.settings.Tables)
	if err != nil {
		return nil, fmt.Errorf("loading tables: %w", err)
	}
	return t, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "hostcompat %s\n", version)
			fmt.Fprintf(cmd.OutOrStdout(), "Commit: %s\n", commit)
			fmt.Fprintf(cmd.OutOrStdout(), "Built: %s\n", date)
		},
	}
}
