package main

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"

	"github.com/dshills/hostcompat/internal/diagnostics"
	"github.com/dshills/hostcompat/internal/environment"
	"github.com/dshills/hostcompat/internal/hook"
)

func newTablesCmd(c *cli) *cobra.Command {
	var (
		generation int
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "tables",
		Short: "Show how the canonical event table resolves for a host generation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tables, err := c.tables()
			if err != nil {
				return err
			}
			table := hook.TableFromConfig(tables.Events)
			if err := table.Validate(); err != nil {
				return err
			}

			gen := generation
			if gen <= 0 {
				gen = tables.Environment.LatestGeneration
			}
			if gen <= 0 {
				gen = environment.DefaultLatestGeneration
			}
			return writeBindings(cmd.OutOrStdout(), gen, table.Resolve(gen), asJSON)
		},
	}

	cmd.Flags().IntVarP(&generation, "generation", "g", 0, "host generation (default: latest known)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print bindings as JSON")
	return cmd
}

func writeBindings(w io.Writer, gen int, bindings []hook.Binding, asJSON bool) error {
	if !asJSON {
		return diagnostics.RenderBindings(w, gen, bindings)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Generation int            `json:"generation"`
		Bindings   []hook.Binding `json:"bindings"`
	}{gen, bindings})
}
