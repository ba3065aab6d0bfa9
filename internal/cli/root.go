package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/frp/internal/sim"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
}

// NewRootCommand creates the root command for the frp CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "frp",
		Short: "frp - pull-based reactive scenes",
		Long: `Run scenes of properties whose values are computed on demand.

A scene declares global and per-entity properties backed by constant,
alias or storage behaviors. The runner advances a clock and samples the
properties every tick; runs can be recorded to SQLite and traced later.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if _, err := sim.ParseFormat(opts.Format); err != nil {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewRunsCommand(opts))
	cmd.AddCommand(NewTraceCommand(opts))

	return cmd
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{string(sim.FormatText), string(sim.FormatJSON)}
