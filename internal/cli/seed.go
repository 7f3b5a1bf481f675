package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/provq/provq/internal/fixture"
	"github.com/provq/provq/internal/store"
)

// SeedOptions holds flags for the seed command.
type SeedOptions struct {
	*RootOptions
	Database string
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SeedOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the demo provenance graph",
		Long: `Load the built-in demo graph into the database: a small arithmetic
workflow with inputs, two calculations, groups, comments and logs.
Meant for a fresh database; node uuids are random, so seeding twice
duplicates the nodes.

Example:
  provq seed --db ./demo.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", defaultDBPath(), "path to the SQLite database")

	return cmd
}

func runSeed(opts *SeedOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	g, err := fixture.SeedDemo(ctx, st)
	if err != nil {
		formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitFailure, "failed to seed demo graph", err)
	}

	if opts.Format == "json" {
		return formatter.Success(importResult{
			Users:     len(g.Users),
			Computers: len(g.Computers),
			Nodes:     len(g.Nodes),
			Groups:    len(g.Groups),
		})
	}
	return formatter.Success(fmt.Sprintf("Seeded demo graph: %d node(s), %d group(s) in %s",
		len(g.Nodes), len(g.Groups), opts.Database))
}
