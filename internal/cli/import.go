package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/provq/provq/internal/fixture"
	"github.com/provq/provq/internal/store"
)

// ImportOptions holds flags for the import command.
type ImportOptions struct {
	*RootOptions
	Database string
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "import <fixture-file>",
		Short: "Load a YAML graph document into the database",
		Long: `Load a YAML graph document (users, computers, nodes, links, groups,
comments, logs, authinfo records) into the provenance database. The
whole document lands in one transaction or not at all; inserts are
idempotent on natural keys.

Example:
  provq import graphs/campaign-2025.yaml --db ./provq.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", defaultDBPath(), "path to the SQLite database")

	return cmd
}

// importResult is the JSON payload of a successful import.
type importResult struct {
	Users     int `json:"users"`
	Computers int `json:"computers"`
	Nodes     int `json:"nodes"`
	Groups    int `json:"groups"`
}

func runImport(opts *ImportOptions, fixturePath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	data, err := os.ReadFile(fixturePath)
	if err != nil {
		formatter.Error(ErrCodeNotFound, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read fixture", err)
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

	g, err := fixture.Load(ctx, st, data)
	if err != nil {
		formatter.Error(ErrCodeLoadFailed, err.Error(), nil)
		return WrapExitError(ExitFailure, "failed to import fixture", err)
	}

	result := importResult{
		Users:     len(g.Users),
		Computers: len(g.Computers),
		Nodes:     len(g.Nodes),
		Groups:    len(g.Groups),
	}
	if opts.Format == "json" {
		return formatter.Success(result)
	}
	return formatter.Success(fmt.Sprintf("Imported %d node(s), %d group(s), %d user(s), %d computer(s)",
		result.Nodes, result.Groups, result.Users, result.Computers))
}
