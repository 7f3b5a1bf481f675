package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/provq/provq/internal/querydef"
)

// NewSQLCommand creates the sql command.
func NewSQLCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sql <querydef-file>",
		Short: "Print the compiled SQL for a query definition",
		Long: `Compile a stored query definition and print the resulting SQL
statement and its parameters without touching a database.

Example:
  provq sql queries/provenance-pair.cue`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSQL(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

// sqlResult is the JSON payload of a successful compilation.
type sqlResult struct {
	Definition string `json:"definition"`
	SQL        string `json:"sql"`
	Args       []any  `json:"args"`
}

func runSQL(opts *RootOptions, defPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	def, err := querydef.Load(defPath)
	if err != nil {
		formatter.Error(ErrCodeLoadFailed, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load definition", err)
	}

	// Compile-only builder: no store needed to render SQL.
	b, err := def.Build(nil)
	if err != nil {
		formatter.Error(ErrCodeCompile, err.Error(), nil)
		return WrapExitError(ExitFailure, "failed to build query", err)
	}
	compiled, err := b.Compile()
	if err != nil {
		formatter.Error(ErrCodeCompile, err.Error(), nil)
		return WrapExitError(ExitFailure, "failed to compile query", err)
	}

	if opts.Format == "json" {
		args := compiled.Args
		if args == nil {
			args = []any{}
		}
		return formatter.Success(sqlResult{Definition: def.Name, SQL: compiled.SQL, Args: args})
	}

	fmt.Fprintln(cmd.OutOrStdout(), compiled.SQL)
	for i, arg := range compiled.Args {
		fmt.Fprintf(cmd.OutOrStdout(), "-- ?%d = %v\n", i+1, arg)
	}
	return nil
}
