package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/provq/provq/internal/querydef"
	"github.com/provq/provq/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	Limit    int64
	Offset   int64
	Distinct bool
	Count    bool
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <querydef-file>",
		Short: "Execute a stored query definition",
		Long: `Execute a stored query definition against the provenance database.

The definition file (.yaml, .json or .cue) is validated, compiled to SQL
and executed; result rows print one per line, each cell tab-separated.
--limit, --offset and --distinct override the definition's own settings.

Example:
  provq run queries/int-values.yaml --db ./provq.db
  provq run queries/provenance-pair.cue --count`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", defaultDBPath(), "path to the SQLite database")
	cmd.Flags().Int64Var(&opts.Limit, "limit", -1, "cap the number of result rows")
	cmd.Flags().Int64Var(&opts.Offset, "offset", -1, "skip the first n result rows")
	cmd.Flags().BoolVar(&opts.Distinct, "distinct", false, "return distinct rows only")
	cmd.Flags().BoolVar(&opts.Count, "count", false, "print the row count instead of the rows")

	return cmd
}

// runResult is the JSON payload of a successful run.
type runResult struct {
	Definition string  `json:"definition"`
	Count      *int64  `json:"count,omitempty"`
	Rows       [][]any `json:"rows,omitempty"`
}

func runQuery(opts *RunOptions, defPath string, cmd *cobra.Command) error {
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
	formatter.VerboseLog("Loaded definition %q from %s", def.Name, defPath)

	st, err := store.Open(opts.Database)
	if err != nil {
		formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	b, err := def.Build(st)
	if err != nil {
		formatter.Error(ErrCodeCompile, err.Error(), nil)
		return WrapExitError(ExitFailure, "failed to build query", err)
	}
	b.Debug(opts.Verbose)

	// Flag overrides. -1 means "not given", matching the builder's
	// clear sentinel, so the definition's own limit/offset survive.
	if opts.Limit != -1 {
		if err := b.Limit(opts.Limit); err != nil {
			formatter.Error(ErrCodeInvalid, err.Error(), nil)
			return WrapExitError(ExitCommandError, "invalid limit", err)
		}
	}
	if opts.Offset != -1 {
		if err := b.Offset(opts.Offset); err != nil {
			formatter.Error(ErrCodeInvalid, err.Error(), nil)
			return WrapExitError(ExitCommandError, "invalid offset", err)
		}
	}
	if opts.Distinct {
		b.Distinct()
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if opts.Count {
		n, err := b.Count(ctx)
		if err != nil {
			formatter.Error(ErrCodeExecute, err.Error(), nil)
			return WrapExitError(ExitFailure, "query failed", err)
		}
		if opts.Format == "json" {
			return formatter.Success(runResult{Definition: def.Name, Count: &n})
		}
		fmt.Fprintln(cmd.OutOrStdout(), n)
		return nil
	}

	rows, err := b.All(ctx)
	if err != nil {
		formatter.Error(ErrCodeExecute, err.Error(), nil)
		return WrapExitError(ExitFailure, "query failed", err)
	}

	if opts.Format == "json" {
		return formatter.Success(runResult{Definition: def.Name, Rows: rows})
	}
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			cells[i] = formatCell(cell)
		}
		fmt.Fprintln(cmd.OutOrStdout(), strings.Join(cells, "\t"))
	}
	formatter.VerboseLog("%d row(s)", len(rows))
	return nil
}

// formatCell renders one result cell for text output.
func formatCell(v any) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprintf("%v", v)
}
