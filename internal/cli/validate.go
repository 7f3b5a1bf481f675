package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/provq/provq/internal/querydef"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid      bool   `json:"valid"`
	Definition string `json:"definition,omitempty"`
	Hash       string `json:"hash,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <querydef-file>",
		Short: "Validate a query definition without executing it",
		Long: `Validate a stored query definition: CUE schema unification plus the
query description's structural checks. No database is touched and no
SQL is compiled.

Example:
  provq validate queries/int-values.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, defPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	def, err := querydef.Load(defPath)
	if err != nil {
		var loadErr *querydef.LoadError
		code := ErrCodeInvalid
		if errors.As(err, &loadErr) && loadErr.Code == querydef.ErrCodeRead {
			code = ErrCodeNotFound
		}
		formatter.Error(code, err.Error(), nil)
		exit := ExitFailure
		if code == ErrCodeNotFound {
			exit = ExitCommandError
		}
		return WrapExitError(exit, "validation failed", err)
	}

	hash, err := def.Hash()
	if err != nil {
		formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitFailure, "hashing failed", err)
	}

	if opts.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Definition: def.Name, Hash: hash})
	}
	formatter.VerboseLog("Definition hash: %s", hash)
	return formatter.Success("Definition " + def.Name + " is valid")
}
