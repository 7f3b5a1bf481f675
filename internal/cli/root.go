package cli

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// DefaultDBPath is the database path used when neither --db nor the
// PROVQ_DB environment variable is set.
const DefaultDBPath = "provq.db"

// defaultDBPath resolves the database default: PROVQ_DB wins over the
// built-in name.
func defaultDBPath() string {
	if p := os.Getenv("PROVQ_DB"); p != "" {
		return p
	}
	return DefaultDBPath
}

// NewRootCommand creates the root command for the provq CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "provq",
		Short: "provq - provenance graph queries",
		Long:  "Declarative path queries over a typed provenance graph, compiled to SQLite.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			configureLogging(cmd, opts)
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	// Add subcommands
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewSQLCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))
	cmd.AddCommand(NewSeedCommand(opts))

	return cmd
}

// configureLogging wires --verbose to the global zerolog level. Text
// mode logs through a console writer on stderr; JSON mode keeps the
// structured form so stdout stays machine-readable either way.
func configureLogging(cmd *cobra.Command, opts *RootOptions) {
	level := zerolog.WarnLevel
	if opts.Verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	if opts.Format == "text" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()})
	} else {
		log.Logger = log.Output(cmd.ErrOrStderr())
	}
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
