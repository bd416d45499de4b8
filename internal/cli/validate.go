package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/modelcore/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid         bool       `json:"valid"`
	Types         int        `json:"types"`
	SoftwareTypes int        `json:"software_types"`
	Errors        []CLIError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <schema-dir>",
		Short: "Validate schemas without writing output",
		Long: `Validate .cue and .hcl schema files.

Every declaration is compiled and checked: type names, kinds, property
types, software type models and conventions. References between types
must resolve within the directory.

Exit codes:
  0 - All schemas valid
  1 - Validation errors found
  2 - Command error (directory not found, no schema files)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, dir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}

	result, loadErrs := LoadSchemas(dir)
	if result == nil {
		return commandError(formatter, loadErrs[0])
	}
	slog.Debug("schema files found", "dir", dir, "cue", len(result.Files.CUE), "hcl", len(result.Files.HCL))

	var errs []CLIError
	for _, le := range loadErrs {
		errs = append(errs, le.CLIError())
	}
	// Bundle checks only make sense once everything compiled.
	if len(errs) == 0 {
		for _, ve := range compiler.CheckBundle(result.Bundle) {
			errs = append(errs, CLIError{Code: ve.Code, Message: ve.Field + ": " + ve.Message})
		}
	}

	vr := ValidationResult{
		Valid:         len(errs) == 0,
		Types:         len(result.Bundle.Schemas),
		SoftwareTypes: len(result.Bundle.SoftwareTypes),
		Errors:        errs,
	}
	if vr.Valid {
		if formatter.IsJSON() {
			return formatter.Success(vr)
		}
		fmt.Fprintf(formatter.Writer, "✓ All schemas valid (%d type(s), %d software type(s))\n", vr.Types, vr.SoftwareTypes)
		return nil
	}

	if formatter.IsJSON() {
		if err := formatter.Failure(vr, errs[0]); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(formatter.Writer, "✗ Validation failed")
		fmt.Fprintln(formatter.Writer)
		for _, e := range errs {
			formatter.printError(e)
		}
	}
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}

// commandError reports an error that stopped the command before any work
// was done.
func commandError(formatter *OutputFormatter, le *LoadError) error {
	_ = formatter.Error(le.CLIError())
	return NewExitError(ExitCommandError, le.Error())
}
