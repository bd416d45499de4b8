package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/modelcore/internal/compiler"
	"github.com/roach88/modelcore/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompilationResult is the IR written by compile.
type CompilationResult struct {
	Types         []*ir.Schema           `json:"types"`
	SoftwareTypes []*ir.SoftwareTypeSpec `json:"software_types"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <schema-dir>",
		Short: "Compile schemas to IR",
		Long: `Compile .cue and .hcl schema files to the JSON form of the model IR.

All compile and validation errors are reported, not just the first.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, dir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}

	result, loadErrs := LoadSchemas(dir)
	if result == nil {
		return commandError(formatter, loadErrs[0])
	}

	var errs []CLIError
	for _, le := range loadErrs {
		errs = append(errs, le.CLIError())
	}
	if len(errs) == 0 {
		for _, ve := range compiler.CheckBundle(result.Bundle) {
			errs = append(errs, CLIError{Code: ve.Code, Message: ve.Field + ": " + ve.Message})
		}
	}
	if len(errs) > 0 {
		return outputCompileErrors(formatter, errs)
	}

	compiled := &CompilationResult{
		Types:         result.Bundle.Schemas,
		SoftwareTypes: result.Bundle.SoftwareTypes,
	}
	for _, s := range compiled.Types {
		slog.Debug("compiled type", "type", s.Type.DisplayName(), "kind", s.Kind)
	}

	if opts.Output != "" {
		if err := writeIRToFile(compiled, opts.Output); err != nil {
			return commandError(formatter, &LoadError{Code: ErrCodeWriteFailed, Message: fmt.Sprintf("writing output file: %v", err)})
		}
	}

	if formatter.IsJSON() {
		return formatter.Success(compiled)
	}

	fmt.Fprintf(formatter.Writer, "✓ Compiled %d type(s), %d software type(s)\n\n",
		len(compiled.Types), len(compiled.SoftwareTypes))
	if len(compiled.Types) > 0 {
		fmt.Fprintln(formatter.Writer, "Types:")
		for _, s := range compiled.Types {
			switch s.Kind {
			case ir.KindCollection:
				fmt.Fprintf(formatter.Writer, "  %s: collection of %s\n", s.Type.DisplayName(), s.ElementType.DisplayName())
			default:
				fmt.Fprintf(formatter.Writer, "  %s: %d property(ies)\n", s.Type.DisplayName(), len(s.Properties))
			}
		}
		fmt.Fprintln(formatter.Writer)
	}
	if len(compiled.SoftwareTypes) > 0 {
		fmt.Fprintln(formatter.Writer, "Software types:")
		for _, st := range compiled.SoftwareTypes {
			fmt.Fprintf(formatter.Writer, "  %s: %s, %d convention(s)\n",
				st.Name, st.Model.DisplayName(), len(st.Conventions))
		}
		fmt.Fprintln(formatter.Writer)
	}
	if opts.Output != "" {
		fmt.Fprintf(formatter.Writer, "Wrote IR to %s\n", opts.Output)
	}
	return nil
}

// outputCompileErrors outputs every compilation error.
func outputCompileErrors(formatter *OutputFormatter, errs []CLIError) error {
	if formatter.IsJSON() {
		if err := formatter.Failure(errs, errs[0]); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(formatter.Writer, "✗ Compilation failed")
		fmt.Fprintln(formatter.Writer)
		for _, e := range errs {
			formatter.printError(e)
		}
	}
	return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
}

// writeIRToFile writes the compilation result as indented JSON.
func writeIRToFile(result *CompilationResult, filename string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling IR: %w", err)
	}
	if err := os.WriteFile(filename, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}
