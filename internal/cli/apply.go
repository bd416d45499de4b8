package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/modelcore/internal/metrics"
	"github.com/roach88/modelcore/internal/project"
	"github.com/roach88/modelcore/internal/store"
)

// ErrCodeApplyFailed reports that at least one plugin failed.
const ErrCodeApplyFailed = "E010"

// ApplyOptions holds flags for the apply command.
type ApplyOptions struct {
	*RootOptions
	Database    string
	MetricsFile string

	// IDs allows overriding the application ID generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	IDs store.IDGenerator
}

// NewApplyCommand creates the apply command.
func NewApplyCommand(rootOpts *RootOptions) *cobra.Command {
	return newApplyCommand(&ApplyOptions{RootOptions: rootOpts})
}

func newApplyCommand(opts *ApplyOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply <project.yaml>",
		Short: "Apply software types to a project's plugins",
		Long: `Compile the project's schemas, realize every plugin property and apply
each plugin's software type conventions.

With --db every application is recorded in a SQLite history database
(created if it doesn't exist). With --metrics-file the counters are
written in the Prometheus text format.

Exit codes:
  0 - Every plugin applied
  1 - At least one plugin failed
  2 - Command error (invalid project, schema errors, database errors)

Examples:
  modelcore apply ./project.yaml
  modelcore apply --db ./history.db --metrics-file ./modelcore.prom ./project.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite history database")
	cmd.Flags().StringVar(&opts.MetricsFile, "metrics-file", "", "write Prometheus metrics to this file")

	return cmd
}

func runApply(opts *ApplyOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}

	p, err := project.Load(path)
	if err != nil {
		return commandError(formatter, &LoadError{Code: ErrCodeProject, Message: err.Error()})
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	runOpts := project.Options{Metrics: metrics.New(), IDs: opts.IDs}
	if opts.Database != "" {
		st, err := store.Open(opts.Database)
		if err != nil {
			return commandError(formatter, &LoadError{Code: ErrCodeStore, Message: err.Error()})
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				slog.Error("error closing database", "error", closeErr)
			}
		}()
		runOpts.Store = st
	}

	slog.Info("applying project", "project", p.Name, "plugins", len(p.Plugins))
	results, err := project.Run(ctx, p, runOpts)
	if err != nil {
		return commandError(formatter, &LoadError{Code: ErrCodeGeneric, Message: err.Error()})
	}

	if opts.MetricsFile != "" {
		if err := runOpts.Metrics.WriteTextfile(opts.MetricsFile); err != nil {
			return commandError(formatter, &LoadError{Code: ErrCodeWriteFailed, Message: fmt.Sprintf("writing metrics file: %v", err)})
		}
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}

	if err := outputApplyResults(formatter, p.Name, results, failed); err != nil {
		return err
	}
	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d plugin(s) failed", failed, len(results)))
	}
	return nil
}

func outputApplyResults(formatter *OutputFormatter, name string, results []project.PluginResult, failed int) error {
	if !formatter.IsJSON() {
		return project.RenderText(formatter.Writer, name, results)
	}

	var buf bytes.Buffer
	if err := project.RenderJSON(&buf, name, results); err != nil {
		return err
	}
	report := json.RawMessage(bytes.TrimSpace(buf.Bytes()))
	if failed == 0 {
		return formatter.Success(report)
	}
	return formatter.Failure(report, CLIError{
		Code:    ErrCodeApplyFailed,
		Message: fmt.Sprintf("%d of %d plugin(s) failed", failed, len(results)),
	})
}
