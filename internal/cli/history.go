package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/modelcore/internal/ir"
	"github.com/roach88/modelcore/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database     string
	Project      string
	PluginType   string
	SoftwareType string
	Outcome      string
	Limit        int
	Verify       bool
}

// HistoryResult is the JSON payload of the history command.
type HistoryResult struct {
	Applications []ir.Application `json:"applications"`
	// Mismatched lists IDs whose stored hash no longer matches the snapshot.
	// Only set with --verify.
	Mismatched []string `json:"mismatched,omitempty"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded software type applications",
		Long: `List application records from a history database in sequence order.

With --verify every snapshot is re-hashed and compared with the stored
hash.

Exit codes:
  0 - Success
  1 - --verify found a mismatched snapshot
  2 - Command error (database not found, etc.)

Examples:
  modelcore history --db ./history.db
  modelcore history --db ./history.db --plugin LibraryPlugin --outcome failed`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite history database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Project, "project", "", "only records for this project")
	cmd.Flags().StringVar(&opts.PluginType, "plugin", "", "only records for this plugin type")
	cmd.Flags().StringVar(&opts.SoftwareType, "software-type", "", "only records for this software type")
	cmd.Flags().StringVar(&opts.Outcome, "outcome", "", "only records with this outcome (applied|failed)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of records (0 = all)")
	cmd.Flags().BoolVar(&opts.Verify, "verify", false, "re-hash snapshots and report mismatches")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}

	switch opts.Outcome {
	case "", ir.OutcomeApplied, ir.OutcomeFailed:
	default:
		return commandError(formatter, &LoadError{
			Code:    ErrCodeGeneric,
			Message: fmt.Sprintf("invalid outcome %q: must be %s or %s", opts.Outcome, ir.OutcomeApplied, ir.OutcomeFailed),
		})
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// The driver would create a missing database.
	if _, err := os.Stat(opts.Database); err != nil {
		return commandError(formatter, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("database not found: %s", opts.Database)})
	}

	st, err := store.OpenReadOnly(opts.Database)
	if err != nil {
		return commandError(formatter, &LoadError{Code: ErrCodeStore, Message: err.Error()})
	}
	defer st.Close()

	apps, err := st.ReadApplications(ctx, store.Filter{
		Project:      opts.Project,
		PluginType:   opts.PluginType,
		SoftwareType: opts.SoftwareType,
		Outcome:      opts.Outcome,
		Limit:        opts.Limit,
	})
	if err != nil {
		return commandError(formatter, &LoadError{Code: ErrCodeStore, Message: err.Error()})
	}

	result := HistoryResult{Applications: apps}
	if opts.Verify {
		result.Mismatched, err = verifySnapshots(apps)
		if err != nil {
			return commandError(formatter, &LoadError{Code: ErrCodeStore, Message: err.Error()})
		}
	}

	if formatter.IsJSON() {
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else {
		outputHistoryText(formatter, result, opts.Verify)
	}

	if len(result.Mismatched) > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d snapshot(s) do not match their hash", len(result.Mismatched)))
	}
	return nil
}

func verifySnapshots(apps []ir.Application) ([]string, error) {
	var mismatched []string
	for _, app := range apps {
		hash, err := ir.SnapshotHash(app.Snapshot)
		if err != nil {
			return nil, fmt.Errorf("application %s: %w", app.ID, err)
		}
		if hash != app.SnapshotHash {
			mismatched = append(mismatched, app.ID)
		}
	}
	return mismatched, nil
}

func outputHistoryText(formatter *OutputFormatter, result HistoryResult, verify bool) {
	w := formatter.Writer
	if len(result.Applications) == 0 {
		fmt.Fprintln(w, "No applications recorded")
		return
	}
	for _, app := range result.Applications {
		fmt.Fprintf(w, "#%d %s %s/%s (%s): %s\n",
			app.Seq, app.ID, app.Project, app.PluginType, app.SoftwareType, app.Outcome)
		if app.Message != "" {
			fmt.Fprintf(w, "  %s\n", app.Message)
		}
		for _, p := range app.Problems {
			fmt.Fprintf(w, "    - %s\n", p)
		}
	}
	if verify {
		if len(result.Mismatched) == 0 {
			fmt.Fprintf(w, "\n✓ %d snapshot(s) verified\n", len(result.Applications))
			return
		}
		fmt.Fprintf(w, "\n✗ %d snapshot(s) mismatched:\n", len(result.Mismatched))
		for _, id := range result.Mismatched {
			fmt.Fprintf(w, "  %s\n", id)
		}
	}
}
