package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/switchyard/internal/domain"
	"github.com/roach88/switchyard/internal/store"
)

// ExecutionsOptions holds flags for the executions command.
type ExecutionsOptions struct {
	*RootOptions
	RuleID  string
	EventID string
	Status  string
	Limit   int
}

// ExecutionsResult is the JSON payload of the executions command.
type ExecutionsResult struct {
	Executions []domain.RuleExecution `json:"executions"`
	Total      int                    `json:"total"`
}

// NewExecutionsCommand creates the executions command.
func NewExecutionsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExecutionsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "executions",
		Short: "Show the rule execution ledger",
		Long: `List ledger rows, newest first.

Example:
  switchyard executions --rule wf-intake-email --status FAILED
  switchyard executions --event 0190c3d2-... --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExecutions(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.RuleID, "rule", "", "only rows for this rule")
	cmd.Flags().StringVar(&opts.EventID, "event", "", "only rows for this event")
	cmd.Flags().StringVar(&opts.Status, "status", "", "only rows with this status (SUCCESS|FAILED|SKIPPED)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 50, "maximum rows to show (0 for all)")

	return cmd
}

func runExecutions(opts *ExecutionsOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	status := domain.ExecutionStatus(opts.Status)
	if opts.Status != "" && !status.Valid() {
		msg := fmt.Sprintf("invalid status %q: must be SUCCESS, FAILED or SKIPPED", opts.Status)
		_ = formatter.Error(ErrCodeInvalidArgs, msg, nil)
		return NewExitError(ExitCommandError, msg)
	}
	if opts.Limit < 0 {
		return NewExitError(ExitCommandError, "limit must not be negative")
	}

	return withStore(opts.RootOptions, cmd, func(ctx context.Context, st *store.Store) error {
		filter := store.ExecutionFilter{RuleID: opts.RuleID, EventID: opts.EventID, Status: status}
		total, err := st.CountExecutions(ctx, filter)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to count executions", err)
		}
		filter.Limit = opts.Limit
		rows, err := st.ListExecutions(ctx, filter)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list executions", err)
		}

		if opts.Format == "json" {
			return formatter.Success(ExecutionsResult{Executions: rows, Total: total})
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "EXECUTED_AT\tRULE\tEVENT\tSTATUS\tERROR")
		for _, row := range rows {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				row.ExecutedAt.Format("2006-01-02T15:04:05.000Z"), row.RuleID, row.EventID, row.Status, row.Error)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d of %d row(s)\n", len(rows), total)
		return nil
	})
}
