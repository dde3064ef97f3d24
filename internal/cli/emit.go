package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/switchyard/internal/domain"
)

// EmitOptions holds flags for the emit command.
type EmitOptions struct {
	*RootOptions
	Subject     string
	Type        string
	Title       string
	Description string
	ActionURL   string
}

// NewEmitCommand creates the emit command.
func NewEmitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EmitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "emit",
		Short: "Append one event and run its rules",
		Long: `Append a domain event through the public path.

The event is stored, then every enabled rule for its type runs and
writes a ledger row. Pending notifications are delivered before exit.

Example:
  switchyard emit --subject u1 --type TriageTicket --title "New intake"
  switchyard emit --subject u1 --type RoleRequestUpdate --title APPROVED --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEmit(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Subject, "subject", "", "subject (user) ID (required)")
	cmd.Flags().StringVar(&opts.Type, "type", "", "event type (required)")
	cmd.Flags().StringVar(&opts.Title, "title", "", "event title (required)")
	cmd.Flags().StringVar(&opts.Description, "description", "", "event description")
	cmd.Flags().StringVar(&opts.ActionURL, "action-url", "", "link shown with the event")
	_ = cmd.MarkFlagRequired("subject")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("title")

	return cmd
}

func runEmit(opts *EmitOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	cfg, err := opts.Config()
	if err != nil {
		return err
	}
	logger := opts.Logger(cmd.ErrOrStderr())

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	st, err := openStack(ctx, cfg, logger)
	if err != nil {
		return err
	}

	ev, appendErr := st.writer.Append(ctx, domain.NewEvent{
		SubjectID:   opts.Subject,
		Type:        domain.EventType(opts.Type),
		Title:       opts.Title,
		Description: opts.Description,
		ActionURL:   opts.ActionURL,
	})
	if err := st.Close(); err != nil {
		logger.Error("error closing stack", "error", err)
	}
	if appendErr != nil {
		_ = formatter.Error(ErrCodeInvalidArgs, appendErr.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to append event", appendErr)
	}

	formatter.VerboseLog("appended %s at %s", ev.ID, ev.CreatedAt.Format("2006-01-02T15:04:05.000Z"))
	if opts.Format == "json" {
		return formatter.Success(ev)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", ev.ID, ev.Type, ev.SubjectID)
	return nil
}
