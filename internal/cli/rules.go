package cli

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/switchyard/internal/domain"
	"github.com/roach88/switchyard/internal/rulespec"
	"github.com/roach88/switchyard/internal/store"
)

// RulesOptions holds flags for the rules subcommands.
type RulesOptions struct {
	*RootOptions
	Trigger     string
	EnabledOnly bool
}

// RulesLoadResult summarizes a rules load.
type RulesLoadResult struct {
	Files int      `json:"files"`
	Rules []string `json:"rules"`
}

// NewRulesCommand creates the rules command and its subcommands.
func NewRulesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RulesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage workflow rules",
		Long: `List, load, validate, enable and disable workflow rules.

Rule files are CUE. Each file contributes entries under a top-level
"rule" struct keyed by rule ID:

  rule: "wf-welcome": {
      name:    "Welcome email"
      trigger: "RoleRequestUpdate"
      action: {type: "SEND_EMAIL", config: {template: "welcome", to: "contact"}}
  }`,
	}

	list := &cobra.Command{
		Use:           "list",
		Short:         "List stored rules in evaluation order",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRulesList(opts, cmd)
		},
	}
	list.Flags().StringVar(&opts.Trigger, "trigger", "", "only rules for this event type")
	list.Flags().BoolVar(&opts.EnabledOnly, "enabled", false, "only enabled rules")

	load := &cobra.Command{
		Use:   "load <rules-dir>",
		Short: "Validate CUE rule files and upsert them into the database",
		Long: `Load every rule defined in a CUE directory into the database.

All rules are validated first; nothing is written if any rule is
invalid. Existing rules with the same ID are replaced, keeping their
creation time.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRulesLoad(opts, args[0], cmd)
		},
	}

	validate := &cobra.Command{
		Use:           "validate <rules-dir>",
		Short:         "Validate CUE rule files without touching the database",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := opts.formatter(cmd)
			result, err := loadRules(formatter, args[0])
			if err != nil {
				return err
			}
			if opts.Format == "json" {
				return formatter.Success(map[string]any{"valid": true, "rules": len(result.Rules)})
			}
			return formatter.Success(fmt.Sprintf("✓ %d rule(s) valid", len(result.Rules)))
		},
	}

	cmd.AddCommand(list, load, validate,
		newRuleToggleCommand(opts, "enable", "Enable a rule", true),
		newRuleToggleCommand(opts, "disable", "Disable a rule", false),
	)
	return cmd
}

func newRuleToggleCommand(opts *RulesOptions, use, short string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:           use + " <rule-id>",
		Short:         short,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := opts.formatter(cmd)
			return withStore(opts.RootOptions, cmd, func(ctx context.Context, st *store.Store) error {
				err := st.SetRuleEnabled(ctx, args[0], enabled, time.Now().UTC())
				if errors.Is(err, store.ErrNotFound) {
					_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("rule %s not found", args[0]), nil)
					return NewExitError(ExitFailure, fmt.Sprintf("rule %s not found", args[0]))
				}
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to update rule", err)
				}
				return formatter.Success(fmt.Sprintf("%s %sd", args[0], use))
			})
		},
	}
}

func runRulesList(opts *RulesOptions, cmd *cobra.Command) error {
	return withStore(opts.RootOptions, cmd, func(ctx context.Context, st *store.Store) error {
		rules, err := st.ListRules(ctx, store.RuleFilter{
			TriggerEvent: domain.EventType(opts.Trigger),
			EnabledOnly:  opts.EnabledOnly,
		})
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list rules", err)
		}
		if opts.Format == "json" {
			return opts.formatter(cmd).Success(rules)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTRIGGER\tPOS\tACTION\tENABLED\tNAME")
		for _, r := range rules {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%t\t%s\n", r.ID, r.TriggerEvent, r.Position, r.ActionType, r.Enabled, r.Name)
		}
		return w.Flush()
	})
}

func runRulesLoad(opts *RulesOptions, dir string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	result, err := loadRules(formatter, dir)
	if err != nil {
		return err
	}

	return withStore(opts.RootOptions, cmd, func(ctx context.Context, st *store.Store) error {
		now := time.Now().UTC()
		summary := RulesLoadResult{Files: result.FileCount}
		for _, r := range result.Rules {
			r.CreatedBy = "cli"
			r.CreatedAt, r.UpdatedAt = now, now
			if err := st.UpsertRule(ctx, r); err != nil {
				return WrapExitError(ExitCommandError, "failed to store rule", err)
			}
			formatter.VerboseLog("stored %s (%s, position %d)", r.ID, r.TriggerEvent, r.Position)
			summary.Rules = append(summary.Rules, r.ID)
		}

		if opts.Format == "json" {
			return formatter.Success(summary)
		}
		return formatter.Success(fmt.Sprintf("✓ Loaded %d rule(s) from %d file(s)", len(summary.Rules), summary.Files))
	})
}

// loadRules compiles and validates every rule in dir. Load errors exit 2;
// invalid rules exit 1 after every problem has been reported.
func loadRules(formatter *OutputFormatter, dir string) (*rulespec.Result, error) {
	result, loadErrs := rulespec.LoadDir(dir, rulespec.CollectAll)
	if result == nil {
		code, msg := ErrCodeGeneric, loadErrs[0].Error()
		var le *rulespec.LoadError
		if errors.As(loadErrs[0], &le) {
			code, msg = le.Code, le.Message
		}
		_ = formatter.Error(code, msg, nil)
		return nil, NewExitError(ExitCommandError, msg)
	}
	formatter.VerboseLog("Found %d CUE file(s) in %s", result.FileCount, dir)

	var problems []string
	for _, err := range loadErrs {
		problems = append(problems, err.Error())
	}
	for _, verr := range rulespec.ValidateAll(result.Rules) {
		problems = append(problems, verr.Error())
	}
	if len(problems) > 0 {
		if formatter.Format == "json" {
			_ = formatter.Error(rulespec.ErrCodeBuildFailed, fmt.Sprintf("%d problem(s) in rule files", len(problems)), problems)
		} else {
			w := formatter.Writer
			fmt.Fprintf(w, "✗ %d problem(s) in %s\n", len(problems), dir)
			for _, p := range problems {
				fmt.Fprintf(w, "  %s\n", p)
			}
		}
		return nil, NewExitError(ExitFailure, fmt.Sprintf("%d problem(s) in rule files", len(problems)))
	}
	return result, nil
}

// withStore opens the configured database for the duration of fn.
func withStore(opts *RootOptions, cmd *cobra.Command, fn func(context.Context, *store.Store) error) error {
	cfg, err := opts.Config()
	if err != nil {
		return err
	}
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return fn(ctx, st)
}
