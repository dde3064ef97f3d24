package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/switchyard/internal/store"
)

// MigrateOptions holds flags for the migrate command.
type MigrateOptions struct {
	*RootOptions
	To uint
}

// MigrationStatus reports the schema version of a database.
type MigrationStatus struct {
	Version uint `json:"version"`
	Latest  uint `json:"latest"`
	Dirty   bool `json:"dirty"`
}

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MigrateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations",
		Long: `Migrate the database to the latest schema, or to --to N.

Version 1 holds users, contacts and the event feed. Version 2 adds the
workflow rules (seeded disabled) and the execution ledger. Migrating
down to 1 removes the engine: events are still stored, no rules run.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(opts, cmd)
		},
	}
	cmd.Flags().UintVar(&opts.To, "to", 0, "target schema version (default latest)")

	status := &cobra.Command{
		Use:           "status",
		Short:         "Show the current schema version",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUnmigrated(opts.RootOptions, func(st *store.Store) error {
				s, err := migrationStatus(st)
				if err != nil {
					return err
				}
				return printMigrationStatus(opts.RootOptions, cmd, s)
			})
		},
	}
	cmd.AddCommand(status)

	return cmd
}

func runMigrate(opts *MigrateOptions, cmd *cobra.Command) error {
	target := opts.To
	if target == 0 {
		target = store.LatestSchemaVersion()
	}
	if target > store.LatestSchemaVersion() {
		return NewExitError(ExitCommandError, fmt.Sprintf("unknown schema version %d (latest is %d)", target, store.LatestSchemaVersion()))
	}

	return withUnmigrated(opts.RootOptions, func(st *store.Store) error {
		if err := st.MigrateTo(target); err != nil {
			return WrapExitError(ExitCommandError, "migration failed", err)
		}
		s, err := migrationStatus(st)
		if err != nil {
			return err
		}
		return printMigrationStatus(opts.RootOptions, cmd, s)
	})
}

func migrationStatus(st *store.Store) (MigrationStatus, error) {
	version, dirty, err := st.SchemaVersion()
	if err != nil {
		return MigrationStatus{}, WrapExitError(ExitCommandError, "failed to read schema version", err)
	}
	return MigrationStatus{Version: version, Latest: store.LatestSchemaVersion(), Dirty: dirty}, nil
}

func printMigrationStatus(opts *RootOptions, cmd *cobra.Command, s MigrationStatus) error {
	if opts.Format == "json" {
		return opts.formatter(cmd).Success(s)
	}
	line := fmt.Sprintf("schema version %d (latest %d)", s.Version, s.Latest)
	if s.Dirty {
		line += " DIRTY"
	}
	fmt.Fprintln(cmd.OutOrStdout(), line)
	return nil
}

func withUnmigrated(opts *RootOptions, fn func(*store.Store) error) error {
	cfg, err := opts.Config()
	if err != nil {
		return err
	}
	st, err := store.OpenUnmigrated(cfg.DBPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()
	return fn(st)
}
