package main

import (
	"fmt"
	"text/tabwriter"

	"management/backend/internal/database"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Long: `Apply every pending schema migration in version order. Each migration
runs in its own transaction together with its ledger row, so rerunning the
command is a no-op once the schema is current.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer func() {
				if sqlDB, err := db.DB(); err == nil {
					_ = sqlDB.Close()
				}
			}()

			if err := database.Migrate(cmd.Context(), db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date.")
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "List migrations and when they were applied",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer func() {
				if sqlDB, err := db.DB(); err == nil {
					_ = sqlDB.Close()
				}
			}()

			statuses, err := database.Status(cmd.Context(), db)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "VERSION\tAPPLIED\tDESCRIPTION")
			pending := 0
			for _, st := range statuses {
				applied := "pending"
				if st.AppliedAt != nil {
					applied = humanize.Time(*st.AppliedAt)
				} else {
					pending++
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", st.Version, applied, st.Description)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d of %d migrations pending\n", pending, len(statuses))
			return nil
		},
	}

	migrateCmd.AddCommand(statusCmd)
	return migrateCmd
}
