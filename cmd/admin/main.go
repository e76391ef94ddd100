package main

import (
	"context"
	"fmt"
	"os"

	"management/backend/internal/config"
	"management/backend/internal/database"
	"management/backend/internal/storage"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

type rootOptions struct {
	databaseURL string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "admin",
		Short: "Administration tool for the management backend",
		Long: `admin applies schema migrations, inspects the route tables and
maintains chat messages directly against the database.

The database defaults to DATABASE_URL (or CONFIG_FILE / .env, like the server).`,
		SilenceUsage: true,
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.PersistentFlags().StringVar(&opts.databaseURL, "database-url", "", "database DSN (postgres:// or sqlite://)")

	root.AddCommand(
		newMigrateCmd(opts),
		newRoutesCmd(),
		newMessagesCmd(opts),
	)
	return root
}

// open connects to the configured database without touching Redis.
func (o *rootOptions) open(ctx context.Context) (*gorm.DB, error) {
	dsn := o.databaseURL
	if dsn == "" {
		cfg, err := config.Load()
		if err != nil {
			return nil, err
		}
		dsn = cfg.DatabaseURL
	}
	return database.Open(ctx, dsn)
}

// store opens the database, checks that the schema is current and returns the storage service.
func (o *rootOptions) store(ctx context.Context) (*storage.Service, func(), error) {
	db, err := o.open(ctx)
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}

	statuses, err := database.Status(ctx, db)
	if err != nil {
		closeDB()
		return nil, nil, err
	}
	for _, st := range statuses {
		if st.AppliedAt == nil {
			closeDB()
			return nil, nil, fmt.Errorf("migration %s is pending; run `admin migrate` first", st.Version)
		}
	}
	return storage.NewStorageService(db, nil), closeDB, nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
