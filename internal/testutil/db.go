// Package testutil holds helpers shared by package tests.
package testutil

import (
	"context"
	"testing"

	"management/backend/internal/database"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// NewDB opens a private in-memory SQLite database with all migrations applied.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := database.Open(context.Background(), "sqlite::memory:")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(context.Background(), db))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}
