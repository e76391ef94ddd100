package database_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"management/backend/internal/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openEmpty(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open(context.Background(), "sqlite::memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func TestMigrate_AppliesAllAndRecordsLedger(t *testing.T) {
	ctx := context.Background()
	db := openEmpty(t)

	require.NoError(t, database.Migrate(ctx, db))

	for _, table := range []string{"chat_rooms", "group_messages", "customers", "agents", "tickets", "schema_migrations"} {
		assert.True(t, db.Migrator().HasTable(table), "table %s should exist", table)
	}
	assert.True(t, db.Migrator().HasColumn("group_messages", "parent_id"))
	assert.True(t, db.Migrator().HasIndex("group_messages", "idx_group_messages_parent_id"))

	var count int64
	require.NoError(t, db.Table("schema_migrations").Count(&count).Error)
	assert.Equal(t, int64(len(database.Migrations())), count)
}

func TestMigrate_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := openEmpty(t)

	require.NoError(t, database.Migrate(ctx, db))
	require.NoError(t, database.Migrate(ctx, db), "second run must skip recorded versions")

	var count int64
	require.NoError(t, db.Table("schema_migrations").Count(&count).Error)
	assert.Equal(t, int64(len(database.Migrations())), count)
}

func TestApply_ReplaysOnlyPendingMigrations(t *testing.T) {
	ctx := context.Background()
	db := openEmpty(t)
	all := database.Migrations()

	// Store that only knows the initial chat schema, as before the parent column existed.
	require.NoError(t, database.Apply(ctx, db, all[:1]))
	assert.False(t, db.Migrator().HasColumn("group_messages", "parent_id"))

	require.NoError(t, db.Exec(`INSERT INTO chat_rooms (name, created_at) VALUES ('general', CURRENT_TIMESTAMP)`).Error)
	require.NoError(t, db.Exec(`INSERT INTO group_messages (chat_room_id, author_id, body, created_at) VALUES (1, 'u1', 'hi', CURRENT_TIMESTAMP)`).Error)

	require.NoError(t, database.Apply(ctx, db, all))
	assert.True(t, db.Migrator().HasColumn("group_messages", "parent_id"))

	var body string
	require.NoError(t, db.Raw(`SELECT body FROM group_messages WHERE parent_id IS NULL`).Scan(&body).Error)
	assert.Equal(t, "hi", body, "existing rows survive and get a NULL parent")
}

func TestMigrate_ConcurrentCallersApplyEachVersionOnce(t *testing.T) {
	ctx := context.Background()
	dsn := "sqlite://" + filepath.Join(t.TempDir(), "shared.db")

	const instances = 4
	dbs := make([]*gorm.DB, instances)
	for i := range dbs {
		db, err := database.Open(ctx, dsn)
		require.NoError(t, err)
		t.Cleanup(func() {
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		})
		dbs[i] = db
	}

	errs := make([]error, instances)
	var wg sync.WaitGroup
	for i, db := range dbs {
		i, db := i, db
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = database.Migrate(ctx, db)
		}()
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "instance %d", i)
	}
	var count int64
	require.NoError(t, dbs[0].Table("schema_migrations").Count(&count).Error)
	assert.Equal(t, int64(len(database.Migrations())), count)
}

func TestApply_FailedMigrationIsNotRecorded(t *testing.T) {
	ctx := context.Background()
	db := openEmpty(t)

	boom := errors.New("boom")
	migrations := []database.Migration{
		{Version: "0001_ok", Up: func(tx *gorm.DB) error {
			return tx.Exec(`CREATE TABLE widgets (id INTEGER PRIMARY KEY)`).Error
		}},
		{Version: "0002_fails", Up: func(tx *gorm.DB) error { return boom }},
	}

	err := database.Apply(ctx, db, migrations)
	require.ErrorIs(t, err, boom)

	var versions []string
	require.NoError(t, db.Table("schema_migrations").Order("version").Pluck("version", &versions).Error)
	assert.Equal(t, []string{"0001_ok"}, versions)
}

func TestApply_RejectsUnknownLedgerVersion(t *testing.T) {
	ctx := context.Background()
	db := openEmpty(t)
	require.NoError(t, database.Migrate(ctx, db))

	older := database.Migrations()[:2]
	err := database.Apply(ctx, db, older)
	assert.ErrorIs(t, err, database.ErrUnknownMigration)
}

func TestApply_ValidatesOrder(t *testing.T) {
	noop := func(tx *gorm.DB) error { return nil }
	tests := []struct {
		name       string
		migrations []database.Migration
	}{
		{name: "out of order", migrations: []database.Migration{{Version: "0002", Up: noop}, {Version: "0001", Up: noop}}},
		{name: "duplicate", migrations: []database.Migration{{Version: "0001", Up: noop}, {Version: "0001", Up: noop}}},
		{name: "missing up", migrations: []database.Migration{{Version: "0001"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := openEmpty(t)
			assert.Error(t, database.Apply(context.Background(), db, tt.migrations))
		})
	}
}

func TestStatus_ReportsPendingAndApplied(t *testing.T) {
	ctx := context.Background()
	db := openEmpty(t)
	require.NoError(t, database.Apply(ctx, db, database.Migrations()[:1]))

	status, err := database.Status(ctx, db)
	require.NoError(t, err)
	require.Len(t, status, len(database.Migrations()))

	assert.Equal(t, "0001_chat_initial", status[0].Version)
	assert.NotNil(t, status[0].AppliedAt)
	for _, st := range status[1:] {
		assert.Nil(t, st.AppliedAt, "%s should be pending", st.Version)
	}
}
