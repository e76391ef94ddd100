package database

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"
)

// ErrUnknownMigration is returned when the ledger records a version this binary
// does not ship. The store is ahead of the code and must not be migrated by it.
var ErrUnknownMigration = errors.New("ledger contains unknown migration")

// migrationLockID keys the Postgres advisory lock held while migrating, so
// instances starting together apply the pending versions one at a time.
const migrationLockID int64 = 0x6d6967726174

// migrateMu serializes Apply calls within one process.
var migrateMu sync.Mutex

// Migration is one forward-only schema change. Up runs inside a transaction
// together with the ledger insert, so a change is either fully applied and
// recorded or not applied at all.
type Migration struct {
	Version     string
	Description string
	Up          func(tx *gorm.DB) error
}

// MigrationStatus describes a known migration and whether it has been applied.
type MigrationStatus struct {
	Version     string
	Description string
	AppliedAt   *time.Time
}

// ledgerEntry is a row of the migration ledger.
type ledgerEntry struct {
	Version   string    `gorm:"primaryKey;size:255"`
	AppliedAt time.Time `gorm:"not null"`
}

func (ledgerEntry) TableName() string { return "schema_migrations" }

// Migrate applies every pending migration from Migrations in version order.
func Migrate(ctx context.Context, db *gorm.DB) error {
	return Apply(ctx, db, Migrations())
}

// Apply applies the pending migrations of the given ordered list.
// Already-recorded versions are skipped, so running it twice is a no-op.
// Concurrent callers are serialized: in-process with a mutex and across
// processes with a session advisory lock on Postgres. A caller that waits
// rereads the ledger once it holds the lock.
func Apply(ctx context.Context, db *gorm.DB, migrations []Migration) error {
	if err := validate(migrations); err != nil {
		return err
	}
	migrateMu.Lock()
	defer migrateMu.Unlock()

	db = db.WithContext(ctx)
	if db.Dialector.Name() != "postgres" {
		return applyPending(db, migrations)
	}

	// advisory locks belong to a session, so everything runs on one pinned connection
	return db.Connection(func(conn *gorm.DB) error {
		if err := conn.Exec("SELECT pg_advisory_lock(?)", migrationLockID).Error; err != nil {
			return fmt.Errorf("acquire migration lock: %w", err)
		}
		defer func() {
			unlock := conn.WithContext(context.WithoutCancel(ctx))
			if err := unlock.Exec("SELECT pg_advisory_unlock(?)", migrationLockID).Error; err != nil {
				log.Printf("WARNING: Failed to release migration lock: %v", err)
			}
		}()
		return applyPending(conn, migrations)
	})
}

func applyPending(db *gorm.DB, migrations []Migration) error {
	applied, err := appliedVersions(db)
	if err != nil {
		return err
	}
	known := make(map[string]struct{}, len(migrations))
	for _, m := range migrations {
		known[m.Version] = struct{}{}
	}
	for version := range applied {
		if _, ok := known[version]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownMigration, version)
		}
	}

	for _, m := range migrations {
		if _, done := applied[m.Version]; done {
			continue
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := m.Up(tx); err != nil {
				return fmt.Errorf("execute migration %s: %w", m.Version, err)
			}
			entry := ledgerEntry{Version: m.Version, AppliedAt: time.Now().UTC()}
			if err := tx.Create(&entry).Error; err != nil {
				return fmt.Errorf("record migration %s: %w", m.Version, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
		log.Printf("INFO: Applied migration: %s", m.Version)
	}
	return nil
}

// Status reports every known migration with its applied time, if any.
func Status(ctx context.Context, db *gorm.DB) ([]MigrationStatus, error) {
	migrations := Migrations()
	if err := validate(migrations); err != nil {
		return nil, err
	}
	applied, err := appliedVersions(db.WithContext(ctx))
	if err != nil {
		return nil, err
	}

	out := make([]MigrationStatus, 0, len(migrations))
	for _, m := range migrations {
		st := MigrationStatus{Version: m.Version, Description: m.Description}
		if at, ok := applied[m.Version]; ok {
			st.AppliedAt = &at
		}
		out = append(out, st)
	}
	return out, nil
}

func appliedVersions(db *gorm.DB) (map[string]time.Time, error) {
	if err := db.AutoMigrate(&ledgerEntry{}); err != nil {
		return nil, fmt.Errorf("create migrations table: %w", err)
	}
	var rows []ledgerEntry
	if err := db.Order("version").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("read migrations table: %w", err)
	}
	applied := make(map[string]time.Time, len(rows))
	for _, r := range rows {
		applied[r.Version] = r.AppliedAt
	}
	return applied, nil
}

func validate(migrations []Migration) error {
	sorted := sort.SliceIsSorted(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	if !sorted {
		return errors.New("migrations are not in version order")
	}
	for i, m := range migrations {
		if m.Version == "" || m.Up == nil {
			return fmt.Errorf("migration %d is incomplete", i)
		}
		if i > 0 && migrations[i-1].Version == m.Version {
			return fmt.Errorf("duplicate migration version %s", m.Version)
		}
	}
	return nil
}
