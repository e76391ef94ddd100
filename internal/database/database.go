// Package database opens the gorm connection and owns the versioned schema migrations.
package database

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	connectAttempts = 10
	connectBackoff  = 2 * time.Second
)

// Open connects to the database described by dsn.
// postgres:// URLs and key=value DSNs use the Postgres driver; sqlite:// paths
// (or "sqlite::memory:") use SQLite, which is meant for local development and tests.
// Postgres connections are retried because the server may still be starting.
func Open(ctx context.Context, dsn string) (*gorm.DB, error) {
	dialector, err := dialectorFor(dsn)
	if err != nil {
		return nil, err
	}

	var db *gorm.DB
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		db, err = gorm.Open(dialector, Config())
		if err == nil {
			sqlDB, sqlErr := db.DB()
			if sqlErr == nil {
				err = sqlDB.PingContext(ctx)
			} else {
				err = sqlErr
			}
		}
		if err == nil {
			log.Printf("INFO: Database connected (attempt %d)", attempt)
			return db, configurePool(db, dialector.Name())
		}
		if dialector.Name() == "sqlite" {
			break
		}
		log.Printf("WARNING: DB connect attempt %d/%d failed: %v", attempt, connectAttempts, err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(connectBackoff):
		}
	}
	return nil, fmt.Errorf("connect database: %w", err)
}

// Config is the gorm configuration shared by the server, the admin CLI and tests.
// TranslateError maps driver constraint violations onto gorm.ErrForeignKeyViolated
// and gorm.ErrDuplicatedKey.
func Config() *gorm.Config {
	return &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
		NowFunc:        func() time.Time { return time.Now().UTC() },
	}
}

func dialectorFor(dsn string) (gorm.Dialector, error) {
	switch {
	case strings.HasPrefix(dsn, "sqlite://"):
		return sqlite.Open(sqliteDSN(strings.TrimPrefix(dsn, "sqlite://"))), nil
	case strings.HasPrefix(dsn, "sqlite:"):
		return sqlite.Open(sqliteDSN(strings.TrimPrefix(dsn, "sqlite:"))), nil
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		kv, err := pq.ParseURL(dsn)
		if err != nil {
			return nil, fmt.Errorf("parse database url: %w", err)
		}
		return postgres.Open(kv), nil
	case dsn == "":
		return nil, fmt.Errorf("database dsn is empty")
	default:
		return postgres.Open(dsn), nil
	}
}

// sqliteDSN turns on foreign key enforcement, which SQLite leaves off by default.
func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_foreign_keys=1"
}

func configurePool(db *gorm.DB, dialect string) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	if dialect == "sqlite" {
		// one writer; shared in-memory databases also need a single connection
		sqlDB.SetMaxOpenConns(1)
		return nil
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	return nil
}
