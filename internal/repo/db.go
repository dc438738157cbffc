// Package repo implements the local order cache, backed by GORM. This file
// contains database bootstrapping helpers for SQLite (pure Go driver) and
// PostgreSQL, plus the versioned schema migration.
package repo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/tbourn/go-laundry-sync/internal/domain"
)

// SchemaVersion identifies the cache layout. Bumping it drops and recreates
// the cache on the next AutoMigrate.
const SchemaVersion = "2"

const schemaVersionKey = "schema_version"

// Open connects to the cache database selected by driver ("sqlite" or "postgres").
func Open(driver, dsn string) (*gorm.DB, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "sqlite":
		return OpenSQLite(dsn)
	case "postgres", "postgresql":
		return OpenPostgres(dsn)
	default:
		return nil, fmt.Errorf("unsupported cache driver %q", driver)
	}
}

// OpenSQLite opens (or creates) a SQLite database and applies PRAGMAs.
func OpenSQLite(path string) (*gorm.DB, error) {
	// Fail early if parent directory does not exist (instead of sqlite "out of memory (14)" on Windows).
	if dir := filepath.Dir(path); dir != "." && !strings.HasPrefix(path, "file:") {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// PRAGMAs
	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA synchronous=NORMAL;")
	db.Exec("PRAGMA foreign_keys=ON;")
	db.Exec("PRAGMA busy_timeout=5000;")

	if err := instrument(db); err != nil {
		return nil, err
	}
	setPool(db, 10)
	return db, nil
}

// OpenPostgres opens a PostgreSQL-backed cache, e.g. for a kiosk fleet
// sharing one cache server.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("postgres dsn is empty")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := instrument(db); err != nil {
		return nil, err
	}
	setPool(db, 20)
	return db, nil
}

// instrument attaches the OpenTelemetry GORM plugin so cache queries show up
// as child spans of the calling service span.
func instrument(db *gorm.DB) error {
	return db.Use(tracing.NewPlugin())
}

func setPool(db *gorm.DB, n int) {
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(n)
		sqlDB.SetMaxIdleConns(n)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}
}

// AutoMigrate creates the cache and submission-key schema. When the stored schema version does
// not match SchemaVersion (or is missing while an old cache table exists),
// the cache table is dropped and recreated; cached data is disposable.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&domain.CacheMeta{}); err != nil {
		return err
	}

	var meta domain.CacheMeta
	err := db.Where("name = ?", schemaVersionKey).Take(&meta).Error
	switch {
	case err == nil, errors.Is(err, gorm.ErrRecordNotFound):
	default:
		return err
	}

	m := db.Migrator()
	if meta.Value != SchemaVersion && m.HasTable(&domain.CachedOrder{}) {
		if err := m.DropTable(&domain.CachedOrder{}); err != nil {
			return fmt.Errorf("drop stale cache: %w", err)
		}
	}
	if err := db.AutoMigrate(&domain.CachedOrder{}, &domain.SubmissionKey{}); err != nil {
		return err
	}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&domain.CacheMeta{Name: schemaVersionKey, Value: SchemaVersion}).Error
}

// StoredSchemaVersion returns the version recorded by the last AutoMigrate,
// or "" when none.
func StoredSchemaVersion(db *gorm.DB) (string, error) {
	var meta domain.CacheMeta
	err := db.Where("name = ?", schemaVersionKey).Take(&meta).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	return meta.Value, err
}
