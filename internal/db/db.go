// internal/db/db.go
package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/codr1/slotwise/internal/config"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type DB struct {
	*sql.DB
	Queries  *Queries
	location *time.Location
}

// New opens a SQLite database for the given data source name, applies embedded
// migrations, and returns a DB with queries bound to the connection. Times are
// read back in UTC.
func New(dataSourceName string) (*DB, error) {
	return open(dataSourceName, time.UTC)
}

// NewFromConfig creates a DB from cfg, creating the database directory if
// needed. Times are read back in the configured application timezone.
func NewFromConfig(cfg *config.Config) (*DB, error) {
	switch cfg.Database.Driver {
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(cfg.Database.Filename), 0755); err != nil {
			return nil, fmt.Errorf("error creating database directory: %w", err)
		}
		return open(cfg.Database.Filename, cfg.Location())
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Database.Driver)
	}
}

func open(dataSourceName string, loc *time.Location) (*DB, error) {
	dataSourceName = ensureDSNParam(dataSourceName, "_fk", "1")
	// Write transactions take the database lock at BEGIN so that
	// check-then-insert sequences cannot interleave across connections.
	dataSourceName = ensureDSNParam(dataSourceName, "_txlock", "immediate")
	dataSourceName = ensureDSNParam(dataSourceName, "_busy_timeout", "5000")

	sqlDB, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if err := runMigrations(sqlDB); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("error running migrations: %w", err)
	}

	return &DB{
		DB:       sqlDB,
		Queries:  NewQueries(sqlDB, loc),
		location: loc,
	}, nil
}

// ensureDSNParam appends key=value to the DSN unless key is already present.
func ensureDSNParam(dataSourceName, key, value string) string {
	if strings.Contains(dataSourceName, key+"=") {
		return dataSourceName
	}
	if strings.Contains(dataSourceName, "?") {
		return dataSourceName + "&" + key + "=" + value
	}
	return dataSourceName + "?" + key + "=" + value
}

// runMigrations applies the embedded SQL migrations to db. A "no change"
// result is not treated as an error.
func runMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("could not create migrate driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("could not create source: %w", err)
	}

	m, err := migrate.NewWithInstance(
		"iofs", source,
		"sqlite3", driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

// Location is the timezone times are read back in.
func (db *DB) Location() *time.Location {
	return db.location
}

// WithTx creates a new DB instance with the given transaction
func (db *DB) WithTx(tx *sql.Tx) *DB {
	return &DB{
		DB:       db.DB,
		Queries:  NewQueries(tx, db.location),
		location: db.location,
	}
}

// BeginTx starts a transaction
func (db *DB) BeginTx(ctx context.Context) (*sql.Tx, error) {
	tx, err := db.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("error beginning transaction: %w", err)
	}
	return tx, nil
}

// RunInTx runs the given function in a transaction
func (db *DB) RunInTx(ctx context.Context, fn func(*DB) error) error {
	tx, err := db.BeginTx(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	txDB := db.WithTx(tx)
	if err := fn(txDB); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("error rolling back: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing: %w", err)
	}

	return nil
}
