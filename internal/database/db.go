// Package database holds the SQLite message inbox and the one-time login
// codes used by the HTTP surface.
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"

	"github.com/edgard/calendarbot/migrations"

	_ "modernc.org/sqlite" //revive:disable:blank-imports
)

// NewDB opens the inbox database at dbPath, creating its directory when
// needed, and migrates it to the latest schema.
func NewDB(dbPath string, logger *slog.Logger) (*sqlx.DB, error) {
	file := fileFromDSN(dbPath)
	if file != "" && file != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sqlx.Connect("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to inbox database: %w", err)
	}

	// One writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := migrateUp(db.DB, file, logger); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logger.Error("Error closing inbox database after migration failure", "error", closeErr)
		}
		return nil, err
	}

	logger.Info("Inbox database ready", "path", file)
	return db, nil
}

// CloseDB closes db, logging instead of returning the error.
func CloseDB(db *sqlx.DB, logger *slog.Logger) {
	if db == nil {
		return
	}
	if err := db.Close(); err != nil {
		logger.Error("Error closing inbox database", "error", err)
		return
	}
	logger.Info("Inbox database closed")
}

func migrateUp(db *sql.DB, name string, logger *slog.Logger) error {
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(db, &sqlite.Config{DatabaseName: name})
	if err != nil {
		return fmt.Errorf("failed to create sqlite migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	switch err := m.Up(); {
	case errors.Is(err, migrate.ErrNoChange):
		logger.Debug("Inbox schema already up to date")
	case err != nil:
		return fmt.Errorf("failed to apply migrations: %w", err)
	default:
		logger.Info("Inbox schema migrated")
	}
	return nil
}

// fileFromDSN strips the file: prefix and query parameters from a sqlite DSN.
func fileFromDSN(dsn string) string {
	dsn = strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(dsn, '?'); i != -1 {
		dsn = dsn[:i]
	}
	if decoded, err := url.PathUnescape(dsn); err == nil {
		return decoded
	}
	return dsn
}
