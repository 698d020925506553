package storage

import (
	"embed"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// kvMigrations holds the kv schema: 000001 creates the kv table
// (key, value, updated_at) and 000002 indexes updated_at.
//
//go:embed migrations/*.sql
var kvMigrations embed.FS

// migrateKV brings the kv schema of the SQLite file at path up to date.
// An already current file is left alone.
func migrateKV(path string) (err error) {
	src, err := iofs.New(kvMigrations, "migrations")
	if err != nil {
		return fmt.Errorf("read kv migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, sqliteURL(path))
	if err != nil {
		return fmt.Errorf("prepare kv migrations for %s: %w", path, err)
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if closeErr := errors.Join(srcErr, dbErr); closeErr != nil && err == nil {
			err = fmt.Errorf("close kv migrator: %w", closeErr)
		}
	}()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate kv schema: %w", err)
	}
	return nil
}

// sqliteURL turns a file path into a sqlite:// URL. Absolute Windows paths
// (C:\...) get a leading slash.
func sqliteURL(path string) string {
	p := filepath.ToSlash(path)
	if filepath.IsAbs(path) && p[0] != '/' {
		p = "/" + p
	}
	return "sqlite://" + p
}
