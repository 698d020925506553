package storage

import (
	"database/sql"
	"path/filepath"
	"testing"
)

func schemaObjectExists(t *testing.T, path, kind, name string) bool {
	t.Helper()
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer conn.Close()

	var found string
	err = conn.QueryRow("SELECT name FROM sqlite_master WHERE type=? AND name=?", kind, name).Scan(&found)
	if err == sql.ErrNoRows {
		return false
	}
	if err != nil {
		t.Fatalf("Failed to query sqlite_master: %v", err)
	}
	return true
}

func TestMigrateKV_CreatesSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cube.db")

	if err := migrateKV(path); err != nil {
		t.Fatalf("migrateKV failed: %v", err)
	}
	// A current file is a no-op.
	if err := migrateKV(path); err != nil {
		t.Fatalf("Second migrateKV failed: %v", err)
	}

	if !schemaObjectExists(t, path, "table", "kv") {
		t.Error("Expected kv table after migrations")
	}
	if !schemaObjectExists(t, path, "index", "idx_kv_updated_at") {
		t.Error("Expected updated_at index after migrations")
	}
}

func TestMigrateKV_RecordsLatestVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cube.db")
	db, err := Open(DefaultConfig(path))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	var (
		version int
		dirty   bool
	)
	if err := db.conn.QueryRow("SELECT version, dirty FROM schema_migrations").Scan(&version, &dirty); err != nil {
		t.Fatalf("Failed to read schema_migrations: %v", err)
	}
	if version != 2 || dirty {
		t.Errorf("Expected clean version 2, got %d dirty=%v", version, dirty)
	}
}

func TestSQLiteURL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cube.db")
	want := "sqlite://" + filepath.ToSlash(path)
	if got := sqliteURL(path); got != want {
		t.Errorf("sqliteURL(%q) = %q, want %q", path, got, want)
	}
	if got := sqliteURL("cube.db"); got != "sqlite://cube.db" {
		t.Errorf("Expected relative path untouched, got %q", got)
	}
}
