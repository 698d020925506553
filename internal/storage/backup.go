package storage

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// FileBackupInfo describes a database file copy.
type FileBackupInfo struct {
	Path     string
	Name     string
	Size     int64
	ModTime  time.Time
	Checksum string
}

// BackupFile writes a consistent copy of the database to dir using
// VACUUM INTO and verifies it. An empty dir means "backups" next to the
// database file. Returns the path of the copy.
//
// This copies the whole medium; the rotating in-database snapshots live in
// package backup.
func (db *DB) BackupFile(ctx context.Context, dir string) (string, error) {
	if dir == "" {
		dir = db.DefaultBackupDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	backupPath := filepath.Join(dir, fmt.Sprintf("cube_%s.db", time.Now().Format("20060102_150405.000")))

	// VACUUM INTO takes a string literal; double any single quotes in the path.
	literal := "'" + strings.ReplaceAll(backupPath, "'", "''") + "'"
	if _, err := db.conn.ExecContext(ctx, "VACUUM INTO "+literal); err != nil {
		return "", fmt.Errorf("failed to back up database: %w", err)
	}

	if err := VerifyBackupFile(backupPath); err != nil {
		_ = os.Remove(backupPath)
		return "", fmt.Errorf("backup verification failed: %w", err)
	}

	return backupPath, nil
}

// DefaultBackupDir returns the default directory for database copies.
func (db *DB) DefaultBackupDir() string {
	return filepath.Join(filepath.Dir(db.path), "backups")
}

// VerifyBackupFile checks that path is a readable SQLite database holding
// the kv table.
func VerifyBackupFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("backup file: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open backup as database: %w", err)
	}
	defer func() { _ = conn.Close() }()

	var result string
	if err := conn.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("failed to check backup integrity: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("backup integrity check failed: %s", result)
	}

	var count int
	if err := conn.QueryRow("SELECT COUNT(*) FROM kv").Scan(&count); err != nil {
		return fmt.Errorf("backup has no kv table: %w", err)
	}
	return nil
}

// ListBackupFiles returns the database copies in dir, newest first.
func ListBackupFiles(dir string) ([]FileBackupInfo, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return []FileBackupInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	backups := []FileBackupInfo{}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".db" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		checksum, err := fileChecksum(path)
		if err != nil {
			checksum = "unknown"
		}

		backups = append(backups, FileBackupInfo{
			Path:     path,
			Name:     entry.Name(),
			Size:     info.Size(),
			ModTime:  info.ModTime(),
			Checksum: checksum,
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].ModTime.After(backups[j].ModTime)
	})
	return backups, nil
}

func fileChecksum(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = file.Close() }()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}
