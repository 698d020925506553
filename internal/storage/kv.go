package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Item is a single key/value pair.
type Item struct {
	Key   string
	Value []byte
}

// KV is the flat key/value medium behind the saved list and the backup
// ring. Writes are last-writer-wins per key; PutAll applies every item or
// none, so a list and its meta (or a slot and the counter) land together.
type KV interface {
	// Get returns the value for key. found is false when the key is absent.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	PutAll(ctx context.Context, items ...Item) error
}

// KVStore is a KV backed by the kv table of a SQLite database.
type KVStore struct {
	db  *DB
	now func() time.Time
}

// NewKVStore creates a KV over an open, migrated database.
func NewKVStore(db *DB) *KVStore {
	return &KVStore{db: db, now: time.Now}
}

const upsertKV = `
INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

// Get returns the value stored under key.
func (s *KVStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.conn.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %q: %w", key, err)
	}
	return value, true, nil
}

// PutAll stores every item in one transaction.
func (s *KVStore) PutAll(ctx context.Context, items ...Item) error {
	updatedAt := s.now().UnixMilli()
	return s.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		for _, item := range items {
			if _, err := tx.ExecContext(ctx, upsertKV, item.Key, item.Value, updatedAt); err != nil {
				return fmt.Errorf("put %q: %w", item.Key, err)
			}
		}
		return nil
	})
}
