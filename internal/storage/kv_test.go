package storage

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(DefaultConfig(filepath.Join(t.TempDir(), "cube.db")))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func kvImplementations(t *testing.T) map[string]KV {
	return map[string]KV{
		"sqlite": NewKVStore(openTestDB(t)),
		"memory": NewMemoryKV(),
	}
}

func TestKV_GetAndPutAll(t *testing.T) {
	for name, kv := range kvImplementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			if _, found, err := kv.Get(ctx, "cube:v1:list"); err != nil || found {
				t.Fatalf("Expected missing key, got found=%v err=%v", found, err)
			}

			err := kv.PutAll(ctx,
				Item{Key: "cube:v1:list", Value: []byte(`[]`)},
				Item{Key: "cube:v1:meta", Value: []byte(`{"savedAt":1}`)},
			)
			if err != nil {
				t.Fatalf("PutAll failed: %v", err)
			}
			if err := kv.PutAll(ctx, Item{Key: "cube:v1:list", Value: []byte(`[{"id":"a"}]`)}); err != nil {
				t.Fatalf("Overwrite failed: %v", err)
			}

			value, found, err := kv.Get(ctx, "cube:v1:list")
			if err != nil || !found {
				t.Fatalf("Expected key, got found=%v err=%v", found, err)
			}
			if string(value) != `[{"id":"a"}]` {
				t.Errorf("Expected last write to win, got %s", value)
			}

			value, found, err = kv.Get(ctx, "cube:v1:meta")
			if err != nil || !found || string(value) != `{"savedAt":1}` {
				t.Errorf("Expected meta untouched, got %q found=%v err=%v", value, found, err)
			}
		})
	}
}

func TestKVStore_PutAllIsAtomic(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	kv := NewKVStore(db)

	if err := kv.PutAll(ctx, Item{Key: "cube:v1:backup_counter", Value: []byte("1")}); err != nil {
		t.Fatalf("PutAll failed: %v", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	err := kv.PutAll(cancelled,
		Item{Key: "cube:v1:backup:2", Value: []byte("b")},
		Item{Key: "cube:v1:backup_counter", Value: []byte("2")},
	)
	if err == nil {
		t.Fatal("Expected PutAll on a cancelled context to fail")
	}

	if _, found, _ := kv.Get(ctx, "cube:v1:backup:2"); found {
		t.Error("Expected no partial write of the slot")
	}
	value, _, _ := kv.Get(ctx, "cube:v1:backup_counter")
	if string(value) != "1" {
		t.Errorf("Expected counter unchanged, got %s", value)
	}
}

func TestMemoryKV_CopiesValues(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()

	value := []byte("abc")
	_ = kv.PutAll(ctx, Item{Key: "k", Value: value})
	value[0] = 'z'

	got, _, _ := kv.Get(ctx, "k")
	if string(got) != "abc" {
		t.Errorf("Expected stored copy, got %s", got)
	}
}

func TestKVStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cube.db")

	db, err := Open(DefaultConfig(path))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := NewKVStore(db).PutAll(ctx, Item{Key: "k", Value: []byte("v")}); err != nil {
		t.Fatalf("PutAll failed: %v", err)
	}
	_ = db.Close()

	db, err = Open(DefaultConfig(path))
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer db.Close()

	value, found, err := NewKVStore(db).Get(ctx, "k")
	if err != nil || !found || string(value) != "v" {
		t.Errorf("Expected persisted value, got %q found=%v err=%v", value, found, err)
	}
}
