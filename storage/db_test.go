package storage

import (
	"errors"
	"path/filepath"
	"testing"
)

func exerciseDatabase(t *testing.T, db Database) {
	t.Helper()
	if _, err := db.Get([]byte("missing")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := db.Put([]byte("a"), []byte("1")); err != nil {
		t.Fatalf("put: %v", err)
	}
	batch := new(Batch)
	batch.Put([]byte("b"), []byte("2"))
	batch.Delete([]byte("a"))
	if batch.Len() != 2 {
		t.Fatalf("unexpected batch length %d", batch.Len())
	}
	if err := db.Write(batch); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := db.Get([]byte("a")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected a deleted, got %v", err)
	}
	value, err := db.Get([]byte("b"))
	if err != nil {
		t.Fatalf("get b: %v", err)
	}
	if string(value) != "2" {
		t.Fatalf("unexpected value %q", value)
	}
	if err := db.Delete([]byte("b")); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := db.Get([]byte("b")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected b deleted, got %v", err)
	}
}

func TestMemDB(t *testing.T) {
	db := NewMemDB()
	defer db.Close()
	exerciseDatabase(t, db)
}

func TestMemDBCopiesValues(t *testing.T) {
	db := NewMemDB()
	value := []byte("abc")
	if err := db.Put([]byte("k"), value); err != nil {
		t.Fatalf("put: %v", err)
	}
	value[0] = 'z'
	got, err := db.Get([]byte("k"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "abc" {
		t.Fatalf("stored value aliased caller slice: %q", got)
	}
}

func TestLevelDB(t *testing.T) {
	db, err := NewLevelDB(filepath.Join(t.TempDir(), "ledger"))
	if err != nil {
		t.Fatalf("open leveldb: %v", err)
	}
	defer db.Close()
	exerciseDatabase(t, db)
}
