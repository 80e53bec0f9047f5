package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestOpenDB_CreatesSchema(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	db, err := OpenDB(dbPath)
	if err != nil {
		t.Fatalf("OpenDB() error = %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("OpenDB() did not create database file")
	}

	n, err := db.CountSnapshots(context.Background())
	if err != nil {
		t.Fatalf("CountSnapshots() error = %v", err)
	}
	if n != 0 {
		t.Errorf("CountSnapshots() = %d, want 0", n)
	}
}

func TestOpenDB_Reopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	db, err := OpenDB(dbPath)
	if err != nil {
		t.Fatalf("OpenDB() error = %v", err)
	}
	if err := db.SaveSnapshot(ctx, "r1", "", testPayload(2)); err != nil {
		t.Fatalf("SaveSnapshot() error = %v", err)
	}
	db.Close()

	db, err = OpenDB(dbPath)
	if err != nil {
		t.Fatalf("reopening: %v", err)
	}
	defer db.Close()
	if n, _ := db.CountSnapshots(ctx); n != 1 {
		t.Errorf("CountSnapshots() after reopen = %d, want 1", n)
	}
}

func TestOpenDB_InMemory(t *testing.T) {
	db, err := OpenDB(":memory:")
	if err != nil {
		t.Fatalf("OpenDB(:memory:) error = %v", err)
	}
	defer db.Close()
	if _, err := os.Stat(":memory:"); err == nil {
		t.Error("OpenDB(:memory:) created a file")
	}
}

func TestDB_Close(t *testing.T) {
	db, err := OpenDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("OpenDB() error = %v", err)
	}

	if err := db.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}

	if _, err := db.CountSnapshots(context.Background()); err == nil {
		t.Error("Operations after Close() should fail")
	}
}
