// Package testutil provides test helpers for opening migrated SQLite stores.
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Veraticus/spice-inbox/internal/storage"
)

// SetupTestDB creates a migrated in-memory store that is closed when the test ends.
func SetupTestDB(t *testing.T) *storage.SQLiteStorage {
	t.Helper()
	return open(t, ":memory:")
}

// SharedDBPath returns a database path in the test's temp dir. Every store
// opened on it with OpenDB sees the same data, like separate processes would.
func SharedDBPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "spice.db")
}

// OpenDB opens and migrates the store at path. It is closed when the test ends.
func OpenDB(t *testing.T, path string) *storage.SQLiteStorage {
	t.Helper()
	return open(t, path)
}

func open(t *testing.T, path string) *storage.SQLiteStorage {
	t.Helper()

	store, err := storage.NewSQLiteStorage(path)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("failed to close test database: %v", err)
		}
	})

	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	return store
}
