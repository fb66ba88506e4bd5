package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Helper function to create a migrated storage in a temp directory.
func createTestStorage(t *testing.T) (*SQLiteStorage, func()) {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		t.Fatalf("Failed to migrate: %v", err)
	}

	return store, func() { _ = store.Close() }
}

func TestSQLiteStorage_Migrate(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	version, err := store.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, ExpectedSchemaVersion, version)

	// Running again is a no-op.
	require.NoError(t, store.Migrate(ctx))

	var indexCount int
	err = store.db.QueryRow(`
		SELECT COUNT(*) FROM sqlite_master
		WHERE type='index' AND name='idx_kv_store_updated_at'
	`).Scan(&indexCount)
	require.NoError(t, err)
	assert.Equal(t, 1, indexCount)
}

func TestSQLiteStorage_InMemory(t *testing.T) {
	store, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	require.NoError(t, store.Migrate(ctx))
	require.NoError(t, store.Set(ctx, "k", []byte("v")))

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
}

func TestSQLiteStorage_GetSetDelete(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	got, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got, "absent keys read as nil")

	require.NoError(t, store.Set(ctx, "pending_operations", []byte(`[]`)))
	require.NoError(t, store.Set(ctx, "pending_operations", []byte(`[{"id":"a"}]`)))

	got, err = store.Get(ctx, "pending_operations")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"a"}]`, string(got))

	require.NoError(t, store.Delete(ctx, "pending_operations"))
	require.NoError(t, store.Delete(ctx, "pending_operations"), "deleting twice is not an error")

	got, err = store.Get(ctx, "pending_operations")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLiteStorage_PersistsAcrossReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "spice.db")
	ctx := context.Background()

	store, err := NewSQLiteStorage(dbPath)
	require.NoError(t, err)
	require.NoError(t, store.Migrate(ctx))
	require.NoError(t, store.Set(ctx, "dedup_cache", []byte("cache")))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStorage(dbPath)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()
	require.NoError(t, reopened.Migrate(ctx))

	got, err := reopened.Get(ctx, "dedup_cache")
	require.NoError(t, err)
	assert.Equal(t, []byte("cache"), got)
}

func TestSQLiteStorage_Update(t *testing.T) {
	tests := []struct {
		name    string
		initial []byte
		fn      func([]byte) ([]byte, error)
		want    []byte
		wantErr bool
	}{
		{
			name: "creates absent key",
			fn: func(cur []byte) ([]byte, error) {
				if cur != nil {
					return nil, errors.New("expected nil current value")
				}
				return []byte("1"), nil
			},
			want: []byte("1"),
		},
		{
			name:    "modifies existing value",
			initial: []byte("a"),
			fn:      func(cur []byte) ([]byte, error) { return append(cur, 'b'), nil },
			want:    []byte("ab"),
		},
		{
			name:    "nil result deletes",
			initial: []byte("a"),
			fn:      func([]byte) ([]byte, error) { return nil, nil },
			want:    nil,
		},
		{
			name:    "callback error leaves value unchanged",
			initial: []byte("keep"),
			fn:      func([]byte) ([]byte, error) { return []byte("lost"), errors.New("boom") },
			want:    []byte("keep"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, cleanup := createTestStorage(t)
			defer cleanup()
			ctx := context.Background()

			if tt.initial != nil {
				require.NoError(t, store.Set(ctx, "key", tt.initial))
			}

			err := store.Update(ctx, "key", tt.fn)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}

			got, err := store.Get(ctx, "key")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSQLiteStorage_ConcurrentUpdatesAcrossHandles(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "shared.db")
	ctx := context.Background()

	first, err := NewSQLiteStorage(dbPath)
	require.NoError(t, err)
	defer func() { _ = first.Close() }()
	require.NoError(t, first.Migrate(ctx))

	second, err := NewSQLiteStorage(dbPath)
	require.NoError(t, err)
	defer func() { _ = second.Close() }()

	increment := func(cur []byte) ([]byte, error) {
		n := 0
		if cur != nil {
			var convErr error
			n, convErr = strconv.Atoi(string(cur))
			if convErr != nil {
				return nil, convErr
			}
		}
		return []byte(strconv.Itoa(n + 1)), nil
	}

	const perHandle = 20
	var wg sync.WaitGroup
	errs := make(chan error, 2*perHandle)
	for _, store := range []*SQLiteStorage{first, second} {
		for i := 0; i < perHandle; i++ {
			wg.Add(1)
			go func(s *SQLiteStorage) {
				defer wg.Done()
				errs <- s.Update(ctx, "counter", increment)
			}(store)
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := first.Get(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprint(2*perHandle), string(got), "no increment may be lost")
}

func TestSQLiteStorage_InvalidArguments(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	_, err := store.Get(ctx, " ")
	assert.ErrorIs(t, err, ErrEmptyString)

	//nolint:staticcheck // nil context is the point of the test
	err = store.Set(nil, "k", nil)
	assert.ErrorIs(t, err, ErrNilContext)

	err = store.Update(ctx, "k", nil)
	assert.ErrorIs(t, err, ErrNilParameter)

	_, err = NewSQLiteStorage("")
	assert.ErrorIs(t, err, ErrEmptyString)
}

func TestSQLiteStorage_DatabaseFailures(t *testing.T) {
	diskErr := errors.New("disk I/O error")

	t.Run("get surfaces query errors", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer func() { _ = db.Close() }()
		store := NewSQLiteStorageFromDB(db, "mock")

		mock.ExpectQuery("SELECT value FROM kv_store").
			WithArgs("dedup_cache").
			WillReturnError(diskErr)

		_, err = store.Get(context.Background(), "dedup_cache")
		assert.ErrorIs(t, err, diskErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("update rolls back when read fails", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer func() { _ = db.Close() }()
		store := NewSQLiteStorageFromDB(db, "mock")

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT value FROM kv_store").
			WithArgs("pending_operations").
			WillReturnError(diskErr)
		mock.ExpectRollback()

		called := false
		err = store.Update(context.Background(), "pending_operations", func(cur []byte) ([]byte, error) {
			called = true
			return cur, nil
		})
		assert.ErrorIs(t, err, diskErr)
		assert.False(t, called)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("update rolls back when write fails", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer func() { _ = db.Close() }()
		store := NewSQLiteStorageFromDB(db, "mock")

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT value FROM kv_store").
			WithArgs("pending_operations").
			WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow([]byte(`[]`)))
		mock.ExpectExec("INSERT INTO kv_store").
			WillReturnError(diskErr)
		mock.ExpectRollback()

		err = store.Update(context.Background(), "pending_operations", func([]byte) ([]byte, error) {
			return []byte(`[{"id":"x"}]`), nil
		})
		assert.ErrorIs(t, err, diskErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("schema version failure", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer func() { _ = db.Close() }()
		store := NewSQLiteStorageFromDB(db, "mock")

		mock.ExpectQuery("PRAGMA user_version").WillReturnError(diskErr)

		err = store.Migrate(context.Background())
		assert.ErrorIs(t, err, diskErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
