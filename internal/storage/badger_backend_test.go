package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestBadgerBackend(t *testing.T) (*BadgerBackend, string, func()) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "badger")

	backend := NewBadgerBackend()
	err := backend.Initialize(dbPath, false)
	require.NoError(t, err)

	cleanup := func() {
		backend.Close()
	}

	return backend, dbPath, cleanup
}

func TestBadgerBackend_Initialize(t *testing.T) {
	t.Parallel()

	t.Run("Success", func(t *testing.T) {
		backend, _, cleanup := setupTestBadgerBackend(t)
		defer cleanup()

		assert.NotNil(t, backend.db)
		assert.True(t, backend.initialized)
		assert.Equal(t, 0, backend.Len())
	})

	t.Run("InvalidPath", func(t *testing.T) {
		backend := NewBadgerBackend()
		err := backend.Initialize("/nonexistent/path/that/does/not/exist", true)

		assert.Error(t, err)
	})

	t.Run("CloseTwice", func(t *testing.T) {
		backend, _, _ := setupTestBadgerBackend(t)

		assert.NoError(t, backend.Close())
		assert.NoError(t, backend.Close())
	})
}

func TestBadgerBackend_Persistence(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend, dbPath, _ := setupTestBadgerBackend(t)
	key := Key{Language: "go", Path: "main.go", SHA256: "f00"}
	require.NoError(t, backend.Put(ctx, key, sampleResult("main.go")))
	require.NoError(t, backend.Close())

	reopened := NewBadgerBackend()
	require.NoError(t, reopened.Initialize(dbPath, true))
	defer reopened.Close()

	assert.Equal(t, 1, reopened.Len())
	got, ok, err := reopened.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "main", got.Definitions[0].Name)

	t.Run("ReadOnlyRejectsWrites", func(t *testing.T) {
		err := reopened.Put(ctx, key, sampleResult("main.go"))
		assert.ErrorIs(t, err, ErrReadOnly)

		_, err = reopened.Prune(ctx, func(Key) bool { return false })
		assert.ErrorIs(t, err, ErrReadOnly)
	})
}
