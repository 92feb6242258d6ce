package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benny93/calltree-go/internal/parsers"
)

func sampleResult(path string) *parsers.ParseResult {
	return &parsers.ParseResult{
		Package:        "main",
		PackageImports: map[string]string{"fmt": "fmt"},
		Definitions: []parsers.Definition{
			{Name: "main", File: path, StartLine: 3, EndLine: 6, Exported: false},
		},
		Calls: []parsers.CallSite{
			{Caller: "main", CallerFile: path, Name: "Println", Qualifier: "fmt", Package: "fmt", Line: 4},
		},
	}
}

// backends returns one fresh instance of every CacheBackend.
func backends(t *testing.T) map[string]CacheBackend {
	t.Helper()

	b := NewBadgerBackend()
	require.NoError(t, b.Initialize(filepath.Join(t.TempDir(), "cache"), false))
	t.Cleanup(func() { _ = b.Close() })

	return map[string]CacheBackend{
		"Badger": b,
		"Memory": NewMemoryBackend(),
	}
}

func TestCacheBackend_Contract(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			key := Key{Language: "go", Path: "main.go", SHA256: "abc"}

			got, ok, err := backend.Get(ctx, key)
			require.NoError(t, err)
			assert.False(t, ok)
			assert.Nil(t, got)

			require.NoError(t, backend.Put(ctx, key, sampleResult("main.go")))
			assert.Equal(t, 1, backend.Len())

			got, ok, err = backend.Get(ctx, key)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, sampleResult("main.go"), got)

			// same content under another path is a different entry
			_, ok, err = backend.Get(ctx, Key{Language: "go", Path: "other.go", SHA256: "abc"})
			require.NoError(t, err)
			assert.False(t, ok)

			// overwrite does not grow the cache
			require.NoError(t, backend.Put(ctx, key, sampleResult("main.go")))
			assert.Equal(t, 1, backend.Len())

			assert.Equal(t, Stats{Hits: 1, Misses: 2}, backend.Stats())
		})
	}
}

func TestCacheBackend_Prune(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			for _, path := range []string{"a.go", "b.go", "c.py"} {
				require.NoError(t, backend.Put(ctx, Key{Language: "go", Path: path, SHA256: "1"}, sampleResult(path)))
			}

			removed, err := backend.Prune(ctx, func(k Key) bool { return k.Path != "b.go" })
			require.NoError(t, err)

			assert.Equal(t, 1, removed)
			assert.Equal(t, 2, backend.Len())
			_, ok, err := backend.Get(ctx, Key{Language: "go", Path: "b.go", SHA256: "1"})
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestCacheBackend_Closed(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, backend.Close())

			_, _, err := backend.Get(ctx, Key{Path: "x"})
			assert.ErrorIs(t, err, ErrNotInitialized)
			err = backend.Put(ctx, Key{Path: "x"}, sampleResult("x"))
			assert.ErrorIs(t, err, ErrNotInitialized)
			_, err = backend.Prune(ctx, func(Key) bool { return true })
			assert.ErrorIs(t, err, ErrNotInitialized)
		})
	}
}

func TestCacheBackend_CanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, _, err := backend.Get(ctx, Key{Path: "x"})
			assert.ErrorIs(t, err, context.Canceled)
			err = backend.Put(ctx, Key{Path: "x"}, sampleResult("x"))
			assert.ErrorIs(t, err, context.Canceled)
		})
	}
}

func TestKeyEncoding(t *testing.T) {
	t.Parallel()

	key := Key{Language: "python", Path: "pkg/mod.py", SHA256: "deadbeef"}

	got, ok := decodeKey(encodeKey(key))
	assert.True(t, ok)
	assert.Equal(t, key, got)

	_, ok = decodeKey([]byte("x:other"))
	assert.False(t, ok)
}
