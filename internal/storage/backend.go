// Package storage caches scan results between runs.
//
// A parse result depends only on the parser, the file path and the file
// content, so entries are keyed by all three and never need invalidation:
// a changed file simply misses.
package storage

import (
	"context"
	"errors"

	"github.com/Benny93/calltree-go/internal/parsers"
)

// ErrNotInitialized is returned when a backend is used before Initialize or
// after Close.
var ErrNotInitialized = errors.New("storage: backend not initialized")

// ErrReadOnly is returned by writes to a cache opened read-only.
var ErrReadOnly = errors.New("storage: read-only cache")

// Key identifies one cached parse result.
type Key struct {
	// Language is the parser that produced the result.
	Language string

	// Path is the file path the result was parsed under.
	Path string

	// SHA256 is the hex digest of the file content.
	SHA256 string
}

// Stats counts cache lookups since Initialize.
type Stats struct {
	Hits   int64
	Misses int64
}

// CacheBackend defines the interface for parse cache implementations.
//
// Implementations must be thread-safe and support concurrent access.
type CacheBackend interface {
	// Initialize opens or creates the cache at the given path.
	// If readOnly is true, Put and Prune fail.
	Initialize(path string, readOnly bool) error

	// Close releases all resources held by the backend.
	Close() error

	// Get returns the cached result for key. The boolean is false on a miss.
	Get(ctx context.Context, key Key) (*parsers.ParseResult, bool, error)

	// Put stores result under key, replacing any previous entry.
	Put(ctx context.Context, key Key, result *parsers.ParseResult) error

	// Prune deletes every entry for which keep returns false and reports how
	// many were removed.
	Prune(ctx context.Context, keep func(Key) bool) (int, error)

	// Len returns the number of cached entries.
	Len() int

	// Stats returns the lookup counters.
	Stats() Stats
}
