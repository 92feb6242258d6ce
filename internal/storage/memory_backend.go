package storage

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/Benny93/calltree-go/internal/parsers"
)

// MemoryBackend is an in-memory parse cache. Watch mode keeps one for the
// lifetime of the process so unchanged files are not parsed again.
type MemoryBackend struct {
	mu          sync.RWMutex
	entries     map[Key]*parsers.ParseResult
	initialized bool
	readOnly    bool
	hits        atomic.Int64
	misses      atomic.Int64
}

// NewMemoryBackend creates a new in-memory cache. It is usable without
// Initialize.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		entries:     make(map[Key]*parsers.ParseResult),
		initialized: true,
	}
}

// Initialize implements CacheBackend. The path is ignored.
func (m *MemoryBackend) Initialize(_ string, readOnly bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entries == nil {
		m.entries = make(map[Key]*parsers.ParseResult)
	}
	m.readOnly = readOnly
	m.initialized = true
	return nil
}

// Close implements CacheBackend.
func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = nil
	m.initialized = false
	return nil
}

// Get implements CacheBackend.
func (m *MemoryBackend) Get(ctx context.Context, key Key) (*parsers.ParseResult, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.initialized {
		return nil, false, ErrNotInitialized
	}
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	result, ok := m.entries[key]
	if !ok {
		m.misses.Add(1)
		return nil, false, nil
	}
	m.hits.Add(1)
	return result, true, nil
}

// Put implements CacheBackend.
func (m *MemoryBackend) Put(ctx context.Context, key Key, result *parsers.ParseResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return ErrNotInitialized
	}
	if m.readOnly {
		return ErrReadOnly
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.entries[key] = result
	return nil
}

// Prune implements CacheBackend.
func (m *MemoryBackend) Prune(_ context.Context, keep func(Key) bool) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return 0, ErrNotInitialized
	}
	if m.readOnly {
		return 0, ErrReadOnly
	}

	removed := 0
	for key := range m.entries {
		if !keep(key) {
			delete(m.entries, key)
			removed++
		}
	}
	return removed, nil
}

// Len implements CacheBackend.
func (m *MemoryBackend) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Stats implements CacheBackend.
func (m *MemoryBackend) Stats() Stats {
	return Stats{Hits: m.hits.Load(), Misses: m.misses.Load()}
}
