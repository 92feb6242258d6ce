package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"

	"github.com/Benny93/calltree-go/internal/parsers"
)

// Key prefixes for different data types
const (
	prefixParse = "p:" // parse results

	keySep = "\x00"
)

// BadgerBackend is a BadgerDB-backed parse cache.
type BadgerBackend struct {
	db          *badger.DB
	initialized bool
	readOnly    bool
	mu          sync.RWMutex
	entryCount  int
	hits        atomic.Int64
	misses      atomic.Int64
}

// NewBadgerBackend creates a new BadgerDB backend.
func NewBadgerBackend() *BadgerBackend {
	return &BadgerBackend{}
}

// Initialize opens or creates the BadgerDB database at the given path.
func (b *BadgerBackend) Initialize(path string, readOnly bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	opts := badger.DefaultOptions(path).
		WithNumCompactors(2).
		WithLoggingLevel(badger.ERROR) // Suppress INFO/WARNING logs

	if readOnly {
		opts = opts.WithReadOnly(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return fmt.Errorf("opening badger DB: %w", err)
	}

	b.db = db
	b.readOnly = readOnly
	b.initialized = true
	b.hits.Store(0)
	b.misses.Store(0)

	return b.countEntries()
}

// countEntries recounts the cached entries from the database.
func (b *BadgerBackend) countEntries() error {
	b.entryCount = 0
	return b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefixParse)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			b.entryCount++
		}
		return nil
	})
}

// Close releases all resources held by the backend.
func (b *BadgerBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.db == nil {
		return nil
	}

	err := b.db.Close()
	b.db = nil
	b.initialized = false
	return err
}

// Get returns the cached parse result for key.
func (b *BadgerBackend) Get(ctx context.Context, key Key) (*parsers.ParseResult, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.initialized {
		return nil, false, ErrNotInitialized
	}
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	var result parsers.ParseResult
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(encodeKey(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &result)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		b.misses.Add(1)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading cache entry %s: %w", key.Path, err)
	}

	b.hits.Add(1)
	return &result, true, nil
}

// Put stores result under key.
func (b *BadgerBackend) Put(ctx context.Context, key Key, result *parsers.ParseResult) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.initialized {
		return ErrNotInitialized
	}
	if b.readOnly {
		return fmt.Errorf("writing cache entry %s: %w", key.Path, ErrReadOnly)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshaling parse result: %w", err)
	}

	k := encodeKey(key)
	err = b.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(k)
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			b.entryCount++
		case err != nil:
			return err
		}
		return txn.Set(k, data)
	})
	if err != nil {
		return fmt.Errorf("writing cache entry %s: %w", key.Path, err)
	}
	return nil
}

// Prune deletes the entries keep rejects.
func (b *BadgerBackend) Prune(ctx context.Context, keep func(Key) bool) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.initialized {
		return 0, ErrNotInitialized
	}
	if b.readOnly {
		return 0, fmt.Errorf("pruning cache: %w", ErrReadOnly)
	}

	var stale [][]byte
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefixParse)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			raw := it.Item().KeyCopy(nil)
			key, ok := decodeKey(raw)
			if !ok || !keep(key) {
				stale = append(stale, raw)
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scanning cache: %w", err)
	}

	wb := b.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range stale {
		if err := wb.Delete(k); err != nil {
			return 0, fmt.Errorf("deleting cache entry: %w", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, fmt.Errorf("flushing cache deletes: %w", err)
	}

	b.entryCount -= len(stale)
	return len(stale), nil
}

// Len returns the number of cached entries.
func (b *BadgerBackend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.entryCount
}

// Stats returns the lookup counters.
func (b *BadgerBackend) Stats() Stats {
	return Stats{Hits: b.hits.Load(), Misses: b.misses.Load()}
}

func encodeKey(key Key) []byte {
	var buf bytes.Buffer
	buf.WriteString(prefixParse)
	buf.WriteString(key.Language)
	buf.WriteString(keySep)
	buf.WriteString(key.Path)
	buf.WriteString(keySep)
	buf.WriteString(key.SHA256)
	return buf.Bytes()
}

func decodeKey(raw []byte) (Key, bool) {
	rest, ok := bytes.CutPrefix(raw, []byte(prefixParse))
	if !ok {
		return Key{}, false
	}
	parts := bytes.Split(rest, []byte(keySep))
	if len(parts) != 3 {
		return Key{}, false
	}
	return Key{Language: string(parts[0]), Path: string(parts[1]), SHA256: string(parts[2])}, true
}
