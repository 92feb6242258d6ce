package graph

import (
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/Benny93/calltree-go/internal/rbtree"
)

var (
	// ErrDuplicate is returned by AddSymbol when the same name/file pair is
	// already stored.
	ErrDuplicate = rbtree.ErrDuplicate

	// ErrNotFound is returned by Find when no symbol matches.
	ErrNotFound = rbtree.ErrNotFound

	// ErrEmptyName is returned by AddSymbol for an empty function name.
	ErrEmptyName = errors.New("graph: empty symbol name")
)

// Store is the call-graph symbol index.
//
// Symbols are ordered by name, then by file, with file-less symbols after
// every filed symbol of the same name. Insertion matches exactly, so two
// definitions that share a name but live in different files stay distinct.
// Lookup is relaxed: a query without a file matches the first symbol of that
// name.
//
// A Store is not safe for concurrent use. It is built once and then handed to
// a single traversal run.
type Store struct {
	index   *rbtree.Tree[*Symbol]
	handles []rbtree.Handle
	symbols []*Symbol
	edges   int
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		index: rbtree.New(strictCompare, relaxedCompare),
	}
}

func compareSymbols(l, r *Symbol, ignoreFile bool) int {
	if c := strings.Compare(l.Name, r.Name); c != 0 {
		return c
	}

	switch {
	case l.File == "" && r.File == "":
		return 0
	case l.File == "":
		if ignoreFile {
			return 0
		}
		return 1
	case r.File == "":
		return -1
	}

	return strings.Compare(l.File, r.File)
}

func strictCompare(l, r *Symbol) int {
	return compareSymbols(l, r, false)
}

func relaxedCompare(l, r *Symbol) int {
	return compareSymbols(l, r, true)
}

// Len returns the number of symbols.
func (s *Store) Len() int {
	return len(s.symbols)
}

// EdgeCount returns the number of recorded calls, duplicates included.
func (s *Store) EdgeCount() int {
	return s.edges
}

// AddSymbol stores a new symbol. On a duplicate the existing symbol is left
// untouched and ErrDuplicate is returned; merging is up to the caller.
func (s *Store) AddSymbol(name, file string) (*Symbol, error) {
	if name == "" {
		return nil, ErrEmptyName
	}

	sym := &Symbol{
		ID:   SymbolID(len(s.symbols)),
		Name: name,
		File: file,
	}

	h, err := s.index.Insert(sym)
	if err != nil {
		return nil, fmt.Errorf("adding %s: %w", sym, err)
	}

	s.symbols = append(s.symbols, sym)
	s.handles = append(s.handles, h)
	return sym, nil
}

// Find looks a symbol up by name. With an empty file the first symbol of that
// name in index order is returned; otherwise the file must match.
func (s *Store) Find(name, file string) (*Symbol, error) {
	if name == "" {
		return nil, ErrNotFound
	}

	h, err := s.index.Find(&Symbol{Name: name, File: file})
	if err != nil {
		return nil, err
	}
	return s.index.Value(h), nil
}

// Resolve returns the symbol a call site from file refers to: a definition
// in the same file, else any definition of the name, else a new file-less
// symbol.
func (s *Store) Resolve(name, file string) (*Symbol, error) {
	if file != "" {
		if sym, err := s.Find(name, file); err == nil {
			return sym, nil
		}
	}
	if sym, err := s.Find(name, ""); err == nil {
		return sym, nil
	}
	return s.AddSymbol(name, "")
}

// Symbol returns the symbol with the given ID.
func (s *Store) Symbol(id SymbolID) *Symbol {
	return s.symbols[id]
}

// AddEdge records that caller calls callee. Self-calls, cycles and repeated
// calls are all recorded as given.
func (s *Store) AddEdge(caller, callee *Symbol) {
	caller.Callees = append(caller.Callees, callee.ID)
	callee.Callers = append(callee.Callers, caller.ID)
	s.edges++
}

// All yields every symbol in index order.
func (s *Store) All() iter.Seq[*Symbol] {
	return s.index.All()
}

// Named yields every symbol called name, in index order.
func (s *Store) Named(name string) iter.Seq[*Symbol] {
	return func(yield func(*Symbol) bool) {
		first, err := s.Find(name, "")
		if err != nil {
			return
		}
		for h, ok := s.handles[first.ID], true; ok; h, ok = s.index.Next(h) {
			sym := s.index.Value(h)
			if sym.Name != name || !yield(sym) {
				return
			}
		}
	}
}

// Callees yields the symbols called by sym, in call order.
func (s *Store) Callees(sym *Symbol) iter.Seq[*Symbol] {
	return s.neighbours(sym.Callees)
}

// Callers yields the symbols calling sym, in call order.
func (s *Store) Callers(sym *Symbol) iter.Seq[*Symbol] {
	return s.neighbours(sym.Callers)
}

func (s *Store) neighbours(ids []SymbolID) iter.Seq[*Symbol] {
	return func(yield func(*Symbol) bool) {
		for _, id := range ids {
			if !yield(s.symbols[id]) {
				return
			}
		}
	}
}

// Reset clears the Claimed and Expanded flags of every symbol. A non-nil
// color overwrites every symbol's colour and resetRoot clears Root.
func (s *Store) Reset(color *Color, resetRoot bool) {
	for _, sym := range s.symbols {
		sym.State.Claimed = false
		sym.State.Expanded = false
		if resetRoot {
			sym.State.Root = false
		}
		if color != nil {
			sym.State.Color = *color
		}
	}
}
