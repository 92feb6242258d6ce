// Package graph provides the call-graph data model for calltree.
//
// A Symbol is one function definition, or an unresolved reference when the
// defining file is unknown. Calls are recorded as adjacency lists on both
// ends of the relation; there is no separate edge record.
package graph

import "fmt"

// SymbolID addresses a Symbol inside its Store. IDs are dense and assigned in
// insertion order.
type SymbolID int

// ColorKind tells how a symbol was marked by the last traversal phase.
type ColorKind uint8

const (
	// ColorUnmarked is the plain style: never marked, or marked and then drawn
	// with the default style.
	ColorUnmarked ColorKind = iota

	// ColorReachable means the symbol was reached from a root but has not been
	// drawn yet.
	ColorReachable

	// ColorHighlighted means the symbol lies on a highlight path.
	ColorHighlighted
)

// Color is the per-run marking of a symbol.
type Color struct {
	Kind ColorKind

	// Level distinguishes highlight styles; only meaningful for ColorHighlighted.
	Level int
}

var (
	// Unmarked is the default colour.
	Unmarked = Color{Kind: ColorUnmarked}

	// Reachable is the reachability sentinel.
	Reachable = Color{Kind: ColorReachable}
)

// Highlighted returns the highlight colour of the given level.
func Highlighted(level int) Color {
	return Color{Kind: ColorHighlighted, Level: level}
}

// IsHighlighted reports whether c is a highlight colour.
func (c Color) IsHighlighted() bool {
	return c.Kind == ColorHighlighted
}

func (c Color) String() string {
	switch c.Kind {
	case ColorReachable:
		return "reachable"
	case ColorHighlighted:
		return fmt.Sprintf("highlight(%d)", c.Level)
	default:
		return "default"
	}
}

// TraversalState is the transient, per-run bookkeeping of a symbol. It is
// owned by the traversal engine and reset at every phase boundary.
type TraversalState struct {
	// Claimed is set once the symbol has been emitted, either as a node or as
	// the target of an edge. A claimed symbol never becomes an edge target
	// again in the same pass.
	Claimed bool

	// Expanded is set once the callers/callees of the symbol were walked.
	Expanded bool

	// Root marks symbols whose name is one of the configured roots.
	Root bool

	Color Color
}

// Symbol is a node of the call graph.
type Symbol struct {
	// ID is the arena index of the symbol in its Store.
	ID SymbolID

	// Name is the function name, e.g. "main" or "Server.Run".
	Name string

	// File is the defining file. Empty means library or unresolved.
	File string

	// Line is the definition line when the scanner knows it.
	Line int

	// Callees lists called symbols in the order the calls were recorded.
	Callees []SymbolID

	// Callers lists calling symbols in the order the calls were recorded.
	Callers []SymbolID

	State TraversalState
}

// HasFile reports whether the defining file of the symbol is known.
func (s *Symbol) HasFile() bool {
	return s.File != ""
}

// String returns "name" or "name@file".
func (s *Symbol) String() string {
	if s.File == "" {
		return s.Name
	}
	return s.Name + "@" + s.File
}
