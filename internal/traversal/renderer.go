package traversal

import "github.com/Benny93/calltree-go/internal/graph"

// Renderer is a diagram backend. The engine calls Open once, then Node and
// Edge in traversal order, then Close.
//
// Node and Edge receive symbols whose State.Color is final: ColorUnmarked for
// the default style, ColorHighlighted for symbols on the highlight path.
type Renderer interface {
	// Open prepares the output, e.g. writes a diagram header.
	Open(store *graph.Store, params *Params) error

	// Close finalizes the output. It is called even when Open failed.
	Close(store *graph.Store, params *Params) error

	// Node draws one symbol.
	Node(sym *graph.Symbol, params *Params) error

	// Edge draws the call relation between from and to. When reversed is set
	// the scan walked from callee to caller: to is the caller and the arrow
	// must still point from caller to callee.
	Edge(from, to *graph.Symbol, params *Params, reversed bool) error
}
