package traversal

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Benny93/calltree-go/internal/graph"
)

// request tells the emit primitives whether they mark symbols with a colour
// or hand them to the renderer.
type request struct {
	render bool
	color  graph.Color
}

func mark(c graph.Color) request {
	return request{color: c}
}

var renderRequest = request{render: true}

func (r request) marksReachable() bool {
	return !r.render && r.color == graph.Reachable
}

func (r request) marksHighlight() bool {
	return !r.render && r.color.IsHighlighted()
}

// Stats counts what a run sent to the renderer.
type Stats struct {
	Roots int
	Nodes int
	Edges int
}

type engine struct {
	store    *graph.Store
	params   *Params
	renderer Renderer
	exclude  exclusion
	log      *slog.Logger
	stats    Stats
}

// Run renders the part of store selected by params.
//
// It runs in five phases over the whole store: reset every symbol, flag the
// roots, mark what each root reaches within the configured depths, colour the
// route from the highlight target back to the roots, and finally walk from
// the roots again sending every marked symbol and call to renderer exactly
// once. A symbol that has been drawn, as a node or as the target of an edge,
// is never the target of another edge in the same run.
//
// The first renderer failure stops the walk. Close is always attempted and
// its own failure is returned only when nothing failed before it.
func Run(store *graph.Store, params Params, renderer Renderer, logger *slog.Logger) (Stats, error) {
	if err := params.Validate(); err != nil {
		return Stats{}, err
	}
	if renderer == nil {
		return Stats{}, fmt.Errorf("%w: no renderer", ErrInvalidConfiguration)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	e := &engine{
		store:    store,
		params:   &params,
		renderer: renderer,
		exclude:  newExclusion(params.Exclude),
		log:      logger,
	}

	err := e.renderer.Open(store, e.params)
	if err != nil {
		err = fmt.Errorf("%w: opening output: %w", ErrBackend, err)
	} else {
		err = e.emit()
	}

	if cerr := e.renderer.Close(store, e.params); cerr != nil && err == nil {
		err = fmt.Errorf("%w: closing output: %w", ErrBackend, cerr)
	}

	return e.stats, err
}

func (e *engine) emit() error {
	e.store.Reset(&graph.Unmarked, true)

	for _, name := range e.params.Roots {
		for sym := range e.store.Named(name) {
			sym.State.Root = true
			e.stats.Roots++
		}
	}
	e.trace("roots flagged", "names", e.params.Roots, "symbols", e.stats.Roots)

	for sym := range e.store.All() {
		if !sym.State.Root {
			continue
		}
		e.store.Reset(nil, false)
		if err := e.expand(sym, e.params.ForwardDepth, e.params.BackwardDepth, mark(graph.Reachable)); err != nil {
			return err
		}
	}
	e.trace("reachability marked",
		"forward", e.params.ForwardDepth.String(),
		"backward", e.params.BackwardDepth.String())

	if e.params.Highlight != "" {
		targets := 0
		for sym := range e.store.Named(e.params.Highlight) {
			e.store.Reset(nil, false)
			// Walking from the target towards the roots inverts the directions.
			if err := e.expand(sym, e.params.BackwardDepth, e.params.ForwardDepth, mark(graph.Highlighted(1))); err != nil {
				return err
			}
			targets++
		}
		e.trace("highlight path coloured", "target", e.params.Highlight, "definitions", targets)
	}

	e.store.Reset(nil, false)
	for sym := range e.store.All() {
		if !sym.State.Root {
			continue
		}
		if err := e.expand(sym, e.params.ForwardDepth, e.params.BackwardDepth, renderRequest); err != nil {
			return err
		}
	}
	e.trace("emission done", "nodes", e.stats.Nodes, "edges", e.stats.Edges)

	return nil
}

// trace logs a phase boundary, at Info when the run is verbose.
func (e *engine) trace(msg string, args ...any) {
	level := slog.LevelDebug
	if e.params.Verbose {
		level = slog.LevelInfo
	}
	e.log.Log(context.Background(), level, msg, args...)
}

// setColor applies a marking colour. Only the reachability sentinel may
// overwrite anything; other colours only replace the sentinel.
func setColor(sym *graph.Symbol, c graph.Color) {
	if c == graph.Reachable || sym.State.Color == graph.Reachable {
		sym.State.Color = c
	}
}

// settle turns a left-over reachability mark into the default style before
// the symbol is drawn.
func settle(sym *graph.Symbol) {
	if sym.State.Color == graph.Reachable {
		sym.State.Color = graph.Unmarked
	}
}

func (e *engine) excluded(sym *graph.Symbol) bool {
	return (e.exclude.library && !sym.HasFile()) || e.exclude.has(sym.Name)
}

func (e *engine) emitNode(sym *graph.Symbol, req request) error {
	if sym.State.Claimed {
		return nil
	}
	sym.State.Claimed = true

	if !req.render {
		setColor(sym, req.color)
		return nil
	}

	settle(sym)
	if err := e.renderer.Node(sym, e.params); err != nil {
		return fmt.Errorf("%w: rendering %s: %w", ErrBackend, sym, err)
	}
	e.stats.Nodes++
	return nil
}

func (e *engine) emitEdge(from, to *graph.Symbol, req request, reversed bool) error {
	if to.State.Claimed {
		return nil
	}
	if (e.exclude.library && !to.HasFile()) || e.exclude.has(from.Name) || e.exclude.has(to.Name) {
		return nil
	}
	to.State.Claimed = true

	if !req.render {
		setColor(to, req.color)
		return nil
	}

	settle(to)
	if err := e.renderer.Edge(from, to, e.params, reversed); err != nil {
		return fmt.Errorf("%w: rendering %s -> %s: %w", ErrBackend, from, to, err)
	}
	e.stats.Edges++
	return nil
}

// expand emits sym and walks its callees up to fdepth calls away and its
// callers up to bdepth calls away.
func (e *engine) expand(sym *graph.Symbol, fdepth, bdepth Depth, req request) error {
	if sym == nil || sym.State.Expanded {
		return nil
	}
	if e.excluded(sym) {
		return nil
	}

	if err := e.emitNode(sym, req); err != nil {
		return err
	}

	if req.marksReachable() && e.params.Highlight != "" && sym.Name == e.params.Highlight {
		return nil
	}
	if req.marksHighlight() && sym.State.Root {
		return nil
	}

	if fdepth != 0 {
		next := fdepth.next()
		for callee := range e.store.Callees(sym) {
			if err := e.follow(sym, callee, next, 0, req, false); err != nil {
				return err
			}
		}
	}

	if bdepth != 0 {
		next := bdepth.next()
		for caller := range e.store.Callers(sym) {
			if err := e.follow(sym, caller, 0, next, req, true); err != nil {
				return err
			}
		}
	}

	sym.State.Expanded = true
	return nil
}

// follow emits the edge from -> to and continues the scan at to. Forward and
// backward depths do not carry over into each other: a callee is only walked
// further into its callees, a caller only into its callers.
func (e *engine) follow(from, to *graph.Symbol, fdepth, bdepth Depth, req request, reversed bool) error {
	if to.State.Claimed {
		return nil
	}

	before := to.State.Color
	if err := e.emitEdge(from, to, req, reversed); err != nil {
		return err
	}

	// a self-call is drawn but does not consume depth
	if to == from {
		return nil
	}
	// the highlight path stays inside the marked subgraph
	if req.marksHighlight() && before == graph.Unmarked {
		return nil
	}

	return e.expand(to, fdepth, bdepth, req)
}
