package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"runtime"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Benny93/calltree-go/internal/graph"
	"github.com/Benny93/calltree-go/internal/parsers"
	"github.com/Benny93/calltree-go/internal/storage"
)

// Input selects which files a scan reads.
const (
	InputAuto  = "auto"
	InputEdges = "edges"
)

// ErrUnknownInput is returned for an Input other than InputAuto or InputEdges.
var ErrUnknownInput = errors.New("unknown input kind")

// ProgressCallback is called with phase name and progress (0.0-1.0).
type ProgressCallback func(phase string, progress float64)

// Options configures Build.
type Options struct {
	// Input is InputAuto (every supported language) or InputEdges (edge-list
	// files only). Empty means InputAuto.
	Input string

	// Cache stores parse results between runs. Nil disables caching.
	Cache storage.CacheBackend

	// Progress receives phase updates when set.
	Progress ProgressCallback

	// Logger receives debug and warning records. Nil discards them.
	Logger *slog.Logger
}

// Result summarizes a scan.
type Result struct {
	Files    int
	Parsed   int
	Cached   int
	Failed   int
	Symbols  int
	Edges    int
	Duration time.Duration
}

// parsed is the outcome of parsing one file.
type parsed struct {
	entry  FileEntry
	result *parsers.ParseResult
	cached bool
	err    error
}

// Build scans root and returns the call-graph store of everything found.
// Files that fail to parse are skipped and counted in Result.Failed.
func Build(ctx context.Context, root string, opts Options) (*graph.Store, *Result, error) {
	start := time.Now()
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	progress := opts.Progress
	if progress == nil {
		progress = func(string, float64) {}
	}

	only, err := languageFilter(opts.Input)
	if err != nil {
		return nil, nil, err
	}

	// Phase 1: File walking
	progress("Walking files", 0.0)
	patterns, err := loadGitignore(root)
	if err != nil {
		return nil, nil, fmt.Errorf("loading .gitignore: %w", err)
	}
	entries, err := WalkRepo(root, patterns, only)
	if err != nil {
		return nil, nil, fmt.Errorf("walking %s: %w", root, err)
	}
	progress("Walking files", 1.0)
	log.Debug("walked", "root", root, "files", len(entries))

	// Phase 2: Parsing
	progress("Parsing code", 0.0)
	files, err := parseAll(ctx, entries, opts.Cache)
	if err != nil {
		return nil, nil, err
	}
	progress("Parsing code", 1.0)

	result := &Result{Files: len(entries)}
	for _, f := range files {
		switch {
		case f.err != nil:
			result.Failed++
			log.Warn("skipping file", "file", f.entry.RelPath, "error", f.err)
		case f.cached:
			result.Cached++
		default:
			result.Parsed++
		}
	}
	pruneCache(ctx, opts.Cache, entries, log)

	// Phase 3: Definitions
	progress("Indexing definitions", 0.0)
	store := graph.NewStore()
	packages := make(map[string]bool)
	for _, f := range files {
		if f.result == nil {
			continue
		}
		packages[f.result.Package] = true
		for _, def := range f.result.Definitions {
			addDefinition(store, def, log)
		}
	}
	progress("Indexing definitions", 1.0)

	// Phase 4: Calls
	progress("Tracing calls", 0.0)
	for _, f := range files {
		if f.result == nil {
			continue
		}
		for _, call := range f.result.Calls {
			if err := addCall(store, call, f.result, packages); err != nil {
				log.Warn("skipping call", "file", f.entry.RelPath, "line", call.Line, "error", err)
			}
		}
	}
	progress("Tracing calls", 1.0)

	result.Symbols = store.Len()
	result.Edges = store.EdgeCount()
	result.Duration = time.Since(start)
	log.Debug("built call graph", "symbols", result.Symbols, "edges", result.Edges,
		"parsed", result.Parsed, "cached", result.Cached, "failed", result.Failed)

	return store, result, nil
}

func languageFilter(input string) (string, error) {
	switch input {
	case "", InputAuto:
		return "", nil
	case InputEdges:
		return parsers.NewEdgeListParser().Language(), nil
	default:
		return "", fmt.Errorf("%w %q", ErrUnknownInput, input)
	}
}

// parseAll parses entries concurrently. Results keep the walk order so the
// store is built deterministically.
func parseAll(ctx context.Context, entries []FileEntry, cache storage.CacheBackend) ([]parsed, error) {
	files := make([]parsed, len(entries))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, entry := range entries {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			files[i] = parseEntry(gCtx, entry, cache)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("parsing: %w", err)
	}
	return files, nil
}

func parseEntry(ctx context.Context, entry FileEntry, cache storage.CacheBackend) parsed {
	out := parsed{entry: entry}
	key := storage.Key{Language: entry.Language, Path: entry.RelPath, SHA256: entry.SHA256}

	if cache != nil {
		if result, ok, err := cache.Get(ctx, key); err == nil && ok {
			out.result = result
			out.cached = true
			return out
		}
	}

	parser, ok := parsers.ForPath(entry.RelPath)
	if !ok {
		out.err = fmt.Errorf("no parser for %s", entry.RelPath)
		return out
	}
	result, err := parser.Parse(entry.RelPath, entry.Content)
	if err != nil {
		out.err = err
		return out
	}
	out.result = result

	if cache != nil {
		// a read-only or closed cache only loses the speedup
		_ = cache.Put(ctx, key, result)
	}
	return out
}

// pruneCache drops cache entries for scanned paths whose content changed.
func pruneCache(ctx context.Context, cache storage.CacheBackend, entries []FileEntry, log *slog.Logger) {
	if cache == nil || len(entries) == 0 {
		return
	}

	current := make(map[string]string, len(entries))
	for _, entry := range entries {
		current[entry.RelPath] = entry.SHA256
	}
	removed, err := cache.Prune(ctx, func(key storage.Key) bool {
		sha, scanned := current[key.Path]
		return !scanned || sha == key.SHA256
	})
	switch {
	case errors.Is(err, storage.ErrReadOnly):
	case err != nil:
		log.Warn("pruning cache", "error", err)
	case removed > 0:
		log.Debug("pruned cache", "removed", removed)
	}
}

func addDefinition(store *graph.Store, def parsers.Definition, log *slog.Logger) {
	sym, err := store.AddSymbol(def.Name, def.File)
	if errors.Is(err, graph.ErrDuplicate) {
		// first definition wins, e.g. init or build-tagged variants
		log.Debug("duplicate definition", "name", def.Name, "file", def.File)
		return
	}
	if err != nil {
		log.Warn("skipping definition", "name", def.Name, "file", def.File, "error", err)
		return
	}
	sym.Line = def.StartLine
}

func addCall(store *graph.Store, call parsers.CallSite, result *parsers.ParseResult, packages map[string]bool) error {
	caller, err := store.Resolve(call.Caller, call.CallerFile)
	if err != nil {
		return fmt.Errorf("resolving caller %s: %w", call.Caller, err)
	}

	hint := call.File
	if hint == "" {
		hint = call.CallerFile
	}
	name := calleeName(call, result, packages)
	callee, err := store.Resolve(name, hint)
	if err != nil {
		return fmt.Errorf("resolving callee %s: %w", name, err)
	}

	store.AddEdge(caller, callee)
	return nil
}

// calleeName returns the store name of a call target. Calls into a scanned
// package use the plain function name; calls into anything else keep their
// qualifier so library symbols stay distinct.
func calleeName(call parsers.CallSite, result *parsers.ParseResult, packages map[string]bool) string {
	switch {
	case call.Receiver != "":
		return call.Target()
	case call.Package != "":
		if packages[lastElem(call.Package)] || packages[call.Qualifier] {
			return call.Name
		}
		return call.Target()
	}

	// from-imported names: "from util import helper" then helper()
	if imported, ok := result.PackageImports[call.Name]; ok {
		if i := strings.LastIndexByte(imported, '.'); i > 0 && packages[lastElem(imported[:i])] {
			return imported[i+1:]
		}
	}
	return call.Name
}

// lastElem returns the last element of an import path, either a Go path or a
// dotted Python module.
func lastElem(importPath string) string {
	elem := path.Base(importPath)
	if i := strings.LastIndexByte(elem, '.'); i >= 0 {
		elem = elem[i+1:]
	}
	return elem
}
