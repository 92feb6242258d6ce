// Package cmd provides CLI command implementations for calltree.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/fatih/color"

	"github.com/Benny93/calltree-go/internal/graph"
	"github.com/Benny93/calltree-go/internal/ingestion"
	"github.com/Benny93/calltree-go/internal/render"
	"github.com/Benny93/calltree-go/internal/storage"
	"github.com/Benny93/calltree-go/internal/traversal"
	"github.com/Benny93/calltree-go/mcp"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Globals are the flags shared by every command.
type Globals struct {
	Version kong.VersionFlag `help:"Show version information"`
	Config  kong.ConfigFlag  `help:"Load flag values from a JSON file" placeholder:"FILE"`
	Verbose bool             `short:"v" help:"Enable verbose output"`
	Quiet   bool             `short:"q" help:"Suppress non-essential output"`

	stdout io.Writer `kong:"-"`
	stderr io.Writer `kong:"-"`
}

func (g *Globals) out() io.Writer {
	if g.stdout == nil {
		return os.Stdout
	}
	return g.stdout
}

func (g *Globals) errOut() io.Writer {
	if g.stderr == nil {
		return os.Stderr
	}
	return g.stderr
}

// logger writes diagnostics to stderr: warnings by default, everything with
// --verbose, errors only with --quiet.
func (g *Globals) logger() *slog.Logger {
	level := slog.LevelWarn
	switch {
	case g.Verbose:
		level = slog.LevelDebug
	case g.Quiet:
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(g.errOut(), &slog.HandlerOptions{Level: level}))
}

// status prints a coloured progress line to stderr unless --quiet is set.
// stdout is left to the diagram.
func (g *Globals) status(c *color.Color, format string, args ...any) {
	if g.Quiet {
		return
	}
	_, _ = c.Fprintf(g.errOut(), format+"\n", args...)
}

// ScanFlags select what is scanned and where parse results are kept.
type ScanFlags struct {
	Input string `enum:"auto,edges" default:"auto" help:"Input kind: auto (Go and Python sources) or edges (edge-list files)"`
	Cache string `type:"path" placeholder:"DIR" help:"Keep parse results in a badger database under DIR"`
}

// openCache opens the badger cache named by --cache. Without one it returns
// fallback, which may be nil. The returned function releases the cache.
func (f ScanFlags) openCache(fallback storage.CacheBackend) (storage.CacheBackend, func(), error) {
	if f.Cache == "" {
		return fallback, func() {}, nil
	}
	if err := os.MkdirAll(f.Cache, 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating cache directory: %w", err)
	}
	cache := storage.NewBadgerBackend()
	if err := cache.Initialize(f.Cache, false); err != nil {
		return nil, nil, fmt.Errorf("opening cache: %w", err)
	}
	return cache, func() { _ = cache.Close() }, nil
}

func (f ScanFlags) build(ctx context.Context, path string, cache storage.CacheBackend, log *slog.Logger) (*graph.Store, *ingestion.Result, error) {
	store, result, err := ingestion.Build(ctx, path, ingestion.Options{
		Input:  f.Input,
		Cache:  cache,
		Logger: log,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("scanning %s: %w", path, err)
	}
	log.Debug("scan complete",
		"files", result.Files,
		"parsed", result.Parsed,
		"cached", result.Cached,
		"failed", result.Failed,
		"symbols", result.Symbols,
		"calls", result.Edges,
		"duration", result.Duration)
	return store, result, nil
}

// TreeFlags select which part of the call graph is drawn.
type TreeFlags struct {
	Roots     []string `short:"r" name:"root" default:"main" help:"Function the tree starts from (repeatable)"`
	Forward   int      `short:"f" default:"-1" help:"Calls to follow into callees; -1 is unbounded"`
	Backward  int      `short:"b" default:"0" help:"Calls to follow into callers; -1 is unbounded"`
	Exclude   []string `short:"x" help:"Function to leave out; @library drops every symbol without a known file (repeatable)"`
	Highlight string   `short:"p" help:"Function whose route back to the roots is highlighted"`
	Format    string   `short:"F" default:"dot" enum:"dot,mermaid,jsonl" help:"Output format: dot, mermaid or jsonl"`
}

func (f TreeFlags) params(verbose bool) traversal.Params {
	return traversal.Params{
		Roots:         f.Roots,
		ForwardDepth:  traversal.Depth(f.Forward),
		BackwardDepth: traversal.Depth(f.Backward),
		Exclude:       f.Exclude,
		Highlight:     f.Highlight,
		Format:        f.Format,
		Verbose:       verbose,
	}
}

// ViewFlags tune the markup.
type ViewFlags struct {
	ShowFiles      bool   `help:"Add the defining file and line to node labels"`
	HighlightColor string `default:"red" help:"Colour of the highlighted route"`
	RankDir        string `name:"rankdir" default:"LR" help:"Layout direction: TB, BT, LR or RL"`
	GraphName      string `default:"calltree" help:"Name of the diagram"`
}

func (f ViewFlags) options() render.Options {
	return render.Options{
		GraphName:      f.GraphName,
		RankDir:        f.RankDir,
		HighlightColor: f.HighlightColor,
		ShowFiles:      f.ShowFiles,
	}
}

// RenderCmd scans a source tree and writes its call tree.
type RenderCmd struct {
	Path   string `arg:"" optional:"" default:"." help:"File or directory to scan"`
	Output string `short:"o" type:"path" help:"Write to this file instead of stdout"`

	ScanFlags `embed:""`
	TreeFlags `embed:""`
	ViewFlags `embed:""`
}

// Run executes the render command.
func (c *RenderCmd) Run(g *Globals) error {
	log := g.logger()
	params := c.params(g.Verbose)
	if err := params.Validate(); err != nil {
		return err
	}

	cache, release, err := c.openCache(nil)
	if err != nil {
		return err
	}
	defer release()

	store, result, err := c.build(context.Background(), c.Path, cache, log)
	if err != nil {
		return err
	}

	stats, err := draw(store, params, c.Output, c.options(), g.out(), log)
	if err != nil {
		return err
	}

	// every drawn call claims its callee, so nodes plus edges is the function count
	g.status(color.New(color.FgGreen), "✓ Drew %d functions and %d calls from %d files (%d cached)",
		stats.Nodes+stats.Edges, stats.Edges, result.Files, result.Cached)
	return nil
}

// draw renders store to the file at output, or to stdout when output is
// empty. A run that found none of the roots is an error.
func draw(store *graph.Store, params traversal.Params, output string, opts render.Options, stdout io.Writer, log *slog.Logger) (traversal.Stats, error) {
	w := stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return traversal.Stats{}, fmt.Errorf("creating output: %w", err)
		}
		defer func() { _ = f.Close() }()
		w = f
	}

	stats, err := render.Draw(store, params, w, opts, log)
	if err != nil {
		return stats, err
	}
	if stats.Roots == 0 {
		return stats, fmt.Errorf("no function named %s found", strings.Join(params.Roots, " or "))
	}
	return stats, nil
}

// SymbolsCmd lists the functions found in a source tree.
type SymbolsCmd struct {
	Path string `arg:"" optional:"" default:"." help:"File or directory to scan"`
	Name string `help:"Only list symbols with this exact name"`

	ScanFlags `embed:""`
}

// Run executes the symbols command.
func (c *SymbolsCmd) Run(g *Globals) error {
	log := g.logger()
	cache, release, err := c.openCache(nil)
	if err != nil {
		return err
	}
	defer release()

	store, _, err := c.build(context.Background(), c.Path, cache, log)
	if err != nil {
		return err
	}

	w := g.out()
	bold := color.New(color.Bold)
	fileColor := color.New(color.FgCyan)
	libColor := color.New(color.FgYellow)

	count := 0
	for sym := range store.All() {
		if c.Name != "" && sym.Name != c.Name {
			continue
		}
		count++

		var where string
		switch {
		case sym.Line > 0:
			where = fileColor.Sprintf("%s:%d", sym.File, sym.Line)
		case sym.HasFile():
			where = fileColor.Sprint(sym.File)
		default:
			where = libColor.Sprint("(library)")
		}
		fmt.Fprintf(w, "%s  %s  callers: %d, callees: %d\n",
			bold.Sprint(sym.Name), where, len(sym.Callers), len(sym.Callees))
	}

	if count == 0 {
		if c.Name != "" {
			return fmt.Errorf("no function named %s found", c.Name)
		}
		g.status(color.New(color.FgYellow), "No symbols found")
		return nil
	}
	g.status(color.New(color.FgGreen), "%d symbol(s)", count)
	return nil
}

// WatchCmd renders once and again whenever a scanned file changes.
type WatchCmd struct {
	Path     string        `arg:"" optional:"" default:"." help:"File or directory to watch"`
	Output   string        `short:"o" type:"path" help:"Write to this file instead of stdout"`
	Debounce time.Duration `default:"500ms" help:"Quiet period before changes are re-rendered"`

	ScanFlags `embed:""`
	TreeFlags `embed:""`
	ViewFlags `embed:""`
}

// Run executes the watch command until interrupted.
func (c *WatchCmd) Run(g *Globals) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return c.watch(ctx, g)
}

func (c *WatchCmd) watch(ctx context.Context, g *Globals) error {
	log := g.logger()
	params := c.params(g.Verbose)
	if err := params.Validate(); err != nil {
		return err
	}

	cache, release, err := c.openCache(storage.NewMemoryBackend())
	if err != nil {
		return err
	}
	defer release()

	redraw := func(ctx context.Context) error {
		store, result, err := c.build(ctx, c.Path, cache, log)
		if err != nil {
			return err
		}
		stats, err := draw(store, params, c.Output, c.options(), g.out(), log)
		if err != nil {
			return err
		}
		g.status(color.New(color.FgGreen), "✓ %d calls drawn from %d files (%d re-parsed)",
			stats.Edges, result.Files, result.Parsed)
		return nil
	}

	if err := redraw(ctx); err != nil {
		// a missing root may show up with the next edit
		g.status(color.New(color.FgYellow), "%v", err)
	}

	path, err := filepath.Abs(c.Path)
	if err != nil {
		return fmt.Errorf("resolving path: %w", err)
	}
	g.status(color.New(color.FgCyan), "Watching %s (Ctrl+C to stop)", path)

	err = ingestion.WatchRepo(ctx, path, c.Debounce, log, func(ctx context.Context, changed []string) error {
		g.status(color.New(color.FgCyan), "Changed: %s", strings.Join(changed, ", "))
		return redraw(ctx)
	})
	if errors.Is(err, context.Canceled) {
		g.status(color.New(color.FgYellow), "Stopped watching")
		return nil
	}
	return err
}

// MCPCmd starts the MCP server.
type MCPCmd struct {
	Path string `arg:"" optional:"" default:"." help:"Directory tool calls scan by default"`

	ScanFlags `embed:""`
	ViewFlags `embed:""`
}

// Run executes the mcp command.
func (c *MCPCmd) Run(g *Globals) error {
	cache, release, err := c.openCache(storage.NewMemoryBackend())
	if err != nil {
		return err
	}
	defer release()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// stdout carries JSON-RPC; logs go to stderr.
	server := mcp.NewServer(mcp.Config{
		Root:    c.Path,
		Input:   c.Input,
		Render:  c.options(),
		Cache:   cache,
		Version: Version,
		Logger:  g.logger(),
	})
	return server.Run(ctx)
}

// CLI is the root Kong command structure.
type CLI struct {
	Globals

	// Commands
	Render  RenderCmd  `cmd:"" default:"withargs" help:"Render the call tree of a source tree"`
	Symbols SymbolsCmd `cmd:"" help:"List the functions found in a source tree"`
	Watch   WatchCmd   `cmd:"" help:"Re-render the call tree whenever a file changes"`
	MCP     MCPCmd     `cmd:"" help:"Start MCP server (stdio transport)"`
}

// NewCLI creates a new CLI instance.
func NewCLI() *CLI {
	return &CLI{}
}

// Execute parses command-line arguments and executes the selected command.
func (c *CLI) Execute(args []string) error {
	parser, err := kong.New(c,
		kong.Name("calltree"),
		kong.Description("Call-graph renderer for Go, Python and edge-list sources"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Configuration(kong.JSON, ".calltree.json", "~/.calltree.json"),
		kong.Vars{
			"version": Version,
		},
	)
	if err != nil {
		return err
	}

	kongCtx, err := parser.Parse(args)
	if err != nil {
		return err
	}
	return kongCtx.Run(&c.Globals)
}
