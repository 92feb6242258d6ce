// Package mcp provides the MCP (Model Context Protocol) server for calltree.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Benny93/calltree-go/internal/graph"
	"github.com/Benny93/calltree-go/internal/ingestion"
	"github.com/Benny93/calltree-go/internal/render"
	"github.com/Benny93/calltree-go/internal/storage"
	"github.com/Benny93/calltree-go/internal/traversal"
)

// Tool names.
const (
	ToolRender  = "calltree_render"
	ToolSymbols = "calltree_symbols"
)

const (
	formatsURI     = "calltree://formats"
	schemaTemplate = "calltree://schemas/{tool}"
	schemaPrefix   = "calltree://schemas/"
)

// Config holds what every tool call starts from.
type Config struct {
	// Root is the path scanned when a call names none. Relative tool paths
	// are resolved against it.
	Root string

	// Input is the ingestion input kind.
	Input string

	// Params are the traversal defaults a render call overrides. A zero
	// value means traversal.DefaultParams.
	Params traversal.Params

	// Render are the backend options.
	Render render.Options

	// Cache keeps parse results between calls. Nil disables caching.
	Cache storage.CacheBackend

	// Version is reported to clients.
	Version string

	Logger *slog.Logger
}

// Server represents the MCP server.
type Server struct {
	cfg    Config
	log    *slog.Logger
	server *mcp.Server
}

// RenderArgs are the arguments of the calltree_render tool.
type RenderArgs struct {
	Path      string   `json:"path,omitempty" jsonschema:"File or directory to scan; defaults to the server root"`
	Roots     []string `json:"roots,omitempty" jsonschema:"Functions the walk starts from; defaults to main"`
	Forward   *int     `json:"forward,omitempty" jsonschema:"How many calls to follow into callees; -1 is unbounded"`
	Backward  *int     `json:"backward,omitempty" jsonschema:"How many calls to follow into callers; -1 is unbounded"`
	Exclude   []string `json:"exclude,omitempty" jsonschema:"Functions to leave out; @library drops every symbol without a known file"`
	Highlight string   `json:"highlight,omitempty" jsonschema:"Function whose route back to the roots is highlighted"`
	Format    string   `json:"format,omitempty" jsonschema:"Output format: dot, mermaid or jsonl"`
	ShowFiles bool     `json:"show_files,omitempty" jsonschema:"Add the defining file to node labels"`
}

// SymbolsArgs are the arguments of the calltree_symbols tool.
type SymbolsArgs struct {
	Path string `json:"path,omitempty" jsonschema:"File or directory to scan; defaults to the server root"`
	Name string `json:"name,omitempty" jsonschema:"Only list symbols with this exact name"`
}

// NewServer creates a new MCP server.
func NewServer(cfg Config) *Server {
	if cfg.Root == "" {
		cfg.Root = "."
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if cfg.Params.Format == "" && len(cfg.Params.Roots) == 0 {
		cfg.Params = traversal.DefaultParams()
	}

	s := &Server{cfg: cfg, log: cfg.Logger}
	if s.log == nil {
		s.log = slog.New(slog.DiscardHandler)
	}

	s.server = mcp.NewServer(&mcp.Implementation{
		Name:    "calltree-go",
		Version: cfg.Version,
	}, nil)

	s.registerTools()
	s.registerResources()

	return s
}

// Run serves over stdin/stdout until the client disconnects or ctx is done.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Connect starts a session over transport and returns without waiting for it
// to end.
func (s *Server) Connect(ctx context.Context, transport mcp.Transport) (*mcp.ServerSession, error) {
	return s.server.Connect(ctx, transport, nil)
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        ToolRender,
		Description: "Scan source code and render the call tree around the given root functions as Graphviz, Mermaid or JSON lines.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, args RenderArgs) (*mcp.CallToolResult, any, error) {
		out, err := s.Render(ctx, args)
		if err != nil {
			return errorResult(err), nil, nil
		}
		return textResult(out), nil, nil
	})

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        ToolSymbols,
		Description: "List the functions found in the scanned source with their defining file and call counts.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, args SymbolsArgs) (*mcp.CallToolResult, any, error) {
		out, err := s.Symbols(ctx, args)
		if err != nil {
			return errorResult(err), nil, nil
		}
		return textResult(out), nil, nil
	})
}

func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         formatsURI,
		Name:        "Output Formats",
		Description: "Output formats accepted by calltree_render",
		MIMEType:    "text/plain",
	}, func(context.Context, *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{{
				URI:      formatsURI,
				MIMEType: "text/plain",
				Text:     strings.Join(render.Formats(), "\n") + "\n",
			}},
		}, nil
	})

	schemas := buildSchemaMap()
	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: schemaTemplate,
		Name:        "Tool Schema",
		Description: "JSON schema for the named tool's arguments",
		MIMEType:    "application/schema+json",
	}, func(_ context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		uri := req.Params.URI
		schema, ok := schemas[strings.TrimPrefix(uri, schemaPrefix)]
		if !ok {
			return nil, fmt.Errorf("unknown tool schema: %q", uri)
		}
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{{
				URI:      uri,
				MIMEType: "application/schema+json",
				Text:     schema,
			}},
		}, nil
	})
}

// Render scans args.Path and returns the rendered call tree.
func (s *Server) Render(ctx context.Context, args RenderArgs) (string, error) {
	params := s.cfg.Params
	if len(args.Roots) > 0 {
		params.Roots = args.Roots
	}
	if args.Forward != nil {
		params.ForwardDepth = traversal.Depth(*args.Forward)
	}
	if args.Backward != nil {
		params.BackwardDepth = traversal.Depth(*args.Backward)
	}
	if len(args.Exclude) > 0 {
		params.Exclude = args.Exclude
	}
	if args.Highlight != "" {
		params.Highlight = args.Highlight
	}
	if args.Format != "" {
		params.Format = args.Format
	}
	if err := params.Validate(); err != nil {
		return "", err
	}

	opts := s.cfg.Render
	opts.ShowFiles = opts.ShowFiles || args.ShowFiles

	store, err := s.load(ctx, args.Path)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	stats, err := render.Draw(store, params, &sb, opts, s.log)
	if err != nil {
		return "", err
	}
	s.log.Debug("rendered", "format", params.Format, "roots", stats.Roots, "nodes", stats.Nodes, "edges", stats.Edges)

	if stats.Roots == 0 {
		return "", fmt.Errorf("no function named %s found", strings.Join(params.Roots, " or "))
	}
	return sb.String(), nil
}

// Symbols scans args.Path and lists its symbols as markdown.
func (s *Server) Symbols(ctx context.Context, args SymbolsArgs) (string, error) {
	store, err := s.load(ctx, args.Path)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("# Symbols\n\n")
	count := 0
	for sym := range store.All() {
		if args.Name != "" && sym.Name != args.Name {
			continue
		}
		count++
		sb.WriteString(fmt.Sprintf("- **%s**", sym.Name))
		switch {
		case sym.Line > 0:
			sb.WriteString(fmt.Sprintf(" (%s:%d)", sym.File, sym.Line))
		case sym.HasFile():
			sb.WriteString(fmt.Sprintf(" (%s)", sym.File))
		default:
			sb.WriteString(" (library)")
		}
		sb.WriteString(fmt.Sprintf(" callers: %d, callees: %d\n", len(sym.Callers), len(sym.Callees)))
	}

	if count == 0 {
		if args.Name != "" {
			return fmt.Sprintf("No symbol named %q found\n", args.Name), nil
		}
		return "No symbols found\n", nil
	}
	sb.WriteString(fmt.Sprintf("\n%d symbol(s)\n", count))
	return sb.String(), nil
}

func (s *Server) load(ctx context.Context, path string) (*graph.Store, error) {
	switch {
	case path == "":
		path = s.cfg.Root
	case !filepath.IsAbs(path):
		path = filepath.Join(s.cfg.Root, path)
	}

	store, result, err := ingestion.Build(ctx, path, ingestion.Options{
		Input:  s.cfg.Input,
		Cache:  s.cfg.Cache,
		Logger: s.log,
	})
	if err != nil {
		return nil, err
	}
	s.log.Debug("scanned", "path", path, "files", result.Files, "symbols", result.Symbols, "cached", result.Cached)
	return store, nil
}

// buildSchemaMap maps tool names to the JSON schema of their arguments.
func buildSchemaMap() map[string]string {
	m := make(map[string]string)
	addSchema[RenderArgs](m, ToolRender)
	addSchema[SymbolsArgs](m, ToolSymbols)
	return m
}

func addSchema[T any](m map[string]string, name string) {
	schema, err := jsonschema.For[T](nil)
	if err != nil {
		return
	}
	schemaJSON, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return
	}
	m[name] = string(schemaJSON)
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func errorResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: "Error: " + err.Error()}},
		IsError: true,
	}
}
