// Package render holds the diagram backends driven by the traversal engine.
package render

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/Benny93/calltree-go/internal/graph"
	"github.com/Benny93/calltree-go/internal/traversal"
)

// Options tunes the markup written by a backend.
type Options struct {
	// GraphName names the diagram where the format has a name slot.
	GraphName string

	// RankDir is the layout direction: TB, BT, LR or RL.
	RankDir string

	// HighlightColor is used for symbols and calls on the highlight path.
	HighlightColor string

	// ShowFiles adds the defining file to node labels.
	ShowFiles bool
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		GraphName:      "calltree",
		RankDir:        "LR",
		HighlightColor: "red",
	}
}

var rankDirs = []string{"TB", "BT", "LR", "RL"}

var constructors = map[string]func(io.Writer, Options) traversal.Renderer{
	"dot":     newDot,
	"mermaid": newMermaid,
	"jsonl":   newJSONL,
}

// Formats lists the supported output formats.
func Formats() []string {
	names := make([]string, 0, len(constructors))
	for name := range constructors {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// New returns the backend for format writing to w.
func New(format string, w io.Writer, opts Options) (traversal.Renderer, error) {
	ctor, ok := constructors[strings.ToLower(format)]
	if !ok {
		return nil, fmt.Errorf("%w: unknown output format %q (want one of %s)",
			traversal.ErrInvalidConfiguration, format, strings.Join(Formats(), ", "))
	}

	def := DefaultOptions()
	if opts.GraphName == "" {
		opts.GraphName = def.GraphName
	}
	if opts.HighlightColor == "" {
		opts.HighlightColor = def.HighlightColor
	}
	opts.RankDir = strings.ToUpper(opts.RankDir)
	if opts.RankDir == "" {
		opts.RankDir = def.RankDir
	}
	if !slices.Contains(rankDirs, opts.RankDir) {
		return nil, fmt.Errorf("%w: unknown rank direction %q", traversal.ErrInvalidConfiguration, opts.RankDir)
	}

	return ctor(w, opts), nil
}

// Draw renders store to w with the backend named by params.Format.
func Draw(store *graph.Store, params traversal.Params, w io.Writer, opts Options, logger *slog.Logger) (traversal.Stats, error) {
	renderer, err := New(params.Format, w, opts)
	if err != nil {
		return traversal.Stats{}, err
	}
	return traversal.Run(store, params, renderer, logger)
}

// sink buffers the output of a backend. Close flushes it.
type sink struct {
	w *bufio.Writer
}

func newSink(w io.Writer) sink {
	return sink{w: bufio.NewWriter(w)}
}

func (s sink) printf(format string, args ...any) error {
	_, err := fmt.Fprintf(s.w, format, args...)
	return err
}

func (s sink) flush() error {
	return s.w.Flush()
}
