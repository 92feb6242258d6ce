package render

import (
	"io"
	"strconv"
	"strings"

	"github.com/Benny93/calltree-go/internal/graph"
	"github.com/Benny93/calltree-go/internal/traversal"
)

// dot writes a Graphviz digraph.
type dot struct {
	out  sink
	opts Options
}

func newDot(w io.Writer, opts Options) traversal.Renderer {
	return &dot{out: newSink(w), opts: opts}
}

var dotEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"\n", `\n`,
)

func dotQuote(s string) string {
	return `"` + dotEscaper.Replace(s) + `"`
}

func (d *dot) Open(*graph.Store, *traversal.Params) error {
	return d.out.printf("digraph %s {\n  rankdir=%s;\n  node [shape=box];\n",
		dotQuote(d.opts.GraphName), d.opts.RankDir)
}

func (d *dot) Close(*graph.Store, *traversal.Params) error {
	if err := d.out.printf("}\n"); err != nil {
		return err
	}
	return d.out.flush()
}

func (d *dot) Node(sym *graph.Symbol, _ *traversal.Params) error {
	return d.node(sym)
}

// Edge declares the target first: the engine never passes an edge target to
// Node.
func (d *dot) Edge(from, to *graph.Symbol, _ *traversal.Params, reversed bool) error {
	if err := d.node(to); err != nil {
		return err
	}

	var attrs []string
	if reversed {
		attrs = append(attrs, "dir=back")
	}
	if from.State.Color.IsHighlighted() && to.State.Color.IsHighlighted() {
		attrs = append(attrs, "color="+dotQuote(d.opts.HighlightColor))
	}

	return d.out.printf("  %s -> %s%s;\n", dotQuote(from.String()), dotQuote(to.String()), dotAttrs(attrs))
}

func (d *dot) node(sym *graph.Symbol) error {
	attrs := []string{"label=" + dotQuote(label(sym, d.opts.ShowFiles))}
	if sym.State.Color.IsHighlighted() {
		c := dotQuote(d.opts.HighlightColor)
		attrs = append(attrs, "color="+c, "fontcolor="+c)
	}
	if !sym.HasFile() {
		attrs = append(attrs, "style=dashed")
	}

	return d.out.printf("  %s%s;\n", dotQuote(sym.String()), dotAttrs(attrs))
}

func dotAttrs(attrs []string) string {
	if len(attrs) == 0 {
		return ""
	}
	return " [" + strings.Join(attrs, ", ") + "]"
}

// label is the display text of a symbol: its name, and with showFiles the
// defining file and line on a second line.
func label(sym *graph.Symbol, showFiles bool) string {
	if !showFiles || !sym.HasFile() {
		return sym.Name
	}
	if sym.Line > 0 {
		return sym.Name + "\n" + sym.File + ":" + strconv.Itoa(sym.Line)
	}
	return sym.Name + "\n" + sym.File
}
