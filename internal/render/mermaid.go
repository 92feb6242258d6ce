package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/Benny93/calltree-go/internal/graph"
	"github.com/Benny93/calltree-go/internal/traversal"
)

// mermaid writes a Mermaid flowchart. Node IDs are derived from symbol IDs
// because function names may contain characters Mermaid rejects.
type mermaid struct {
	out   sink
	opts  Options
	links int
	hot   []int
}

func newMermaid(w io.Writer, opts Options) traversal.Renderer {
	return &mermaid{out: newSink(w), opts: opts}
}

var mermaidEscaper = strings.NewReplacer(
	`"`, "#quot;",
	"<", "&lt;",
	">", "&gt;",
)

func mermaidID(sym *graph.Symbol) string {
	return fmt.Sprintf("n%d", sym.ID)
}

func mermaidLabel(sym *graph.Symbol, showFiles bool) string {
	lines := strings.Split(label(sym, showFiles), "\n")
	for i, l := range lines {
		lines[i] = mermaidEscaper.Replace(l)
	}
	return strings.Join(lines, "<br/>")
}

func (m *mermaid) Open(*graph.Store, *traversal.Params) error {
	return m.out.printf("---\ntitle: %s\n---\nflowchart %s\n", m.opts.GraphName, m.opts.RankDir)
}

func (m *mermaid) Close(*graph.Store, *traversal.Params) error {
	err := m.out.printf("  classDef highlight stroke:%s,stroke-width:2px,color:%s\n", m.opts.HighlightColor, m.opts.HighlightColor)
	if err == nil {
		err = m.out.printf("  classDef library stroke-dasharray:5 5\n")
	}
	for _, i := range m.hot {
		if err != nil {
			break
		}
		err = m.out.printf("  linkStyle %d stroke:%s,stroke-width:2px\n", i, m.opts.HighlightColor)
	}
	if ferr := m.out.flush(); err == nil {
		err = ferr
	}
	return err
}

func (m *mermaid) Node(sym *graph.Symbol, _ *traversal.Params) error {
	return m.node(sym)
}

func (m *mermaid) Edge(from, to *graph.Symbol, _ *traversal.Params, reversed bool) error {
	if err := m.node(to); err != nil {
		return err
	}

	caller, callee := from, to
	if reversed {
		caller, callee = to, from
	}
	if from.State.Color.IsHighlighted() && to.State.Color.IsHighlighted() {
		m.hot = append(m.hot, m.links)
	}
	m.links++

	return m.out.printf("  %s --> %s\n", mermaidID(caller), mermaidID(callee))
}

func (m *mermaid) node(sym *graph.Symbol) error {
	class := ""
	switch {
	case sym.State.Color.IsHighlighted():
		class = ":::highlight"
	case !sym.HasFile():
		class = ":::library"
	}
	return m.out.printf("  %s[\"%s\"]%s\n", mermaidID(sym), mermaidLabel(sym, m.opts.ShowFiles), class)
}
