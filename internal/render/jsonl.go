package render

import (
	"encoding/json"
	"io"

	"github.com/Benny93/calltree-go/internal/graph"
	"github.com/Benny93/calltree-go/internal/traversal"
)

// Record is one line of jsonl output. Type is "open", "node", "edge" or
// "close".
type Record struct {
	Type string `json:"type"`

	// open
	Graph    string   `json:"graph,omitempty"`
	Roots    []string `json:"roots,omitempty"`
	Forward  string   `json:"forward,omitempty"`
	Backward string   `json:"backward,omitempty"`

	// node, and the newly drawn end of an edge
	Symbol *SymbolRecord `json:"symbol,omitempty"`

	// edge: Caller and Callee follow the call direction whatever way the scan
	// went.
	Caller   *SymbolRecord `json:"caller,omitempty"`
	Callee   *SymbolRecord `json:"callee,omitempty"`
	Reversed bool          `json:"reversed,omitempty"`

	// close
	Nodes int `json:"nodes,omitempty"`
	Edges int `json:"edges,omitempty"`
}

// SymbolRecord describes a symbol inside a Record.
type SymbolRecord struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	File      string `json:"file,omitempty"`
	Line      int    `json:"line,omitempty"`
	Highlight int    `json:"highlight,omitempty"`
}

func symbolRecord(sym *graph.Symbol) *SymbolRecord {
	r := &SymbolRecord{
		ID:   int(sym.ID),
		Name: sym.Name,
		File: sym.File,
		Line: sym.Line,
	}
	if sym.State.Color.IsHighlighted() {
		r.Highlight = sym.State.Color.Level
	}
	return r
}

// jsonl streams one JSON object per renderer call.
type jsonl struct {
	out   sink
	enc   *json.Encoder
	opts  Options
	nodes int
	edges int
}

func newJSONL(w io.Writer, opts Options) traversal.Renderer {
	out := newSink(w)
	return &jsonl{out: out, enc: json.NewEncoder(out.w), opts: opts}
}

func (j *jsonl) Open(_ *graph.Store, params *traversal.Params) error {
	return j.enc.Encode(Record{
		Type:     "open",
		Graph:    j.opts.GraphName,
		Roots:    params.Roots,
		Forward:  params.ForwardDepth.String(),
		Backward: params.BackwardDepth.String(),
	})
}

func (j *jsonl) Close(*graph.Store, *traversal.Params) error {
	err := j.enc.Encode(Record{Type: "close", Nodes: j.nodes, Edges: j.edges})
	if ferr := j.out.flush(); err == nil {
		err = ferr
	}
	return err
}

func (j *jsonl) Node(sym *graph.Symbol, _ *traversal.Params) error {
	j.nodes++
	return j.enc.Encode(Record{Type: "node", Symbol: symbolRecord(sym)})
}

func (j *jsonl) Edge(from, to *graph.Symbol, _ *traversal.Params, reversed bool) error {
	j.nodes++
	j.edges++

	caller, callee := from, to
	if reversed {
		caller, callee = to, from
	}
	return j.enc.Encode(Record{
		Type:     "edge",
		Symbol:   symbolRecord(to),
		Caller:   symbolRecord(caller),
		Callee:   symbolRecord(callee),
		Reversed: reversed,
	})
}
