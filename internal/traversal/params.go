// Package traversal turns a call-graph store into a pruned, depth-bounded
// stream of node and edge emissions for a render backend.
package traversal

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrBackend wraps every failure reported by a Renderer.
	ErrBackend = errors.New("render backend failure")

	// ErrInvalidConfiguration reports parameters the engine cannot run with.
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// LibraryMarker, when listed in Params.Exclude, excludes every symbol whose
// defining file is unknown.
const LibraryMarker = "@library"

// Depth bounds how many calls a scan follows in one direction.
type Depth int

// Unbounded lets a scan follow calls without limit.
const Unbounded Depth = -1

// next returns the depth left after following one more call.
func (d Depth) next() Depth {
	if d > 0 {
		return d - 1
	}
	return d
}

func (d Depth) String() string {
	if d < 0 {
		return "unbounded"
	}
	return strconv.Itoa(int(d))
}

// Params configures one traversal run.
type Params struct {
	// Roots are the function names scans start from. Every definition of a
	// root name is a root.
	Roots []string

	// ForwardDepth bounds the walk into callees.
	ForwardDepth Depth

	// BackwardDepth bounds the walk into callers.
	BackwardDepth Depth

	// Exclude lists function names dropped from the output. LibraryMarker
	// drops every file-less symbol.
	Exclude []string

	// Highlight names the function whose route back to the roots is drawn
	// highlighted. Empty disables highlighting.
	Highlight string

	// Format selects the render backend.
	Format string

	// Verbose enables progress logging.
	Verbose bool
}

// DefaultParams returns the parameters used when nothing is configured:
// root "main", unbounded callees, no callers, Graphviz output.
func DefaultParams() Params {
	return Params{
		Roots:         []string{"main"},
		ForwardDepth:  Unbounded,
		BackwardDepth: 0,
		Format:        "dot",
	}
}

// Validate checks the parameters the engine depends on.
func (p *Params) Validate() error {
	if p.ForwardDepth < Unbounded {
		return fmt.Errorf("%w: forward depth %d", ErrInvalidConfiguration, p.ForwardDepth)
	}
	if p.BackwardDepth < Unbounded {
		return fmt.Errorf("%w: backward depth %d", ErrInvalidConfiguration, p.BackwardDepth)
	}
	for _, root := range p.Roots {
		if root == "" {
			return fmt.Errorf("%w: empty root name", ErrInvalidConfiguration)
		}
	}
	return nil
}

// exclusion is the parsed form of Params.Exclude.
type exclusion struct {
	names   map[string]struct{}
	library bool
}

func newExclusion(list []string) exclusion {
	x := exclusion{names: make(map[string]struct{}, len(list))}
	for _, name := range list {
		if name == LibraryMarker {
			x.library = true
			continue
		}
		x.names[name] = struct{}{}
	}
	return x
}

func (x exclusion) has(name string) bool {
	_, ok := x.names[name]
	return ok
}
