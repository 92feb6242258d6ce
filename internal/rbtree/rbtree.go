// Package rbtree provides an ordered index backed by a red-black tree.
//
// Elements are ordered by a caller-supplied insert comparator. Lookups use a
// separate find comparator so a probe may match more loosely than an insert
// would; the matches of a find comparator must form a contiguous run in
// insert order. The tree only grows: there is no delete.
//
// Nodes live in an arena slice and link to each other by index, so a Handle
// stays valid for the whole lifetime of the tree.
package rbtree

import (
	"errors"
	"iter"
)

var (
	// ErrDuplicate is returned by Insert when an equal element is already stored.
	ErrDuplicate = errors.New("rbtree: duplicate element")

	// ErrNotFound is returned by Find when no element matches the probe.
	ErrNotFound = errors.New("rbtree: element not found")
)

// Compare orders a against b: negative when a sorts first, zero when they
// are equal, positive otherwise.
type Compare[T any] func(a, b T) int

// Handle addresses a stored element.
type Handle int

// Nil is the handle of no element.
const Nil Handle = -1

type node[T any] struct {
	value  T
	parent Handle
	left   Handle
	right  Handle
	red    bool
}

// Tree is a red-black tree of T values. The zero value is not usable; call New.
type Tree[T any] struct {
	nodes     []node[T]
	root      Handle
	insertCmp Compare[T]
	findCmp   Compare[T]
}

// New creates an empty tree. A nil findCmp falls back to insertCmp.
func New[T any](insertCmp, findCmp Compare[T]) *Tree[T] {
	if findCmp == nil {
		findCmp = insertCmp
	}
	return &Tree[T]{
		root:      Nil,
		insertCmp: insertCmp,
		findCmp:   findCmp,
	}
}

// Len returns the number of stored elements.
func (t *Tree[T]) Len() int {
	return len(t.nodes)
}

// Value returns the element stored at h.
func (t *Tree[T]) Value(h Handle) T {
	return t.nodes[h].value
}

// Insert stores v and returns its handle. If an element equal to v under the
// insert comparator exists, the tree is left untouched and ErrDuplicate is
// returned.
func (t *Tree[T]) Insert(v T) (Handle, error) {
	parent := Nil
	c := 0
	for x := t.root; x != Nil; {
		c = t.insertCmp(v, t.nodes[x].value)
		if c == 0 {
			return Nil, ErrDuplicate
		}
		parent = x
		if c < 0 {
			x = t.nodes[x].left
		} else {
			x = t.nodes[x].right
		}
	}

	h := Handle(len(t.nodes))
	t.nodes = append(t.nodes, node[T]{
		value:  v,
		parent: parent,
		left:   Nil,
		right:  Nil,
		red:    true,
	})

	switch {
	case parent == Nil:
		t.root = h
	case c < 0:
		t.nodes[parent].left = h
	default:
		t.nodes[parent].right = h
	}

	t.fixInsert(h)
	return h, nil
}

// fixInsert restores the red-black properties after x was attached as a red leaf.
func (t *Tree[T]) fixInsert(x Handle) {
	for x != t.root && t.isRed(t.nodes[x].parent) {
		p := t.nodes[x].parent
		g := t.nodes[p].parent
		if g == Nil {
			break
		}

		if p == t.nodes[g].left {
			u := t.nodes[g].right
			if t.isRed(u) {
				t.nodes[p].red = false
				t.nodes[u].red = false
				t.nodes[g].red = true
				x = g
				continue
			}
			if x == t.nodes[p].right {
				// zig-zag: turn it into zig-zig first
				t.rotateLeft(p)
				p = x
			}
			t.rotateRight(g)
			t.nodes[p].red = false
			t.nodes[g].red = true
			break
		} else {
			u := t.nodes[g].left
			if t.isRed(u) {
				t.nodes[p].red = false
				t.nodes[u].red = false
				t.nodes[g].red = true
				x = g
				continue
			}
			if x == t.nodes[p].left {
				t.rotateRight(p)
				p = x
			}
			t.rotateLeft(g)
			t.nodes[p].red = false
			t.nodes[g].red = true
			break
		}
	}

	t.nodes[t.root].red = false
}

func (t *Tree[T]) isRed(h Handle) bool {
	return h != Nil && t.nodes[h].red
}

func (t *Tree[T]) rotateLeft(x Handle) {
	y := t.nodes[x].right
	t.nodes[x].right = t.nodes[y].left
	if l := t.nodes[y].left; l != Nil {
		t.nodes[l].parent = x
	}
	t.replaceChild(x, y)
	t.nodes[y].left = x
	t.nodes[x].parent = y
}

func (t *Tree[T]) rotateRight(x Handle) {
	y := t.nodes[x].left
	t.nodes[x].left = t.nodes[y].right
	if r := t.nodes[y].right; r != Nil {
		t.nodes[r].parent = x
	}
	t.replaceChild(x, y)
	t.nodes[y].right = x
	t.nodes[x].parent = y
}

// replaceChild hangs repl where old used to hang under old's parent.
func (t *Tree[T]) replaceChild(old, repl Handle) {
	p := t.nodes[old].parent
	t.nodes[repl].parent = p
	switch {
	case p == Nil:
		t.root = repl
	case t.nodes[p].left == old:
		t.nodes[p].left = repl
	default:
		t.nodes[p].right = repl
	}
}

// Find returns the first element, in insert order, that the find comparator
// reports equal to probe.
func (t *Tree[T]) Find(probe T) (Handle, error) {
	found := Nil
	for x := t.root; x != Nil; {
		c := t.findCmp(probe, t.nodes[x].value)
		if c == 0 {
			found = x
		}
		if c <= 0 {
			x = t.nodes[x].left
		} else {
			x = t.nodes[x].right
		}
	}
	if found == Nil {
		return Nil, ErrNotFound
	}
	return found, nil
}

// First returns the smallest element.
func (t *Tree[T]) First() (Handle, bool) {
	x := t.root
	if x == Nil {
		return Nil, false
	}
	for t.nodes[x].left != Nil {
		x = t.nodes[x].left
	}
	return x, true
}

// Next returns the in-order successor of h.
func (t *Tree[T]) Next(h Handle) (Handle, bool) {
	if r := t.nodes[h].right; r != Nil {
		x := r
		for t.nodes[x].left != Nil {
			x = t.nodes[x].left
		}
		return x, true
	}

	// climb until we arrive from a left child
	x := h
	p := t.nodes[x].parent
	for p != Nil && t.nodes[p].right == x {
		x = p
		p = t.nodes[x].parent
	}
	return p, p != Nil
}

// All yields every element in ascending insert order. The sequence may be
// ranged over any number of times.
func (t *Tree[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		for h, ok := t.First(); ok; h, ok = t.Next(h) {
			if !yield(t.nodes[h].value) {
				return
			}
		}
	}
}

// Height returns the number of nodes on the longest root-to-leaf path.
func (t *Tree[T]) Height() int {
	return t.height(t.root)
}

func (t *Tree[T]) height(h Handle) int {
	if h == Nil {
		return 0
	}
	return 1 + max(t.height(t.nodes[h].left), t.height(t.nodes[h].right))
}
