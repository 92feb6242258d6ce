package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func names(seq func(func(*Symbol) bool)) []string {
	var out []string
	for sym := range seq {
		out = append(out, sym.String())
	}
	return out
}

func TestNewStore(t *testing.T) {
	t.Parallel()

	s := NewStore()

	assert.NotNil(t, s)
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, 0, s.EdgeCount())
	assert.Empty(t, names(s.All()))
}

func TestStore_AddSymbol(t *testing.T) {
	t.Parallel()

	t.Run("AssignsDenseIDs", func(t *testing.T) {
		t.Parallel()
		s := NewStore()

		a, err := s.AddSymbol("main", "main.c")
		require.NoError(t, err)
		b, err := s.AddSymbol("parse", "parse.c")
		require.NoError(t, err)

		assert.Equal(t, SymbolID(0), a.ID)
		assert.Equal(t, SymbolID(1), b.ID)
		assert.Same(t, b, s.Symbol(1))
		assert.Equal(t, 2, s.Len())
	})

	t.Run("StrictDuplicate", func(t *testing.T) {
		t.Parallel()
		s := NewStore()

		_, err := s.AddSymbol("f", "a.c")
		require.NoError(t, err)
		_, err = s.AddSymbol("f", "a.c")
		assert.ErrorIs(t, err, ErrDuplicate)

		_, err = s.AddSymbol("g", "")
		require.NoError(t, err)
		_, err = s.AddSymbol("g", "")
		assert.ErrorIs(t, err, ErrDuplicate)

		assert.Equal(t, 2, s.Len())
	})

	t.Run("SameNameDifferentFilesStayDistinct", func(t *testing.T) {
		t.Parallel()
		s := NewStore()

		for _, file := range []string{"b.c", "", "a.c"} {
			_, err := s.AddSymbol("f", file)
			require.NoError(t, err)
		}

		assert.Equal(t, []string{"f@a.c", "f@b.c", "f"}, names(s.All()))
	})

	t.Run("EmptyName", func(t *testing.T) {
		t.Parallel()
		s := NewStore()

		_, err := s.AddSymbol("", "x.c")
		assert.ErrorIs(t, err, ErrEmptyName)
	})
}

func TestStore_Find(t *testing.T) {
	t.Parallel()

	s := NewStore()
	fa, err := s.AddSymbol("f", "a.c")
	require.NoError(t, err)
	fb, err := s.AddSymbol("f", "b.c")
	require.NoError(t, err)
	lib, err := s.AddSymbol("printf", "")
	require.NoError(t, err)

	tests := []struct {
		name   string
		symbol string
		file   string
		want   *Symbol
	}{
		{"RelaxedPicksFirst", "f", "", fa},
		{"ExactFile", "f", "b.c", fb},
		{"FilelessByName", "printf", "", lib},
		{"UnknownFile", "f", "c.c", nil},
		{"FiledQueryDoesNotMatchFileless", "printf", "stdio.c", nil},
		{"UnknownName", "g", "", nil},
		{"EmptyName", "", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Find(tt.symbol, tt.file)
			if tt.want == nil {
				assert.ErrorIs(t, err, ErrNotFound)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Same(t, tt.want, got)
		})
	}
}

func TestStore_Resolve(t *testing.T) {
	t.Parallel()

	s := NewStore()
	fa, _ := s.AddSymbol("f", "a.c")
	fb, _ := s.AddSymbol("f", "b.c")

	got, err := s.Resolve("f", "b.c")
	require.NoError(t, err)
	assert.Same(t, fb, got, "same-file definition wins")

	got, err = s.Resolve("f", "main.c")
	require.NoError(t, err)
	assert.Same(t, fa, got, "falls back to first definition")

	got, err = s.Resolve("malloc", "main.c")
	require.NoError(t, err)
	assert.False(t, got.HasFile())
	assert.Equal(t, 3, s.Len())

	again, err := s.Resolve("malloc", "other.c")
	require.NoError(t, err)
	assert.Same(t, got, again)
	assert.Equal(t, 3, s.Len())
}

func TestStore_AddEdge(t *testing.T) {
	t.Parallel()

	s := NewStore()
	main, _ := s.AddSymbol("main", "main.c")
	parse, _ := s.AddSymbol("parse", "parse.c")
	lex, _ := s.AddSymbol("lex", "lex.c")

	s.AddEdge(main, parse)
	s.AddEdge(main, lex)
	s.AddEdge(main, parse)
	s.AddEdge(lex, lex)

	assert.Equal(t, []SymbolID{parse.ID, lex.ID, parse.ID}, main.Callees)
	assert.Equal(t, []SymbolID{main.ID, main.ID}, parse.Callers)
	assert.Equal(t, []SymbolID{lex.ID}, lex.Callees)
	assert.Equal(t, []SymbolID{main.ID, lex.ID}, lex.Callers)
	assert.Equal(t, 4, s.EdgeCount())

	assert.Equal(t, []string{"parse@parse.c", "lex@lex.c", "parse@parse.c"}, names(s.Callees(main)))
	assert.Equal(t, []string{"main@main.c", "lex@lex.c"}, names(s.Callers(lex)))
}

func TestStore_Named(t *testing.T) {
	t.Parallel()

	s := NewStore()
	for _, sym := range [][2]string{
		{"main", "a.c"}, {"main", "b.c"}, {"mainloop", "a.c"}, {"main", ""}, {"lex", "l.c"},
	} {
		_, err := s.AddSymbol(sym[0], sym[1])
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"main@a.c", "main@b.c", "main"}, names(s.Named("main")))
	assert.Empty(t, names(s.Named("absent")))
}

func TestStore_Reset(t *testing.T) {
	t.Parallel()

	s := NewStore()
	a, _ := s.AddSymbol("a", "a.c")
	b, _ := s.AddSymbol("b", "")
	for _, sym := range []*Symbol{a, b} {
		sym.State = TraversalState{Claimed: true, Expanded: true, Root: true, Color: Highlighted(1)}
	}

	s.Reset(nil, false)
	assert.Equal(t, TraversalState{Root: true, Color: Highlighted(1)}, a.State)

	s.Reset(&Reachable, false)
	assert.Equal(t, TraversalState{Root: true, Color: Reachable}, b.State)

	s.Reset(&Unmarked, true)
	assert.Equal(t, TraversalState{}, a.State)
	assert.Equal(t, TraversalState{}, b.State)
}

func TestColor(t *testing.T) {
	t.Parallel()

	assert.False(t, Unmarked.IsHighlighted())
	assert.False(t, Reachable.IsHighlighted())
	assert.True(t, Highlighted(2).IsHighlighted())
	assert.Equal(t, "highlight(2)", Highlighted(2).String())
	assert.Equal(t, "reachable", Reachable.String())
	assert.Equal(t, "default", Unmarked.String())
}
