package parsers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEdgeListParser_Parse(t *testing.T) {
	t.Parallel()

	parser := NewEdgeListParser()

	t.Run("DefinitionsAndCalls", func(t *testing.T) {
		content := []byte(`# call list
main@main.c -> parse@parse.c
main@main.c -> lex@lex.c   # direct
parse@parse.c -> lex@lex.c

parse@parse.c -> printf
orphan@util.c
`)
		result, err := parser.Parse("graph.calls", content)
		require.NoError(t, err)

		assert.Equal(t, "graph", result.Package)
		assert.Equal(t, []string{"main", "parse", "lex", "orphan"}, definitionNames(result))
		assert.Equal(t, "util.c", result.Definitions[3].File)
		assert.Equal(t, 7, result.Definitions[3].StartLine)

		require.Len(t, result.Calls, 4)
		assert.Equal(t, CallSite{Caller: "main", CallerFile: "main.c", Name: "lex", File: "lex.c", Line: 3}, result.Calls[1])
		assert.Equal(t, CallSite{Caller: "parse", CallerFile: "parse.c", Name: "printf", Line: 6}, result.Calls[3])
	})

	t.Run("UnknownFiles", func(t *testing.T) {
		result, err := parser.Parse("g.edges", []byte("a -> b\n"))
		require.NoError(t, err)

		assert.Empty(t, result.Definitions)
		require.Len(t, result.Calls, 1)
		assert.Equal(t, "a", result.Calls[0].Caller)
		assert.Empty(t, result.Calls[0].CallerFile)
	})

	t.Run("InvalidSymbol", func(t *testing.T) {
		_, err := parser.Parse("g.edges", []byte("a ->\n"))
		assert.ErrorContains(t, err, "g.edges:1")

		_, err = parser.Parse("g.edges", []byte("two words -> b\n"))
		assert.Error(t, err)
	})
}
