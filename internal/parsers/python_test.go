package parsers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func definitionNames(result *ParseResult) []string {
	var out []string
	for _, def := range result.Definitions {
		out = append(out, def.Name)
	}
	return out
}

func TestPythonParser_Parse(t *testing.T) {
	t.Parallel()

	parser := NewPythonParser()

	t.Run("ParseFunction", func(t *testing.T) {
		content := []byte(`
def greet(name: str) -> str:
    """Say hello."""
    return format_greeting(name)
`)
		result, err := parser.Parse("pkg/hello.py", content)
		require.NoError(t, err)
		require.NotNil(t, result)

		require.Len(t, result.Definitions, 1)
		fn := result.Definitions[0]
		assert.Equal(t, "greet", fn.Name)
		assert.Equal(t, "pkg/hello.py", fn.File)
		assert.Equal(t, 2, fn.StartLine)
		assert.Equal(t, 4, fn.EndLine)
		assert.Equal(t, "hello", result.Package)
		assert.Equal(t, []string{"format_greeting"}, callTargets(result, "greet"))
	})

	t.Run("ParseClass", func(t *testing.T) {
		content := []byte(`
class UserService:
    def __init__(self, db):
        self.db = db

    def get_user(self, user_id: int):
        row = self.fetch(user_id)
        return User(row)

    async def fetch(self, user_id):
        return await self.db.query(user_id)


def main():
    svc = UserService(connect())
    svc.get_user(1)
`)
		result, err := parser.Parse("svc.py", content)
		require.NoError(t, err)

		assert.Equal(t, []string{
			"UserService.__init__", "UserService.get_user", "UserService.fetch", "main",
		}, definitionNames(result))
		assert.Equal(t, "UserService", result.Definitions[1].Receiver)
		assert.False(t, result.Definitions[0].Exported)

		assert.Equal(t, []string{"UserService.fetch", "User"}, callTargets(result, "UserService.get_user"))
		assert.Equal(t, []string{"query"}, callTargets(result, "UserService.fetch"))
		assert.Equal(t, []string{"UserService", "connect", "get_user"}, callTargets(result, "main"))

		assert.Equal(t, 11, result.Definitions[2].EndLine)
		assert.Equal(t, 16, result.Definitions[3].EndLine)
	})

	t.Run("NestedFunctionsFoldIntoEnclosing", func(t *testing.T) {
		content := []byte(`
def outer():
    def inner():
        helper()
    inner()
`)
		result, err := parser.Parse("n.py", content)
		require.NoError(t, err)

		assert.Equal(t, []string{"outer"}, definitionNames(result))
		assert.Equal(t, []string{"helper", "inner"}, callTargets(result, "outer"))
	})

	t.Run("Imports", func(t *testing.T) {
		content := []byte(`
import os.path
import numpy as np
from collections import OrderedDict as OD, defaultdict

def run():
    np.array(os.path.join("a", "b"))
    OD()
`)
		result, err := parser.Parse("imp.py", content)
		require.NoError(t, err)

		assert.Equal(t, map[string]string{
			"os":          "os",
			"np":          "numpy",
			"OD":          "collections.OrderedDict",
			"defaultdict": "collections.defaultdict",
		}, result.PackageImports)
		assert.Equal(t, []string{"np.array", "os.path.join", "OD"}, callTargets(result, "run"))
		assert.Equal(t, "numpy", result.Calls[0].Package)
	})

	t.Run("IgnoresStringsCommentsAndKeywords", func(t *testing.T) {
		content := []byte(`
def check(x):
    """
    Docstring mentioning fake(call).
    """
    if (x):  # trailing(comment)
        log("not(a call)")
    return (x)
`)
		result, err := parser.Parse("c.py", content)
		require.NoError(t, err)

		assert.Equal(t, []string{"log"}, callTargets(result, "check"))
	})

	t.Run("ModuleLevelCallsIgnored", func(t *testing.T) {
		content := []byte(`
setup()

if __name__ == "__main__":
    main()
`)
		result, err := parser.Parse("m.py", content)
		require.NoError(t, err)

		assert.Empty(t, result.Definitions)
		assert.Empty(t, result.Calls)
	})
}

func TestIndentWidth(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, indentWidth("x"))
	assert.Equal(t, 4, indentWidth("    x"))
	assert.Equal(t, 8, indentWidth("\tx"))
	assert.Equal(t, 8, indentWidth("  \tx"))
	assert.Equal(t, 3, indentWidth("   "))
}
