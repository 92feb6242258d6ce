package parsers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func callTargets(result *ParseResult, caller string) []string {
	var out []string
	for _, call := range result.Calls {
		if call.Caller == caller {
			out = append(out, call.Target())
		}
	}
	return out
}

func TestGoParser_Parse(t *testing.T) {
	t.Parallel()

	parser := NewGoParser()

	t.Run("ParseFunction", func(t *testing.T) {
		content := []byte(`
package main

func greet(name string) string {
	return "Hello, " + name
}
`)
		result, err := parser.Parse("test.go", content)
		require.NoError(t, err)
		require.NotNil(t, result)

		require.Len(t, result.Definitions, 1)
		fn := result.Definitions[0]
		assert.Equal(t, "greet", fn.Name)
		assert.Equal(t, "test.go", fn.File)
		assert.Equal(t, 4, fn.StartLine)
		assert.Equal(t, 6, fn.EndLine)
		assert.False(t, fn.Exported)
		assert.Equal(t, "main", result.Package)
	})

	t.Run("ParseMethod", func(t *testing.T) {
		content := []byte(`
package main

type UserService struct{}

func (s *UserService) GetUser(id int) *User {
	return s.load(id)
}

func (UserService) load(id int) *User { return nil }

func (l List[T]) Len() int { return 0 }
`)
		result, err := parser.Parse("svc.go", content)
		require.NoError(t, err)

		require.Len(t, result.Definitions, 3)
		assert.Equal(t, "UserService.GetUser", result.Definitions[0].Name)
		assert.Equal(t, "UserService", result.Definitions[0].Receiver)
		assert.True(t, result.Definitions[0].Exported)
		assert.Equal(t, "UserService.load", result.Definitions[1].Name)
		assert.Equal(t, "List.Len", result.Definitions[2].Name)

		assert.Equal(t, []string{"UserService.load"}, callTargets(result, "UserService.GetUser"))
	})

	t.Run("CallsBelongToEnclosingFunction", func(t *testing.T) {
		content := []byte(`
package main

import (
	"fmt"
	str "strings"
)

func main() {
	fmt.Println("Hello")
	result := processData(input)
	go func() {
		worker(str.ToUpper(result))
	}()
}

func processData(in string) string {
	s := &Server{}
	s.Run()
	return trim(in)
}
`)
		result, err := parser.Parse("main.go", content)
		require.NoError(t, err)

		assert.Equal(t, []string{"fmt.Println", "processData", "worker", "str.ToUpper"}, callTargets(result, "main"))
		assert.Equal(t, []string{"Server.Run", "trim"}, callTargets(result, "processData"))

		for _, call := range result.Calls {
			assert.Equal(t, "main.go", call.CallerFile)
		}
		assert.Equal(t, "strings", result.PackageImports["str"])
		assert.Equal(t, "fmt", result.PackageImports["fmt"])
	})

	t.Run("PackageCall", func(t *testing.T) {
		content := []byte(`
package cmd

import "github.com/acme/tool/internal/ingestion"

func run() {
	_, err := ingestion.Build(ctx, path)
}
`)
		result, err := parser.Parse("cmd/run.go", content)
		require.NoError(t, err)

		require.Len(t, result.Calls, 1)
		call := result.Calls[0]
		assert.Equal(t, "Build", call.Name)
		assert.Equal(t, "ingestion", call.Qualifier)
		assert.Equal(t, "github.com/acme/tool/internal/ingestion", call.Package)
		assert.Empty(t, call.Receiver)
		assert.Equal(t, 7, call.Line)
	})

	t.Run("SkipsBuiltinsAndConversions", func(t *testing.T) {
		content := []byte(`
package main

func f(xs []int) int {
	ys := make([]int, len(xs))
	ys = append(ys, int(3))
	return g(string(rune(65)))
}
`)
		result, err := parser.Parse("f.go", content)
		require.NoError(t, err)

		assert.Equal(t, []string{"g"}, callTargets(result, "f"))
	})

	t.Run("UnknownReceiverKeepsMethodName", func(t *testing.T) {
		content := []byte(`
package main

func f(w io.Writer) {
	w.Write(nil)
	conf.Load().Apply()
}
`)
		result, err := parser.Parse("f.go", content)
		require.NoError(t, err)

		assert.ElementsMatch(t, []string{"Write", "Apply", "Load"}, callTargets(result, "f"))
	})

	t.Run("ParseEmptyFile", func(t *testing.T) {
		result, err := parser.Parse("empty.go", []byte(`package main`))
		require.NoError(t, err)
		assert.Empty(t, result.Definitions)
		assert.Empty(t, result.Calls)
	})

	t.Run("SyntaxError", func(t *testing.T) {
		_, err := parser.Parse("bad.go", []byte("package main\nfunc {"))
		assert.Error(t, err)
	})
}

func TestCallSite_Target(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		call CallSite
		want string
	}{
		{"Plain", CallSite{Name: "f"}, "f"},
		{"Method", CallSite{Name: "Run", Receiver: "Server"}, "Server.Run"},
		{"Package", CallSite{Name: "Println", Qualifier: "fmt"}, "fmt.Println"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.call.Target())
		})
	}
}

func TestForPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		lang string
	}{
		{"main.go", "go"},
		{"pkg/app.PY", "python"},
		{"graph.calls", "edges"},
		{"graph.edges", "edges"},
		{"README.md", ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.lang, LanguageOf(tt.path))
			_, ok := ForPath(tt.path)
			assert.Equal(t, tt.lang != "", ok)
		})
	}
}
