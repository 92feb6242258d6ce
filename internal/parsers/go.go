package parsers

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"strings"
)

// GoParser parses Go source code using the standard library's go/parser.
type GoParser struct{}

// NewGoParser creates a new Go parser.
func NewGoParser() *GoParser {
	return &GoParser{}
}

// Language returns the language this parser handles.
func (p *GoParser) Language() string {
	return "go"
}

// Parse extracts functions, methods and the calls made inside their bodies.
// Calls inside function literals belong to the enclosing declaration.
func (p *GoParser) Parse(filePath string, content []byte) (*ParseResult, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filePath, content, parser.SkipObjectResolution)
	if err != nil {
		return nil, fmt.Errorf("parsing Go code: %w", err)
	}

	result := &ParseResult{
		Package:        file.Name.Name,
		PackageImports: make(map[string]string),
	}

	p.parseImports(file, result)

	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok {
			continue
		}
		def := p.parseFuncDecl(fn, fset)
		def.File = filePath
		result.Definitions = append(result.Definitions, def)
		if fn.Body != nil {
			p.parseCalls(fn, def, fset, result)
		}
	}

	return result, nil
}

func (p *GoParser) parseImports(file *ast.File, result *ParseResult) {
	for _, imp := range file.Imports {
		path := strings.Trim(imp.Path.Value, `"`)

		var alias string
		if imp.Name != nil {
			alias = imp.Name.Name
		} else {
			// Use last part of path as implicit alias
			parts := strings.Split(path, "/")
			alias = parts[len(parts)-1]
		}
		if alias == "_" || alias == "." {
			continue
		}
		result.PackageImports[alias] = path
	}
}

func (p *GoParser) parseFuncDecl(fn *ast.FuncDecl, fset *token.FileSet) Definition {
	def := Definition{
		Name:      fn.Name.Name,
		StartLine: fset.Position(fn.Pos()).Line,
		EndLine:   fset.Position(fn.End()).Line,
		Exported:  fn.Name.IsExported(),
	}

	if fn.Recv != nil && len(fn.Recv.List) > 0 {
		def.Receiver = receiverType(fn.Recv.List[0].Type)
		if def.Receiver != "" {
			def.Name = def.Receiver + "." + def.Name
		}
	}

	return def
}

// receiverType returns the base type name of a receiver or parameter type,
// dropping pointers and type arguments. Qualified types yield "".
func receiverType(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		return receiverType(t.X)
	case *ast.IndexExpr:
		return receiverType(t.X)
	case *ast.IndexListExpr:
		return receiverType(t.X)
	case *ast.ParenExpr:
		return receiverType(t.X)
	}
	return ""
}

// localTypes maps variable names visible in fn to their type names: the
// receiver, parameters of local types, and variables initialised from a
// composite literal.
func localTypes(fn *ast.FuncDecl) map[string]string {
	locals := make(map[string]string)

	fields := func(list *ast.FieldList) {
		if list == nil {
			return
		}
		for _, field := range list.List {
			typeName := receiverType(field.Type)
			if typeName == "" {
				continue
			}
			for _, name := range field.Names {
				locals[name.Name] = typeName
			}
		}
	}
	fields(fn.Recv)
	fields(fn.Type.Params)

	ast.Inspect(fn.Body, func(n ast.Node) bool {
		assign, ok := n.(*ast.AssignStmt)
		if !ok || assign.Tok != token.DEFINE || len(assign.Lhs) != len(assign.Rhs) {
			return true
		}
		for i, rhs := range assign.Rhs {
			ident, ok := assign.Lhs[i].(*ast.Ident)
			if !ok {
				continue
			}
			if typeName := literalType(rhs); typeName != "" {
				locals[ident.Name] = typeName
			}
		}
		return true
	})

	return locals
}

func literalType(expr ast.Expr) string {
	switch e := expr.(type) {
	case *ast.CompositeLit:
		return receiverType(e.Type)
	case *ast.UnaryExpr:
		if e.Op == token.AND {
			return literalType(e.X)
		}
	}
	return ""
}

func (p *GoParser) parseCalls(fn *ast.FuncDecl, caller Definition, fset *token.FileSet, result *ParseResult) {
	locals := localTypes(fn)

	ast.Inspect(fn.Body, func(n ast.Node) bool {
		if callExpr, ok := n.(*ast.CallExpr); ok {
			call := p.extractCall(callExpr, fset, result, locals)
			if call.Name != "" {
				call.Caller = caller.Name
				call.CallerFile = caller.File
				result.Calls = append(result.Calls, call)
			}
		}
		return true
	})
}

func (p *GoParser) extractCall(callExpr *ast.CallExpr, fset *token.FileSet, result *ParseResult, locals map[string]string) CallSite {
	call := CallSite{
		Line: fset.Position(callExpr.Pos()).Line,
	}

	switch fun := callExpr.Fun.(type) {
	case *ast.Ident:
		if isUniverse(fun.Name) {
			return CallSite{}
		}
		call.Name = fun.Name
	case *ast.SelectorExpr:
		// Method or package call: pkg.Method() or obj.Method()
		call.Name = fun.Sel.Name
		if xIdent, ok := fun.X.(*ast.Ident); ok {
			if typeName, ok := locals[xIdent.Name]; ok {
				call.Receiver = typeName
			} else if pkgPath, ok := result.PackageImports[xIdent.Name]; ok {
				call.Qualifier = xIdent.Name
				call.Package = pkgPath
			}
		}
	case *ast.IndexExpr:
		// Explicit instantiation: f[T]()
		if ident, ok := fun.X.(*ast.Ident); ok {
			call.Name = ident.Name
		}
	}

	return call
}

// isUniverse reports builtins and predeclared type conversions.
func isUniverse(name string) bool {
	switch types.Universe.Lookup(name).(type) {
	case *types.Builtin, *types.TypeName:
		return true
	}
	return false
}
