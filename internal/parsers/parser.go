// Package parsers extracts function definitions and call sites from source
// files.
package parsers

import (
	"path/filepath"
	"strings"
)

// Definition is a function or method declared in a file.
type Definition struct {
	// Name is the function name; methods are named Type.Method.
	Name string

	// Receiver is the type a method is declared on (empty for functions).
	Receiver string

	// File is the defining file.
	File string

	// StartLine is the first line of the declaration (1-based).
	StartLine int

	// EndLine is the last line of the declaration (1-based).
	EndLine int

	// Exported reports whether the name is visible outside its package or
	// module.
	Exported bool
}

// CallSite is one call made from inside a definition.
type CallSite struct {
	// Caller is the name of the enclosing Definition.
	Caller string

	// CallerFile is the file of the caller, empty when unknown.
	CallerFile string

	// Name is the called function or method name.
	Name string

	// Receiver is the receiver type for method calls when it is known.
	Receiver string

	// Qualifier is the package alias for pkg.Func calls.
	Qualifier string

	// Package is the import path behind Qualifier.
	Package string

	// File is the defining file of the callee when the input states it.
	File string

	// Line is the line of the call (1-based).
	Line int
}

// Target returns the symbol name the call refers to.
func (c CallSite) Target() string {
	switch {
	case c.Receiver != "":
		return c.Receiver + "." + c.Name
	case c.Qualifier != "":
		return c.Qualifier + "." + c.Name
	default:
		return c.Name
	}
}

// ParseResult contains everything extracted from one source file.
type ParseResult struct {
	// Package is the package (or module) name of the file.
	Package string

	// PackageImports maps import aliases to package paths.
	PackageImports map[string]string

	// Definitions lists declared functions in source order.
	Definitions []Definition

	// Calls lists call sites in source order.
	Calls []CallSite
}

// Parser defines the interface for language-specific parsers.
type Parser interface {
	// Parse extracts definitions and calls from content.
	Parse(filePath string, content []byte) (*ParseResult, error)

	// Language returns the language this parser handles.
	Language() string
}

// ForPath returns the parser for a file path based on its extension.
func ForPath(path string) (Parser, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".go":
		return NewGoParser(), true
	case ".py":
		return NewPythonParser(), true
	case ".calls", ".edges":
		return NewEdgeListParser(), true
	default:
		return nil, false
	}
}

// LanguageOf returns the language of a file path, or "" when no parser
// handles it.
func LanguageOf(path string) string {
	p, ok := ForPath(path)
	if !ok {
		return ""
	}
	return p.Language()
}
