package parsers

import (
	"path/filepath"
	"regexp"
	"strings"
)

// PythonParser parses Python source code using a line scanner with regular
// expressions. Scopes are tracked by indentation. Nested functions are folded
// into the enclosing function; methods are named Class.method.
type PythonParser struct {
	defRegex    *regexp.Regexp
	classRegex  *regexp.Regexp
	importRegex *regexp.Regexp
	callRegex   *regexp.Regexp
	stringRegex *regexp.Regexp
}

// NewPythonParser creates a new Python parser.
func NewPythonParser() *PythonParser {
	return &PythonParser{
		defRegex:    regexp.MustCompile(`^(?:async\s+)?def\s+(\w+)\s*\(`),
		classRegex:  regexp.MustCompile(`^class\s+(\w+)`),
		importRegex: regexp.MustCompile(`^(?:from\s+([\w.]+)\s+)?import\s+(.+)`),
		callRegex:   regexp.MustCompile(`([A-Za-z_][\w.]*)\s*\(`),
		stringRegex: regexp.MustCompile(`"(?:[^"\\]|\\.)*"|'(?:[^'\\]|\\.)*'`),
	}
}

// Language returns the language this parser handles.
func (p *PythonParser) Language() string {
	return "python"
}

var pythonKeywords = map[string]bool{
	"if": true, "elif": true, "while": true, "for": true, "with": true,
	"except": true, "return": true, "not": true, "and": true, "or": true,
	"in": true, "is": true, "assert": true, "lambda": true, "yield": true,
	"await": true, "del": true, "raise": true,
}

type pyScope struct {
	indent int
	class  string // set for class bodies
	def    int    // index into Definitions, -1 for classes
}

// Parse extracts top-level functions and methods and the calls made inside
// them. Calls at module or class level are ignored.
func (p *PythonParser) Parse(filePath string, content []byte) (*ParseResult, error) {
	result := &ParseResult{
		Package:        strings.TrimSuffix(filepath.Base(filePath), filepath.Ext(filePath)),
		PackageImports: make(map[string]string),
	}

	var (
		scopes     []pyScope
		inDocBlock bool
	)

	closeScopes := func(indent int, lastLine int) {
		for len(scopes) > 0 && scopes[len(scopes)-1].indent >= indent {
			top := scopes[len(scopes)-1]
			if top.def >= 0 && result.Definitions[top.def].EndLine < lastLine {
				result.Definitions[top.def].EndLine = lastLine
			}
			scopes = scopes[:len(scopes)-1]
		}
	}

	lastCode := 0
	lines := strings.Split(string(content), "\n")
	for i, line := range lines {
		lineNum := i + 1

		// Triple-quoted blocks are skipped as a whole.
		quotes := strings.Count(line, `"""`) + strings.Count(line, `'''`)
		if inDocBlock {
			if quotes%2 == 1 {
				inDocBlock = false
				lastCode = lineNum
			}
			continue
		}
		if quotes%2 == 1 {
			inDocBlock = true
			line = line[:firstTripleQuote(line)]
		}

		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "@") {
			continue
		}

		indent := indentWidth(line)
		closeScopes(indent, lastCode)
		lastCode = lineNum

		if m := p.classRegex.FindStringSubmatch(trimmed); m != nil {
			scopes = append(scopes, pyScope{indent: indent, class: m[1], def: -1})
			continue
		}

		if m := p.defRegex.FindStringSubmatch(trimmed); m != nil {
			enclosing := -1
			if len(scopes) > 0 {
				enclosing = scopes[len(scopes)-1].def
			}
			if enclosing >= 0 {
				// nested function: its body belongs to the enclosing one
				scopes = append(scopes, pyScope{indent: indent, def: enclosing})
				continue
			}

			def := Definition{
				Name:      m[1],
				File:      filePath,
				StartLine: lineNum,
				EndLine:   lineNum,
				Exported:  !strings.HasPrefix(m[1], "_"),
			}
			if len(scopes) > 0 && scopes[len(scopes)-1].class != "" {
				def.Receiver = scopes[len(scopes)-1].class
				def.Name = def.Receiver + "." + def.Name
			}
			result.Definitions = append(result.Definitions, def)
			scopes = append(scopes, pyScope{indent: indent, def: len(result.Definitions) - 1})
			continue
		}

		if m := p.importRegex.FindStringSubmatch(trimmed); m != nil {
			p.parseImport(m[1], m[2], result)
			continue
		}

		if len(scopes) == 0 || scopes[len(scopes)-1].def < 0 {
			continue
		}
		fn := result.Definitions[scopes[len(scopes)-1].def]
		result.Calls = append(result.Calls, p.extractCalls(trimmed, lineNum, fn, result)...)
	}
	closeScopes(0, lastCode)

	return result, nil
}

func (p *PythonParser) parseImport(from, names string, result *ParseResult) {
	for _, part := range strings.Split(names, ",") {
		part = strings.TrimSpace(part)
		name, alias, ok := strings.Cut(part, " as ")
		name = strings.TrimSpace(name)
		if !ok {
			alias = name
		}
		alias = strings.TrimSpace(alias)
		if name == "" || name == "*" {
			continue
		}

		path := name
		if from != "" {
			path = from + "." + name
		} else if !ok {
			// "import os.path" binds "os"
			alias, _, _ = strings.Cut(name, ".")
			path = alias
		}
		result.PackageImports[alias] = path
	}
}

func (p *PythonParser) extractCalls(line string, lineNum int, fn Definition, result *ParseResult) []CallSite {
	code := p.stringRegex.ReplaceAllString(line, `""`)
	if idx := strings.Index(code, "#"); idx >= 0 {
		code = code[:idx]
	}

	var calls []CallSite
	for _, match := range p.callRegex.FindAllStringSubmatchIndex(code, -1) {
		// skip attribute chains on call results, e.g. f().g()
		if match[0] > 0 && code[match[0]-1] == '.' {
			continue
		}
		expr := code[match[2]:match[3]]
		parts := strings.Split(expr, ".")
		name := parts[len(parts)-1]
		if name == "" || pythonKeywords[name] && len(parts) == 1 {
			continue
		}

		call := CallSite{
			Caller:     fn.Name,
			CallerFile: fn.File,
			Name:       name,
			Line:       lineNum,
		}
		if len(parts) > 1 {
			head := parts[0]
			switch {
			case (head == "self" || head == "cls") && len(parts) == 2 && fn.Receiver != "":
				call.Receiver = fn.Receiver
			case result.PackageImports[head] != "":
				call.Qualifier = strings.Join(parts[:len(parts)-1], ".")
				call.Package = result.PackageImports[head]
			}
		}
		calls = append(calls, call)
	}

	return calls
}

// indentWidth counts leading whitespace with tabs advancing to the next
// multiple of eight.
func indentWidth(line string) int {
	width := 0
	for _, r := range line {
		switch r {
		case ' ':
			width++
		case '\t':
			width += 8 - width%8
		default:
			return width
		}
	}
	return width
}

func firstTripleQuote(line string) int {
	idx := strings.Index(line, `"""`)
	if alt := strings.Index(line, `'''`); alt >= 0 && (idx < 0 || alt < idx) {
		idx = alt
	}
	return idx
}
