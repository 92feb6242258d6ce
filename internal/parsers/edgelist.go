package parsers

import (
	"bufio"
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
)

// EdgeListParser reads a plain call list, one call per line:
//
//	# comment
//	main@main.c -> parse@parse.c
//	parse@parse.c -> printf
//	orphan@util.c
//
// A name with "@file" is a definition in that file. A name without a file
// stays unresolved unless some other line defines it. A line without an
// arrow only declares its symbol.
type EdgeListParser struct{}

// NewEdgeListParser creates a new edge-list parser.
func NewEdgeListParser() *EdgeListParser {
	return &EdgeListParser{}
}

// Language returns the language this parser handles.
func (p *EdgeListParser) Language() string {
	return "edges"
}

// Parse reads definitions and calls from content.
func (p *EdgeListParser) Parse(filePath string, content []byte) (*ParseResult, error) {
	result := &ParseResult{
		Package:        strings.TrimSuffix(filepath.Base(filePath), filepath.Ext(filePath)),
		PackageImports: make(map[string]string),
	}
	defined := make(map[[2]string]bool)

	define := func(name, file string, line int) {
		if file == "" || defined[[2]string{name, file}] {
			return
		}
		defined[[2]string{name, file}] = true
		result.Definitions = append(result.Definitions, Definition{
			Name:      name,
			File:      file,
			StartLine: line,
			EndLine:   line,
			Exported:  true,
		})
	}

	scanner := bufio.NewScanner(bytes.NewReader(content))
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if idx := strings.IndexByte(line, '#'); idx >= 0 {
			line = line[:idx]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		left, right, isCall := strings.Cut(line, "->")
		caller, callerFile, err := splitEndpoint(left)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", filePath, lineNum, err)
		}
		define(caller, callerFile, lineNum)
		if !isCall {
			continue
		}

		callee, calleeFile, err := splitEndpoint(right)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", filePath, lineNum, err)
		}
		define(callee, calleeFile, lineNum)

		result.Calls = append(result.Calls, CallSite{
			Caller:     caller,
			CallerFile: callerFile,
			Name:       callee,
			File:       calleeFile,
			Line:       lineNum,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading edge list: %w", err)
	}

	return result, nil
}

// splitEndpoint splits "name@file" into its parts.
func splitEndpoint(s string) (name, file string, err error) {
	s = strings.TrimSpace(s)
	name, file, _ = strings.Cut(s, "@")
	name = strings.TrimSpace(name)
	file = strings.TrimSpace(file)
	if name == "" || strings.ContainsAny(name, " \t") {
		return "", "", fmt.Errorf("invalid symbol %q", s)
	}
	return name, file, nil
}
