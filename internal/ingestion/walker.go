// Package ingestion turns a source tree into a call-graph store.
package ingestion

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"

	"github.com/Benny93/calltree-go/internal/parsers"
)

// FileEntry represents a file to be processed.
type FileEntry struct {
	// Path is the absolute file path.
	Path string

	// RelPath is the path relative to the scan root. Symbols are keyed by it.
	RelPath string

	// Language is the parser language for the file.
	Language string

	// Content is the file content.
	Content []byte

	// SHA256 is the hash of the file content.
	SHA256 string
}

// Default patterns to ignore (in addition to .gitignore).
var defaultIgnorePatterns = []string{
	".git/",
	"node_modules/",
	"vendor/",
	".calltree/",
	"__pycache__/",
	".venv/",
	"venv/",
	".tox/",
	".eggs/",
	"*.egg-info/",
	".pytest_cache/",
	".mypy_cache/",
	"testdata/",
	"*.pyc",
	".DS_Store",
}

// WalkRepo walks root and returns every file a parser handles. When only is
// non-empty, files of other languages are skipped. A root that is a regular
// file yields that file alone, relative to its directory.
func WalkRepo(root string, patterns []gitignore.Pattern, only string) ([]FileEntry, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		entry, ok, err := readEntry(root, filepath.Base(root), only)
		if err != nil || !ok {
			return nil, err
		}
		return []FileEntry{entry}, nil
	}

	matcher := newMatcher(patterns)

	var entries []FileEntry
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if path != root && shouldSkipDir(d.Name(), path, root, matcher) {
				return filepath.SkipDir
			}
			return nil
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if matcher.Match(splitPath(relPath), false) {
			return nil
		}

		entry, ok, err := readEntry(path, relPath, only)
		if err != nil {
			return err
		}
		if ok {
			entries = append(entries, entry)
		}
		return nil
	})

	return entries, err
}

func readEntry(path, relPath, only string) (FileEntry, bool, error) {
	language := parsers.LanguageOf(path)
	if language == "" || (only != "" && language != only) {
		return FileEntry{}, false, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return FileEntry{}, false, fmt.Errorf("reading %s: %w", relPath, err)
	}

	hash := sha256.Sum256(content)
	return FileEntry{
		Path:     path,
		RelPath:  filepath.ToSlash(relPath),
		Language: language,
		Content:  content,
		SHA256:   hex.EncodeToString(hash[:]),
	}, true, nil
}

// newMatcher combines the default patterns with loaded ones.
func newMatcher(patterns []gitignore.Pattern) gitignore.Matcher {
	all := make([]gitignore.Pattern, 0, len(defaultIgnorePatterns)+len(patterns))
	for _, p := range defaultIgnorePatterns {
		all = append(all, gitignore.ParsePattern(p, nil))
	}
	all = append(all, patterns...)
	return gitignore.NewMatcher(all)
}

// loadGitignore loads .gitignore patterns from the scan root. A missing file
// or a root that is not a directory yields no patterns.
func loadGitignore(root string) ([]gitignore.Pattern, error) {
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return nil, nil
	}

	content, err := os.ReadFile(filepath.Join(root, ".gitignore"))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var patterns []gitignore.Pattern
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, gitignore.ParsePattern(line, nil))
	}
	return patterns, nil
}

// shouldSkipDir checks if a directory should be skipped.
func shouldSkipDir(name, path, root string, matcher gitignore.Matcher) bool {
	if name == ".git" {
		return true
	}
	if matcher == nil {
		return false
	}

	relPath, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return matcher.Match(splitPath(relPath), true)
}

// splitPath splits a path into its components.
func splitPath(path string) []string {
	return strings.Split(path, string(filepath.Separator))
}
