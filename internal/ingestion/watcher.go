package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"

	"github.com/Benny93/calltree-go/internal/parsers"
)

// DefaultDebounce is how long the watcher waits for more changes before it
// reports a batch.
const DefaultDebounce = 500 * time.Millisecond

// ChangeFunc receives the relative paths changed since the last batch, in
// sorted order. An error is logged and watching continues.
type ChangeFunc func(ctx context.Context, changed []string) error

// WatchRepo monitors root for changes to supported files and calls onChange
// once per debounced batch. Blocks until the context is cancelled.
func WatchRepo(ctx context.Context, root string, debounce time.Duration, logger *slog.Logger, onChange ChangeFunc) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("watching %s: %w", root, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	// a single file is watched through its directory
	dir, only := root, ""
	if !info.IsDir() {
		dir, only = filepath.Dir(root), filepath.Base(root)
	}

	matcher, err := loadGitignoreMatcher(dir)
	if err != nil {
		logger.Warn("ignoring .gitignore", "error", err)
		matcher = newMatcher(nil)
	}

	if only != "" {
		err = watcher.Add(dir)
	} else {
		err = addTree(watcher, dir, dir, matcher)
	}
	if err != nil {
		return fmt.Errorf("setting up watcher: %w", err)
	}

	changed := make(map[string]bool)
	batchTimer := time.NewTimer(debounce)
	batchTimer.Stop()
	defer batchTimer.Stop()

	logger.Debug("watching", "root", root, "debounce", debounce)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if only == "" && event.Has(fsnotify.Create) {
				if fi, err := os.Stat(event.Name); err == nil && fi.IsDir() {
					if !shouldSkipDir(fi.Name(), event.Name, dir, matcher) {
						if err := addTree(watcher, event.Name, dir, matcher); err != nil {
							logger.Warn("watching new directory", "dir", event.Name, "error", err)
						}
					}
					continue
				}
			}

			if only != "" && filepath.Base(event.Name) != only {
				continue
			}
			if !shouldWatchFile(event.Name, dir, matcher) {
				continue
			}

			relPath, err := filepath.Rel(dir, event.Name)
			if err != nil {
				continue
			}
			changed[filepath.ToSlash(relPath)] = true
			batchTimer.Reset(debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error", "error", err)

		case <-batchTimer.C:
			if len(changed) == 0 {
				continue
			}
			paths := make([]string, 0, len(changed))
			for p := range changed {
				paths = append(paths, p)
			}
			slices.Sort(paths)
			changed = make(map[string]bool)

			logger.Debug("change batch", "files", len(paths))
			if err := onChange(ctx, paths); err != nil {
				logger.Error("processing changes", "error", err)
			}
		}
	}
}

// addTree adds dir and every directory below it that is not ignored. Ignore
// rules are matched relative to root.
func addTree(watcher *fsnotify.Watcher, dir, root string, matcher gitignore.Matcher) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && shouldSkipDir(d.Name(), path, root, matcher) {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}

// shouldWatchFile checks if a file should be watched.
func shouldWatchFile(path, root string, matcher gitignore.Matcher) bool {
	relPath, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}

	if matcher != nil && matcher.Match(splitPath(relPath), false) {
		return false
	}

	return parsers.LanguageOf(path) != ""
}

// loadGitignoreMatcher loads a matcher of the default patterns and the
// .gitignore of root.
func loadGitignoreMatcher(root string) (gitignore.Matcher, error) {
	patterns, err := loadGitignore(root)
	if err != nil {
		return nil, err
	}
	return newMatcher(patterns), nil
}
