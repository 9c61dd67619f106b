package finder

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/blackwell-systems/pinscan/internal/logger"
)

// Walk finds files by walking the tree in-process. Include and Exclude are
// doublestar patterns matched against the slash separated path relative to
// the root. An empty Include matches every file.
type Walk struct {
	Include []string
	Exclude []string
	log     *logger.Logger
}

// NewWalk returns a native Walk finder.
func NewWalk(include, exclude []string, log *logger.Logger) *Walk {
	if log == nil {
		log = logger.Nop()
	}
	return &Walk{Include: include, Exclude: exclude, log: log}
}

// Find walks root and returns files whose content contains term.
func (w *Walk) Find(ctx context.Context, root, term string) ([]string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", root, err)
	}
	for _, p := range append(append([]string{}, w.Include...), w.Exclude...) {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid glob pattern %q", p)
		}
	}

	needle := bytes.ToLower([]byte(term))
	paths := []string{}

	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == absRoot {
				return err
			}
			w.log.Warnw("skipping unreadable path", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel, relErr := filepath.Rel(absRoot, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rel != "." && w.excluded(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || w.excluded(rel) || !w.included(rel) {
			return nil
		}

		data, readErr := os.ReadFile(path)
		if readErr != nil {
			w.log.Warnw("skipping unreadable file", "path", path, "error", readErr)
			return nil
		}
		if bytes.Contains(bytes.ToLower(data), needle) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}

	sort.Strings(paths)
	return paths, nil
}

func (w *Walk) excluded(rel string) bool {
	return matchAny(w.Exclude, rel)
}

func (w *Walk) included(rel string) bool {
	if len(w.Include) == 0 {
		return true
	}
	return matchAny(w.Include, rel)
}

func matchAny(patterns []string, rel string) bool {
	for _, pattern := range patterns {
		if matched, err := doublestar.Match(pattern, rel); err == nil && matched {
			return true
		}
	}
	return false
}
