// Package scanner builds per-package snapshots of the GitHub repositories
// referenced by corpus files.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/blackwell-systems/pinscan/internal/extract"
	"github.com/blackwell-systems/pinscan/internal/finder"
	"github.com/blackwell-systems/pinscan/internal/logger"
	"github.com/blackwell-systems/pinscan/internal/output"
	"github.com/blackwell-systems/pinscan/internal/store"
)

// ErrCorpusNotFound is returned when the corpus root is missing or is not a
// directory.
var ErrCorpusNotFound = errors.New("corpus directory not found")

// Scanner replaces package snapshots from the corpus.
type Scanner struct {
	backend  store.Backend
	finder   finder.Finder
	log      *logger.Logger
	progress io.Writer
}

// Result describes one completed scan.
type Result struct {
	Package  string
	Files    int  // candidate files reported by the finder
	Skipped  int  // candidates that could not be read or decoded
	Refs     int  // distinct (path, owner, repo) triples extracted
	Stored   int  // references in the new snapshot
	Previous int  // references in the snapshot that was replaced
	Changed  bool // the new snapshot differs from the previous one
}

// New creates a new Scanner.
func New(backend store.Backend, f finder.Finder, log *logger.Logger) *Scanner {
	if log == nil {
		log = logger.Nop()
	}
	return &Scanner{backend: backend, finder: f, log: log}
}

// SetProgressWriter enables a per-file progress bar on w.
func (s *Scanner) SetProgressWriter(w io.Writer) {
	s.progress = w
}

// Scan finds the corpus files mentioning pkg, extracts their repository
// references and replaces the package's snapshot with them. On any error
// before the snapshot write the stored state is left untouched.
func (s *Scanner) Scan(ctx context.Context, pkg, root string) (*Result, error) {
	log := s.log.WithPackage(pkg)

	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrCorpusNotFound, root)
	}

	files, err := s.finder.Find(ctx, root, pkg)
	if err != nil {
		return nil, fmt.Errorf("failed to find candidate files: %w", err)
	}
	log.Debugw("found candidate files", "count", len(files))

	result := &Result{Package: pkg, Files: len(files)}

	var bar *output.ProgressBar
	if s.progress != nil && len(files) > 0 {
		bar = output.NewProgress(len(files), fmt.Sprintf("Scanning %s", pkg))
		bar.SetWriter(s.progress)
	}

	seen := make(map[store.RepoRef]bool)
	var refs []store.RepoRef
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		found, err := extract.ExtractFile(path, root)
		if bar != nil {
			bar.Increment()
		}
		if err != nil {
			log.Warnw("skipping file", "path", path, "error", err)
			result.Skipped++
			continue
		}
		for _, r := range found {
			if seen[r] {
				continue
			}
			seen[r] = true
			refs = append(refs, r)
		}
	}
	if bar != nil {
		bar.Finish()
	}

	store.SortRefs(refs)
	result.Refs = len(refs)
	collapsed := store.CollapseByRepo(refs)
	digest := store.Digest(collapsed)

	prev, err := s.backend.GetSnapshot(pkg)
	if err != nil {
		return nil, fmt.Errorf("failed to read previous snapshot: %w", err)
	}

	stored, err := s.backend.UpsertSnapshot(pkg, collapsed, digest)
	if err != nil {
		return nil, fmt.Errorf("failed to store snapshot: %w", err)
	}
	result.Stored = stored

	if prev == nil {
		result.Changed = true
	} else {
		result.Previous = len(prev.Repos)
		result.Changed = prev.Digest != digest
	}

	log.Infow("scan complete",
		"files", result.Files,
		"skipped", result.Skipped,
		"refs", result.Refs,
		"stored", result.Stored,
		"changed", result.Changed)

	return result, nil
}
