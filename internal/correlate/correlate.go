// Package correlate matches remote code search results against a package's
// corpus snapshot and records the outcome as a search run.
package correlate

import (
	"context"
	"errors"
	"fmt"

	"github.com/blackwell-systems/pinscan/internal/github"
	"github.com/blackwell-systems/pinscan/internal/logger"
	"github.com/blackwell-systems/pinscan/internal/store"
)

// ErrNoScan is returned when the package has never been scanned.
var ErrNoScan = errors.New("no scan data for package; run 'pinscan scan' first")

// Searcher runs one remote code search. *github.Client satisfies it.
type Searcher interface {
	Search(ctx context.Context, phrase, filename string) (github.RepoSet, error)
}

// Correlator intersects remote search results with local snapshots.
type Correlator struct {
	backend  store.Backend
	searcher Searcher
	filename string
	log      *logger.Logger
}

// New creates a Correlator searching files named filename.
func New(backend store.Backend, searcher Searcher, filename string, log *logger.Logger) *Correlator {
	if log == nil {
		log = logger.Nop()
	}
	return &Correlator{backend: backend, searcher: searcher, filename: filename, log: log}
}

// Correlate searches for every distinct variant, keeps the snapshot
// repositories found by any of them and appends a search run keyed by
// variants[0]. A run is recorded even when nothing matched.
func (c *Correlator) Correlate(ctx context.Context, pkg string, variants []string) (*store.SearchRun, error) {
	if len(variants) == 0 {
		return nil, fmt.Errorf("no query variants for %s", pkg)
	}
	log := c.log.WithPackage(pkg).WithQuery(variants[0])

	snap, err := c.backend.GetSnapshot(pkg)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	if snap == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoScan, pkg)
	}

	found := make(github.RepoSet)
	searched := make(map[string]bool, len(variants))
	for _, v := range variants {
		if searched[v] {
			continue
		}
		searched[v] = true

		repos, err := c.searcher.Search(ctx, v, c.filename)
		if err != nil {
			return nil, fmt.Errorf("failed to search for %q: %w", v, err)
		}
		log.Debugw("variant searched", "variant", v, "repositories", len(repos))
		found.Union(repos)
	}

	matched := make(github.RepoSet)
	for _, r := range snap.Repos {
		if found.Has(r.FullName()) {
			matched.Add(r.FullName())
		}
	}
	names := matched.Sorted()

	id, err := c.backend.RecordSearchRun(pkg, variants[0], names)
	if err != nil {
		return nil, fmt.Errorf("failed to record search run: %w", err)
	}

	log.Infow("correlation complete",
		"remote", len(found),
		"snapshot", len(snap.Repos),
		"matched", len(names))

	run, err := c.backend.GetLatestRun(pkg, variants[0])
	if err != nil {
		return nil, fmt.Errorf("failed to load recorded run: %w", err)
	}
	if run == nil || run.ID != id {
		return nil, fmt.Errorf("recorded run %d not found", id)
	}
	return run, nil
}
