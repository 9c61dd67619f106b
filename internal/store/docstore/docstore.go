// Package docstore implements store.Backend on a single JSON document.
//
// Every operation takes an advisory lock on a sidecar ".lock" file and
// re-reads the document, so several processes (a long running watcher and
// a one-shot search, say) can share one file. Mutations rewrite the whole
// document through a temporary file renamed into place, so a reader never
// sees a partial write.
package docstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/blackwell-systems/pinscan/internal/store"
)

const formatVersion = 1

// document is the on-disk layout.
type document struct {
	Version   int                        `json:"version"`
	NextRunID int64                      `json:"next_run_id"`
	Snapshots map[string]*store.Snapshot `json:"snapshots"`
	Runs      []*store.SearchRun         `json:"runs"`
}

// Store is a JSON file backed store.Backend.
type Store struct {
	mu   sync.Mutex
	path string
	doc  *document
	now  func() time.Time
}

var _ store.Backend = (*Store)(nil)

// Open loads the document at path, creating an empty one if it does not
// exist yet.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	s := &Store{path: path, now: time.Now}
	unlock, err := s.lock(syscall.LOCK_SH)
	if err != nil {
		return nil, err
	}
	unlock()
	return s, nil
}

// load reads the document at path. A missing file is an empty document.
func load(path string) (*document, error) {
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return emptyDocument(), nil
	case err != nil:
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	doc := emptyDocument()
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	if doc.Version > formatVersion {
		return nil, fmt.Errorf("unsupported document version %d in %s", doc.Version, path)
	}
	if doc.Snapshots == nil {
		doc.Snapshots = make(map[string]*store.Snapshot)
	}
	return doc, nil
}

// lock flocks the sidecar lock file with how (LOCK_SH or LOCK_EX) and
// reloads the document from disk. Callers hold s.mu and must call the
// returned func to release the lock.
func (s *Store) lock(how int) (func(), error) {
	f, err := os.OpenFile(s.path+".lock", os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}
	if err := syscall.Flock(int(f.Fd()), how); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to lock %s: %w", s.path, err)
	}
	unlock := func() {
		_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
		f.Close()
	}

	doc, err := load(s.path)
	if err != nil {
		unlock()
		return nil, err
	}
	s.doc = doc
	return unlock, nil
}

func emptyDocument() *document {
	return &document{
		Version:   formatVersion,
		NextRunID: 1,
		Snapshots: make(map[string]*store.Snapshot),
	}
}

// save writes the document atomically. Callers hold s.mu and the
// exclusive file lock.
func (s *Store) save(doc *document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", s.path, err)
	}

	s.doc = doc
	return nil
}

// clone returns a deep copy of the document so mutations can be
// discarded when the save fails.
func (d *document) clone() *document {
	out := &document{
		Version:   d.Version,
		NextRunID: d.NextRunID,
		Snapshots: make(map[string]*store.Snapshot, len(d.Snapshots)),
		Runs:      make([]*store.SearchRun, len(d.Runs)),
	}
	for k, v := range d.Snapshots {
		out.Snapshots[k] = copySnapshot(v)
	}
	for i, r := range d.Runs {
		out.Runs[i] = copyRun(r)
	}
	return out
}

func copySnapshot(s *store.Snapshot) *store.Snapshot {
	c := *s
	c.Repos = append([]store.RepoRef{}, s.Repos...)
	return &c
}

func copyRun(r *store.SearchRun) *store.SearchRun {
	c := *r
	c.Matched = append([]string{}, r.Matched...)
	return &c
}

// UpsertSnapshot replaces the snapshot for pkg.
func (s *Store) UpsertSnapshot(pkg string, repos []store.RepoRef, digest uint64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	unlock, err := s.lock(syscall.LOCK_EX)
	if err != nil {
		return 0, err
	}
	defer unlock()

	doc := s.doc.clone()

	collapsed := store.CollapseByRepo(repos)
	store.SortRefs(collapsed)

	var generation int64 = 1
	if prev, ok := doc.Snapshots[pkg]; ok {
		generation = prev.Generation + 1
	}
	doc.Snapshots[pkg] = &store.Snapshot{
		PackageName: pkg,
		ScannedAt:   s.now().UTC(),
		Generation:  generation,
		Digest:      digest,
		Repos:       collapsed,
	}

	if err := s.save(doc); err != nil {
		return 0, fmt.Errorf("failed to write snapshot for %s: %w", pkg, err)
	}
	return len(collapsed), nil
}

// GetSnapshot returns the current snapshot for pkg, or nil.
func (s *Store) GetSnapshot(pkg string) (*store.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	unlock, err := s.lock(syscall.LOCK_SH)
	if err != nil {
		return nil, err
	}
	defer unlock()

	snap, ok := s.doc.Snapshots[pkg]
	if !ok {
		return nil, nil
	}
	return copySnapshot(snap), nil
}

// RecordSearchRun appends a run for pkg.
func (s *Store) RecordSearchRun(pkg, query string, matched []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	unlock, err := s.lock(syscall.LOCK_EX)
	if err != nil {
		return 0, err
	}
	defer unlock()

	if _, ok := s.doc.Snapshots[pkg]; !ok {
		return 0, fmt.Errorf("%w: %s", store.ErrNoSnapshot, pkg)
	}

	doc := s.doc.clone()

	names := uniqueSorted(matched)
	run := &store.SearchRun{
		ID:          doc.NextRunID,
		PackageName: pkg,
		Query:       query,
		CreatedAt:   s.now().UTC(),
		Matched:     names,
	}
	doc.NextRunID++
	doc.Runs = append(doc.Runs, run)

	if err := s.save(doc); err != nil {
		return 0, fmt.Errorf("failed to record search run: %w", err)
	}
	return run.ID, nil
}

// GetLatestRun returns the newest run for pkg and query, or nil.
func (s *Store) GetLatestRun(pkg, query string) (*store.SearchRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	unlock, err := s.lock(syscall.LOCK_SH)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var latest *store.SearchRun
	for _, r := range s.doc.Runs {
		if r.PackageName != pkg || r.Query != query {
			continue
		}
		if latest == nil || newer(r, latest) {
			latest = r
		}
	}
	if latest == nil {
		return nil, nil
	}
	return copyRun(latest), nil
}

func newer(a, b *store.SearchRun) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

// ListPackages summarises every scanned package, by name.
func (s *Store) ListPackages() ([]*store.PackageSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	unlock, err := s.lock(syscall.LOCK_SH)
	if err != nil {
		return nil, err
	}
	defer unlock()

	summaries := make(map[string]*store.PackageSummary, len(s.doc.Snapshots))
	for name, snap := range s.doc.Snapshots {
		summaries[name] = &store.PackageSummary{
			Name:      name,
			ScannedAt: snap.ScannedAt,
			RepoCount: len(snap.Repos),
		}
	}
	for _, r := range s.doc.Runs {
		p, ok := summaries[r.PackageName]
		if !ok {
			continue
		}
		p.RunCount++
		if p.LastSearchAt == nil || r.CreatedAt.After(*p.LastSearchAt) {
			t := r.CreatedAt
			p.LastSearchAt = &t
		}
	}

	packages := make([]*store.PackageSummary, 0, len(summaries))
	for _, p := range summaries {
		packages = append(packages, p)
	}
	sort.Slice(packages, func(i, j int) bool { return packages[i].Name < packages[j].Name })
	return packages, nil
}

// DeletePackage removes the snapshot and runs of pkg.
func (s *Store) DeletePackage(pkg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	unlock, err := s.lock(syscall.LOCK_EX)
	if err != nil {
		return err
	}
	defer unlock()

	if _, ok := s.doc.Snapshots[pkg]; !ok {
		return nil
	}

	doc := s.doc.clone()
	delete(doc.Snapshots, pkg)
	kept := doc.Runs[:0]
	for _, r := range doc.Runs {
		if r.PackageName != pkg {
			kept = append(kept, r)
		}
	}
	doc.Runs = kept

	if err := s.save(doc); err != nil {
		return fmt.Errorf("failed to delete package %s: %w", pkg, err)
	}
	return nil
}

// DeleteAll resets the document to its empty state.
func (s *Store) DeleteAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	unlock, err := s.lock(syscall.LOCK_EX)
	if err != nil {
		return err
	}
	defer unlock()

	if err := s.save(emptyDocument()); err != nil {
		return fmt.Errorf("failed to reset document: %w", err)
	}
	return nil
}

// Close is a no-op; every mutation is already on disk.
func (s *Store) Close() error {
	return nil
}

func uniqueSorted(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
