// Package report renders the outcome of the latest search run for a package.
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/blackwell-systems/pinscan/internal/store"
)

// Status classifies a report.
type Status int

const (
	// NeverSearched means no run exists for the package and query.
	NeverSearched Status = iota
	// NoMatches means the latest run matched no snapshot repository.
	NoMatches
	// Found means at least one snapshot reference matched.
	Found
)

func (s Status) String() string {
	switch s {
	case NeverSearched:
		return "never_searched"
	case NoMatches:
		return "no_matches"
	case Found:
		return "found"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

const timeFormat = "2006-01-02 15:04:05 UTC"

// Group is one corpus path and the matched repositories referenced there.
type Group struct {
	Path  string
	Repos []string // "owner/repo", ascending
}

// Report is the joined view of a search run and the current snapshot.
type Report struct {
	Package    string
	Query      string
	Status     Status
	RunID      int64
	SearchedAt time.Time
	Groups     []Group // by path, ascending
	Matches    int     // snapshot references matched
	// Stale counts run matches that are no longer in the snapshot.
	Stale int
}

// Reporter builds reports from a store.
type Reporter struct {
	backend store.Backend
}

// New creates a Reporter.
func New(backend store.Backend) *Reporter {
	return &Reporter{backend: backend}
}

// Report loads the latest run for pkg and query and joins it with the
// package's current snapshot.
func (r *Reporter) Report(pkg, query string) (*Report, error) {
	rep := &Report{Package: pkg, Query: query, Status: NeverSearched}

	run, err := r.backend.GetLatestRun(pkg, query)
	if err != nil {
		return nil, fmt.Errorf("failed to load latest run: %w", err)
	}
	if run == nil {
		return rep, nil
	}
	rep.RunID = run.ID
	rep.SearchedAt = run.CreatedAt

	snap, err := r.backend.GetSnapshot(pkg)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	var refs []store.RepoRef
	if snap != nil {
		refs = snap.Repos
	}

	matched := make(map[string]bool, len(run.Matched))
	for _, name := range run.Matched {
		matched[name] = true
	}

	byPath := make(map[string][]string)
	present := make(map[string]bool)
	for _, ref := range refs {
		name := ref.FullName()
		if !matched[name] {
			continue
		}
		present[name] = true
		byPath[ref.Path] = append(byPath[ref.Path], name)
		rep.Matches++
	}
	rep.Stale = len(matched) - len(present)

	for path, repos := range byPath {
		sort.Strings(repos)
		rep.Groups = append(rep.Groups, Group{Path: path, Repos: repos})
	}
	sort.Slice(rep.Groups, func(i, j int) bool { return rep.Groups[i].Path < rep.Groups[j].Path })

	if rep.Matches > 0 {
		rep.Status = Found
	} else {
		rep.Status = NoMatches
	}
	return rep, nil
}

// Render writes the report as text.
func (r *Report) Render(w io.Writer) error {
	var sb strings.Builder

	switch r.Status {
	case NeverSearched:
		fmt.Fprintf(&sb, "No search has been run for '%s' with '%s'.\n", r.Package, r.Query)
	case NoMatches:
		if r.Stale > 0 {
			fmt.Fprintf(&sb, "Search for '%s' matched %d %s, but none %s still in the snapshot.\n",
				r.Query, r.Stale, plural(r.Stale, "repository", "repositories"), plural(r.Stale, "is", "are"))
			break
		}
		fmt.Fprintf(&sb, "Search for '%s' found no matching repositories.\n", r.Query)
	case Found:
		fmt.Fprintf(&sb, "Found %d %s across %d %s for '%s' (searched %s):\n",
			r.Matches, plural(r.Matches, "match", "matches"),
			len(r.Groups), plural(len(r.Groups), "file", "files"),
			r.Query, r.SearchedAt.UTC().Format(timeFormat))
		for _, g := range r.Groups {
			fmt.Fprintf(&sb, "%s\t%s\n", g.Path, strings.Join(g.Repos, ", "))
		}
	}
	if r.Stale > 0 {
		fmt.Fprintf(&sb, "(%d matched %s no longer in the snapshot; rerun search to refresh)\n",
			r.Stale, plural(r.Stale, "repository is", "repositories are"))
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

// String returns the rendered report.
func (r *Report) String() string {
	var sb strings.Builder
	_ = r.Render(&sb)
	return sb.String()
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
