package store

import (
	"sort"
	"time"
)

// RepoRef is one reference to a GitHub repository found at a path in the
// corpus. Path is relative to the corpus root and uses forward slashes.
type RepoRef struct {
	Path  string `json:"path"`
	Owner string `json:"owner"`
	Repo  string `json:"repo"`
}

// FullName returns the "owner/repo" identifier used by GitHub.
func (r RepoRef) FullName() string {
	return r.Owner + "/" + r.Repo
}

// Snapshot is the set of references recorded for one package by its most
// recent scan. Generation increases by one every time the snapshot is
// replaced.
type Snapshot struct {
	PackageName string    `json:"package_name"`
	ScannedAt   time.Time `json:"scanned_at"`
	Generation  int64     `json:"generation"`
	Digest      uint64    `json:"digest"`
	Repos       []RepoRef `json:"repos"`
}

// SearchRun records one remote search and the snapshot repositories it
// matched. Runs are never modified after they are recorded.
type SearchRun struct {
	ID          int64     `json:"id"`
	PackageName string    `json:"package_name"`
	Query       string    `json:"query"`
	CreatedAt   time.Time `json:"created_at"`
	Matched     []string  `json:"matched"` // "owner/repo", sorted
}

// PackageSummary describes one tracked package for status listings.
type PackageSummary struct {
	Name         string
	ScannedAt    time.Time
	RepoCount    int
	RunCount     int
	LastSearchAt *time.Time // nil if never searched
}

// SortRefs orders refs by path, then owner, then repo.
func SortRefs(refs []RepoRef) {
	sort.Slice(refs, func(i, j int) bool {
		a, b := refs[i], refs[j]
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		if a.Owner != b.Owner {
			return a.Owner < b.Owner
		}
		return a.Repo < b.Repo
	})
}

// CollapseByRepo keeps one ref per owner/repo. When two refs share an
// identifier the later one in refs wins, but it takes the earlier one's
// position so the result keeps the input order otherwise.
func CollapseByRepo(refs []RepoRef) []RepoRef {
	index := make(map[string]int, len(refs))
	out := make([]RepoRef, 0, len(refs))
	for _, r := range refs {
		if i, ok := index[r.FullName()]; ok {
			out[i] = r
			continue
		}
		index[r.FullName()] = len(out)
		out = append(out, r)
	}
	return out
}
