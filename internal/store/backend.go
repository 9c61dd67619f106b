package store

import "errors"

var (
	// ErrNotInitialized is returned when the database schema is missing.
	ErrNotInitialized = errors.New("database not initialized; run 'pinscan scan' first")

	// ErrNoSnapshot is returned when recording a search run for a package
	// that has never been scanned.
	ErrNoSnapshot = errors.New("no snapshot for package")
)

// Backend is the persistence contract shared by the SQLite store and the
// JSON document store.
type Backend interface {
	// UpsertSnapshot replaces the package's snapshot with repos in a single
	// atomic step and returns the number of references stored. References
	// sharing owner/repo collapse to the last one given.
	UpsertSnapshot(pkg string, repos []RepoRef, digest uint64) (int, error)

	// GetSnapshot returns the current snapshot, or nil if the package has
	// never been scanned.
	GetSnapshot(pkg string) (*Snapshot, error)

	// RecordSearchRun appends a run and returns its ID. It fails with
	// ErrNoSnapshot if the package has no snapshot.
	RecordSearchRun(pkg, query string, matched []string) (int64, error)

	// GetLatestRun returns the newest run for pkg and query, or nil.
	GetLatestRun(pkg, query string) (*SearchRun, error)

	// ListPackages summarises every package with a snapshot, by name.
	ListPackages() ([]*PackageSummary, error)

	// DeletePackage removes the snapshot and all runs of pkg.
	DeletePackage(pkg string) error

	// DeleteAll removes every package's data.
	DeleteAll() error

	Close() error
}
