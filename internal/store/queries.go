package store

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"
)

// Snapshot operations

// UpsertSnapshot replaces the snapshot for pkg. The previous generation
// stays visible to readers until the transaction commits. The snapshots row
// is updated in place rather than replaced so that the package's search
// runs, which reference it, survive the rescan.
func (s *Store) UpsertSnapshot(pkg string, repos []RepoRef, digest uint64) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var current int64
	err = tx.QueryRow(`SELECT generation FROM snapshots WHERE package_name = ?`, pkg).Scan(&current)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("failed to read snapshot generation for %s: %w", pkg, wrapErr(err))
	}
	next := current + 1

	_, err = tx.Exec(`
		INSERT INTO snapshots (package_name, scanned_at, generation, digest)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(package_name) DO UPDATE SET
			scanned_at = excluded.scanned_at,
			generation = excluded.generation,
			digest = excluded.digest
	`, pkg, formatTime(s.now()), next, int64(digest))
	if err != nil {
		return 0, fmt.Errorf("failed to write snapshot for %s: %w", pkg, wrapErr(err))
	}

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO repositories (package_name, generation, path, owner, repo)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare repository insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range repos {
		if _, err := stmt.Exec(pkg, next, r.Path, r.Owner, r.Repo); err != nil {
			return 0, fmt.Errorf("failed to insert repository %s for %s: %w", r.FullName(), pkg, err)
		}
	}

	if _, err := tx.Exec(`DELETE FROM repositories WHERE package_name = ? AND generation <> ?`, pkg, next); err != nil {
		return 0, fmt.Errorf("failed to drop previous snapshot for %s: %w", pkg, err)
	}

	var count int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM repositories WHERE package_name = ? AND generation = ?`, pkg, next).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count repositories for %s: %w", pkg, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit snapshot for %s: %w", pkg, err)
	}

	return count, nil
}

// GetSnapshot retrieves the current snapshot for pkg. Returns nil, nil if
// the package has never been scanned.
func (s *Store) GetSnapshot(pkg string) (*Snapshot, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // read-only

	snap := Snapshot{PackageName: pkg}
	var scannedAt string
	var digest int64

	err = tx.QueryRow(`
		SELECT scanned_at, generation, digest
		FROM snapshots
		WHERE package_name = ?
	`, pkg).Scan(&scannedAt, &snap.Generation, &digest)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot for %s: %w", pkg, wrapErr(err))
	}

	snap.Digest = uint64(digest)
	snap.ScannedAt, err = parseTime(scannedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse scanned_at for %s: %w", pkg, err)
	}

	rows, err := tx.Query(`
		SELECT path, owner, repo
		FROM repositories
		WHERE package_name = ? AND generation = ?
		ORDER BY path, owner, repo
	`, pkg, snap.Generation)
	if err != nil {
		return nil, fmt.Errorf("failed to get repositories for %s: %w", pkg, err)
	}
	defer rows.Close()

	snap.Repos = []RepoRef{}
	for rows.Next() {
		var r RepoRef
		if err := rows.Scan(&r.Path, &r.Owner, &r.Repo); err != nil {
			return nil, fmt.Errorf("failed to scan repository row: %w", err)
		}
		snap.Repos = append(snap.Repos, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating repositories: %w", err)
	}

	return &snap, nil
}

// Search run operations

// RecordSearchRun appends a search run with its matched identifiers and
// returns the run ID.
func (s *Store) RecordSearchRun(pkg, query string, matched []string) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var exists int
	err = tx.QueryRow(`SELECT 1 FROM snapshots WHERE package_name = ?`, pkg).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", ErrNoSnapshot, pkg)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to check snapshot for %s: %w", pkg, wrapErr(err))
	}

	result, err := tx.Exec(`
		INSERT INTO search_runs (package_name, query, created_at)
		VALUES (?, ?, ?)
	`, pkg, query, formatTime(s.now()))
	if err != nil {
		return 0, fmt.Errorf("failed to insert search run: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get search run ID: %w", err)
	}

	for _, name := range matched {
		if _, err := tx.Exec(`INSERT OR IGNORE INTO search_matches (run_id, full_name) VALUES (?, ?)`, id, name); err != nil {
			return 0, fmt.Errorf("failed to insert match %s: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit search run: %w", err)
	}

	return id, nil
}

// GetLatestRun returns the most recent run for pkg and query. Ties on the
// timestamp go to the higher ID. Returns nil, nil if none exists.
func (s *Store) GetLatestRun(pkg, query string) (*SearchRun, error) {
	run := SearchRun{PackageName: pkg, Query: query}
	var createdAt string

	err := s.db.QueryRow(`
		SELECT id, created_at
		FROM search_runs
		WHERE package_name = ? AND query = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, pkg, query).Scan(&run.ID, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest run for %s: %w", pkg, wrapErr(err))
	}

	run.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at for run %d: %w", run.ID, err)
	}

	rows, err := s.db.Query(`
		SELECT full_name
		FROM search_matches
		WHERE run_id = ?
		ORDER BY full_name
	`, run.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get matches for run %d: %w", run.ID, err)
	}
	defer rows.Close()

	run.Matched = []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", err)
		}
		run.Matched = append(run.Matched, name)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating matches: %w", err)
	}

	return &run, nil
}

// Listing and deletion

// ListPackages returns a summary of every scanned package, by name.
func (s *Store) ListPackages() ([]*PackageSummary, error) {
	rows, err := s.db.Query(`
		SELECT
			s.package_name,
			s.scanned_at,
			(SELECT COUNT(*) FROM repositories r
			 WHERE r.package_name = s.package_name AND r.generation = s.generation),
			(SELECT COUNT(*) FROM search_runs sr WHERE sr.package_name = s.package_name),
			(SELECT MAX(created_at) FROM search_runs sr WHERE sr.package_name = s.package_name)
		FROM snapshots s
		ORDER BY s.package_name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list packages: %w", wrapErr(err))
	}
	defer rows.Close()

	var packages []*PackageSummary
	for rows.Next() {
		var p PackageSummary
		var scannedAt string
		var lastSearch sql.NullString

		if err := rows.Scan(&p.Name, &scannedAt, &p.RepoCount, &p.RunCount, &lastSearch); err != nil {
			return nil, fmt.Errorf("failed to scan package row: %w", err)
		}

		p.ScannedAt, err = parseTime(scannedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse scanned_at for %s: %w", p.Name, err)
		}
		if lastSearch.Valid {
			t, err := parseTime(lastSearch.String)
			if err != nil {
				return nil, fmt.Errorf("failed to parse last search time for %s: %w", p.Name, err)
			}
			p.LastSearchAt = &t
		}

		packages = append(packages, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating packages: %w", err)
	}

	sort.Slice(packages, func(i, j int) bool { return packages[i].Name < packages[j].Name })
	return packages, nil
}

// DeletePackage removes all data for pkg. Deleting an unknown package is
// not an error.
func (s *Store) DeletePackage(pkg string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmts := []string{
		`DELETE FROM search_matches WHERE run_id IN (SELECT id FROM search_runs WHERE package_name = ?)`,
		`DELETE FROM search_runs WHERE package_name = ?`,
		`DELETE FROM repositories WHERE package_name = ?`,
		`DELETE FROM snapshots WHERE package_name = ?`,
	}
	for _, q := range stmts {
		if _, err := tx.Exec(q, pkg); err != nil {
			return fmt.Errorf("failed to delete package %s: %w", pkg, wrapErr(err))
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete of %s: %w", pkg, err)
	}
	return nil
}

// DeleteAll removes every row and resets run ID allocation, leaving the
// database as it is right after CreateSchema.
func (s *Store) DeleteAll() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	for _, table := range []string{"search_matches", "search_runs", "repositories", "snapshots"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, wrapErr(err))
		}
	}
	// sqlite_sequence only exists once an AUTOINCREMENT row was written.
	var seq string
	err = tx.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'sqlite_sequence'`).Scan(&seq)
	if err == nil {
		if _, err := tx.Exec(`DELETE FROM sqlite_sequence WHERE name = 'search_runs'`); err != nil {
			return fmt.Errorf("failed to reset run IDs: %w", err)
		}
	} else if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to inspect schema: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reset: %w", err)
	}
	return nil
}
