package store

// Snapshot rows live in an arena keyed by (package_name, generation).
// snapshots.generation names the live generation; replacement writes the
// next generation, repoints the package and drops the old rows in one
// transaction.
const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
    package_name TEXT PRIMARY KEY,
    scanned_at TEXT NOT NULL,
    generation INTEGER NOT NULL,
    digest INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS repositories (
    package_name TEXT NOT NULL,
    generation INTEGER NOT NULL,
    path TEXT NOT NULL,
    owner TEXT NOT NULL,
    repo TEXT NOT NULL,
    PRIMARY KEY (package_name, generation, owner, repo),
    FOREIGN KEY (package_name) REFERENCES snapshots(package_name) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS search_runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    package_name TEXT NOT NULL,
    query TEXT NOT NULL,
    created_at TEXT NOT NULL,
    FOREIGN KEY (package_name) REFERENCES snapshots(package_name) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS search_matches (
    run_id INTEGER NOT NULL,
    full_name TEXT NOT NULL,
    PRIMARY KEY (run_id, full_name),
    FOREIGN KEY (run_id) REFERENCES search_runs(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_repos_package ON repositories(package_name, generation);
CREATE INDEX IF NOT EXISTS idx_runs_lookup ON search_runs(package_name, query, created_at);
CREATE INDEX IF NOT EXISTS idx_matches_run ON search_matches(run_id);
`
