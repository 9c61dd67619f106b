package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// fakeGitHub answers every code search with the same repositories and
// records the queries it saw.
type fakeGitHub struct {
	mu      sync.Mutex
	repos   []string
	queries []string
}

func newFakeGitHub(t *testing.T, repos ...string) (*fakeGitHub, *httptest.Server) {
	t.Helper()
	f := &fakeGitHub{repos: repos}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search/code" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer test-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		f.mu.Lock()
		f.queries = append(f.queries, r.URL.Query().Get("q"))
		f.mu.Unlock()

		type repo struct {
			FullName string `json:"full_name"`
		}
		type item struct {
			Repository repo `json:"repository"`
		}
		resp := struct {
			TotalCount int    `json:"total_count"`
			Items      []item `json:"items"`
		}{TotalCount: len(f.repos)}
		for _, name := range f.repos {
			resp.Items = append(resp.Items, item{Repository: repo{FullName: name}})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeGitHub) Queries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

func TestSearchCommand_RecordsRun(t *testing.T) {
	gh, srv := newFakeGitHub(t, "x/y", "not/scanned")
	e := newTestEnv(t, srv.URL)
	e.nixFile(t, "pkgs/a.nix", "hatchling", "x", "y")

	if _, _, err := e.run(t, "scan", "hatchling"); err != nil {
		t.Fatalf("scan failed: %v", err)
	}

	stdout, stderr, err := e.run(t, "search", "hatchling")
	if err != nil {
		t.Fatalf("search failed: %v (stderr: %s)", err, stderr)
	}
	if !strings.Contains(stdout, "Recorded search run #1 for 'hatchling==': 1 matching repository") {
		t.Errorf("unexpected search output: %q", stdout)
	}
	if !strings.Contains(stderr, "Searching GitHub for 'hatchling=='") {
		t.Errorf("expected spinner message on stderr, got: %q", stderr)
	}

	want := []string{`"hatchling==" filename:pyproject.toml`, `"hatchling == " filename:pyproject.toml`}
	got := gh.Queries()
	if len(got) != len(want) {
		t.Fatalf("queries = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("query[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSearchCommand_WithoutScan(t *testing.T) {
	gh, srv := newFakeGitHub(t, "x/y")
	e := newTestEnv(t, srv.URL)

	_, stderr, err := e.run(t, "search", "hatchling")
	if err == nil {
		t.Fatal("expected search without a scan to fail")
	}
	if !strings.Contains(stderr, "no scan data") {
		t.Errorf("expected no-scan error on stderr, got: %q", stderr)
	}
	if len(gh.Queries()) != 0 {
		t.Errorf("expected no remote queries, got %q", gh.Queries())
	}
}

func TestAllCommand_EndToEnd(t *testing.T) {
	_, srv := newFakeGitHub(t, "x/y", "x/z")
	e := newTestEnv(t, srv.URL)
	e.nixFile(t, "pkgs/a.nix", "hatchling", "x", "y")
	e.nixFile(t, "pkgs/b.nix", "hatchling", "x", "z")
	e.nixFile(t, "pkgs/c.nix", "hatchling", "p", "q")

	stdout, stderr, err := e.run(t, "all", "hatchling")
	if err != nil {
		t.Fatalf("all failed: %v (stderr: %s)", err, stderr)
	}

	for _, want := range []string{
		"Scanned hatchling: 3 files, 3 repositories (updated)",
		"Recorded search run #1 for 'hatchling==': 2 matching repositories",
		"Found 2 matches across 2 files for 'hatchling==' (searched ",
		"pkgs/a.nix\tx/y\n",
		"pkgs/b.nix\tx/z\n",
	} {
		if !strings.Contains(stdout, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, stdout)
		}
	}
	if strings.Contains(stdout, "p/q") {
		t.Errorf("unmatched repository reported:\n%s", stdout)
	}
}

func TestAllCommand_MissingTokenContinues(t *testing.T) {
	gh, srv := newFakeGitHub(t, "x/y")
	e := newTestEnv(t, srv.URL)
	t.Setenv("GITHUB_TOKEN", "")
	e.nixFile(t, "a.nix", "hatchling", "x", "y")
	e.nixFile(t, "b.nix", "setuptools", "p", "q")

	stdout, stderr, err := e.run(t, "all", "hatchling", "setuptools")
	if err == nil {
		t.Fatal("expected all to fail without a token")
	}
	if !strings.Contains(err.Error(), "2 of 2 specifiers failed") {
		t.Errorf("unexpected summary error: %v", err)
	}

	// Both packages are still scanned.
	if !strings.Contains(stdout, "Scanned hatchling") || !strings.Contains(stdout, "Scanned setuptools") {
		t.Errorf("expected both scans to run, got:\n%s", stdout)
	}
	if strings.Count(stderr, "GITHUB_TOKEN") != 2 {
		t.Errorf("expected the token error once per specifier, got:\n%s", stderr)
	}
	if len(gh.Queries()) != 0 {
		t.Errorf("expected no remote queries, got %q", gh.Queries())
	}
}

func TestReportCommand_NeverSearchedVsNoMatches(t *testing.T) {
	_, srv := newFakeGitHub(t)
	e := newTestEnv(t, srv.URL)
	e.nixFile(t, "a.nix", "hatchling", "x", "y")

	if _, _, err := e.run(t, "scan", "hatchling"); err != nil {
		t.Fatalf("scan failed: %v", err)
	}

	stdout, _, err := e.run(t, "report", "hatchling")
	if err != nil {
		t.Fatalf("report failed: %v", err)
	}
	if stdout != "No search has been run for 'hatchling' with 'hatchling=='.\n" {
		t.Errorf("unexpected never-searched report: %q", stdout)
	}

	if _, _, err := e.run(t, "search", "hatchling"); err != nil {
		t.Fatalf("search failed: %v", err)
	}

	stdout, _, err = e.run(t, "report", "hatchling")
	if err != nil {
		t.Fatalf("report failed: %v", err)
	}
	if stdout != "Search for 'hatchling==' found no matching repositories.\n" {
		t.Errorf("unexpected no-matches report: %q", stdout)
	}
}

func TestReportCommand_ExactVersionIsSeparateQuery(t *testing.T) {
	_, srv := newFakeGitHub(t, "x/y")
	e := newTestEnv(t, srv.URL)
	e.nixFile(t, "a.nix", "hatchling", "x", "y")

	if _, _, err := e.run(t, "all", "hatchling==1.27.0"); err != nil {
		t.Fatalf("all failed: %v", err)
	}

	stdout, _, err := e.run(t, "report", "hatchling")
	if err != nil {
		t.Fatalf("report failed: %v", err)
	}
	if !strings.HasPrefix(stdout, "No search has been run for 'hatchling' with 'hatchling=='") {
		t.Errorf("expected the bare query to be unsearched, got: %q", stdout)
	}

	stdout, _, err = e.run(t, "report", "hatchling == 1.27.0")
	if err != nil {
		t.Fatalf("report failed: %v", err)
	}
	if !strings.Contains(stdout, "a.nix\tx/y") {
		t.Errorf("expected the spaced specifier to find the canonical run, got: %q", stdout)
	}
}
