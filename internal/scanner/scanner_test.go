package scanner

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/blackwell-systems/pinscan/internal/finder"
	"github.com/blackwell-systems/pinscan/internal/logger"
	"github.com/blackwell-systems/pinscan/internal/store"
)

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	if err := st.CreateSchema(); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func nixFile(owner, repo string) string {
	return `{ fetchFromGitHub, hatchling }:
{
  src = fetchFromGitHub {
    owner = "` + owner + `";
    repo = "` + repo + `";
    rev = "v1";
  };
  build-system = [ hatchling ];
}`
}

type failingFinder struct{ err error }

func (f failingFinder) Find(context.Context, string, string) ([]string, error) {
	return nil, f.err
}

func newTestScanner(st store.Backend) *Scanner {
	return New(st, finder.NewWalk([]string{"**/*.nix"}, nil, nil), logger.Nop())
}

func TestScan(t *testing.T) {
	st := setupTestStore(t)
	root := t.TempDir()
	writeFile(t, root, "pkgs/a/default.nix", nixFile("x", "y"))
	writeFile(t, root, "pkgs/b/default.nix", nixFile("p", "q"))
	writeFile(t, root, "pkgs/c/default.nix", `{ setuptools }: { src = fetchFromGitHub { owner = "no"; repo = "match"; }; }`)

	s := newTestScanner(st)
	result, err := s.Scan(context.Background(), "hatchling", root)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	if result.Files != 2 {
		t.Errorf("Files = %d, want 2", result.Files)
	}
	if result.Stored != 2 {
		t.Errorf("Stored = %d, want 2", result.Stored)
	}
	if !result.Changed {
		t.Error("first scan should report Changed")
	}

	snap, err := st.GetSnapshot("hatchling")
	if err != nil || snap == nil {
		t.Fatalf("GetSnapshot() = %v, %v", snap, err)
	}
	want := []store.RepoRef{
		{Path: "pkgs/a/default.nix", Owner: "x", Repo: "y"},
		{Path: "pkgs/b/default.nix", Owner: "p", Repo: "q"},
	}
	if len(snap.Repos) != len(want) {
		t.Fatalf("Repos = %v, want %v", snap.Repos, want)
	}
	for i := range want {
		if snap.Repos[i] != want[i] {
			t.Errorf("Repos[%d] = %v, want %v", i, snap.Repos[i], want[i])
		}
	}
}

func TestScan_Idempotent(t *testing.T) {
	st := setupTestStore(t)
	root := t.TempDir()
	writeFile(t, root, "a.nix", nixFile("x", "y"))

	s := newTestScanner(st)
	if _, err := s.Scan(context.Background(), "hatchling", root); err != nil {
		t.Fatal(err)
	}
	first, _ := st.GetSnapshot("hatchling")

	result, err := s.Scan(context.Background(), "hatchling", root)
	if err != nil {
		t.Fatal(err)
	}
	second, _ := st.GetSnapshot("hatchling")

	if result.Changed {
		t.Error("rescan of unchanged corpus should not report Changed")
	}
	if result.Previous != 1 {
		t.Errorf("Previous = %d, want 1", result.Previous)
	}
	if first.Digest != second.Digest || len(first.Repos) != len(second.Repos) || first.Repos[0] != second.Repos[0] {
		t.Errorf("snapshots differ: %v vs %v", first.Repos, second.Repos)
	}
}

func TestScan_ReplacesSnapshot(t *testing.T) {
	st := setupTestStore(t)
	root := t.TempDir()
	writeFile(t, root, "a.nix", nixFile("old", "one"))

	s := newTestScanner(st)
	if _, err := s.Scan(context.Background(), "hatchling", root); err != nil {
		t.Fatal(err)
	}

	writeFile(t, root, "a.nix", nixFile("new", "two"))
	result, err := s.Scan(context.Background(), "hatchling", root)
	if err != nil {
		t.Fatal(err)
	}
	if !result.Changed {
		t.Error("expected Changed after corpus edit")
	}

	snap, _ := st.GetSnapshot("hatchling")
	if len(snap.Repos) != 1 || snap.Repos[0].Owner != "new" {
		t.Errorf("Repos = %v, want only new/two", snap.Repos)
	}
}

func TestScan_DeduplicatesAndCollapses(t *testing.T) {
	st := setupTestStore(t)
	root := t.TempDir()
	// Same block twice in one file, and the same repo in a second file.
	writeFile(t, root, "a.nix", nixFile("x", "y")+"\n"+nixFile("x", "y"))
	writeFile(t, root, "b.nix", nixFile("x", "y"))

	result, err := newTestScanner(st).Scan(context.Background(), "hatchling", root)
	if err != nil {
		t.Fatal(err)
	}
	if result.Refs != 2 {
		t.Errorf("Refs = %d, want 2 distinct triples", result.Refs)
	}
	if result.Stored != 1 {
		t.Errorf("Stored = %d, want 1", result.Stored)
	}

	snap, _ := st.GetSnapshot("hatchling")
	if snap.Repos[0].Path != "b.nix" {
		t.Errorf("Path = %s, want b.nix (last in path order wins)", snap.Repos[0].Path)
	}
}

func TestScan_EmptyResultStillRecorded(t *testing.T) {
	st := setupTestStore(t)
	root := t.TempDir()
	writeFile(t, root, "a.nix", nixFile("x", "y"))

	s := newTestScanner(st)
	s.Scan(context.Background(), "hatchling", root)

	result, err := s.Scan(context.Background(), "poetry-core", root)
	if err != nil {
		t.Fatal(err)
	}
	if result.Files != 0 || result.Stored != 0 {
		t.Errorf("result = %+v, want empty", result)
	}

	snap, _ := st.GetSnapshot("poetry-core")
	if snap == nil || len(snap.Repos) != 0 {
		t.Errorf("GetSnapshot() = %v, want empty snapshot", snap)
	}
}

func TestScan_SkipsUndecodableFiles(t *testing.T) {
	st := setupTestStore(t)
	root := t.TempDir()
	writeFile(t, root, "a.nix", nixFile("x", "y"))
	writeFile(t, root, "bad.nix", "hatchling \xff\xfe")

	result, err := newTestScanner(st).Scan(context.Background(), "hatchling", root)
	if err != nil {
		t.Fatal(err)
	}
	if result.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", result.Skipped)
	}
	if result.Stored != 1 {
		t.Errorf("Stored = %d, want 1", result.Stored)
	}
}

func TestScan_MissingCorpus(t *testing.T) {
	st := setupTestStore(t)

	_, err := newTestScanner(st).Scan(context.Background(), "hatchling", filepath.Join(t.TempDir(), "missing"))
	if !errors.Is(err, ErrCorpusNotFound) {
		t.Errorf("Scan() error = %v, want ErrCorpusNotFound", err)
	}

	file := filepath.Join(t.TempDir(), "file")
	os.WriteFile(file, nil, 0644)
	_, err = newTestScanner(st).Scan(context.Background(), "hatchling", file)
	if !errors.Is(err, ErrCorpusNotFound) {
		t.Errorf("Scan(file) error = %v, want ErrCorpusNotFound", err)
	}
}

func TestScan_FinderFailureLeavesStateUntouched(t *testing.T) {
	st := setupTestStore(t)
	root := t.TempDir()
	writeFile(t, root, "a.nix", nixFile("x", "y"))

	if _, err := newTestScanner(st).Scan(context.Background(), "hatchling", root); err != nil {
		t.Fatal(err)
	}
	before, _ := st.GetSnapshot("hatchling")

	s := New(st, failingFinder{err: finder.ErrToolNotFound}, logger.Nop())
	_, err := s.Scan(context.Background(), "hatchling", root)
	if !errors.Is(err, finder.ErrToolNotFound) {
		t.Fatalf("Scan() error = %v, want ErrToolNotFound", err)
	}

	after, _ := st.GetSnapshot("hatchling")
	if after.Generation != before.Generation {
		t.Errorf("Generation changed from %d to %d after failed scan", before.Generation, after.Generation)
	}
}

func TestScan_ProgressOutput(t *testing.T) {
	st := setupTestStore(t)
	root := t.TempDir()
	writeFile(t, root, "a.nix", nixFile("x", "y"))

	buf := &bytes.Buffer{}
	s := newTestScanner(st)
	s.SetProgressWriter(buf)
	if _, err := s.Scan(context.Background(), "hatchling", root); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "Scanning hatchling") {
		t.Errorf("progress output = %q", buf.String())
	}
}
