package extract

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/blackwell-systems/pinscan/internal/store"
)

const mockNixFile = `
{ lib, fetchFromGitHub, python3Packages }:

python3Packages.buildPythonApplication rec {
  pname = "some-package";
  version = "1.0";

  src = fetchFromGitHub {
    owner = "test-owner";
    repo = "test-repo";
    rev = "v${version}";
    hash = "sha256-...";
  };

  build-system = [ python3Packages.hatchling ];
}
`

func TestExtract(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []Ref
	}{
		{
			name: "single block",
			text: mockNixFile,
			want: []Ref{{Owner: "test-owner", Repo: "test-repo"}},
		},
		{
			name: "multiple blocks",
			text: `
  a = fetchFromGitHub { owner = "x"; repo = "y"; rev = "1"; };
  b = fetchFromGitHub {
    repo = "z";
    owner = "x";
  };`,
			want: []Ref{{Owner: "x", Repo: "y"}, {Owner: "x", Repo: "z"}},
		},
		{
			name: "missing repo is dropped",
			text: `src = fetchFromGitHub { owner = "x"; rev = "1"; };`,
			want: nil,
		},
		{
			name: "missing owner is dropped",
			text: `src = fetchFromGitHub { repo = "y"; rev = "1"; };`,
			want: nil,
		},
		{
			name: "keys are case sensitive",
			text: `src = fetchFromGitHub { Owner = "x"; Repo = "y"; };`,
			want: nil,
		},
		{
			name: "no space before brace",
			text: `src = fetchFromGitHub{owner="x";repo="y";};`,
			want: []Ref{{Owner: "x", Repo: "y"}},
		},
		{
			name: "unterminated block",
			text: `src = fetchFromGitHub { owner = "x"; repo = "y";`,
			want: nil,
		},
		{
			name: "other fetchers ignored",
			text: `src = fetchFromGitLab { owner = "x"; repo = "y"; };`,
			want: nil,
		},
		{
			name: "no blocks",
			text: "{ }: { }",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Extract(tt.text)
			if len(got) != len(tt.want) {
				t.Fatalf("Extract() returned %d refs (%v), want %d", len(got), got, len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("ref %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestExtract_IncompleteBlockDoesNotBorrowFromNext(t *testing.T) {
	text := `
  a = fetchFromGitHub { owner = "only-owner"; };
  b = fetchFromGitHub { owner = "x"; repo = "y"; };`

	got := Extract(text)
	if len(got) != 1 || got[0] != (Ref{Owner: "x", Repo: "y"}) {
		t.Errorf("Extract() = %v, want only x/y", got)
	}
}

func TestExtractFile(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "pkgs", "development", "python-modules", "some-package")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "default.nix")
	if err := os.WriteFile(path, []byte(mockNixFile), 0644); err != nil {
		t.Fatal(err)
	}

	refs, err := ExtractFile(path, root)
	if err != nil {
		t.Fatalf("ExtractFile() error = %v", err)
	}

	want := store.RepoRef{
		Path:  "pkgs/development/python-modules/some-package/default.nix",
		Owner: "test-owner",
		Repo:  "test-repo",
	}
	if len(refs) != 1 || refs[0] != want {
		t.Errorf("ExtractFile() = %v, want [%v]", refs, want)
	}
}

func TestExtractFile_Errors(t *testing.T) {
	root := t.TempDir()

	if _, err := ExtractFile(filepath.Join(root, "missing.nix"), root); err == nil {
		t.Error("expected error for missing file")
	}

	bin := filepath.Join(root, "binary.nix")
	if err := os.WriteFile(bin, []byte{0xff, 0xfe, 0x00, 0x01}, 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ExtractFile(bin, root); err == nil {
		t.Error("expected error for invalid UTF-8")
	}
}
