// Package extract finds GitHub repository references in Nix expressions.
//
// Matching is lexical: a fetchFromGitHub { ... }; block ends at the first
// "};" that follows it, even when that terminator sits inside a string.
// Within a block the first owner = "..." and repo = "..." assignments are
// used, and blocks lacking either one are dropped.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"unicode/utf8"

	"github.com/blackwell-systems/pinscan/internal/store"
)

var (
	blockPattern = regexp.MustCompile(`fetchFromGitHub\s*\{\s*([\s\S]*?)\s*\};`)
	ownerPattern = regexp.MustCompile(`owner\s*=\s*"([^"]+)"`)
	repoPattern  = regexp.MustCompile(`repo\s*=\s*"([^"]+)"`)
)

// Ref is a repository reference before it is tagged with a corpus path.
type Ref struct {
	Owner string
	Repo  string
}

// Extract returns one Ref per complete fetchFromGitHub block in text, in
// order of appearance.
func Extract(text string) []Ref {
	var refs []Ref
	for _, m := range blockPattern.FindAllStringSubmatch(text, -1) {
		body := m[1]
		owner := ownerPattern.FindStringSubmatch(body)
		repo := repoPattern.FindStringSubmatch(body)
		if owner == nil || repo == nil {
			continue
		}
		refs = append(refs, Ref{Owner: owner[1], Repo: repo[1]})
	}
	return refs
}

// ExtractFile reads path and tags every Ref with path relative to root.
// Files that are not valid UTF-8 are rejected.
func ExtractFile(path, root string) ([]store.RepoRef, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("failed to decode %s: not valid UTF-8", path)
	}

	rel, err := filepath.Rel(root, path)
	if err != nil {
		return nil, fmt.Errorf("failed to relativize %s: %w", path, err)
	}
	rel = filepath.ToSlash(rel)

	refs := Extract(string(data))
	out := make([]store.RepoRef, 0, len(refs))
	for _, r := range refs {
		out = append(out, store.RepoRef{Path: rel, Owner: r.Owner, Repo: r.Repo})
	}
	return out, nil
}
