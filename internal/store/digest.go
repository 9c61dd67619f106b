package store

import (
	"github.com/cespare/xxhash/v2"
)

// Digest returns a content hash of refs that is independent of their order.
// Two scans yielding the same set of references have the same digest.
func Digest(refs []RepoRef) uint64 {
	sorted := make([]RepoRef, len(refs))
	copy(sorted, refs)
	SortRefs(sorted)

	h := xxhash.New()
	for _, r := range sorted {
		h.WriteString(r.Path)
		h.WriteString("\x00")
		h.WriteString(r.Owner)
		h.WriteString("\x00")
		h.WriteString(r.Repo)
		h.WriteString("\n")
	}
	return h.Sum64()
}
