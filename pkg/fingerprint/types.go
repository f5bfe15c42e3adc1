package fingerprint

import (
	"zipsift/internal/checksum"
)

// Digest is the SHA-256 fingerprint of one file's or entry's complete
// byte content.
type Digest = checksum.Digest

// Entry is one fingerprinted file or archive entry. Paths are unique
// within an index; digests are not, and a digest shared by several
// paths signals duplicate content.
type Entry struct {
	Path   string
	Digest Digest
	Size   uint64
}

// Index maps identifiers to fingerprint entries for one source (folder
// or archive), preserving insertion order. Built once per scan and
// immutable after that; ownership moves to the diff step.
type Index struct {
	entries map[string]Entry
	order   []string
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{entries: make(map[string]Entry)}
}

// Add inserts or replaces the entry under its path.
func (ix *Index) Add(e Entry) {
	if _, exists := ix.entries[e.Path]; !exists {
		ix.order = append(ix.order, e.Path)
	}
	ix.entries[e.Path] = e
}

// Get looks up an entry by path.
func (ix *Index) Get(path string) (Entry, bool) {
	e, ok := ix.entries[path]
	return e, ok
}

// Paths returns all paths in insertion order.
func (ix *Index) Paths() []string {
	paths := make([]string, len(ix.order))
	copy(paths, ix.order)
	return paths
}

// Len returns the number of entries.
func (ix *Index) Len() int {
	return len(ix.entries)
}

// TotalSize sums the byte sizes of all entries.
func (ix *Index) TotalSize() uint64 {
	var total uint64
	for _, e := range ix.entries {
		total += e.Size
	}
	return total
}
