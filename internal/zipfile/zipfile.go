// Package zipfile wraps read-only access to a ZIP container. Any
// container offering "list entries, stream-decompress by entry" could
// substitute; the rest of the tool never touches ZIP internals.
package zipfile

import (
	"fmt"

	"github.com/klauspost/compress/zip"
)

// Archive is a read-only, reentrant view of a ZIP container. Opening
// independent entry streams is safe; a structural defect in the
// container (bad central directory, bad entry) is fatal to the whole
// scan, not per-entry recoverable.
type Archive struct {
	rc *zip.ReadCloser
}

// Open opens the archive at path and reads its central directory.
func Open(path string) (*Archive, error) {
	rc, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	return &Archive{rc: rc}, nil
}

// Close releases the underlying file handle.
func (a *Archive) Close() error {
	return a.rc.Close()
}

// Entries returns all entries in central-directory order, including
// directory markers.
func (a *Archive) Entries() []*zip.File {
	return a.rc.File
}

// Entry looks up a single entry by its exact name.
func (a *Archive) Entry(name string) (*zip.File, bool) {
	for _, f := range a.rc.File {
		if f.Name == name {
			return f, true
		}
	}
	return nil, false
}

// TotalUncompressedSize sums the decompressed sizes of all
// non-directory entries.
func (a *Archive) TotalUncompressedSize() int64 {
	var total int64
	for _, f := range a.rc.File {
		if f.FileInfo().IsDir() {
			continue
		}
		total += int64(f.UncompressedSize64)
	}
	return total
}
