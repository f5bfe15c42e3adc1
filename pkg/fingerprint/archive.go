package fingerprint

import (
	"context"
	"fmt"

	"zipsift/internal/checksum"
	"zipsift/internal/progress"
	"zipsift/internal/zipfile"
)

// ArchiveScanner fingerprints every non-directory entry of a ZIP
// archive. Entries are hashed one at a time; the container serializes
// its internal state, so parallel entry reads buy nothing.
type ArchiveScanner struct {
	ChunkSize int
	Tracker   *progress.Tracker
}

// NewArchiveScanner creates a scanner with the given options.
func NewArchiveScanner(tracker *progress.Tracker) *ArchiveScanner {
	return &ArchiveScanner{Tracker: tracker}
}

// Scan opens the archive at path and fingerprints its entries.
// Directory markers never appear in the returned index. Unlike the
// tree scan, any entry failure is fatal: structural integrity of the
// container is a precondition for random access to every entry.
func (s *ArchiveScanner) Scan(ctx context.Context, path string) (*Index, error) {
	arc, err := zipfile.Open(path)
	if err != nil {
		return nil, err
	}
	defer arc.Close()

	return s.ScanArchive(ctx, arc)
}

// ScanArchive fingerprints an already-open archive.
func (s *ArchiveScanner) ScanArchive(ctx context.Context, arc *zipfile.Archive) (*Index, error) {
	hasher := &checksum.Hasher{ChunkSize: s.ChunkSize, Counter: counter(s.Tracker)}
	index := NewIndex()

	for _, f := range arc.Entries() {
		if f.FileInfo().IsDir() {
			continue
		}

		if s.Tracker != nil {
			s.Tracker.SetCurrent(f.Name)
		}

		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open entry %s: %w", f.Name, err)
		}

		digest, err := hasher.Sum(ctx, rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("hash entry %s: %w", f.Name, err)
		}

		index.Add(Entry{Path: f.Name, Digest: digest, Size: f.UncompressedSize64})
	}

	return index, nil
}
