package fingerprint

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"zipsift/internal/checksum"
	"zipsift/internal/logging"
	"zipsift/internal/progress"
	"zipsift/internal/walker"
)

// DefaultConcurrency bounds the hashing worker pool when the caller
// does not choose a limit.
const DefaultConcurrency = 8

// TreeScanner fingerprints every regular file under a directory tree.
// Files are hashed concurrently by a bounded worker pool; per-file
// errors are logged and that file is excluded from the index rather
// than aborting the scan.
type TreeScanner struct {
	Excludes    []string
	Concurrency int
	ChunkSize   int
	Tracker     *progress.Tracker

	logger zerolog.Logger
}

// NewTreeScanner creates a scanner with the given options.
func NewTreeScanner(excludes []string, concurrency int, tracker *progress.Tracker) *TreeScanner {
	return &TreeScanner{
		Excludes:    excludes,
		Concurrency: concurrency,
		Tracker:     tracker,
		logger:      logging.GetLogger("treescan"),
	}
}

// Scan walks root and returns the fingerprint index of its files.
func (s *TreeScanner) Scan(ctx context.Context, root string) (*Index, error) {
	w, err := walker.NewWalker(root, s.Excludes)
	if err != nil {
		return nil, err
	}

	files, err := w.Walk(ctx)
	if err != nil {
		return nil, err
	}

	return s.ScanFiles(ctx, files)
}

// ScanFiles hashes an already-enumerated file list. Exposed separately
// so the caller can size the tree before any hashing starts.
func (s *TreeScanner) ScanFiles(ctx context.Context, files []walker.FileInfo) (*Index, error) {
	concurrency := s.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	index := NewIndex()
	var indexMutex sync.Mutex

	jobs := make(chan walker.FileInfo)

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			hasher := &checksum.Hasher{ChunkSize: s.ChunkSize, Counter: counter(s.Tracker)}

			for f := range jobs {
				if ctx.Err() != nil {
					continue
				}

				if s.Tracker != nil {
					s.Tracker.SetCurrent(f.RelPath)
				}

				digest, err := hasher.SumFile(ctx, f.Path)
				if err != nil {
					if ctx.Err() != nil {
						continue
					}
					s.logger.Warn().Err(err).Str("path", f.Path).Msg("skipping unreadable file")
					continue
				}

				indexMutex.Lock()
				index.Add(Entry{Path: f.RelPath, Digest: digest, Size: uint64(f.Size)})
				indexMutex.Unlock()
			}
		}()
	}

	// The bounded queue back-pressures instead of spawning one task
	// per file.
sendLoop:
	for _, f := range files {
		select {
		case jobs <- f:
		case <-ctx.Done():
			break sendLoop
		}
	}
	close(jobs)

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return index, nil
}

// counter adapts a possibly-nil tracker to the hasher's interface.
func counter(t *progress.Tracker) checksum.Counter {
	if t == nil {
		return nil
	}
	return t
}
