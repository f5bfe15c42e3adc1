// Package comparer runs the full comparison: size both sources,
// fingerprint them, classify every archive entry and extract the
// unique ones.
package comparer

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"zipsift/internal/logging"
	"zipsift/internal/progress"
	"zipsift/internal/walker"
	"zipsift/internal/zipfile"
	"zipsift/pkg/differ"
	"zipsift/pkg/extractor"
	"zipsift/pkg/fingerprint"
)

// Options configures a comparison run.
type Options struct {
	Excludes    []string
	Concurrency int // Hashing workers for the folder pass
	ChunkSize   int
	Extract     bool // Materialize unique entries after diffing
	FailFast    bool // Abort extraction on the first failure
	Tracker     *progress.Tracker
}

// Result is the structured outcome handed to the reporting layer.
type Result struct {
	FolderBytes  int64
	ArchiveBytes int64
	FolderIndex  *fingerprint.Index
	ArchiveIndex *fingerprint.Index
	Plan         []differ.Classification
	Extraction   *extractor.Result // nil when extraction was not requested
}

// Comparer orchestrates the fingerprinters, the diff and the
// extractor.
type Comparer struct {
	opts   Options
	logger zerolog.Logger
}

// New creates a comparer.
func New(opts Options) *Comparer {
	return &Comparer{
		opts:   opts,
		logger: logging.GetLogger("comparer"),
	}
}

// Run executes the comparison of folderPath against archivePath,
// extracting unique entries into outputDir when enabled. Cancellation
// aborts the whole run; no partial result is returned.
func (c *Comparer) Run(ctx context.Context, folderPath, archivePath, outputDir string) (*Result, error) {
	w, err := walker.NewWalker(folderPath, c.opts.Excludes)
	if err != nil {
		return nil, fmt.Errorf("walk folder: %w", err)
	}

	files, err := w.Walk(ctx)
	if err != nil {
		return nil, fmt.Errorf("walk folder: %w", err)
	}

	// Open the archive up front: a malformed container fails the run
	// before any hashing starts, and it gives the sizing pass its
	// uncompressed total.
	arc, err := zipfile.Open(archivePath)
	if err != nil {
		return nil, err
	}
	archiveBytes := arc.TotalUncompressedSize()
	arc.Close()

	folderBytes := walker.TotalSize(files)

	c.logger.Debug().
		Int("files", len(files)).
		Int64("folderBytes", folderBytes).
		Int64("archiveBytes", archiveBytes).
		Msg("sizing pass complete")

	if c.opts.Tracker != nil {
		c.opts.Tracker.Reset("folder", folderBytes)
	}

	tree := fingerprint.NewTreeScanner(c.opts.Excludes, c.opts.Concurrency, c.opts.Tracker)
	tree.ChunkSize = c.opts.ChunkSize
	folderIndex, err := tree.ScanFiles(ctx, files)
	if err != nil {
		return nil, fmt.Errorf("fingerprint folder: %w", err)
	}

	if c.opts.Tracker != nil {
		c.opts.Tracker.Reset("archive", archiveBytes)
	}

	archiveScanner := fingerprint.NewArchiveScanner(c.opts.Tracker)
	archiveScanner.ChunkSize = c.opts.ChunkSize
	archiveIndex, err := archiveScanner.Scan(ctx, archivePath)
	if err != nil {
		return nil, fmt.Errorf("fingerprint archive: %w", err)
	}

	result := &Result{
		FolderBytes:  folderBytes,
		ArchiveBytes: archiveBytes,
		FolderIndex:  folderIndex,
		ArchiveIndex: archiveIndex,
		Plan:         differ.Diff(folderIndex, archiveIndex),
	}

	if c.opts.Extract {
		ex := extractor.New(outputDir, c.opts.FailFast)
		extraction, err := ex.Extract(ctx, archivePath, result.Plan)
		if err != nil {
			return nil, fmt.Errorf("extract: %w", err)
		}
		result.Extraction = extraction
	}

	return result, nil
}
