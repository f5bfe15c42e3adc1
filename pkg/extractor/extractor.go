package extractor

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"zipsift/internal/logging"
	"zipsift/internal/zipfile"
	"zipsift/pkg/differ"
)

// Extractor materializes the Unique entries of an extraction plan
// under an output directory, preserving each entry's relative path.
type Extractor struct {
	outputDir string
	failFast  bool
	logger    zerolog.Logger
}

// New creates an extractor. With failFast the first write failure
// aborts the remaining extraction; otherwise failures are collected
// and extraction continues, since they are independent per entry.
func New(outputDir string, failFast bool) *Extractor {
	return &Extractor{
		outputDir: outputDir,
		failFast:  failFast,
		logger:    logging.GetLogger("extractor"),
	}
}

// Failure attributes one extraction error to its entry.
type Failure struct {
	Path string
	Err  error
}

// Result reports what was written. Entries written before any failure
// remain valid on disk.
type Result struct {
	Written  []string
	Failures []Failure
}

// Extract walks the plan in order and writes every Unique entry.
// Duplicate entries are skipped. Each file is written to a temporary
// name and renamed on completion, so cancellation never leaves a
// truncated file under its final name.
func (e *Extractor) Extract(ctx context.Context, archivePath string, plan []differ.Classification) (*Result, error) {
	arc, err := zipfile.Open(archivePath)
	if err != nil {
		return nil, err
	}
	defer arc.Close()

	result := &Result{}

	for _, c := range plan {
		if c.Outcome != differ.OutcomeUnique {
			continue
		}

		if err := ctx.Err(); err != nil {
			return result, err
		}

		if err := e.extractEntry(arc, c.Path); err != nil {
			e.logger.Error().Err(err).Str("entry", c.Path).Msg("extraction failed")
			result.Failures = append(result.Failures, Failure{Path: c.Path, Err: err})
			if e.failFast {
				return result, fmt.Errorf("extract %s: %w", c.Path, err)
			}
			continue
		}

		result.Written = append(result.Written, c.Path)
	}

	return result, nil
}

func (e *Extractor) extractEntry(arc *zipfile.Archive, name string) error {
	f, ok := arc.Entry(name)
	if !ok {
		return fmt.Errorf("entry not found in archive: %s", name)
	}

	dest, err := securePath(e.outputDir, name)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open entry: %w", err)
	}
	defer rc.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".zipsift-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	if _, err := io.Copy(tmp, rc); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write entry: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), dest); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename into place: %w", err)
	}

	return nil
}

// securePath joins an entry name onto the output directory, rejecting
// names that would escape it.
func securePath(base, name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("entry path escapes output directory: %s", name)
	}
	return filepath.Join(base, clean), nil
}
