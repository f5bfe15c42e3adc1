package walker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"

	"zipsift/internal/logging"
)

// FileInfo represents a regular file found under the root.
type FileInfo struct {
	Path    string // Absolute path
	RelPath string // Relative path from root, forward slashes
	Size    int64
}

// Walker enumerates regular files under a root directory with exclude
// pattern support. Symlinks are followed, both for files and for
// directories; cycles are not detected.
type Walker struct {
	root     string
	excludes []string
	logger   zerolog.Logger
}

// NewWalker creates a new file walker.
func NewWalker(root string, excludes []string) (*Walker, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("get absolute path: %w", err)
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root is not a directory: %s", absRoot)
	}

	return &Walker{
		root:     absRoot,
		excludes: excludes,
		logger:   logging.GetLogger("walker"),
	}, nil
}

// Walk traverses the tree with a pool of directory workers and returns
// every matching regular file, sorted by relative path. Entries that
// cannot be read or statted are logged and skipped; they never abort
// the walk.
func (w *Walker) Walk(ctx context.Context) ([]FileInfo, error) {
	workerCount := 8
	if envWorkers := os.Getenv("ZIPSIFT_WORKERS"); envWorkers != "" {
		if count, err := strconv.Atoi(envWorkers); err == nil && count > 0 {
			workerCount = count
			if workerCount > 32 {
				workerCount = 32
			}
		}
	}

	dirQueue := make(chan string, 1000)

	var files []FileInfo
	var filesMutex sync.Mutex

	var dirWg sync.WaitGroup
	var workerWg sync.WaitGroup
	workerWg.Add(workerCount)

	for i := 0; i < workerCount; i++ {
		go func() {
			defer workerWg.Done()

			for dir := range dirQueue {
				if ctx.Err() != nil {
					dirWg.Done()
					continue
				}

				entries, err := os.ReadDir(dir)
				if err != nil {
					w.logger.Warn().Err(err).Str("path", dir).Msg("skipping unreadable directory")
					dirWg.Done()
					continue
				}

				for _, entry := range entries {
					fullPath := filepath.Join(dir, entry.Name())

					// Stat instead of entry.Info so symlinks resolve to
					// their targets.
					info, err := os.Stat(fullPath)
					if err != nil {
						w.logger.Warn().Err(err).Str("path", fullPath).Msg("skipping unreadable entry")
						continue
					}

					if info.IsDir() {
						dirWg.Add(1)

						select {
						case dirQueue <- fullPath:
						default:
							// Queue is full; hand off to a blocking sender.
							go func(path string) {
								dirQueue <- path
							}(fullPath)
						}
						continue
					}

					if !info.Mode().IsRegular() {
						continue
					}

					relPath, err := filepath.Rel(w.root, fullPath)
					if err != nil {
						continue
					}
					relPath = filepath.ToSlash(relPath)

					if w.isExcluded(relPath) {
						continue
					}

					filesMutex.Lock()
					files = append(files, FileInfo{
						Path:    fullPath,
						RelPath: relPath,
						Size:    info.Size(),
					})
					filesMutex.Unlock()
				}

				dirWg.Done()
			}
		}()
	}

	dirWg.Add(1)
	dirQueue <- w.root

	go func() {
		dirWg.Wait()
		close(dirQueue)
	}()

	workerWg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].RelPath < files[j].RelPath
	})

	return files, nil
}

// isExcluded checks if a relative path matches any exclude pattern.
func (w *Walker) isExcluded(path string) bool {
	for _, pattern := range w.excludes {
		if strings.HasSuffix(pattern, "/") {
			dirPattern := strings.TrimSuffix(pattern, "/")
			parts := strings.Split(path, "/")
			for i := 1; i <= len(parts); i++ {
				subPath := strings.Join(parts[:i], "/")
				if matched, _ := doublestar.Match(dirPattern, subPath); matched {
					return true
				}
			}
		} else {
			if matched, _ := doublestar.Match(pattern, path); matched {
				return true
			}
		}
	}
	return false
}

// TotalSize sums the sizes of the given files. Computed once before
// hashing begins; a file resized afterwards only skews the displayed
// progress, never the comparison itself.
func TotalSize(files []FileInfo) int64 {
	var total int64
	for _, f := range files {
		total += f.Size
	}
	return total
}
