package comparer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"

	"zipsift/internal/progress"
	"zipsift/pkg/differ"
)

func writeFile(t *testing.T, root, relPath, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(relPath))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func writeTestZip(t *testing.T, path string, entries map[string]string, order []string) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := zip.NewWriter(f)
	for _, name := range order {
		ew, err := w.Create(name)
		require.NoError(t, err)
		if content := entries[name]; content != "" {
			_, err = ew.Write([]byte(content))
			require.NoError(t, err)
		}
	}
	require.NoError(t, w.Close())
}

func listFiles(t *testing.T, root string) []string {
	t.Helper()
	var paths []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	require.NoError(t, err)
	return paths
}

func TestRunExtractsOnlyNewContent(t *testing.T) {
	folder := t.TempDir()
	writeFile(t, folder, "a.txt", "hello")

	archivePath := filepath.Join(t.TempDir(), "test.zip")
	writeTestZip(t, archivePath,
		map[string]string{"a.txt": "hello", "b.txt": "world"},
		[]string{"a.txt", "b.txt"})

	outputDir := t.TempDir()

	cmp := New(Options{Extract: true})
	result, err := cmp.Run(context.Background(), folder, archivePath, outputDir)
	require.NoError(t, err)

	require.Equal(t, int64(5), result.FolderBytes)
	require.Equal(t, int64(10), result.ArchiveBytes)
	require.Len(t, result.Plan, 2)

	require.Equal(t, differ.OutcomeDuplicate, result.Plan[0].Outcome)
	require.Equal(t, "a.txt", result.Plan[0].Path)
	require.Equal(t, "a.txt", result.Plan[0].MatchedPath)

	require.Equal(t, differ.OutcomeUnique, result.Plan[1].Outcome)
	require.Equal(t, "b.txt", result.Plan[1].Path)

	require.Equal(t, []string{"b.txt"}, result.Extraction.Written)
	require.Equal(t, []string{"b.txt"}, listFiles(t, outputDir))

	content, err := os.ReadFile(filepath.Join(outputDir, "b.txt"))
	require.NoError(t, err)
	require.Equal(t, "world", string(content))
}

func TestRunEmptyFolder(t *testing.T) {
	folder := t.TempDir()

	archivePath := filepath.Join(t.TempDir(), "test.zip")
	writeTestZip(t, archivePath,
		map[string]string{"x.txt": "data"},
		[]string{"x.txt"})

	outputDir := t.TempDir()

	cmp := New(Options{Extract: true})
	result, err := cmp.Run(context.Background(), folder, archivePath, outputDir)
	require.NoError(t, err)

	duplicates, uniques := differ.Count(result.Plan)
	require.Equal(t, 0, duplicates)
	require.Equal(t, 1, uniques)
	require.Equal(t, []string{"x.txt"}, listFiles(t, outputDir))
}

func TestRunDirectoryOnlyArchive(t *testing.T) {
	folder := t.TempDir()
	writeFile(t, folder, "a.txt", "hello")

	archivePath := filepath.Join(t.TempDir(), "dirs.zip")
	writeTestZip(t, archivePath, map[string]string{"sub/": ""}, []string{"sub/"})

	outputDir := t.TempDir()

	cmp := New(Options{Extract: true})
	result, err := cmp.Run(context.Background(), folder, archivePath, outputDir)
	require.NoError(t, err)

	require.Empty(t, result.Plan)
	require.Empty(t, result.Extraction.Written)
	require.Empty(t, listFiles(t, outputDir))
}

func TestRunIsIdempotent(t *testing.T) {
	folder := t.TempDir()
	writeFile(t, folder, "a.txt", "hello")
	writeFile(t, folder, "sub/c.txt", "data")

	archivePath := filepath.Join(t.TempDir(), "test.zip")
	writeTestZip(t, archivePath,
		map[string]string{"a.txt": "hello", "b.txt": "world", "c.txt": "data"},
		[]string{"a.txt", "b.txt", "c.txt"})

	cmp := New(Options{})
	first, err := cmp.Run(context.Background(), folder, archivePath, "")
	require.NoError(t, err)

	second, err := cmp.Run(context.Background(), folder, archivePath, "")
	require.NoError(t, err)

	require.Equal(t, first.Plan, second.Plan)
}

func TestRunWithoutExtraction(t *testing.T) {
	folder := t.TempDir()

	archivePath := filepath.Join(t.TempDir(), "test.zip")
	writeTestZip(t, archivePath,
		map[string]string{"x.txt": "data"},
		[]string{"x.txt"})

	cmp := New(Options{})
	result, err := cmp.Run(context.Background(), folder, archivePath, "")
	require.NoError(t, err)
	require.Nil(t, result.Extraction)
	require.Len(t, result.Plan, 1)
}

func TestRunMalformedArchiveIsFatal(t *testing.T) {
	folder := t.TempDir()
	archivePath := filepath.Join(t.TempDir(), "broken.zip")
	require.NoError(t, os.WriteFile(archivePath, []byte("not a zip"), 0o644))

	cmp := New(Options{})
	_, err := cmp.Run(context.Background(), folder, archivePath, "")
	require.Error(t, err)
}

func TestRunResetsTrackerBetweenPasses(t *testing.T) {
	folder := t.TempDir()
	writeFile(t, folder, "a.txt", "hello")

	archivePath := filepath.Join(t.TempDir(), "test.zip")
	writeTestZip(t, archivePath,
		map[string]string{"b.txt": "world!!"},
		[]string{"b.txt"})

	tracker := progress.NewTracker()
	cmp := New(Options{Tracker: tracker})
	_, err := cmp.Run(context.Background(), folder, archivePath, "")
	require.NoError(t, err)

	// After the run the tracker reflects the archive pass only.
	s := tracker.Snapshot()
	require.Equal(t, "archive", s.Phase)
	require.Equal(t, int64(7), s.Total)
	require.Equal(t, int64(7), s.Processed)
}
