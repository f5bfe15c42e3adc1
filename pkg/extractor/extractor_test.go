package extractor

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"

	"zipsift/pkg/differ"
)

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

func TestExtractWritesOnlyUniqueEntries(t *testing.T) {
	archivePath := filepath.Join(t.TempDir(), "test.zip")
	writeTestZip(t, archivePath,
		map[string]string{"a.txt": "hello", "sub/b.txt": "world"},
		[]string{"a.txt", "sub/b.txt"})

	plan := []differ.Classification{
		{Path: "a.txt", Outcome: differ.OutcomeDuplicate, MatchedPath: "docs/a.txt"},
		{Path: "sub/b.txt", Outcome: differ.OutcomeUnique},
	}

	outputDir := t.TempDir()
	result, err := New(outputDir, false).Extract(context.Background(), archivePath, plan)
	require.NoError(t, err)

	require.Equal(t, []string{"sub/b.txt"}, result.Written)
	require.Empty(t, result.Failures)
	require.Equal(t, []string{"sub/b.txt"}, listFiles(t, outputDir))

	content, err := os.ReadFile(filepath.Join(outputDir, "sub", "b.txt"))
	require.NoError(t, err)
	require.Equal(t, "world", string(content))
}

func TestExtractRejectsEscapingPaths(t *testing.T) {
	archivePath := filepath.Join(t.TempDir(), "test.zip")
	writeTestZip(t, archivePath,
		map[string]string{"../evil.txt": "payload"},
		[]string{"../evil.txt"})

	plan := []differ.Classification{
		{Path: "../evil.txt", Outcome: differ.OutcomeUnique},
	}

	base := t.TempDir()
	outputDir := filepath.Join(base, "out")
	require.NoError(t, os.Mkdir(outputDir, 0o755))

	result, err := New(outputDir, false).Extract(context.Background(), archivePath, plan)
	require.NoError(t, err)

	require.Empty(t, result.Written)
	require.Len(t, result.Failures, 1)
	require.Equal(t, "../evil.txt", result.Failures[0].Path)
	require.NoFileExists(t, filepath.Join(base, "evil.txt"))
}

func TestExtractContinuesPastFailures(t *testing.T) {
	archivePath := filepath.Join(t.TempDir(), "test.zip")
	writeTestZip(t, archivePath,
		map[string]string{"b.txt": "world"},
		[]string{"b.txt"})

	plan := []differ.Classification{
		{Path: "missing.txt", Outcome: differ.OutcomeUnique},
		{Path: "b.txt", Outcome: differ.OutcomeUnique},
	}

	outputDir := t.TempDir()
	result, err := New(outputDir, false).Extract(context.Background(), archivePath, plan)
	require.NoError(t, err)

	require.Equal(t, []string{"b.txt"}, result.Written)
	require.Len(t, result.Failures, 1)
	require.Equal(t, "missing.txt", result.Failures[0].Path)
}

func TestExtractFailFastAborts(t *testing.T) {
	archivePath := filepath.Join(t.TempDir(), "test.zip")
	writeTestZip(t, archivePath,
		map[string]string{"b.txt": "world"},
		[]string{"b.txt"})

	plan := []differ.Classification{
		{Path: "missing.txt", Outcome: differ.OutcomeUnique},
		{Path: "b.txt", Outcome: differ.OutcomeUnique},
	}

	outputDir := t.TempDir()
	result, err := New(outputDir, true).Extract(context.Background(), archivePath, plan)
	require.Error(t, err)
	require.Empty(t, result.Written)
	require.Empty(t, listFiles(t, outputDir))
}

func TestExtractCancelledLeavesNoPartialFile(t *testing.T) {
	archivePath := filepath.Join(t.TempDir(), "test.zip")
	writeTestZip(t, archivePath,
		map[string]string{"b.txt": "world"},
		[]string{"b.txt"})

	plan := []differ.Classification{
		{Path: "b.txt", Outcome: differ.OutcomeUnique},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outputDir := t.TempDir()
	_, err := New(outputDir, false).Extract(ctx, archivePath, plan)
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, listFiles(t, outputDir))
}
