package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"zipsift/internal/logging"
	"zipsift/internal/progress"
	"zipsift/pkg/comparer"
	"zipsift/pkg/differ"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
	builtBy = "unknown"
)

var (
	excludes       []string
	concurrency    int
	noExtract      bool
	failFast       bool
	quiet          bool
	verbosity      int
	resultJSONFile string
)

// CompareResult is the JSON rendering of one run.
type CompareResult struct {
	Folder     string          `json:"folder"`
	Archive    string          `json:"archive"`
	Output     string          `json:"output"`
	Duplicates []DuplicateFile `json:"duplicates"`
	Extracted  []string        `json:"extracted"`
	Errors     []ErrorFile     `json:"errors"`
	Summary    ResultSummary   `json:"summary"`
}

type DuplicateFile struct {
	Entry   string `json:"entry"`
	Matches string `json:"matches"`
}

type ErrorFile struct {
	Entry string `json:"entry"`
	Error string `json:"error"`
}

type ResultSummary struct {
	Entries     int   `json:"entries"`
	Duplicates  int   `json:"duplicates"`
	Unique      int   `json:"unique"`
	Extracted   int   `json:"extracted"`
	Failed      int   `json:"failed"`
	FolderSize  int64 `json:"folder_size"`
	ArchiveSize int64 `json:"archive_size"`
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "zipsift <Folder> <Archive> <OutputDir>",
		Short: "Extract only the archive entries whose content is not already in a folder",
		Long: `zipsift fingerprints every file under a folder and every entry of a
ZIP archive with SHA-256, then extracts only the entries whose content
does not already exist somewhere in the folder.`,
		Version: fmt.Sprintf("%s (commit: %s, built at: %s by %s)", version, commit, date, builtBy),
		Args:    cobra.ExactArgs(3),
		RunE:    run,
	}

	rootCmd.Flags().StringSliceVar(&excludes, "exclude", nil, "Exclude patterns for the folder scan (multiple allowed)")
	rootCmd.Flags().IntVar(&concurrency, "concurrency", 8, "Number of concurrent hashing workers")
	rootCmd.Flags().BoolVar(&noExtract, "no-extract", false, "Classify only, write nothing")
	rootCmd.Flags().BoolVar(&failFast, "fail-fast", false, "Abort extraction on the first failure")
	rootCmd.Flags().BoolVar(&quiet, "quiet", false, "Suppress progress and report output")
	rootCmd.Flags().CountVarP(&verbosity, "verbose", "v", "Increase log verbosity")
	rootCmd.Flags().StringVar(&resultJSONFile, "result-json-file", "", "Path to output result as JSON file")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	folderPath := args[0]
	archivePath := args[1]
	outputDir := args[2]

	logging.Setup(verbosity)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracker := progress.NewTracker()

	cmp := comparer.New(comparer.Options{
		Excludes:    excludes,
		Concurrency: concurrency,
		Extract:     !noExtract,
		FailFast:    failFast,
		Tracker:     tracker,
	})

	progressCtx, stopProgress := context.WithCancel(ctx)
	var progressWg sync.WaitGroup
	if !quiet {
		progressWg.Add(1)
		go func() {
			defer progressWg.Done()
			renderProgress(progressCtx, tracker)
		}()
	}

	start := time.Now()
	result, err := cmp.Run(ctx, folderPath, archivePath, outputDir)
	stopProgress()
	progressWg.Wait()

	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("operation cancelled")
		}
		return err
	}

	compareResult := buildCompareResult(folderPath, archivePath, outputDir, result)

	if !quiet {
		printReport(compareResult, time.Since(start))
	}

	if resultJSONFile != "" {
		if err := writeCompareResult(resultJSONFile, compareResult); err != nil {
			return fmt.Errorf("failed to write result JSON: %w", err)
		}
	}

	if compareResult.Summary.Failed > 0 {
		return fmt.Errorf("%d entries failed to extract", compareResult.Summary.Failed)
	}

	return nil
}

// renderProgress polls the tracker and drives one progress bar per
// hashing pass. Display only; the hashing hot path never blocks on it.
func renderProgress(ctx context.Context, tracker *progress.Tracker) {
	ticker := time.NewTicker(150 * time.Millisecond)
	defer ticker.Stop()

	var bar *pterm.ProgressbarPrinter
	var phase string
	var last int64

	for {
		select {
		case <-ctx.Done():
			if bar != nil {
				_, _ = bar.Stop()
			}
			return
		case <-ticker.C:
			s := tracker.Snapshot()
			if s.Phase == "" || s.Total <= 0 {
				continue
			}

			if s.Phase != phase {
				if bar != nil {
					_, _ = bar.Stop()
				}
				bar, _ = pterm.DefaultProgressbar.
					WithTotal(int(s.Total)).
					WithTitle("Hashing " + s.Phase).
					WithShowCount(false).
					Start()
				phase = s.Phase
				last = 0
			}

			if delta := s.Processed - last; delta > 0 {
				bar.Add(int(delta))
				last = s.Processed
			}
			bar.UpdateTitle(fmt.Sprintf("Hashing %s (%s/s)", s.Phase, formatBytes(int64(s.Speed()))))
		}
	}
}

func buildCompareResult(folderPath, archivePath, outputDir string, result *comparer.Result) CompareResult {
	compareResult := CompareResult{
		Folder:     folderPath,
		Archive:    archivePath,
		Output:     outputDir,
		Duplicates: []DuplicateFile{},
		Extracted:  []string{},
		Errors:     []ErrorFile{},
	}

	duplicates, uniques := differ.Count(result.Plan)
	compareResult.Summary = ResultSummary{
		Entries:     len(result.Plan),
		Duplicates:  duplicates,
		Unique:      uniques,
		FolderSize:  result.FolderBytes,
		ArchiveSize: result.ArchiveBytes,
	}

	for _, c := range result.Plan {
		if c.Outcome == differ.OutcomeDuplicate {
			compareResult.Duplicates = append(compareResult.Duplicates, DuplicateFile{
				Entry:   c.Path,
				Matches: c.MatchedPath,
			})
		}
	}

	if result.Extraction != nil {
		compareResult.Extracted = append(compareResult.Extracted, result.Extraction.Written...)
		compareResult.Summary.Extracted = len(result.Extraction.Written)
		for _, f := range result.Extraction.Failures {
			compareResult.Errors = append(compareResult.Errors, ErrorFile{
				Entry: f.Path,
				Error: f.Err.Error(),
			})
		}
		compareResult.Summary.Failed = len(result.Extraction.Failures)
	}

	return compareResult
}

func printReport(result CompareResult, duration time.Duration) {
	fmt.Println()
	fmt.Println("Diff Report:")
	fmt.Println("--------------------------------------------------")
	fmt.Printf("Archive examined: %s\n", result.Archive)
	fmt.Printf("Compared against folder: %s\n", result.Folder)
	fmt.Printf("Files extracted to: %s\n", result.Output)

	fmt.Printf("\nDuplicate entries found (%d):\n", result.Summary.Duplicates)
	for _, d := range result.Duplicates {
		fmt.Printf("Archive: %s\n", d.Entry)
		fmt.Printf("Matches: %s\n\n", d.Matches)
	}

	fmt.Printf("Entries extracted (%d):\n", result.Summary.Extracted)
	for _, path := range result.Extracted {
		fmt.Printf("- %s\n", path)
	}

	if result.Summary.Failed > 0 {
		fmt.Printf("\nFailed entries (%d):\n", result.Summary.Failed)
		for _, e := range result.Errors {
			fmt.Printf("- %s: %s\n", e.Entry, e.Error)
		}
	}

	fmt.Println()
	fmt.Println("Summary:")
	fmt.Println("--------------------------------------------------")
	fmt.Printf("Total archive size: %s\n", formatBytes(result.Summary.ArchiveSize))
	fmt.Printf("Total folder size scanned: %s\n", formatBytes(result.Summary.FolderSize))
	fmt.Printf("Total entries processed: %d\n", result.Summary.Entries)
	fmt.Printf("Total duplicates: %d\n", result.Summary.Duplicates)
	fmt.Printf("Total entries extracted: %d\n", result.Summary.Extracted)
	fmt.Printf("Duration: %s\n", duration.Round(time.Millisecond))
}

func writeCompareResult(path string, result CompareResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}

// formatBytes formats bytes in human readable format
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
