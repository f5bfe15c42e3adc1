// Package differ classifies archive entries against a folder's
// fingerprint set. Pure computation over two materialized indexes; no
// I/O, no concurrency.
package differ

import (
	"sort"

	"zipsift/pkg/fingerprint"
)

// Outcome is the per-entry classification result.
type Outcome string

const (
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeUnique    Outcome = "unique"
)

// Classification records the decision for one archive entry. The
// ordered sequence of these is the extraction plan.
type Classification struct {
	Path        string
	Digest      fingerprint.Digest
	Size        uint64
	Outcome     Outcome
	MatchedPath string // Folder path with identical content, for duplicates
}

// Diff classifies every archive entry as Duplicate or Unique. The plan
// is ordered by the archive index's insertion order. When several
// folder files share one digest, the lexicographically smallest path
// is the representative, so results are deterministic regardless of
// hashing order.
func Diff(folder, archive *fingerprint.Index) []Classification {
	reverse := make(map[fingerprint.Digest]string, folder.Len())
	folderPaths := folder.Paths()
	sort.Strings(folderPaths)
	for _, path := range folderPaths {
		e, _ := folder.Get(path)
		if _, seen := reverse[e.Digest]; !seen {
			reverse[e.Digest] = path
		}
	}

	plan := make([]Classification, 0, archive.Len())
	for _, path := range archive.Paths() {
		e, _ := archive.Get(path)

		c := Classification{
			Path:    path,
			Digest:  e.Digest,
			Size:    e.Size,
			Outcome: OutcomeUnique,
		}
		if matched, ok := reverse[e.Digest]; ok {
			c.Outcome = OutcomeDuplicate
			c.MatchedPath = matched
		}
		plan = append(plan, c)
	}

	return plan
}

// Count tallies the plan's outcomes.
func Count(plan []Classification) (duplicates, uniques int) {
	for _, c := range plan {
		switch c.Outcome {
		case OutcomeDuplicate:
			duplicates++
		case OutcomeUnique:
			uniques++
		}
	}
	return duplicates, uniques
}
