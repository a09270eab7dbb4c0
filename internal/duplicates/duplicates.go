// Package duplicates derives duplicate groups and space-savings estimates
// from a baseline index. Nothing here touches the filesystem.
//
// Only hashed entries take part: two entries are duplicates when they carry
// the same content hash. Unhashed entries are counted by Metrics but never
// grouped.
package duplicates

import (
	"fmt"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/samber/lo"

	"github.com/bolet777/mediahub/internal/index"
)

// DuplicateFile is one member of a duplicate group.
type DuplicateFile struct {
	Path      string `json:"path"`
	SizeBytes int64  `json:"sizeBytes"`
	Timestamp string `json:"timestamp"`
}

// DuplicateGroup holds every entry sharing one hash. Files are sorted by path.
type DuplicateGroup struct {
	Hash  string          `json:"hash"`
	Files []DuplicateFile `json:"files"`
}

// SizeBytes is the total size of all files in the group.
func (g DuplicateGroup) SizeBytes() int64 {
	return lo.SumBy(g.Files, func(f DuplicateFile) int64 { return f.SizeBytes })
}

// Savings is what deleting every file but the first would reclaim.
func (g DuplicateGroup) Savings() int64 {
	if len(g.Files) == 0 {
		return 0
	}
	return g.SizeBytes() - g.Files[0].SizeBytes
}

// String formats the group for terminal output.
func (g DuplicateGroup) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%d files, %s)\n", g.Hash, len(g.Files), humanize.IBytes(uint64(g.SizeBytes())))
	for _, f := range g.Files {
		fmt.Fprintf(&b, "  %s\n", f.Path)
	}
	return b.String()
}

// Group returns the duplicate groups of idx, one per hash shared by two or
// more entries, ordered by hash. Output does not depend on entry order.
func Group(idx *index.Index) []DuplicateGroup {
	hashed := lo.Filter(idx.Entries(), func(e index.Entry, _ int) bool { return e.HasHash() })
	byHash := lo.GroupBy(hashed, func(e index.Entry) string { return e.Hash })

	groups := make([]DuplicateGroup, 0, len(byHash))
	for hash, entries := range byHash {
		if len(entries) < 2 {
			continue
		}
		files := lo.Map(entries, func(e index.Entry, _ int) DuplicateFile {
			return DuplicateFile{Path: e.Path, SizeBytes: e.Size, Timestamp: e.Mtime}
		})
		slices.SortFunc(files, func(a, b DuplicateFile) int { return strings.Compare(a.Path, b.Path) })
		groups = append(groups, DuplicateGroup{Hash: hash, Files: files})
	}
	slices.SortFunc(groups, func(a, b DuplicateGroup) int { return strings.Compare(a.Hash, b.Hash) })
	return groups
}

// Summary aggregates a set of groups.
type Summary struct {
	TotalGroups             int   `json:"totalGroups"`
	TotalDuplicateFiles     int   `json:"totalDuplicateFiles"`
	TotalDuplicateSizeBytes int64 `json:"totalDuplicateSizeBytes"`
	PotentialSavingsBytes   int64 `json:"potentialSavingsBytes"`
}

func (s Summary) String() string {
	return fmt.Sprintf("%d groups, %d files (%s), %s reclaimable",
		s.TotalGroups, s.TotalDuplicateFiles,
		humanize.IBytes(uint64(s.TotalDuplicateSizeBytes)),
		humanize.IBytes(uint64(s.PotentialSavingsBytes)))
}

// Summarize totals groups.
func Summarize(groups []DuplicateGroup) Summary {
	return Summary{
		TotalGroups:             len(groups),
		TotalDuplicateFiles:     lo.SumBy(groups, func(g DuplicateGroup) int { return len(g.Files) }),
		TotalDuplicateSizeBytes: lo.SumBy(groups, DuplicateGroup.SizeBytes),
		PotentialSavingsBytes:   lo.SumBy(groups, DuplicateGroup.Savings),
	}
}

// ScaleMetrics gives the size of a library at a glance.
type ScaleMetrics struct {
	FileCount           int     `json:"fileCount"`
	TotalSizeBytes      int64   `json:"totalSizeBytes"`
	HashCoveragePercent float64 `json:"hashCoveragePercent"`
}

func (m ScaleMetrics) String() string {
	return fmt.Sprintf("%d files, %s, %.1f%% hashed",
		m.FileCount, humanize.IBytes(uint64(m.TotalSizeBytes)), m.HashCoveragePercent)
}

// Metrics computes ScaleMetrics for idx.
func Metrics(idx *index.Index) ScaleMetrics {
	return ScaleMetrics{
		FileCount:           idx.EntryCount(),
		TotalSizeBytes:      lo.SumBy(idx.Entries(), func(e index.Entry) int64 { return e.Size }),
		HashCoveragePercent: idx.HashCoverage() * 100,
	}
}
