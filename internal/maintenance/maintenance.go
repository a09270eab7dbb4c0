// Package maintenance backfills missing content hashes into a library's
// baseline index.
//
// Work is split in three steps so that callers can preview before writing:
//
//	SelectCandidates                  read-only: unhashed entries whose file exists
//	ComputeMissingHashes              read-only: hash the candidates
//	ApplyComputedHashesAndWriteIndex  merge hashes into entries that have none
//
// An entry that already carries a hash is never changed, and the index is
// not rewritten when nothing changed, so repeated runs are idempotent.
package maintenance

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/samber/lo"

	"github.com/bolet777/mediahub/internal/cache"
	"github.com/bolet777/mediahub/internal/hasher"
	"github.com/bolet777/mediahub/internal/index"
	"github.com/bolet777/mediahub/internal/progress"
	"github.com/bolet777/mediahub/internal/types"
)

var (
	// ErrLibraryNotFound is returned when the library root does not exist.
	ErrLibraryNotFound = errors.New("library not found")
	// ErrIndexNotFound is returned when the library has no baseline index.
	ErrIndexNotFound = errors.New("baseline index not found")
)

// Statistics describes hash coverage of an index.
type Statistics struct {
	TotalEntries       int     `json:"totalEntries"`
	EntriesWithHash    int     `json:"entriesWithHash"`
	EntriesMissingHash int     `json:"entriesMissingHash"`
	HashCoverage       float64 `json:"hashCoverage"`
}

func statisticsOf(idx *index.Index) Statistics {
	hashed := idx.HashEntryCount()
	return Statistics{
		TotalEntries:       idx.EntryCount(),
		EntriesWithHash:    hashed,
		EntriesMissingHash: idx.EntryCount() - hashed,
		HashCoverage:       idx.HashCoverage(),
	}
}

// Candidate is an unhashed index entry whose file is present.
type Candidate struct {
	Entry   index.Entry
	AbsPath string
}

// Selection is the output of SelectCandidates.
type Selection struct {
	Candidates        []Candidate
	MissingFilesCount int
	Statistics        Statistics
}

// SelectCandidates lists unhashed entries whose backing file still exists,
// sorted by path and truncated to the first limit entries when limit > 0.
// It never writes.
func SelectCandidates(root string, limit int) (Selection, error) {
	idx, err := loadIndex(root)
	if err != nil {
		return Selection{}, err
	}

	sel := Selection{Statistics: statisticsOf(idx)}
	for _, e := range idx.Entries() {
		if e.HasHash() {
			continue
		}
		abs := filepath.Join(root, filepath.FromSlash(e.Path))
		info, err := os.Stat(abs)
		if err != nil || !info.Mode().IsRegular() {
			sel.MissingFilesCount++
			continue
		}
		sel.Candidates = append(sel.Candidates, Candidate{Entry: e, AbsPath: abs})
	}
	if limit > 0 && len(sel.Candidates) > limit {
		sel.Candidates = sel.Candidates[:limit]
	}
	return sel, nil
}

func loadIndex(root string) (*index.Index, error) {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrLibraryNotFound, root)
	}
	idx, err := index.Load(index.FilePath(root))
	if err != nil {
		if index.IsKind(err, index.KindFileNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, index.FilePath(root))
		}
		return nil, err
	}
	return idx, nil
}

// Options configures ComputeMissingHashes.
type Options struct {
	Cache        *cache.Cache // Optional
	ShowProgress bool
	Cancel       types.Canceler
}

// HashFailure records a file that could not be hashed.
type HashFailure struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// ComputeResult is the output of ComputeMissingHashes.
type ComputeResult struct {
	HashesComputed    int               `json:"hashesComputed"`
	HashFailures      []HashFailure     `json:"hashFailures"`
	ComputedHashes    map[string]string `json:"-"` // index path -> hash
	CacheHits         int               `json:"cacheHits"`
	MissingFilesCount int               `json:"missingFilesCount"`
	Statistics        Statistics        `json:"statistics"`
}

type stats struct {
	total     int
	hashed    int
	cached    int
	failed    int
	bytes     int64
	startTime time.Time
}

func (s *stats) String() string {
	return fmt.Sprintf("Hashed %d/%d files (%s), %d cached, %d failed in %.1fs",
		s.hashed, s.total, humanize.IBytes(uint64(s.bytes)), s.cached, s.failed,
		time.Since(s.startTime).Seconds())
}

// ComputeMissingHashes hashes the candidates SelectCandidates(root, limit)
// returns. Per-file failures are collected and never abort the batch. It
// writes nothing except cache entries. On cancellation the partial result is
// returned with types.ErrCanceled.
func ComputeMissingHashes(root string, limit int, opts Options) (ComputeResult, error) {
	sel, err := SelectCandidates(root, limit)
	if err != nil {
		return ComputeResult{}, err
	}

	res := ComputeResult{
		HashFailures:      []HashFailure{},
		ComputedHashes:    make(map[string]string, len(sel.Candidates)),
		MissingFilesCount: sel.MissingFilesCount,
		Statistics:        sel.Statistics,
	}
	st := &stats{total: len(sel.Candidates), startTime: time.Now()}
	bar := progress.NewBytes(opts.ShowProgress,
		lo.SumBy(sel.Candidates, func(c Candidate) int64 { return c.Entry.Size }))
	bar.Describe(st)

	for _, c := range sel.Candidates {
		if err := types.Check(opts.Cancel); err != nil {
			bar.Finish(st)
			return res, err
		}

		h, cached, err := hashCandidate(root, c, opts.Cache)
		switch {
		case err != nil:
			res.HashFailures = append(res.HashFailures, HashFailure{Path: c.Entry.Path, Reason: err.Error()})
			st.failed++
			slog.Warn("hash failed", "path", c.Entry.Path, "error", err)
		default:
			res.ComputedHashes[c.Entry.Path] = h
			res.HashesComputed++
			st.hashed++
			st.bytes += c.Entry.Size
			if cached {
				res.CacheHits++
				st.cached++
			}
		}
		bar.AddBytes(c.Entry.Size)
		bar.Describe(st)
	}
	bar.Finish(st)
	return res, nil
}

// hashCandidate hashes one file, consulting the cache first. Files whose
// size no longer matches the index are refused: their entry is stale.
func hashCandidate(root string, c Candidate, hc *cache.Cache) (hash string, cached bool, err error) {
	info, err := os.Stat(c.AbsPath)
	if err != nil {
		return "", false, err
	}
	if info.Size() != c.Entry.Size {
		return "", false, fmt.Errorf("size changed since indexed (%d -> %d bytes)", c.Entry.Size, info.Size())
	}

	if h, err := hc.Lookup(c.Entry.Path, info.Size(), info.ModTime()); err == nil && h != "" {
		return h, true, nil
	}

	h, err := hasher.Hash(c.AbsPath, root)
	if err != nil {
		return "", false, err
	}
	if err := hc.Store(c.Entry.Path, info.Size(), info.ModTime(), h); err != nil {
		slog.Debug("hash not cached", "path", c.Entry.Path, "error", err)
	}
	return h, false, nil
}

// ApplyResult is the output of ApplyComputedHashesAndWriteIndex.
type ApplyResult struct {
	EntriesUpdated   int        `json:"entriesUpdated"`
	IndexUpdated     bool       `json:"indexUpdated"`
	StatisticsBefore Statistics `json:"statisticsBefore"`
	StatisticsAfter  Statistics `json:"statisticsAfter"`
}

// ApplyComputedHashesAndWriteIndex merges computed hashes into entries that
// have none and rewrites the index only if at least one entry changed.
func ApplyComputedHashesAndWriteIndex(root string, computed map[string]string) (ApplyResult, error) {
	idx, err := loadIndex(root)
	if err != nil {
		return ApplyResult{}, err
	}

	valid := make(map[string]string, len(computed))
	for path, h := range computed {
		if hasher.Valid(h) {
			valid[path] = h
		} else {
			slog.Warn("ignoring malformed hash", "path", path, "hash", h)
		}
	}

	res := ApplyResult{StatisticsBefore: statisticsOf(idx)}
	updated, changed := idx.WithHashes(valid)
	res.EntriesUpdated = changed
	res.StatisticsAfter = statisticsOf(updated)
	if changed == 0 {
		return res, nil
	}

	if err := index.Write(updated, index.FilePath(root), root); err != nil {
		return res, err
	}
	res.IndexUpdated = true
	slog.Info("hash coverage updated", "entries", changed, "coverage", res.StatisticsAfter.HashCoverage)
	return res, nil
}
