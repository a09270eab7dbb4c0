// Package importer places selected detection candidates into a library.
//
// # Pipeline
//
//	For each selected candidate, in path order:
//	    │
//	    ├──► Extract timestamp (EXIF, else mtime) → YYYY/MM/<sanitized name>
//	    ├──► Detect collision (filesystem + destinations claimed in this run)
//	    ├──► Resolve by policy: proceed / skip / fail
//	    │
//	    └──► Real run only:
//	             ├──► Atomic copy (temp file, size check, rename)
//	             ├──► Record (source, destination) in known items
//	             └──► Hash the placed file, stage an index entry
//
//	After all items (real run, index present at start):
//	    └──► Merge staged entries and rewrite the index once
//
// A dry run executes the same decisions and records the same destinations
// but performs no filesystem, known-items or index mutation. One failing item
// never aborts the batch.
//
// Only file placement goes through fileops.FileOps. The index, the
// known-items store and the saved result are local files the executor reads
// and writes directly; hashing and timestamp extraction are swappable fields.
//
// The executor assumes a single writer per library: nothing serializes two
// concurrent imports into the same root beyond the known-items lock.
package importer

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/samber/lo"

	"github.com/bolet777/mediahub/internal/atomicfile"
	"github.com/bolet777/mediahub/internal/collision"
	"github.com/bolet777/mediahub/internal/detector"
	"github.com/bolet777/mediahub/internal/fileops"
	"github.com/bolet777/mediahub/internal/hasher"
	"github.com/bolet777/mediahub/internal/index"
	"github.com/bolet777/mediahub/internal/knownitems"
	"github.com/bolet777/mediahub/internal/library"
	"github.com/bolet777/mediahub/internal/mediatime"
	"github.com/bolet777/mediahub/internal/pathutil"
	"github.com/bolet777/mediahub/internal/progress"
	"github.com/bolet777/mediahub/internal/types"
)

// Options configures an Importer.
type Options struct {
	LibraryID       string
	CollisionPolicy collision.Policy
	DryRun          bool
	ShowProgress    bool
	Cancel          types.Canceler
}

// Importer executes one import into one library.
//
// The importer is designed for single-use: create with New(), call Run() once.
type Importer struct {
	root string
	opts Options
	ops  fileops.FileOps

	timestamp func(path string) (mediatime.Timestamp, error)
	hash      func(path, root string) (string, error)
	now       func() time.Time
}

// New creates an Importer for the library at root. All library file
// mutations go through ops.
func New(root string, opts Options, ops fileops.FileOps) *Importer {
	if opts.CollisionPolicy == "" {
		opts.CollisionPolicy = collision.PolicyRename
	}
	return &Importer{
		root:      root,
		opts:      opts,
		ops:       ops,
		timestamp: mediatime.Extract,
		hash:      hasher.Hash,
		now:       time.Now,
	}
}

// stats tracks import progress.
type stats struct {
	total     int
	processed int
	imported  int
	bytes     int64
	startTime time.Time
}

func (s *stats) String() string {
	return fmt.Sprintf("Imported %d of %d/%d files (%s) in %.1fs",
		s.imported, s.processed, s.total, humanize.IBytes(uint64(s.bytes)),
		time.Since(s.startTime).Seconds())
}

// run holds the mutable state of one Run.
type run struct {
	claims   *collision.Claims
	known    *knownitems.Store
	staged   []index.Entry
	existing map[string]string // hash -> library path, from the index at start
}

// Run imports the selected candidates of detection. Structural failures (an
// unreadable index, an unavailable known-items store) abort before any item
// is processed. On cancellation the partial result is returned together with
// types.ErrCanceled; files already placed are still indexed.
func (im *Importer) Run(detection detector.Result, selected []types.CandidateMediaItem) (Result, error) {
	result := Result{
		SourceID:   detection.SourceID,
		LibraryID:  im.opts.LibraryID,
		Options:    ResultOptions{CollisionPolicy: im.opts.CollisionPolicy, DryRun: im.opts.DryRun},
		Items:      []ItemResult{},
		ImportedAt: types.FormatTime(im.now()),
	}
	if result.LibraryID == "" {
		result.LibraryID = detection.LibraryID
	}

	idx, err := im.loadIndex()
	if err != nil {
		return result, err
	}

	r := &run{claims: collision.NewClaims()}
	if idx != nil {
		r.existing = idx.HashToAnyPath()
	}
	if !im.opts.DryRun {
		r.known, err = knownitems.Open(library.KnownItemsPath(im.root))
		if err != nil {
			return result, err
		}
		defer func() { _ = r.known.Close() }()
	}

	candidates := lo.UniqBy(types.NewCandidateList(selected).Items(), func(c types.CandidateMediaItem) string { return c.Path })
	detected := lo.SliceToMap(detection.Candidates, func(c detector.CandidateResult) (string, struct{}) {
		return c.Item.Path, struct{}{}
	})

	st := &stats{total: len(candidates), startTime: time.Now()}
	bar := progress.New(im.opts.ShowProgress, int64(len(candidates)))
	bar.Describe(st)

	var runErr error
	for _, c := range candidates {
		if runErr = types.Check(im.opts.Cancel); runErr != nil {
			break
		}

		var item ItemResult
		if _, ok := detected[c.Path]; !ok {
			item = ItemResult{SourcePath: c.Path, Status: StatusFailed, Reason: "not part of detection result"}
		} else {
			item = im.importItem(r, detection.SourceID, idx != nil, c)
		}
		result.Items = append(result.Items, item)

		st.processed++
		if item.Status == StatusImported {
			st.imported++
			st.bytes += c.Size
		} else {
			slog.Warn("item not imported", "path", c.Path, "status", item.Status, "reason", item.Reason)
		}
		bar.Add(1)
		bar.Describe(st)
	}
	bar.Finish(st)

	result.Summary = summarize(result.Items)
	if err := im.finishIndex(&result, idx, r.staged); err != nil && runErr == nil {
		runErr = err
	}

	if !im.opts.DryRun {
		if _, err := SaveResult(im.root, result); err != nil {
			slog.Warn("import result not saved", "error", err)
		}
	}

	slog.Info("import complete", "source", result.SourceID, "dryRun", im.opts.DryRun,
		"imported", result.Summary.Imported, "skipped", result.Summary.Skipped, "failed", result.Summary.Failed)
	return result, runErr
}

// loadIndex returns the index present at start, nil if there is none.
func (im *Importer) loadIndex() (*index.Index, error) {
	idx, err := index.Load(index.FilePath(im.root))
	if err != nil {
		if index.IsKind(err, index.KindFileNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("baseline index is unusable: %w", err)
	}
	return idx, nil
}

// importItem decides and, outside dry runs, performs one placement.
func (im *Importer) importItem(r *run, sourceID string, stageIndex bool, c types.CandidateMediaItem) ItemResult {
	item := ItemResult{SourcePath: c.Path}

	ts, err := im.timestamp(c.Path)
	if err != nil {
		// The candidate's recorded mtime keeps dry and real runs in agreement.
		mtime, perr := types.ParseTime(c.ModificationDate)
		if perr != nil {
			item.Status, item.Reason = StatusFailed, fmt.Sprintf("no timestamp: %v", err)
			return item
		}
		ts = mediatime.Timestamp{Date: mtime, Source: mediatime.SourceMtime}
	}

	m := MapDestination(c, ts, im.root)
	coll := collision.Detect(im.ops, m.DestinationPath, r.claims)
	res := collision.Resolve(im.ops, coll, im.opts.CollisionPolicy, m.DestinationPath, m.FileName, r.claims)
	switch res.Action {
	case collision.Skip:
		item.Status, item.Reason = StatusSkipped, res.Reason
		return item
	case collision.Fail:
		item.Status, item.Reason = StatusFailed, res.Reason
		return item
	}

	r.claims.Claim(res.Destination)
	item.DestinationPath = res.Destination

	if im.opts.DryRun {
		item.Status = StatusImported
		return item
	}

	if _, err := atomicfile.Copy(im.ops, c.Path, res.Destination); err != nil {
		item.Status, item.Reason = StatusFailed, err.Error()
		return item
	}
	item.Status = StatusImported

	if _, err := r.known.Record(sourceID, c.Path, res.Destination); err != nil {
		slog.Warn("known item not recorded", "path", c.Path, "error", err)
	}
	if stageIndex {
		if entry, err := im.indexEntry(res.Destination); err != nil {
			slog.Warn("imported file not indexed", "path", res.Destination, "error", err)
		} else {
			r.staged = append(r.staged, entry)
			if p, ok := r.existing[entry.Hash]; ok && entry.HasHash() {
				slog.Info("imported content already in library", "path", entry.Path, "existing", p)
			}
		}
	}
	return item
}

// indexEntry describes a placed file. A hashing failure leaves the entry
// unhashed for maintenance to fill in later.
func (im *Importer) indexEntry(dest string) (index.Entry, error) {
	rel, err := pathutil.Normalize(dest, im.root)
	if err != nil {
		return index.Entry{}, err
	}
	info, err := im.ops.Stat(dest)
	if err != nil {
		return index.Entry{}, err
	}
	entry := index.EntryFor(rel, info.Size(), info.ModTime())

	h, err := im.hash(dest, im.root)
	if err != nil {
		slog.Warn("imported file not hashed", "path", dest, "error", err)
		return entry, nil
	}
	entry.Hash = h
	return entry, nil
}

// finishIndex sets the index fields of result and writes the merged index.
func (im *Importer) finishIndex(result *Result, idx *index.Index, staged []index.Entry) error {
	switch {
	case idx == nil:
		result.IndexUpdateSkippedReason = SkipReasonIndexMissing
		return nil
	case im.opts.DryRun:
		result.IndexUpdateSkippedReason = SkipReasonDryRun
		return nil
	case len(staged) == 0:
		return nil
	}

	result.IndexUpdateAttempted = true
	updated := idx.Updating(staged)
	if err := index.Write(updated, index.FilePath(im.root), im.root); err != nil {
		return fmt.Errorf("index update failed: %w", err)
	}
	result.IndexUpdated = true
	meta := updated.Metadata()
	result.IndexMetadata = &meta
	return nil
}

func summarize(items []ItemResult) Summary {
	counts := lo.CountValuesBy(items, func(i ItemResult) ItemStatus { return i.Status })
	return Summary{
		Total:    len(items),
		Imported: counts[StatusImported],
		Skipped:  counts[StatusSkipped],
		Failed:   counts[StatusFailed],
	}
}

// IsCanceled reports whether err ended an import early.
func IsCanceled(err error) bool { return errors.Is(err, types.ErrCanceled) }
