// Package detector classifies the media found in a source as new or already
// known to a library and records the outcome.
//
// Classification is by path identity. The known set is the union of the
// files currently under the library root (metadata excluded) and the source
// paths the known-items store has recorded for this source. Detection never
// writes to the source.
package detector

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/samber/lo"

	"github.com/bolet777/mediahub/internal/atomicfile"
	"github.com/bolet777/mediahub/internal/knownitems"
	"github.com/bolet777/mediahub/internal/library"
	"github.com/bolet777/mediahub/internal/scanner"
	"github.com/bolet777/mediahub/internal/types"
)

// resultStem is the file-name layout of persisted results.
const resultStem = "20060102T150405Z"

// SourceUpdater persists a source after its lastDetectedAt changed.
type SourceUpdater interface {
	Update(types.Source) error
}

// Options configures a Detector.
type Options struct {
	LibraryID       string
	Excludes        []string
	ExtraExtensions []string
	ShowProgress    bool
	Cancel          types.Canceler
	Sources         SourceUpdater // Optional
	ErrCh           chan error    // Optional, receives non-fatal scan errors
}

// Detector runs detection for one library.
type Detector struct {
	root string
	opts Options
	now  func() time.Time
}

// New creates a Detector for the library at root.
func New(root string, opts Options) *Detector {
	return &Detector{root: root, opts: opts, now: time.Now}
}

// Run scans source, classifies each candidate and persists the result. It
// returns the result and the source with LastDetectedAt updated.
func (d *Detector) Run(source types.Source) (Result, types.Source, error) {
	info, err := os.Stat(source.Path)
	if err != nil {
		return Result{}, source, &Error{Kind: KindSourceInaccessible, Path: source.Path, Err: err}
	}
	if !info.IsDir() {
		return Result{}, source, &Error{Kind: KindSourceInaccessible, Path: source.Path, Err: errors.New("not a directory")}
	}

	sc := scanner.New(source.Path, scanner.Options{
		Filter:          source.MediaTypes,
		Excludes:        d.opts.Excludes,
		ExtraExtensions: d.opts.ExtraExtensions,
		ShowProgress:    d.opts.ShowProgress,
	}, d.opts.ErrCh)
	items, elapsed, err := types.MeasureValue(func() ([]types.CandidateMediaItem, error) {
		return sc.Run(d.opts.Cancel)
	})
	if err != nil {
		if errors.Is(err, scanner.ErrSourceInaccessible) {
			return Result{}, source, &Error{Kind: KindSourceInaccessible, Path: source.Path, Err: err}
		}
		return Result{}, source, err
	}
	slog.Debug("scan finished", "source", source.ID, "candidates", len(items), "duration", elapsed)

	inLibrary, imported, err := d.knownSets(source.ID)
	if err != nil {
		return Result{}, source, err
	}

	candidates := lo.Map(items, func(item types.CandidateMediaItem, _ int) CandidateResult {
		return classify(item, inLibrary, imported)
	})
	result := Result{
		SourceID:   source.ID,
		LibraryID:  d.opts.LibraryID,
		Candidates: candidates,
		Summary:    summarize(candidates),
		DetectedAt: types.FormatTime(d.now()),
	}

	if _, err := Save(d.root, result); err != nil {
		return Result{}, source, err
	}

	source.LastDetectedAt = result.DetectedAt
	if d.opts.Sources != nil {
		if err := d.opts.Sources.Update(source); err != nil {
			return result, source, fmt.Errorf("update source: %w", err)
		}
	}

	slog.Info("detection complete", "source", source.ID,
		"scanned", result.Summary.TotalScanned, "new", result.Summary.NewItems, "known", result.Summary.KnownItems)
	return result, source, nil
}

// knownSets returns the absolute paths of library files and the source paths
// already imported from sourceID.
func (d *Detector) knownSets(sourceID string) (inLibrary, imported map[string]struct{}, err error) {
	files, err := scanner.Enumerate(d.root, library.IsMetadataPath, d.opts.Cancel)
	if err != nil {
		if errors.Is(err, types.ErrCanceled) {
			return nil, nil, err
		}
		return nil, nil, &Error{Kind: KindLibrary, Path: d.root, Err: err}
	}
	inLibrary = lo.SliceToMap(files, func(f scanner.File) (string, struct{}) { return f.Path, struct{}{} })

	store, err := knownitems.OpenReadOnly(library.KnownItemsPath(d.root))
	if err != nil {
		return nil, nil, &Error{Kind: KindLibrary, Path: d.root, Err: err}
	}
	defer func() { _ = store.Close() }()

	imported, err = store.SourcePaths(sourceID)
	if err != nil {
		return nil, nil, &Error{Kind: KindLibrary, Path: d.root, Err: err}
	}
	return inLibrary, imported, nil
}

func classify(item types.CandidateMediaItem, inLibrary, imported map[string]struct{}) CandidateResult {
	if _, ok := inLibrary[item.Path]; ok {
		return CandidateResult{Item: item, Status: StatusKnown, ExclusionReason: ReasonInLibrary}
	}
	if _, ok := imported[item.Path]; ok {
		return CandidateResult{Item: item, Status: StatusKnown, ExclusionReason: ReasonAlreadyImported}
	}
	return CandidateResult{Item: item, Status: StatusNew}
}

func summarize(candidates []CandidateResult) Summary {
	known := lo.CountBy(candidates, func(c CandidateResult) bool { return c.Status == StatusKnown })
	return Summary{
		TotalScanned: len(candidates),
		NewItems:     len(candidates) - known,
		KnownItems:   known,
	}
}

// Save writes result as a new file under the source's detections
// directory and returns its path. Existing results are never replaced.
func Save(root string, result Result) (string, error) {
	dir := library.DetectionsDir(root, result.SourceID)
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", &Error{Kind: KindPersist, Path: dir, Err: err}
	}

	stem := result.DetectedAt
	if t, err := types.ParseTime(result.DetectedAt); err == nil {
		stem = t.UTC().Format(resultStem)
	}
	path, err := atomicfile.WriteNew(dir, stem, ".json", append(data, '\n'))
	if err != nil {
		return "", &Error{Kind: KindPersist, Path: dir, Err: err}
	}
	slog.Debug("detection result saved", "path", path)
	return path, nil
}

// LoadLatest reads the most recent detection result for sourceID.
func LoadLatest(root, sourceID string) (Result, error) {
	path, err := atomicfile.Newest(library.DetectionsDir(root, sourceID), ".json")
	if err != nil {
		return Result{}, fmt.Errorf("no detection result for source %s: %w", sourceID, err)
	}
	return Load(path)
}

// Load reads a detection result file.
func Load(path string) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, err
	}
	var r Result
	if err := json.Unmarshal(data, &r); err != nil {
		return Result{}, fmt.Errorf("invalid detection result %s: %w", filepath.Base(path), err)
	}
	return r, nil
}
