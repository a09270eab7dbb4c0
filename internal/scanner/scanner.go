// Package scanner discovers media files under a source folder and enumerates
// the files of a library tree.
//
// Traversal is sequential: directories are read one at a time in batches of
// 1000 entries, and the cancellation flag is polled between files. Results are
// always returned sorted by absolute path so that identical trees produce
// identical output.
//
// Only regular files are considered. Symlinks, devices and sockets are skipped,
// and so is any entry matching an exclude pattern. Exclude patterns are
// doublestar globs evaluated against the slash-separated path relative to the
// scanned root.
package scanner

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/dustin/go-humanize"

	"github.com/bolet777/mediahub/internal/progress"
	"github.com/bolet777/mediahub/internal/types"
)

// ErrSourceInaccessible is returned when the scanned root cannot be read.
var ErrSourceInaccessible = errors.New("source inaccessible")

// Options configures a Scanner.
type Options struct {
	Filter          types.MediaFilter // Media kinds to keep (zero value: both)
	Excludes        []string          // Doublestar patterns, root-relative
	ExtraExtensions []string          // Additional image extensions
	ShowProgress    bool
}

// Scanner finds recognized media files under one source root.
//
// The scanner is designed for single-use: create with New(), call Run() once.
type Scanner struct {
	root  string
	opts  Options
	errCh chan error // Non-fatal errors (unreadable subdirectories)

	stats *stats
	bar   *progress.Bar
}

// New creates a Scanner for the given source root.
func New(root string, opts Options, errCh chan error) *Scanner {
	return &Scanner{root: root, opts: opts, errCh: errCh}
}

type stats struct {
	scannedFiles int64
	matchedFiles int64
	scannedBytes int64
	matchedBytes int64
	startTime    time.Time
}

func (s *stats) String() string {
	return fmt.Sprintf("Scanned %d (%s), matched %d media files (%s) in %.1fs",
		s.scannedFiles, humanize.IBytes(uint64(s.scannedBytes)),
		s.matchedFiles, humanize.IBytes(uint64(s.matchedBytes)),
		time.Since(s.startTime).Seconds())
}

// Run scans the source and returns its media candidates sorted by path.
// It fails with ErrSourceInaccessible if the root itself cannot be read and
// with types.ErrCanceled if cancel fires before the walk completes.
func (s *Scanner) Run(cancel types.Canceler) ([]types.CandidateMediaItem, error) {
	root, err := filepath.Abs(s.root)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceInaccessible, s.root, err)
	}

	s.stats = &stats{startTime: time.Now()}
	s.bar = progress.New(s.opts.ShowProgress, -1)
	s.bar.Describe(s.stats)

	var items []types.CandidateMediaItem
	w := &walker{
		root:    root,
		cancel:  cancel,
		exclude: s.excluded,
		onError: s.sendError,
		visit: func(path, rel string, info os.FileInfo) {
			s.stats.scannedFiles++
			s.stats.scannedBytes += info.Size()

			kind, ok := types.ClassifyExtension(info.Name(), s.opts.ExtraExtensions...)
			if !ok || !s.opts.Filter.Allows(kind) {
				return
			}
			items = append(items, types.CandidateMediaItem{
				Path:             path,
				Size:             info.Size(),
				ModificationDate: types.FormatTime(info.ModTime()),
				FileName:         info.Name(),
			})
			s.stats.matchedFiles++
			s.stats.matchedBytes += info.Size()
			if s.stats.scannedFiles%100 == 0 {
				s.bar.Describe(s.stats)
			}
		},
	}

	if err := w.run(); err != nil {
		return nil, err
	}
	s.bar.Finish(s.stats)
	slog.Debug("source scanned", "root", root, "files", s.stats.scannedFiles, "media", s.stats.matchedFiles)

	return types.NewCandidateList(items).Items(), nil
}

func (s *Scanner) excluded(rel string) bool {
	return Excluded(s.opts.Excludes, rel)
}

// Excluded reports whether the root-relative slash path rel matches any of
// patterns.
func Excluded(patterns []string, rel string) bool {
	for _, pattern := range patterns {
		// Invalid patterns never match; config validation rejects them upfront.
		if matched, _ := doublestar.Match(pattern, rel); matched {
			return true
		}
	}
	return false
}

func (s *Scanner) sendError(err error) {
	slog.Warn("scan error", "error", err)
	if s.errCh != nil {
		s.errCh <- err
	}
}

// ValidatePatterns reports the first malformed exclude pattern.
func ValidatePatterns(patterns []string) error {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("invalid exclude pattern %q", p)
		}
	}
	return nil
}

// File is a regular file found by Enumerate.
type File struct {
	Path    string // Absolute path
	RelPath string // Root-relative, slash-separated
	Size    int64
	ModTime time.Time
}

// Enumerate lists every regular file under root, sorted by path. skip receives
// root-relative slash paths of directories and files; returning true prunes
// them. Unreadable subdirectories are logged and skipped.
func Enumerate(root string, skip func(rel string) bool, cancel types.Canceler) ([]File, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	var files []File
	w := &walker{
		root:    abs,
		cancel:  cancel,
		exclude: skip,
		onError: func(err error) { slog.Warn("enumerate error", "error", err) },
		visit: func(path, rel string, info os.FileInfo) {
			files = append(files, File{Path: path, RelPath: rel, Size: info.Size(), ModTime: info.ModTime()})
		},
	}
	if err := w.run(); err != nil {
		return nil, err
	}
	return types.NewSorted(files, func(f File) string { return f.Path }).Items(), nil
}

// walker performs a sequential depth-first traversal.
type walker struct {
	root    string
	cancel  types.Canceler
	exclude func(rel string) bool
	onError func(error)
	visit   func(path, rel string, info os.FileInfo)
}

func (w *walker) run() error {
	info, err := os.Stat(w.root)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSourceInaccessible, w.root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrSourceInaccessible, w.root)
	}

	pending := []string{w.root}
	for len(pending) > 0 {
		dir := pending[len(pending)-1]
		pending = pending[:len(pending)-1]

		subdirs, err := w.listDirectory(dir)
		if err != nil {
			if errors.Is(err, types.ErrCanceled) {
				return err
			}
			if dir == w.root {
				return fmt.Errorf("%w: %s: %v", ErrSourceInaccessible, w.root, err)
			}
			w.onError(err)
			continue
		}
		pending = append(pending, subdirs...)
	}
	return nil
}

// listDirectory reads one directory in batches, visiting files and returning
// subdirectories still to walk.
func (w *walker) listDirectory(dirPath string) (subdirs []string, err error) {
	dir, err := os.Open(dirPath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = dir.Close() }()

	const batchSize = 1000
	for {
		entries, err := dir.ReadDir(batchSize)
		if len(entries) == 0 {
			if err != nil && err != io.EOF {
				return subdirs, err
			}
			break
		}

		for _, entry := range entries {
			if err := types.Check(w.cancel); err != nil {
				return nil, err
			}
			if sub := w.processEntry(dirPath, entry); sub != "" {
				subdirs = append(subdirs, sub)
			}
		}
	}
	return subdirs, nil
}

// processEntry visits a regular file or returns a subdirectory path.
func (w *walker) processEntry(dirPath string, entry os.DirEntry) (subdir string) {
	fullPath := filepath.Join(dirPath, entry.Name())
	rel, err := filepath.Rel(w.root, fullPath)
	if err != nil {
		return ""
	}
	rel = filepath.ToSlash(rel)

	if w.exclude != nil && w.exclude(rel) {
		return ""
	}
	if entry.IsDir() {
		return fullPath
	}
	if !entry.Type().IsRegular() {
		return ""
	}

	info, err := entry.Info()
	if err != nil {
		return "" // Removed between listing and stat
	}
	w.visit(fullPath, rel, info)
	return ""
}
