package index

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/bolet777/mediahub/internal/atomicfile"
	"github.com/bolet777/mediahub/internal/hasher"
	"github.com/bolet777/mediahub/internal/library"
	"github.com/bolet777/mediahub/internal/pathutil"
	"github.com/bolet777/mediahub/internal/scanner"
	"github.com/bolet777/mediahub/internal/types"
)

// Kind discriminates index errors.
type Kind int

const (
	KindFileNotFound Kind = iota
	KindInvalidJSON
	KindDecodingFailed
	KindUnsupportedVersion
	KindPathOutsideLibraryRoot
	KindIO
)

func (k Kind) String() string {
	switch k {
	case KindFileNotFound:
		return "index file not found"
	case KindInvalidJSON:
		return "invalid JSON"
	case KindDecodingFailed:
		return "decoding failed"
	case KindUnsupportedVersion:
		return "unsupported version"
	case KindPathOutsideLibraryRoot:
		return "path outside library root"
	default:
		return "I/O error"
	}
}

// Error is returned by Load and Write.
type Error struct {
	Kind    Kind
	Path    string
	Root    string // KindPathOutsideLibraryRoot only
	Version string // KindUnsupportedVersion only
	Err     error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindUnsupportedVersion:
		return fmt.Sprintf("%s: unsupported index version %q", e.Path, e.Version)
	case KindPathOutsideLibraryRoot:
		return fmt.Sprintf("index path %s is outside library root %s", e.Path, e.Root)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Path, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var ie *Error
	return errors.As(err, &ie) && ie.Kind == kind
}

// document is the on-disk layout. Field order defines JSON key order.
type document struct {
	Version     string  `json:"version"`
	Created     string  `json:"created"`
	LastUpdated string  `json:"lastUpdated"`
	EntryCount  int     `json:"entryCount"`
	Entries     []Entry `json:"entries"`
}

// FilePath returns the index location for a library root.
func FilePath(root string) string {
	return library.IndexPath(root)
}

// Exists reports whether the library at root has an index file.
func Exists(root string) bool {
	info, err := os.Stat(FilePath(root))
	return err == nil && info.Mode().IsRegular()
}

// Marshal renders idx deterministically: two-space indentation, entries in
// path order, no hash key on unhashed entries, trailing newline.
func Marshal(idx *Index) ([]byte, error) {
	doc := document{
		Version:     idx.Version(),
		Created:     idx.created,
		LastUpdated: idx.lastUpdated,
		EntryCount:  idx.EntryCount(),
		Entries:     idx.Entries(),
	}
	if doc.Entries == nil {
		doc.Entries = []Entry{}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Write persists idx at path, which must lie under root. The file is written
// to a temporary sibling and renamed into place, so readers never observe a
// partial index. Missing directories are created.
func Write(idx *Index, path, root string) error {
	if !pathutil.Contains(path, root) {
		return &Error{Kind: KindPathOutsideLibraryRoot, Path: path, Root: root}
	}

	data, err := Marshal(idx)
	if err != nil {
		return &Error{Kind: KindIO, Path: path, Err: err}
	}
	if err := atomicfile.WriteFile(path, data, 0o644); err != nil {
		return &Error{Kind: KindIO, Path: path, Err: err}
	}

	slog.Debug("index written", "path", path, "version", idx.Version(), "entries", idx.EntryCount())
	return nil
}

// Load reads and validates the index at path. Entries are returned sorted by
// path whatever their order on disk.
func Load(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &Error{Kind: KindFileNotFound, Path: path, Err: err}
		}
		return nil, &Error{Kind: KindIO, Path: path, Err: err}
	}
	return Parse(path, data)
}

// Parse decodes index bytes; path is used for error reporting only.
func Parse(path string, data []byte) (*Index, error) {
	if !json.Valid(data) {
		return nil, &Error{Kind: KindInvalidJSON, Path: path}
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &Error{Kind: KindDecodingFailed, Path: path, Err: err}
	}
	if doc.Version != VersionPlain && doc.Version != VersionHashed {
		return nil, &Error{Kind: KindUnsupportedVersion, Path: path, Version: doc.Version}
	}
	if err := validate(doc); err != nil {
		return nil, &Error{Kind: KindDecodingFailed, Path: path, Err: err}
	}

	return build(doc.Created, doc.LastUpdated, doc.Entries), nil
}

func validate(doc document) error {
	if _, err := types.ParseTime(doc.Created); err != nil {
		return fmt.Errorf("created: %w", err)
	}
	if _, err := types.ParseTime(doc.LastUpdated); err != nil {
		return fmt.Errorf("lastUpdated: %w", err)
	}
	seen := make(map[string]bool, len(doc.Entries))
	for i, e := range doc.Entries {
		switch {
		case e.Path == "":
			return fmt.Errorf("entry %d: empty path", i)
		case seen[e.Path]:
			return fmt.Errorf("entry %d: duplicate path %q", i, e.Path)
		case e.Size < 0:
			return fmt.Errorf("entry %q: negative size", e.Path)
		case e.HasHash() && !hasher.Valid(e.Hash):
			return fmt.Errorf("entry %q: malformed hash %q", e.Path, e.Hash)
		}
		seen[e.Path] = true
	}
	return nil
}

// Build creates an unhashed index of every file under root, excluding the
// metadata directory. It is how an existing folder is adopted as a library.
func Build(root string, cancel types.Canceler) (*Index, error) {
	files, err := scanner.Enumerate(root, library.IsMetadataPath, cancel)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, len(files))
	for i, f := range files {
		entries[i] = EntryFor(f.RelPath, f.Size, f.ModTime)
	}
	return New(entries), nil
}

// EntryFor builds an unhashed entry.
func EntryFor(rel string, size int64, mtime time.Time) Entry {
	return Entry{Path: filepath.ToSlash(rel), Size: size, Mtime: types.FormatTime(mtime)}
}
