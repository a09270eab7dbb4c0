// Package index implements the baseline index: the durable manifest of every
// file under a library root with its size, modification time and optional
// content hash.
//
// An Index is an immutable snapshot. Its entries are always sorted by path and
// unique, and its schema version and entry count are derived from the entries
// rather than stored independently:
//
//	version "1.0"  no entry carries a hash
//	version "1.1"  at least one entry carries a hash
//
// Mutation is expressed by building a new Index from an old one plus a delta
// (Updating, WithHashes).
package index

import (
	"slices"
	"time"

	"github.com/bolet777/mediahub/internal/types"
)

// Schema versions understood by this package.
const (
	VersionPlain  = "1.0"
	VersionHashed = "1.1"
)

// now is replaced in tests for reproducible timestamps.
var now = time.Now

// Entry describes one library file. Path is root-relative with "/"
// separators. Hash is empty when the content has not been hashed yet.
type Entry struct {
	Path  string `json:"path"`
	Size  int64  `json:"size"`
	Mtime string `json:"mtime"`
	Hash  string `json:"hash,omitempty"`
}

// HasHash reports whether the entry carries a content hash.
func (e Entry) HasHash() bool { return e.Hash != "" }

func entryPath(e Entry) string { return e.Path }

// Index is an immutable baseline index snapshot.
type Index struct {
	created     string
	lastUpdated string
	entries     types.Sorted[Entry, string]
}

// New builds an index from entries. Duplicate paths keep the last occurrence.
func New(entries []Entry) *Index {
	ts := types.FormatTime(now())
	return build(ts, ts, entries)
}

func build(created, lastUpdated string, entries []Entry) *Index {
	return &Index{
		created:     created,
		lastUpdated: lastUpdated,
		entries:     normalize(entries),
	}
}

// normalize sorts entries by path, keeping the last entry for each path.
func normalize(entries []Entry) types.Sorted[Entry, string] {
	byPath := make(map[string]Entry, len(entries))
	for _, e := range entries {
		byPath[e.Path] = e
	}
	unique := make([]Entry, 0, len(byPath))
	for _, e := range byPath {
		unique = append(unique, e)
	}
	return types.NewSorted(unique, entryPath)
}

// Updating returns a new index with entries added or replaced by path.
// The creation time is preserved; lastUpdated is refreshed.
func (idx *Index) Updating(entries []Entry) *Index {
	merged := make([]Entry, 0, idx.EntryCount()+len(entries))
	merged = append(merged, idx.entries.Items()...)
	merged = append(merged, entries...)
	return build(idx.created, types.FormatTime(now()), merged)
}

// WithHashes fills in hashes for entries that have none. Entries that
// already carry a hash are never overwritten. It returns the new index and
// the number of entries that changed; when nothing changed the receiver
// itself is returned.
func (idx *Index) WithHashes(hashes map[string]string) (*Index, int) {
	changed := 0
	updated := slices.Clone(idx.entries.Items())
	for i, e := range updated {
		if e.HasHash() {
			continue
		}
		if h, ok := hashes[e.Path]; ok && h != "" {
			updated[i].Hash = h
			changed++
		}
	}
	if changed == 0 {
		return idx, 0
	}
	return build(idx.created, types.FormatTime(now()), updated), changed
}

// Version returns the derived schema version.
func (idx *Index) Version() string {
	if idx.HashEntryCount() > 0 {
		return VersionHashed
	}
	return VersionPlain
}

// Created returns the creation timestamp.
func (idx *Index) Created() string { return idx.created }

// LastUpdated returns the timestamp of the last change.
func (idx *Index) LastUpdated() string { return idx.lastUpdated }

// EntryCount returns the number of entries.
func (idx *Index) EntryCount() int { return idx.entries.Len() }

// Entries returns a copy of the entries sorted by path.
func (idx *Index) Entries() []Entry { return slices.Clone(idx.entries.Items()) }

// Lookup finds the entry for a root-relative path.
func (idx *Index) Lookup(path string) (Entry, bool) { return idx.entries.Find(path) }

// Metadata summarizes an index for reports.
type Metadata struct {
	Version     string `json:"version"`
	EntryCount  int    `json:"entryCount"`
	LastUpdated string `json:"lastUpdated"`
}

// Metadata returns the report summary of idx.
func (idx *Index) Metadata() Metadata {
	return Metadata{Version: idx.Version(), EntryCount: idx.EntryCount(), LastUpdated: idx.lastUpdated}
}
