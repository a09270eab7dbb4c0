package detector

import (
	"errors"
	"fmt"

	"github.com/bolet777/mediahub/internal/types"
)

// Status classifies a candidate against the library.
type Status string

const (
	StatusNew   Status = "new"
	StatusKnown Status = "known"
)

// Exclusion reasons attached to known candidates.
const (
	ReasonInLibrary       = "in_library"
	ReasonAlreadyImported = "already_imported"
)

// CandidateResult is the classification of one scanned item.
type CandidateResult struct {
	Item            types.CandidateMediaItem `json:"item"`
	Status          Status                   `json:"status"`
	ExclusionReason string                   `json:"exclusionReason,omitempty"`
}

// Summary aggregates a detection run.
type Summary struct {
	TotalScanned int `json:"totalScanned"`
	NewItems     int `json:"newItems"`
	KnownItems   int `json:"knownItems"`
}

// Result is the persisted outcome of one detection run. It is never modified
// after being written.
type Result struct {
	SourceID   string            `json:"sourceId"`
	LibraryID  string            `json:"libraryId"`
	Candidates []CandidateResult `json:"candidates"`
	Summary    Summary           `json:"summary"`
	DetectedAt string            `json:"detectedAt"`
}

// NewItems returns the candidates classified as new, in path order.
func (r Result) NewItems() []types.CandidateMediaItem {
	var out []types.CandidateMediaItem
	for _, c := range r.Candidates {
		if c.Status == StatusNew {
			out = append(out, c.Item)
		}
	}
	return out
}

// ErrSourceInaccessible matches any *Error of KindSourceInaccessible.
var ErrSourceInaccessible = errors.New("source inaccessible")

// Kind discriminates detection errors.
type Kind int

const (
	KindSourceInaccessible Kind = iota
	KindLibrary
	KindPersist
)

// Error is returned by Run for failures that abort detection.
type Error struct {
	Kind Kind
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindSourceInaccessible:
		return fmt.Sprintf("source %s is not accessible: %v", e.Path, e.Err)
	case KindLibrary:
		return fmt.Sprintf("library %s: %v", e.Path, e.Err)
	default:
		return fmt.Sprintf("save detection result in %s: %v", e.Path, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	return target == ErrSourceInaccessible && e.Kind == KindSourceInaccessible
}
