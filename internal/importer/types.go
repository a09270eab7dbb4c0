package importer

import (
	"fmt"
	"strings"

	"github.com/bolet777/mediahub/internal/collision"
	"github.com/bolet777/mediahub/internal/index"
)

// ItemStatus is the outcome of importing one candidate.
type ItemStatus string

const (
	StatusImported ItemStatus = "imported"
	StatusSkipped  ItemStatus = "skipped"
	StatusFailed   ItemStatus = "failed"
)

// Reasons an index update did not happen.
const (
	SkipReasonIndexMissing = "index_missing"
	SkipReasonDryRun       = "dry_run"
)

// ItemResult describes the outcome of a single candidate. DestinationPath
// is set whenever a destination was resolved, in dry runs too.
type ItemResult struct {
	SourcePath      string     `json:"sourcePath"`
	DestinationPath string     `json:"destinationPath,omitempty"`
	Status          ItemStatus `json:"status"`
	Reason          string     `json:"reason,omitempty"`
}

// String formats the item result for display.
func (r ItemResult) String() string {
	switch r.Status {
	case StatusImported:
		return fmt.Sprintf("imported %s -> %s", escapePath(r.SourcePath), escapePath(r.DestinationPath))
	case StatusSkipped:
		return fmt.Sprintf("skipped %s: %s", escapePath(r.SourcePath), r.Reason)
	case StatusFailed:
		return fmt.Sprintf("failed %s: %s", escapePath(r.SourcePath), r.Reason)
	default:
		return fmt.Sprintf("unknown status for %s", escapePath(r.SourcePath))
	}
}

// escapePath escapes special characters in paths for safe terminal output.
func escapePath(path string) string {
	r := strings.NewReplacer(
		"\t", "\\t",
		"\n", "\\n",
		"\r", "\\r",
	)
	return r.Replace(path)
}

// Summary counts item outcomes.
type Summary struct {
	Total    int `json:"total"`
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

// ResultOptions echoes the options an import ran with.
type ResultOptions struct {
	CollisionPolicy collision.Policy `json:"collisionPolicy"`
	DryRun          bool             `json:"dryRun"`
}

// Result is the outcome of one import invocation, real or dry run.
type Result struct {
	SourceID                 string          `json:"sourceId"`
	LibraryID                string          `json:"libraryId"`
	Options                  ResultOptions   `json:"options"`
	Items                    []ItemResult    `json:"items"`
	Summary                  Summary         `json:"summary"`
	IndexUpdateAttempted     bool            `json:"indexUpdateAttempted"`
	IndexUpdated             bool            `json:"indexUpdated"`
	IndexUpdateSkippedReason string          `json:"indexUpdateSkippedReason,omitempty"`
	IndexMetadata            *index.Metadata `json:"indexMetadata,omitempty"`
	ImportedAt               string          `json:"importedAt"`
}
